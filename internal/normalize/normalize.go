// Package normalize implements the Prefix Normalizer (spec.md §4.4).
//
// The SAME normalizer is applied both when a parent's declared child
// instruction is indexed and when a child's own instruction is looked
// up. Any divergence between those two call sites silently produces
// zero matches — historically the chief source of bugs in this
// subsystem — so this package exposes exactly one entry point,
// Normalize, and callers on both sides of the index must use it.
package normalize

import (
	"strings"
	"unicode"
)

// DefaultPrefixLength is the default normalized-prefix length (192 code
// points), matching spec.md §3/§4.4 and config.HierarchyConfig.PrefixLength.
const DefaultPrefixLength = 192

// decorationRunes are punctuation used only for emphasis in source text
// and stripped entirely rather than collapsed to whitespace.
var decorationRunes = map[rune]bool{
	'*':      true,
	'`':      true,
	'‍': true, // zero-width joiner
	'​': true, // zero-width space
	0xFEFF:   true, // BOM, in case it leaks past the reader
}

// Normalize canonicalizes instruction text for exact-prefix matching.
// Steps, in order (spec.md §4.4):
//  1. replace all runs of whitespace with a single space (a leading
//     run is dropped entirely)
//  2. lowercase
//  3. remove a bounded set of punctuation used only for emphasis
//  4. truncate to prefixLength code points
//  5. right-trim
//
// Normalize is idempotent: Normalize(Normalize(s), n) == Normalize(s, n)
// for the same n.
func Normalize(s string, prefixLength int) string {
	if prefixLength <= 0 {
		prefixLength = DefaultPrefixLength
	}

	// Step 1 + 3 combined in one pass: collapse whitespace runs, drop
	// decoration runes, lowercase as we go to avoid re-scanning.
	var b strings.Builder
	b.Grow(len(s))
	inSpace := true // drops a leading whitespace run
	for _, r := range s {
		if decorationRunes[r] {
			continue
		}
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte(' ')
				inSpace = true
			}
			continue
		}
		inSpace = false
		b.WriteRune(unicode.ToLower(r))
	}

	out := []rune(b.String())

	// Step 4: truncate to prefixLength code points.
	if len(out) > prefixLength {
		out = out[:prefixLength]
	}

	// Step 5: right-trim (truncation above may have split at a space).
	result := strings.TrimRight(string(out), " ")

	return result
}
