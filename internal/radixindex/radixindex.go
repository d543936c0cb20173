// Package radixindex implements the Instruction Index (spec.md §4.5): a
// radix tree over normalized-prefix strings, mapping each key to the
// set of tasks that declared it as a child instruction.
//
// Backed by github.com/hashicorp/go-immutable-radix, the ecosystem's
// standard Go radix tree. Only its exact-key Get is used — no prefix
// widening, no longest-common-prefix fallback: spec.md is explicit that
// earlier designs used startsWith-style widening and it admitted
// many-to-one false positives.
package radixindex

import (
	"sync"

	iradix "github.com/hashicorp/go-immutable-radix"
)

// Declaration is one parent's recorded declaration of a given
// normalized prefix.
type Declaration struct {
	ParentTaskID        string
	OriginalInstruction string
	Timestamp           int64
}

// Index is the Instruction Index. Safe for concurrent Insert calls; the
// underlying immutable radix tree is swapped under a mutex on every
// write (Phase 1 is documented as single-writer, but the lock keeps the
// type safe even if that discipline is violated).
type Index struct {
	mu   sync.Mutex
	tree *iradix.Tree
}

// New creates an empty Instruction Index.
func New() *Index {
	return &Index{tree: iradix.New()}
}

// Insert records that parentTaskID declared prefix as a child
// instruction. Idempotent per (prefix, parentTaskID): inserting the
// same pair twice does not duplicate the declaration.
func (idx *Index) Insert(prefix, parentTaskID, originalInstruction string, timestamp int64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	key := []byte(prefix)
	var decls []Declaration
	if raw, ok := idx.tree.Get(key); ok {
		decls = raw.([]Declaration)
		for _, d := range decls {
			if d.ParentTaskID == parentTaskID {
				return
			}
		}
	}

	decls = append(decls, Declaration{
		ParentTaskID:        parentTaskID,
		OriginalInstruction: originalInstruction,
		Timestamp:           timestamp,
	})

	tree, _, _ := idx.tree.Insert(key, decls)
	idx.tree = tree
}

// LookupExact returns every declaration whose stored key equals prefix
// byte-for-byte. A prefix that is not an exact key returns nil — no
// fuzzy matching, no prefix widening.
func (idx *Index) LookupExact(prefix string) []Declaration {
	idx.mu.Lock()
	tree := idx.tree
	idx.mu.Unlock()

	raw, ok := tree.Get([]byte(prefix))
	if !ok {
		return nil
	}
	decls := raw.([]Declaration)
	out := make([]Declaration, len(decls))
	copy(out, decls)
	return out
}

// Len returns the number of distinct keys in the index (the radix-tree
// size reported by Phase 1, spec.md §4.8).
func (idx *Index) Len() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.tree.Len()
}

// Has reports whether prefix is a key in the index at all, regardless
// of how many declarations it maps to. Used by the invariant check in
// spec.md §8: "X ∈ index iff ∃ skeleton whose child_task_instruction_prefixes contains X".
func (idx *Index) Has(prefix string) bool {
	idx.mu.Lock()
	tree := idx.tree
	idx.mu.Unlock()
	_, ok := tree.Get([]byte(prefix))
	return ok
}
