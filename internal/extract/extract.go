// Package extract implements the Subtask-Instruction Extractor
// (spec.md §4.3): fault-tolerant extraction of child-task invocations
// from a task's UI-message sequence, via two recognizers run in
// parallel, R1 (tool-invocation form) and R2 (API-request form).
package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ternarybob/taskgraph/internal/errs"
	"github.com/ternarybob/taskgraph/internal/uimessage"
)

// MinMessageLength is the minimum accepted length of an extracted
// instruction (spec.md §3: "at least a minimum length (≥ ~20 chars) —
// shorter extracts are dropped as noise").
const MinMessageLength = 20

// Instruction is an extracted Subtask Instruction record (spec.md §3).
type Instruction struct {
	Mode      string
	Message   string
	Timestamp int64
}

// apiReqPattern matches `[new_task in <mode>: '<body>']`, both quote
// styles, body may span newlines and contain escaped quotes. Grounded
// on the bracketed-tag regex idiom in
// other_examples/…wesm-agentsview__internal-parser-claude.go.go
// (xmlTaskIDRe/xmlToolUseRe), generalized to a quoted body. The mode
// group is non-greedy and a trailing " mode" (spec.md §3's tagged form
// is `[new_task in <MODE_LABEL> mode: '<INSTRUCTION>']`) is consumed
// outside the capture so it never ends up in the label itself.
var apiReqPattern = regexp.MustCompile(
	`(?s)\[new_task in ([^:\]]+?)(?:\s+mode)?: ['"](.*?)['"]\]`,
)

// Extract runs both recognizers over a message sequence and returns the
// deduplicated instructions plus any per-message errors encountered.
// Malformed JSON inside one message's text is non-fatal: that message
// contributes nothing and extraction continues (spec.md §4.3).
func Extract(taskID string, messages []uimessage.Message) ([]Instruction, []*errs.TaskError) {
	var (
		found    []Instruction
		problems []*errs.TaskError
	)

	for _, m := range messages {
		switch m.Kind {
		case uimessage.KindToolAsk:
			inst, err := extractR1(m)
			if err != nil {
				problems = append(problems, errs.New(errs.ExtractionPartial, taskID, err))
				continue
			}
			if inst != nil {
				found = append(found, *inst)
			}
		case uimessage.KindAPIReqStarted:
			insts, err := extractR2(m)
			if err != nil {
				problems = append(problems, errs.New(errs.ExtractionPartial, taskID, err))
				continue
			}
			found = append(found, insts...)
		}
	}

	return dedupe(found), problems
}

type toolInvocation struct {
	Tool    string `json:"tool"`
	Mode    string `json:"mode"`
	Content string `json:"content"`
}

// extractR1 parses the tool-invocation form. Returns (nil, nil) when the
// message does not carry a new-task invocation or is below the minimum
// length — neither case is an error.
func extractR1(m uimessage.Message) (*Instruction, error) {
	if m.Text == "" {
		return nil, nil
	}
	if !json.Valid([]byte(m.Text)) {
		return nil, errMalformedText
	}

	var inv toolInvocation
	if err := json.Unmarshal([]byte(m.Text), &inv); err != nil {
		return nil, err
	}

	if inv.Tool != "newTask" && inv.Tool != "new_task" {
		return nil, nil
	}
	if len(inv.Content) < MinMessageLength {
		return nil, nil
	}

	return &Instruction{
		Mode:      normalizeMode(inv.Mode),
		Message:   inv.Content,
		Timestamp: m.Timestamp,
	}, nil
}

// extractR2 parses the api_req_started form: the text field is JSON
// whose `request` string may contain one or more bracketed
// `[new_task in MODE: 'BODY']` fragments.
func extractR2(m uimessage.Message) ([]Instruction, error) {
	if m.Text == "" {
		return nil, nil
	}
	if !json.Valid([]byte(m.Text)) {
		return nil, errMalformedText
	}

	request := gjson.Get(m.Text, "request")
	if !request.Exists() {
		return nil, nil
	}

	var out []Instruction
	for _, match := range apiReqPattern.FindAllStringSubmatch(request.String(), -1) {
		mode := match[1]
		body := unescapeQuotes(match[2])
		if len(body) < MinMessageLength {
			continue
		}
		out = append(out, Instruction{
			Mode:      normalizeMode(mode),
			Message:   body,
			Timestamp: m.Timestamp,
		})
	}

	return out, nil
}

var errMalformedText = malformedTextError{}

type malformedTextError struct{}

func (malformedTextError) Error() string { return "text field is not valid JSON" }

func unescapeQuotes(s string) string {
	s = strings.ReplaceAll(s, `\'`, `'`)
	s = strings.ReplaceAll(s, `\"`, `"`)
	return s
}

// normalizeMode strips characters used only to decorate a mode label
// (e.g. surrounding brackets or emoji) before lowercasing.
func normalizeMode(mode string) string {
	mode = strings.TrimSpace(mode)
	var b strings.Builder
	for _, r := range mode {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '-' || r == '_' || r == ' ' {
			b.WriteRune(r)
		}
	}
	return strings.ToLower(strings.TrimSpace(b.String()))
}

// dedupe collapses extracted instructions with identical (mode,
// first-200-chars-of-message) to one, the earlier timestamp winning
// (spec.md §4.3). Instructions from both recognizers are reconciled
// the same way.
func dedupe(instructions []Instruction) []Instruction {
	type key struct {
		mode   string
		prefix string
	}

	best := make(map[key]int) // key -> index into kept
	var kept []Instruction

	for _, inst := range instructions {
		k := key{mode: inst.Mode, prefix: first200(inst.Message)}
		if idx, ok := best[k]; ok {
			if inst.Timestamp < kept[idx].Timestamp {
				kept[idx] = inst
			}
			continue
		}
		best[k] = len(kept)
		kept = append(kept, inst)
	}

	return kept
}

func first200(s string) string {
	r := []rune(s)
	if len(r) > 200 {
		r = r[:200]
	}
	return string(r)
}
