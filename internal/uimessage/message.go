// Package uimessage implements the UI-Message Deserializer (spec.md §4.2).
//
// The source log may be a single JSON array, or line-delimited JSON. The
// deserializer tries strict JSON first; on failure it falls back to line
// mode and silently drops malformed lines. Per spec.md §9 ("Replacing
// dynamic typing on message records"), each recognized message is
// projected into one of a small closed set of variants at this boundary;
// all downstream code (the extractor) is polymorphic only over that set.
package uimessage

import (
	"bytes"
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Kind closes the set of message shapes the core recognizes.
type Kind string

const (
	// KindToolAsk is `type=ask, ask=tool` (spec.md §3, R1).
	KindToolAsk Kind = "tool_ask"
	// KindAPIReqStarted is `type=say, say=api_req_started` (spec.md §3, R2).
	KindAPIReqStarted Kind = "api_req_started"
	// KindOther is any message not recognized by a discriminator; the
	// extractor ignores it but the deserializer still yields it so
	// callers that need full fidelity (e.g. the chunker) can use it.
	KindOther Kind = "other"
)

// Message is the closed, deserializer-boundary projection of one raw
// record in the host's UI-message log.
type Message struct {
	Kind Kind
	// Type/Ask/Say are the raw discriminator fields, kept for chunking
	// and diagnostics; extraction logic only looks at Kind and Text.
	Type string
	Ask  string
	Say  string
	// Text is the raw `text` field, still JSON-encoded where the
	// discriminators above call for further parsing.
	Text string
	// Timestamp is the host-supplied numeric timestamp, 0 if absent.
	Timestamp int64
	// Raw is the original record bytes, for chunking.
	Raw []byte
}

func classify(raw []byte) Message {
	msg := Message{Raw: raw, Kind: KindOther}

	typ := gjson.GetBytes(raw, "type")
	if typ.Exists() {
		msg.Type = typ.String()
	}
	ask := gjson.GetBytes(raw, "ask")
	if ask.Exists() {
		msg.Ask = ask.String()
	}
	say := gjson.GetBytes(raw, "say")
	if say.Exists() {
		msg.Say = say.String()
	}
	if text := gjson.GetBytes(raw, "text"); text.Exists() {
		msg.Text = text.String()
	}
	if ts := gjson.GetBytes(raw, "ts"); ts.Exists() {
		msg.Timestamp = ts.Int()
	} else if ts := gjson.GetBytes(raw, "timestamp"); ts.Exists() {
		msg.Timestamp = ts.Int()
	}

	switch {
	case msg.Type == "ask" && msg.Ask == "tool":
		msg.Kind = KindToolAsk
	case msg.Type == "say" && msg.Say == "api_req_started":
		msg.Kind = KindAPIReqStarted
	}

	return msg
}

// Parse deserializes an entire UI-message log into a slice of messages.
// It tries a strict JSON array first; on failure it falls back to
// line-delimited JSON, silently dropping lines that do not parse.
// A log that is a bare JSON object (not an array) is also accepted as a
// single-message sequence, matching the "UI log that is []" and similar
// boundary cases in spec.md §8.
func Parse(data []byte) []Message {
	data = stripBOM(data)
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	if trimmed[0] == '[' {
		var raws []json.RawMessage
		if err := json.Unmarshal(trimmed, &raws); err == nil {
			messages := make([]Message, 0, len(raws))
			for _, r := range raws {
				messages = append(messages, classify(r))
			}
			return messages
		}
		// Fall through to line mode: a truncated array still yields
		// whatever complete line-delimited records can be recovered.
	}

	if trimmed[0] == '{' {
		if json.Valid(trimmed) {
			return []Message{classify(trimmed)}
		}
	}

	return parseLines(trimmed)
}

func parseLines(data []byte) []Message {
	var messages []Message
	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		line = bytes.TrimSuffix(line, []byte(","))
		if len(line) == 0 {
			continue
		}
		if line[0] == '[' || line[0] == ']' {
			continue
		}
		if !json.Valid(line) {
			continue
		}
		messages = append(messages, classify(line))
	}
	return messages
}

func stripBOM(data []byte) []byte {
	const bom0, bom1, bom2 = 0xEF, 0xBB, 0xBF
	if len(data) >= 3 && data[0] == bom0 && data[1] == bom1 && data[2] == bom2 {
		return data[3:]
	}
	return data
}
