package skeleton

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/tidwall/gjson"

	"github.com/ternarybob/taskgraph/internal/errs"
	"github.com/ternarybob/taskgraph/internal/extract"
	"github.com/ternarybob/taskgraph/internal/normalize"
	"github.com/ternarybob/taskgraph/internal/storage"
	"github.com/ternarybob/taskgraph/internal/uimessage"
)

// truncatedInstructionLength is the "~200 chars" bound from spec.md §4.6.
const truncatedInstructionLength = 200

// Build assembles one task's Skeleton from its raw source triple
// (spec.md §4.6). Per-file absence or malformed content never aborts
// the build: a missing or unparsable file degrades the corresponding
// fields and is reported as a *errs.TaskError, but a Skeleton is always
// returned.
func Build(taskID string, triple storage.Triple, prefixLength int) (*Skeleton, []*errs.TaskError) {
	var problems []*errs.TaskError

	s := &Skeleton{
		TaskID: taskID,
		SourceChecksums: Checksums{
			Metadata: checksum(triple.Metadata, triple.MetadataOK),
			UILog:    checksum(triple.UILog, triple.UILogOK),
			APILog:   checksum(triple.APILog, triple.APILogOK),
		},
		ParentResolutionMethod: ResolutionNone,
	}

	if triple.MetadataOK {
		if !gjson.ValidBytes(triple.Metadata) {
			problems = append(problems, errs.New(errs.SourceMalformed, taskID, errMalformedMetadata))
		} else {
			applyMetadata(s, triple.Metadata)
		}
	}

	var messages []uimessage.Message
	if triple.UILogOK {
		messages = uimessage.Parse(triple.UILog)
		s.MessageCount = len(messages)
	}

	s.TotalSize = int64(len(triple.Metadata) + len(triple.UILog) + len(triple.APILog))

	if s.TruncatedInstruction == "" {
		s.TruncatedInstruction = firstInstructionFromMessages(messages)
	}
	s.TruncatedInstruction = truncateRunes(s.TruncatedInstruction, truncatedInstructionLength)

	insts, extractProblems := extract.Extract(taskID, messages)
	problems = append(problems, extractProblems...)

	s.ChildTaskInstructionPrefixes = make([]string, 0, len(insts))
	for _, inst := range insts {
		s.ChildTaskInstructionPrefixes = append(s.ChildTaskInstructionPrefixes, normalize.Normalize(inst.Message, prefixLength))
	}
	s.ActionCount = len(insts)

	return s, problems
}

// metadataField tries each candidate JSON path in order and returns the
// first present one. Hosts have shipped both snake_case and camelCase
// metadata records (spec.md §4.1 notes format drift across host
// versions); this keeps the builder tolerant of both without a strict
// schema.
func metadataField(raw []byte, candidates ...string) gjson.Result {
	for _, path := range candidates {
		if r := gjson.GetBytes(raw, path); r.Exists() {
			return r
		}
	}
	return gjson.Result{}
}

func applyMetadata(s *Skeleton, raw []byte) {
	if v := metadataField(raw, "workspace", "workspace_path", "cwd"); v.Exists() {
		s.Workspace = v.String()
	}
	if v := metadataField(raw, "created_at", "createdAt"); v.Exists() {
		s.CreatedAt = v.Int()
	}
	if v := metadataField(raw, "last_activity", "lastActivity", "updated_at", "updatedAt"); v.Exists() {
		s.LastActivity = v.Int()
	} else {
		s.LastActivity = s.CreatedAt
	}
	if v := metadataField(raw, "parent_task_id", "parentTaskId"); v.Exists() {
		s.ParentTaskID = v.String()
	}
	if v := metadataField(raw, "instruction", "task", "title"); v.Exists() {
		s.TruncatedInstruction = v.String()
	}
}

// firstInstructionFromMessages falls back to the first ask=tool-free,
// human-authored say in the UI log when the metadata record carries no
// instruction field of its own.
func firstInstructionFromMessages(messages []uimessage.Message) string {
	for _, m := range messages {
		if m.Kind == uimessage.KindOther && m.Text != "" {
			return m.Text
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Checksum computes the content hash used for one source file's entry
// in Checksums, or the distinguished AbsentChecksum when present is
// false. Exported so callers deciding whether to rebuild a cached
// skeleton (internal/cache) can compute a comparable checksum without
// running a full Build.
func Checksum(data []byte, present bool) string {
	if !present {
		return AbsentChecksum
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func checksum(data []byte, present bool) string { return Checksum(data, present) }

type malformedMetadataError struct{}

func (malformedMetadataError) Error() string { return "task_metadata.json is not valid JSON" }

var errMalformedMetadata = malformedMetadataError{}
