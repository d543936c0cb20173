// Package skeleton defines the Skeleton type (spec.md §3) and the
// Skeleton Builder (spec.md §4.6): the derived, cacheable summary of
// one task.
package skeleton

// ResolutionMethod records how (or whether) a skeleton's parent was
// determined by the Hierarchy Engine (spec.md §4.9).
type ResolutionMethod string

const (
	ResolutionRootDetected ResolutionMethod = "root_detected"
	ResolutionRadixExact   ResolutionMethod = "radix_tree_exact"
	ResolutionNone         ResolutionMethod = "none"
)

// AbsentChecksum is the distinguished checksum value used when one of
// the three source files is absent (spec.md §4.6, §6.1).
const AbsentChecksum = "absent"

// Checksums holds the content hashes of a task's three source files,
// used by the cache to decide whether to rebuild a skeleton.
type Checksums struct {
	UILog    string `json:"ui_log"`
	APILog   string `json:"api_log"`
	Metadata string `json:"metadata"`
}

// Equal reports whether two Checksums are identical.
func (c Checksums) Equal(o Checksums) bool {
	return c.UILog == o.UILog && c.APILog == o.APILog && c.Metadata == o.Metadata
}

// Skeleton is the cached unit (spec.md §3).
type Skeleton struct {
	TaskID       string `json:"task_id"`
	Workspace    string `json:"workspace"`
	CreatedAt    int64  `json:"created_at"`
	LastActivity int64  `json:"last_activity"`

	// TruncatedInstruction is the first ~200 chars of this task's own
	// initial instruction, preserved in human-readable (non-normalized)
	// form; normalization happens at lookup/index time, not storage
	// time.
	TruncatedInstruction string `json:"truncated_instruction"`

	// ChildTaskInstructionPrefixes is what THIS task declared as
	// children: normalized prefixes of every new_task invocation found
	// in its UI log.
	ChildTaskInstructionPrefixes []string `json:"child_task_instruction_prefixes"`

	ParentTaskID string `json:"parent_task_id,omitempty"`

	// ParentTaskIDTrusted records whether Phase 2 validated
	// ParentTaskID (it names another known task and does not close a
	// cycle). ParentTaskID itself is never cleared on rejection, so it
	// remains available for inspection; this flag is what callers must
	// consult before following it. Zero value (false) is the safe
	// default: an un-resolved skeleton is never mistaken for one with a
	// trusted host-provided parent.
	ParentTaskIDTrusted bool `json:"parent_task_id_trusted"`

	ReconstructedParentID   string           `json:"reconstructed_parent_id,omitempty"`
	ParentResolutionMethod  ResolutionMethod `json:"parent_resolution_method"`
	IsRootTask              bool             `json:"is_root_task"`

	SourceChecksums Checksums `json:"source_checksums"`

	MessageCount int   `json:"message_count"`
	ActionCount  int   `json:"action_count"`
	TotalSize    int64 `json:"total_size"`
}

// EffectiveParentID returns the parent to use for forest construction:
// the host-provided ParentTaskID if Phase 2 trusted it, otherwise the
// engine's ReconstructedParentID. Empty means the task is a root. A
// ParentTaskID that Phase 2 examined and rejected (dangling, or would
// close a cycle) is never returned here even though it is still
// present on the struct.
func (s *Skeleton) EffectiveParentID() string {
	if s.ParentTaskID != "" && s.ParentTaskIDTrusted {
		return s.ParentTaskID
	}
	return s.ReconstructedParentID
}
