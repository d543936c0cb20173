// Package storage implements the Storage Detector (spec.md §4.1):
// enumeration of task directories under configured storage roots,
// classification of each directory's file triple, and BOM/shape-
// tolerant reading of the three source files.
//
// Grounded on the teacher's directory-walking idiom in its source-code
// walker (filepath.WalkDir + glob include/exclude + a reserved-name
// skip list), retargeted from "walk source files for indexing" to
// "walk immediate subdirectories shaped like task IDs".
package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"

	"github.com/ternarybob/taskgraph/internal/errs"
	"github.com/ternarybob/taskgraph/internal/fileutil"
)

const (
	metadataFile = "task_metadata.json"
	uiLogFile    = "ui_messages.json"
	apiLogFile   = "api_conversation_history.json"
)

// reservedNames are directory names under a storage root that are
// never task directories, even if they happen to match taskIDPattern.
var reservedNames = map[string]bool{
	".skeleton-cache": true,
	".git":            true,
	"node_modules":    true,
}

// taskIDPattern is a permissive opaque-UUID-shape test (spec.md §3:
// "opaque UUID-shaped identifier"); hyphenated hex is the common case
// but hosts have shipped other opaque token shapes, so this only
// rejects the reserved/hidden names rather than enforcing strict UUID
// syntax.
var taskIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// TaskDir identifies one candidate task directory.
type TaskDir struct {
	TaskID string
	Path   string
}

// Triple holds the raw bytes (or absence) of a task's three source
// files, BOM-stripped at read time.
type Triple struct {
	Metadata    []byte
	MetadataOK  bool
	UILog       []byte
	UILogOK     bool
	APILog      []byte
	APILogOK    bool
}

// Detector enumerates task directories under one or more storage roots.
type Detector struct {
	roots []string
}

// New creates a Detector over the given storage roots.
func New(roots []string) *Detector {
	return &Detector{roots: roots}
}

// ScanAll returns every task directory found under the configured
// roots. Order is unspecified; a directory whose name does not look
// like a task ID, is hidden/reserved, or contains no metadata record is
// excluded. The scan is restartable: it holds no state across calls.
// Errors reading one root never abort the scan of the others.
func (d *Detector) ScanAll(ctx context.Context) ([]TaskDir, []*errs.TaskError) {
	var (
		dirs     []TaskDir
		problems []*errs.TaskError
	)

	for _, root := range d.roots {
		select {
		case <-ctx.Done():
			problems = append(problems, errs.New(errs.Cancelled, "", ctx.Err()))
			return dirs, problems
		default:
		}

		entries, err := os.ReadDir(root)
		if err != nil {
			problems = append(problems, errs.New(errs.SourceIO, root, err))
			continue
		}

		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			name := e.Name()
			if reservedNames[name] || len(name) == 0 || name[0] == '.' {
				continue
			}
			if !taskIDPattern.MatchString(name) {
				continue
			}

			dirPath := filepath.Join(root, name)
			if !fileutil.IsFile(filepath.Join(dirPath, metadataFile)) {
				continue
			}

			dirs = append(dirs, TaskDir{TaskID: name, Path: dirPath})
		}
	}

	return dirs, problems
}

// OpenTriple reads the metadata, UI-log, and API-log files for one task
// directory. Each is independently optional: absence is not an error,
// it is encoded as the corresponding *OK flag being false.
func OpenTriple(dir TaskDir) (Triple, error) {
	var t Triple

	if b, ok, err := readOptional(filepath.Join(dir.Path, metadataFile)); err != nil {
		return t, err
	} else {
		t.Metadata, t.MetadataOK = b, ok
	}

	if b, ok, err := readOptional(filepath.Join(dir.Path, uiLogFile)); err != nil {
		return t, err
	} else {
		t.UILog, t.UILogOK = b, ok
	}

	if b, ok, err := readOptional(filepath.Join(dir.Path, apiLogFile)); err != nil {
		return t, err
	} else {
		t.APILog, t.APILogOK = b, ok
	}

	return t, nil
}

func readOptional(path string) ([]byte, bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return bytes.TrimPrefix(b, []byte{0xEF, 0xBB, 0xBF}), true, nil
}
