// Package cache implements the Skeleton Cache (spec.md §4.7): an
// on-disk, content-hash-driven store of one skeleton per task, plus a
// Refresh Log of past build_or_refresh passes.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ternarybob/taskgraph/internal/errs"
	"github.com/ternarybob/taskgraph/internal/fileutil"
	"github.com/ternarybob/taskgraph/internal/skeleton"
	"github.com/ternarybob/taskgraph/internal/storage"
)

const cacheVersion = 1

// document is the on-disk shape written to the skeleton cache file.
type document struct {
	Version   int                            `json:"version"`
	Skeletons map[string]*skeleton.Skeleton `json:"skeletons"`
}

// Report summarizes one build_or_refresh pass (spec.md §4.7). ID
// correlates a pass across the Refresh Log and daemon log lines,
// independent of the millisecond-resolution Timestamp.
type Report struct {
	ID         string              `json:"id"`
	Built      int                 `json:"built"`
	Skipped    int                 `json:"skipped"`
	Errored    int                 `json:"errored"`
	DurationMs int64               `json:"duration_ms"`
	Timestamp  int64               `json:"timestamp"`
	Problems   []*errs.TaskError   `json:"-"`
}

// Store is the Skeleton Cache: a single logical map from task_id to
// skeleton, persisted under path. Every mutating operation holds mu for
// its duration; build_or_refresh is documented as single-writer
// (spec.md §4.7, §5) but the lock makes Get/Put/Delete safe for
// concurrent readers regardless.
type Store struct {
	mu        sync.RWMutex
	path      string
	historyDir string
	skeletons map[string]*skeleton.Skeleton
}

// New creates an empty, unloaded Store bound to path. historyDir, if
// non-empty, is where Refresh Log entries are written.
func New(path, historyDir string) *Store {
	return &Store{
		path:       path,
		historyDir: historyDir,
		skeletons:  make(map[string]*skeleton.Skeleton),
	}
}

// rawDocument is document with the skeletons left undecoded, so one
// malformed entry can be identified and skipped without failing the
// decode of every other entry alongside it.
type rawDocument struct {
	Version   int                        `json:"version"`
	Skeletons map[string]json.RawMessage `json:"skeletons"`
}

// Load reads the whole cache file into memory. A missing file is not an
// error — it yields an empty store, matching first-run behavior. Only
// the outer envelope is decoded in one shot; each skeleton entry is
// then decoded on its own, so one corrupt entry is dropped rather than
// discarding the whole file, per spec.md §4.7 ("on corrupt entries,
// drop those entries, never abort"). A file that isn't even valid JSON
// at the envelope level is reported as cache_corrupt and the store is
// left empty.
func (s *Store) Load() *errs.TaskError {
	if !fileutil.Exists(s.path) {
		return nil
	}

	raw, err := fileutil.ReadFile(s.path)
	if err != nil {
		return errs.New(errs.SourceIO, "", err)
	}

	var doc rawDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return errs.New(errs.CacheCorrupt, "", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.skeletons = make(map[string]*skeleton.Skeleton, len(doc.Skeletons))
	for id, entry := range doc.Skeletons {
		var sk skeleton.Skeleton
		if err := json.Unmarshal(entry, &sk); err != nil {
			continue
		}
		s.skeletons[id] = &sk
	}
	return nil
}

// Get returns a copy-by-pointer of one cached skeleton, or (nil, false).
func (s *Store) Get(taskID string) (*skeleton.Skeleton, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sk, ok := s.skeletons[taskID]
	return sk, ok
}

// Put inserts or replaces one cached skeleton. The change is held in
// memory only; call Save to persist it.
func (s *Store) Put(sk *skeleton.Skeleton) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skeletons[sk.TaskID] = sk
}

// Delete removes one cached skeleton, if present.
func (s *Store) Delete(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.skeletons, taskID)
}

// All returns a snapshot slice of every cached skeleton, sorted by
// task_id for deterministic iteration downstream.
func (s *Store) All() []*skeleton.Skeleton {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*skeleton.Skeleton, 0, len(s.skeletons))
	for _, sk := range s.skeletons {
		out = append(out, sk)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
	return out
}

// Save commits the entire in-memory map atomically (spec.md §4.7
// durability: "either an entire refresh cycle's updates are visible or
// none are"), via fileutil.AtomicWriteFile's temp-then-rename.
func (s *Store) Save() error {
	s.mu.RLock()
	doc := document{Version: cacheVersion, Skeletons: s.skeletons}
	raw, err := json.MarshalIndent(doc, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	return fileutil.AtomicWriteFile(s.path, raw)
}

// BuildOrRefreshOpts configures one refresh pass.
type BuildOrRefreshOpts struct {
	ForceRebuild bool
	PrefixLength int
}

// BuildOrRefresh scans every task under detector and rebuilds the
// skeleton for any task that is new, force-rebuilt, or whose source
// checksums have changed since the cached entry (spec.md §4.7). The
// resulting map is committed with a single Save call once the pass
// completes, so a crash mid-pass never leaves a half-updated cache
// visible to a subsequent Load.
func (s *Store) BuildOrRefresh(ctx context.Context, detector *storage.Detector, opts BuildOrRefreshOpts) (Report, *errs.OperationError) {
	start := nowFunc()

	dirs, scanProblems := detector.ScanAll(ctx)
	report := Report{ID: uuid.New().String(), Problems: scanProblems}
	for _, p := range scanProblems {
		if p.Kind == errs.Cancelled {
			return report, errs.Op(errs.Cancelled, p.Err)
		}
	}

	s.mu.RLock()
	existing := make(map[string]*skeleton.Skeleton, len(s.skeletons))
	for id, sk := range s.skeletons {
		existing[id] = sk
	}
	s.mu.RUnlock()

	next := make(map[string]*skeleton.Skeleton, len(dirs))

	for _, dir := range dirs {
		select {
		case <-ctx.Done():
			return report, errs.Op(errs.Cancelled, ctx.Err())
		default:
		}

		triple, err := storage.OpenTriple(dir)
		if err != nil {
			report.Errored++
			report.Problems = append(report.Problems, errs.New(errs.SourceIO, dir.TaskID, err))
			continue
		}

		if !opts.ForceRebuild {
			if cached, ok := existing[dir.TaskID]; ok {
				current := skeleton.Checksums{
					Metadata: skeleton.Checksum(triple.Metadata, triple.MetadataOK),
					UILog:    skeleton.Checksum(triple.UILog, triple.UILogOK),
					APILog:   skeleton.Checksum(triple.APILog, triple.APILogOK),
				}
				if cached.SourceChecksums.Equal(current) {
					next[dir.TaskID] = cached
					report.Skipped++
					continue
				}
			}
		}

		sk, buildProblems := skeleton.Build(dir.TaskID, triple, opts.PrefixLength)
		if len(buildProblems) > 0 {
			report.Errored++
			report.Problems = append(report.Problems, buildProblems...)
		}
		next[dir.TaskID] = sk
		report.Built++
	}

	s.mu.Lock()
	s.skeletons = next
	s.mu.Unlock()

	if err := s.Save(); err != nil {
		return report, errs.Op(errs.CacheWriteFailed, err)
	}

	report.DurationMs = nowFunc() - start
	report.Timestamp = nowFunc()

	if s.historyDir != "" {
		_ = s.appendHistory(report)
	}

	return report, nil
}

// nowFunc is overridable in tests; wall-clock time is not used for any
// decision logic, only for Report timing/timestamp metadata.
var nowFunc = func() int64 { return time.Now().UnixMilli() }

// historySeq disambiguates history file names when two passes land in
// the same millisecond (e.g. under test).
var historySeq int64

// appendHistory writes one Refresh Log entry, following
// pkg/index/lineage.go's one-file-per-event convention generalized from
// per-commit to per-refresh-pass.
func (s *Store) appendHistory(report Report) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return err
	}
	seq := atomic.AddInt64(&historySeq, 1)
	name := fmt.Sprintf("%d-%d.json", report.Timestamp, seq)
	return fileutil.WriteFile(filepath.Join(s.historyDir, name), raw)
}

// RecentHistory returns up to n Refresh Log entries, most recent first.
// Entries that fail to parse are skipped rather than aborting the read,
// matching pkg/index/lineage.go's Load() convention.
func (s *Store) RecentHistory(n int) ([]Report, error) {
	if s.historyDir == "" || !fileutil.IsDir(s.historyDir) {
		return nil, nil
	}

	entries, err := os.ReadDir(s.historyDir)
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() > entries[j].Name() })

	var out []Report
	for _, e := range entries {
		if len(out) >= n {
			break
		}
		raw, err := fileutil.ReadFile(filepath.Join(s.historyDir, e.Name()))
		if err != nil {
			continue
		}
		var r Report
		if err := json.Unmarshal(raw, &r); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
