// Package service implements the tool-call surface of spec.md §6.3 as a
// plain in-process Go API: a thin façade over the storage detector,
// skeleton cache, hierarchy engine, forest, and chunker. No
// dispatch/transport logic lives here — exposing these operations to an
// external client is explicitly out of core scope.
package service

import (
	"context"
	"sync"

	"github.com/ternarybob/taskgraph/internal/cache"
	"github.com/ternarybob/taskgraph/internal/chunk"
	"github.com/ternarybob/taskgraph/internal/config"
	"github.com/ternarybob/taskgraph/internal/errs"
	"github.com/ternarybob/taskgraph/internal/forest"
	"github.com/ternarybob/taskgraph/internal/hierarchy"
	"github.com/ternarybob/taskgraph/internal/radixindex"
	"github.com/ternarybob/taskgraph/internal/skeleton"
	"github.com/ternarybob/taskgraph/internal/storage"
	"github.com/ternarybob/taskgraph/internal/uimessage"
)

// Summary is the response shape of RebuildSkeletonCache.
type Summary struct {
	Built      int `json:"built"`
	Skipped    int `json:"skipped"`
	Errored    int `json:"errors"`
	DurationMs int64 `json:"duration_ms"`
	Resolved   int `json:"resolved"`
	Unresolved int `json:"unresolved"`
}

// ErrNotFound is returned by GetSkeleton when task_id is unknown.
var ErrNotFound = errs.New(errs.SourceIO, "", notFoundError{})

type notFoundError struct{}

func (notFoundError) Error() string { return "task not found" }

// Service wires together every component needed to answer §6.3's
// operations. It owns the forest snapshot produced by the most recent
// rebuild; navigation calls read that snapshot without re-resolving.
type Service struct {
	cfg      *config.Config
	store    *cache.Store
	detector *storage.Detector

	mu    sync.RWMutex
	tree  *forest.Forest
}

// New creates a Service from a loaded configuration. Callers must call
// RebuildSkeletonCache (or Load, to resume from a prior persisted
// cache plus a fresh Phase 1/2 pass) before navigation operations
// return anything.
func New(cfg *config.Config) *Service {
	return &Service{
		cfg:      cfg,
		store:    cache.New(cfg.Cache.SkeletonsFile(), cfg.Cache.HistoryDir()),
		detector: storage.New(cfg.Storage.Roots),
	}
}

// Load reads the persisted skeleton cache and re-runs Phase 1/Phase 2
// over it, without touching the filesystem's task directories. Useful
// for a fast warm start; a stale cache is still resolved fresh since
// hierarchy resolution is never itself persisted.
func (s *Service) Load() error {
	if err := s.store.Load(); err != nil {
		return err
	}
	s.resolve()
	return nil
}

// RebuildSkeletonCache runs §4.1/§4.6/§4.7's scan-and-build pass
// followed by §4.8/§4.9's index-and-resolve pass, and materializes a
// fresh forest (§6.3 `rebuild_skeleton_cache`).
func (s *Service) RebuildSkeletonCache(ctx context.Context, forceRebuild bool) (Summary, *errs.OperationError) {
	report, opErr := s.store.BuildOrRefresh(ctx, s.detector, cache.BuildOrRefreshOpts{
		ForceRebuild: forceRebuild || s.cfg.Cache.ForceRebuild,
		PrefixLength: s.cfg.Hierarchy.PrefixLength,
	})
	if opErr != nil {
		return Summary{}, opErr
	}

	p2 := s.resolve()

	return Summary{
		Built:      report.Built,
		Skipped:    report.Skipped,
		Errored:    report.Errored,
		DurationMs: report.DurationMs,
		Resolved:   p2.Resolved,
		Unresolved: p2.Unresolved,
	}, nil
}

// resolve runs Phase 1 + Phase 2 over the current cache contents and
// rebuilds the forest snapshot.
func (s *Service) resolve() hierarchy.Phase2Report {
	skeletons := make(map[string]*skeleton.Skeleton)
	for _, sk := range s.store.All() {
		skeletons[sk.TaskID] = sk
	}

	idx := radixindex.New()
	concurrency := s.cfg.Storage.ScanConcurrency
	hierarchy.Phase1(context.Background(), skeletons, idx, concurrency)
	p2 := hierarchy.Phase2(skeletons, idx, []string(s.cfg.Hierarchy.RootPatterns), s.cfg.Hierarchy.PrefixLength)

	tree := forest.Build(skeletons)

	s.mu.Lock()
	s.tree = tree
	s.mu.Unlock()

	return p2
}

// GetSkeleton returns one task's skeleton, or ErrNotFound.
func (s *Service) GetSkeleton(taskID string) (*skeleton.Skeleton, error) {
	sk, ok := s.store.Get(taskID)
	if !ok {
		return nil, ErrNotFound
	}
	return sk, nil
}

// ListRoots returns every root task_id; if workspace is non-empty, only
// roots in that workspace.
func (s *Service) ListRoots(workspace string) []string {
	s.mu.RLock()
	tree := s.tree
	s.mu.RUnlock()
	if tree == nil {
		return nil
	}
	if workspace == "" {
		return tree.Roots()
	}
	return tree.RootsIn(workspace)
}

// ChildrenOf returns taskID's direct children.
func (s *Service) ChildrenOf(taskID string) []string {
	s.mu.RLock()
	tree := s.tree
	s.mu.RUnlock()
	if tree == nil {
		return nil
	}
	return tree.ChildrenOf(taskID)
}

// AncestorsOf returns taskID's ancestor chain, root-first.
func (s *Service) AncestorsOf(taskID string) []string {
	s.mu.RLock()
	tree := s.tree
	s.mu.RUnlock()
	if tree == nil {
		return nil
	}
	return tree.AncestorsOf(taskID)
}

// DescendantsOf returns taskID's descendants, BFS-bounded.
func (s *Service) DescendantsOf(taskID string, maxDepth, maxNodes int) []string {
	s.mu.RLock()
	tree := s.tree
	s.mu.RUnlock()
	if tree == nil {
		return nil
	}
	return tree.DescendantsOf(taskID, maxDepth, maxNodes)
}

// ChunksOf re-reads taskID's UI log and chunks it for the search-index
// collaborator (§6.3 `chunks_of`).
func (s *Service) ChunksOf(taskID string, hostIdentifier string) ([]chunk.Chunk, error) {
	sk, err := s.GetSkeleton(taskID)
	if err != nil {
		return nil, err
	}

	dirs, problems := s.detector.ScanAll(context.Background())
	for _, p := range problems {
		if p.Kind == errs.Cancelled {
			return nil, p
		}
	}

	var dir storage.TaskDir
	found := false
	for _, d := range dirs {
		if d.TaskID == taskID {
			dir, found = d, true
			break
		}
	}
	if !found {
		return nil, ErrNotFound
	}

	triple, err := storage.OpenTriple(dir)
	if err != nil {
		return nil, errs.New(errs.SourceIO, taskID, err)
	}
	if !triple.UILogOK {
		return nil, nil
	}

	messages := uimessage.Parse(triple.UILog)
	return chunk.ChunkMessages(taskID, messages, chunk.Options{
		Workspace:      sk.Workspace,
		TaskTitle:      sk.TruncatedInstruction,
		HostIdentifier: hostIdentifier,
	}), nil
}
