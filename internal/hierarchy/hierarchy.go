// Package hierarchy implements the Hierarchy Engine's two phases
// (spec.md §4.8, §4.9): indexing every declared child-instruction
// prefix into a radix tree, then resolving each task's parent by
// exact-prefix lookup under workspace, temporal, and cycle guards.
package hierarchy

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/ternarybob/taskgraph/internal/errs"
	"github.com/ternarybob/taskgraph/internal/normalize"
	"github.com/ternarybob/taskgraph/internal/radixindex"
	"github.com/ternarybob/taskgraph/internal/skeleton"
)

// Phase1Report summarizes one indexing pass (spec.md §4.8).
type Phase1Report struct {
	Processed      int
	Parsed         int
	TotalInsertions int
	IndexSize      int
	Problems       []*errs.TaskError
}

// Phase1 builds the Instruction Index from a skeleton map. Order of
// iteration is irrelevant to the result (spec.md §4.8); skeletons are
// still fanned out across a bounded worker pool so a large corpus does
// not index single-threaded.
func Phase1(ctx context.Context, skeletons map[string]*skeleton.Skeleton, idx *radixindex.Index, concurrency int) Phase1Report {
	if concurrency < 1 {
		concurrency = 1
	}

	type job struct{ sk *skeleton.Skeleton }

	jobs := make(chan job)
	var wg sync.WaitGroup

	var mu sync.Mutex
	report := Phase1Report{}

	worker := func() {
		defer wg.Done()
		for j := range jobs {
			select {
			case <-ctx.Done():
				continue
			default:
			}

			sk := j.sk
			insertions := 0
			for _, prefix := range sk.ChildTaskInstructionPrefixes {
				idx.Insert(prefix, sk.TaskID, sk.TruncatedInstruction, sk.CreatedAt)
				insertions++
			}

			mu.Lock()
			report.Processed++
			if insertions > 0 {
				report.Parsed++
			}
			report.TotalInsertions += insertions
			mu.Unlock()
		}
	}

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go worker()
	}

	for _, sk := range skeletons {
		select {
		case <-ctx.Done():
			break
		case jobs <- job{sk: sk}:
		}
	}
	close(jobs)
	wg.Wait()

	report.IndexSize = idx.Len()
	return report
}

// Phase2Report summarizes one resolution pass (spec.md §4.9).
type Phase2Report struct {
	Processed  int
	Resolved   int
	Unresolved int
	ByMethod   map[skeleton.ResolutionMethod]int
	Problems   []*errs.TaskError
}

// Phase2 resolves reconstructed_parent_id, parent_resolution_method,
// and is_root_task for every skeleton in the map, mutating the
// skeletons in place. It follows spec.md §4.9's four-step procedure per
// task and its mandated two-pass candidate-then-install cycle
// rejection: every task's single best candidate is computed first
// against the map's ORIGINAL parent links only, then candidates are
// installed one at a time in an order that never closes a cycle,
// rejecting (falling back to unresolved) any link whose installation
// would.
func Phase2(skeletons map[string]*skeleton.Skeleton, idx *radixindex.Index, roots []string, prefixLength int) Phase2Report {
	report := Phase2Report{ByMethod: map[skeleton.ResolutionMethod]int{}}

	type candidate struct {
		taskID        string
		parentID      string
		method        skeleton.ResolutionMethod
		trustExisting bool
	}

	var candidates []candidate

	for _, c := range skeletons {
		report.Processed++

		// Reset on every pass: skeletons are long-lived objects that may
		// be re-resolved (e.g. after a warm-start Load), and a stale
		// trusted flag from a prior pass must never leak into this one.
		c.ParentTaskIDTrusted = false

		if isRootInstruction(c.TruncatedInstruction, roots) {
			c.IsRootTask = true
			c.ParentResolutionMethod = skeleton.ResolutionRootDetected
			c.ReconstructedParentID = ""
			candidates = append(candidates, candidate{taskID: c.TaskID, method: skeleton.ResolutionRootDetected})
			continue
		}

		if c.ParentTaskID != "" {
			if _, exists := skeletons[c.ParentTaskID]; exists && !wouldCycle(skeletons, c.TaskID, c.ParentTaskID) {
				candidates = append(candidates, candidate{taskID: c.TaskID, method: skeleton.ResolutionNone, trustExisting: true})
				continue
			}
		}

		// c.ParentTaskID, if any, is dangling or would close a cycle:
		// it is explicitly rejected (ParentTaskIDTrusted stays false)
		// even though the field itself is left populated below.
		normalized := normalize.Normalize(c.TruncatedInstruction, prefixLength)
		best := pickCandidate(c, normalized, skeletons, idx)
		if best == "" {
			c.ParentResolutionMethod = skeleton.ResolutionNone
			c.ReconstructedParentID = ""
			c.IsRootTask = false
			candidates = append(candidates, candidate{taskID: c.TaskID, method: skeleton.ResolutionNone})
			continue
		}

		candidates = append(candidates, candidate{taskID: c.TaskID, parentID: best, method: skeleton.ResolutionRadixExact})
	}

	// Two-pass install: radix-exact links are the only ones that can
	// introduce a NEW edge (root_detected/trust-existing never do), so
	// only those need cycle re-validation at install time against the
	// progressively-installed forest. Sort by task_id for determinism.
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].taskID < candidates[j].taskID })

	for _, cand := range candidates {
		c := skeletons[cand.taskID]
		switch cand.method {
		case skeleton.ResolutionRootDetected:
			report.Resolved++
			report.ByMethod[skeleton.ResolutionRootDetected]++
		case skeleton.ResolutionNone:
			if cand.trustExisting {
				// trusted existing host-provided parent: nothing to
				// install, just mark ParentTaskID as honorable.
				c.ParentTaskIDTrusted = true
				report.Resolved++
			} else {
				report.Unresolved++
				report.ByMethod[skeleton.ResolutionNone]++
			}
		default:
			if wouldCycle(skeletons, cand.taskID, cand.parentID) {
				c.ReconstructedParentID = ""
				c.ParentResolutionMethod = skeleton.ResolutionNone
				c.IsRootTask = false
				report.Unresolved++
				report.ByMethod[skeleton.ResolutionNone]++
				continue
			}
			c.ReconstructedParentID = cand.parentID
			c.ParentResolutionMethod = skeleton.ResolutionRadixExact
			c.IsRootTask = false
			report.Resolved++
			report.ByMethod[skeleton.ResolutionRadixExact]++
		}
	}

	return report
}

// pickCandidate runs spec.md §4.9 step 3's survivor filter and
// closest-but-not-after tie-break.
func pickCandidate(c *skeleton.Skeleton, normalized string, skeletons map[string]*skeleton.Skeleton, idx *radixindex.Index) string {
	decls := idx.LookupExact(normalized)
	if len(decls) == 0 {
		return ""
	}

	var best *skeleton.Skeleton
	for _, d := range decls {
		p, ok := skeletons[d.ParentTaskID]
		if !ok {
			continue
		}
		if p.TaskID == c.TaskID {
			continue
		}
		if p.Workspace != c.Workspace {
			continue
		}
		if p.CreatedAt > c.LastActivity {
			continue
		}
		if p.CreatedAt > c.CreatedAt {
			continue
		}

		if best == nil {
			best = p
			continue
		}
		if p.CreatedAt > best.CreatedAt {
			best = p
			continue
		}
		if p.CreatedAt == best.CreatedAt && p.TaskID < best.TaskID {
			best = p
		}
	}

	if best == nil {
		return ""
	}
	return best.TaskID
}

// wouldCycle reports whether adding the edge child -> parent would
// create a cycle, by walking parent's existing ancestor chain looking
// for child. This pre-check runs before ParentTaskIDTrusted has been
// decided for the current pass (candidates are computed against
// original parent links only, per spec.md §5's two-pass rule), so it
// walks rawParentID rather than the trust-aware EffectiveParentID.
func wouldCycle(skeletons map[string]*skeleton.Skeleton, childID, parentID string) bool {
	seen := map[string]bool{}
	cur := parentID
	for cur != "" {
		if cur == childID {
			return true
		}
		if seen[cur] {
			return false // already-cyclic data elsewhere; not this edge's fault
		}
		seen[cur] = true
		p, ok := skeletons[cur]
		if !ok {
			return false
		}
		cur = rawParentID(p)
	}
	return false
}

// rawParentID returns a skeleton's best-known parent link without
// regard to trust: the host-provided ParentTaskID if present,
// otherwise any already-reconstructed parent from a prior pass. Used
// only for Phase 2's pre-install cycle checks, which must see
// candidate edges that have not been validated yet.
func rawParentID(s *skeleton.Skeleton) string {
	if s.ParentTaskID != "" {
		return s.ParentTaskID
	}
	return s.ReconstructedParentID
}

func isRootInstruction(instruction string, patterns []string) bool {
	lower := normalize.Normalize(instruction, normalize.DefaultPrefixLength)
	for _, p := range patterns {
		if strings.HasPrefix(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
