// Package forest implements the Tree Builder / Navigator (spec.md
// §4.10): a derived, in-memory, read-only snapshot of parent/child
// relationships over a resolved skeleton map.
//
// Adapted from the teacher's DependencyGraph (mutex-protected adjacency
// maps, sorted-for-determinism traversal) and from the job-genealogy
// ParentID/ChildIDs/Generation field convention found elsewhere in the
// pack: children_of/ancestors_of/depth_of map directly onto that shape.
package forest

import (
	"fmt"
	"sort"

	"github.com/ternarybob/taskgraph/internal/skeleton"
)

// Forest is a read-only snapshot of the parent/child relationships
// across a resolved skeleton map. Construction panics if the input
// contains a cycle: Phase 2 is documented to guarantee acyclicity, so a
// cycle reaching this point is a programming error, not a recoverable
// runtime condition (spec.md §4.10).
type Forest struct {
	skeletons map[string]*skeleton.Skeleton
	children  map[string][]string // parent_id -> sorted child task_ids
	roots     []string            // sorted
}

// Build materializes a Forest from a resolved skeleton map. Every
// non-root skeleton's EffectiveParentID must reference another entry in
// the same map.
func Build(skeletons map[string]*skeleton.Skeleton) *Forest {
	f := &Forest{
		skeletons: skeletons,
		children:  make(map[string][]string),
	}

	for id, sk := range skeletons {
		parent := sk.EffectiveParentID()
		if parent == "" {
			f.roots = append(f.roots, id)
			continue
		}
		if _, ok := skeletons[parent]; !ok {
			// Dangling parent reference: treat as root rather than
			// silently dropping the task from every navigation query.
			f.roots = append(f.roots, id)
			continue
		}
		f.children[parent] = append(f.children[parent], id)
	}

	sort.Strings(f.roots)
	for p := range f.children {
		sort.Strings(f.children[p])
	}

	f.assertAcyclic()
	return f
}

// assertAcyclic walks every node's ancestor chain; a chain that never
// terminates at a root within len(skeletons) hops means a cycle
// survived Phase 2, which should be impossible.
func (f *Forest) assertAcyclic() {
	for id := range f.skeletons {
		seen := make(map[string]bool, len(f.skeletons))
		cur := id
		for i := 0; i <= len(f.skeletons); i++ {
			if cur == "" {
				break
			}
			if seen[cur] {
				panic(fmt.Sprintf("forest: cycle detected through task %q; Phase 2 is documented to guarantee acyclicity", cur))
			}
			seen[cur] = true
			sk, ok := f.skeletons[cur]
			if !ok {
				break
			}
			cur = sk.EffectiveParentID()
		}
	}
}

// ChildrenOf returns the direct children of id, sorted by task_id.
func (f *Forest) ChildrenOf(id string) []string {
	return append([]string(nil), f.children[id]...)
}

// AncestorsOf returns id's ancestor chain, root-first, excluding id
// itself.
func (f *Forest) AncestorsOf(id string) []string {
	var chain []string
	sk, ok := f.skeletons[id]
	if !ok {
		return nil
	}
	cur := sk.EffectiveParentID()
	for cur != "" {
		next, ok := f.skeletons[cur]
		if !ok {
			break
		}
		chain = append(chain, cur)
		cur = next.EffectiveParentID()
	}
	// reverse to root-first
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// DescendantsOf returns every descendant of id via breadth-first
// traversal, bounded by maxDepth (0 = unbounded) and maxNodes (0 =
// unbounded).
func (f *Forest) DescendantsOf(id string, maxDepth, maxNodes int) []string {
	var out []string
	type frame struct {
		id    string
		depth int
	}
	queue := []frame{{id: id, depth: 0}}
	visited := map[string]bool{id: true}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, child := range f.children[cur.id] {
			if visited[child] {
				continue
			}
			if maxDepth > 0 && cur.depth+1 > maxDepth {
				continue
			}
			visited[child] = true
			out = append(out, child)
			if maxNodes > 0 && len(out) >= maxNodes {
				return out
			}
			queue = append(queue, frame{id: child, depth: cur.depth + 1})
		}
	}
	return out
}

// DepthOf returns id's depth (0 for a root) in the forest, or -1 if id
// is not present.
func (f *Forest) DepthOf(id string) int {
	if _, ok := f.skeletons[id]; !ok {
		return -1
	}
	return len(f.AncestorsOf(id))
}

// RootsIn returns every root task_id whose workspace equals workspace,
// sorted. An empty workspace argument matches roots with an empty
// workspace only, consistent with Phase 2's workspace-isolation rule.
func (f *Forest) RootsIn(workspace string) []string {
	var out []string
	for _, id := range f.roots {
		if f.skeletons[id].Workspace == workspace {
			out = append(out, id)
		}
	}
	return out
}

// Roots returns every root task_id, sorted, regardless of workspace.
func (f *Forest) Roots() []string {
	return append([]string(nil), f.roots...)
}

