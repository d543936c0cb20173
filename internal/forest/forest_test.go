package forest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/taskgraph/internal/skeleton"
)

func chain() map[string]*skeleton.Skeleton {
	return map[string]*skeleton.Skeleton{
		"A": {TaskID: "A", Workspace: "w"},
		"B": {TaskID: "B", Workspace: "w", ReconstructedParentID: "A"},
		"C": {TaskID: "C", Workspace: "w", ReconstructedParentID: "B"},
		"D": {TaskID: "D", Workspace: "w", ReconstructedParentID: "A"},
	}
}

func TestBuildChildrenAndRoots(t *testing.T) {
	f := Build(chain())
	assert.Equal(t, []string{"A"}, f.Roots())
	assert.Equal(t, []string{"B", "D"}, f.ChildrenOf("A"))
	assert.Equal(t, []string{"C"}, f.ChildrenOf("B"))
	assert.Empty(t, f.ChildrenOf("C"))
}

func TestAncestorsOfRootFirst(t *testing.T) {
	f := Build(chain())
	assert.Equal(t, []string{"A", "B"}, f.AncestorsOf("C"))
	assert.Empty(t, f.AncestorsOf("A"))
}

func TestDescendantsOfBFS(t *testing.T) {
	f := Build(chain())
	desc := f.DescendantsOf("A", 0, 0)
	assert.ElementsMatch(t, []string{"B", "C", "D"}, desc)
}

func TestDescendantsOfBoundedDepth(t *testing.T) {
	f := Build(chain())
	desc := f.DescendantsOf("A", 1, 0)
	assert.ElementsMatch(t, []string{"B", "D"}, desc)
}

func TestDepthOf(t *testing.T) {
	f := Build(chain())
	assert.Equal(t, 0, f.DepthOf("A"))
	assert.Equal(t, 1, f.DepthOf("B"))
	assert.Equal(t, 2, f.DepthOf("C"))
	assert.Equal(t, -1, f.DepthOf("nonexistent"))
}

func TestRootsInWorkspace(t *testing.T) {
	skeletons := chain()
	skeletons["E"] = &skeleton.Skeleton{TaskID: "E", Workspace: "other"}
	f := Build(skeletons)
	assert.Equal(t, []string{"A"}, f.RootsIn("w"))
	assert.Equal(t, []string{"E"}, f.RootsIn("other"))
}

func TestBuildPanicsOnCycle(t *testing.T) {
	skeletons := map[string]*skeleton.Skeleton{
		"A": {TaskID: "A", ReconstructedParentID: "B"},
		"B": {TaskID: "B", ReconstructedParentID: "A"},
	}
	assert.Panics(t, func() { Build(skeletons) })
}

func TestDanglingParentTreatedAsRoot(t *testing.T) {
	skeletons := map[string]*skeleton.Skeleton{
		"A": {TaskID: "A", ReconstructedParentID: "missing"},
	}
	f := Build(skeletons)
	assert.Equal(t, []string{"A"}, f.Roots())
}
