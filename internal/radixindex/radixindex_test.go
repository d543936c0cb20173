package radixindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAndLookupExact(t *testing.T) {
	idx := New()
	idx.Insert("implement the login endpoint", "parent-1", "Implement the login endpoint", 100)

	decls := idx.LookupExact("implement the login endpoint")
	require.Len(t, decls, 1)
	assert.Equal(t, "parent-1", decls[0].ParentTaskID)
}

func TestLookupExactNoWidening(t *testing.T) {
	idx := New()
	idx.Insert("implement the login endpoint and its tests", "parent-1", "x", 1)

	// A shorter prefix of a stored key must NOT match.
	assert.Empty(t, idx.LookupExact("implement the login endpoint"))
	// A longer string than a stored key must NOT match either.
	assert.Empty(t, idx.LookupExact("implement the login endpoint and its tests please"))
}

func TestInsertIdempotentPerParent(t *testing.T) {
	idx := New()
	idx.Insert("key", "parent-1", "orig", 1)
	idx.Insert("key", "parent-1", "orig", 1)

	decls := idx.LookupExact("key")
	assert.Len(t, decls, 1)
}

func TestInsertMultipleParentsSameKey(t *testing.T) {
	idx := New()
	idx.Insert("key", "parent-1", "orig1", 1)
	idx.Insert("key", "parent-2", "orig2", 2)

	decls := idx.LookupExact("key")
	assert.Len(t, decls, 2)
}

func TestHasAndLen(t *testing.T) {
	idx := New()
	assert.False(t, idx.Has("key"))
	idx.Insert("key", "parent-1", "orig", 1)
	assert.True(t, idx.Has("key"))
	assert.Equal(t, 1, idx.Len())
}
