package searchindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectionNameCaseInsensitive(t *testing.T) {
	assert.Equal(t, CollectionName("/Users/dev/Project"), CollectionName("/users/dev/project"))
}

func TestCollectionNameSeparatorInsensitive(t *testing.T) {
	assert.Equal(t, CollectionName(`C:\work\project`), CollectionName("C:/work/project"))
}

func TestCollectionNameDiffersAcrossWorkspaces(t *testing.T) {
	assert.NotEqual(t, CollectionName("/a"), CollectionName("/b"))
}
