package watch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldSkipPathReservedDir(t *testing.T) {
	assert.True(t, shouldSkipPath("/roots/a", "/roots/a/.skeleton-cache/skeletons.json"))
	assert.True(t, shouldSkipPath("/roots/a", "/roots/a/.git/HEAD"))
}

func TestShouldSkipPathRegularTaskDir(t *testing.T) {
	assert.False(t, shouldSkipPath("/roots/a", "/roots/a/task-1/ui_messages.json"))
}

func TestNewReturnsWatcher(t *testing.T) {
	w, err := New([]string{"/tmp"}, 500, func(ctx context.Context) error { return nil }, nil)
	require.NoError(t, err)
	require.NotNil(t, w)
}
