package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/taskgraph/internal/config"
)

func writeTask(t *testing.T, root, taskID, metadata, uiLog string) {
	t.Helper()
	dir := filepath.Join(root, taskID)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "task_metadata.json"), []byte(metadata), 0o644))
	if uiLog != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "ui_messages.json"), []byte(uiLog), 0o644))
	}
}

func testConfig(t *testing.T, storageRoot string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Storage.Roots = config.StringSlice{storageRoot}
	cfg.Cache.Path = filepath.Join(t.TempDir(), ".skeleton-cache")
	return cfg
}

func TestRebuildAndNavigate(t *testing.T) {
	root := t.TempDir()
	parentInstr := "implement the login endpoint using the existing auth module exactly as described in the spec."
	writeTask(t, root, "parent", `{"created_at":1,"last_activity":1}`,
		`[{"type":"ask","ask":"tool","ts":1,"text":"{\"tool\":\"newTask\",\"mode\":\"code\",\"content\":\"`+parentInstr+`\"}"}]`)
	writeTask(t, root, "child", `{"created_at":2,"last_activity":2,"instruction":"`+parentInstr+`"}`, "")

	svc := New(testConfig(t, root))
	summary, opErr := svc.RebuildSkeletonCache(context.Background(), false)
	require.Nil(t, opErr)
	assert.Equal(t, 2, summary.Built)

	children := svc.ChildrenOf("parent")
	assert.Equal(t, []string{"child"}, children)

	sk, err := svc.GetSkeleton("child")
	require.NoError(t, err)
	assert.Equal(t, "parent", sk.ReconstructedParentID)
}

func TestGetSkeletonNotFound(t *testing.T) {
	svc := New(testConfig(t, t.TempDir()))
	_, err := svc.GetSkeleton("nope")
	assert.Equal(t, ErrNotFound, err)
}

func TestChunksOfCarriesHostIdentifier(t *testing.T) {
	root := t.TempDir()
	writeTask(t, root, "task-1", `{"created_at":1}`, `[{"type":"say","ts":1,"text":"hello"}]`)

	svc := New(testConfig(t, root))
	_, opErr := svc.RebuildSkeletonCache(context.Background(), false)
	require.Nil(t, opErr)

	chunks, err := svc.ChunksOf("task-1", "roo-code")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "roo-code", chunks[0].HostIdentifier)
}
