package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTaskDir(t *testing.T, root, taskID string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(root, taskID)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func TestScanAllFindsTaskDirs(t *testing.T) {
	root := t.TempDir()
	writeTaskDir(t, root, "task-1", map[string]string{metadataFile: `{}`})
	writeTaskDir(t, root, "task-2", map[string]string{metadataFile: `{}`, uiLogFile: `[]`})

	d := New([]string{root})
	dirs, problems := d.ScanAll(context.Background())
	assert.Empty(t, problems)
	assert.Len(t, dirs, 2)
}

func TestScanAllSkipsReservedAndHidden(t *testing.T) {
	root := t.TempDir()
	writeTaskDir(t, root, ".skeleton-cache", map[string]string{metadataFile: `{}`})
	writeTaskDir(t, root, ".hidden", map[string]string{metadataFile: `{}`})
	writeTaskDir(t, root, "task-1", map[string]string{metadataFile: `{}`})

	d := New([]string{root})
	dirs, _ := d.ScanAll(context.Background())
	require.Len(t, dirs, 1)
	assert.Equal(t, "task-1", dirs[0].TaskID)
}

func TestScanAllSkipsDirsWithoutMetadata(t *testing.T) {
	root := t.TempDir()
	writeTaskDir(t, root, "task-1", map[string]string{uiLogFile: `[]`})

	d := New([]string{root})
	dirs, _ := d.ScanAll(context.Background())
	assert.Empty(t, dirs)
}

func TestScanAllMissingRootIsPerRootError(t *testing.T) {
	root := t.TempDir()
	writeTaskDir(t, root, "task-1", map[string]string{metadataFile: `{}`})

	d := New([]string{filepath.Join(root, "does-not-exist"), root})
	dirs, problems := d.ScanAll(context.Background())
	require.Len(t, problems, 1)
	assert.Equal(t, "source_io", string(problems[0].Kind))
	require.Len(t, dirs, 1)
}

func TestOpenTripleMissingFilesAreNotErrors(t *testing.T) {
	root := t.TempDir()
	writeTaskDir(t, root, "task-1", map[string]string{metadataFile: `{"a":1}`})

	triple, err := OpenTriple(TaskDir{TaskID: "task-1", Path: filepath.Join(root, "task-1")})
	require.NoError(t, err)
	assert.True(t, triple.MetadataOK)
	assert.False(t, triple.UILogOK)
	assert.False(t, triple.APILogOK)
}

func TestScanAllCancelledContext(t *testing.T) {
	root := t.TempDir()
	writeTaskDir(t, root, "task-1", map[string]string{metadataFile: `{}`})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := New([]string{root})
	_, problems := d.ScanAll(ctx)
	require.Len(t, problems, 1)
	assert.Equal(t, "cancelled", string(problems[0].Kind))
}
