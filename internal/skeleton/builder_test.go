package skeleton

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/taskgraph/internal/storage"
)

func TestBuildFullTriple(t *testing.T) {
	metadata := []byte(`{"workspace":"/w","created_at":100,"last_activity":200,"instruction":"Do the thing"}`)
	uiLog := []byte(`[{"type":"ask","ask":"tool","ts":150,"text":"{\"tool\":\"newTask\",\"mode\":\"code\",\"content\":\"Implement the login endpoint using the existing auth module.\"}"}]`)

	triple := storage.Triple{
		Metadata: metadata, MetadataOK: true,
		UILog: uiLog, UILogOK: true,
	}

	s, problems := Build("t1", triple, 0)
	require.Empty(t, problems)
	assert.Equal(t, "/w", s.Workspace)
	assert.Equal(t, int64(100), s.CreatedAt)
	assert.Equal(t, int64(200), s.LastActivity)
	assert.Equal(t, "Do the thing", s.TruncatedInstruction)
	require.Len(t, s.ChildTaskInstructionPrefixes, 1)
	assert.Equal(t, "implement the login endpoint using the existing auth module.", s.ChildTaskInstructionPrefixes[0])
	assert.NotEqual(t, AbsentChecksum, s.SourceChecksums.Metadata)
	assert.Equal(t, AbsentChecksum, s.SourceChecksums.APILog)
}

func TestBuildMissingUILog(t *testing.T) {
	triple := storage.Triple{
		Metadata: []byte(`{"workspace":"/w","created_at":1}`), MetadataOK: true,
	}

	s, problems := Build("t2", triple, 0)
	assert.Empty(t, problems)
	assert.Equal(t, AbsentChecksum, s.SourceChecksums.UILog)
	assert.Empty(t, s.ChildTaskInstructionPrefixes)
	assert.Equal(t, 0, s.MessageCount)
}

func TestBuildMalformedMetadataIsPartial(t *testing.T) {
	triple := storage.Triple{
		Metadata: []byte(`{not json`), MetadataOK: true,
	}

	s, problems := Build("t3", triple, 0)
	require.Len(t, problems, 1)
	assert.Equal(t, "source_malformed", string(problems[0].Kind))
	assert.Equal(t, "t3", s.TaskID)
}

func TestBuildLastActivityDefaultsToCreatedAt(t *testing.T) {
	triple := storage.Triple{
		Metadata: []byte(`{"created_at":42}`), MetadataOK: true,
	}

	s, _ := Build("t4", triple, 0)
	assert.Equal(t, int64(42), s.LastActivity)
}

func TestBuildTruncatesLongInstruction(t *testing.T) {
	long := make([]byte, 0, 250)
	for i := 0; i < 250; i++ {
		long = append(long, 'a')
	}
	metadata := []byte(`{"instruction":"` + string(long) + `"}`)
	triple := storage.Triple{Metadata: metadata, MetadataOK: true}

	s, _ := Build("t5", triple, 0)
	assert.Len(t, []rune(s.TruncatedInstruction), 200)
}

func TestBuildChecksumsStableAcrossCalls(t *testing.T) {
	triple := storage.Triple{Metadata: []byte(`{"created_at":1}`), MetadataOK: true}
	a, _ := Build("t6", triple, 0)
	b, _ := Build("t6", triple, 0)
	assert.True(t, a.SourceChecksums.Equal(b.SourceChecksums))
}
