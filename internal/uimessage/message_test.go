package uimessage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONArray(t *testing.T) {
	data := []byte(`[
		{"type":"ask","ask":"tool","text":"{\"tool\":\"newTask\"}","ts":100},
		{"type":"say","say":"api_req_started","text":"{\"request\":\"x\"}","ts":200}
	]`)

	msgs := Parse(data)
	require.Len(t, msgs, 2)
	assert.Equal(t, KindToolAsk, msgs[0].Kind)
	assert.Equal(t, int64(100), msgs[0].Timestamp)
	assert.Equal(t, KindAPIReqStarted, msgs[1].Kind)
}

func TestParseEmptyArray(t *testing.T) {
	msgs := Parse([]byte(`[]`))
	assert.Empty(t, msgs)
}

func TestParseLineDelimited(t *testing.T) {
	data := []byte(`{"type":"ask","ask":"tool","text":"a"}
{"type":"say","say":"other","text":"b"}
`)
	msgs := Parse(data)
	require.Len(t, msgs, 2)
	assert.Equal(t, KindToolAsk, msgs[0].Kind)
	assert.Equal(t, KindOther, msgs[1].Kind)
}

func TestParseLineDelimitedSkipsMalformed(t *testing.T) {
	data := []byte(`{"type":"ask","ask":"tool","text":"a"}
not json at all
{"type":"say","say":"api_req_started","text":"b"}
`)
	msgs := Parse(data)
	require.Len(t, msgs, 2)
}

func TestParseStripsBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte(`[{"type":"ask","ask":"tool","text":"a"}]`)...)
	msgs := Parse(data)
	require.Len(t, msgs, 1)
	assert.Equal(t, KindToolAsk, msgs[0].Kind)
}

func TestParseTruncatedArrayFallsBackToLines(t *testing.T) {
	data := []byte(`[
{"type":"ask","ask":"tool","text":"a"},
{"type":"say","say":"api_req_started","tex`)
	msgs := Parse(data)
	require.Len(t, msgs, 1)
	assert.Equal(t, KindToolAsk, msgs[0].Kind)
}
