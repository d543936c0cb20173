package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/taskgraph/internal/uimessage"
)

func toolAsk(text string, ts int64) uimessage.Message {
	return uimessage.Message{Kind: uimessage.KindToolAsk, Text: text, Timestamp: ts}
}

func apiReq(request string, ts int64) uimessage.Message {
	return uimessage.Message{
		Kind:      uimessage.KindAPIReqStarted,
		Text:      `{"request":"` + strings.ReplaceAll(request, `"`, `\"`) + `"}`,
		Timestamp: ts,
	}
}

func TestExtractR1ToolInvocation(t *testing.T) {
	msg := toolAsk(`{"tool":"newTask","mode":"**Code**","content":"Implement the login endpoint using the existing auth module."}`, 100)
	insts, problems := Extract("t1", []uimessage.Message{msg})
	require.Empty(t, problems)
	require.Len(t, insts, 1)
	assert.Equal(t, "code", insts[0].Mode)
	assert.Equal(t, int64(100), insts[0].Timestamp)
}

func TestExtractR1RejectsShortContent(t *testing.T) {
	msg := toolAsk(`{"tool":"new_task","mode":"code","content":"too short"}`, 1)
	insts, problems := Extract("t1", []uimessage.Message{msg})
	assert.Empty(t, problems)
	assert.Empty(t, insts)
}

func TestExtractR1IgnoresOtherTools(t *testing.T) {
	msg := toolAsk(`{"tool":"readFile","mode":"code","content":"Implement the login endpoint using auth module exactly as specified."}`, 1)
	insts, _ := Extract("t1", []uimessage.Message{msg})
	assert.Empty(t, insts)
}

func TestExtractR1MalformedJSONIsPartial(t *testing.T) {
	msg := toolAsk(`{not json`, 1)
	insts, problems := Extract("t1", []uimessage.Message{msg})
	assert.Empty(t, insts)
	require.Len(t, problems, 1)
	assert.Equal(t, "t1", problems[0].TaskID)
}

func TestExtractR2APIRequestSingleQuote(t *testing.T) {
	msg := apiReq(`blah [new_task in Code mode: 'Implement the login endpoint using the existing auth module exactly.'] trailer`, 50)
	insts, problems := Extract("t1", []uimessage.Message{msg})
	require.Empty(t, problems)
	require.Len(t, insts, 1)
	assert.Equal(t, "code", insts[0].Mode)
}

func TestExtractR2APIRequestDoubleQuote(t *testing.T) {
	raw := `{"request":"[new_task in Debug: \"Investigate the failing integration test in the payment module.\"]"}`
	msg := uimessage.Message{Kind: uimessage.KindAPIReqStarted, Text: raw, Timestamp: 10}
	insts, _ := Extract("t1", []uimessage.Message{msg})
	require.Len(t, insts, 1)
	assert.Equal(t, "debug", insts[0].Mode)
}

func TestDedupeCollapsesAcrossRecognizers(t *testing.T) {
	instr := "Implement the login endpoint using the existing auth module exactly as described in the spec."
	r1 := toolAsk(`{"tool":"newTask","mode":"code","content":"`+instr+`"}`, 200)
	r2 := apiReq(`[new_task in code: '`+instr+`']`, 50)

	insts, _ := Extract("t1", []uimessage.Message{r1, r2})
	require.Len(t, insts, 1)
	assert.Equal(t, int64(50), insts[0].Timestamp) // earlier timestamp wins
}

func TestExtractNoRecognizerMatch(t *testing.T) {
	msg := uimessage.Message{Kind: uimessage.KindOther, Text: "irrelevant"}
	insts, problems := Extract("t1", []uimessage.Message{msg})
	assert.Empty(t, insts)
	assert.Empty(t, problems)
}
