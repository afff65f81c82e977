package agent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"open object", `{`, `{}`},
		{"inside value string", `{"content": "Hel`, `{"content": "Hel"}`},
		{"inside key", `{"content": "Hi", "need`, `{"content": "Hi"}`},
		{"dangling key", `{"content": "Hi", "need_change"`, `{"content": "Hi", "need_change":null}`},
		{"dangling colon", `{"content": "Hi", "need_change": `, `{"content": "Hi", "need_change":null}`},
		{"partial literal", `{"content": "Hi", "need_change": tr`, `{"content": "Hi", "need_change": true}`},
		{"partial null", `{"a": {"b": nu`, `{"a": {"b": null}}`},
		{"partial number", `{"a": [1, 2.`, `{"a": [1, 2]}`},
		{"open array", `{"a": [`, `{"a": []}`},
		{"trailing comma in array", `{"a": [{"field": "w"}, `, `{"a": [{"field": "w"}]}`},
		{"dangling escape", `{"a": "x\`, `{"a": "x"}`},
		{"partial unicode escape", `{"a": "\u4f`, `{"a": ""}`},
		{"text after object", `{"a": 1} trailing`, `{"a": 1}`},
		{"text before object", "sure: {\"a\": \"b", `{"a": "b"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := completeJSON(tt.in)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
			assert.True(t, json.Valid([]byte(got)), "completed JSON must decode: %s", got)
		})
	}
}

func TestCompleteJSONWithoutObject(t *testing.T) {
	_, ok := completeJSON("no json here")
	assert.False(t, ok)
}

func TestParsePartial(t *testing.T) {
	out, ok := parsePartial(`{"content": "好的，已为你", "need_change": true, "change_log": [{"field": "weight_kg", "value": "72`)
	require.True(t, ok)
	assert.False(t, out.Final)
	assert.Equal(t, "好的，已为你", out.Content)
	assert.True(t, out.NeedChange)
	require.Len(t, out.ChangeLog, 1)
	assert.Equal(t, "weight_kg", out.ChangeLog[0].Field)
	assert.Equal(t, "72", out.ChangeLog[0].Value)
}

func TestParsePartialDropsIncompleteItems(t *testing.T) {
	out, ok := parsePartial(`{"content": "x", "change_log": [{"field": "weight_kg", "val`)
	require.True(t, ok)
	assert.Empty(t, out.ChangeLog)
}

func TestParseReply(t *testing.T) {
	t.Run("fenced", func(t *testing.T) {
		out, ok := parseReply("```json\n{\"content\": \"hi\", \"need_change\": false, \"change_log\": []}\n```")
		require.True(t, ok)
		assert.True(t, out.Final)
		assert.Equal(t, "hi", out.Content)
		assert.NotNil(t, out.ChangeLog)
		assert.Empty(t, out.ChangeLog)
	})

	t.Run("loose types", func(t *testing.T) {
		out, ok := parseReply(`{"content": "ok", "need_change": "true", "change_log": [{"field": " bmi ", "value": 22.5, "reason": "复测"}, {"field": "", "value": "1"}]}`)
		require.True(t, ok)
		assert.True(t, out.NeedChange)
		require.Len(t, out.ChangeLog, 1)
		assert.Equal(t, "bmi", out.ChangeLog[0].Field)
		assert.Equal(t, "22.5", out.ChangeLog[0].Value)
		require.NotNil(t, out.ChangeLog[0].Reason)
		assert.Equal(t, "复测", *out.ChangeLog[0].Reason)
	})

	t.Run("malformed change log is ignored", func(t *testing.T) {
		out, ok := parseReply(`{"content": "ok", "need_change": true, "change_log": "weight_kg=70"}`)
		require.True(t, ok)
		assert.Equal(t, "ok", out.Content)
		assert.Empty(t, out.ChangeLog)
	})

	t.Run("truncated", func(t *testing.T) {
		out, ok := parseReply(`{"content": "cut off`)
		require.True(t, ok)
		assert.True(t, out.Final)
		assert.Equal(t, "cut off", out.Content)
	})

	t.Run("plain text", func(t *testing.T) {
		_, ok := parseReply("你好！")
		assert.False(t, ok)
	})
}

func TestLooseBool(t *testing.T) {
	for in, want := range map[string]bool{
		`true`: true, `false`: false, `"yes"`: true, `"False"`: false, `1`: true, `0`: false, `null`: false,
	} {
		var b looseBool
		require.NoError(t, json.Unmarshal([]byte(in), &b), in)
		assert.Equal(t, want, bool(b), in)
	}
}
