package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTokenAcceptsAllHistoricalShapes(t *testing.T) {
	cases := map[string]string{
		`{"access_token":"abc"}`:             "abc",
		`{"token":"legacy"}`:                 "legacy",
		`"bare-string"`:                      "bare-string",
		`{"user":{"id":1},"access_token":"x"}`: "x",
	}
	for raw, want := range cases {
		token, ok := ExtractToken(json.RawMessage(raw))
		require.True(t, ok, "payload %s", raw)
		assert.Equal(t, want, token)
	}

	_, ok := ExtractToken(json.RawMessage(`{"message":"no token here"}`))
	assert.False(t, ok)
}

func TestExtractChatReplyAcceptsBothFieldNames(t *testing.T) {
	reply, ok := ExtractChatReply(json.RawMessage(`{"response":"two studies found"}`))
	require.True(t, ok)
	assert.Equal(t, "two studies found", reply)

	reply, ok = ExtractChatReply(json.RawMessage(`{"llm":"legacy reply"}`))
	require.True(t, ok)
	assert.Equal(t, "legacy reply", reply)

	_, ok = ExtractChatReply(json.RawMessage(`{"unrelated":true}`))
	assert.False(t, ok)
}

func TestDecodePACSConfigAcceptsBothShapes(t *testing.T) {
	current := json.RawMessage(`{"id":"p1","display_name":"Main Hospital","base_rs":"https://pacs.example.com/dicom-web","location":"Madrid","tags":["prod"],"created_at":"2026-01-15T10:00:00Z"}`)
	cfg, err := DecodePACSConfig(current)
	require.NoError(t, err)
	assert.Equal(t, "Main Hospital", cfg.DisplayName)
	assert.Equal(t, "https://pacs.example.com/dicom-web", cfg.BaseRS)
	assert.Equal(t, []string{"prod"}, cfg.Tags)
	assert.False(t, cfg.CreatedAt.IsZero())

	legacy := json.RawMessage(`{"id":"p2","name":"Old PACS","url":"http://legacy/rs","createdAt":"2024-03-01T08:30:00Z"}`)
	cfg, err = DecodePACSConfig(legacy)
	require.NoError(t, err)
	assert.Equal(t, "Old PACS", cfg.DisplayName)
	assert.Equal(t, "http://legacy/rs", cfg.BaseRS)
	assert.False(t, cfg.CreatedAt.IsZero())
}

func TestDecodePACSListAcceptsWrappedForm(t *testing.T) {
	bare := json.RawMessage(`[{"id":"a","display_name":"A","base_rs":"https://a"},{"id":"b","name":"B","url":"https://b"}]`)
	configs, err := DecodePACSList(bare)
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Equal(t, "B", configs[1].DisplayName)
	assert.Equal(t, "https://b", configs[1].BaseRS)

	wrapped := json.RawMessage(`{"configs":[{"id":"c","display_name":"C","base_rs":"https://c"}]}`)
	configs, err = DecodePACSList(wrapped)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "c", configs[0].ID)
}
