package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessageWireFormat(t *testing.T) {
	payload := []byte(`{"kind":"conjoint","documentIds":["a","b"],"instructions":"compare terms","requestId":"req-1","enqueuedAt":"2026-01-30T22:00:00Z","version":1}`)

	msg, err := DecodeMessage(payload)
	require.NoError(t, err)
	assert.Equal(t, "conjoint", msg.Kind)
	assert.Equal(t, []string{"a", "b"}, msg.DocumentIDs)
	assert.Equal(t, "compare terms", msg.Instructions)
	assert.Equal(t, MessageVersion, msg.Version)
}

func TestEncodeMessageOmitsEmptyInstructions(t *testing.T) {
	payload, err := EncodeMessage(Message{Kind: "single", DocumentIDs: []string{"a"}, RequestID: "r", Version: MessageVersion})
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "instructions")
	assert.Contains(t, string(payload), `"documentIds":["a"]`)
}

func TestDecodeMessageRejectsGarbage(t *testing.T) {
	_, err := DecodeMessage([]byte("{"))
	assert.Error(t, err)
}

func TestPrimaryDocumentID(t *testing.T) {
	assert.Equal(t, "a", Message{DocumentIDs: []string{"a", "b"}}.PrimaryDocumentID())
	assert.Equal(t, "", Message{}.PrimaryDocumentID())
}
