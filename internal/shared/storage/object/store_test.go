package object

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legal-backend/internal/shared/util"
)

func TestNewStorageKey(t *testing.T) {
	key, err := NewStorageKey("firm-9", "leases/lease.pdf")
	require.NoError(t, err)

	owner, name, ok := strings.Cut(key, "/")
	require.True(t, ok)
	assert.Equal(t, util.HashOwnerKey("firm-9"), owner)
	assert.Regexp(t, `^[0-9a-f]{32}_leases_lease\.pdf$`, name)

	other, err := NewStorageKey("firm-9", "leases/lease.pdf")
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestNewStorageKeyRejectsTraversal(t *testing.T) {
	_, err := NewStorageKey("firm-9", "../secrets.txt")
	assert.ErrorIs(t, err, util.ErrInvalidFileName)
}

func TestSniffReplaysStream(t *testing.T) {
	body := "%PDF-1.7\n" + strings.Repeat("x", 2000)
	mime, r, err := Sniff(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", mime)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
}

func TestSniffShortInput(t *testing.T) {
	mime, r, err := Sniff(strings.NewReader("short"))
	require.NoError(t, err)
	assert.Contains(t, mime, "text/plain")
	got, _ := io.ReadAll(r)
	assert.Equal(t, "short", string(got))
}
