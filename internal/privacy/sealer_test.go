package privacy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBox(t *testing.T) *SecretBox {
	t.Helper()
	sb, err := NewSecretBox([]byte("0123456789abcdef0123456789abcdef"), "post-body")
	require.NoError(t, err)
	return sb
}

func TestSealOpenRoundTrip(t *testing.T) {
	sb := testBox(t)
	sealed, err := sb.Seal("Shipped it. #golang")
	require.NoError(t, err)
	assert.True(t, IsSealed(sealed))
	assert.NotContains(t, sealed, "Shipped")

	plain, err := sb.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "Shipped it. #golang", plain)
}

func TestOpenPassesPlaintextThrough(t *testing.T) {
	plain, err := testBox(t).Open("written before encryption")
	require.NoError(t, err)
	assert.Equal(t, "written before encryption", plain)
}

func TestOpenRejectsWrongKey(t *testing.T) {
	sealed, err := testBox(t).Seal("secret")
	require.NoError(t, err)

	other, err := NewSecretBox([]byte("0123456789abcdef0123456789abcdef"), "other-purpose")
	require.NoError(t, err)
	_, err = other.Open(sealed)
	require.Error(t, err)
}

func TestNewSecretBoxRejectsShortKey(t *testing.T) {
	_, err := NewSecretBox([]byte("short"), "post-body")
	require.Error(t, err)
}

func TestLoadOrCreateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", ".encryption_key")

	first, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Len(t, first, 32)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
