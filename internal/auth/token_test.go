package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateToken_WhenNoFile_CreatesNewToken(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	token, err := LoadOrCreateToken(dir)
	require.NoError(t, err)

	assert.Len(t, token, 64, "token should be 64 hex chars (32 bytes)")
	assertHexString(t, token)

	info, err := os.Stat(filepath.Join(dir, tokenFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoadOrCreateToken_WhenFileExists_ReturnsExisting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	existing := "abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789"
	require.NoError(t, os.WriteFile(filepath.Join(dir, tokenFileName), []byte(existing+"\n"), 0600))

	token, err := LoadOrCreateToken(dir)
	require.NoError(t, err)
	assert.Equal(t, existing, token, "trailing newline is ignored")
}

func TestLoadOrCreateToken_CalledTwice_ReturnsSameToken(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	first, err := LoadOrCreateToken(dir)
	require.NoError(t, err)

	second, err := LoadOrCreateToken(dir)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestLoadOrCreateToken_WhenEmptyFile_GeneratesNew(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, tokenFileName), []byte(""), 0600))

	token, err := LoadOrCreateToken(dir)
	require.NoError(t, err)

	assert.Len(t, token, 64)
	assertHexString(t, token)
}

func TestRotateToken_GeneratesDifferentToken(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	original, err := LoadOrCreateToken(dir)
	require.NoError(t, err)

	rotated, err := RotateToken(dir)
	require.NoError(t, err)

	assert.NotEqual(t, original, rotated)
	assert.Len(t, rotated, 64)

	reloaded, err := LoadOrCreateToken(dir)
	require.NoError(t, err)
	assert.Equal(t, rotated, reloaded)
}

func TestRotateToken_CreatesConfigDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "switchboard")

	_, err := RotateToken(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestHashToken(t *testing.T) {
	t.Parallel()

	h := HashToken("hello")
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", h)
	assert.NotEqual(t, h, HashToken("hello "))
}

func TestVerifier_Valid(t *testing.T) {
	t.Parallel()

	v := NewVerifier("s3cret")

	tests := []struct {
		name      string
		presented string
		want      bool
	}{
		{"exact match", "s3cret", true},
		{"wrong token", "s3cre", false},
		{"empty", "", false},
		{"case differs", "S3CRET", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, v.Valid(tt.presented))
		})
	}
}

func assertHexString(t *testing.T, s string) {
	t.Helper()
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			t.Errorf("non-hex character %q in string %q", c, s)
			return
		}
	}
}
