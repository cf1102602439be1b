package keys

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "validator.key")

	key, err := Generate(path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	assert.Equal(t, int64(32), info.Size())

	dir, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), dir.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, key.Address, loaded.Address)
	assert.Equal(t, key.PrivateKey, loaded.PrivateKey)
	assert.Len(t, key.Address.String(), 64)

	_, err = Generate(path)
	assert.True(t, errors.Is(err, ErrKeyExists))
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.key"))
	assert.True(t, errors.Is(err, ErrKeyNotFound))

	short := filepath.Join(dir, "short.key")
	require.NoError(t, os.WriteFile(short, make([]byte, 31), 0600))
	_, err = Load(short)
	assert.True(t, errors.Is(err, ErrInvalidKeyLength))
}

func TestLoadOrGenerate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "validator.key")

	first, created, err := LoadOrGenerate(path)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := LoadOrGenerate(path)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.Address, second.Address)
}
