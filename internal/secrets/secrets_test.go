package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-bill-must-split/internal/common"
)

func TestMemory(t *testing.T) {
	m := NewMemory("")
	assert.False(t, m.HasKey())

	require.NoError(t, m.SetKey("abc"))
	key, ok := m.GetKey()
	assert.True(t, ok)
	assert.Equal(t, "abc", key)

	require.NoError(t, m.DeleteKey())
	assert.False(t, m.HasKey())
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "gemini.key")
	f := NewFile(path)

	assert.False(t, f.HasKey())
	assert.NoError(t, f.DeleteKey(), "deleting a missing file is fine")

	require.NoError(t, f.SetKey("  secret-key \n"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	key, ok := f.GetKey()
	require.True(t, ok)
	assert.Equal(t, "secret-key", key)

	reopened := NewFile(path)
	assert.True(t, reopened.HasKey())

	require.NoError(t, f.DeleteKey())
	assert.False(t, f.HasKey())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	assert.Error(t, f.SetKey("   "))
}

func TestEnv(t *testing.T) {
	t.Setenv("SPLIT_TEST_KEY", " from-env ")
	e := NewEnv("SPLIT_TEST_KEY")

	key, ok := e.GetKey()
	require.True(t, ok)
	assert.Equal(t, "from-env", key)

	assert.ErrorIs(t, e.SetKey("x"), common.ErrReadOnly)
	assert.ErrorIs(t, e.DeleteKey(), common.ErrReadOnly)

	t.Setenv("SPLIT_TEST_KEY", "")
	assert.False(t, e.HasKey())
}

func TestWithFallback(t *testing.T) {
	primary := NewMemory("")
	fallback := NewMemory("fallback-key")
	p := WithFallback(primary, fallback)

	key, ok := p.GetKey()
	require.True(t, ok)
	assert.Equal(t, "fallback-key", key)
	assert.Equal(t, "memory", Source(p))

	require.NoError(t, p.SetKey("primary-key"))
	key, _ = p.GetKey()
	assert.Equal(t, "primary-key", key)

	require.NoError(t, p.DeleteKey())
	key, _ = p.GetKey()
	assert.Equal(t, "fallback-key", key)
	_, stillThere := fallback.GetKey()
	assert.True(t, stillThere)

	assert.Empty(t, Source(WithFallback(NewMemory(""), NewMemory(""))))
}
