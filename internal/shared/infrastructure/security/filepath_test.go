package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFilePath(t *testing.T) {
	t.Run("rejects empty path", func(t *testing.T) {
		_, err := ValidateFilePath("")
		assert.Error(t, err)
	})

	t.Run("rejects shell metacharacters", func(t *testing.T) {
		for _, p := range []string{"a;rm -rf /", "a|b", "$(id)", "a`b`"} {
			_, err := ValidateFilePath(p)
			assert.Error(t, err, p)
		}
	})

	t.Run("makes relative paths absolute", func(t *testing.T) {
		got, err := ValidateFilePath("does-not-exist.json")
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(got))
	})
}

func TestReadFileLimited(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "event.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"evt_1"}`), 0o600))

	data, err := ReadFileLimited(path, 1024)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"evt_1"}`, string(data))

	_, err = ReadFileLimited(path, 4)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = ReadFileLimited(filepath.Join(dir, "missing.json"), 1024)
	assert.Error(t, err)
}
