package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvFile(t *testing.T) {
	const key = "NEP413_TEST_ENV_FILE_VALUE"
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	path := filepath.Join(t.TempDir(), "verifier.env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=from-file\n"), 0o600))

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv(key))

	assert.Error(t, loadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}
