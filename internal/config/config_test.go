package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWithNoConfigFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "auto", cfg.HashPolicy.String())
	assert.False(t, cfg.AllowSymlinks)
	assert.Empty(t, cfg.IgnoreGlob)
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "repo.yaml")
	contents := "hash:\n  policy: sha3-only\ncheckout:\n  ignore_glob: \"*.o, *.tmp\"\n  allow_symlinks: true\n  manifest_mask: 3\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sha3-only", cfg.HashPolicy.String())
	assert.True(t, cfg.AllowSymlinks)
	assert.Equal(t, []string{"*.o", "*.tmp"}, cfg.IgnoreGlob)
	assert.True(t, cfg.ExportsContent())
	assert.True(t, cfg.ExportsHash())
	assert.False(t, cfg.ExportsTags())
}

func TestLoadMissingConfigFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "auto", cfg.HashPolicy.String())
}

func TestLoadRejectsUnknownHashPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "repo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("hash:\n  policy: bogus\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestNewProjectCodeIsNonEmptyAndUnique(t *testing.T) {
	a := NewProjectCode()
	b := NewProjectCode()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestGlobalConfigPathPrefersEnvVar(t *testing.T) {
	t.Setenv("FSLCORE_CONFIG", "/tmp/custom-global.conf")
	path, err := GlobalConfigPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom-global.conf", path)
}

func TestLoadGlobalDefaultsWhenFileMissing(t *testing.T) {
	gc, err := LoadGlobal(filepath.Join(t.TempDir(), "nope.conf"))
	require.NoError(t, err)
	assert.Empty(t, gc.UserName)
	assert.True(t, gc.Autosync)
}

func TestLoadGlobalReadsUserIdentity(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "global.yaml")
	require.NoError(t, os.WriteFile(path, []byte("user:\n  name: alice\n  editor: vim\n"), 0o644))

	gc, err := LoadGlobal(path)
	require.NoError(t, err)
	assert.Equal(t, "alice", gc.UserName)
	assert.Equal(t, "vim", gc.EditorCmd)
}
