package helper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetCfgPath(t *testing.T) {
	assert.Panics(t, func() { GetCfgPath("") })

	abs := "/tmp/test.yaml"
	assert.Equal(t, abs, GetCfgPath(abs))

	old, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(old) })

	tmp := t.TempDir()
	_ = os.Chdir(tmp)
	t.Setenv(ConfigDirEnv, "")

	// file in current directory
	f1 := "apiserver.yaml"
	assert.NoError(t, os.WriteFile(f1, []byte("x"), 0o644))
	got := GetCfgPath(f1)
	exp, _ := filepath.EvalSymlinks(filepath.Join(tmp, f1))
	realGot, _ := filepath.EvalSymlinks(got)
	assert.Equal(t, exp, realGot)

	// ./configs second
	_ = os.Remove(filepath.Join(tmp, f1))
	_ = os.MkdirAll("configs", 0o755)
	assert.NoError(t, os.WriteFile(filepath.Join("configs", f1), []byte("x"), 0o644))
	got = GetCfgPath(f1)
	exp, _ = filepath.EvalSymlinks(filepath.Join(tmp, "configs", f1))
	realGot, _ = filepath.EvalSymlinks(got)
	assert.Equal(t, exp, realGot)

	// env directory third
	_ = os.Remove(filepath.Join(tmp, "configs", f1))
	envDir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(envDir, f1), []byte("x"), 0o644))
	t.Setenv(ConfigDirEnv, envDir)
	got = GetCfgPath(f1)
	exp, _ = filepath.EvalSymlinks(filepath.Join(envDir, f1))
	realGot, _ = filepath.EvalSymlinks(got)
	assert.Equal(t, exp, realGot)

	// fallback when not found
	t.Setenv(ConfigDirEnv, "")
	got = GetCfgPath(f1)
	assert.Equal(t, filepath.Join(SystemConfigDir, f1), got)
}
