package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(f func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w
	defer func() { os.Stdout = old }()

	f()
	_ = w.Close()
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

func TestRootCmd_Version(t *testing.T) {
	t.Cleanup(func() { rootCmd.SetArgs([]string{}) })
	rootCmd.SetArgs([]string{"version"})
	out := captureOutput(func() { _ = rootCmd.Execute() })
	assert.True(t, strings.HasPrefix(out, "apiserver version "), out)
}

func TestRootCmd_Help(t *testing.T) {
	t.Cleanup(func() { rootCmd.SetArgs([]string{}) })
	rootCmd.SetArgs([]string{"--help"})
	assert.NoError(t, rootCmd.Execute())
}

func TestSeedCmd(t *testing.T) {
	dir := t.TempDir()
	conf := filepath.Join(dir, "apiserver.yaml")
	content := `
database:
  type: sqlite
  dbname: ` + filepath.Join(dir, "seed.db") + `
jwt:
  secret_key: this-is-a-very-long-secret-key-for-testing
logger:
  output: stdout
  level: error
super_admin:
  email: admin@example.com
  password: admin-password-123
`
	require.NoError(t, os.WriteFile(conf, []byte(content), 0o600))

	t.Cleanup(func() {
		rootCmd.SetArgs([]string{})
		configPath = defaultConfigFile
	})
	rootCmd.SetArgs([]string{"seed", "--conf", conf})
	var err error
	out := captureOutput(func() { err = rootCmd.Execute() })
	require.NoError(t, err)
	assert.Contains(t, out, "regions=20")
	assert.Contains(t, out, "admin_created=true")

	rootCmd.SetArgs([]string{"seed", "--conf", conf})
	out = captureOutput(func() { err = rootCmd.Execute() })
	require.NoError(t, err)
	assert.Contains(t, out, "skipped=true")
}
