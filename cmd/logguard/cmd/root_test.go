package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCmd(&stdout, &stderr)
	root.SetArgs(args)
	code := exitCode(root.Execute(), &stderr)
	return code, stdout.String(), stderr.String()
}

func writeJob(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const noisyJob = `
schemaVersion: "v1.0.0"
name: cli_job
tasks:
  - name: noisy
    steps:
      - type: emit
        params:
          size: "2100kB"
      - type: sleep
        params:
          duration: "5s"
  - name: quiet
    log_size:
      max_log_size: 5
      set_own: true
    steps:
      - type: emit
        params:
          size: "10kB"
`

func TestConfigSetAndGet(t *testing.T) {
	settingsFile := filepath.Join(t.TempDir(), "settings.yaml")

	code, out, _ := execute(t, "config", "set", "7", "--settings", settingsFile)
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "7 MB")

	code, out, _ = execute(t, "config", "get", "--settings", settingsFile)
	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, "7\n", out)
}

func TestConfigSetInvalidStoresZero(t *testing.T) {
	settingsFile := filepath.Join(t.TempDir(), "settings.yaml")
	_, _, _ = execute(t, "config", "set", "7", "--settings", settingsFile)

	code, out, errOut := execute(t, "config", "set", "lots", "--settings", settingsFile)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, out, "0 MB")
	assert.Contains(t, errOut, "not a whole number")

	_, out, _ = execute(t, "config", "get", "--settings", settingsFile)
	assert.Equal(t, "0\n", out)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	code, out, _ := execute(t, "validate", "--job", writeJob(t, dir, noisyJob))
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "Job 'cli_job' is valid (2 tasks)")

	code, _, _ = execute(t, "validate", "--job", writeJob(t, dir, "name: broken\n"))
	assert.Equal(t, ExitFailure, code)
}

func TestRunAbortedByGlobalDefault(t *testing.T) {
	dir := t.TempDir()
	settingsFile := filepath.Join(dir, "settings.yaml")
	code, _, _ := execute(t, "config", "set", "1", "--settings", settingsFile)
	require.Equal(t, ExitSuccess, code)

	code, out, _ := execute(t, "run",
		"--job", writeJob(t, dir, noisyJob),
		"--settings", settingsFile,
		"--log-dir", filepath.Join(dir, "logs"),
		"--check-interval", "10ms",
		"--log-level", "error",
	)
	assert.Equal(t, ExitAborted, code)
	assert.Contains(t, out, "1 completed, 0 failed, 1 aborted")

	matches, err := filepath.Glob(filepath.Join(dir, "logs", "*", "noisy.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), ">>> Max Log Size reached 1(MB). Aborting <<<"))
}

func TestUsageErrors(t *testing.T) {
	code, _, _ := execute(t, "run")
	assert.Equal(t, ExitUsageError, code)

	code, _, _ = execute(t, "version", "--log-format", "xml")
	assert.Equal(t, ExitUsageError, code)

	code, out, _ := execute(t, "version")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "logguard version")
}
