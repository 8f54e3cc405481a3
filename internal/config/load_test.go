package config

import (
	"testing"
	"time"

	lgerrors "github.com/gxo-labs/logguard/pkg/logguard/v1/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validJob = `
schemaVersion: "v1.0.0"
name: nightly
tasks:
  - name: build
    timeout: 30s
    log_size:
      max_log_size: 1
      fail_build: true
      set_own: true
    steps:
      - type: emit
        params:
          size: 2100kB
      - name: pause
        type: sleep
        params:
          duration: 1s
        retry:
          attempts: 3
          delay: 10ms
          backoff_factor: 2
  - name: test
    steps:
      - type: exec
        params:
          command: echo
          args: ["hello"]
`

func TestLoadJob_Valid(t *testing.T) {
	job, err := LoadJob([]byte(validJob), "nightly.yaml")
	require.NoError(t, err)
	require.NotNil(t, job)

	assert.Equal(t, "nightly", job.Name)
	assert.Equal(t, "nightly.yaml", job.FilePath)
	require.Len(t, job.Tasks, 2)

	build := job.Tasks[0]
	assert.Equal(t, "build", build.InternalID)
	assert.Equal(t, 30*time.Second, build.GetTimeout())
	s := build.Settings()
	assert.Equal(t, int32(1), s.MaxLogSize)
	assert.True(t, s.FailBuild)
	assert.True(t, s.SetOwn)
	require.Len(t, build.Steps, 2)
	assert.Equal(t, "emit", build.Steps[0].DisplayName())
	assert.Equal(t, "2100kB", build.Steps[0].Params["size"])
	assert.Equal(t, "pause", build.Steps[1].DisplayName())
	assert.Equal(t, 3, build.Steps[1].GetRetryAttempts())
	assert.Equal(t, 10*time.Millisecond, build.Steps[1].GetRetryDelay())
	assert.Equal(t, 2.0, build.Steps[1].GetRetryBackoffFactor())

	testTask := job.Tasks[1]
	assert.Nil(t, testTask.LogSize)
	assert.Equal(t, int32(0), testTask.Settings().MaxLogSize)
	assert.False(t, testTask.Settings().SetOwn)
	assert.Equal(t, 1, testTask.Steps[0].GetRetryAttempts())
}

func TestLoadJob_NegativeAndZeroLogSizeAccepted(t *testing.T) {
	doc := `
schemaVersion: "1.2.0"
name: j
tasks:
  - name: a
    log_size: {max_log_size: -4, set_own: true}
    steps: [{type: sleep}]
  - name: b
    log_size: {max_log_size: 0, set_own: true}
    steps: [{type: sleep}]
`
	job, err := LoadJob([]byte(doc), "j.yaml")
	require.NoError(t, err)
	assert.Equal(t, int32(-4), job.Tasks[0].Settings().MaxLogSize)
	assert.Equal(t, int32(0), job.Tasks[1].Settings().MaxLogSize)
}

func TestLoadJob_Errors(t *testing.T) {
	cases := map[string]struct {
		doc        string
		validation bool
	}{
		"empty": {doc: ""},
		"schema: unknown field": {doc: `
schemaVersion: v1.0.0
name: j
tasks: [{name: a, steps: [{type: x}], bogus: 1}]
`},
		"schema: no tasks": {doc: `
schemaVersion: v1.0.0
name: j
tasks: []
`},
		"schema: wrong log size type": {doc: `
schemaVersion: v1.0.0
name: j
tasks: [{name: a, steps: [{type: x}], log_size: {max_log_size: "big"}}]
`},
		"major version": {doc: `
schemaVersion: v2.0.0
name: j
tasks: [{name: a, steps: [{type: x}]}]
`, validation: true},
		"bad version": {doc: `
schemaVersion: banana
name: j
tasks: [{name: a, steps: [{type: x}]}]
`, validation: true},
		"duplicate names": {doc: `
schemaVersion: v1.0.0
name: j
tasks:
  - {name: a, steps: [{type: x}]}
  - {name: a, steps: [{type: x}]}
`, validation: true},
		"invalid name": {doc: `
schemaVersion: v1.0.0
name: j
tasks: [{name: "a/b", steps: [{type: x}]}]
`, validation: true},
		"bad timeout": {doc: `
schemaVersion: v1.0.0
name: j
tasks: [{name: a, timeout: soon, steps: [{type: x}]}]
`, validation: true},
		"retry max below delay": {doc: `
schemaVersion: v1.0.0
name: j
tasks: [{name: a, steps: [{type: x, retry: {attempts: 2, delay: 2s, max_delay: 1s}}]}]
`, validation: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			job, err := LoadJob([]byte(tc.doc), "j.yaml")
			assert.Nil(t, job)
			require.Error(t, err)
			if tc.validation {
				var vErr *lgerrors.ValidationError
				assert.ErrorAs(t, err, &vErr)
			} else {
				var cErr *lgerrors.ConfigError
				assert.ErrorAs(t, err, &cErr)
			}
		})
	}
}

func TestLoadJobFromFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/jobs/nightly.yaml", []byte(validJob), 0o644))

	job, err := LoadJobFromFile(fs, "/jobs/nightly.yaml")
	require.NoError(t, err)
	assert.Equal(t, "/jobs/nightly.yaml", job.FilePath)

	_, err = LoadJobFromFile(fs, "/jobs/missing.yaml")
	var cErr *lgerrors.ConfigError
	assert.ErrorAs(t, err, &cErr)

	_, err = LoadJobFromFile(fs, "")
	assert.ErrorAs(t, err, &cErr)
}
