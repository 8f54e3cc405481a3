//go:build !windows

package command

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStreamsOutput(t *testing.T) {
	var out, errOut bytes.Buffer
	res, err := NewRunner().Run(context.Background(), Request{
		Command: "sh",
		Args:    []string{"-c", "echo hello; echo oops >&2"},
		Stdout:  &out,
		Stderr:  &errOut,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hello\n", out.String())
	assert.Equal(t, "oops\n", errOut.String())
}

func TestRunNonZeroExit(t *testing.T) {
	res, err := NewRunner().Run(context.Background(), Request{Command: "sh", Args: []string{"-c", "exit 3"}})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Error(t, res.Error)
}

func TestRunMissingBinary(t *testing.T) {
	res, err := NewRunner().Run(context.Background(), Request{Command: "definitely-not-a-real-binary-xyz"})
	assert.Error(t, err)
	assert.Equal(t, -1, res.ExitCode)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res, err := NewRunner().Run(ctx, Request{Command: "sleep", Args: []string{"5"}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, -1, res.ExitCode)
}
