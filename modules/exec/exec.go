// Package exec runs a local command with its output streamed into the task log.
package exec

import (
	"context"
	"fmt"
	"io"

	"github.com/gxo-labs/logguard/internal/command"
	"github.com/gxo-labs/logguard/internal/module"
	"github.com/gxo-labs/logguard/internal/paramutil"
	lgerrors "github.com/gxo-labs/logguard/pkg/logguard/v1/errors"
	"github.com/gxo-labs/logguard/pkg/logguard/v1/plugin"
)

func init() {
	module.Register("exec", NewExecModule)
}

var allowedParams = []string{"command", "args", "working_dir", "environment"}

// ExecModule executes a command. Stdout and stderr both go to the task log.
type ExecModule struct {
	runner command.Runner
}

func NewExecModule() plugin.Module {
	return &ExecModule{runner: command.NewRunner()}
}

func (m *ExecModule) Perform(ctx context.Context, params map[string]interface{}, out io.Writer) (interface{}, error) {
	if err := paramutil.CheckAllowed(params, allowedParams); err != nil {
		return nil, err
	}
	cmd, err := paramutil.GetRequiredString(params, "command")
	if err != nil {
		return nil, err
	}
	args, _, err := paramutil.GetOptionalStringSlice(params, "args")
	if err != nil {
		return nil, err
	}
	workingDir, _, err := paramutil.GetOptionalString(params, "working_dir")
	if err != nil {
		return nil, err
	}
	environment, _, err := paramutil.GetOptionalStringSlice(params, "environment")
	if err != nil {
		return nil, err
	}

	result, runErr := m.runner.Run(ctx, command.Request{
		Command:     cmd,
		Args:        args,
		WorkingDir:  workingDir,
		Environment: environment,
		Stdout:      out,
		Stderr:      out,
	})
	if runErr != nil {
		return result, fmt.Errorf("failed to execute command: %w", runErr)
	}

	summary := map[string]interface{}{
		"exit_code":   result.ExitCode,
		"duration_ms": result.Duration.Milliseconds(),
	}
	if result.ExitCode != 0 {
		return summary, lgerrors.NewTaskExecutionError("exec", fmt.Errorf("command exited with non-zero status: %d", result.ExitCode))
	}
	return summary, nil
}
