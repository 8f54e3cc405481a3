// Package sleep waits for a duration or until the task is stopped.
package sleep

import (
	"context"
	"io"
	"time"

	"github.com/gxo-labs/logguard/internal/module"
	"github.com/gxo-labs/logguard/internal/paramutil"
	lgerrors "github.com/gxo-labs/logguard/pkg/logguard/v1/errors"
	"github.com/gxo-labs/logguard/pkg/logguard/v1/plugin"
)

func init() {
	module.Register("sleep", NewSleepModule)
}

type SleepModule struct{}

func NewSleepModule() plugin.Module {
	return &SleepModule{}
}

func (m *SleepModule) Perform(ctx context.Context, params map[string]interface{}, _ io.Writer) (interface{}, error) {
	if err := paramutil.CheckAllowed(params, []string{"duration"}); err != nil {
		return nil, err
	}
	d, ok, err := paramutil.GetOptionalDuration(params, "duration")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, lgerrors.NewValidationError("missing required parameter 'duration'", nil)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return map[string]interface{}{"slept_ms": d.Milliseconds()}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
