// Package cat copies a file into the task log.
package cat

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/afero"

	"github.com/gxo-labs/logguard/internal/module"
	"github.com/gxo-labs/logguard/internal/paramutil"
	"github.com/gxo-labs/logguard/pkg/logguard/v1/plugin"
)

func init() {
	module.Register("cat", NewCatModule)
}

// CatModule reads from fs, the host filesystem unless replaced in tests.
type CatModule struct {
	fs afero.Fs
}

func NewCatModule() plugin.Module {
	return &CatModule{fs: afero.NewOsFs()}
}

// NewCatModuleWithFs reads from fs instead of the host filesystem.
func NewCatModuleWithFs(fs afero.Fs) *CatModule {
	return &CatModule{fs: fs}
}

func (m *CatModule) Perform(ctx context.Context, params map[string]interface{}, out io.Writer) (interface{}, error) {
	if err := paramutil.CheckAllowed(params, []string{"path"}); err != nil {
		return nil, err
	}
	path, err := paramutil.GetRequiredString(params, "path")
	if err != nil {
		return nil, err
	}

	f, err := m.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	n, err := io.Copy(out, &ctxReader{ctx: ctx, r: f})
	if err != nil {
		return map[string]interface{}{"bytes": n}, fmt.Errorf("failed to copy %s: %w", path, err)
	}
	return map[string]interface{}{"bytes": n}, nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
