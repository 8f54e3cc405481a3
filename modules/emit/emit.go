// Package emit writes a given amount of filler output, for exercising log
// size limits.
package emit

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/gxo-labs/logguard/internal/module"
	"github.com/gxo-labs/logguard/internal/paramutil"
	lgerrors "github.com/gxo-labs/logguard/pkg/logguard/v1/errors"
	"github.com/gxo-labs/logguard/pkg/logguard/v1/plugin"
)

func init() {
	module.Register("emit", NewEmitModule)
}

const (
	defaultLine  = "logguard emit filler line"
	defaultChunk = 64 * 1024
)

var allowedParams = []string{"size", "line", "chunk_size", "interval"}

// EmitModule writes size bytes made of repeated lines, chunk_size bytes at
// a time, pausing interval between chunks.
type EmitModule struct{}

func NewEmitModule() plugin.Module {
	return &EmitModule{}
}

func (m *EmitModule) Perform(ctx context.Context, params map[string]interface{}, out io.Writer) (interface{}, error) {
	if err := paramutil.CheckAllowed(params, allowedParams); err != nil {
		return nil, err
	}
	size, ok, err := paramutil.GetOptionalByteSize(params, "size")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, lgerrors.NewValidationError("missing required parameter 'size'", nil)
	}
	line, ok, err := paramutil.GetOptionalString(params, "line")
	if err != nil {
		return nil, err
	}
	if !ok || line == "" {
		line = defaultLine
	}
	chunkSize, ok, err := paramutil.GetOptionalByteSize(params, "chunk_size")
	if err != nil {
		return nil, err
	}
	if !ok || chunkSize == 0 {
		chunkSize = defaultChunk
	}
	interval, _, err := paramutil.GetOptionalDuration(params, "interval")
	if err != nil {
		return nil, err
	}

	chunk := filler(line, chunkSize)
	var written uint64
	for written < size {
		if err := ctx.Err(); err != nil {
			return summary(written), err
		}
		n := uint64(len(chunk))
		if size-written < n {
			n = size - written
		}
		w, err := out.Write(chunk[:n])
		written += uint64(w)
		if err != nil {
			return summary(written), err
		}
		if interval > 0 && written < size {
			timer := time.NewTimer(interval)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return summary(written), ctx.Err()
			}
		}
	}
	return summary(written), nil
}

func filler(line string, size uint64) []byte {
	unit := []byte(line + "\n")
	buf := bytes.Repeat(unit, int(size)/len(unit)+1)
	return buf[:size]
}

func summary(written uint64) map[string]interface{} {
	return map[string]interface{}{"bytes": written, "size": humanize.IBytes(written)}
}
