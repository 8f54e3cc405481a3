package emit

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitModule_WritesExactSize(t *testing.T) {
	var out bytes.Buffer
	summary, err := NewEmitModule().Perform(context.Background(), map[string]interface{}{
		"size":       "2100kB",
		"chunk_size": "1000",
		"line":       "abc",
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, 2100000, out.Len())
	assert.True(t, strings.HasPrefix(out.String(), "abc\nabc\n"))
	assert.Equal(t, uint64(2100000), summary.(map[string]interface{})["bytes"])
}

func TestEmitModule_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	var out bytes.Buffer
	_, err := NewEmitModule().Perform(ctx, map[string]interface{}{
		"size":       "1MiB",
		"chunk_size": "1KiB",
		"interval":   "5ms",
	}, &out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, out.Len(), 1<<20)
}

func TestEmitModule_ParamErrors(t *testing.T) {
	m := NewEmitModule()
	_, err := m.Perform(context.Background(), map[string]interface{}{}, &bytes.Buffer{})
	assert.Error(t, err)
	_, err = m.Perform(context.Background(), map[string]interface{}{"size": "huge"}, &bytes.Buffer{})
	assert.Error(t, err)
	_, err = m.Perform(context.Background(), map[string]interface{}{"size": 10, "colour": "red"}, &bytes.Buffer{})
	assert.Error(t, err)
}
