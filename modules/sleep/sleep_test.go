package sleep

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSleepModule(t *testing.T) {
	m := NewSleepModule()
	_, err := m.Perform(context.Background(), map[string]interface{}{"duration": "10ms"}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	_, err = m.Perform(ctx, map[string]interface{}{"duration": "5s"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)

	_, err = m.Perform(context.Background(), map[string]interface{}{}, nil)
	assert.Error(t, err)
}
