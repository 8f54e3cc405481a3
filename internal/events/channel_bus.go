package events

import (
	"sync"

	"github.com/gxo-labs/logguard/pkg/logguard/v1/events"
	lglog "github.com/gxo-labs/logguard/pkg/logguard/v1/log"
)

// ChannelEventBus implements events.Bus on a buffered channel. Emit never
// blocks: monitors emit from the shared timer's workers and must not stall it.
type ChannelEventBus struct {
	channel chan events.Event
	log     lglog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewChannelEventBus creates a bus with the given buffer size (100 when
// bufferSize is not positive). It panics on a nil logger.
func NewChannelEventBus(bufferSize int, log lglog.Logger) *ChannelEventBus {
	const defaultBufferSize = 100
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if log == nil {
		panic("ChannelEventBus requires a non-nil logger")
	}
	bus := &ChannelEventBus{
		channel: make(chan events.Event, bufferSize),
		log:     log.With("component", "ChannelEventBus"),
	}
	bus.log.Debugf("ChannelEventBus initialized with buffer size %d", bufferSize)
	return bus
}

// Emit sends event if there is room in the buffer and drops it otherwise.
// Events emitted after Close are dropped.
func (c *ChannelEventBus) Emit(event events.Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.channel <- event:
	default:
		c.log.Warnf("Event channel buffer full, dropping event type '%s'", event.Type)
	}
}

// GetChannel returns the channel consumers read from.
func (c *ChannelEventBus) GetChannel() <-chan events.Event {
	return c.channel
}

// Close closes the channel. It is safe to call more than once.
func (c *ChannelEventBus) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.log.Debugf("Closing ChannelEventBus channel.")
	close(c.channel)
}

var _ events.Bus = (*ChannelEventBus)(nil)
