package events

import "github.com/gxo-labs/logguard/pkg/logguard/v1/events"

// NoOpEventBus discards every event. It is the fallback when no bus is
// configured, so emitters never need nil checks.
type NoOpEventBus struct{}

// NewNoOpEventBus creates a new NoOpEventBus.
func NewNoOpEventBus() events.Bus {
	return &NoOpEventBus{}
}

// Emit implements events.Bus.
func (n *NoOpEventBus) Emit(event events.Event) {}

var _ events.Bus = (*NoOpEventBus)(nil)
