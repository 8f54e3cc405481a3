package engine_test

import (
	"context"
	goerrors "errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/gxo-labs/logguard/internal/paramutil"
	lgerrors "github.com/gxo-labs/logguard/pkg/logguard/v1/errors"
	"github.com/gxo-labs/logguard/pkg/logguard/v1/events"
	"github.com/gxo-labs/logguard/pkg/logguard/v1/plugin"
)

// InMemoryRegistry is a plugin.Registry for tests.
type InMemoryRegistry struct {
	factories map[string]plugin.ModuleFactory
	mu        sync.RWMutex
}

func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{factories: make(map[string]plugin.ModuleFactory)}
}

func (r *InMemoryRegistry) Register(name string, factory plugin.ModuleFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name == "" {
		return lgerrors.NewConfigError("mock registry: name cannot be empty", nil)
	}
	if factory == nil {
		return lgerrors.NewConfigError(fmt.Sprintf("mock registry: factory cannot be nil for '%s'", name), nil)
	}
	r.factories[name] = factory
	return nil
}

func (r *InMemoryRegistry) Get(name string) (plugin.ModuleFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, exists := r.factories[name]
	if !exists {
		return nil, lgerrors.NewModuleNotFoundError(name)
	}
	return factory, nil
}

func (r *InMemoryRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var _ plugin.Registry = (*InMemoryRegistry)(nil)

// MockModule writes filler output, waits and fails on request:
//
//	emit: size of filler to write, e.g. "2100kB"
//	sleep: duration to wait after writing, cut short by cancellation
//	fail_message: fail with this message
type MockModule struct{}

func NewMockModule() plugin.Module {
	return &MockModule{}
}

func (m *MockModule) Perform(ctx context.Context, params map[string]interface{}, out io.Writer) (interface{}, error) {
	if size, ok, err := paramutil.GetOptionalByteSize(params, "emit"); err != nil {
		return nil, err
	} else if ok {
		chunk := make([]byte, 64*1024)
		for i := range chunk {
			chunk[i] = 'x'
		}
		for remaining := size; remaining > 0; {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			n := uint64(len(chunk))
			if remaining < n {
				n = remaining
			}
			if _, err := out.Write(chunk[:n]); err != nil {
				return nil, err
			}
			remaining -= n
		}
	}

	if d, ok, err := paramutil.GetOptionalDuration(params, "sleep"); err != nil {
		return nil, err
	} else if ok {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if failMsg, exists, _ := paramutil.GetOptionalString(params, "fail_message"); exists {
		return nil, goerrors.New(failMsg)
	}
	return params, nil
}

func RegisterTestMockModule(registry *InMemoryRegistry) error {
	if registry == nil {
		return goerrors.New("registry cannot be nil")
	}
	return registry.Register("mock", NewMockModule)
}

// recordingBus keeps every emitted event.
type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Emit(e events.Event) {
	b.mu.Lock()
	b.events = append(b.events, e)
	b.mu.Unlock()
}

func (b *recordingBus) count(t events.EventType, taskName string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.Type == t && (taskName == "" || e.TaskName == taskName) {
			n++
		}
	}
	return n
}
