// Package settings implements stores for the global default log size.
package settings

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	lgerrors "github.com/gxo-labs/logguard/pkg/logguard/v1/errors"
	pkgsettings "github.com/gxo-labs/logguard/pkg/logguard/v1/settings"
)

// MemoryStore keeps the global default in memory only.
type MemoryStore struct {
	value atomic.Int32
}

// NewMemoryStore returns a MemoryStore holding initial.
func NewMemoryStore(initial int32) *MemoryStore {
	s := &MemoryStore{}
	s.value.Store(initial)
	return s
}

func (s *MemoryStore) GlobalDefaultMB() int32 { return s.value.Load() }

func (s *MemoryStore) SetGlobalDefaultMB(mb int32) error {
	s.value.Store(mb)
	return nil
}

var _ pkgsettings.Store = (*MemoryStore)(nil)

// ParseDefaultLogSize parses a submitted global default. Surrounding blanks
// are ignored. Unparseable input yields 0 together with a ValidationError.
func ParseDefaultLogSize(raw string) (int32, error) {
	trimmed := strings.TrimSpace(raw)
	v, err := strconv.ParseInt(trimmed, 10, 32)
	if err != nil {
		return 0, lgerrors.NewValidationError(fmt.Sprintf("default log size '%s' is not a whole number of MB", raw), err)
	}
	return int32(v), nil
}

// ApplyDefaultLogSize parses raw and stores the result. Unparseable input
// stores 0 (monitoring disabled by default) and the parse error is returned
// so the caller can report it.
func ApplyDefaultLogSize(store pkgsettings.Store, raw string) (int32, error) {
	v, parseErr := ParseDefaultLogSize(raw)
	if err := store.SetGlobalDefaultMB(v); err != nil {
		return v, err
	}
	return v, parseErr
}
