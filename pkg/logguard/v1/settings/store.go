// Package settings declares the store holding the global default log size.
package settings

// Store persists the single global default threshold, in MB, across
// process restarts.
type Store interface {
	// GlobalDefaultMB returns the stored default. A store that has never been
	// written returns 0 (monitoring disabled).
	GlobalDefaultMB() int32
	// SetGlobalDefaultMB replaces and persists the default.
	SetGlobalDefaultMB(mb int32) error
}
