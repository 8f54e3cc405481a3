// Package threshold decides the effective log size limit for a task.
package threshold

// BytesPerMB is the size of one binary megabyte.
const BytesPerMB uint64 = 1 << 20

// Resolve returns the effective threshold in MB. When useOverride is set the
// per-task value is used as is, even when it is zero or negative; there is
// no fallback to the global default once a task opts into its own value.
// A result <= 0 disables monitoring.
func Resolve(useOverride bool, overrideMB, globalDefaultMB int32) int32 {
	if useOverride {
		return overrideMB
	}
	return globalDefaultMB
}

// Enabled reports whether a resolved threshold turns monitoring on.
func Enabled(thresholdMB int32) bool {
	return thresholdMB > 0
}

// Bytes converts a threshold in MB to bytes. Disabled thresholds yield 0.
func Bytes(thresholdMB int32) uint64 {
	if thresholdMB <= 0 {
		return 0
	}
	return uint64(thresholdMB) * BytesPerMB
}
