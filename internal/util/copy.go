// Package util holds small helpers shared by the engine and step modules.
package util

// CopyParams returns a deep copy of a decoded step parameter map so a
// module that mutates its parameters cannot affect a later retry.
// Nested maps and slices produced by the YAML decoder are copied; other
// values are shared.
func CopyParams(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return nil
	}
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = copyValue(v)
	}
	return dst
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return CopyParams(t)
	case map[interface{}]interface{}:
		m := make(map[interface{}]interface{}, len(t))
		for k, val := range t {
			m[k] = copyValue(val)
		}
		return m
	case []interface{}:
		s := make([]interface{}, len(t))
		for i, val := range t {
			s[i] = copyValue(val)
		}
		return s
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
