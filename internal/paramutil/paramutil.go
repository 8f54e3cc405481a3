// Package paramutil reads typed step parameters out of the loosely typed
// maps produced by the YAML decoder.
package paramutil

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	lgerrors "github.com/gxo-labs/logguard/pkg/logguard/v1/errors"
)

// GetRequiredString returns params[key] when it is a string.
func GetRequiredString(params map[string]interface{}, key string) (string, error) {
	value, exists := params[key]
	if !exists {
		return "", lgerrors.NewValidationError(fmt.Sprintf("missing required parameter '%s'", key), nil)
	}
	strValue, ok := value.(string)
	if !ok {
		return "", lgerrors.NewValidationError(fmt.Sprintf("parameter '%s' must be a string, got %T", key, value), nil)
	}
	return strValue, nil
}

// GetOptionalString returns the value and true when present, or an error
// when present with the wrong type.
func GetOptionalString(params map[string]interface{}, key string) (string, bool, error) {
	value, exists := params[key]
	if !exists {
		return "", false, nil
	}
	strValue, ok := value.(string)
	if !ok {
		return "", false, lgerrors.NewValidationError(fmt.Sprintf("parameter '%s' must be a string, got %T", key, value), nil)
	}
	return strValue, true, nil
}

// GetOptionalStringSlice accepts []string or a []interface{} of strings.
func GetOptionalStringSlice(params map[string]interface{}, key string) ([]string, bool, error) {
	value, exists := params[key]
	if !exists {
		return nil, false, nil
	}
	if stringSlice, ok := value.([]string); ok {
		return stringSlice, true, nil
	}
	sliceValue, ok := value.([]interface{})
	if !ok {
		return nil, false, lgerrors.NewValidationError(fmt.Sprintf("parameter '%s' must be a list/slice, got %T", key, value), nil)
	}
	result := make([]string, 0, len(sliceValue))
	for i, item := range sliceValue {
		strItem, ok := item.(string)
		if !ok {
			return nil, false, lgerrors.NewValidationError(fmt.Sprintf("parameter '%s' must be a list/slice of strings, found non-string element at index %d (%T)", key, i, item), nil)
		}
		result = append(result, strItem)
	}
	return result, true, nil
}

// GetOptionalMap accepts map[string]interface{} or map[interface{}]interface{}
// with string keys.
func GetOptionalMap(params map[string]interface{}, key string) (map[string]interface{}, bool, error) {
	value, exists := params[key]
	if !exists {
		return nil, false, nil
	}
	if mapValue, ok := value.(map[string]interface{}); ok {
		return mapValue, true, nil
	}
	if genericMap, ok := value.(map[interface{}]interface{}); ok {
		convertedMap := make(map[string]interface{}, len(genericMap))
		for k, v := range genericMap {
			strKey, ok := k.(string)
			if !ok {
				return nil, false, lgerrors.NewValidationError(fmt.Sprintf("parameter '%s' must be a map with string keys, found key of type %T", key, k), nil)
			}
			convertedMap[strKey] = v
		}
		return convertedMap, true, nil
	}
	return nil, false, lgerrors.NewValidationError(fmt.Sprintf("parameter '%s' must be a map, got %T", key, value), nil)
}

// GetOptionalInt accepts integer types and whole floats.
func GetOptionalInt(params map[string]interface{}, key string) (int, bool, error) {
	value, exists := params[key]
	if !exists {
		return 0, false, nil
	}
	switch v := value.(type) {
	case int:
		return v, true, nil
	case int32:
		return int(v), true, nil
	case int64:
		if int64(int(v)) != v {
			return 0, false, lgerrors.NewValidationError(fmt.Sprintf("parameter '%s' value %v overflows standard int type", key, v), nil)
		}
		return int(v), true, nil
	case float64:
		if v == float64(int(v)) {
			return int(v), true, nil
		}
		return 0, false, lgerrors.NewValidationError(fmt.Sprintf("parameter '%s' is a non-integer float (%v), cannot convert to int", key, v), nil)
	default:
		return 0, false, lgerrors.NewValidationError(fmt.Sprintf("parameter '%s' must be an integer or whole number, got %T", key, value), nil)
	}
}

// GetOptionalBool returns a boolean parameter.
func GetOptionalBool(params map[string]interface{}, key string) (bool, bool, error) {
	value, exists := params[key]
	if !exists {
		return false, false, nil
	}
	boolValue, ok := value.(bool)
	if !ok {
		return false, false, lgerrors.NewValidationError(fmt.Sprintf("parameter '%s' must be a boolean, got %T", key, value), nil)
	}
	return boolValue, true, nil
}

// GetOptionalDuration parses a Go duration string such as "1s" or "250ms".
func GetOptionalDuration(params map[string]interface{}, key string) (time.Duration, bool, error) {
	raw, ok, err := GetOptionalString(params, key)
	if err != nil || !ok {
		return 0, ok, err
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false, lgerrors.NewValidationError(fmt.Sprintf("parameter '%s' is not a valid duration", key), err)
	}
	if d < 0 {
		return 0, false, lgerrors.NewValidationError(fmt.Sprintf("parameter '%s' cannot be negative", key), nil)
	}
	return d, true, nil
}

// GetOptionalByteSize accepts a plain integer byte count or a human size
// string such as "2100kB" or "1MiB".
func GetOptionalByteSize(params map[string]interface{}, key string) (uint64, bool, error) {
	value, exists := params[key]
	if !exists {
		return 0, false, nil
	}
	if s, ok := value.(string); ok {
		n, err := humanize.ParseBytes(s)
		if err != nil {
			return 0, false, lgerrors.NewValidationError(fmt.Sprintf("parameter '%s' is not a valid size", key), err)
		}
		return n, true, nil
	}
	n, ok, err := GetOptionalInt(params, key)
	if err != nil || !ok {
		return 0, ok, err
	}
	if n < 0 {
		return 0, false, lgerrors.NewValidationError(fmt.Sprintf("parameter '%s' cannot be negative", key), nil)
	}
	return uint64(n), true, nil
}

// CheckAllowed rejects keys not listed in allowed. An empty list allows all.
func CheckAllowed(params map[string]interface{}, allowed []string) error {
	if len(allowed) == 0 {
		return nil
	}
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, key := range allowed {
		allowedSet[key] = struct{}{}
	}
	for key := range params {
		if _, ok := allowedSet[key]; !ok {
			return lgerrors.NewValidationError(fmt.Sprintf("unknown parameter '%s' provided", key), nil)
		}
	}
	return nil
}
