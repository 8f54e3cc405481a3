package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCopyParams(t *testing.T) {
	src := map[string]interface{}{
		"command": "echo",
		"args":    []interface{}{"a", map[string]interface{}{"k": "v"}},
		"env":     []string{"A=1"},
		"nested":  map[interface{}]interface{}{"x": []interface{}{1}},
	}
	dst := CopyParams(src)
	assert.Equal(t, src, dst)

	dst["command"] = "rm"
	dst["args"].([]interface{})[1].(map[string]interface{})["k"] = "changed"
	dst["env"].([]string)[0] = "B=2"
	dst["nested"].(map[interface{}]interface{})["x"].([]interface{})[0] = 2

	assert.Equal(t, "echo", src["command"])
	assert.Equal(t, "v", src["args"].([]interface{})[1].(map[string]interface{})["k"])
	assert.Equal(t, "A=1", src["env"].([]string)[0])
	assert.Equal(t, 1, src["nested"].(map[interface{}]interface{})["x"].([]interface{})[0])

	assert.Nil(t, CopyParams(nil))
}
