package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Context maps learned variable names to scalar values for one run
type Context map[string]interface{}

// Clone returns a shallow copy that can be mutated without touching the receiver
func (c Context) Clone() Context {
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Merge copies every pair of other into the context, overwriting existing keys
func (c Context) Merge(other Context) {
	for k, v := range other {
		c[k] = v
	}
}

// Has reports whether key holds a usable value
func (c Context) Has(key string) bool {
	v, ok := c[key]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok && s == "" {
		return false
	}
	return true
}

// Lookup returns the value of key formatted for a URL or template
func (c Context) Lookup(key string) (string, bool) {
	if !c.Has(key) {
		return "", false
	}
	return FormatValue(c[key]), true
}

// IsScalar reports whether v is a non-null string, number or boolean
func IsScalar(v interface{}) bool {
	switch v.(type) {
	case string, bool, json.Number, float64, float32, int, int32, int64, uint, uint32, uint64:
		return true
	}
	return false
}

// FormatValue renders a scalar without exponent notation for integral floats
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return FormatValue(float64(val))
	default:
		return fmt.Sprint(val)
	}
}
