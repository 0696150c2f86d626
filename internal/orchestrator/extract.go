package orchestrator

import (
	"sort"

	"auto-api-healer/internal/types"
)

// ExtractIdentifiers harvests every scalar key/value pair of a JSON value.
// The first occurrence of a key wins. Within one object the scalar keys are
// recorded before nested values are visited, and arrays are scanned in order,
// so the first element of a list response acts as the canonical sample.
func ExtractIdentifiers(value interface{}) types.Context {
	out := types.Context{}
	walk(value, out)
	return out
}

func walk(value interface{}, out types.Context) {
	switch v := value.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			if !types.IsScalar(v[key]) {
				continue
			}
			if _, seen := out[key]; !seen {
				out[key] = v[key]
			}
		}
		for _, key := range keys {
			if v[key] != nil && !types.IsScalar(v[key]) {
				walk(v[key], out)
			}
		}
	case []interface{}:
		for _, item := range v {
			walk(item, out)
		}
	}
}
