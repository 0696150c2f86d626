package executor

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"auto-api-healer/internal/types"
)

var (
	exactToken = regexp.MustCompile(`^\{\{\s*([^}]+?)\s*\}\}$`)
	anyToken   = regexp.MustCompile(`\{\{\s*([^}]+?)\s*\}\}`)
)

// BindPath substitutes remaining {name} and {{name}} placeholders of a path
func BindPath(path string, vars types.Context) string {
	out := BindString(path, vars)
	for _, name := range types.PlaceholderNames(out) {
		if value, ok := vars.Lookup(name); ok {
			out = strings.ReplaceAll(out, "{"+name+"}", url.PathEscape(value))
		}
	}
	return out
}

// BindString replaces every {{name}} token whose variable is known
func BindString(s string, vars types.Context) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return anyToken.ReplaceAllStringFunc(s, func(token string) string {
		name := anyToken.FindStringSubmatch(token)[1]
		if value, ok := vars.Lookup(name); ok {
			return value
		}
		return token
	})
}

// BindBody returns a copy of body with context variables bound. A string that
// is exactly {{name}} takes the typed variable value, embedded tokens are
// replaced as text, and identifier fields still holding a placeholder value
// are filled from the variable of the same name.
func BindBody(body interface{}, vars types.Context) interface{} {
	switch v := body.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, value := range v {
			bound := BindBody(value, vars)
			if isIdentifierField(key) && isUnfilled(bound) && vars.Has(key) {
				bound = vars[key]
			}
			out[key] = bound
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = BindBody(item, vars)
		}
		return out
	case string:
		if m := exactToken.FindStringSubmatch(v); m != nil {
			if vars.Has(m[1]) {
				return vars[m[1]]
			}
			return v
		}
		return BindString(v, vars)
	}
	return body
}

func isIdentifierField(key string) bool {
	return strings.HasSuffix(strings.ToLower(key), "id")
}

func isUnfilled(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == "" || val == "string" || val == "uuid" || strings.Contains(val, "{{")
	case json.Number:
		f, err := val.Float64()
		return err == nil && f == 0
	case float64:
		return val == 0
	case int:
		return val == 0
	}
	return false
}
