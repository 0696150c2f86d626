package orchestrator

import (
	"strings"

	"github.com/jinzhu/inflection"
)

// SearchKey derives the producer search key of a variable: an _id or Id
// suffix is stripped and the remainder lower-cased.
func SearchKey(name string) string {
	key := name
	switch {
	case len(key) > 3 && strings.EqualFold(key[len(key)-3:], "_id"):
		key = key[:len(key)-3]
	case len(key) > 2 && strings.HasSuffix(key, "Id"):
		key = key[:len(key)-2]
	}
	return strings.ToLower(key)
}

// isGenericIdentifier reports names that say nothing about the resource they identify
func isGenericIdentifier(name string) bool {
	switch strings.ToLower(name) {
	case "id", "uuid", "_id", "pk", "key":
		return true
	}
	return false
}

// isIdentifierKey reports keys such as id, user_id, userId or uuid
func isIdentifierKey(key string) bool {
	lower := strings.ToLower(key)
	return strings.HasSuffix(lower, "id") || strings.HasSuffix(lower, "uuid")
}

// segments splits a path into its non-empty segments
func segments(path string) []string {
	var out []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// lastSegment returns the trailing path segment, "" for the root
func lastSegment(path string) string {
	parts := segments(path)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// singular returns the singular form of a path segment
func singular(segment string) string {
	return inflection.Singular(segment)
}

// segmentBefore returns the static segment that precedes the {name} placeholder
func segmentBefore(path, name string) string {
	placeholder := "{" + name + "}"
	parts := segments(path)
	for i, part := range parts {
		if part != placeholder {
			continue
		}
		for j := i - 1; j >= 0; j-- {
			if !strings.Contains(parts[j], "{") {
				return parts[j]
			}
		}
		return ""
	}
	return ""
}
