package testgen

import (
	"fmt"
	"math/rand"
	"strings"
)

// Kind is the primitive schema type a rule applies to
type Kind string

const (
	KindString Kind = "string"
	KindNumber Kind = "number"
)

// Rule generates a value for fields whose name matches a heuristic
type Rule struct {
	Name string
	Kind Kind

	// Match receives the lower-cased field name
	Match func(field string) bool

	// Generate receives the original field name
	Generate func(field string, rnd *rand.Rand) interface{}
}

// DefaultRules returns the field-name heuristics in evaluation order
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:  "phone",
			Kind:  KindString,
			Match: contains("phone"),
			Generate: func(_ string, rnd *rand.Rand) interface{} {
				return fmt.Sprintf("%d%09d", rnd.Intn(3)+7, 100000000+rnd.Intn(900000000))
			},
		},
		{
			Name:  "email",
			Kind:  KindString,
			Match: contains("email"),
			Generate: func(field string, rnd *rand.Rand) interface{} {
				prefix := strings.NewReplacer("_", "", "-", "").Replace(field)
				return fmt.Sprintf("%s%d@example.com", prefix, rnd.Intn(1000))
			},
		},
		{
			Name:  "name",
			Kind:  KindString,
			Match: contains("name"),
			Generate: func(field string, rnd *rand.Rand) interface{} {
				return fmt.Sprintf("%s %d", field, rnd.Intn(1000))
			},
		},
		{
			Name:  "age",
			Kind:  KindNumber,
			Match: contains("age"),
			Generate: func(_ string, rnd *rand.Rand) interface{} {
				return rnd.Intn(50) + 18
			},
		},
		{
			Name:  "count",
			Kind:  KindNumber,
			Match: contains("count", "quantity"),
			Generate: func(_ string, rnd *rand.Rand) interface{} {
				return rnd.Intn(10) + 1
			},
		},
	}
}

// Apply returns the value of the first rule of kind matching field
func Apply(rules []Rule, kind Kind, field string, rnd *rand.Rand) (interface{}, bool) {
	lower := strings.ToLower(field)
	for _, rule := range rules {
		if rule.Kind != kind || !rule.Match(lower) {
			continue
		}
		return rule.Generate(field, rnd), true
	}
	return nil, false
}

func contains(subs ...string) func(string) bool {
	return func(field string) bool {
		for _, sub := range subs {
			if strings.Contains(field, sub) {
				return true
			}
		}
		return false
	}
}
