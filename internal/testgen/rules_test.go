package testgen

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaultRules(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	rules := DefaultRules()

	tests := []struct {
		kind  Kind
		field string
		match bool
		rule  string
	}{
		{kind: KindString, field: "phone_number", match: true, rule: "phone"},
		{kind: KindString, field: "contactEmail", match: true, rule: "email"},
		{kind: KindString, field: "full_name", match: true, rule: "name"},
		{kind: KindString, field: "label", match: false},
		{kind: KindNumber, field: "age", match: true, rule: "age"},
		{kind: KindNumber, field: "item_count", match: true, rule: "count"},
		{kind: KindNumber, field: "quantity", match: true, rule: "count"},
		{kind: KindNumber, field: "email", match: false},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			v, ok := Apply(rules, tt.kind, tt.field, rnd)
			assert.Equal(t, tt.match, ok)
			if !tt.match {
				assert.Nil(t, v)
			}
		})
	}
}

func TestRuleOrderIsRespected(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	custom := []Rule{
		{Name: "first", Kind: KindString, Match: contains("code"), Generate: func(string, *rand.Rand) interface{} { return "first" }},
		{Name: "second", Kind: KindString, Match: contains("code"), Generate: func(string, *rand.Rand) interface{} { return "second" }},
	}

	v, ok := Apply(custom, KindString, "promo_code", rnd)
	assert.True(t, ok)
	assert.Equal(t, "first", v)
}

func TestCountRuleRange(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		v, ok := Apply(DefaultRules(), KindNumber, "count", rnd)
		assert.True(t, ok)
		n := v.(int)
		assert.GreaterOrEqual(t, n, 1)
		assert.LessOrEqual(t, n, 10)
	}
}
