package orchestrator

import (
	"encoding/json"
	"testing"

	"auto-api-healer/internal/types"

	"github.com/stretchr/testify/assert"
)

func TestExtractIdentifiersFirstOccurrenceWins(t *testing.T) {
	var value interface{}
	assert.NoError(t, json.Unmarshal([]byte(`{"id":1,"nested":{"id":2}}`), &value))

	got := ExtractIdentifiers(value)
	assert.Equal(t, float64(1), got["id"])
}

func TestExtractIdentifiersListUsesFirstElement(t *testing.T) {
	value := []interface{}{
		map[string]interface{}{"id": json.Number("10"), "name": "first"},
		map[string]interface{}{"id": json.Number("11"), "name": "second", "extra": true},
	}

	got := ExtractIdentifiers(value)
	assert.Equal(t, types.Context{"id": json.Number("10"), "name": "first", "extra": true}, got)
}

func TestExtractIdentifiersSkipsNullsAndContainers(t *testing.T) {
	value := map[string]interface{}{
		"data": map[string]interface{}{
			"items": []interface{}{map[string]interface{}{"uuid": "u-1"}},
			"owner": nil,
		},
		"total": json.Number("2"),
	}

	got := ExtractIdentifiers(value)
	assert.Equal(t, types.Context{"uuid": "u-1", "total": json.Number("2")}, got)
	assert.NotContains(t, got, "owner")
	assert.NotContains(t, got, "data")
}

func TestExtractIdentifiersScalarRoot(t *testing.T) {
	assert.Empty(t, ExtractIdentifiers("plain text"))
	assert.Empty(t, ExtractIdentifiers(nil))
}
