package orchestrator

import (
	"testing"

	"auto-api-healer/internal/types"

	"github.com/stretchr/testify/assert"
)

func TestSearchKey(t *testing.T) {
	tests := map[string]string{
		"driver_id": "driver",
		"Driver_ID": "driver",
		"userId":    "user",
		"id":        "id",
		"token":     "token",
		"Category":  "category",
	}
	for in, want := range tests {
		assert.Equal(t, want, SearchKey(in), in)
	}
}

func TestLocatePrefersBaseCollection(t *testing.T) {
	endpoints := []types.Endpoint{
		get("/api/drivers/check-phone"),
		get("/api/drivers"),
		{Method: "POST", Path: "/api/drivers"},
		get("/api/drivers/{driver_id}"),
	}

	producer, ok := Locate(endpoints, SearchKey("driver_id"))
	assert.True(t, ok)
	assert.Equal(t, "/api/drivers", producer.Path)
}

func TestLocateRanking(t *testing.T) {
	tests := []struct {
		name      string
		endpoints []types.Endpoint
		key       string
		want      string
	}{
		{
			name:      "plural suffix beats contains",
			endpoints: []types.Endpoint{get("/v1/trip"), get("/v1/trips")},
			key:       "trip",
			want:      "/v1/trips",
		},
		{
			name:      "irregular plural",
			endpoints: []types.Endpoint{get("/category-stats"), get("/api/categories")},
			key:       "category",
			want:      "/api/categories",
		},
		{
			name:      "singular suffix beats contains",
			endpoints: []types.Endpoint{get("/profile/settings"), get("/me/profile")},
			key:       "profile",
			want:      "/me/profile",
		},
		{
			name:      "shortest path among contains",
			endpoints: []types.Endpoint{get("/reports/vehicle-usage"), get("/vehicle-info")},
			key:       "vehicle",
			want:      "/vehicle-info",
		},
		{
			name: "operation id",
			endpoints: []types.Endpoint{
				{Method: "GET", Path: "/lookup", OperationID: "listCustomers"},
			},
			key:  "customer",
			want: "/lookup",
		},
		{
			name: "tag",
			endpoints: []types.Endpoint{
				{Method: "GET", Path: "/all", Tags: []string{"Invoices"}},
			},
			key:  "invoice",
			want: "/all",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			producer, ok := Locate(tt.endpoints, tt.key)
			assert.True(t, ok)
			assert.Equal(t, tt.want, producer.Path)
		})
	}
}

func TestLocateNoCandidate(t *testing.T) {
	endpoints := []types.Endpoint{
		get("/users"),
		{Method: "POST", Path: "/invoices"},
		get("/invoices/{id}"),
	}

	_, ok := Locate(endpoints, "invoice")
	assert.False(t, ok)

	_, ok = Locate(endpoints, "")
	assert.False(t, ok)
}
