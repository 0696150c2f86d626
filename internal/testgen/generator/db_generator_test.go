package generator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"auto-api-healer/internal/config"
	"auto-api-healer/internal/types"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	tables map[string]TableInfo
	values map[string]interface{} // "table.column" -> value
	rows   map[string]map[string]interface{}
	err    error
	reads  int
}

func (f *fakeCatalog) TableNames(_ context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	names := make([]string, 0, len(f.tables))
	for name := range f.tables {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakeCatalog) Table(_ context.Context, name string) (TableInfo, error) {
	f.reads++
	info, ok := f.tables[name]
	if !ok {
		return TableInfo{}, errors.New("no such table")
	}
	return info, nil
}

func (f *fakeCatalog) SampleRow(_ context.Context, table string) (map[string]interface{}, error) {
	return f.rows[table], nil
}

func (f *fakeCatalog) RandomValue(_ context.Context, table, column string) (interface{}, error) {
	return f.values[table+"."+column], nil
}

type fakeFiller struct {
	sample map[string]interface{}
	body   interface{}
	err    error
}

func (f *fakeFiller) GenerateBody(_ context.Context, _ types.Endpoint, _ interface{}, sample map[string]interface{}) (interface{}, error) {
	f.sample = sample
	return f.body, f.err
}

func fleetCatalog() *fakeCatalog {
	drivers := TableInfo{Name: "drivers", PrimaryKey: "id", Columns: []ColumnInfo{
		{Name: "id", Type: "integer", IsPrimary: true, IsAutoIncrement: true},
		{Name: "email", Type: "character varying", MaxLength: 120},
		{Name: "license_code", Type: "varchar", MaxLength: 4},
		{Name: "rating", Type: "numeric"},
		{Name: "active", Type: "boolean"},
	}}
	columns := []ColumnInfo{
		{Name: "id", Type: "uuid", IsPrimary: true},
		{Name: "driver_id", Type: "integer", IsForeign: true, References: "drivers", ReferencedKey: "id"},
		{Name: "plate", Type: "text"},
	}
	markKeys(columns, []string{"id"}, nil)
	vehicles := TableInfo{Name: "vehicles", PrimaryKey: "id", Columns: columns}

	return &fakeCatalog{
		tables: map[string]TableInfo{"drivers": drivers, "vehicles": vehicles},
		values: map[string]interface{}{
			"drivers.id":  int64(42),
			"vehicles.id": "9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d",
		},
	}
}

func endpoint(method, path string, withBody bool) types.Endpoint {
	ep := types.Endpoint{Method: method, Path: path}
	if withBody {
		ep.RequestBody = openapi3.NewSchemaRef("", openapi3.NewObjectSchema())
	}
	return ep
}

func TestGenerateBodyFromColumns(t *testing.T) {
	catalog := fleetCatalog()
	g := NewDBGenerator(catalog, WithSeed(1))

	ep := endpoint("POST", "/api/v1/vehicles", true)
	doc, err := g.Generate(context.Background(), []types.Endpoint{ep}, nil)
	require.NoError(t, err)

	body, ok := doc[ep.ID()].Body.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, int64(42), body["driver_id"], "foreign keys point at existing rows")
	assert.Contains(t, body, "plate")
	assert.Contains(t, body, "id", "uuid keys are not generated by the database")
}

func TestGenerateSkipsAutoIncrementKey(t *testing.T) {
	g := NewDBGenerator(fleetCatalog(), WithSeed(1))

	ep := endpoint("POST", "/drivers", true)
	doc, err := g.Generate(context.Background(), []types.Endpoint{ep}, nil)
	require.NoError(t, err)

	body := doc[ep.ID()].Body.(map[string]interface{})
	assert.NotContains(t, body, "id")
	assert.Contains(t, body["email"], "@example.com")
	assert.LessOrEqual(t, len(body["license_code"].(string)), 4)
	assert.Equal(t, true, body["active"])
}

func TestGenerateMergesTemplate(t *testing.T) {
	g := NewDBGenerator(fleetCatalog(), WithSeed(1))

	ep := endpoint("POST", "/vehicles", true)
	template := types.TestDataDocument{
		"POST_/vehicles": {Body: map[string]interface{}{"driverId": "{{driver_id}}", "color": "red"}},
	}
	doc, err := g.Generate(context.Background(), []types.Endpoint{ep}, template)
	require.NoError(t, err)

	body := doc[ep.ID()].Body.(map[string]interface{})
	assert.Equal(t, int64(42), body["driverId"])
	assert.Equal(t, "red", body["color"])
	assert.Len(t, body, 2)

	// the template itself is left untouched
	assert.Equal(t, "{{driver_id}}", template["POST_/vehicles"].Body.(map[string]interface{})["driverId"])
}

func TestGeneratePathParams(t *testing.T) {
	g := NewDBGenerator(fleetCatalog(), WithSeed(1))

	byID := endpoint("GET", "/drivers/{id}", false)
	byName := endpoint("GET", "/drivers/{driver_id}/vehicles/{vehicle_id}", false)
	template := types.TestDataDocument{
		byID.ID(): {PathParams: map[string]interface{}{"id": "{{id}}"}},
	}

	doc, err := g.Generate(context.Background(), []types.Endpoint{byID, byName}, template)
	require.NoError(t, err)

	assert.Equal(t, int64(42), doc[byID.ID()].PathParams["id"])
	assert.Equal(t, "9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d", doc[byName.ID()].PathParams["vehicle_id"])
	assert.Equal(t, int64(42), doc[byName.ID()].PathParams["driver_id"], "foreign keys are read from the referenced table")
}

func TestGenerateQueryParamsFromSample(t *testing.T) {
	catalog := fleetCatalog()
	catalog.rows = map[string]map[string]interface{}{"drivers": {"email": "real@fleet.io", "rating": nil}}
	g := NewDBGenerator(catalog, WithSeed(1))

	ep := endpoint("GET", "/drivers", false)
	ep.Parameters = []types.Parameter{
		{Name: "email", In: "query"},
		{Name: "rating", In: "query"},
		{Name: "active", In: "query"},
		{Name: "page", In: "query"},
	}
	template := types.TestDataDocument{ep.ID(): {QueryParams: map[string]interface{}{"active": false}}}

	doc, err := g.Generate(context.Background(), []types.Endpoint{ep}, template)
	require.NoError(t, err)

	query := doc[ep.ID()].QueryParams
	assert.Equal(t, "real@fleet.io", query["email"])
	assert.IsType(t, float64(0), query["rating"], "null sample values are generated")
	assert.Equal(t, false, query["active"], "template values are kept")
	assert.NotContains(t, query, "page", "only table columns are filled")
}

func TestGenerateUsesFiller(t *testing.T) {
	filler := &fakeFiller{body: map[string]interface{}{"name": "from ai"}}
	g := NewDBGenerator(fleetCatalog(), WithSeed(1), WithBodyFiller(filler))

	ep := endpoint("POST", "/drivers", true)
	doc, err := g.Generate(context.Background(), []types.Endpoint{ep}, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{"name": "from ai"}, doc[ep.ID()].Body)
	assert.Contains(t, filler.sample, "email")

	filler.err = errors.New("rate limited")
	filler.body = nil
	doc, err = g.Generate(context.Background(), []types.Endpoint{ep}, nil)
	require.NoError(t, err)
	assert.Contains(t, doc[ep.ID()].Body, "email", "falls back to the generated record")
}

func TestGenerateUnknownTable(t *testing.T) {
	catalog := fleetCatalog()
	g := NewDBGenerator(catalog)

	ep := endpoint("GET", "/health", false)
	template := types.TestDataDocument{ep.ID(): {Headers: map[string]string{"X-Trace": "1"}}}
	doc, err := g.Generate(context.Background(), []types.Endpoint{ep}, template)
	require.NoError(t, err)

	assert.Equal(t, "1", doc[ep.ID()].Headers["X-Trace"])
	assert.Zero(t, catalog.reads)
}

func TestGenerateCachesTableInfo(t *testing.T) {
	catalog := fleetCatalog()
	g := NewDBGenerator(catalog)

	_, err := g.Generate(context.Background(), []types.Endpoint{
		endpoint("GET", "/drivers/{id}", false),
		endpoint("DELETE", "/drivers/{id}", false),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, catalog.reads)
}

func TestGenerateCatalogError(t *testing.T) {
	g := NewDBGenerator(&fakeCatalog{err: errors.New("connection reset")})
	_, err := g.Generate(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestTableFor(t *testing.T) {
	g := NewDBGenerator(fleetCatalog())
	g.tables = []string{"drivers", "vehicles", "trip_requests"}

	tests := []struct {
		path  string
		table string
		ok    bool
	}{
		{"/api/v1/drivers", "drivers", true},
		{"/api/v1/drivers/{driver_id}", "drivers", true},
		{"/api/v1/vehicles/driver/{driver_id}", "drivers", true},
		{"/trips/{id}/trip-requests", "trip_requests", true},
		{"/health", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			table, ok := g.tableFor(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.table, table)
		})
	}
}

func TestMergeRecord(t *testing.T) {
	record := map[string]interface{}{"first_name": "Ada", "age": 36}

	assert.Equal(t, record, MergeRecord(nil, record))
	assert.Equal(t, record, MergeRecord("scalar", record))
	assert.Equal(t,
		map[string]interface{}{"firstName": "Ada", "nickname": "x"},
		MergeRecord(map[string]interface{}{"firstName": "", "nickname": "x"}, record),
	)
}

func TestGenerateValueByType(t *testing.T) {
	g := NewDBGenerator(nil, WithSeed(7))

	assert.IsType(t, 0, g.GenerateValue(ColumnInfo{Name: "quantity_on_hand", Type: "integer"}))
	assert.IsType(t, float64(0), g.GenerateValue(ColumnInfo{Name: "price", Type: "numeric"}))
	assert.Equal(t, "UTC", g.GenerateValue(ColumnInfo{Name: "timezone", Type: "text"}))
	assert.Len(t, g.GenerateValue(ColumnInfo{Name: "id", Type: "uuid"}), 36)

	date := g.GenerateValue(ColumnInfo{Name: "date_of_birth", Type: "date"}).(string)
	assert.Len(t, date, len("2006-01-02"))

	truncated := g.GenerateValue(ColumnInfo{Name: "nickname", Type: "varchar", MaxLength: 3}).(string)
	assert.LessOrEqual(t, len(truncated), 3)
}

func TestIsAutoIncrement(t *testing.T) {
	assert.True(t, isAutoIncrement("nextval('drivers_id_seq'::regclass)"))
	assert.True(t, isAutoIncrement("auto_increment"))
	assert.False(t, isAutoIncrement("now()"))
	assert.False(t, isAutoIncrement(""))
}

func TestNeedsValue(t *testing.T) {
	assert.True(t, needsValue(nil))
	assert.True(t, needsValue(""))
	assert.True(t, needsValue("{{id}}"))
	assert.False(t, needsValue("7"))
	assert.False(t, needsValue(7))
}

func TestFromSettings(t *testing.T) {
	c := FromSettings(config.DatabaseConfig{Type: "postgres", Host: "db", Port: 5432, Name: "fleet", User: "app", Password: "pw"})
	assert.Equal(t, DBConfig{Type: "postgres", Host: "db", Port: 5432, Database: "fleet", User: "app", Password: "pw"}, c)
	assert.NoError(t, c.Validate())

	c.Host = ""
	assert.Error(t, c.Validate())
	c.Type = "oracle"
	assert.True(t, strings.Contains(c.Validate().Error(), "unsupported"))
}
