package generator

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"strings"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // for sqlserver
	_ "github.com/go-sql-driver/mysql"   // for mysql
	_ "github.com/lib/pq"                // for postgres

	"auto-api-healer/internal/config"
	"auto-api-healer/internal/testgen"
	"auto-api-healer/internal/types"

	"github.com/google/uuid"
	"github.com/jinzhu/inflection"
	"go.uber.org/zap"
)

// DBConfig holds database connection configuration
type DBConfig struct {
	Type     string
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// FromSettings converts the database section of the configuration file
func FromSettings(s config.DatabaseConfig) DBConfig {
	return DBConfig{
		Type:     s.Type,
		Host:     s.Host,
		Port:     s.Port,
		Database: s.Name,
		User:     s.User,
		Password: s.Password,
	}
}

// Validate reports the first missing connection setting
func (c DBConfig) Validate() error {
	if _, err := ParseDialect(c.Type); err != nil {
		return err
	}
	switch {
	case c.Host == "":
		return fmt.Errorf("database host is required")
	case c.Port == 0:
		return fmt.Errorf("database port is required")
	case c.Database == "":
		return fmt.Errorf("database name is required")
	case c.User == "":
		return fmt.Errorf("database user is required")
	}
	return nil
}

// Open connects and pings the database
func Open(ctx context.Context, config DBConfig) (*sql.DB, Dialect, error) {
	if err := config.Validate(); err != nil {
		return nil, "", err
	}
	dialect, _ := ParseDialect(config.Type)

	db, err := sql.Open(dialect.DriverName(), dialect.DSN(config))
	if err != nil {
		return nil, "", fmt.Errorf("failed to open %s: %w", dialect.Redacted(config), err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("failed to connect to %s: %w", dialect.Redacted(config), err)
	}
	return db, dialect, nil
}

// BodyFiller shapes a request body template from a database record
type BodyFiller interface {
	GenerateBody(ctx context.Context, endpoint types.Endpoint, template interface{}, sample map[string]interface{}) (interface{}, error)
}

// DBGenerator fills test data from the rows and schema of a live database
type DBGenerator struct {
	catalog Catalog
	filler  BodyFiller
	rules   []testgen.Rule
	rnd     *rand.Rand
	now     func() time.Time
	logger  *zap.Logger

	tables []string
	infos  map[string]TableInfo
}

// Option customises a DBGenerator
type Option func(*DBGenerator)

// WithBodyFiller lets an AI service map records onto body templates
func WithBodyFiller(f BodyFiller) Option {
	return func(g *DBGenerator) { g.filler = f }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(g *DBGenerator) { g.logger = l }
}

// WithSeed makes generated values reproducible
func WithSeed(seed int64) Option {
	return func(g *DBGenerator) { g.rnd = rand.New(rand.NewSource(seed)) }
}

// NewDBGenerator creates a new instance of DBGenerator
func NewDBGenerator(catalog Catalog, opts ...Option) *DBGenerator {
	g := &DBGenerator{
		catalog: catalog,
		rules:   testgen.DefaultRules(),
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
		logger:  zap.NewNop(),
		infos:   make(map[string]TableInfo),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns a test data document for endpoints, starting from the
// entries of template. Endpoints whose path names no table are copied as is.
func (g *DBGenerator) Generate(ctx context.Context, endpoints []types.Endpoint, template types.TestDataDocument) (types.TestDataDocument, error) {
	tables, err := g.catalog.TableNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	g.tables = tables

	doc := make(types.TestDataDocument, len(endpoints))
	for _, ep := range endpoints {
		entry, _ := template.Lookup(ep)
		entry = copyEntry(entry)

		table, ok := g.tableFor(ep.Path)
		if !ok {
			g.logger.Debug("no table for endpoint", zap.String("operation", ep.ID()))
			doc[ep.ID()] = entry
			continue
		}

		generated, err := g.generateEndpointData(ctx, ep, table, entry)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			g.logger.Warn("failed to generate test data", zap.String("operation", ep.ID()), zap.String("table", table), zap.Error(err))
			doc[ep.ID()] = entry
			continue
		}
		doc[ep.ID()] = generated
	}
	return doc, nil
}

// generateEndpointData fills path params, query params and body of one entry
func (g *DBGenerator) generateEndpointData(ctx context.Context, ep types.Endpoint, table string, data types.EndpointTestData) (types.EndpointTestData, error) {
	info, err := g.tableInfo(ctx, table)
	if err != nil {
		return data, err
	}

	for _, name := range ep.PathParams() {
		if !needsValue(data.PathParams[name]) {
			continue
		}
		value, err := g.valueForParam(ctx, info, name)
		if err != nil {
			return data, err
		}
		if value != nil {
			data.PathParams[name] = value
		}
	}

	// query filters prefer values of an existing row so they match something
	var sample map[string]interface{}
	sampled := false
	for _, param := range ep.Parameters {
		if param.In != "query" {
			continue
		}
		current, present := data.QueryParams[param.Name]
		if present && current != nil {
			continue
		}
		col, ok := info.Column(param.Name)
		if !ok {
			continue
		}
		if !sampled {
			sampled = true
			if sample, err = g.catalog.SampleRow(ctx, info.Name); err != nil {
				return data, err
			}
		}
		if v, ok := sample[col.Name]; ok && v != nil {
			data.QueryParams[param.Name] = v
			continue
		}
		data.QueryParams[param.Name] = g.GenerateValue(col)
	}

	if ep.HasBody() {
		record, err := g.record(ctx, info)
		if err != nil {
			return data, err
		}
		data.Body = g.fillBody(ctx, ep, data.Body, record)
	}

	return data, nil
}

// valueForParam picks an existing key for a path parameter
func (g *DBGenerator) valueForParam(ctx context.Context, info TableInfo, name string) (interface{}, error) {
	column := ""
	if col, ok := info.Column(name); ok {
		if col.IsForeign && col.ReferencedKey != "" {
			return g.catalog.RandomValue(ctx, col.References, col.ReferencedKey)
		}
		column = col.Name
	} else if info.PrimaryKey != "" && isGenericKey(name) {
		column = info.PrimaryKey
	} else if info.PrimaryKey != "" && strings.EqualFold(name, inflection.Singular(info.Name)+"_id") {
		column = info.PrimaryKey
	}
	if column == "" {
		return nil, nil
	}
	return g.catalog.RandomValue(ctx, info.Name, column)
}

// record builds a fresh row for table: generated keys are left out and
// foreign keys point at existing rows of the referenced table.
func (g *DBGenerator) record(ctx context.Context, info TableInfo) (map[string]interface{}, error) {
	data := make(map[string]interface{}, len(info.Columns))
	for _, col := range info.Columns {
		if col.IsPrimary && (col.IsAutoIncrement || isIntegerType(col.Type)) {
			continue
		}

		if col.IsForeign {
			refColumn := col.ReferencedKey
			if refColumn == "" {
				refColumn = col.Name
			}
			value, err := g.catalog.RandomValue(ctx, col.References, refColumn)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				g.logger.Warn("failed to read foreign key value", zap.String("column", col.Name), zap.Error(err))
			}
			if value == nil {
				value = g.GenerateValue(col)
			}
			data[col.Name] = value
			continue
		}

		data[col.Name] = g.GenerateValue(col)
	}
	return data, nil
}

// fillBody maps record onto the body template, through the filler when one is configured
func (g *DBGenerator) fillBody(ctx context.Context, ep types.Endpoint, template interface{}, record map[string]interface{}) interface{} {
	if g.filler != nil {
		body, err := g.filler.GenerateBody(ctx, ep, template, record)
		if err == nil && body != nil {
			return body
		}
		g.logger.Warn("AI body generation failed, mapping columns directly", zap.String("operation", ep.ID()), zap.Error(err))
	}
	return MergeRecord(template, record)
}

// MergeRecord overwrites the fields of template with record columns of the
// same name, compared without case, underscores or dashes. A template that
// is not an object is replaced by the record.
func MergeRecord(template interface{}, record map[string]interface{}) interface{} {
	obj, ok := template.(map[string]interface{})
	if !ok || len(obj) == 0 {
		return record
	}

	columns := make(map[string]interface{}, len(record))
	for name, value := range record {
		columns[normalizeName(name)] = value
	}

	merged := make(map[string]interface{}, len(obj))
	for key, value := range obj {
		if v, ok := columns[normalizeName(key)]; ok {
			merged[key] = v
			continue
		}
		merged[key] = value
	}
	return merged
}

// tableFor finds the table a path is about, checking the path segments from
// the last to the first in singular and plural forms.
func (g *DBGenerator) tableFor(path string) (string, bool) {
	known := make(map[string]string, len(g.tables))
	for _, t := range g.tables {
		known[strings.ToLower(t)] = t
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		segment := strings.ToLower(strings.ReplaceAll(parts[i], "-", "_"))
		if segment == "" || strings.HasPrefix(segment, "{") {
			continue
		}
		for _, candidate := range []string{segment, inflection.Plural(segment), inflection.Singular(segment)} {
			if table, ok := known[candidate]; ok {
				return table, true
			}
		}
	}
	return "", false
}

func (g *DBGenerator) tableInfo(ctx context.Context, table string) (TableInfo, error) {
	if info, ok := g.infos[table]; ok {
		return info, nil
	}
	info, err := g.catalog.Table(ctx, table)
	if err != nil {
		return info, err
	}
	g.infos[table] = info
	return info, nil
}

// GenerateValue generates a value based on the column name and type
func (g *DBGenerator) GenerateValue(col ColumnInfo) interface{} {
	value := g.valueForColumn(col)
	if s, ok := value.(string); ok && col.MaxLength > 0 && len(s) > col.MaxLength {
		value = s[:col.MaxLength]
	}
	return value
}

func (g *DBGenerator) valueForColumn(col ColumnInfo) interface{} {
	colType := strings.ToLower(col.Type)
	columnName := strings.ToLower(col.Name)

	if colType == "uuid" || colType == "uniqueidentifier" {
		return uuid.New().String()
	}

	var kind testgen.Kind
	switch {
	case isIntegerType(colType) || isDecimalType(colType):
		kind = testgen.KindNumber
	case isTextType(colType):
		kind = testgen.KindString
	}
	if kind != "" {
		if v, ok := testgen.Apply(g.rules, kind, col.Name, g.rnd); ok {
			return v
		}
	}

	if isTextType(colType) {
		switch {
		case strings.Contains(columnName, "address"):
			return fmt.Sprintf("%d Main St", g.rnd.Intn(1000)+1)
		case strings.Contains(columnName, "city"):
			return fmt.Sprintf("City%d", g.rnd.Intn(100))
		case strings.Contains(columnName, "country"):
			return fmt.Sprintf("Country%d", g.rnd.Intn(100))
		case strings.Contains(columnName, "postal_code"), strings.Contains(columnName, "zip"):
			return fmt.Sprintf("%05d", g.rnd.Intn(90000)+10000)
		case strings.Contains(columnName, "timezone"):
			return "UTC"
		case strings.Contains(columnName, "gender"):
			genders := []string{"M", "F", "O"}
			return genders[g.rnd.Intn(len(genders))]
		case strings.Contains(columnName, "company"):
			return fmt.Sprintf("Company%d", g.rnd.Intn(1000))
		case strings.Contains(columnName, "code"):
			return fmt.Sprintf("CODE%d", g.rnd.Intn(1000))
		}
	}

	switch {
	case isIntegerType(colType):
		return g.rnd.Intn(1000) + 1
	case isDecimalType(colType):
		return float64(g.rnd.Intn(100000)) / 100
	case colType == "boolean" || colType == "bool" || colType == "bit" || colType == "tinyint(1)":
		return true
	case strings.HasPrefix(colType, "timestamp") || colType == "datetime" || colType == "datetime2" || colType == "datetimeoffset":
		return g.now().UTC().Add(time.Duration(g.rnd.Intn(1000)) * time.Hour).Format(time.RFC3339)
	case colType == "date":
		if strings.Contains(columnName, "birth") {
			return g.now().AddDate(-(g.rnd.Intn(62) + 18), 0, 0).Format("2006-01-02")
		}
		return g.now().AddDate(0, 0, g.rnd.Intn(365)).Format("2006-01-02")
	case strings.HasPrefix(colType, "time"):
		return g.now().Add(time.Duration(g.rnd.Intn(24)) * time.Hour).Format("15:04:05")
	case colType == "json" || colType == "jsonb":
		return map[string]interface{}{}
	case isTextType(colType):
		return g.randomString(col.MaxLength)
	}
	return fmt.Sprintf("value_%d", g.rnd.Intn(1000))
}

func (g *DBGenerator) randomString(length int) string {
	if length == 0 || length > 10 {
		length = 10
	}
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[g.rnd.Intn(len(charset))]
	}
	return string(b)
}

func isIntegerType(t string) bool {
	switch strings.ToLower(t) {
	case "integer", "int", "int2", "int4", "int8", "smallint", "bigint", "mediumint", "serial", "bigserial":
		return true
	}
	return false
}

func isDecimalType(t string) bool {
	switch strings.ToLower(t) {
	case "numeric", "decimal", "real", "double precision", "double", "float", "float4", "float8", "money":
		return true
	}
	return false
}

func isTextType(t string) bool {
	t = strings.ToLower(t)
	return strings.Contains(t, "char") || strings.Contains(t, "text") || t == "user-defined"
}

func isGenericKey(name string) bool {
	switch strings.ToLower(name) {
	case "id", "uuid", "_id", "pk", "key":
		return true
	}
	return false
}

// needsValue reports whether a template value is still a placeholder
func needsValue(v interface{}) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && (s == "" || strings.HasPrefix(s, "{{") || strings.HasPrefix(s, "{"))
}

func normalizeName(name string) string {
	return strings.ToLower(strings.NewReplacer("_", "", "-", "").Replace(name))
}

func copyEntry(entry types.EndpointTestData) types.EndpointTestData {
	out := types.EndpointTestData{
		PathParams:  make(map[string]interface{}, len(entry.PathParams)),
		QueryParams: make(map[string]interface{}, len(entry.QueryParams)),
		Headers:     make(map[string]string, len(entry.Headers)),
		Body:        entry.Body,
	}
	for k, v := range entry.PathParams {
		out.PathParams[k] = v
	}
	for k, v := range entry.QueryParams {
		out.QueryParams[k] = v
	}
	for k, v := range entry.Headers {
		out.Headers[k] = v
	}
	return out
}
