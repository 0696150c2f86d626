package generator

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// TableInfo represents information about a database table
type TableInfo struct {
	Name        string
	Columns     []ColumnInfo
	PrimaryKey  string
	ForeignKeys []ForeignKeyInfo
}

// ColumnInfo represents information about a database column
type ColumnInfo struct {
	Name            string
	Type            string
	Nullable        bool
	IsPrimary       bool
	IsForeign       bool
	References      string
	ReferencedKey   string
	Default         string
	MaxLength       int
	IsAutoIncrement bool
}

// ForeignKeyInfo represents information about a foreign key relationship
type ForeignKeyInfo struct {
	Column           string
	ReferencedTable  string
	ReferencedColumn string
}

// Column returns the column named name, compared case-insensitively
func (t TableInfo) Column(name string) (ColumnInfo, bool) {
	for _, col := range t.Columns {
		if strings.EqualFold(col.Name, name) {
			return col, true
		}
	}
	return ColumnInfo{}, false
}

// Catalog is the read-only view of a database the generator works from
type Catalog interface {
	TableNames(ctx context.Context) ([]string, error)
	Table(ctx context.Context, name string) (TableInfo, error)

	// SampleRow returns one existing row, nil when the table is empty
	SampleRow(ctx context.Context, table string) (map[string]interface{}, error)

	// RandomValue returns the value of column in a random row, nil when the table is empty
	RandomValue(ctx context.Context, table, column string) (interface{}, error)
}

// TableAnalyzer handles database schema analysis over information_schema
type TableAnalyzer struct {
	db      *sql.DB
	dialect Dialect
}

// NewTableAnalyzer creates a new instance of TableAnalyzer
func NewTableAnalyzer(db *sql.DB, dialect Dialect) *TableAnalyzer {
	return &TableAnalyzer{db: db, dialect: dialect}
}

// TableNames retrieves all base table names of the current schema, lower-cased
func (ta *TableAnalyzer) TableNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT LOWER(table_name)
		FROM information_schema.tables
		WHERE table_schema = ` + ta.dialect.SchemaExpr() + `
		AND table_type = 'BASE TABLE'
	`
	rows, err := ta.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tables = append(tables, tableName)
	}
	return tables, rows.Err()
}

// Table analyzes a single table's structure
func (ta *TableAnalyzer) Table(ctx context.Context, tableName string) (TableInfo, error) {
	info := TableInfo{Name: tableName}

	columns, err := ta.getColumnInfo(ctx, tableName)
	if err != nil {
		return info, fmt.Errorf("failed to read columns of %s: %w", tableName, err)
	}

	fks, err := ta.getForeignKeys(ctx, tableName)
	if err != nil {
		return info, fmt.Errorf("failed to read foreign keys of %s: %w", tableName, err)
	}
	info.ForeignKeys = fks

	pks, err := ta.getPrimaryKeys(ctx, tableName)
	if err != nil {
		return info, fmt.Errorf("failed to read primary key of %s: %w", tableName, err)
	}

	markKeys(columns, pks, fks)
	info.Columns = columns
	if len(pks) > 0 {
		info.PrimaryKey = pks[0]
	}
	return info, nil
}

// markKeys flags primary, foreign and auto-increment columns
func markKeys(columns []ColumnInfo, pks []string, fks []ForeignKeyInfo) {
	for i := range columns {
		col := &columns[i]
		for _, pk := range pks {
			if strings.EqualFold(col.Name, pk) {
				col.IsPrimary = true
			}
		}
		for _, fk := range fks {
			if strings.EqualFold(col.Name, fk.Column) {
				col.IsForeign = true
				col.References = fk.ReferencedTable
				col.ReferencedKey = fk.ReferencedColumn
			}
		}
		col.IsAutoIncrement = isAutoIncrement(col.Default)
	}
}

func isAutoIncrement(columnDefault string) bool {
	d := strings.ToLower(columnDefault)
	return strings.Contains(d, "nextval(") || strings.Contains(d, "auto_increment") || strings.Contains(d, "identity")
}

// getColumnInfo retrieves column information for a table
func (ta *TableAnalyzer) getColumnInfo(ctx context.Context, tableName string) ([]ColumnInfo, error) {
	query := `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable,
			c.column_default,
			c.character_maximum_length
		FROM information_schema.columns c
		WHERE LOWER(c.table_name) = LOWER(` + ta.dialect.Placeholder(1) + `)
		AND c.table_schema = ` + ta.dialect.SchemaExpr() + `
		ORDER BY c.ordinal_position
	`
	rows, err := ta.db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var col ColumnInfo
		var nullable string
		var columnDefault sql.NullString
		var maxLength sql.NullInt64

		if err := rows.Scan(&col.Name, &col.Type, &nullable, &columnDefault, &maxLength); err != nil {
			return nil, err
		}

		col.Nullable = nullable == "YES"
		col.Default = columnDefault.String
		if maxLength.Valid && maxLength.Int64 > 0 {
			col.MaxLength = int(maxLength.Int64)
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// getPrimaryKeys retrieves the primary key columns of a table
func (ta *TableAnalyzer) getPrimaryKeys(ctx context.Context, tableName string) ([]string, error) {
	query := `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_name = kcu.table_name
		WHERE tc.constraint_type = 'PRIMARY KEY'
		AND LOWER(tc.table_name) = LOWER(` + ta.dialect.Placeholder(1) + `)
		ORDER BY kcu.ordinal_position
	`
	rows, err := ta.db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pks []string
	for rows.Next() {
		var pk string
		if err := rows.Scan(&pk); err != nil {
			return nil, err
		}
		pks = append(pks, pk)
	}
	return pks, rows.Err()
}

// getForeignKeys retrieves foreign key information for a table
func (ta *TableAnalyzer) getForeignKeys(ctx context.Context, tableName string) ([]ForeignKeyInfo, error) {
	rows, err := ta.db.QueryContext(ctx, ta.dialect.ForeignKeyQuery(), tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []ForeignKeyInfo
	for rows.Next() {
		var fk ForeignKeyInfo
		if err := rows.Scan(&fk.Column, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			return nil, err
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

// SampleRow reads one row of table as a column-keyed map
func (ta *TableAnalyzer) SampleRow(ctx context.Context, table string) (map[string]interface{}, error) {
	rows, err := ta.db.QueryContext(ctx, ta.dialect.SampleQuery(table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	values := make([]interface{}, len(columns))
	pointers := make([]interface{}, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}
	if err := rows.Scan(pointers...); err != nil {
		return nil, err
	}

	row := make(map[string]interface{}, len(columns))
	for i, name := range columns {
		row[name] = normalizeValue(values[i])
	}
	return row, nil
}

// RandomValue gets the value of column from a random row of table
func (ta *TableAnalyzer) RandomValue(ctx context.Context, table, column string) (interface{}, error) {
	var value interface{}
	err := ta.db.QueryRowContext(ctx, ta.dialect.RandomValueQuery(table, column)).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return normalizeValue(value), nil
}

// normalizeValue turns driver byte slices into strings so rows marshal as JSON text
func normalizeValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
