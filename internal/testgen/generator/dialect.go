package generator

import (
	"fmt"
	"strings"
)

// Dialect is a supported database flavour
type Dialect string

const (
	Postgres  Dialect = "postgres"
	MySQL     Dialect = "mysql"
	SQLServer Dialect = "sqlserver"
)

// ParseDialect validates a database type name
func ParseDialect(name string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(name)); d {
	case Postgres, MySQL, SQLServer:
		return d, nil
	case "postgresql":
		return Postgres, nil
	case "mssql":
		return SQLServer, nil
	}
	return "", fmt.Errorf("unsupported database type: %s", name)
}

// DriverName is the database/sql driver registered for the dialect
func (d Dialect) DriverName() string {
	return string(d)
}

// DSN builds the driver connection string
func (d Dialect) DSN(config DBConfig) string {
	switch d {
	case MySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
			config.User, config.Password, config.Host, config.Port, config.Database)
	case SQLServer:
		return fmt.Sprintf("server=%s;port=%d;user id=%s;password=%s;database=%s",
			config.Host, config.Port, config.User, config.Password, config.Database)
	default:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			config.Host, config.Port, config.User, quoteLibpq(config.Password), config.Database)
	}
}

// quoteLibpq quotes a key/value connection parameter when it holds spaces or quotes
func quoteLibpq(v string) string {
	if v == "" || strings.ContainsAny(v, ` '\`) {
		return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v) + "'"
	}
	return v
}

// Redacted returns the DSN with the password masked, for logging
func (d Dialect) Redacted(config DBConfig) string {
	masked := config
	if masked.Password != "" {
		masked.Password = "xxxxx"
	}
	return d.DSN(masked)
}

// Placeholder returns the n-th (1-based) bind parameter marker
func (d Dialect) Placeholder(n int) string {
	switch d {
	case MySQL:
		return "?"
	case SQLServer:
		return fmt.Sprintf("@p%d", n)
	default:
		return fmt.Sprintf("$%d", n)
	}
}

// SchemaExpr is the SQL expression naming the schema tables are looked up in
func (d Dialect) SchemaExpr() string {
	switch d {
	case MySQL:
		return "DATABASE()"
	case SQLServer:
		return "SCHEMA_NAME()"
	default:
		return "current_schema()"
	}
}

// Quote quotes an identifier
func (d Dialect) Quote(name string) string {
	switch d {
	case MySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	case SQLServer:
		return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}

// SampleQuery selects one arbitrary row of table
func (d Dialect) SampleQuery(table string) string {
	if d == SQLServer {
		return "SELECT TOP 1 * FROM " + d.Quote(table)
	}
	return "SELECT * FROM " + d.Quote(table) + " LIMIT 1"
}

// RandomValueQuery selects column from a random row of table
func (d Dialect) RandomValueQuery(table, column string) string {
	switch d {
	case MySQL:
		return fmt.Sprintf("SELECT %s FROM %s ORDER BY RAND() LIMIT 1", d.Quote(column), d.Quote(table))
	case SQLServer:
		return fmt.Sprintf("SELECT TOP 1 %s FROM %s ORDER BY NEWID()", d.Quote(column), d.Quote(table))
	default:
		return fmt.Sprintf("SELECT %s FROM %s ORDER BY RANDOM() LIMIT 1", d.Quote(column), d.Quote(table))
	}
}

// ForeignKeyQuery lists (column, referenced table, referenced column) for the table bound to parameter 1
func (d Dialect) ForeignKeyQuery() string {
	if d == MySQL {
		return `
		SELECT
			kcu.column_name,
			kcu.referenced_table_name,
			kcu.referenced_column_name
		FROM information_schema.key_column_usage AS kcu
		WHERE kcu.referenced_table_name IS NOT NULL
		AND kcu.table_schema = DATABASE()
		AND LOWER(kcu.table_name) = LOWER(?)
	`
	}
	return `
		SELECT
			kcu.column_name,
			ccu.table_name AS foreign_table_name,
			ccu.column_name AS foreign_column_name
		FROM information_schema.table_constraints AS tc
		JOIN information_schema.key_column_usage AS kcu
			ON tc.constraint_name = kcu.constraint_name
		JOIN information_schema.constraint_column_usage AS ccu
			ON ccu.constraint_name = tc.constraint_name
		WHERE tc.constraint_type = 'FOREIGN KEY'
		AND LOWER(tc.table_name) = LOWER(` + d.Placeholder(1) + `)
	`
}
