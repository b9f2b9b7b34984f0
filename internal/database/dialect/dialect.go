// Package dialect captures everything that differs syntactically between
// the supported SQL engines: identifier quoting, placeholder style, whether
// writes can return rows, and how JSON values are compared.
//
// Callers receive a Dialect value and never branch on an engine name.
package dialect

import (
	"fmt"
	"strings"

	"github.com/koustreak/tablegate/internal/errs"
)

// Family groups engines that share syntax and catalog layout.
type Family string

const (
	FamilyPostgres Family = "postgres"
	FamilyMySQL    Family = "mysql"
	FamilySQLite   Family = "sqlite"
)

// Dialect is the per-engine strategy injected into the query builder and
// the schema introspector.
type Dialect interface {
	// Name is the canonical engine name.
	Name() string

	// Family reports the syntax family.
	Family() Family

	// Quote wraps an identifier in the engine's quote character. It performs
	// no validation; use Sanitize for anything that may come from a client.
	Quote(ident string) string

	// Placeholder returns the bind marker for the n-th (1-based) parameter.
	Placeholder(n int) string

	// Returning reports whether writes can append RETURNING * and hand back
	// the affected rows.
	Returning() bool

	// JSONEquals compares a JSON column with a JSON-encoded parameter.
	JSONEquals(column, placeholder string) string

	// TextEquals compares a column's text rendering with a parameter.
	TextEquals(column, placeholder string) string

	// NoLimit is the LIMIT operand meaning "all rows", for engines that
	// reject OFFSET without LIMIT. Empty when OFFSET may stand alone.
	NoLimit() string
}

type postgres struct{}

func (postgres) Name() string             { return "postgres" }
func (postgres) Family() Family           { return FamilyPostgres }
func (postgres) Quote(ident string) string { return `"` + ident + `"` }
func (postgres) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }
func (postgres) Returning() bool          { return true }

func (postgres) JSONEquals(column, placeholder string) string {
	return fmt.Sprintf("%s::jsonb = %s::jsonb", column, placeholder)
}

func (postgres) TextEquals(column, placeholder string) string {
	return fmt.Sprintf("%s::text = %s", column, placeholder)
}

func (postgres) NoLimit() string { return "" }

type mysql struct{}

func (mysql) Name() string             { return "mysql" }
func (mysql) Family() Family           { return FamilyMySQL }
func (mysql) Quote(ident string) string { return "`" + ident + "`" }

// Placeholder ignores n: the MySQL driver binds positionally by textual order.
func (mysql) Placeholder(int) string { return "?" }
func (mysql) Returning() bool        { return false }

func (mysql) JSONEquals(column, placeholder string) string {
	return fmt.Sprintf("CAST(%s AS JSON) = CAST(%s AS JSON)", column, placeholder)
}

func (mysql) TextEquals(column, placeholder string) string {
	return fmt.Sprintf("CAST(%s AS CHAR) = %s", column, placeholder)
}

// NoLimit is the largest BIGINT UNSIGNED, as the MySQL manual suggests.
func (mysql) NoLimit() string { return "18446744073709551615" }

type sqlite struct{}

func (sqlite) Name() string             { return "sqlite" }
func (sqlite) Family() Family           { return FamilySQLite }
func (sqlite) Quote(ident string) string { return `"` + ident + `"` }
func (sqlite) Placeholder(int) string   { return "?" }
func (sqlite) Returning() bool          { return true }

func (sqlite) JSONEquals(column, placeholder string) string {
	return fmt.Sprintf("json(%s) = json(%s)", column, placeholder)
}

func (sqlite) TextEquals(column, placeholder string) string {
	return fmt.Sprintf("CAST(%s AS TEXT) = %s", column, placeholder)
}

func (sqlite) NoLimit() string { return "-1" }

// The supported dialects.
var (
	Postgres Dialect = postgres{}
	MySQL    Dialect = mysql{}
	SQLite   Dialect = sqlite{}
)

// Lookup resolves a driver name or alias to its Dialect.
func Lookup(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pgx", "pg":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return nil, errs.Newf(errs.ErrKindInvalidInput, "unsupported dialect %q", name)
	}
}
