package dialect

import (
	"testing"

	"github.com/koustreak/tablegate/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize_Valid(t *testing.T) {
	tests := []struct {
		d     Dialect
		ident string
		want  string
	}{
		{Postgres, "orders", `"orders"`},
		{Postgres, "_Order_Items2", `"_Order_Items2"`},
		{MySQL, "orders", "`orders`"},
		{MySQL, "Orders", "`Orders`"},
		{SQLite, "order_items", `"order_items"`},
		{Postgres, "pgsettings", `"pgsettings"`},
	}

	for _, tt := range tests {
		t.Run(tt.d.Name()+"/"+tt.ident, func(t *testing.T) {
			got, err := Sanitize(tt.d, tt.ident)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := Sanitize(tt.d, tt.ident)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestSanitize_Invalid(t *testing.T) {
	bad := []string{
		"",
		"1orders",
		"orders;",
		`orders"`,
		"or ders",
		"orders--",
		"users`; DROP TABLE x",
		"naïve",
		"schema.table",
	}

	for _, d := range []Dialect{Postgres, MySQL, SQLite} {
		for _, ident := range bad {
			_, err := Sanitize(d, ident)
			assert.True(t, errs.IsInvalidIdentifier(err), "%s %q: %v", d.Name(), ident, err)
		}
	}
}

func TestSanitize_Forbidden(t *testing.T) {
	for _, ident := range []string{"pg_class", "PG_roles", "information_schema", "Information_Schema_tables"} {
		_, err := Sanitize(Postgres, ident)
		assert.True(t, errs.IsForbiddenIdentifier(err), "%q: %v", ident, err)
	}
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$1", Postgres.Placeholder(1))
	assert.Equal(t, "$12", Postgres.Placeholder(12))
	assert.Equal(t, "?", MySQL.Placeholder(3))
	assert.Equal(t, "?", SQLite.Placeholder(3))
}

func TestReturning(t *testing.T) {
	assert.True(t, Postgres.Returning())
	assert.False(t, MySQL.Returning())
	assert.True(t, SQLite.Returning())
}

func TestJSONComparisons(t *testing.T) {
	assert.Equal(t, `"meta"::jsonb = $1::jsonb`, Postgres.JSONEquals(`"meta"`, "$1"))
	assert.Equal(t, `"meta"::text = $1`, Postgres.TextEquals(`"meta"`, "$1"))
	assert.Equal(t, "CAST(`meta` AS JSON) = CAST(? AS JSON)", MySQL.JSONEquals("`meta`", "?"))
	assert.Equal(t, "CAST(`meta` AS CHAR) = ?", MySQL.TextEquals("`meta`", "?"))
	assert.Equal(t, `json("meta") = json(?)`, SQLite.JSONEquals(`"meta"`, "?"))
}

func TestLookup(t *testing.T) {
	for name, want := range map[string]Dialect{
		"postgres":   Postgres,
		"PostgreSQL": Postgres,
		"pgx":        Postgres,
		"mysql":      MySQL,
		"mariadb":    MySQL,
		"sqlite3":    SQLite,
	} {
		got, err := Lookup(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := Lookup("oracle")
	assert.True(t, errs.IsInvalidInput(err))
}

func TestNoLimit(t *testing.T) {
	assert.Empty(t, Postgres.NoLimit())
	assert.Equal(t, "18446744073709551615", MySQL.NoLimit())
	assert.Equal(t, "-1", SQLite.NoLimit())
}
