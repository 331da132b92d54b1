package sqlstore

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"

	"modernc.org/sqlite"
)

// unicodeLower is registered on every SQLite connection. The built-in
// LOWER only folds ASCII.
const unicodeLower = "unicode_lower"

func init() {
	err := sqlite.RegisterDeterministicScalarFunction(unicodeLower, 1,
		func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			switch v := args[0].(type) {
			case string:
				return strings.ToLower(v), nil
			case []byte:
				return strings.ToLower(string(v)), nil
			default:
				return v, nil
			}
		})
	if err != nil {
		panic(fmt.Sprintf("sqlstore: registering %s: %v", unicodeLower, err))
	}
}

// paramKind names the column type a bound parameter is inserted into.
// INSERT ... SELECT statements cast their parameters so both engines agree
// on the types of the projected columns.
type paramKind int

const (
	kindInt paramKind = iota
	kindText
	kindBytes
	kindTime
)

// dialect captures the differences between the two supported engines.
// Queries are written once with ? placeholders and rebound per engine.
type dialect struct {
	name       string // "sqlite" or "postgres"
	driverName string // database/sql driver name
	numbered   bool   // placeholders are $1, $2, ... instead of ?
	typeNames  map[paramKind]string
	schema     []string

	// containsFold renders a case-insensitive LIKE of column against one
	// text parameter holding an escaped pattern.
	containsFold func(column, param string) string
}

var sqliteDialect = dialect{
	name:       "sqlite",
	driverName: "sqlite",
	numbered:   false,
	typeNames: map[paramKind]string{
		kindInt:   "INTEGER",
		kindText:  "TEXT",
		kindBytes: "BLOB",
		// CAST(... AS DATETIME) would apply NUMERIC affinity and truncate
		// the stored text, so time parameters stay uncast.
		kindTime: "",
	},
	schema: sqliteSchema,
	containsFold: func(column, param string) string {
		return unicodeLower + `(` + column + `) LIKE ` + unicodeLower + `(` + param + `) ESCAPE '\'`
	},
}

var postgresDialect = dialect{
	name:       "postgres",
	driverName: "pgx",
	numbered:   true,
	typeNames: map[paramKind]string{
		kindInt:   "BIGINT",
		kindText:  "TEXT",
		kindBytes: "BYTEA",
		kindTime:  "TIMESTAMPTZ",
	},
	schema: postgresSchema,
	containsFold: func(column, param string) string {
		return column + ` ILIKE ` + param + ` ESCAPE '\'`
	},
}

func dialectFor(driver string) (dialect, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite", "sqlite3":
		return sqliteDialect, nil
	case "postgres", "postgresql", "pgx":
		return postgresDialect, nil
	default:
		return dialect{}, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
}

// param returns a placeholder for a parameter of the given kind, cast when
// the engine needs the type spelled out.
func (d dialect) param(kind paramKind) string {
	if t := d.typeNames[kind]; t != "" {
		return "CAST(? AS " + t + ")"
	}
	return "?"
}

// contains returns a case-insensitive substring predicate on column. The
// bound value must be "%" + escapeLike(q) + "%".
func (d dialect) contains(column string) string {
	return d.containsFold(column, d.param(kindText))
}

// rebind rewrites ? placeholders into the engine's native form.
// Queries in this package never contain a literal '?'.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
