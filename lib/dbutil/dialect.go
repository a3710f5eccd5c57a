package dbutil

import (
	"fmt"
	"strings"
)

type Dialect struct {
	Name        string
	numbered    bool
	quote       string
	tableExists string
}

var SQLite = Dialect{
	Name:        "sqlite",
	quote:       `"`,
	tableExists: "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?",
}

var Postgres = Dialect{
	Name:        "postgres",
	numbered:    true,
	quote:       `"`,
	tableExists: "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1",
}

var MySQL = Dialect{
	Name:        "mysql",
	quote:       "`",
	tableExists: "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?",
}

// Quote quotes an identifier, column names like "EC#" and "order" need it.
func (d Dialect) Quote(ident string) string {
	return d.quote + strings.ReplaceAll(ident, d.quote, d.quote+d.quote) + d.quote
}

// Placeholder returns the bind parameter for the i-th (0 based) argument.
func (d Dialect) Placeholder(i int) string {
	if d.numbered {
		return fmt.Sprintf("$%d", i+1)
	}
	return "?"
}

// Placeholders returns n comma separated bind parameters.
func (d Dialect) Placeholders(n int) string {
	params := make([]string, n)
	for i := range params {
		params[i] = d.Placeholder(i)
	}
	return strings.Join(params, ", ")
}
