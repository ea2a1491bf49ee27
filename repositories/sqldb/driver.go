package sqldb

import (
	"strconv"
	"strings"
)

// Driver names a database/sql driver supported by the store
type Driver string

const (
	Postgres Driver = "postgres"
	SQLite   Driver = "sqlite3"
)

// DetectDriver determines the driver from a connection string. PostgreSQL
// URLs and key/value DSNs select Postgres; anything else is treated as a
// SQLite path or URI.
func DetectDriver(dsn string) Driver {
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://"),
		strings.HasPrefix(lower, "postgresql://"),
		strings.Contains(lower, "host="):
		return Postgres
	default:
		return SQLite
	}
}

// Rebind rewrites ? placeholders into the driver's bind syntax
func (d Driver) Rebind(query string) string {
	if d != Postgres {
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
