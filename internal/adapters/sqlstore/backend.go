// Package sqlstore implements the result store on database/sql for SQLite,
// PostgreSQL and MySQL.
package sqlstore

import (
	"fmt"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql" // mysql driver
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	_ "modernc.org/sqlite"             // sqlite driver
)

// Backend names a supported database.
type Backend string

// Supported backends.
const (
	SQLite     Backend = "sqlite"
	PostgreSQL Backend = "postgres"
	MySQL      Backend = "mysql"
)

// ParseBackend maps a configuration value to a Backend.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return PostgreSQL, nil
	case "mysql":
		return MySQL, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedBackend, s)
	}
}

func (b Backend) driverName() string {
	switch b {
	case PostgreSQL:
		return "pgx"
	case MySQL:
		return "mysql"
	default:
		return "sqlite"
	}
}

// rebind rewrites ? placeholders for the backend. Queries in this package never
// contain a literal question mark.
func (b Backend) rebind(query string) string {
	if b != PostgreSQL {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// placeholders returns "?, ?, ..." with n marks.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
