package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Dialect covers the SQL that differs between drivers. Queries are written
// with ? placeholders and Bind turns them into the driver's form.
type Dialect interface {
	Now() string
	Bind(query string) string
}

type sqliteDialect struct{}

func (sqliteDialect) Now() string               { return "datetime('now','localtime')" }
func (sqliteDialect) Bind(query string) string { return query }

type postgresDialect struct{}

func (postgresDialect) Now() string { return "NOW()" }

// Bind numbers placeholders $1, $2, ... skipping question marks inside
// quoted literals.
func (postgresDialect) Bind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	quoted := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			quoted = !quoted
			b.WriteByte(c)
		case c == '?' && !quoted:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// sqliteTimeLayouts are the text forms SQLite hands back for timestamps.
var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05.999999-07:00",
	time.RFC3339Nano,
}

// timestamp scans a created_at/updated_at column. Postgres returns
// time.Time; SQLite returns text. NULL and unparseable text scan as zero.
type timestamp time.Time

func (t *timestamp) Scan(v any) error {
	switch x := v.(type) {
	case nil:
		*t = timestamp{}
	case time.Time:
		*t = timestamp(x)
	case string:
		*t = timestamp(parseSQLiteTime(x))
	case []byte:
		*t = timestamp(parseSQLiteTime(string(x)))
	default:
		return fmt.Errorf("scan timestamp: unsupported %T", v)
	}
	return nil
}

func parseSQLiteTime(s string) time.Time {
	for _, layout := range sqliteTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

// at adapts a time field for Scan.
func at(t *time.Time) *timestamp { return (*timestamp)(t) }
