package sqldb

import (
	"fmt"
	"strconv"
	"time"

	"github.com/open-builders/premium-backend/internal/domain/user"
)

// Page size used by lazy listings.
const defaultPageSize = 100

// dbTime scans timestamps from either driver: lib/pq yields time.Time while
// SQLite may hand back text for expression or RETURNING columns.
type dbTime struct {
	Time  time.Time
	Valid bool
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

func (d *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Time, d.Valid = time.Time{}, false
		return nil
	case time.Time:
		d.Time, d.Valid = v.UTC(), true
		return nil
	case int64:
		d.Time, d.Valid = time.Unix(v, 0).UTC(), true
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
}

func (d *dbTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time, d.Valid = t.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

func (d dbTime) Ptr() *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}

// nullDate converts an optional date into a driver argument.
func nullDate(d *user.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

type rowScanner interface {
	Scan(dest ...any) error
}

func itoa(n int) string { return strconv.Itoa(n) }
