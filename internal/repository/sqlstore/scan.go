package sqlstore

import (
	"fmt"
	"strings"
	"time"
)

// timeLayouts are the textual forms a timestamp may come back in. The SQLite
// driver stores time.Time as text; pgx returns time.Time directly.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// scanTime is a sql.Scanner that accepts every representation either driver
// produces for a timestamp column. NULL leaves the zero time.
type scanTime struct {
	t *time.Time
}

func (s scanTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s.t = time.Time{}
		return nil
	case time.Time:
		*s.t = v.UTC()
		return nil
	case string:
		return s.parse(v)
	case []byte:
		return s.parse(string(v))
	default:
		return fmt.Errorf("sqlstore: cannot scan %T into time.Time", src)
	}
}

func (s scanTime) parse(v string) error {
	v = strings.TrimSpace(v)
	// time.Time.String appends a monotonic clock reading ("m=+0.0012").
	if i := strings.Index(v, " m="); i >= 0 {
		v = v[:i]
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			*s.t = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("sqlstore: unrecognised timestamp %q", v)
}
