package store

import (
	"fmt"
	"strconv"
	"time"
)

// pgx returns native types, modernc sqlite returns int64 and strings, and
// the MySQL driver returns []byte unless parseTime is set. The accessors
// below accept all of them.

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// String returns the column as a string. NULL becomes "".
func (r Row) String(col string) (string, error) {
	switch v := r[col].(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return "", fmt.Errorf("column %s: cannot read %T as string", col, v)
	}
}

// Int64 returns the column as an int64. NULL becomes 0.
func (r Row) Int64(col string) (int64, error) {
	switch v := r[col].(type) {
	case nil:
		return 0, nil
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	default:
		return 0, fmt.Errorf("column %s: cannot read %T as int64", col, v)
	}
}

// Bool returns the column as a bool. NULL becomes false.
func (r Row) Bool(col string) (bool, error) {
	switch v := r[col].(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string, []byte:
		s, _ := r.String(col)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n != 0, nil
		}
		return strconv.ParseBool(s)
	default:
		n, err := r.Int64(col)
		if err != nil {
			return false, fmt.Errorf("column %s: cannot read %T as bool", col, v)
		}
		return n != 0, nil
	}
}

// Time returns the column as a UTC time. NULL becomes the zero time.
func (r Row) Time(col string) (time.Time, error) {
	switch v := r[col].(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v.UTC(), nil
	case string, []byte:
		s, _ := r.String(col)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("column %s: unrecognised time %q", col, s)
	default:
		return time.Time{}, fmt.Errorf("column %s: cannot read %T as time", col, v)
	}
}
