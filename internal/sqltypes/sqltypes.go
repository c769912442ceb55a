package sqltypes

import (
	"fmt"
	"time"
)

const format = "2006-01-02 15:04:05.999999999-07:00"

type TimeScanner struct {
	Value *time.Time
}

func (t *TimeScanner) Scan(src interface{}) error {
	switch src := src.(type) {
	case time.Time:
		*t.Value = src
		return nil
	case string:
		v, err := time.Parse(format, src)
		if err != nil {
			return fmt.Errorf("sqltypes.TimeScanner: could not parse input value %q: %w", src, err)
		}
		*t.Value = v
		return nil
	default:
		return fmt.Errorf("sqltypes.TimeScanner: could not scan input type of %T", src)
	}
}

// UnixTimeScanner reads an integer unix-seconds column into a UTC time.Time.
type UnixTimeScanner struct {
	Value *time.Time
}

func (t *UnixTimeScanner) Scan(src interface{}) error {
	switch src := src.(type) {
	case int64:
		*t.Value = time.Unix(src, 0).UTC()
		return nil
	case float64:
		*t.Value = time.Unix(int64(src), 0).UTC()
		return nil
	default:
		return fmt.Errorf("sqltypes.UnixTimeScanner: could not scan input type of %T", src)
	}
}
