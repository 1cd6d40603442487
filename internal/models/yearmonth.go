package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// YearMonth is a calendar month without a day, used for card expiry.
// It serializes as "2031-08" and is stored as the first day of the month.
type YearMonth struct {
	Year  int
	Month time.Month
}

// YearMonthOf truncates t to its year and month.
func YearMonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// AddYears returns the year-month n years later.
func (ym YearMonth) AddYears(n int) YearMonth {
	return YearMonth{Year: ym.Year + n, Month: ym.Month}
}

// Before reports whether ym is strictly earlier than other.
func (ym YearMonth) Before(other YearMonth) bool {
	if ym.Year != other.Year {
		return ym.Year < other.Year
	}
	return ym.Month < other.Month
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, ym.Month)
}

func (ym YearMonth) MarshalJSON() ([]byte, error) {
	return []byte(`"` + ym.String() + `"`), nil
}

func (ym *YearMonth) UnmarshalJSON(data []byte) error {
	var y, m int
	if _, err := fmt.Sscanf(string(data), `"%d-%d"`, &y, &m); err != nil {
		return fmt.Errorf("invalid year-month %s: %w", data, err)
	}
	if m < 1 || m > 12 {
		return fmt.Errorf("invalid month in year-month %s", data)
	}
	ym.Year, ym.Month = y, time.Month(m)
	return nil
}

// Value stores the year-month as a date on the first of the month.
func (ym YearMonth) Value() (driver.Value, error) {
	return time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, time.UTC), nil
}

func (ym *YearMonth) Scan(src any) error {
	t, ok := src.(time.Time)
	if !ok {
		return fmt.Errorf("cannot scan %T into YearMonth", src)
	}
	ym.Year, ym.Month = t.Year(), t.Month()
	return nil
}
