// Package dates concentra el manejo de fechas civiles (sin hora) de la API.
// Todas las fechas se normalizan a medianoche UTC.
package dates

import (
	"strings"
	"time"
)

const Layout = "2006-01-02"

func Parse(s string) (time.Time, error) {
	return time.ParseInLocation(Layout, strings.TrimSpace(s), time.UTC)
}

// ParseOptional: "" => nil.
func ParseOptional(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := Parse(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Day trunca t a su fecha civil (en la zona de t) expresada en UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func DayPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := Day(*t)
	return &d
}

func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// DaysBetween devuelve b-a en días civiles.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}
