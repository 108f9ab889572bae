package caregivers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Caregiver struct {
	ID          string
	OwnerUserID string

	Name  string
	Phone string // E.164
	Email string
	Role  string // nurse, companion, family...
	Notes string

	Active bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clock es una hora del día en minutos desde medianoche (0..1439).
type Clock int

const (
	MinutesPerDay = 24 * 60
	EndOfDay      = Clock(MinutesPerDay - 1) // 23:59
)

var errBadClock = errors.New("time must be HH:MM")

func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	if len(s) != 5 || s[2] != ':' {
		return 0, errBadClock
	}
	h, errH := strconv.Atoi(s[:2])
	m, errM := strconv.Atoi(s[3:])
	if errH != nil || errM != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, errBadClock
	}
	return Clock(h*60 + m), nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Schedule es un turno recurrente: un cuidador, uno o más pacientes,
// un conjunto de días de la semana y una franja horaria.
// End <= Start significa que el turno cruza la medianoche.
type Schedule struct {
	ID          string
	OwnerUserID string

	CaregiverID string
	PatientIDs  []string
	Days        []time.Weekday

	Start Clock
	End   Clock

	Notes string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s Schedule) CrossesMidnight() bool {
	return s.End <= s.Start
}

func (s Schedule) HasDay(d time.Weekday) bool {
	for _, x := range s.Days {
		if x == d {
			return true
		}
	}
	return false
}

func (s Schedule) HasPatient(patientID string) bool {
	for _, id := range s.PatientIDs {
		if id == patientID {
			return true
		}
	}
	return false
}

var dayNames = map[string]time.Weekday{
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
	"sun": time.Sunday, "sunday": time.Sunday,
}

func ParseWeekday(s string) (time.Weekday, bool) {
	d, ok := dayNames[strings.ToLower(strings.TrimSpace(s))]
	return d, ok
}

// DayName devuelve la forma corta usada por la API (mon..sun).
func DayName(d time.Weekday) string {
	return strings.ToLower(d.String()[:3])
}
