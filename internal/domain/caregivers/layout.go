package caregivers

import (
	"sort"
	"time"
)

const DefaultHourHeight = 48.0

// Segment es un bloque del calendario semanal (lunes a domingo).
// Continuation marca la parte "después de medianoche" de un turno nocturno.
type Segment struct {
	ScheduleID  string
	CaregiverID string
	PatientIDs  []string

	Day   time.Weekday
	Start Clock
	End   Clock

	Continuation bool

	Top    float64
	Height float64
}

// NextDay en el ciclo fijo de 7 días; domingo => lunes.
func NextDay(d time.Weekday) time.Weekday {
	return (d + 1) % 7
}

// weekIndex ordena lunes primero.
func weekIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// Segments parte el turno en bloques por día.
// Turno nocturno en día d: [start, 23:59] en d y, solo si NextDay(d) también
// está en el set de días, [00:00, end] en NextDay(d).
func (s Schedule) Segments() []Segment {
	out := make([]Segment, 0, len(s.Days)*2)
	for _, d := range s.Days {
		if !s.CrossesMidnight() {
			out = append(out, s.segment(d, s.Start, s.End, false))
			continue
		}

		out = append(out, s.segment(d, s.Start, EndOfDay, false))
		if next := NextDay(d); s.HasDay(next) {
			out = append(out, s.segment(next, 0, s.End, true))
		}
	}
	return out
}

func (s Schedule) segment(d time.Weekday, start, end Clock, continuation bool) Segment {
	return Segment{
		ScheduleID:   s.ID,
		CaregiverID:  s.CaregiverID,
		PatientIDs:   s.PatientIDs,
		Day:          d,
		Start:        start,
		End:          end,
		Continuation: continuation,
	}
}

// WeekLayout posiciona los segmentos de todos los turnos en una grilla
// de hourHeight píxeles por hora. Orden: día (lunes primero), inicio, cuidador.
func WeekLayout(schedules []Schedule, hourHeight float64) []Segment {
	if hourHeight <= 0 {
		hourHeight = DefaultHourHeight
	}

	out := make([]Segment, 0)
	for _, s := range schedules {
		for _, seg := range s.Segments() {
			seg.Top = pixels(int(seg.Start), hourHeight)
			seg.Height = pixels(int(seg.End-seg.Start), hourHeight)
			out = append(out, seg)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if weekIndex(a.Day) != weekIndex(b.Day) {
			return weekIndex(a.Day) < weekIndex(b.Day)
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.CaregiverID < b.CaregiverID
	})
	return out
}

// DayLayout filtra WeekLayout a un solo día (home del móvil).
func DayLayout(schedules []Schedule, day time.Weekday, hourHeight float64) []Segment {
	all := WeekLayout(schedules, hourHeight)
	out := make([]Segment, 0, len(all))
	for _, seg := range all {
		if seg.Day == day {
			out = append(out, seg)
		}
	}
	return out
}

func pixels(minutes int, hourHeight float64) float64 {
	return float64(minutes) / 60 * hourHeight
}
