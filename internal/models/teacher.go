package models

import "strings"

// Teacher is a staff member with the classes they may teach and their weekly timetable.
type Teacher struct {
	ID        string    `db:"id" json:"id" yaml:"id,omitempty"`
	Name      string    `db:"full_name" json:"name" yaml:"name"`
	Email     string    `db:"email" json:"email,omitempty" yaml:"email,omitempty"`
	Subjects  []string  `db:"-" json:"subjects" yaml:"subjects"`
	Classes   []string  `db:"-" json:"classes" yaml:"classes"`
	Timetable Timetable `db:"-" json:"timetable" yaml:"timetable"`
	Absent    bool      `db:"-" json:"absent,omitempty" yaml:"-"`
}

// TeachesClass reports whether the class appears in the teacher's class list.
func (t *Teacher) TeachesClass(className string) bool {
	for _, c := range t.Classes {
		if c == className {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (t Teacher) Clone() Teacher {
	clone := t
	clone.Subjects = append([]string(nil), t.Subjects...)
	clone.Classes = append([]string(nil), t.Classes...)
	clone.Timetable = t.Timetable.Clone()
	return clone
}

// PeriodEntry is a single occupied period on a day.
type PeriodEntry struct {
	Period      string `json:"period" yaml:"period"`
	Class       string `json:"class" yaml:"class"`
	CoveringFor string `json:"covering_for,omitempty" yaml:"covering_for,omitempty"`
}

// DaySchedule lists the periods of one day in stored order.
type DaySchedule struct {
	Day     string        `json:"day" yaml:"day"`
	Periods []PeriodEntry `json:"periods" yaml:"periods"`
}

// Timetable is an ordered list of days. Order is the order the source supplied.
type Timetable []DaySchedule

// Clone returns a deep copy.
func (tt Timetable) Clone() Timetable {
	if tt == nil {
		return nil
	}
	out := make(Timetable, len(tt))
	for i, day := range tt {
		out[i] = DaySchedule{Day: day.Day, Periods: append([]PeriodEntry(nil), day.Periods...)}
	}
	return out
}

// HasPeriod reports whether the period label is occupied on any day.
func (tt Timetable) HasPeriod(period string) bool {
	for _, day := range tt {
		for _, entry := range day.Periods {
			if entry.Period == period {
				return true
			}
		}
	}
	return false
}

// Lookup returns the entry at (day, period).
func (tt Timetable) Lookup(day, period string) (PeriodEntry, bool) {
	for _, d := range tt {
		if d.Day != day {
			continue
		}
		for _, entry := range d.Periods {
			if entry.Period == period {
				return entry, true
			}
		}
	}
	return PeriodEntry{}, false
}

// Set inserts or overwrites (day, period). New days and periods are appended
// so existing order is never disturbed.
func (tt *Timetable) Set(day string, entry PeriodEntry) {
	for i := range *tt {
		d := &(*tt)[i]
		if d.Day != day {
			continue
		}
		for j := range d.Periods {
			if d.Periods[j].Period == entry.Period {
				d.Periods[j] = entry
				return
			}
		}
		d.Periods = append(d.Periods, entry)
		return
	}
	*tt = append(*tt, DaySchedule{Day: day, Periods: []PeriodEntry{entry}})
}

// WithoutFree drops entries whose class matches one of the free labels (case-insensitive).
func (tt Timetable) WithoutFree(freeLabels []string) Timetable {
	if len(freeLabels) == 0 {
		return tt.Clone()
	}
	out := make(Timetable, 0, len(tt))
	for _, day := range tt {
		kept := DaySchedule{Day: day.Day, Periods: make([]PeriodEntry, 0, len(day.Periods))}
		for _, entry := range day.Periods {
			if isFreeLabel(entry.Class, freeLabels) {
				continue
			}
			kept.Periods = append(kept.Periods, entry)
		}
		out = append(out, kept)
	}
	return out
}

func isFreeLabel(class string, freeLabels []string) bool {
	class = strings.TrimSpace(class)
	for _, label := range freeLabels {
		if strings.EqualFold(class, label) {
			return true
		}
	}
	return false
}
