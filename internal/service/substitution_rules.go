package service

import (
	"fmt"
	"strings"

	"github.com/noah-isme/sma-substitute-api/internal/models"
)

// ExclusivityScope controls how far period bookings made during a pass reach.
type ExclusivityScope string

const (
	// ExclusivityRun blocks a period label for every later search once anyone is booked at it during the run.
	ExclusivityRun ExclusivityScope = "run"
	// ExclusivityAbsence applies the same rule but forgets bookings when moving to the next absent teacher.
	ExclusivityAbsence ExclusivityScope = "absence"
	// ExclusivityTeacher only stops the same substitute from being booked twice at one period label.
	ExclusivityTeacher ExclusivityScope = "teacher"
)

// ParseExclusivityScope maps configuration values to a scope, defaulting to run-wide.
func ParseExclusivityScope(raw string) (ExclusivityScope, error) {
	switch ExclusivityScope(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ExclusivityRun:
		return ExclusivityRun, nil
	case ExclusivityAbsence:
		return ExclusivityAbsence, nil
	case ExclusivityTeacher:
		return ExclusivityTeacher, nil
	default:
		return "", fmt.Errorf("unknown exclusivity scope %q", raw)
	}
}

// ExclusionSet holds teacher ids barred from the current search.
type ExclusionSet map[string]struct{}

// NewExclusionSet seeds the set with the given ids.
func NewExclusionSet(ids ...string) ExclusionSet {
	set := make(ExclusionSet, len(ids))
	for _, id := range ids {
		set.Add(id)
	}
	return set
}

// Add bars an id.
func (e ExclusionSet) Add(id string) { e[id] = struct{}{} }

// Contains reports whether the id is barred.
func (e ExclusionSet) Contains(id string) bool {
	_, ok := e[id]
	return ok
}

// RunBookings tracks the periods committed to substitutes during a pass,
// separately from the timetables so checks never depend on store re-reads.
type RunBookings struct {
	scope     ExclusivityScope
	byTeacher map[string]map[string]string
	periods   map[string]string
}

// NewRunBookings builds empty bookings for the scope.
func NewRunBookings(scope ExclusivityScope) *RunBookings {
	if scope == "" {
		scope = ExclusivityRun
	}
	return &RunBookings{
		scope:     scope,
		byTeacher: make(map[string]map[string]string),
		periods:   make(map[string]string),
	}
}

// Scope returns the exclusivity scope the bookings enforce.
func (b *RunBookings) Scope() ExclusivityScope { return b.scope }

// Book records that teacherID covers className at period.
func (b *RunBookings) Book(teacherID, period, className string) {
	if b.byTeacher[teacherID] == nil {
		b.byTeacher[teacherID] = make(map[string]string)
	}
	b.byTeacher[teacherID][period] = className
	if _, taken := b.periods[period]; !taken {
		b.periods[period] = teacherID
	}
}

// BookedFor reports whether the teacher already holds the period in this pass.
func (b *RunBookings) BookedFor(teacherID, period string) bool {
	_, ok := b.byTeacher[teacherID][period]
	return ok
}

// PeriodTaken reports whether any teacher holds the period in this pass.
func (b *RunBookings) PeriodTaken(period string) bool {
	_, ok := b.periods[period]
	return ok
}

// Reset forgets all bookings.
func (b *RunBookings) Reset() {
	b.byTeacher = make(map[string]map[string]string)
	b.periods = make(map[string]string)
}

// IsEligible reports whether candidate may cover className: not absent,
// teaches the class and not excluded from the current search.
func IsEligible(candidate *models.Teacher, className string, excluded ExclusionSet) bool {
	if candidate == nil || candidate.Absent {
		return false
	}
	if excluded.Contains(candidate.ID) {
		return false
	}
	return candidate.TeachesClass(className)
}

// IsAvailable reports whether candidate is free at period across every day of
// their timetable and the bookings of the current pass.
func IsAvailable(candidate *models.Teacher, period string, bookings *RunBookings) bool {
	if candidate == nil {
		return false
	}
	if candidate.Timetable.HasPeriod(period) {
		return false
	}
	if bookings == nil {
		return true
	}
	if bookings.BookedFor(candidate.ID, period) {
		return false
	}
	if bookings.scope != ExclusivityTeacher && bookings.PeriodTaken(period) {
		return false
	}
	return true
}
