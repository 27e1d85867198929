package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// SubstitutionOutcome describes how a period needing cover was resolved.
type SubstitutionOutcome string

const (
	OutcomeAssigned     SubstitutionOutcome = "assigned"
	OutcomeNoSubstitute SubstitutionOutcome = "no_substitute"
)

// ReasonNoSubstitute is reported for every uncovered period.
const ReasonNoSubstitute = "no substitute available"

// SubstitutionRecord is one processed (absent teacher, day, period). Records are immutable once collected.
type SubstitutionRecord struct {
	ID                string              `db:"id" json:"id"`
	RunID             string              `db:"run_id" json:"run_id"`
	Sequence          int                 `db:"seq" json:"sequence"`
	Outcome           SubstitutionOutcome `db:"outcome" json:"outcome"`
	AbsentTeacherID   string              `db:"absent_teacher_id" json:"absent_teacher_id"`
	AbsentTeacherName string              `db:"absent_teacher_name" json:"absent_teacher_name"`
	SubstituteID      *string             `db:"substitute_id" json:"substitute_id,omitempty"`
	SubstituteName    *string             `db:"substitute_name" json:"substitute_name,omitempty"`
	ClassName         string              `db:"class_name" json:"class_name"`
	Day               string              `db:"day_of_week" json:"day"`
	Period            string              `db:"period" json:"period"`
	Reason            string              `db:"reason" json:"reason,omitempty"`
}

// AbsenceStatus reports what happened to one requested absence.
type AbsenceStatus string

const (
	AbsenceProcessed          AbsenceStatus = "processed"
	AbsenceUnknown            AbsenceStatus = "unknown"
	AbsenceDuplicate          AbsenceStatus = "duplicate"
	AbsencePreconditionFailed AbsenceStatus = "precondition_failed"
)

// AbsenceReport summarises one requested absence.
type AbsenceReport struct {
	RequestedName string        `json:"requested_name"`
	TeacherID     string        `json:"teacher_id,omitempty"`
	TeacherName   string        `json:"teacher_name,omitempty"`
	Status        AbsenceStatus `json:"status"`
	Assigned      int           `json:"assigned"`
	Uncovered     int           `json:"uncovered"`
	Error         string        `json:"error,omitempty"`
}

// PeriodChange is a timetable mutation made while covering a period.
type PeriodChange struct {
	TeacherID   string `db:"teacher_id" json:"teacher_id"`
	Day         string `db:"day_of_week" json:"day"`
	Period      string `db:"period" json:"period"`
	ClassName   string `db:"class_name" json:"class_name"`
	CoveringFor string `db:"covering_for" json:"covering_for"`
}

// SubstitutionRun is the persisted header for one substitution pass.
type SubstitutionRun struct {
	ID             string         `db:"id" json:"id"`
	RequestedBy    *string        `db:"requested_by" json:"requested_by,omitempty"`
	AbsentNames    []string       `db:"-" json:"absent_names"`
	AssignedCount  int            `db:"assigned_count" json:"assigned_count"`
	UncoveredCount int            `db:"uncovered_count" json:"uncovered_count"`
	Exclusivity    string         `db:"exclusivity" json:"exclusivity"`
	Absences       types.JSONText `db:"absences" json:"-"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}
