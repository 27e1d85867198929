package service

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
)

// EngineConfig governs substitution pass behaviour.
type EngineConfig struct {
	Exclusivity ExclusivityScope
	// KnownPeriods, when set, is the complete list of valid period labels.
	KnownPeriods []string
}

// SubstitutionEngine assigns substitutes to the periods of absent teachers.
type SubstitutionEngine struct {
	cfg    EngineConfig
	known  map[string]struct{}
	logger *zap.Logger
}

// NewSubstitutionEngine constructs an engine.
func NewSubstitutionEngine(cfg EngineConfig, logger *zap.Logger) *SubstitutionEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Exclusivity == "" {
		cfg.Exclusivity = ExclusivityRun
	}
	var known map[string]struct{}
	if len(cfg.KnownPeriods) > 0 {
		known = make(map[string]struct{}, len(cfg.KnownPeriods))
		for _, p := range cfg.KnownPeriods {
			known[strings.TrimSpace(p)] = struct{}{}
		}
	}
	return &SubstitutionEngine{cfg: cfg, known: known, logger: logger}
}

// SubstitutionResult is everything a pass produced, in processing order.
type SubstitutionResult struct {
	Records     []models.SubstitutionRecord
	Absences    []models.AbsenceReport
	Changes     []models.PeriodChange
	Assigned    int
	Uncovered   int
	Exclusivity ExclusivityScope
}

// ResultCollector accumulates records in the order periods were processed.
type ResultCollector struct {
	records   []models.SubstitutionRecord
	assigned  int
	uncovered int
}

// Append stores a record and stamps its sequence number.
func (c *ResultCollector) Append(record models.SubstitutionRecord) {
	record.Sequence = len(c.records) + 1
	switch record.Outcome {
	case models.OutcomeAssigned:
		c.assigned++
	case models.OutcomeNoSubstitute:
		c.uncovered++
	}
	c.records = append(c.records, record)
}

// Records returns a copy of the collected records.
func (c *ResultCollector) Records() []models.SubstitutionRecord {
	out := make([]models.SubstitutionRecord, len(c.records))
	copy(out, c.records)
	return out
}

// Counts returns assigned and uncovered totals.
func (c *ResultCollector) Counts() (assigned, uncovered int) {
	return c.assigned, c.uncovered
}

// FindSubstitute returns the first teacher in pool order who is eligible and
// available at period, booking them and excluding them from the search.
// A nil result means nobody qualifies.
func (e *SubstitutionEngine) FindSubstitute(store *ScheduleStore, period, className string, excluded ExclusionSet, bookings *RunBookings) *models.Teacher {
	for _, candidate := range store.Teachers() {
		if !IsEligible(candidate, className, excluded) {
			continue
		}
		if !IsAvailable(candidate, period, bookings) {
			continue
		}
		if bookings != nil {
			bookings.Book(candidate.ID, period, className)
		}
		excluded.Add(candidate.ID)
		return candidate
	}
	return nil
}

// RunPass covers the periods of every named absent teacher. It never aborts:
// unknown names, duplicates and inconsistent timetables are reported and skipped.
func (e *SubstitutionEngine) RunPass(store *ScheduleStore, absentNames []string) *SubstitutionResult {
	type pending struct {
		report  int
		teacher *models.Teacher
	}

	reports := make([]models.AbsenceReport, 0, len(absentNames))
	queue := make([]pending, 0, len(absentNames))
	seen := make(map[string]bool, len(absentNames))

	// Everyone is marked before any period is searched so no absent teacher can be picked as cover.
	for _, raw := range absentNames {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		report := models.AbsenceReport{RequestedName: name}
		teacher, err := store.MarkAbsent(name)
		if err != nil {
			report.Status = models.AbsenceUnknown
			report.Error = err.Error()
			reports = append(reports, report)
			e.logger.Warn("absent teacher not found", zap.String("name", name))
			continue
		}
		report.TeacherID = teacher.ID
		report.TeacherName = teacher.Name
		if seen[teacher.ID] {
			report.Status = models.AbsenceDuplicate
			reports = append(reports, report)
			e.logger.Debug("absent teacher listed twice", zap.String("teacher_id", teacher.ID))
			continue
		}
		seen[teacher.ID] = true
		report.Status = models.AbsenceProcessed
		reports = append(reports, report)
		queue = append(queue, pending{report: len(reports) - 1, teacher: teacher})
	}

	collector := &ResultCollector{}
	bookings := NewRunBookings(e.cfg.Exclusivity)

	for _, item := range queue {
		report := &reports[item.report]
		absent := item.teacher
		if err := e.checkPreconditions(absent); err != nil {
			report.Status = models.AbsencePreconditionFailed
			report.Error = err.Error()
			e.logger.Error("skipping absent teacher", zap.String("teacher_id", absent.ID), zap.Error(err))
			continue
		}
		if bookings.Scope() == ExclusivityAbsence {
			bookings.Reset()
		}

		for _, day := range absent.Timetable.Clone() {
			for _, entry := range day.Periods {
				record := models.SubstitutionRecord{
					AbsentTeacherID:   absent.ID,
					AbsentTeacherName: absent.Name,
					ClassName:         entry.Class,
					Day:               day.Day,
					Period:            entry.Period,
				}

				excluded := NewExclusionSet(absent.ID)
				substitute := e.FindSubstitute(store, entry.Period, entry.Class, excluded, bookings)
				if substitute == nil {
					record.Outcome = models.OutcomeNoSubstitute
					record.Reason = models.ReasonNoSubstitute
					report.Uncovered++
					collector.Append(record)
					e.logger.Info("no substitute available",
						zap.String("absent_teacher_id", absent.ID),
						zap.String("class", entry.Class),
						zap.String("day", day.Day),
						zap.String("period", entry.Period))
					continue
				}

				if err := store.AssignPeriod(substitute.ID, day.Day, entry.Period, entry.Class, absent.ID); err != nil {
					record.Outcome = models.OutcomeNoSubstitute
					record.Reason = err.Error()
					report.Uncovered++
					collector.Append(record)
					continue
				}

				subID, subName := substitute.ID, substitute.Name
				record.Outcome = models.OutcomeAssigned
				record.SubstituteID = &subID
				record.SubstituteName = &subName
				report.Assigned++
				collector.Append(record)
				e.logger.Debug("substitute assigned",
					zap.String("absent_teacher_id", absent.ID),
					zap.String("substitute_id", subID),
					zap.String("day", day.Day),
					zap.String("period", entry.Period))
			}
		}
	}

	assigned, uncovered := collector.Counts()
	return &SubstitutionResult{
		Records:     collector.Records(),
		Absences:    reports,
		Changes:     store.Changes(),
		Assigned:    assigned,
		Uncovered:   uncovered,
		Exclusivity: bookings.Scope(),
	}
}

// checkPreconditions rejects timetables the loader should never have produced.
func (e *SubstitutionEngine) checkPreconditions(teacher *models.Teacher) error {
	days := make(map[string]bool, len(teacher.Timetable))
	for _, day := range teacher.Timetable {
		if strings.TrimSpace(day.Day) == "" {
			return e.violation(teacher, "day without a name")
		}
		if days[day.Day] {
			return e.violation(teacher, fmt.Sprintf("day %s listed twice", day.Day))
		}
		days[day.Day] = true
		periods := make(map[string]bool, len(day.Periods))
		for _, entry := range day.Periods {
			if strings.TrimSpace(entry.Period) == "" {
				return e.violation(teacher, fmt.Sprintf("empty period label on %s", day.Day))
			}
			if strings.TrimSpace(entry.Class) == "" {
				return e.violation(teacher, fmt.Sprintf("no class at %s %s", day.Day, entry.Period))
			}
			if periods[entry.Period] {
				return e.violation(teacher, fmt.Sprintf("period %s appears twice on %s", entry.Period, day.Day))
			}
			periods[entry.Period] = true
			if e.known != nil {
				if _, ok := e.known[entry.Period]; !ok {
					return e.violation(teacher, fmt.Sprintf("unrecognised period %q on %s", entry.Period, day.Day))
				}
			}
		}
	}
	return nil
}

func (e *SubstitutionEngine) violation(teacher *models.Teacher, detail string) error {
	return appErrors.Clone(appErrors.ErrPreconditionViolation, fmt.Sprintf("timetable of %s is inconsistent: %s", teacher.Name, detail))
}
