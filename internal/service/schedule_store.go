package service

import (
	"fmt"
	"strings"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
)

// ScheduleStore owns the working timetables for a single substitution pass.
// It is not safe for concurrent use; a pass has exactly one writer.
type ScheduleStore struct {
	teachers []*models.Teacher
	byID     map[string]*models.Teacher
	byKey    map[string]*models.Teacher
	changes  []models.PeriodChange
}

// StoreOptions tunes how source timetables are normalised.
type StoreOptions struct {
	// FreeLabels are class values that mark a period as free, e.g. "Free Period".
	FreeLabels []string
}

// NewScheduleStore indexes deep copies of the supplied teachers in input order.
func NewScheduleStore(teachers []models.Teacher, opts StoreOptions) (*ScheduleStore, error) {
	store := &ScheduleStore{
		teachers: make([]*models.Teacher, 0, len(teachers)),
		byID:     make(map[string]*models.Teacher, len(teachers)),
		byKey:    make(map[string]*models.Teacher, len(teachers)*2),
	}
	for i := range teachers {
		teacher := teachers[i].Clone()
		normalizeIdentity(&teacher)
		if teacher.ID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("teacher at position %d has no identity", i+1))
		}
		if _, exists := store.byID[teacher.ID]; exists {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate teacher id %q", teacher.ID))
		}
		teacher.Timetable = teacher.Timetable.WithoutFree(opts.FreeLabels)
		teacher.Absent = false

		ptr := &teacher
		for _, key := range []string{normalizeKey(teacher.ID), normalizeKey(teacher.Name)} {
			if owner, exists := store.byKey[key]; exists && owner.ID != teacher.ID {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("teacher identity %q is ambiguous", key))
			}
			store.byKey[key] = ptr
		}
		store.byID[teacher.ID] = ptr
		store.teachers = append(store.teachers, ptr)
	}
	return store, nil
}

// Get returns the teacher with the exact identifier.
func (s *ScheduleStore) Get(id string) (*models.Teacher, error) {
	teacher, ok := s.byID[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("teacher %q not found", id))
	}
	return teacher, nil
}

// Resolve finds a teacher by id or name, ignoring case and surrounding whitespace.
func (s *ScheduleStore) Resolve(name string) (*models.Teacher, error) {
	teacher, ok := s.byKey[normalizeKey(name)]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnknownTeacher, fmt.Sprintf("teacher %q not found", strings.TrimSpace(name)))
	}
	return teacher, nil
}

// MarkAbsent flags the named teacher absent. Marking twice is a no-op.
func (s *ScheduleStore) MarkAbsent(name string) (*models.Teacher, error) {
	teacher, err := s.Resolve(name)
	if err != nil {
		return nil, err
	}
	teacher.Absent = true
	return teacher, nil
}

// AssignPeriod inserts or overwrites (day, period) on the teacher's timetable.
// Callers validate availability first; there is no rollback.
func (s *ScheduleStore) AssignPeriod(id, day, period, className, coveringFor string) error {
	teacher, err := s.Get(id)
	if err != nil {
		return err
	}
	teacher.Timetable.Set(day, models.PeriodEntry{
		Period:      period,
		Class:       className,
		CoveringFor: coveringFor,
	})
	s.changes = append(s.changes, models.PeriodChange{
		TeacherID:   id,
		Day:         day,
		Period:      period,
		ClassName:   className,
		CoveringFor: coveringFor,
	})
	return nil
}

// IsOccupied reports whether the teacher holds the period label on any day.
// Period labels are treated as fixed daily slots, so Tuesday P3 makes a teacher busy at P3.
func (s *ScheduleStore) IsOccupied(id, period string) (bool, error) {
	teacher, err := s.Get(id)
	if err != nil {
		return false, err
	}
	return teacher.Timetable.HasPeriod(period), nil
}

// Teachers returns the candidate pool in input order.
func (s *ScheduleStore) Teachers() []*models.Teacher {
	out := make([]*models.Teacher, len(s.teachers))
	copy(out, s.teachers)
	return out
}

// Changes lists every AssignPeriod call in commit order.
func (s *ScheduleStore) Changes() []models.PeriodChange {
	out := make([]models.PeriodChange, len(s.changes))
	copy(out, s.changes)
	return out
}

// ApplyTo replays the change log onto copies of the source teachers the store
// was built from. Unlike Snapshot it keeps free-label entries.
func (s *ScheduleStore) ApplyTo(source []models.Teacher) []models.Teacher {
	out := make([]models.Teacher, len(source))
	index := make(map[string]int, len(source))
	for i := range source {
		out[i] = source[i].Clone()
		normalizeIdentity(&out[i])
		out[i].Absent = false
		index[out[i].ID] = i
	}
	for _, change := range s.changes {
		i, ok := index[change.TeacherID]
		if !ok {
			continue
		}
		out[i].Timetable.Set(change.Day, models.PeriodEntry{
			Period:      change.Period,
			Class:       change.ClassName,
			CoveringFor: change.CoveringFor,
		})
	}
	return out
}

// Snapshot returns deep copies of all teachers as the pass sees them, with free
// labels stripped.
func (s *ScheduleStore) Snapshot() []models.Teacher {
	out := make([]models.Teacher, 0, len(s.teachers))
	for _, teacher := range s.teachers {
		out = append(out, teacher.Clone())
	}
	return out
}

// normalizeIdentity trims id and name and lets each default to the other.
func normalizeIdentity(teacher *models.Teacher) {
	teacher.ID = strings.TrimSpace(teacher.ID)
	teacher.Name = strings.TrimSpace(teacher.Name)
	if teacher.ID == "" {
		teacher.ID = teacher.Name
	}
	if teacher.Name == "" {
		teacher.Name = teacher.ID
	}
}

func normalizeKey(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
