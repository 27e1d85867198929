package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
	"github.com/noah-isme/sma-substitute-api/pkg/timetable"
)

type timetableStore interface {
	LoadTeachers(ctx context.Context) ([]models.Teacher, error)
	SaveTeachers(ctx context.Context, teachers []models.Teacher) error
}

// TimetableService imports and exports the timetable the substitution service reads.
type TimetableService struct {
	store  timetableStore
	opts   timetable.Options
	writes sync.Locker
	logger *zap.Logger
}

// NewTimetableService constructs the service. writes must be the lock given to
// the SubstitutionService reading the same store, so an import never lands in
// the middle of a pass.
func NewTimetableService(store timetableStore, opts timetable.Options, writes sync.Locker, logger *zap.Logger) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if writes == nil {
		writes = &sync.Mutex{}
	}
	return &TimetableService{store: store, opts: opts, writes: writes, logger: logger}
}

// Import replaces the stored timetable with the decoded document and returns the teacher count.
// The document is checked the same way a pass would index it before anything is written.
func (s *TimetableService) Import(ctx context.Context, format string, r io.Reader) (int, error) {
	parsed, err := timetable.ParseFormat(format)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	teachers, err := timetable.Decode(r, parsed, s.opts)
	if err != nil {
		return 0, asAppError(err, "failed to decode timetable")
	}
	if len(teachers) == 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "timetable contains no teachers")
	}
	store, err := NewScheduleStore(teachers, StoreOptions{FreeLabels: s.opts.FreeLabels})
	if err != nil {
		return 0, err
	}
	snapshot := store.ApplyTo(teachers)

	s.writes.Lock()
	defer s.writes.Unlock()
	if err := s.store.SaveTeachers(ctx, snapshot); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store timetable")
	}
	s.logger.Info("timetable imported", zap.String("format", string(parsed)), zap.Int("teachers", len(snapshot)))
	return len(snapshot), nil
}

// Export renders the stored timetable.
func (s *TimetableService) Export(ctx context.Context, format string) ([]byte, error) {
	parsed, err := timetable.ParseFormat(format)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	teachers, err := s.store.LoadTeachers(ctx)
	if err != nil {
		return nil, asAppError(err, "failed to load timetable")
	}
	buf := &bytes.Buffer{}
	if err := timetable.Encode(buf, parsed, teachers); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode timetable")
	}
	return buf.Bytes(), nil
}

// asAppError keeps coded errors and wraps everything else as internal.
func asAppError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
