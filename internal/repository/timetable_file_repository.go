package repository

import (
	"context"
	"sync"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	"github.com/noah-isme/sma-substitute-api/pkg/timetable"
)

// TimetableFileRepository serves teachers from a timetable file and writes
// updated timetables back to it.
type TimetableFileRepository struct {
	path   string
	format timetable.Format
	opts   timetable.Options

	mu sync.Mutex
}

// NewTimetableFileRepository builds a file source. An empty format is inferred from the extension.
func NewTimetableFileRepository(path string, format timetable.Format, opts timetable.Options) (*TimetableFileRepository, error) {
	if format == "" {
		detected, err := timetable.DetectFormat(path)
		if err != nil {
			return nil, err
		}
		format = detected
	}
	return &TimetableFileRepository{path: path, format: format, opts: opts}, nil
}

// Path returns the backing file.
func (r *TimetableFileRepository) Path() string { return r.path }

// Format returns the file layout.
func (r *TimetableFileRepository) Format() timetable.Format { return r.format }

// LoadTeachers decodes the file on every call so external edits are picked up.
func (r *TimetableFileRepository) LoadTeachers(ctx context.Context) ([]models.Teacher, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return timetable.Load(r.path, r.format, r.opts)
}

// SaveTeachers replaces the file contents. Text files cannot carry cover
// annotations in every layout, so the teacher list is written as given.
func (r *TimetableFileRepository) SaveTeachers(ctx context.Context, teachers []models.Teacher) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return timetable.Save(r.path, r.format, teachers)
}
