package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	"github.com/noah-isme/sma-substitute-api/pkg/timetable"
)

const sampleYAML = `teachers:
  - name: Alice
    classes: [10A]
    timetable:
      - day: Monday
        periods:
          - {period: P1, class: 10A}
  - name: Bob
    classes: [10A]
`

func TestTimetableFileRepositoryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teachers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	repo, err := NewTimetableFileRepository(path, "", timetable.Options{})
	require.NoError(t, err)
	assert.Equal(t, timetable.FormatYAML, repo.Format())

	teachers, err := repo.LoadTeachers(context.Background())
	require.NoError(t, err)
	require.Len(t, teachers, 2)
	assert.Equal(t, "Alice", teachers[0].Name)

	teachers[1].Timetable.Set("Monday", models.PeriodEntry{Period: "P1", Class: "10A", CoveringFor: "Alice"})
	require.NoError(t, repo.SaveTeachers(context.Background(), teachers))

	reloaded, err := repo.LoadTeachers(context.Background())
	require.NoError(t, err)
	entry, ok := reloaded[1].Timetable.Lookup("Monday", "P1")
	require.True(t, ok)
	assert.Equal(t, "Alice", entry.CoveringFor)
}

func TestTimetableFileRepositoryUnknownExtension(t *testing.T) {
	_, err := NewTimetableFileRepository("teachers.json", "", timetable.Options{})
	assert.Error(t, err)
}

func TestTimetableFileRepositoryCancelledContext(t *testing.T) {
	repo, err := NewTimetableFileRepository("teachers.csv", "", timetable.Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = repo.LoadTeachers(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
