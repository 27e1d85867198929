package timetable

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
)

const rosterCSV = `name,subjects,classes,Monday,Tuesday
Alice,"Math, Physics","10A, 10B","P1: 10A, P2: 10B",
Bob,Math,10A,"P3: 10A","P1: 10A"
`

func TestReadCSV(t *testing.T) {
	teachers, err := ReadCSV(strings.NewReader(rosterCSV))
	require.NoError(t, err)
	require.Len(t, teachers, 2)

	alice := teachers[0]
	assert.Equal(t, "Alice", alice.Name)
	assert.Equal(t, []string{"Math", "Physics"}, alice.Subjects)
	assert.Equal(t, []string{"10A", "10B"}, alice.Classes)
	require.Len(t, alice.Timetable, 1)
	assert.Equal(t, "Monday", alice.Timetable[0].Day)
	assert.Equal(t, []models.PeriodEntry{{Period: "P1", Class: "10A"}, {Period: "P2", Class: "10B"}}, alice.Timetable[0].Periods)

	bob := teachers[1]
	require.Len(t, bob.Timetable, 2)
	assert.Equal(t, "Tuesday", bob.Timetable[1].Day)
}

func TestReadCSVMalformedCell(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("name,classes,Monday\nAlice,10A,P1 10A\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrMalformedSchedule))
	assert.Contains(t, err.Error(), "line 2")
}

func TestReadCSVRequiresNameColumn(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("teacher,classes\nAlice,10A\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrMalformedSchedule))
}

func TestCSVRoundTripKeepsCoverEntries(t *testing.T) {
	teachers, err := ReadCSV(strings.NewReader(rosterCSV))
	require.NoError(t, err)
	teachers[1].Timetable.Set("Monday", models.PeriodEntry{Period: "P1", Class: "10A", CoveringFor: "Alice"})

	buf := &bytes.Buffer{}
	require.NoError(t, WriteCSV(buf, teachers))

	again, err := ReadCSV(buf)
	require.NoError(t, err)
	entry, ok := again[1].Timetable.Lookup("Monday", "P1")
	require.True(t, ok)
	assert.Equal(t, models.PeriodEntry{Period: "P1", Class: "10A", CoveringFor: "Alice"}, entry)
}

func TestCSVCoverNoteIsWritten(t *testing.T) {
	teachers := []models.Teacher{{Name: "Bob", Classes: []string{"10A"}, Timetable: models.Timetable{
		{Day: "Monday", Periods: []models.PeriodEntry{{Period: "P3", Class: "10A"}, {Period: "P1", Class: "10A", CoveringFor: "Alice"}}},
	}}}
	buf := &bytes.Buffer{}
	require.NoError(t, WriteCSV(buf, teachers))
	assert.Contains(t, buf.String(), "P3: 10A, P1: 10A (cover Alice)")
}

func TestTextRoundTripKeepsCoverAndFreeEntries(t *testing.T) {
	input := `Teacher: Bob
Classes: 10A
Day: Monday
Period 1: 10A (cover Alice)
Period 2: Free Period
Period 3: 10B
`
	teachers, err := ReadText(strings.NewReader(input), Options{FreeLabels: []string{"Free Period"}})
	require.NoError(t, err)
	require.Len(t, teachers, 1)
	assert.Equal(t, []models.PeriodEntry{
		{Period: "1", Class: "10A", CoveringFor: "Alice"},
		{Period: "2", Class: "Free Period"},
		{Period: "3", Class: "10B"},
	}, teachers[0].Timetable[0].Periods)

	buf := &bytes.Buffer{}
	require.NoError(t, WriteText(buf, teachers))
	assert.Equal(t, input, buf.String())
}

func TestDerivedClassesSkipCoverPeriods(t *testing.T) {
	teachers, err := ReadText(strings.NewReader("Teacher: Bob\nPeriod 1: 10A (cover Alice)\nPeriod 2: 10B\n"), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"10B"}, teachers[0].Classes)
}

func TestReadText(t *testing.T) {
	input := `# staff room copy
Teacher: Alice
Period 1: Math
Period 2: Free Period

Teacher: Bob
Email: bob@example.com
Classes: Math, Science
Day: Tuesday
Period 2: Science
`
	teachers, err := ReadText(strings.NewReader(input), Options{DefaultDay: "Monday", FreeLabels: []string{"Free Period"}})
	require.NoError(t, err)
	require.Len(t, teachers, 2)

	alice := teachers[0]
	assert.Equal(t, []string{"Math"}, alice.Classes)
	require.Len(t, alice.Timetable, 1)
	assert.Equal(t, "Monday", alice.Timetable[0].Day)
	assert.Len(t, alice.Timetable[0].Periods, 2)

	bob := teachers[1]
	assert.Equal(t, "bob@example.com", bob.Email)
	assert.Equal(t, []string{"Math", "Science"}, bob.Classes)
	entry, ok := bob.Timetable.Lookup("Tuesday", "2")
	require.True(t, ok)
	assert.Equal(t, "Science", entry.Class)
}

func TestReadTextRejectsStrayLines(t *testing.T) {
	_, err := ReadText(strings.NewReader("Period 1: Math\n"), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")

	_, err = ReadText(strings.NewReader("Teacher: A\nPeriod 1: Math\nPeriod 1: Art\n"), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")

	_, err = ReadText(strings.NewReader("Teacher: A\nsomething odd\n"), Options{})
	assert.True(t, errors.Is(err, appErrors.ErrMalformedSchedule))
}

func TestTextRoundTrip(t *testing.T) {
	teachers := []models.Teacher{{
		Name:      "Alice",
		Classes:   []string{"10A"},
		Timetable: models.Timetable{{Day: "Wednesday", Periods: []models.PeriodEntry{{Period: "4", Class: "10A"}}}},
	}}
	buf := &bytes.Buffer{}
	require.NoError(t, WriteText(buf, teachers))

	again, err := ReadText(buf, Options{})
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, teachers[0].Timetable, again[0].Timetable)
	assert.Equal(t, teachers[0].Classes, again[0].Classes)
}

func TestYAMLRoundTrip(t *testing.T) {
	input := `teachers:
  - id: t-1
    name: Alice
    email: alice@example.com
    subjects: [Math]
    classes: [10A]
    timetable:
      - day: Monday
        periods:
          - period: P1
            class: 10A
`
	teachers, err := ReadYAML(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, teachers, 1)
	assert.Equal(t, "t-1", teachers[0].ID)
	assert.Equal(t, "alice@example.com", teachers[0].Email)

	buf := &bytes.Buffer{}
	require.NoError(t, WriteYAML(buf, teachers))
	again, err := ReadYAML(buf)
	require.NoError(t, err)
	assert.Equal(t, teachers, again)
}

func TestReadYAMLRejectsUnknownFields(t *testing.T) {
	_, err := ReadYAML(strings.NewReader("teachers:\n  - name: A\n    room: 12\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrMalformedSchedule))
}

func TestLoadAndSaveDetectFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "teachers.csv")
	require.NoError(t, os.WriteFile(path, []byte(rosterCSV), 0o644))

	teachers, err := Load(path, "", Options{})
	require.NoError(t, err)
	require.Len(t, teachers, 2)

	out := filepath.Join(dir, "updated.yaml")
	require.NoError(t, Save(out, "", teachers))
	reloaded, err := Load(out, "", Options{})
	require.NoError(t, err)
	assert.Equal(t, teachers[0].Timetable, reloaded[0].Timetable)

	_, err = DetectFormat("teachers")
	assert.Error(t, err)
	format, err := ParseFormat("TXT")
	require.NoError(t, err)
	assert.Equal(t, FormatText, format)
}
