package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/models"
)

func newEngineStore(t *testing.T, teachers ...models.Teacher) *ScheduleStore {
	t.Helper()
	store, err := NewScheduleStore(teachers, StoreOptions{FreeLabels: []string{"Free Period"}})
	require.NoError(t, err)
	return store
}

func TestRunPassAssignsQualifiedFreeTeacher(t *testing.T) {
	store := newEngineStore(t,
		teacherFixture("A", []string{"Math"}, day("Monday", "Period1", "Math")),
		teacherFixture("B", []string{"Math"}, day("Monday", "Period2", "Math")),
	)
	engine := NewSubstitutionEngine(EngineConfig{}, zap.NewNop())

	result := engine.RunPass(store, []string{"A"})

	require.Len(t, result.Records, 1)
	record := result.Records[0]
	assert.Equal(t, models.OutcomeAssigned, record.Outcome)
	require.NotNil(t, record.SubstituteID)
	assert.Equal(t, "B", *record.SubstituteID)
	assert.Equal(t, "Math", record.ClassName)
	assert.Equal(t, "Monday", record.Day)
	assert.Equal(t, "Period1", record.Period)
	assert.Equal(t, 1, record.Sequence)
	assert.Equal(t, 1, result.Assigned)
	assert.Zero(t, result.Uncovered)

	b, err := store.Get("B")
	require.NoError(t, err)
	entry, ok := b.Timetable.Lookup("Monday", "Period1")
	require.True(t, ok)
	assert.Equal(t, "Math", entry.Class)
	assert.Equal(t, "A", entry.CoveringFor)

	require.Len(t, result.Changes, 1)
	assert.Equal(t, "B", result.Changes[0].TeacherID)
}

func TestRunPassSkipsTeacherBusyOnAnotherDay(t *testing.T) {
	store := newEngineStore(t,
		teacherFixture("A", []string{"Science"}, day("Monday", "Period2", "Science")),
		teacherFixture("C", []string{"Science"}, day("Tuesday", "Period2", "Science")),
	)
	engine := NewSubstitutionEngine(EngineConfig{}, nil)
	before := store.Snapshot()

	result := engine.RunPass(store, []string{"A"})

	require.Len(t, result.Records, 1)
	assert.Equal(t, models.OutcomeNoSubstitute, result.Records[0].Outcome)
	assert.Equal(t, models.ReasonNoSubstitute, result.Records[0].Reason)
	assert.Nil(t, result.Records[0].SubstituteID)
	assert.Equal(t, 1, result.Uncovered)
	assert.Empty(t, result.Changes)
	assert.Equal(t, before, store.Snapshot(), "an uncovered period leaves every timetable untouched")
}

func TestRunPassNeverPicksAbsentTeachers(t *testing.T) {
	store := newEngineStore(t,
		teacherFixture("A", []string{"10A"}, day("Monday", "P1", "10A")),
		teacherFixture("B", []string{"10A", "10B"}, day("Monday", "P2", "10B")),
		teacherFixture("C", []string{"10B"}),
	)
	engine := NewSubstitutionEngine(EngineConfig{}, nil)

	result := engine.RunPass(store, []string{"A", "B"})

	for _, record := range result.Records {
		if record.SubstituteID == nil {
			continue
		}
		assert.NotEqual(t, "A", *record.SubstituteID)
		assert.NotEqual(t, "B", *record.SubstituteID)
	}
	require.Len(t, result.Records, 2)
	assert.Equal(t, models.OutcomeNoSubstitute, result.Records[0].Outcome, "B is absent even though listed after A")
	assert.Equal(t, models.OutcomeAssigned, result.Records[1].Outcome)
	assert.Equal(t, "C", *result.Records[1].SubstituteID)
}

func TestRunPassSubstituteTeachesClass(t *testing.T) {
	store := newEngineStore(t,
		teacherFixture("A", []string{"10A", "11A"}, day("Monday", "P1", "10A", "P2", "11A")),
		teacherFixture("B", []string{"10A"}),
		teacherFixture("C", []string{"11A"}),
	)
	engine := NewSubstitutionEngine(EngineConfig{Exclusivity: ExclusivityTeacher}, nil)

	result := engine.RunPass(store, []string{"A"})

	require.Len(t, result.Records, 2)
	for _, record := range result.Records {
		require.NotNil(t, record.SubstituteID)
		sub, err := store.Get(*record.SubstituteID)
		require.NoError(t, err)
		assert.True(t, sub.TeachesClass(record.ClassName))
	}
	assert.Equal(t, "B", *result.Records[0].SubstituteID)
	assert.Equal(t, "C", *result.Records[1].SubstituteID)
}

func TestRunPassPicksFirstCandidateInPoolOrder(t *testing.T) {
	store := newEngineStore(t,
		teacherFixture("A", []string{"10A"}, day("Monday", "P1", "10A")),
		teacherFixture("B", []string{"10A"}),
		teacherFixture("C", []string{"10A"}),
	)
	engine := NewSubstitutionEngine(EngineConfig{}, nil)

	result := engine.RunPass(store, []string{"A"})

	require.Len(t, result.Records, 1)
	assert.Equal(t, "B", *result.Records[0].SubstituteID)
	c, _ := store.Get("C")
	assert.Empty(t, c.Timetable, "only one candidate is booked per period")
}

func TestRunPassReportsUnknownAndDuplicateNames(t *testing.T) {
	store := newEngineStore(t,
		teacherFixture("A", []string{"10A"}, day("Monday", "P1", "10A")),
		teacherFixture("B", []string{"10A"}),
	)
	engine := NewSubstitutionEngine(EngineConfig{}, nil)

	result := engine.RunPass(store, []string{"ghost", "A", " a ", ""})

	require.Len(t, result.Absences, 3)
	assert.Equal(t, models.AbsenceUnknown, result.Absences[0].Status)
	assert.NotEmpty(t, result.Absences[0].Error)
	assert.Equal(t, models.AbsenceProcessed, result.Absences[1].Status)
	assert.Equal(t, 1, result.Absences[1].Assigned)
	assert.Equal(t, models.AbsenceDuplicate, result.Absences[2].Status)
	assert.Len(t, result.Records, 1)
}

func TestRunPassSkipsInconsistentTimetable(t *testing.T) {
	store := newEngineStore(t,
		teacherFixture("A", []string{"10A"}, day("Monday", "P1", "10A", "P1", "10B")),
		teacherFixture("D", []string{"10C"}, day("Monday", "P9", "10C")),
		teacherFixture("B", []string{"10A", "10C"}),
	)
	engine := NewSubstitutionEngine(EngineConfig{KnownPeriods: []string{"P1", "P2"}}, nil)

	result := engine.RunPass(store, []string{"A", "D"})

	require.Len(t, result.Absences, 2)
	assert.Equal(t, models.AbsencePreconditionFailed, result.Absences[0].Status)
	assert.Contains(t, result.Absences[0].Error, "appears twice")
	assert.Equal(t, models.AbsencePreconditionFailed, result.Absences[1].Status)
	assert.Contains(t, result.Absences[1].Error, "unrecognised period")
	assert.Empty(t, result.Records)
}

func TestRunPassExclusivityScopes(t *testing.T) {
	build := func() *ScheduleStore {
		return newEngineStore(t,
			teacherFixture("A", []string{"10A"}, day("Monday", "P3", "10A")),
			teacherFixture("X", []string{"11B"}, day("Tuesday", "P3", "11B")),
			teacherFixture("B", []string{"10A"}),
			teacherFixture("C", []string{"11B"}),
		)
	}

	cases := []struct {
		scope     ExclusivityScope
		uncovered int
	}{
		{scope: ExclusivityRun, uncovered: 1},
		{scope: ExclusivityAbsence, uncovered: 0},
		{scope: ExclusivityTeacher, uncovered: 0},
	}

	for _, tc := range cases {
		t.Run(string(tc.scope), func(t *testing.T) {
			engine := NewSubstitutionEngine(EngineConfig{Exclusivity: tc.scope}, nil)
			result := engine.RunPass(build(), []string{"A", "X"})

			assert.Equal(t, tc.scope, result.Exclusivity)
			assert.Equal(t, tc.uncovered, result.Uncovered)
			assert.Equal(t, 2-tc.uncovered, result.Assigned)
		})
	}
}

func TestRunPassTeacherScopeStillBlocksDoubleBooking(t *testing.T) {
	store := newEngineStore(t,
		teacherFixture("A", []string{"10A"}, day("Monday", "P1", "10A"), day("Tuesday", "P1", "10A")),
		teacherFixture("B", []string{"10A"}),
	)
	engine := NewSubstitutionEngine(EngineConfig{Exclusivity: ExclusivityTeacher}, nil)

	result := engine.RunPass(store, []string{"A"})

	require.Len(t, result.Records, 2)
	assert.Equal(t, models.OutcomeAssigned, result.Records[0].Outcome)
	assert.Equal(t, models.OutcomeNoSubstitute, result.Records[1].Outcome)
}

func TestRunPassWithNoAbsences(t *testing.T) {
	store := newEngineStore(t, teacherFixture("A", []string{"10A"}, day("Monday", "P1", "10A")))
	result := NewSubstitutionEngine(EngineConfig{}, nil).RunPass(store, nil)

	assert.Empty(t, result.Records)
	assert.Empty(t, result.Absences)
	assert.Empty(t, result.Changes)
}
