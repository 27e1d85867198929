package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-substitute-api/internal/models"
)

// TimetableRepository loads teacher timetables from PostgreSQL and records cover periods.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository builds repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

type teacherRow struct {
	ID       string         `db:"id"`
	Name     string         `db:"full_name"`
	Email    string         `db:"email"`
	Subjects pq.StringArray `db:"subjects"`
	Classes  pq.StringArray `db:"classes"`
}

type periodRow struct {
	TeacherID   string `db:"teacher_id"`
	Day         string `db:"day_of_week"`
	Period      string `db:"period"`
	ClassName   string `db:"class_name"`
	CoveringFor string `db:"covering_for"`
}

// LoadTeachers returns every teacher in pool order with their timetable in stored order.
func (r *TimetableRepository) LoadTeachers(ctx context.Context) ([]models.Teacher, error) {
	const teacherQuery = `SELECT id, full_name, email, subjects, classes
FROM teachers ORDER BY position ASC, full_name ASC`
	var rows []teacherRow
	if err := r.db.SelectContext(ctx, &rows, teacherQuery); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}

	const periodQuery = `SELECT teacher_id, day_of_week, period, class_name, covering_for
FROM teacher_periods ORDER BY teacher_id ASC, day_position ASC, period_position ASC`
	var periods []periodRow
	if err := r.db.SelectContext(ctx, &periods, periodQuery); err != nil {
		return nil, fmt.Errorf("list teacher periods: %w", err)
	}

	timetables := make(map[string]models.Timetable, len(rows))
	for _, p := range periods {
		tt := timetables[p.TeacherID]
		tt.Set(p.Day, models.PeriodEntry{Period: p.Period, Class: p.ClassName, CoveringFor: p.CoveringFor})
		timetables[p.TeacherID] = tt
	}

	teachers := make([]models.Teacher, 0, len(rows))
	for _, row := range rows {
		teachers = append(teachers, models.Teacher{
			ID:        row.ID,
			Name:      row.Name,
			Email:     row.Email,
			Subjects:  []string(row.Subjects),
			Classes:   []string(row.Classes),
			Timetable: timetables[row.ID],
		})
	}
	return teachers, nil
}

// AddPeriodsWithTx upserts cover periods. A period on a day the teacher already
// works keeps that day's position; otherwise it is appended after the last day.
func (r *TimetableRepository) AddPeriodsWithTx(ctx context.Context, tx *sqlx.Tx, changes []models.PeriodChange) error {
	if len(changes) == 0 {
		return nil
	}
	var target sqlx.ExtContext = r.db
	if tx != nil {
		target = tx
	}

	const query = `
INSERT INTO teacher_periods (id, teacher_id, day_of_week, day_position, period, period_position, class_name, covering_for, created_at)
VALUES (
    :id, :teacher_id, :day_of_week,
    COALESCE(
        (SELECT MIN(tp.day_position) FROM teacher_periods tp WHERE tp.teacher_id = :teacher_id AND tp.day_of_week = :day_of_week),
        (SELECT COALESCE(MAX(tp.day_position) + 1, 0) FROM teacher_periods tp WHERE tp.teacher_id = :teacher_id)
    ),
    :period,
    (SELECT COALESCE(MAX(tp.period_position) + 1, 0) FROM teacher_periods tp WHERE tp.teacher_id = :teacher_id AND tp.day_of_week = :day_of_week),
    :class_name, :covering_for, :created_at
)
ON CONFLICT (teacher_id, day_of_week, period) DO UPDATE
SET class_name = EXCLUDED.class_name,
    covering_for = EXCLUDED.covering_for`

	now := time.Now().UTC()
	for _, change := range changes {
		arg := struct {
			models.PeriodChange
			ID        string    `db:"id"`
			CreatedAt time.Time `db:"created_at"`
		}{PeriodChange: change, ID: uuid.NewString(), CreatedAt: now}
		if _, err := sqlx.NamedExecContext(ctx, target, query, arg); err != nil {
			return fmt.Errorf("upsert teacher period %s %s %s: %w", change.TeacherID, change.Day, change.Period, err)
		}
	}
	return nil
}

// SaveTeachers overwrites the stored timetables with teachers, keeping their order.
func (r *TimetableRepository) SaveTeachers(ctx context.Context, teachers []models.Teacher) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace teachers: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM teacher_periods`); err != nil {
		return fmt.Errorf("clear teacher periods: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM teachers`); err != nil {
		return fmt.Errorf("clear teachers: %w", err)
	}

	const teacherQuery = `INSERT INTO teachers (id, full_name, email, subjects, classes, position)
VALUES ($1, $2, $3, $4, $5, $6)`
	const periodQuery = `INSERT INTO teacher_periods (id, teacher_id, day_of_week, day_position, period, period_position, class_name, covering_for)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	for i, teacher := range teachers {
		id := teacher.ID
		if id == "" {
			id = teacher.Name
		}
		if _, err = tx.ExecContext(ctx, teacherQuery, id, teacher.Name, teacher.Email,
			pq.Array(teacher.Subjects), pq.Array(teacher.Classes), i); err != nil {
			return fmt.Errorf("insert teacher %s: %w", id, err)
		}
		for dayPos, day := range teacher.Timetable {
			for periodPos, entry := range day.Periods {
				if _, err = tx.ExecContext(ctx, periodQuery, uuid.NewString(), id, day.Day, dayPos,
					entry.Period, periodPos, entry.Class, entry.CoveringFor); err != nil {
					return fmt.Errorf("insert period %s %s %s: %w", id, day.Day, entry.Period, err)
				}
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace teachers: %w", err)
	}
	return nil
}
