package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-substitute-api/internal/models"
)

// SubstitutionRepository persists substitution runs and their records.
type SubstitutionRepository struct {
	db *sqlx.DB
}

// NewSubstitutionRepository builds repository.
func NewSubstitutionRepository(db *sqlx.DB) *SubstitutionRepository {
	return &SubstitutionRepository{db: db}
}

func (r *SubstitutionRepository) exec(tx *sqlx.Tx) sqlx.ExtContext {
	if tx != nil {
		return tx
	}
	return r.db
}

type runRow struct {
	ID             string         `db:"id"`
	RequestedBy    *string        `db:"requested_by"`
	AbsentNames    pq.StringArray `db:"absent_names"`
	AssignedCount  int            `db:"assigned_count"`
	UncoveredCount int            `db:"uncovered_count"`
	Exclusivity    string         `db:"exclusivity"`
	Absences       types.JSONText `db:"absences"`
	CreatedAt      time.Time      `db:"created_at"`
}

// CreateRunWithTx inserts the run header.
func (r *SubstitutionRepository) CreateRunWithTx(ctx context.Context, tx *sqlx.Tx, run *models.SubstitutionRun) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	absences := run.Absences
	if len(absences) == 0 {
		absences = types.JSONText("[]")
	}
	const query = `INSERT INTO substitution_runs (id, requested_by, absent_names, assigned_count, uncovered_count, exclusivity, absences, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.exec(tx).ExecContext(ctx, query,
		run.ID, run.RequestedBy, pq.Array(run.AbsentNames), run.AssignedCount, run.UncoveredCount,
		run.Exclusivity, absences, run.CreatedAt); err != nil {
		return fmt.Errorf("insert substitution run: %w", err)
	}
	return nil
}

// InsertRecordsWithTx stores records in sequence order.
func (r *SubstitutionRepository) InsertRecordsWithTx(ctx context.Context, tx *sqlx.Tx, records []models.SubstitutionRecord) error {
	if len(records) == 0 {
		return nil
	}
	const query = `INSERT INTO substitution_records (id, run_id, seq, outcome, absent_teacher_id, absent_teacher_name, substitute_id, substitute_name, class_name, day_of_week, period, reason)
VALUES (:id, :run_id, :seq, :outcome, :absent_teacher_id, :absent_teacher_name, :substitute_id, :substitute_name, :class_name, :day_of_week, :period, :reason)`
	target := r.exec(tx)
	for i := range records {
		if _, err := sqlx.NamedExecContext(ctx, target, query, records[i]); err != nil {
			return fmt.Errorf("insert substitution record %d: %w", records[i].Sequence, err)
		}
	}
	return nil
}

// FindRun returns the run header; sql.ErrNoRows is passed through wrapped.
func (r *SubstitutionRepository) FindRun(ctx context.Context, id string) (*models.SubstitutionRun, error) {
	const query = `SELECT id, requested_by, absent_names, assigned_count, uncovered_count, exclusivity, absences, created_at
FROM substitution_runs WHERE id = $1`
	var row runRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, fmt.Errorf("get substitution run: %w", err)
	}
	return &models.SubstitutionRun{
		ID:             row.ID,
		RequestedBy:    row.RequestedBy,
		AbsentNames:    []string(row.AbsentNames),
		AssignedCount:  row.AssignedCount,
		UncoveredCount: row.UncoveredCount,
		Exclusivity:    row.Exclusivity,
		Absences:       row.Absences,
		CreatedAt:      row.CreatedAt,
	}, nil
}

// ListRecords returns a run's records in processing order.
func (r *SubstitutionRepository) ListRecords(ctx context.Context, runID string) ([]models.SubstitutionRecord, error) {
	const query = `SELECT id, run_id, seq, outcome, absent_teacher_id, absent_teacher_name, substitute_id, substitute_name, class_name, day_of_week, period, reason
FROM substitution_records WHERE run_id = $1 ORDER BY seq ASC`
	var records []models.SubstitutionRecord
	if err := r.db.SelectContext(ctx, &records, query, runID); err != nil {
		return nil, fmt.Errorf("list substitution records: %w", err)
	}
	return records, nil
}
