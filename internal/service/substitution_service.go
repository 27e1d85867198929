package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/dto"
	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
	"github.com/noah-isme/sma-substitute-api/pkg/jobs"
	"github.com/noah-isme/sma-substitute-api/pkg/validation"
)

type timetableSource interface {
	LoadTeachers(ctx context.Context) ([]models.Teacher, error)
}

// periodWriter persists the periods substitutes picked up during a pass.
type periodWriter interface {
	AddPeriodsWithTx(ctx context.Context, tx *sqlx.Tx, changes []models.PeriodChange) error
}

// snapshotWriter replaces the whole timetable, used by file backed sources.
type snapshotWriter interface {
	SaveTeachers(ctx context.Context, teachers []models.Teacher) error
}

type substitutionRepository interface {
	CreateRunWithTx(ctx context.Context, tx *sqlx.Tx, run *models.SubstitutionRun) error
	InsertRecordsWithTx(ctx context.Context, tx *sqlx.Tx, records []models.SubstitutionRecord) error
	FindRun(ctx context.Context, id string) (*models.SubstitutionRun, error)
	ListRecords(ctx context.Context, runID string) ([]models.SubstitutionRecord, error)
}

type reportCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type jobQueue interface {
	Enqueue(ctx context.Context, job jobs.Job) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// SubstitutionServiceConfig tunes pass behaviour.
type SubstitutionServiceConfig struct {
	Engine     EngineConfig
	FreeLabels []string
	CacheTTL   time.Duration
}

// SubstitutionService runs substitution passes against the configured timetable source.
type SubstitutionService struct {
	source    timetableSource
	periods   periodWriter
	snapshots snapshotWriter
	repo      substitutionRepository
	tx        txProvider
	cache     reportCache
	queue     jobQueue
	metrics   *MetricsService
	engine    *SubstitutionEngine
	validator *validation.Validator
	logger    *zap.Logger
	cfg       SubstitutionServiceConfig

	writes sync.Locker
}

// SubstitutionDeps groups optional collaborators.
type SubstitutionDeps struct {
	Periods   periodWriter
	Snapshots snapshotWriter
	Repo      substitutionRepository
	Tx        txProvider
	Cache     reportCache
	Queue     jobQueue
	Metrics   *MetricsService
	// Writes serialises passes with every other writer of the same timetable,
	// e.g. TimetableService imports. A private mutex is used when nil.
	Writes sync.Locker
}

// NewSubstitutionService wires a substitution service.
func NewSubstitutionService(source timetableSource, deps SubstitutionDeps, validate *validation.Validator, logger *zap.Logger, cfg SubstitutionServiceConfig) (*SubstitutionService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		var err error
		if validate, err = validation.New(); err != nil {
			return nil, err
		}
	}
	writes := deps.Writes
	if writes == nil {
		writes = &sync.Mutex{}
	}
	return &SubstitutionService{
		source:    source,
		periods:   deps.Periods,
		snapshots: deps.Snapshots,
		repo:      deps.Repo,
		tx:        deps.Tx,
		cache:     deps.Cache,
		queue:     deps.Queue,
		metrics:   deps.Metrics,
		engine:    NewSubstitutionEngine(cfg.Engine, logger),
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		writes:    writes,
	}, nil
}

// Run executes one substitution pass and persists its outcome. Only the pass
// itself holds the write lock; caching and notification happen after release.
func (s *SubstitutionService) Run(ctx context.Context, req dto.RunSubstitutionRequest, requestedBy string) (*dto.SubstitutionReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, s.validator.Message(err))
	}

	run, result, store, err := s.pass(ctx, req, requestedBy)
	if err != nil {
		return nil, err
	}

	report := buildReport(run, result.Absences, result.Records)
	if s.cache != nil {
		_ = s.cache.Set(ctx, RunReportKey(run.ID), report, s.cfg.CacheTTL)
	}
	s.notify(ctx, run.ID, store, result.Records)

	s.logger.Info("substitution pass completed",
		zap.String("run_id", run.ID),
		zap.Int("assigned", result.Assigned),
		zap.Int("uncovered", result.Uncovered),
		zap.String("exclusivity", run.Exclusivity))
	return report, nil
}

// pass loads, assigns and persists under the write lock.
func (s *SubstitutionService) pass(ctx context.Context, req dto.RunSubstitutionRequest, requestedBy string) (*models.SubstitutionRun, *SubstitutionResult, *ScheduleStore, error) {
	s.writes.Lock()
	defer s.writes.Unlock()

	teachers, err := s.source.LoadTeachers(ctx)
	if err != nil {
		return nil, nil, nil, asAppError(err, "failed to load timetable")
	}
	store, err := NewScheduleStore(teachers, StoreOptions{FreeLabels: s.cfg.FreeLabels})
	if err != nil {
		return nil, nil, nil, err
	}

	start := time.Now()
	result := s.engine.RunPass(store, req.AbsentTeachers)
	s.metrics.ObserveSubstitutionPass(result, time.Since(start))

	run := &models.SubstitutionRun{
		ID:             uuid.NewString(),
		AbsentNames:    req.AbsentTeachers,
		AssignedCount:  result.Assigned,
		UncoveredCount: result.Uncovered,
		Exclusivity:    string(result.Exclusivity),
		CreatedAt:      time.Now().UTC(),
	}
	if requestedBy != "" {
		run.RequestedBy = &requestedBy
	}
	absences, err := json.Marshal(result.Absences)
	if err != nil {
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode absence reports")
	}
	run.Absences = types.JSONText(absences)
	for i := range result.Records {
		result.Records[i].ID = uuid.NewString()
		result.Records[i].RunID = run.ID
	}

	if err := s.persist(ctx, run, result); err != nil {
		return nil, nil, nil, err
	}
	if s.snapshots != nil && len(result.Changes) > 0 {
		if err := s.snapshots.SaveTeachers(ctx, store.ApplyTo(teachers)); err != nil {
			return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write back timetable")
		}
	}
	return run, result, store, nil
}

// Get returns the report of a finished run, preferring the cache.
func (s *SubstitutionService) Get(ctx context.Context, runID string) (*dto.SubstitutionReport, error) {
	if s.cache != nil {
		var cached dto.SubstitutionReport
		if hit, _ := s.cache.Get(ctx, RunReportKey(runID), &cached); hit {
			return &cached, nil
		}
	}
	if s.repo == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "substitution run not found")
	}

	run, err := s.repo.FindRun(ctx, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "substitution run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load substitution run")
	}
	records, err := s.repo.ListRecords(ctx, runID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load substitution records")
	}
	var absences []models.AbsenceReport
	if len(run.Absences) > 0 {
		if err := run.Absences.Unmarshal(&absences); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode absence reports")
		}
	}

	report := buildReport(run, absences, records)
	if s.cache != nil {
		_ = s.cache.Set(ctx, RunReportKey(runID), report, s.cfg.CacheTTL)
	}
	return report, nil
}

func (s *SubstitutionService) persist(ctx context.Context, run *models.SubstitutionRun, result *SubstitutionResult) (err error) {
	if s.repo == nil {
		return nil
	}
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.repo.CreateRunWithTx(ctx, tx, run); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store substitution run")
	}
	if err = s.repo.InsertRecordsWithTx(ctx, tx, result.Records); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store substitution records")
	}
	if s.periods != nil && len(result.Changes) > 0 {
		if err = s.periods.AddPeriodsWithTx(ctx, tx, result.Changes); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update timetables")
		}
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit substitution run")
	}
	return nil
}

// notify enqueues one message per assignment whose substitute has an e-mail address.
func (s *SubstitutionService) notify(ctx context.Context, runID string, store *ScheduleStore, records []models.SubstitutionRecord) {
	if s.queue == nil {
		return
	}
	for _, record := range records {
		if record.Outcome != models.OutcomeAssigned || record.SubstituteID == nil {
			continue
		}
		substitute, err := store.Get(*record.SubstituteID)
		if err != nil || substitute.Email == "" {
			continue
		}
		msg := models.NotificationMessage{
			Type: models.NotificationSubstitutionAssigned,
			To:   substitute.Email,
			Data: models.SubstitutionNotice{
				RunID:             runID,
				SubstituteName:    substitute.Name,
				AbsentTeacherName: record.AbsentTeacherName,
				ClassName:         record.ClassName,
				Day:               record.Day,
				Period:            record.Period,
			},
		}
		job := jobs.Job{ID: record.ID, Type: string(msg.Type), Payload: msg}
		if err := s.queue.Enqueue(ctx, job); err != nil {
			s.metrics.RecordNotification(false)
			s.logger.Warn("failed to enqueue substitution notification", zap.String("record_id", record.ID), zap.Error(err))
		}
	}
}

func buildReport(run *models.SubstitutionRun, absences []models.AbsenceReport, records []models.SubstitutionRecord) *dto.SubstitutionReport {
	report := &dto.SubstitutionReport{
		RunID:       run.ID,
		Exclusivity: run.Exclusivity,
		Assigned:    run.AssignedCount,
		Uncovered:   run.UncoveredCount,
		Absences:    absences,
		Assignments: make([]dto.SubstitutionAssignment, 0, len(records)),
		CreatedAt:   run.CreatedAt,
	}
	if report.Absences == nil {
		report.Absences = []models.AbsenceReport{}
	}
	for _, record := range records {
		item := dto.SubstitutionAssignment{
			Sequence:      record.Sequence,
			Outcome:       string(record.Outcome),
			AbsentTeacher: record.AbsentTeacherName,
			ClassName:     record.ClassName,
			Day:           record.Day,
			Period:        record.Period,
			Reason:        record.Reason,
		}
		if record.SubstituteID != nil {
			item.SubstituteID = *record.SubstituteID
		}
		if record.SubstituteName != nil {
			item.SubstituteName = *record.SubstituteName
		}
		report.Assignments = append(report.Assignments, item)
	}
	return report
}
