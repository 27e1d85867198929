package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/dto"
	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
	"github.com/noah-isme/sma-substitute-api/pkg/export"
	"github.com/noah-isme/sma-substitute-api/pkg/storage"
)

type runReportReader interface {
	Get(ctx context.Context, runID string) (*dto.SubstitutionReport, error)
}

type fileStorage interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// RenderedReport is a report in one output format.
type RenderedReport struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders run reports and hands out signed links to stored copies.
type ExportService struct {
	runs      runReportReader
	storage   fileStorage
	signer    *storage.SignedURLSigner
	renderers map[export.Format]export.Renderer
	logger    *zap.Logger
	cfg       ExportConfig
}

// NewExportService constructs an ExportService. storage and signer may be nil when
// only direct rendering is needed.
func NewExportService(runs runReportReader, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		runs:      runs,
		storage:   files,
		signer:    signer,
		renderers: export.Renderers(),
		logger:    logger,
		cfg:       cfg,
	}
}

// Render loads a run and renders it.
func (s *ExportService) Render(ctx context.Context, runID, format string) (*RenderedReport, error) {
	report, err := s.runs.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	return s.RenderReport(report, format)
}

// RenderReport renders an already loaded report.
func (s *ExportService) RenderReport(report *dto.SubstitutionReport, format string) (*RenderedReport, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	data, err := s.renderers[f].Render(ReportDataset(report))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	return &RenderedReport{
		Filename:    fmt.Sprintf("substitutions_%s.%s", report.RunID, f),
		ContentType: f.ContentType(),
		Data:        data,
	}, nil
}

// Save stores a rendering and returns a signed download link.
func (s *ExportService) Save(ctx context.Context, runID, format string) (*dto.ExportLinkResponse, error) {
	if s.storage == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "export storage not configured")
	}
	rendered, err := s.Render(ctx, runID, format)
	if err != nil {
		return nil, err
	}
	name := path.Join(runID, time.Now().UTC().Format("20060102_150405")+"_"+rendered.Filename)
	rel, err := s.storage.Save(name, rendered.Data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, claims, err := s.signer.Generate(runID, rel)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export link")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Info("export stored", zap.String("run_id", runID), zap.String("path", rel))
	return &dto.ExportLinkResponse{
		URL:       fmt.Sprintf("%s/exports/%s", prefix, token),
		Format:    strings.TrimPrefix(path.Ext(rel), "."),
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// OpenSigned resolves a download token to the stored file.
func (s *ExportService) OpenSigned(token string) (*os.File, string, error) {
	if s.storage == nil || s.signer == nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}
	claims, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, "", appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid download link")
	}
	file, err := s.storage.Open(claims.Path)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export not found")
	}
	return file, path.Base(claims.Path), nil
}

// Cleanup removes stored exports older than ttl, or the configured ResultTTL.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if s.storage == nil {
		return nil, nil
	}
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

var reportHeaders = []string{"#", "Absent Teacher", "Day", "Period", "Class", "Substitute", "Status"}

// ReportDataset lays out a run report as one row per processed period.
func ReportDataset(report *dto.SubstitutionReport) export.Dataset {
	rows := make([]map[string]string, 0, len(report.Assignments)+len(report.Absences))
	for _, item := range report.Assignments {
		status := "Assigned"
		substitute := item.SubstituteName
		if item.Outcome != string(models.OutcomeAssigned) {
			status = "No substitute available"
			substitute = "-"
		}
		rows = append(rows, map[string]string{
			"#":              strconv.Itoa(item.Sequence),
			"Absent Teacher": item.AbsentTeacher,
			"Day":            item.Day,
			"Period":         item.Period,
			"Class":          item.ClassName,
			"Substitute":     substitute,
			"Status":         status,
		})
	}
	for _, absence := range report.Absences {
		if absence.Status == models.AbsenceProcessed {
			continue
		}
		status := strings.ReplaceAll(string(absence.Status), "_", " ")
		if absence.Error != "" {
			status += ": " + absence.Error
		}
		rows = append(rows, map[string]string{
			"Absent Teacher": absence.RequestedName,
			"Status":         status,
		})
	}
	return export.Dataset{
		Title:   fmt.Sprintf("Substitutions (%d assigned, %d uncovered)", report.Assigned, report.Uncovered),
		Headers: reportHeaders,
		Rows:    rows,
	}
}
