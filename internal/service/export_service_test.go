package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/dto"
	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
	"github.com/noah-isme/sma-substitute-api/pkg/storage"
)

type runReportStub map[string]*dto.SubstitutionReport

func (s runReportStub) Get(ctx context.Context, runID string) (*dto.SubstitutionReport, error) {
	report, ok := s[runID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "substitution run not found")
	}
	return report, nil
}

func sampleReport() *dto.SubstitutionReport {
	return &dto.SubstitutionReport{
		RunID:     "run-1",
		Assigned:  1,
		Uncovered: 1,
		Absences: []models.AbsenceReport{
			{RequestedName: "Alice", TeacherID: "Alice", Status: models.AbsenceProcessed, Assigned: 1, Uncovered: 1},
			{RequestedName: "Zed", Status: models.AbsenceUnknown, Error: `teacher "Zed" not found`},
		},
		Assignments: []dto.SubstitutionAssignment{
			{Sequence: 1, Outcome: string(models.OutcomeAssigned), AbsentTeacher: "Alice", SubstituteName: "Bob", ClassName: "10A", Day: "Monday", Period: "P1"},
			{Sequence: 2, Outcome: string(models.OutcomeNoSubstitute), AbsentTeacher: "Alice", ClassName: "10B", Day: "Monday", Period: "P2", Reason: models.ReasonNoSubstitute},
		},
	}
}

func newExportServiceForTest(t *testing.T) (*ExportService, *storage.SignedURLSigner) {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewExportService(runReportStub{"run-1": sampleReport()}, files, signer, ExportConfig{APIPrefix: "/api/v1/", ResultTTL: time.Hour}, zap.NewNop())
	return svc, signer
}

func TestReportDatasetRows(t *testing.T) {
	data := ReportDataset(sampleReport())

	assert.Equal(t, "Substitutions (1 assigned, 1 uncovered)", data.Title)
	require.Len(t, data.Rows, 3)
	assert.Equal(t, "Bob", data.Rows[0]["Substitute"])
	assert.Equal(t, "Assigned", data.Rows[0]["Status"])
	assert.Equal(t, "-", data.Rows[1]["Substitute"])
	assert.Equal(t, "No substitute available", data.Rows[1]["Status"])
	assert.Equal(t, "Zed", data.Rows[2]["Absent Teacher"])
	assert.True(t, strings.HasPrefix(data.Rows[2]["Status"], "unknown: "))
}

func TestExportServiceRenderFormats(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	csvReport, err := svc.Render(context.Background(), "run-1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "substitutions_run-1.csv", csvReport.Filename)
	assert.Equal(t, "text/csv", csvReport.ContentType)
	assert.Contains(t, string(csvReport.Data), "Absent Teacher")
	assert.Contains(t, string(csvReport.Data), "Bob")

	txtReport, err := svc.Render(context.Background(), "run-1", "txt")
	require.NoError(t, err)
	assert.Contains(t, string(txtReport.Data), "No substitute available")

	pdfReport, err := svc.Render(context.Background(), "run-1", "pdf")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdfReport.Data), "%PDF"))
}

func TestExportServiceRenderErrors(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	_, err := svc.Render(context.Background(), "run-1", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Render(context.Background(), "missing", "csv")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportServiceSaveAndOpenSigned(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	link, err := svc.Save(context.Background(), "run-1", "csv")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link.URL, "/api/v1/exports/"))
	assert.Equal(t, "csv", link.Format)
	assert.WithinDuration(t, time.Now().Add(time.Hour), link.ExpiresAt, time.Minute)

	token := strings.TrimPrefix(link.URL, "/api/v1/exports/")
	file, name, err := svc.OpenSigned(token)
	require.NoError(t, err)
	defer file.Close()
	assert.True(t, strings.HasSuffix(name, "substitutions_run-1.csv"))

	body, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Bob")
}

func TestExportServiceOpenSignedRejectsBadTokens(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	_, _, err := svc.OpenSigned("garbage")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	shortLived := storage.NewSignedURLSigner("secret", time.Nanosecond)
	token, _, err := shortLived.Generate("run-1", "run-1/file.csv")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	_, _, err = svc.OpenSigned(token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestExportServiceWithoutStorage(t *testing.T) {
	svc := NewExportService(runReportStub{"run-1": sampleReport()}, nil, nil, ExportConfig{}, nil)

	_, err := svc.Save(context.Background(), "run-1", "csv")
	require.Error(t, err)

	files, err := svc.Cleanup(0)
	require.NoError(t, err)
	assert.Empty(t, files)

	rendered, err := svc.RenderReport(sampleReport(), "txt")
	require.NoError(t, err)
	assert.NotEmpty(t, rendered.Data)
}
