package handler

import (
	"context"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-substitute-api/internal/dto"
	"github.com/noah-isme/sma-substitute-api/internal/service"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
	"github.com/noah-isme/sma-substitute-api/pkg/export"
	"github.com/noah-isme/sma-substitute-api/pkg/response"
)

type substitutionRunner interface {
	Run(ctx context.Context, req dto.RunSubstitutionRequest, requestedBy string) (*dto.SubstitutionReport, error)
	Get(ctx context.Context, runID string) (*dto.SubstitutionReport, error)
}

type reportExporter interface {
	Render(ctx context.Context, runID, format string) (*service.RenderedReport, error)
	Save(ctx context.Context, runID, format string) (*dto.ExportLinkResponse, error)
	OpenSigned(token string) (*os.File, string, error)
}

// SubstitutionHandler exposes substitution runs and their reports.
type SubstitutionHandler struct {
	runs    substitutionRunner
	exports reportExporter
}

// NewSubstitutionHandler constructs the handler.
func NewSubstitutionHandler(runs *service.SubstitutionService, exports *service.ExportService) *SubstitutionHandler {
	return &SubstitutionHandler{runs: runs, exports: exports}
}

// Run godoc
// @Summary Assign substitutes for absent teachers
// @Description Runs one substitution pass over the current timetable. Absent teachers are processed in request order.
// @Tags Substitutions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.RunSubstitutionRequest true "Absent teachers"
// @Success 201 {object} response.Envelope{data=dto.SubstitutionReport}
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /substitutions [post]
func (h *SubstitutionHandler) Run(c *gin.Context) {
	var req dto.RunSubstitutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid substitution payload"))
		return
	}
	report, err := h.runs.Run(c.Request.Context(), req, requesterID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, report)
}

// Get godoc
// @Summary Get a substitution run report
// @Tags Substitutions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope{data=dto.SubstitutionReport}
// @Failure 404 {object} response.Envelope
// @Router /substitutions/{id} [get]
func (h *SubstitutionHandler) Get(c *gin.Context) {
	report, err := h.runs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

// Export godoc
// @Summary Download a run report
// @Tags Substitutions
// @Produce text/csv
// @Produce application/pdf
// @Produce text/plain
// @Security BearerAuth
// @Param id path string true "Run ID"
// @Param format query string false "csv, pdf or txt" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /substitutions/{id}/export [get]
func (h *SubstitutionHandler) Export(c *gin.Context) {
	rendered, err := h.exports.Render(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", string(export.FormatCSV)))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, rendered.Filename, rendered.ContentType, rendered.Data)
}

// CreateExport godoc
// @Summary Store a run report and return a signed download link
// @Tags Substitutions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Run ID"
// @Param format query string false "csv, pdf or txt" default(csv)
// @Success 201 {object} response.Envelope{data=dto.ExportLinkResponse}
// @Router /substitutions/{id}/exports [post]
func (h *SubstitutionHandler) CreateExport(c *gin.Context) {
	link, err := h.exports.Save(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", string(export.FormatCSV)))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, link)
}

// Download godoc
// @Summary Download a stored report through a signed link
// @Tags Substitutions
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *SubstitutionHandler) Download(c *gin.Context) {
	file, name, err := h.exports.OpenSigned(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export"))
		return
	}
	contentType := "application/octet-stream"
	if format, err := export.ParseFormat(strings.TrimPrefix(path.Ext(name), ".")); err == nil {
		contentType = format.ContentType()
	}
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, map[string]string{
		"Content-Disposition": `attachment; filename="` + name + `"`,
		"Cache-Control":       "no-store",
	})
}
