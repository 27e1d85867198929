package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-substitute-api/internal/service"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
	"github.com/noah-isme/sma-substitute-api/pkg/response"
	"github.com/noah-isme/sma-substitute-api/pkg/timetable"
)

const maxTimetableUpload = 4 << 20

type timetableManager interface {
	Import(ctx context.Context, format string, r io.Reader) (int, error)
	Export(ctx context.Context, format string) ([]byte, error)
}

// TimetableHandler imports and exports the timetable used for substitution runs.
type TimetableHandler struct {
	service timetableManager
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(svc *service.TimetableService) *TimetableHandler {
	return &TimetableHandler{service: svc}
}

// Import godoc
// @Summary Replace the timetable
// @Description The raw request body is a CSV, text or YAML timetable.
// @Tags Timetable
// @Accept plain
// @Produce json
// @Security BearerAuth
// @Param format query string true "csv, text or yaml"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /timetable [put]
func (h *TimetableHandler) Import(c *gin.Context) {
	format := c.Query("format")
	if format == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format required"))
		return
	}
	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxTimetableUpload)
	count, err := h.service.Import(c.Request.Context(), format, body)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"teachers": count})
}

// Export godoc
// @Summary Download the current timetable
// @Tags Timetable
// @Produce plain
// @Security BearerAuth
// @Param format query string false "csv, text or yaml" default(yaml)
// @Success 200 {file} file
// @Router /timetable [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", string(timetable.FormatYAML))
	data, err := h.service.Export(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	parsed, _ := timetable.ParseFormat(format)
	contentType := "text/plain; charset=utf-8"
	switch parsed {
	case timetable.FormatCSV:
		contentType = "text/csv"
	case timetable.FormatYAML:
		contentType = "application/yaml"
	}
	response.Attachment(c, "timetable."+string(parsed), contentType, data)
}
