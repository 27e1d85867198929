package dto

import (
	"time"

	"github.com/noah-isme/sma-substitute-api/internal/models"
)

// RunSubstitutionRequest lists absent teachers in processing order.
type RunSubstitutionRequest struct {
	AbsentTeachers []string `json:"absentTeachers" validate:"required,min=1,dive,required"`
}

// SubstitutionAssignment is one processed period in a run report.
type SubstitutionAssignment struct {
	Sequence       int    `json:"sequence"`
	Outcome        string `json:"outcome"`
	AbsentTeacher  string `json:"absentTeacher"`
	SubstituteID   string `json:"substituteId,omitempty"`
	SubstituteName string `json:"substituteName,omitempty"`
	ClassName      string `json:"className"`
	Day            string `json:"day"`
	Period         string `json:"period"`
	Reason         string `json:"reason,omitempty"`
}

// SubstitutionReport is the user facing summary of a run.
type SubstitutionReport struct {
	RunID       string                   `json:"runId"`
	Exclusivity string                   `json:"exclusivity"`
	Assigned    int                      `json:"assigned"`
	Uncovered   int                      `json:"uncovered"`
	Absences    []models.AbsenceReport   `json:"absences"`
	Assignments []SubstitutionAssignment `json:"assignments"`
	CreatedAt   time.Time                `json:"createdAt"`
}

// ExportLinkResponse returns a signed download link for a stored rendering.
type ExportLinkResponse struct {
	URL       string    `json:"url"`
	Format    string    `json:"format"`
	ExpiresAt time.Time `json:"expiresAt"`
}
