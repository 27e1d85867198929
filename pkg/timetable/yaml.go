package timetable

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/sma-substitute-api/internal/models"
)

type yamlDocument struct {
	Teachers []models.Teacher `yaml:"teachers"`
}

// ReadYAML parses a document with a top-level teachers list.
func ReadYAML(r io.Reader) ([]models.Teacher, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var doc yamlDocument
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) {
			return nil, malformed(0, "%s", strings.Join(typeErr.Errors, "; "))
		}
		return nil, malformed(0, "%v", err)
	}
	for i, teacher := range doc.Teachers {
		if strings.TrimSpace(teacher.Name) == "" && strings.TrimSpace(teacher.ID) == "" {
			return nil, malformed(0, "teacher %d has neither name nor id", i+1)
		}
		for _, day := range teacher.Timetable {
			for _, entry := range day.Periods {
				if strings.TrimSpace(entry.Period) == "" || strings.TrimSpace(entry.Class) == "" {
					return nil, malformed(0, "teacher %s has an incomplete period on %s", teacher.Name, day.Day)
				}
			}
		}
	}
	return doc.Teachers, nil
}

// WriteYAML emits the teachers list.
func WriteYAML(w io.Writer, teachers []models.Teacher) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(yamlDocument{Teachers: teachers}); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("close yaml encoder: %w", err)
	}
	return nil
}
