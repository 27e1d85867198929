package timetable

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
)

// Format identifies a timetable file layout.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatText Format = "text"
	FormatYAML Format = "yaml"
)

// Options tunes decoding.
type Options struct {
	// DefaultDay is used by text files that never declare a day.
	DefaultDay string
	// FreeLabels are ignored when text files derive a teacher's classes from their periods.
	FreeLabels []string
}

// ParseFormat maps a configured value to a Format. An empty value is not accepted.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "csv":
		return FormatCSV, nil
	case "text", "txt":
		return FormatText, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported timetable format %q", raw)
	}
}

// DetectFormat infers the format from the file extension.
func DetectFormat(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", fmt.Errorf("cannot infer timetable format of %s", path)
	}
	return ParseFormat(ext)
}

// Load reads teachers from path. An empty format is inferred from the extension.
func Load(path string, format Format, opts Options) ([]models.Teacher, error) {
	if format == "" {
		detected, err := DetectFormat(path)
		if err != nil {
			return nil, err
		}
		format = detected
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open timetable: %w", err)
	}
	defer file.Close()
	return Decode(file, format, opts)
}

// Decode reads teachers in the given format, preserving file order.
func Decode(r io.Reader, format Format, opts Options) ([]models.Teacher, error) {
	switch format {
	case FormatCSV:
		return ReadCSV(r)
	case FormatText:
		return ReadText(r, opts)
	case FormatYAML:
		return ReadYAML(r)
	default:
		return nil, fmt.Errorf("unsupported timetable format %q", format)
	}
}

// Encode writes teachers in the given format.
func Encode(w io.Writer, format Format, teachers []models.Teacher) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, teachers)
	case FormatText:
		return WriteText(w, teachers)
	case FormatYAML:
		return WriteYAML(w, teachers)
	default:
		return fmt.Errorf("unsupported timetable format %q", format)
	}
}

// Save writes teachers to path, replacing the file only once encoding succeeded.
func Save(path string, format Format, teachers []models.Teacher) error {
	if format == "" {
		detected, err := DetectFormat(path)
		if err != nil {
			return err
		}
		format = detected
	}
	buf := &bytes.Buffer{}
	if err := Encode(buf, format, teachers); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write timetable: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace timetable: %w", err)
	}
	return nil
}

func malformed(line int, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if line > 0 {
		msg = fmt.Sprintf("line %d: %s", line, msg)
	}
	return appErrors.Clone(appErrors.ErrMalformedSchedule, msg)
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

var coverNote = regexp.MustCompile(`^(.*\S)\s*\(cover\s+([^()]+)\)$`)

// cellClass renders an entry's class, noting the absent teacher on cover periods: "10A (cover Alice)".
func cellClass(entry models.PeriodEntry) string {
	if entry.CoveringFor == "" {
		return entry.Class
	}
	return fmt.Sprintf("%s (cover %s)", entry.Class, entry.CoveringFor)
}

// parseCellClass is the inverse of cellClass.
func parseCellClass(raw string) (class, coveringFor string) {
	raw = strings.TrimSpace(raw)
	if m := coverNote.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	return raw, ""
}

// classesFromTimetable lists every distinct non-free class a teacher holds
// themselves, in timetable order. Cover periods do not count.
func classesFromTimetable(tt models.Timetable, freeLabels []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, day := range tt.WithoutFree(freeLabels) {
		for _, entry := range day.Periods {
			if entry.CoveringFor != "" {
				continue
			}
			if !seen[entry.Class] {
				seen[entry.Class] = true
				out = append(out, entry.Class)
			}
		}
	}
	return out
}
