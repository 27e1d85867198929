package timetable

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/noah-isme/sma-substitute-api/internal/models"
)

var weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func canonicalDay(header string) (string, bool) {
	for _, day := range weekdays {
		if strings.EqualFold(strings.TrimSpace(header), day) {
			return day, true
		}
	}
	return "", false
}

// ReadCSV parses the roster layout: name, subjects, classes, optional id and
// email, then one column per weekday holding "P1: 10A, P2: 10B".
func ReadCSV(r io.Reader) ([]models.Teacher, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, malformed(1, "read header: %v", err)
	}

	columns := make(map[string]int)
	type dayColumn struct {
		day   string
		index int
	}
	var days []dayColumn
	for i, raw := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff")))
		if day, ok := canonicalDay(name); ok {
			days = append(days, dayColumn{day: day, index: i})
			continue
		}
		columns[name] = i
	}
	nameCol, ok := columns["name"]
	if !ok {
		return nil, malformed(1, "missing name column")
	}
	cell := func(record []string, key string) string {
		idx, ok := columns[key]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var teachers []models.Teacher
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, malformed(line, "%v", err)
		}
		if nameCol >= len(record) || strings.TrimSpace(record[nameCol]) == "" {
			if isBlank(record) {
				continue
			}
			return nil, malformed(line, "teacher without a name")
		}

		teacher := models.Teacher{
			ID:       cell(record, "id"),
			Name:     strings.TrimSpace(record[nameCol]),
			Email:    cell(record, "email"),
			Subjects: splitList(cell(record, "subjects")),
			Classes:  splitList(cell(record, "classes")),
		}
		for _, col := range days {
			if col.index >= len(record) {
				continue
			}
			periods, err := parseDayCell(record[col.index])
			if err != nil {
				return nil, malformed(line, "%s: %v", col.day, err)
			}
			if len(periods) > 0 {
				teacher.Timetable = append(teacher.Timetable, models.DaySchedule{Day: col.day, Periods: periods})
			}
		}
		teachers = append(teachers, teacher)
	}
	return teachers, nil
}

func parseDayCell(raw string) ([]models.PeriodEntry, error) {
	var out []models.PeriodEntry
	for _, pair := range splitList(raw) {
		period, class, found := strings.Cut(pair, ":")
		period, class = strings.TrimSpace(period), strings.TrimSpace(class)
		if !found || period == "" || class == "" {
			return nil, fmt.Errorf("expected period:class, got %q", pair)
		}
		class, coveringFor := parseCellClass(class)
		out = append(out, models.PeriodEntry{Period: period, Class: class, CoveringFor: coveringFor})
	}
	return out, nil
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// WriteCSV emits the roster layout. Day columns follow weekday order.
func WriteCSV(w io.Writer, teachers []models.Teacher) error {
	used := make(map[string]bool)
	var extra []string
	withID, withEmail := false, false
	for _, teacher := range teachers {
		if teacher.ID != "" && teacher.ID != teacher.Name {
			withID = true
		}
		if teacher.Email != "" {
			withEmail = true
		}
		for _, day := range teacher.Timetable {
			if _, known := canonicalDay(day.Day); !known && !used[day.Day] {
				extra = append(extra, day.Day)
			}
			used[day.Day] = true
		}
	}
	var dayColumns []string
	for _, day := range weekdays {
		if used[day] {
			dayColumns = append(dayColumns, day)
		}
	}
	if len(extra) > 0 {
		return fmt.Errorf("days %s cannot be written as csv columns", strings.Join(extra, ", "))
	}

	header := []string{}
	if withID {
		header = append(header, "id")
	}
	header = append(header, "name")
	if withEmail {
		header = append(header, "email")
	}
	header = append(header, "subjects", "classes")
	header = append(header, dayColumns...)

	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, teacher := range teachers {
		row := []string{}
		if withID {
			row = append(row, teacher.ID)
		}
		row = append(row, teacher.Name)
		if withEmail {
			row = append(row, teacher.Email)
		}
		row = append(row, strings.Join(teacher.Subjects, ", "), strings.Join(teacher.Classes, ", "))
		for _, dayName := range dayColumns {
			row = append(row, formatDayCell(teacher.Timetable, dayName))
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func formatDayCell(tt models.Timetable, dayName string) string {
	for _, day := range tt {
		if !strings.EqualFold(day.Day, dayName) {
			continue
		}
		parts := make([]string, 0, len(day.Periods))
		for _, entry := range day.Periods {
			parts = append(parts, entry.Period+": "+cellClass(entry))
		}
		return strings.Join(parts, ", ")
	}
	return ""
}
