package timetable

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/noah-isme/sma-substitute-api/internal/models"
)

var (
	teacherLine = regexp.MustCompile(`^Teacher:\s*(.+)$`)
	periodLine  = regexp.MustCompile(`^Period\s*([^:\s]+)\s*:\s*(.+)$`)
	fieldLine   = regexp.MustCompile(`^(Day|Email|Subjects|Classes|ID):\s*(.*)$`)
)

// ReadText parses the line oriented layout:
//
//	Teacher: Alice
//	Classes: 10A, 10B
//	Day: Monday
//	Period 1: 10A
//	Period 2: Free Period
//	Period 3: 10B (cover Bob)
//
// Classes, Subjects, Email, ID and Day lines are optional. Without a Classes
// line the teacher may cover every class found in their own periods. Periods
// listed before any Day line belong to opts.DefaultDay.
func ReadText(r io.Reader, opts Options) ([]models.Teacher, error) {
	defaultDay := strings.TrimSpace(opts.DefaultDay)
	if defaultDay == "" {
		defaultDay = "Monday"
	}

	var (
		teachers   []models.Teacher
		current    *models.Teacher
		currentDay string
		hasClasses bool
	)
	flush := func() {
		if current == nil {
			return
		}
		if !hasClasses {
			current.Classes = classesFromTimetable(current.Timetable, opts.FreeLabels)
		}
		teachers = append(teachers, *current)
	}

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		if m := teacherLine.FindStringSubmatch(text); m != nil {
			flush()
			current = &models.Teacher{Name: strings.TrimSpace(m[1])}
			currentDay = defaultDay
			hasClasses = false
			continue
		}
		if current == nil {
			return nil, malformed(line, "%q appears before any Teacher line", text)
		}

		if m := periodLine.FindStringSubmatch(text); m != nil {
			period := m[1]
			class, coveringFor := parseCellClass(m[2])
			if _, exists := current.Timetable.Lookup(currentDay, period); exists {
				return nil, malformed(line, "period %s listed twice for %s on %s", period, current.Name, currentDay)
			}
			current.Timetable.Set(currentDay, models.PeriodEntry{Period: period, Class: class, CoveringFor: coveringFor})
			continue
		}

		if m := fieldLine.FindStringSubmatch(text); m != nil {
			value := strings.TrimSpace(m[2])
			switch m[1] {
			case "Day":
				if value == "" {
					return nil, malformed(line, "empty day")
				}
				currentDay = value
			case "Email":
				current.Email = value
			case "ID":
				current.ID = value
			case "Subjects":
				current.Subjects = splitList(value)
			case "Classes":
				current.Classes = splitList(value)
				hasClasses = true
			}
			continue
		}

		return nil, malformed(line, "unrecognised line %q", text)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan timetable: %w", err)
	}
	flush()
	return teachers, nil
}

// WriteText emits the line oriented layout, always with explicit Day and Classes lines.
func WriteText(w io.Writer, teachers []models.Teacher) error {
	bw := bufio.NewWriter(w)
	for i, teacher := range teachers {
		if i > 0 {
			fmt.Fprintln(bw)
		}
		fmt.Fprintf(bw, "Teacher: %s\n", teacher.Name)
		if teacher.ID != "" && teacher.ID != teacher.Name {
			fmt.Fprintf(bw, "ID: %s\n", teacher.ID)
		}
		if teacher.Email != "" {
			fmt.Fprintf(bw, "Email: %s\n", teacher.Email)
		}
		if len(teacher.Subjects) > 0 {
			fmt.Fprintf(bw, "Subjects: %s\n", strings.Join(teacher.Subjects, ", "))
		}
		fmt.Fprintf(bw, "Classes: %s\n", strings.Join(teacher.Classes, ", "))
		for _, day := range teacher.Timetable {
			fmt.Fprintf(bw, "Day: %s\n", day.Day)
			for _, entry := range day.Periods {
				fmt.Fprintf(bw, "Period %s: %s\n", entry.Period, cellClass(entry))
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write timetable: %w", err)
	}
	return nil
}
