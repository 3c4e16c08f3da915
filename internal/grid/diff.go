package grid

import (
	"fmt"
	"strings"

	"github.com/srjmnh/student-ai/internal/records"
)

// Warning names a row that failed validation and the fields at fault.
type Warning struct {
	Identity Identity
	Fields   []string
}

func (w Warning) String() string {
	return fmt.Sprintf("Row %s skipped: missing %s", w.Identity, strings.Join(w.Fields, ", "))
}

// Diff is the validated submission set. Records is filled for the student
// grid, Units for the grades grid.
type Diff struct {
	Kind     Kind
	Records  []records.RecordDiff
	Units    []records.GradeUnit
	Warnings []Warning
}

func (d Diff) Empty() bool { return len(d.Records) == 0 && len(d.Units) == 0 }

var requiredStudentFields = []string{"name", "class", "division"}

// ExtractDiff scans every row, filtered or not. Rows with an empty or
// placeholder identity are skipped without a warning; rows missing required
// fields are excluded with one.
func (g *Grid) ExtractDiff() Diff {
	diff := Diff{Kind: g.kind}
	for _, row := range g.rows {
		cells := trimmed(row.Cells)
		switch g.kind {
		case Grades:
			g.extractGradeRow(&diff, cells)
		default:
			g.extractStudentRow(&diff, row, cells)
		}
	}
	return diff
}

func (g *Grid) extractStudentRow(diff *Diff, row Row, cells map[string]string) {
	id := Identity{Student: cells["id"]}
	if IsPlaceholder(Students, id) {
		return
	}
	var missing []string
	for _, key := range requiredStudentFields {
		if cells[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		diff.Warnings = append(diff.Warnings, Warning{Identity: id, Fields: missing})
		return
	}
	diff.Records = append(diff.Records, records.RecordDiff{
		ID:            id.Student,
		Name:          cells["name"],
		Age:           records.SafeInt(cells["age"], records.SafeInt(row.original["age"], 0)),
		Class:         cells["class"],
		Division:      cells["division"],
		Address:       cells["address"],
		Phone:         cells["phone"],
		GuardianName:  cells["guardian_name"],
		GuardianPhone: cells["guardian_phone"],
		Attendance:    records.SafeInt(cells["attendance"], records.SafeInt(row.original["attendance"], 0)),
		Grades:        records.ParseGrades(cells["grades"]),
	})
}

func (g *Grid) extractGradeRow(diff *Diff, cells map[string]string) {
	id := Identity{Subject: cells["subject_id"], Student: cells["student_id"]}
	subjectMissing := placeholderValue(Grades, "subject_id", id.Subject)
	studentMissing := placeholderValue(Grades, "student_id", id.Student)
	if subjectMissing && studentMissing {
		return
	}
	if subjectMissing || studentMissing {
		var missing []string
		if subjectMissing {
			missing = append(missing, "subject_id")
		}
		if studentMissing {
			missing = append(missing, "student_id")
		}
		diff.Warnings = append(diff.Warnings, Warning{Identity: id, Fields: missing})
		return
	}
	for _, term := range records.Terms {
		diff.Units = append(diff.Units, records.GradeUnit{
			SubjectID: id.Subject,
			StudentID: id.Student,
			Term:      term,
			Marks:     records.SafeInt(cells[term], 0),
		})
	}
}

func trimmed(cells map[string]string) map[string]string {
	out := make(map[string]string, len(cells))
	for k, v := range cells {
		out[k] = strings.TrimSpace(v)
	}
	return out
}
