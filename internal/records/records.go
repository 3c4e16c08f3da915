// Package records holds the shapes of the remote-owned student and grade
// records, and the update units the front end sends back.
package records

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Terms are the grade terms, in submission order.
var Terms = []string{"term1", "term2", "term3"}

// FlexInt decodes numbers, numeric strings and null. Anything unparseable
// decodes to 0 instead of failing the whole payload.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*f = 0
		return nil
	}
	if trimmed[0] == '"' {
		var raw string
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			*f = 0
			return nil
		}
		*f = FlexInt(SafeInt(raw, 0))
		return nil
	}
	*f = FlexInt(SafeInt(string(trimmed), 0))
	return nil
}

// Student is the authoritative record as the records service returns it.
type Student struct {
	ID            string                    `json:"id"`
	Name          string                    `json:"name"`
	Age           FlexInt                   `json:"age"`
	Class         string                    `json:"class"`
	Division      string                    `json:"division"`
	Address       string                    `json:"address"`
	Phone         string                    `json:"phone"`
	GuardianName  string                    `json:"guardian_name"`
	GuardianPhone string                    `json:"guardian_phone"`
	Attendance    FlexInt                   `json:"attendance"`
	Grades        map[string]map[string]any `json:"grades,omitempty"`
}

// GradeEntry is one subject row for one student.
type GradeEntry struct {
	SubjectID   string  `json:"subject_id"`
	SubjectName string  `json:"subject_name"`
	StudentID   string  `json:"student_id"`
	Term1       FlexInt `json:"term1"`
	Term2       FlexInt `json:"term2"`
	Term3       FlexInt `json:"term3"`
}

// RecordDiff is one validated student row queued for a bulk update.
type RecordDiff struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Age           int    `json:"age"`
	Class         string `json:"class"`
	Division      string `json:"division"`
	Address       string `json:"address"`
	Phone         string `json:"phone"`
	GuardianName  string `json:"guardian_name"`
	GuardianPhone string `json:"guardian_phone"`
	Attendance    int    `json:"attendance"`
	// Grades is the parsed grades cell, or the raw string when it is not JSON.
	Grades any `json:"grades,omitempty"`
}

// GradeUnit is the smallest unit of remote grade mutation.
type GradeUnit struct {
	SubjectID string `json:"subject_id"`
	StudentID string `json:"student_id"`
	Term      string `json:"term"`
	Marks     int    `json:"marks"`
}

// SafeInt parses raw as an integer. Integral decimals ("85.0") are accepted;
// anything else yields fallback.
func SafeInt(raw string, fallback int) int {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback
	}
	if parsed, err := strconv.Atoi(trimmed); err == nil {
		return parsed
	}
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return fallback
	}
	if parsed != math.Trunc(parsed) || math.Abs(parsed) > math.MaxInt32 {
		return fallback
	}
	return int(parsed)
}

// ParseGrades decodes a grades cell. Empty input yields nil; input that is
// not JSON is returned as the trimmed string.
func ParseGrades(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	var parsed any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return trimmed
	}
	return parsed
}

// FormatGrades renders a grades mapping as compact JSON for a grid cell.
func FormatGrades(grades map[string]map[string]any) string {
	if len(grades) == 0 {
		return ""
	}
	buf, err := json.Marshal(grades)
	if err != nil {
		return ""
	}
	return string(buf)
}
