// Package reply decides which surface consumes a reply from the records
// service: the conversation log, the student grid or the grades grid.
package reply

import (
	"regexp"
	"strings"

	"github.com/srjmnh/student-ai/internal/records"
)

// Kind is the surface a reply is routed to.
type Kind int

const (
	PlainMessage Kind = iota
	StudentTable
	GradeTable
)

func (k Kind) String() string {
	switch k {
	case StudentTable:
		return "student_table"
	case GradeTable:
		return "grade_table"
	default:
		return "message"
	}
}

// Envelope is the interpret response as it arrives on the wire. Kind is the
// tagged variant; when it is absent the classifier falls back to the payload
// and then to sniffing the message text.
type Envelope struct {
	Kind     string               `json:"kind,omitempty"`
	Message  string               `json:"message,omitempty"`
	Error    string               `json:"error,omitempty"`
	Students []records.Student    `json:"students,omitempty"`
	Grades   []records.GradeEntry `json:"grades,omitempty"`
}

// Outcome is a classified reply. For table kinds either the structured
// records or Markup is set.
type Outcome struct {
	Kind     Kind
	Text     string
	Markup   string
	Students []records.Student
	Grades   []records.GradeEntry
	// Sniffed is true when the kind came from reading markup out of the text.
	Sniffed bool
}

var gradeHeadingPattern = regexp.MustCompile(`(?is)<h[1-6][^>]*>\s*grades\b`)

// Classify routes env. It never fails; unknown tags fall through to the
// untagged rules.
func Classify(env Envelope) Outcome {
	switch strings.ToLower(strings.TrimSpace(env.Kind)) {
	case "message":
		return Outcome{Kind: PlainMessage, Text: env.Message}
	case "student_table":
		return Outcome{Kind: StudentTable, Students: env.Students, Markup: tableMarkup(env)}
	case "grade_table":
		return Outcome{Kind: GradeTable, Grades: env.Grades, Markup: tableMarkup(env)}
	}

	if len(env.Grades) > 0 {
		return Outcome{Kind: GradeTable, Grades: env.Grades}
	}
	if len(env.Students) > 0 {
		return Outcome{Kind: StudentTable, Students: env.Students}
	}
	return Sniff(env.Message)
}

func tableMarkup(env Envelope) string {
	if len(env.Students) > 0 || len(env.Grades) > 0 {
		return ""
	}
	return env.Message
}

// Sniff classifies free text by looking for table markup. A plain message
// that quotes table markup is misrouted; the tagged envelope avoids that.
func Sniff(text string) Outcome {
	lower := strings.ToLower(text)
	hasTable := strings.Contains(lower, "<table")
	hasPanel := strings.Contains(lower, "data-panel")
	if !hasTable && !hasPanel {
		return Outcome{Kind: PlainMessage, Text: text}
	}
	kind := StudentTable
	if isGradeMarkup(lower) {
		kind = GradeTable
	}
	return Outcome{Kind: kind, Markup: text, Sniffed: true}
}

func isGradeMarkup(lower string) bool {
	if strings.Contains(lower, `data-panel="grades"`) || strings.Contains(lower, `data-panel='grades'`) {
		return true
	}
	if strings.Contains(lower, "grades-section") {
		return true
	}
	return gradeHeadingPattern.MatchString(lower)
}
