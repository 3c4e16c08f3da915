package reply

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srjmnh/student-ai/internal/records"
)

const studentMarkup = `<div data-panel="students"><table>
<thead><tr><th>ID</th><th>Name</th><th>Class</th><th>Division</th><th>Guardian Name</th></tr></thead>
<tbody>
<tr><td>1</td><td>Asha</td><td>5</td><td>B</td><td>Ravi</td></tr>
<tr><td>2</td><td><input value=" Ben "></td><td>6</td><td>A</td></tr>
</tbody></table></div>`

const gradeMarkup = `<h2 class="title">Grades overview</h2><table>
<tr><th>Subject ID</th><th>Subject</th><th>Student ID</th><th>Term 1</th><th>Term 2</th><th>Term 3</th></tr>
<tr><td>S1</td><td>Maths</td><td>42</td><td>85</td><td>abc</td><td></td></tr>
</table>`

func TestClassifyPrefersTag(t *testing.T) {
	out := Classify(Envelope{Kind: "message", Message: studentMarkup})
	assert.Equal(t, PlainMessage, out.Kind)
	assert.Equal(t, studentMarkup, out.Text)

	out = Classify(Envelope{Kind: "grade_table", Message: gradeMarkup})
	assert.Equal(t, GradeTable, out.Kind)
	assert.Equal(t, gradeMarkup, out.Markup)
	assert.False(t, out.Sniffed)
}

func TestClassifyStructuredPayload(t *testing.T) {
	out := Classify(Envelope{Students: []records.Student{{ID: "1", Name: "Asha"}}})
	assert.Equal(t, StudentTable, out.Kind)
	require.Len(t, out.Students, 1)

	out = Classify(Envelope{Grades: []records.GradeEntry{{SubjectID: "S1", StudentID: "42"}}})
	assert.Equal(t, GradeTable, out.Kind)
}

func TestClassifySniffsMarkup(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Kind
	}{
		{name: "plain text", text: "Student ALIC15 was updated.", want: PlainMessage},
		{name: "student table", text: studentMarkup, want: StudentTable},
		{name: "grade heading", text: gradeMarkup, want: GradeTable},
		{name: "grade panel marker", text: `<div data-panel="grades"></div>`, want: GradeTable},
		{name: "grades section class", text: `<section class="grades-section"><table></table></section>`, want: GradeTable},
		{name: "panel marker only", text: `<div data-panel="students"></div>`, want: StudentTable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Classify(Envelope{Message: tt.text})
			assert.Equal(t, tt.want, out.Kind)
			assert.Equal(t, tt.want != PlainMessage, out.Sniffed)
		})
	}
}

func TestSniffMisroutesQuotedMarkup(t *testing.T) {
	// Known limitation: prose that quotes table markup is treated as a table.
	out := Sniff("Use a <table> element to show rows.")
	assert.Equal(t, StudentTable, out.Kind)
}

func TestParseTableWithHeaders(t *testing.T) {
	table, err := ParseTable(studentMarkup)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "class", "division", "guardian_name"}, table.Headers)
	require.Len(t, table.Rows, 2)

	recs := table.Records()
	assert.Equal(t, "Ben", recs[1]["name"])
	assert.Equal(t, "", recs[1]["guardian_name"])
}

func TestParseTableWithoutHeaderCells(t *testing.T) {
	table, err := ParseTable(`<table><tr><td>ID</td><td>Name</td></tr><tr><td>7</td><td>Kim</td></tr></table>`)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, table.Headers)
	// The header row stays in the body; the grid treats it as a placeholder row.
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "ID", table.Records()[0]["id"])
}

func TestParseTableGradeHeaders(t *testing.T) {
	table, err := ParseTable(gradeMarkup)
	require.NoError(t, err)
	assert.Equal(t, []string{"subject_id", "subject_name", "student_id", "term1", "term2", "term3"}, table.Headers)
}

func TestParseTableRejectsMissingTable(t *testing.T) {
	_, err := ParseTable("<p>nothing here</p>")
	assert.ErrorIs(t, err, ErrNoTable)
}
