package records

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeInt(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		fallback int
		want     int
	}{
		{name: "plain", raw: "85", want: 85},
		{name: "padded", raw: "  12 ", want: 12},
		{name: "integral decimal", raw: "90.0", want: 90},
		{name: "fractional", raw: "90.5", fallback: 7, want: 7},
		{name: "letters", raw: "abc", want: 0},
		{name: "empty uses fallback", raw: "", fallback: 14, want: 14},
		{name: "negative", raw: "-3", want: -3},
		{name: "nan", raw: "NaN", fallback: 1, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeInt(tt.raw, tt.fallback))
		})
	}
}

func TestParseGradesFallsBackToRaw(t *testing.T) {
	assert.Nil(t, ParseGrades("   "))
	assert.Equal(t, "A+ overall", ParseGrades(" A+ overall "))

	parsed := ParseGrades(`{"math":{"term1":90}}`)
	obj, ok := parsed.(map[string]any)
	require.True(t, ok, "expected JSON object, got %T", parsed)
	assert.Contains(t, obj, "math")
}

func TestGradeEntryDecodesLooseMarks(t *testing.T) {
	var entry GradeEntry
	err := json.Unmarshal([]byte(`{"subject_id":"S1","student_id":"42","term1":"85","term2":"abc","term3":null}`), &entry)
	require.NoError(t, err)
	assert.Equal(t, FlexInt(85), entry.Term1)
	assert.Equal(t, FlexInt(0), entry.Term2)
	assert.Equal(t, FlexInt(0), entry.Term3)
}

func TestStudentDecodesNumericStrings(t *testing.T) {
	var student Student
	err := json.Unmarshal([]byte(`{"id":"ALIC15B1234","name":"Alice","age":"15","attendance":92}`), &student)
	require.NoError(t, err)
	assert.Equal(t, FlexInt(15), student.Age)
	assert.Equal(t, FlexInt(92), student.Attendance)
}
