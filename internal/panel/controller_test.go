package panel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srjmnh/student-ai/internal/grid"
)

func studentRows() []grid.Row {
	return []grid.Row{grid.NewRow(map[string]string{"id": "1", "name": "Asha", "class": "5", "division": "B"})}
}

func gradeRows() []grid.Row {
	return []grid.Row{grid.NewRow(map[string]string{"subject_id": "S1", "student_id": "1", "term1": "80"})}
}

func TestInitialStateClosed(t *testing.T) {
	c := NewController(grid.New())
	assert.Equal(t, Closed, c.State())
	assert.False(t, c.Visible())
	assert.False(t, c.ConversationShifted())
	c.Close()
	assert.Empty(t, c.Transitions())
}

func TestOpeningGradesClosesStudents(t *testing.T) {
	g := grid.New()
	c := NewController(g)
	c.OpenStudentGrid(studentRows())
	require.Equal(t, StudentGrid, c.State())

	c.OpenGradeGrid(gradeRows())
	assert.Equal(t, GradeGrid, c.State())
	assert.Equal(t, grid.Grades, g.Kind())
	require.Equal(t, 1, g.Len())
	row, _ := g.Row(0)
	assert.Equal(t, "S1", row.Cell("subject_id"))
	assert.Equal(t, []Transition{
		{Panel: StudentGrid, Slide: SlideIn},
		{Panel: StudentGrid, Slide: SlideOut},
		{Panel: GradeGrid, Slide: SlideIn},
	}, c.Transitions())
	assert.True(t, c.ConversationShifted())
}

func TestReopenSameKindRehydratesWithoutSlide(t *testing.T) {
	g := grid.New()
	c := NewController(g)
	c.OpenStudentGrid(studentRows())
	c.OpenStudentGrid(nil)
	assert.Equal(t, 0, g.Len())
	assert.Len(t, c.Transitions(), 1)
}

func TestCloseClearsGridAndUnshifts(t *testing.T) {
	g := grid.New()
	c := NewController(g)
	c.OpenGradeGrid(gradeRows())
	c.Close()
	assert.Equal(t, Closed, c.State())
	assert.False(t, c.ConversationShifted())
	assert.Equal(t, 0, g.Len())
	assert.Equal(t, Transition{Panel: GradeGrid, Slide: SlideOut}, c.Transitions()[1])
}

func TestReloadOnlyTouchesOpenKind(t *testing.T) {
	g := grid.New()
	c := NewController(g)
	assert.False(t, c.Reload(grid.Students, studentRows()))

	c.OpenStudentGrid(studentRows())
	g.SetFilter("5B")
	assert.False(t, c.Reload(grid.Grades, gradeRows()))
	assert.Equal(t, grid.Students, g.Kind())

	assert.True(t, c.Reload(grid.Students, append(studentRows(), studentRows()...)))
	assert.Equal(t, 2, g.Len())
	assert.Equal(t, "5b", g.Filter())
}

func TestTransitionLogIsBounded(t *testing.T) {
	c := NewController(grid.New())
	for i := 0; i < 40; i++ {
		c.OpenStudentGrid(studentRows())
		c.Close()
	}
	assert.Equal(t, 80, c.Moves())
	trans := c.Transitions()
	require.Len(t, trans, maxTransitions)
	assert.Equal(t, Transition{Panel: StudentGrid, Slide: SlideOut}, trans[len(trans)-1])
}
