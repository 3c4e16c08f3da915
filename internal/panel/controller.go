// Package panel keeps at most one data panel open and hydrates the grid
// before a panel becomes visible.
package panel

import (
	"github.com/srjmnh/student-ai/internal/grid"
)

type State int

const (
	Closed State = iota
	StudentGrid
	GradeGrid
)

func (s State) String() string {
	switch s {
	case StudentGrid:
		return "students"
	case GradeGrid:
		return "grades"
	default:
		return "closed"
	}
}

// Kind maps an open state to its grid kind. Closed reports false.
func (s State) Kind() (grid.Kind, bool) {
	switch s {
	case StudentGrid:
		return grid.Students, true
	case GradeGrid:
		return grid.Grades, true
	}
	return grid.Students, false
}

// StateFor is the open state that shows kind.
func StateFor(kind grid.Kind) State {
	if kind == grid.Grades {
		return GradeGrid
	}
	return StudentGrid
}

type Slide int

const (
	SlideIn Slide = iota
	SlideOut
)

func (s Slide) String() string {
	if s == SlideOut {
		return "slide-out"
	}
	return "slide-in"
}

// Transition is one recorded panel movement.
type Transition struct {
	Panel State
	Slide Slide
}

// maxTransitions bounds the slide log kept for inspection.
const maxTransitions = 50

// Controller owns the panel state. Every method runs on the UI goroutine.
type Controller struct {
	grid        *grid.Grid
	state       State
	shifted     bool
	moves       int
	transitions []Transition
}

func NewController(g *grid.Grid) *Controller {
	return &Controller{grid: g}
}

func (c *Controller) State() State { return c.state }

func (c *Controller) Visible() bool { return c.state != Closed }

// ConversationShifted reports whether the conversation is pushed aside.
func (c *Controller) ConversationShifted() bool { return c.shifted }

func (c *Controller) Grid() *grid.Grid { return c.grid }

// Moves counts every transition recorded since construction.
func (c *Controller) Moves() int { return c.moves }

// Transitions returns the most recent slides, oldest first.
func (c *Controller) Transitions() []Transition {
	out := make([]Transition, len(c.transitions))
	copy(out, c.transitions)
	return out
}

func (c *Controller) OpenStudentGrid(rows []grid.Row) { c.open(StudentGrid, rows) }

func (c *Controller) OpenGradeGrid(rows []grid.Row) { c.open(GradeGrid, rows) }

// Open shows the panel for kind.
func (c *Controller) Open(kind grid.Kind, rows []grid.Row) { c.open(StateFor(kind), rows) }

func (c *Controller) open(target State, rows []grid.Row) {
	kind, _ := target.Kind()
	if c.state == target {
		c.grid.Hydrate(kind, rows)
		return
	}
	if c.state != Closed {
		c.record(c.state, SlideOut)
		c.grid.Clear()
	}
	// Rows land before the panel is marked visible.
	c.grid.Hydrate(kind, rows)
	c.state = target
	c.shifted = true
	c.record(target, SlideIn)
}

// Close hides the open panel and restores the conversation in the same step.
func (c *Controller) Close() {
	if c.state == Closed {
		return
	}
	c.record(c.state, SlideOut)
	c.state = Closed
	c.shifted = false
	c.grid.Clear()
}

// Reload re-hydrates when kind is the open panel and reports whether it did.
func (c *Controller) Reload(kind grid.Kind, rows []grid.Row) bool {
	open, ok := c.state.Kind()
	if !ok || open != kind {
		return false
	}
	filter := c.grid.Filter()
	c.grid.Hydrate(kind, rows)
	if filter != "" {
		c.grid.SetFilter(filter)
	}
	return true
}

func (c *Controller) record(panel State, slide Slide) {
	c.moves++
	c.transitions = append(c.transitions, Transition{Panel: panel, Slide: slide})
	if len(c.transitions) > maxTransitions {
		c.transitions = c.transitions[len(c.transitions)-maxTransitions:]
	}
}
