package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/srjmnh/student-ai/internal/config"
	"github.com/srjmnh/student-ai/internal/convo"
	"github.com/srjmnh/student-ai/internal/desk"
	"github.com/srjmnh/student-ai/internal/gateway"
	"github.com/srjmnh/student-ai/internal/grid"
	"github.com/srjmnh/student-ai/internal/notify"
	"github.com/srjmnh/student-ai/internal/reply"
)

type focusArea int

const (
	focusInput focusArea = iota
	focusGrid
)

type model struct {
	cfg     config.Config
	desk    *desk.Desk
	svc     desk.Service
	notices *notify.Center
	logger  *zap.Logger

	statusLine      string
	logs            []string
	inflight        bool
	quitConfirm     bool
	confirmDelete   *pendingDelete
	showHelp        bool
	focus           focusArea
	cursorRow       int
	cursorCol       int
	editing         bool
	editRow         int
	editID          grid.Identity
	slideFrame      int
	transitionsSeen int

	width  int
	height int

	input     textinput.Model
	cellInput textinput.Model
	timeline  viewport.Model
	spinner   spinner.Model
	markdown  *glamour.TermRenderer
	rendered  map[int]string

	// markdownWrap is the word-wrap width markdown was built for.
	markdownWrap int

	theme uiTheme
}

func newModel(cfg config.Config, d *desk.Desk, svc desk.Service, notices *notify.Center, logger *zap.Logger) model {
	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 4000
	input.Placeholder = "Ask about students or grades. /help lists commands."
	input.Focus()

	cellInput := textinput.New()
	cellInput.Prompt = ""
	cellInput.CharLimit = 2000

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1"))

	timeline := viewport.New(0, 0)
	timeline.MouseWheelEnabled = true
	timeline.MouseWheelDelta = 4

	if logger == nil {
		logger = zap.NewNop()
	}
	return model{
		cfg:             cfg,
		desk:            d,
		svc:             svc,
		notices:         notices,
		logger:          logger,
		statusLine:      "ready",
		logs:            []string{},
		slideFrame:      slideFrames,
		transitionsSeen: d.Panel().Moves(),
		input:           input,
		cellInput:       cellInput,
		timeline:        timeline,
		spinner:         sp,
		rendered:        map[int]string{},
		theme:           newTheme(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, noticeTick())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case interpretDoneMsg:
		m.inflight = false
		if msg.err != nil {
			m.desk.FailPrompt(msg.err)
			m.logError(msg.err)
		} else {
			if msg.out.Kind != reply.PlainMessage {
				m.cancelEdit()
			}
			m.desk.ApplyReply(msg.out)
			m.statusLine = "reply: " + msg.out.Kind.String()
			m.appendLog(m.statusLine)
		}
		cmds = append(cmds, m.panelMoved())
		m.renderPanes()
	case openDoneMsg:
		m.inflight = false
		if msg.err != nil {
			m.logError(msg.err)
			break
		}
		m.cancelEdit()
		m.desk.ShowPanel(msg.kind, msg.rows)
		m.cursorRow, m.cursorCol = 0, 0
		m.statusLine = fmt.Sprintf("%s table · %d rows", msg.kind, len(msg.rows))
		cmds = append(cmds, m.panelMoved())
		m.renderPanes()
	case refreshDoneMsg:
		m.inflight = false
		if msg.err != nil {
			m.logError(msg.err)
			break
		}
		if m.desk.ApplyRefresh(msg.kind, msg.rows) {
			m.clampCursor()
			m.retargetEdit()
			m.statusLine = fmt.Sprintf("%s refreshed · %d rows", msg.kind, len(msg.rows))
		}
	case submitDoneMsg:
		m.inflight = false
		var refresh bool
		if msg.kind == grid.Grades {
			refresh = m.desk.FinishGradeSubmit(msg.batch)
			m.statusLine = fmt.Sprintf("grades: %d saved · %d failed", msg.batch.Succeeded(), msg.batch.Failed())
			m.appendLog(m.statusLine)
		} else {
			refresh = m.desk.FinishSubmit(msg.err)
			if msg.err != nil {
				m.logError(msg.err)
			} else {
				m.statusLine = "student records saved"
				m.appendLog(m.statusLine)
			}
		}
		if refresh {
			m.inflight = true
			cmds = append(cmds, m.refreshCmd(msg.kind))
		}
	case deleteDoneMsg:
		m.inflight = false
		m.desk.FinishDelete(msg.id, msg.err)
		switch {
		case errors.Is(msg.err, gateway.ErrDeclined):
			m.statusLine = "delete cancelled"
		case msg.err != nil:
			m.logError(msg.err)
		default:
			m.statusLine = "deleted " + msg.id.String()
			m.appendLog(m.statusLine)
		}
		m.clampCursor()
	case groupsDoneMsg:
		m.inflight = false
		if msg.err != nil {
			m.logError(msg.err)
			break
		}
		text := "No class divisions recorded yet."
		if len(msg.groups) > 0 {
			text = "Class divisions: " + strings.Join(msg.groups, ", ")
		}
		m.desk.Log().Append(convo.System, text)
		m.renderPanes()
	case slideTickMsg:
		if m.slideFrame < slideFrames {
			m.slideFrame++
			m.renderPanes()
			if m.slideFrame < slideFrames {
				cmds = append(cmds, slideTick())
			} else {
				m.rebuildMarkdown()
				m.renderPanes()
			}
		}
	case noticeTickMsg:
		cmds = append(cmds, noticeTick())
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.renderPanes()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case tea.MouseMsg:
		if m.quitConfirm || m.confirmDelete != nil {
			break
		}
		var cmd tea.Cmd
		m.timeline, cmd = m.timeline.Update(msg)
		cmds = append(cmds, cmd)
	case tea.KeyMsg:
		cmd := m.handleKey(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, keys.Quit) {
		return tea.Quit
	}
	if m.quitConfirm {
		switch msg.String() {
		case "y", "Y", "enter":
			return tea.Quit
		case "n", "N", "esc":
			m.quitConfirm = false
			m.statusLine = "quit canceled"
		}
		return nil
	}
	if m.confirmDelete != nil {
		pd := *m.confirmDelete
		switch msg.String() {
		case "y", "Y":
			m.confirmDelete = nil
			m.inflight = true
			m.statusLine = "deleting " + pd.id.String() + "..."
			return m.deleteCmd(pd, true)
		case "n", "N", "esc":
			m.confirmDelete = nil
			return m.deleteCmd(pd, false)
		}
		return nil
	}
	if m.showHelp {
		if msg.String() == "esc" || msg.String() == "q" || msg.String() == "?" {
			m.showHelp = false
			m.renderPanes()
		}
		return nil
	}
	if m.editing {
		return m.handleEditKey(msg)
	}

	switch {
	case key.Matches(msg, keys.Focus):
		if m.desk.Panel().Visible() && m.focus == focusInput {
			m.focus = focusGrid
			m.input.Blur()
		} else {
			m.focus = focusInput
			m.input.Focus()
		}
		return nil
	case key.Matches(msg, keys.Cancel):
		if m.desk.Panel().Visible() {
			m.desk.ClosePanel()
			m.focus = focusInput
			m.input.Focus()
			m.statusLine = "panel closed"
			cmd := m.panelMoved()
			m.renderPanes()
			return cmd
		}
		m.beginQuitConfirm()
		return nil
	case key.Matches(msg, keys.Submit):
		return m.submit()
	case key.Matches(msg, keys.Refresh):
		kind, open := m.desk.Panel().State().Kind()
		if !open || m.inflight {
			return nil
		}
		m.inflight = true
		m.statusLine = "refreshing " + kind.String() + "..."
		return m.refreshCmd(kind)
	case key.Matches(msg, keys.AddRow):
		if i, ok := m.desk.AddRow(); ok {
			m.focus = focusGrid
			m.input.Blur()
			m.moveCursorTo(i)
			m.cursorCol = 0
			m.statusLine = "row added · fill the identity and required cells, then ctrl+s"
		}
		return nil
	}

	if m.focus == focusGrid {
		return m.handleGridKey(msg)
	}

	switch msg.String() {
	case "enter":
		if m.inflight {
			m.statusLine = "still waiting for the records service"
			return nil
		}
		raw := strings.TrimSpace(m.input.Value())
		if raw == "" {
			return nil
		}
		m.input.SetValue("")
		if strings.HasPrefix(raw, "/") {
			return m.handleSlash(raw)
		}
		prompt, ok := m.desk.BeginPrompt(raw)
		if !ok {
			return nil
		}
		m.inflight = true
		m.statusLine = "thinking..."
		m.renderPanes()
		return m.interpretCmd(prompt)
	case "pgup", "ctrl+b":
		m.timeline.LineUp(8)
		return nil
	case "pgdown", "ctrl+f":
		m.timeline.LineDown(8)
		return nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *model) handleGridKey(msg tea.KeyMsg) tea.Cmd {
	g := m.desk.Grid()
	columns := grid.Columns(g.Kind())
	switch {
	case key.Matches(msg, keys.Up):
		m.cursorRow = maxInt(0, m.cursorRow-1)
	case key.Matches(msg, keys.Down):
		m.cursorRow = minInt(maxInt(0, len(g.Visible())-1), m.cursorRow+1)
	case key.Matches(msg, keys.Left):
		m.cursorCol = maxInt(0, m.cursorCol-1)
	case key.Matches(msg, keys.Right):
		m.cursorCol = minInt(len(columns)-1, m.cursorCol+1)
	case key.Matches(msg, keys.Edit):
		row, ok := m.selectedRow()
		if !ok {
			return nil
		}
		col := columns[m.cursorCol]
		if !g.Editable(row, col.Key) {
			notify.Warnf(m.notices, "%s is read-only for saved rows.", col.Label)
			return nil
		}
		current, _ := g.Row(row)
		m.editRow = row
		m.editID = current.Identity(g.Kind())
		m.cellInput.SetValue(current.Cell(col.Key))
		m.cellInput.CursorEnd()
		m.cellInput.Width = maxInt(8, col.Width)
		m.cellInput.Focus()
		m.editing = true
		m.statusLine = "editing " + col.Label + " · enter commit · esc cancel"
	case key.Matches(msg, keys.Delete):
		if m.inflight {
			return nil
		}
		row, ok := m.selectedRow()
		if !ok {
			return nil
		}
		id, err := m.desk.PrepareDelete(row)
		if err != nil {
			m.statusLine = "delete rejected: " + err.Error()
			return nil
		}
		m.confirmDelete = &pendingDelete{kind: g.Kind(), id: id, prompt: gateway.DeletePrompt(g.Kind(), id)}
	}
	return nil
}

func (m *model) handleEditKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "enter":
		row, ok := m.editTarget()
		col := grid.Columns(m.desk.Grid().Kind())[m.cursorCol]
		if !ok {
			notify.Warnf(m.notices, "The edited row is gone; the edit was discarded.")
			m.statusLine = "edit discarded"
		} else if err := m.desk.EditCell(row, col.Key, m.cellInput.Value()); err != nil {
			m.logError(err)
		} else {
			m.statusLine = col.Label + " updated · ctrl+s to submit"
		}
		m.editing = false
		m.cellInput.Blur()
		return nil
	case "esc":
		m.cancelEdit()
		return nil
	}
	var cmd tea.Cmd
	m.cellInput, cmd = m.cellInput.Update(msg)
	return cmd
}

// editTarget resolves the row being edited. Rows are matched by identity so
// a reload that reorders the grid cannot redirect the edit.
func (m *model) editTarget() (int, bool) {
	g := m.desk.Grid()
	if r, ok := g.Row(m.editRow); ok && r.Identity(g.Kind()) == m.editID {
		return m.editRow, true
	}
	if grid.IsPlaceholder(g.Kind(), m.editID) {
		return -1, false
	}
	return g.Find(m.editID)
}

// retargetEdit follows the edited row after the grid was re-hydrated.
func (m *model) retargetEdit() {
	if !m.editing {
		return
	}
	row, ok := m.editTarget()
	if !ok {
		m.cancelEdit()
		notify.Warnf(m.notices, "The edited row is gone; the edit was discarded.")
		return
	}
	m.editRow = row
	m.moveCursorTo(row)
}

func (m *model) cancelEdit() {
	if !m.editing {
		return
	}
	m.editing = false
	m.cellInput.Blur()
	m.statusLine = "edit cancelled"
}

func (m *model) submit() tea.Cmd {
	if m.inflight {
		m.statusLine = "still waiting for the records service"
		return nil
	}
	diff, err := m.desk.PrepareSubmit()
	if err != nil {
		m.logError(err)
		return nil
	}
	if diff.Empty() {
		m.statusLine = "nothing to submit"
		return nil
	}
	m.inflight = true
	if diff.Kind == grid.Grades {
		m.statusLine = fmt.Sprintf("sending %d term units...", len(diff.Units))
	} else {
		m.statusLine = fmt.Sprintf("sending %d student rows...", len(diff.Records))
	}
	return m.pushDiffCmd(diff)
}

func (m *model) handleSlash(raw string) tea.Cmd {
	parts := strings.Fields(strings.TrimSpace(raw))
	if len(parts) == 0 {
		return nil
	}
	cmd := strings.ToLower(parts[0])
	tail := parts[1:]
	switch cmd {
	case "/help":
		m.showHelp = true
		return nil
	case "/quit", "/exit":
		m.beginQuitConfirm()
		return nil
	case "/students", "/grades":
		kind := grid.Students
		if cmd == "/grades" {
			kind = grid.Grades
		}
		m.inflight = true
		m.statusLine = "loading " + kind.String() + "..."
		return m.openCmd(kind)
	case "/close":
		m.desk.ClosePanel()
		m.focus = focusInput
		m.input.Focus()
		c := m.panelMoved()
		m.renderPanes()
		return c
	case "/groups":
		m.inflight = true
		return m.groupsCmd()
	case "/filter":
		value := strings.Join(tail, " ")
		m.desk.SetFilter(value)
		m.cursorRow = 0
		if strings.TrimSpace(value) == "" {
			m.statusLine = "filter cleared"
		} else {
			m.statusLine = "filter: " + value
		}
		return nil
	default:
		m.statusLine = "unknown command: " + cmd
		return nil
	}
}

// panelMoved starts the slide animation when the panel changed state since
// the last check.
func (m *model) panelMoved() tea.Cmd {
	seen := m.desk.Panel().Moves()
	if seen == m.transitionsSeen {
		return nil
	}
	m.transitionsSeen = seen
	m.slideFrame = 0
	if !m.desk.Panel().Visible() {
		m.focus = focusInput
		m.input.Focus()
	}
	m.cursorRow, m.cursorCol = 0, 0
	return slideTick()
}

func (m *model) selectedRow() (int, bool) {
	visible := m.desk.Grid().Visible()
	if m.cursorRow < 0 || m.cursorRow >= len(visible) {
		return -1, false
	}
	return visible[m.cursorRow], true
}

func (m *model) moveCursorTo(index int) {
	for i, row := range m.desk.Grid().Visible() {
		if row == index {
			m.cursorRow = i
			return
		}
	}
}

func (m *model) clampCursor() {
	visible := len(m.desk.Grid().Visible())
	m.cursorRow = clampInt(m.cursorRow, 0, maxInt(0, visible-1))
	m.cursorCol = clampInt(m.cursorCol, 0, len(grid.Columns(m.desk.Grid().Kind()))-1)
}

func (m *model) beginQuitConfirm() {
	m.quitConfirm = true
	m.statusLine = "quit?"
}

func (m *model) appendLog(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	m.logs = append(m.logs, fmt.Sprintf("%s %s", time.Now().Format("15:04:05"), compactSingleLine(trimmed, 220)))
	if len(m.logs) > 50 {
		m.logs = m.logs[len(m.logs)-50:]
	}
}

func (m *model) logError(err error) {
	if err == nil {
		return
	}
	m.appendLog("error: " + err.Error())
	m.statusLine = "error: " + compactSingleLine(err.Error(), 160)
	m.logger.Debug("ui error", zap.Error(err))
}
