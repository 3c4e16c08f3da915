package main

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/srjmnh/student-ai/internal/config"
	"github.com/srjmnh/student-ai/internal/convo"
	"github.com/srjmnh/student-ai/internal/desk"
	"github.com/srjmnh/student-ai/internal/gateway"
	"github.com/srjmnh/student-ai/internal/grid"
	"github.com/srjmnh/student-ai/internal/notify"
	"github.com/srjmnh/student-ai/internal/records"
	"github.com/srjmnh/student-ai/internal/reply"
)

type stubService struct {
	deleted []grid.Identity
	bulk    [][]records.RecordDiff
}

func (s *stubService) Interpret(ctx context.Context, prompt string) (reply.Outcome, error) {
	return reply.Outcome{Kind: reply.PlainMessage, Text: "ok"}, nil
}

func (s *stubService) SubmitBulkUpdate(ctx context.Context, diffs []records.RecordDiff) error {
	s.bulk = append(s.bulk, diffs)
	return nil
}

func (s *stubService) DeleteEntity(ctx context.Context, kind grid.Kind, id grid.Identity, confirm gateway.Confirmer) error {
	if confirm == nil || !confirm.Confirm(gateway.DeletePrompt(kind, id)) {
		return gateway.ErrDeclined
	}
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubService) UpdateGradeUnits(ctx context.Context, units []records.GradeUnit) gateway.BatchResult {
	return gateway.BatchResult{}
}

func (s *stubService) Refresh(ctx context.Context, kind grid.Kind) ([]grid.Row, error) {
	return nil, nil
}

func (s *stubService) UniqueGroupings(ctx context.Context) ([]string, error) {
	return []string{"10-A"}, nil
}

func newTestModel(t *testing.T) (*model, *stubService, *notify.Center) {
	t.Helper()
	svc := &stubService{}
	notices := notify.NewCenter()
	d := desk.New(svc, notices)
	cfg := config.Default()
	cfg.Markdown = false
	m := newModel(cfg, d, svc, notices, nil)
	return &m, svc, notices
}

func openStudents(m *model) {
	m.desk.ShowPanel(grid.Students, grid.StudentRows([]records.Student{
		{ID: "s1", Name: "Asha", Class: "10", Division: "A"},
		{ID: "s2", Name: "Ravi", Class: "9", Division: "B"},
	}))
	m.focus = focusGrid
	m.input.Blur()
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func lastNotice(t *testing.T, c *notify.Center) notify.Notice {
	t.Helper()
	n, ok := c.Latest()
	if !ok {
		t.Fatalf("expected a notice")
	}
	return n
}

func TestSlashFilterNormalizesGroup(t *testing.T) {
	m, _, _ := newTestModel(t)
	openStudents(m)
	m.handleSlash("/filter 10 A")
	if got := m.desk.Grid().Filter(); got != "10a" {
		t.Fatalf("expected filter 10a, got %q", got)
	}
	if got := len(m.desk.Grid().Visible()); got != 1 {
		t.Fatalf("expected 1 visible row, got %d", got)
	}
	m.handleSlash("/filter")
	if m.statusLine != "filter cleared" {
		t.Fatalf("expected filter cleared status, got %q", m.statusLine)
	}
}

func TestUnknownSlashCommand(t *testing.T) {
	m, _, _ := newTestModel(t)
	if cmd := m.handleSlash("/bogus now"); cmd != nil {
		t.Fatalf("expected no command for unknown slash command")
	}
	if m.statusLine != "unknown command: /bogus" {
		t.Fatalf("unexpected status: %q", m.statusLine)
	}
}

func TestHelpTogglesWithEsc(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.handleSlash("/help")
	if !m.showHelp {
		t.Fatalf("expected help to be shown")
	}
	m.handleKey(tea.KeyMsg{Type: tea.KeyEsc})
	if m.showHelp {
		t.Fatalf("expected esc to hide help")
	}
	if m.quitConfirm {
		t.Fatalf("esc on help must not open the quit prompt")
	}
}

func TestEscWithClosedPanelAsksToQuit(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.handleKey(tea.KeyMsg{Type: tea.KeyEsc})
	if !m.quitConfirm {
		t.Fatalf("expected quit confirmation")
	}
	if cmd := m.handleKey(runes("n")); cmd != nil {
		t.Fatalf("expected declining quit to return no command")
	}
	if m.quitConfirm {
		t.Fatalf("expected quit confirmation to close")
	}
}

func TestEscClosesOpenPanelFirst(t *testing.T) {
	m, _, _ := newTestModel(t)
	openStudents(m)
	m.handleKey(tea.KeyMsg{Type: tea.KeyEsc})
	if m.desk.Panel().Visible() {
		t.Fatalf("expected esc to close the panel")
	}
	if m.quitConfirm {
		t.Fatalf("expected no quit prompt while closing the panel")
	}
	if m.focus != focusInput {
		t.Fatalf("expected focus to return to the input")
	}
}

func TestDeleteModalConfirmedRemovesRow(t *testing.T) {
	m, svc, _ := newTestModel(t)
	openStudents(m)
	m.handleKey(runes("d"))
	if m.confirmDelete == nil {
		t.Fatalf("expected delete confirmation modal")
	}
	if !strings.Contains(m.confirmDelete.prompt, "s1") {
		t.Fatalf("expected prompt to name s1, got %q", m.confirmDelete.prompt)
	}
	cmd := m.handleKey(runes("y"))
	if cmd == nil {
		t.Fatalf("expected a delete command")
	}
	msg, ok := cmd().(deleteDoneMsg)
	if !ok {
		t.Fatalf("expected deleteDoneMsg")
	}
	next, _ := m.Update(msg)
	updated := next.(model)
	if len(svc.deleted) != 1 || svc.deleted[0].Student != "s1" {
		t.Fatalf("expected s1 deleted remotely, got %+v", svc.deleted)
	}
	if updated.desk.Grid().Len() != 1 {
		t.Fatalf("expected one row left, got %d", updated.desk.Grid().Len())
	}
}

func TestDeleteModalDeclinedKeepsRow(t *testing.T) {
	m, svc, _ := newTestModel(t)
	openStudents(m)
	m.handleKey(runes("d"))
	cmd := m.handleKey(runes("n"))
	if cmd == nil {
		t.Fatalf("expected the declined answer to reach the service")
	}
	msg := cmd().(deleteDoneMsg)
	next, _ := m.Update(msg)
	updated := next.(model)
	if len(svc.deleted) != 0 {
		t.Fatalf("expected no remote delete, got %+v", svc.deleted)
	}
	if updated.desk.Grid().Len() != 2 {
		t.Fatalf("expected both rows kept, got %d", updated.desk.Grid().Len())
	}
	if updated.statusLine != "delete cancelled" {
		t.Fatalf("unexpected status: %q", updated.statusLine)
	}
}

func TestEditCellFlow(t *testing.T) {
	m, _, _ := newTestModel(t)
	openStudents(m)
	m.handleKey(runes("l"))
	m.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
	if !m.editing {
		t.Fatalf("expected edit mode on the name column")
	}
	if got := m.cellInput.Value(); got != "Asha" {
		t.Fatalf("expected editor seeded with Asha, got %q", got)
	}
	m.cellInput.SetValue("Asha K")
	m.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
	if m.editing {
		t.Fatalf("expected edit mode to end")
	}
	row, _ := m.desk.Grid().Row(0)
	if row.Cell("name") != "Asha K" {
		t.Fatalf("expected name updated, got %q", row.Cell("name"))
	}
}

func TestEditIdentityOfSavedRowWarns(t *testing.T) {
	m, _, notices := newTestModel(t)
	openStudents(m)
	m.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
	if m.editing {
		t.Fatalf("expected identity cell to refuse editing")
	}
	if n := lastNotice(t, notices); n.Level != notify.Warning {
		t.Fatalf("expected warning notice, got %v", n.Level)
	}
}

func TestSubmitEmptyGridIsNoop(t *testing.T) {
	m, svc, notices := newTestModel(t)
	m.desk.ShowPanel(grid.Students, nil)
	if cmd := m.submit(); cmd != nil {
		t.Fatalf("expected no command for an empty grid")
	}
	if m.inflight {
		t.Fatalf("expected nothing in flight")
	}
	if n := lastNotice(t, notices); n.Text != "Nothing to submit." {
		t.Fatalf("unexpected notice: %q", n.Text)
	}
	if len(svc.bulk) != 0 {
		t.Fatalf("expected no bulk update, got %d", len(svc.bulk))
	}
}

func TestSubmitSendsStudentDiff(t *testing.T) {
	m, svc, _ := newTestModel(t)
	openStudents(m)
	cmd := m.submit()
	if cmd == nil {
		t.Fatalf("expected a submit command")
	}
	if !m.inflight {
		t.Fatalf("expected submission to be in flight")
	}
	msg, ok := cmd().(submitDoneMsg)
	if !ok {
		t.Fatalf("expected submitDoneMsg")
	}
	if len(svc.bulk) != 1 || len(svc.bulk[0]) != 2 {
		t.Fatalf("expected one bulk update with two rows, got %+v", svc.bulk)
	}
	next, refresh := m.Update(msg)
	if refresh == nil {
		t.Fatalf("expected a refresh after a successful submit")
	}
	if _, pending := next.(model).desk.Pending(); pending {
		t.Fatalf("expected pending diff cleared")
	}
}

func TestViewRendersConversationAndGrid(t *testing.T) {
	m, _, _ := newTestModel(t)
	openStudents(m)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	view := next.(model).View()
	if !strings.Contains(view, "Conversation") {
		t.Fatalf("expected conversation panel in view")
	}
	if !strings.Contains(view, "Asha") {
		t.Fatalf("expected grid rows in view")
	}
}

func TestWrapText(t *testing.T) {
	got := wrapText("one two three four", 9)
	if got != "one two\nthree\nfour" {
		t.Fatalf("unexpected wrap: %q", got)
	}
}

func TestTruncateIsRuneSafe(t *testing.T) {
	if got := truncate("héllo wörld", 8); got != "héllo..." {
		t.Fatalf("unexpected truncate: %q", got)
	}
	if got := truncate("abc", 0); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestFitCellPadsAndTruncates(t *testing.T) {
	if got := fitCell("ab", 4); got != "ab  " {
		t.Fatalf("expected padded cell, got %q", got)
	}
	if got := fitCell("abcdefgh", 6); got != "abc..." {
		t.Fatalf("expected truncated cell, got %q", got)
	}
}

func TestHintLine(t *testing.T) {
	got := hintLine(keys.Submit, keys.Quit)
	if got != "ctrl+s submit · ctrl+c quit" {
		t.Fatalf("unexpected hint line: %q", got)
	}
}

func TestEditFollowsRowAcrossReorderingRefresh(t *testing.T) {
	m, _, _ := newTestModel(t)
	openStudents(m)
	m.handleKey(runes("j"))
	m.handleKey(runes("l"))
	m.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
	if !m.editing {
		t.Fatalf("expected edit mode on Ravi's name")
	}
	m.cellInput.SetValue("Ravi K")

	reordered := grid.StudentRows([]records.Student{
		{ID: "s2", Name: "Ravi", Class: "9", Division: "B"},
		{ID: "s1", Name: "Asha", Class: "10", Division: "A"},
	})
	next, _ := m.Update(refreshDoneMsg{kind: grid.Students, rows: reordered})
	updated := next.(model)
	if !updated.editing {
		t.Fatalf("expected the edit to survive a refresh that keeps the row")
	}
	if updated.cursorRow != 0 {
		t.Fatalf("expected cursor to follow s2 to row 0, got %d", updated.cursorRow)
	}
	updated.handleKey(tea.KeyMsg{Type: tea.KeyEnter})

	names := map[string]string{}
	for _, row := range updated.desk.Grid().Rows() {
		names[row.Cell("id")] = row.Cell("name")
	}
	if names["s2"] != "Ravi K" {
		t.Fatalf("expected s2 renamed, got %q", names["s2"])
	}
	if names["s1"] != "Asha" {
		t.Fatalf("expected s1 untouched, got %q", names["s1"])
	}
}

func TestEditDiscardedWhenRowDisappears(t *testing.T) {
	m, _, notices := newTestModel(t)
	openStudents(m)
	m.handleKey(runes("j"))
	m.handleKey(runes("l"))
	m.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
	m.cellInput.SetValue("Ravi K")

	only := grid.StudentRows([]records.Student{{ID: "s1", Name: "Asha", Class: "10", Division: "A"}})
	next, _ := m.Update(refreshDoneMsg{kind: grid.Students, rows: only})
	updated := next.(model)
	if updated.editing {
		t.Fatalf("expected the edit to be cancelled")
	}
	row, _ := updated.desk.Grid().Row(0)
	if row.Cell("name") != "Asha" {
		t.Fatalf("expected s1 untouched, got %q", row.Cell("name"))
	}
	if n := lastNotice(t, notices); n.Level != notify.Warning {
		t.Fatalf("expected a warning, got %v", n.Level)
	}
}

func TestOpeningAnotherTableCancelsEdit(t *testing.T) {
	m, _, _ := newTestModel(t)
	openStudents(m)
	m.handleKey(runes("l"))
	m.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
	next, _ := m.Update(openDoneMsg{kind: grid.Grades, rows: grid.GradeRows([]records.GradeEntry{{SubjectID: "S1", StudentID: "s1"}})})
	if next.(model).editing {
		t.Fatalf("expected edit cancelled when another table opens")
	}
}

func TestMarkdownRewrapsAfterPanelSlide(t *testing.T) {
	svc := &stubService{}
	notices := notify.NewCenter()
	d := desk.New(svc, notices)
	cfg := config.Default()
	cfg.Markdown = true
	start := newModel(cfg, d, svc, notices, nil)

	next, _ := start.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m := next.(model)
	wide := m.markdownWrap
	if wide == 0 {
		t.Skip("markdown renderer unavailable")
	}
	d.Log().Append(convo.System, "**hello**")
	m.renderPanes()
	if len(m.rendered) != 1 {
		t.Fatalf("expected one cached render, got %d", len(m.rendered))
	}

	d.ShowPanel(grid.Students, nil)
	m.panelMoved()
	for i := 0; i < slideFrames; i++ {
		n, _ := m.Update(slideTickMsg{})
		m = n.(model)
	}
	if m.markdownWrap >= wide {
		t.Fatalf("expected narrower wrap than %d, got %d", wide, m.markdownWrap)
	}
	if want := maxInt(20, m.conversationWidth()-6); m.markdownWrap != want {
		t.Fatalf("expected wrap %d, got %d", want, m.markdownWrap)
	}
}
