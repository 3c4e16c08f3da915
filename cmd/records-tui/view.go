package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/srjmnh/student-ai/internal/convo"
	"github.com/srjmnh/student-ai/internal/grid"
	"github.com/srjmnh/student-ai/internal/panel"
)

const (
	conversationMinWidth = 28
	noticeRows           = 3
)

func (m model) View() string {
	header := m.renderHeader()
	content := m.renderContent()
	notices := m.renderNotices()
	input := m.renderInput()
	footer := m.renderFooter()
	out := lipgloss.JoinVertical(lipgloss.Left, header, content, notices, input, footer)
	if m.confirmDelete != nil {
		out = m.renderConfirmModal(
			"DELETE ROW?",
			m.confirmDelete.prompt,
			"The records service is asked only after you answer yes.",
			"[Y] Delete",
			"[N / Esc] Keep",
		)
	}
	if m.quitConfirm {
		out = m.renderConfirmModal(
			"LEAVE THE DESK?",
			"Are you sure you want to quit?",
			"Unsubmitted grid edits are discarded.",
			"[Y / Enter] Quit",
			"[N / Esc] Return",
		)
	}
	return m.theme.root.Render(out)
}

func (m *model) contentSize() (int, int) {
	return maxInt(40, m.width-4), maxInt(8, m.height-14)
}

// conversationWidth interpolates between the full and the shifted width while
// a slide is running.
func (m *model) conversationWidth() int {
	full, _ := m.contentSize()
	shifted := maxInt(conversationMinWidth, full*34/100)
	progress := float64(m.slideFrame) / float64(slideFrames)
	if m.desk.Panel().ConversationShifted() {
		return full - int(float64(full-shifted)*progress)
	}
	if m.desk.Panel().Moves() == 0 {
		return full
	}
	return shifted + int(float64(full-shifted)*progress)
}

func (m *model) renderHeader() string {
	state := m.desk.Panel().State()
	tabs := []struct {
		state panel.State
		label string
	}{
		{panel.Closed, "Chat"},
		{panel.StudentGrid, "Students"},
		{panel.GradeGrid, "Grades"},
	}
	segments := make([]string, 0, len(tabs)+1)
	for _, tab := range tabs {
		style := m.theme.tabInactive
		if tab.state == state {
			style = m.theme.tabActive
		}
		segments = append(segments, style.Render(tab.label))
	}
	meta := fmt.Sprintf(" Service: %s", nullCoalesce(m.cfg.ServiceURL, "n/a"))
	if f := m.desk.Grid().Filter(); f != "" && state == panel.StudentGrid {
		meta += " · filter " + f
	}
	segments = append(segments, m.theme.helpText.Render(meta))
	joined := lipgloss.JoinHorizontal(lipgloss.Left, segments...)
	width, _ := m.contentSize()
	return m.theme.header.Width(width).Render(joined)
}

func (m *model) renderContent() string {
	width, height := m.contentSize()
	if m.showHelp {
		return m.theme.panel.Width(width).Height(height).Render(
			m.theme.panelTitle.Render("Records Desk Help") + "\n" + m.renderHelp(),
		)
	}

	convoWidth := m.conversationWidth()
	chat := m.theme.panel.Width(convoWidth).Height(height).Render(
		m.theme.panelTitle.Render("Conversation") + "\n" + m.timeline.View(),
	)
	gridWidth := width - convoWidth - 1
	if gridWidth < 12 {
		return chat
	}
	style := m.theme.panel
	if m.focus == focusGrid {
		style = m.theme.panelFocused
	}
	title := "Students"
	if m.desk.Grid().Kind() == grid.Grades {
		title = "Grades"
	}
	body := ""
	if m.desk.Panel().Visible() && m.slideFrame >= slideFrames {
		body = m.renderGrid(gridWidth-4, height-3)
	}
	side := style.Width(gridWidth).Height(height).Render(m.theme.panelTitle.Render(title) + "\n" + body)
	return lipgloss.JoinHorizontal(lipgloss.Top, chat, side)
}

func (m *model) renderGrid(width, height int) string {
	g := m.desk.Grid()
	columns := grid.Columns(g.Kind())
	visible := g.Visible()
	if len(visible) == 0 {
		return m.theme.helpText.Render("No rows. ctrl+n adds one.")
	}

	first := firstColumn(columns, m.cursorCol, width)
	var b strings.Builder
	used := 0
	last := first
	for i := first; i < len(columns); i++ {
		w := columns[i].Width
		if used > 0 && used+w+1 > width {
			break
		}
		if used > 0 {
			b.WriteString(" ")
		}
		b.WriteString(m.theme.gridHeader.Render(fitCell(columns[i].Label, w)))
		used += w + 1
		last = i
	}

	bodyRows := maxInt(1, height-2)
	offset := 0
	if m.cursorRow >= bodyRows {
		offset = m.cursorRow - bodyRows + 1
	}
	for pos := offset; pos < len(visible) && pos < offset+bodyRows; pos++ {
		row, _ := g.Row(visible[pos])
		b.WriteString("\n")
		for i := first; i <= last; i++ {
			col := columns[i]
			if i > first {
				b.WriteString(" ")
			}
			style := m.theme.cell
			if col.Identity && !g.Editable(visible[pos], col.Key) {
				style = m.theme.cellIdentity
			}
			text := row.Cell(col.Key)
			if pos == m.cursorRow && i == m.cursorCol && m.focus == focusGrid {
				style = m.theme.cellCursor
				if m.editing {
					style = m.theme.cellEditing
					text = m.cellInput.Value()
				}
			}
			b.WriteString(style.Render(fitCell(text, col.Width)))
		}
	}
	footer := fmt.Sprintf("row %d/%d", minInt(m.cursorRow+1, len(visible)), len(visible))
	if hidden := g.Len() - len(visible); hidden > 0 {
		footer += fmt.Sprintf(" · %d filtered out", hidden)
	}
	b.WriteString("\n" + m.theme.helpText.Render(footer))
	return b.String()
}

// firstColumn picks the leftmost column so that the cursor column fits.
func firstColumn(columns []grid.Column, cursor, width int) int {
	first := 0
	for first < cursor {
		used := 0
		for i := first; i <= cursor; i++ {
			used += columns[i].Width + 1
		}
		if used <= width+1 {
			break
		}
		first++
	}
	return first
}

func (m *model) renderNotices() string {
	width, _ := m.contentSize()
	active := m.notices.Active()
	if len(active) > noticeRows {
		active = active[len(active)-noticeRows:]
	}
	lines := make([]string, 0, noticeRows)
	for _, n := range active {
		style, ok := m.theme.notice[n.Level]
		if !ok {
			style = m.theme.helpText
		}
		lines = append(lines, style.Render(compactSingleLine(n.Text, width-4)))
	}
	for len(lines) < noticeRows {
		lines = append(lines, "")
	}
	return lipgloss.NewStyle().Width(width).Render(strings.Join(lines, "\n"))
}

func (m *model) renderInput() string {
	width, _ := m.contentSize()
	inputView := m.input.View()
	if m.focus == focusGrid {
		inputView = m.theme.helpText.Render("Grid focused. Tab returns to the prompt.")
	}
	if m.inflight {
		inputView = m.spinner.View() + " working... " + inputView
	}
	return m.theme.inputPanel.Width(width).Render(inputView)
}

func (m *model) renderFooter() string {
	width, _ := m.contentSize()
	statusStyle := m.theme.status
	lower := strings.ToLower(m.statusLine)
	if strings.Contains(lower, "failed") || strings.Contains(lower, "error") || strings.Contains(lower, "rejected") {
		statusStyle = m.theme.errorStatus
	}
	line := statusStyle.Render(compactSingleLine(m.statusLine, 180))
	var hints string
	switch {
	case m.editing:
		hints = "enter commit · esc cancel"
	case m.focus == focusGrid:
		hints = hintLine(keys.Up, keys.Down, keys.Left, keys.Right, keys.Edit, keys.AddRow, keys.Delete, keys.Submit, keys.Refresh, keys.Focus, keys.Cancel)
	default:
		hints = hintLine(keys.Send, keys.Focus, keys.Submit, keys.Refresh, keys.Cancel, keys.Quit)
	}
	return m.theme.footer.Width(width).Render(line + "\n" + m.theme.helpText.Render(hints))
}

func (m *model) renderConfirmModal(title, subtitle, detail, yes, no string) string {
	canvasWidth := maxInt(40, m.width-4)
	canvasHeight := maxInt(12, m.height-4)
	modalWidth := clampInt(canvasWidth*56/100, 42, 78)
	if modalWidth > canvasWidth-2 {
		modalWidth = canvasWidth - 2
	}
	if modalWidth < 32 {
		modalWidth = 32
	}
	accent := m.theme.modalAccent.Render(strings.Repeat("=", modalWidth-6))
	body := strings.Join([]string{
		m.theme.modalTitle.Render(title),
		m.theme.helpText.Render(subtitle),
		"",
		accent,
		m.theme.helpText.Render(detail),
		accent,
		"",
		m.theme.modalPick.Render(yes) + "    " + m.theme.helpText.Render(no),
	}, "\n")
	frame := m.theme.modalFrame.Width(modalWidth).Render(body)
	return lipgloss.Place(
		canvasWidth,
		canvasHeight,
		lipgloss.Center,
		lipgloss.Center,
		frame,
		lipgloss.WithWhitespaceBackground(canvasColor),
	)
}

func (m *model) renderHelp() string {
	lines := []string{
		"Keys",
		"- Enter: send prompt",
		"- Tab: switch focus between prompt and grid",
		"- Arrows or h/j/k/l: move the grid cursor",
		"- Enter on a cell: edit (Enter commit, Esc cancel)",
		"- Ctrl+N: add a blank row",
		"- d or Delete: delete the row under the cursor (asks first)",
		"- Ctrl+S: submit changes · Ctrl+R: refresh the open table",
		"- Esc: close the panel, or ask to quit",
		"- Ctrl+C: quit",
		"",
		"Slash Commands",
		"- /students, /grades: open a table",
		"- /close: close the open table",
		"- /groups: list class divisions",
		"- /filter [class-division]: filter the student table (empty clears)",
		"- /help, /quit",
		"",
		"Esc closes this help.",
	}
	return m.theme.helpText.Render(strings.Join(lines, "\n"))
}

func (m *model) resize() {
	width, _ := m.contentSize()
	m.input.Width = maxInt(20, width-6)
	m.rebuildMarkdown()
}

// rebuildMarkdown wraps system replies at the current conversation width.
// Cached renders were wrapped for the old width and are dropped.
func (m *model) rebuildMarkdown() {
	m.rendered = map[int]string{}
	m.markdown = nil
	m.markdownWrap = 0
	if !m.cfg.Markdown {
		return
	}
	wrap := maxInt(20, m.conversationWidth()-6)
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		m.logger.Debug("markdown renderer unavailable", zap.Error(err))
		return
	}
	m.markdown = renderer
	m.markdownWrap = wrap
}

func (m *model) renderPanes() {
	prevOffset := m.timeline.YOffset
	prevAtBottom := m.timeline.AtBottom()
	_, height := m.contentSize()
	m.timeline.Width = maxInt(20, m.conversationWidth()-4)
	m.timeline.Height = maxInt(5, height-3)
	m.timeline.SetContent(m.renderTimeline())
	if prevAtBottom {
		m.timeline.GotoBottom()
	} else {
		m.timeline.SetYOffset(prevOffset)
	}
}

func (m *model) renderTimeline() string {
	msgs := m.desk.Log().Messages()
	if len(msgs) == 0 {
		return "No messages yet. Ask for the student list to get started."
	}
	var b strings.Builder
	for _, msg := range msgs {
		style, ok := m.theme.origin[msg.Origin]
		if !ok {
			style = m.theme.helpText
		}
		b.WriteString(style.Render(fmt.Sprintf("%s [%s]", msg.At.Format("15:04:05"), msg.Origin)))
		b.WriteString("\n")
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

func (m *model) renderMessage(msg convo.Message) string {
	width := maxInt(20, m.timeline.Width-2)
	if msg.Origin != convo.System || m.markdown == nil {
		return wrapText(msg.Text, width)
	}
	if cached, ok := m.rendered[msg.Seq]; ok {
		return cached
	}
	out, err := m.markdown.Render(msg.Text)
	if err != nil {
		return wrapText(msg.Text, width)
	}
	out = strings.Trim(out, "\n")
	m.rendered[msg.Seq] = out
	return out
}
