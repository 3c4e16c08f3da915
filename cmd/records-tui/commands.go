package main

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/srjmnh/student-ai/internal/gateway"
	"github.com/srjmnh/student-ai/internal/grid"
	"github.com/srjmnh/student-ai/internal/reply"
)

const (
	slideFrames   = 6
	slideInterval = 30 * time.Millisecond
	noticeRefresh = 500 * time.Millisecond
)

type interpretDoneMsg struct {
	out reply.Outcome
	err error
}

type openDoneMsg struct {
	kind grid.Kind
	rows []grid.Row
	err  error
}

type refreshDoneMsg struct {
	kind grid.Kind
	rows []grid.Row
	err  error
}

type submitDoneMsg struct {
	kind  grid.Kind
	err   error
	batch gateway.BatchResult
}

type deleteDoneMsg struct {
	id  grid.Identity
	err error
}

type groupsDoneMsg struct {
	groups []string
	err    error
}

type slideTickMsg struct{}

type noticeTickMsg time.Time

type pendingDelete struct {
	kind   grid.Kind
	id     grid.Identity
	prompt string
}

// Commands below run off the UI goroutine. They only talk to the gateway;
// the desk is touched again when their message reaches Update.

func (m model) interpretCmd(prompt string) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		out, err := svc.Interpret(context.Background(), prompt)
		return interpretDoneMsg{out: out, err: err}
	}
}

func (m model) openCmd(kind grid.Kind) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		rows, err := svc.Refresh(context.Background(), kind)
		return openDoneMsg{kind: kind, rows: rows, err: err}
	}
}

func (m model) refreshCmd(kind grid.Kind) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		rows, err := svc.Refresh(context.Background(), kind)
		return refreshDoneMsg{kind: kind, rows: rows, err: err}
	}
}

func (m model) pushDiffCmd(diff grid.Diff) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx := context.Background()
		if diff.Kind == grid.Grades {
			return submitDoneMsg{kind: grid.Grades, batch: svc.UpdateGradeUnits(ctx, diff.Units)}
		}
		return submitDoneMsg{kind: grid.Students, err: svc.SubmitBulkUpdate(ctx, diff.Records)}
	}
}

// deleteCmd carries the modal answer to the gateway, which checks it again
// before issuing any request.
func (m model) deleteCmd(pd pendingDelete, confirmed bool) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		confirm := gateway.ConfirmFunc(func(string) bool { return confirmed })
		err := svc.DeleteEntity(context.Background(), pd.kind, pd.id, confirm)
		return deleteDoneMsg{id: pd.id, err: err}
	}
}

func (m model) groupsCmd() tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		groups, err := svc.UniqueGroupings(context.Background())
		return groupsDoneMsg{groups: groups, err: err}
	}
}

func slideTick() tea.Cmd {
	return tea.Tick(slideInterval, func(time.Time) tea.Msg { return slideTickMsg{} })
}

func noticeTick() tea.Cmd {
	return tea.Tick(noticeRefresh, func(t time.Time) tea.Msg { return noticeTickMsg(t) })
}
