// Package desk is the view-model behind the terminal front end. It owns the
// conversation log, the panel state and the editable grid, and drives the
// gateway on the user's behalf.
//
// Phase methods (BeginPrompt, PrepareSubmit, FinishSubmit, ...) mutate state
// and must run on the UI goroutine; the network calls between them may run
// anywhere. Prompt, Refresh, SubmitChanges and DeleteRow chain the phases
// synchronously.
package desk

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/srjmnh/student-ai/internal/convo"
	"github.com/srjmnh/student-ai/internal/gateway"
	"github.com/srjmnh/student-ai/internal/grid"
	"github.com/srjmnh/student-ai/internal/notify"
	"github.com/srjmnh/student-ai/internal/panel"
	"github.com/srjmnh/student-ai/internal/records"
	"github.com/srjmnh/student-ai/internal/reply"
)

// ErrBusy is returned while a submission is still in flight.
var ErrBusy = errors.New("a submission is already in flight")

// Service is the part of the gateway the desk drives.
type Service interface {
	Interpret(ctx context.Context, prompt string) (reply.Outcome, error)
	SubmitBulkUpdate(ctx context.Context, diffs []records.RecordDiff) error
	DeleteEntity(ctx context.Context, kind grid.Kind, id grid.Identity, confirm gateway.Confirmer) error
	UpdateGradeUnits(ctx context.Context, units []records.GradeUnit) gateway.BatchResult
	Refresh(ctx context.Context, kind grid.Kind) ([]grid.Row, error)
	UniqueGroupings(ctx context.Context) ([]string, error)
}

// ActivityRecorder keeps the audit trail of record mutations and views.
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, action, details string) error
}

type Desk struct {
	svc      Service
	notify   notify.Sink
	log      *convo.Log
	grid     *grid.Grid
	panel    *panel.Controller
	pending  *grid.Diff
	activity ActivityRecorder
	logger   *zap.Logger
}

type Option func(*Desk)

// WithLog replaces the default empty conversation log.
func WithLog(log *convo.Log) Option {
	return func(d *Desk) {
		if log != nil {
			d.log = log
		}
	}
}

func WithActivity(rec ActivityRecorder) Option {
	return func(d *Desk) { d.activity = rec }
}

func WithLogger(logger *zap.Logger) Option {
	return func(d *Desk) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func New(svc Service, sink notify.Sink, opts ...Option) *Desk {
	if sink == nil {
		sink = notify.Discard
	}
	g := grid.New()
	d := &Desk{
		svc:    svc,
		notify: sink,
		log:    convo.NewLog(),
		grid:   g,
		panel:  panel.NewController(g),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Desk) Log() *convo.Log { return d.log }

func (d *Desk) Panel() *panel.Controller { return d.panel }

func (d *Desk) Grid() *grid.Grid { return d.grid }

// Pending returns the diff set in flight, if any.
func (d *Desk) Pending() (grid.Diff, bool) {
	if d.pending == nil {
		return grid.Diff{}, false
	}
	return *d.pending, true
}

// BeginPrompt records the user's prompt. Blank prompts are ignored.
func (d *Desk) BeginPrompt(text string) (string, bool) {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return "", false
	}
	d.log.Append(convo.User, clean)
	return clean, true
}

// ApplyReply routes a classified reply to the log or a panel.
func (d *Desk) ApplyReply(out reply.Outcome) {
	if out.Kind == reply.PlainMessage {
		d.log.Append(convo.System, out.Text)
		return
	}
	kind := grid.Students
	if out.Kind == reply.GradeTable {
		kind = grid.Grades
	}
	rows := d.rowsFor(kind, out)
	d.panel.Open(kind, rows)
	d.log.Append(convo.System, fmt.Sprintf("Opened the %s table with %d %s.", kind, len(rows), plural(len(rows), "row", "rows")))
	d.recordActivity("VIEW_"+strings.ToUpper(kind.String()), fmt.Sprintf("%d rows", len(rows)))
}

func (d *Desk) rowsFor(kind grid.Kind, out reply.Outcome) []grid.Row {
	switch {
	case len(out.Grades) > 0:
		return grid.GradeRows(out.Grades)
	case len(out.Students) > 0:
		return grid.StudentRows(out.Students)
	case out.Markup == "":
		return nil
	}
	table, err := reply.ParseTable(out.Markup)
	if err != nil {
		d.logger.Debug("reply markup holds no table", zap.Error(err))
		return nil
	}
	return grid.RowsFromTable(kind, table)
}

// FailPrompt puts a rejected prompt's message into the conversation. The
// gateway has already notified.
func (d *Desk) FailPrompt(err error) {
	var remote *gateway.RemoteError
	if errors.As(err, &remote) {
		d.log.Append(convo.System, "Error: "+remote.Message)
	}
}

// ShowPanel opens the panel for kind with freshly fetched rows.
func (d *Desk) ShowPanel(kind grid.Kind, rows []grid.Row) {
	d.panel.Open(kind, rows)
	d.recordActivity("VIEW_"+strings.ToUpper(kind.String()), fmt.Sprintf("%d rows", len(rows)))
}

// ApplyRefresh re-hydrates the grid when kind is still the open panel.
func (d *Desk) ApplyRefresh(kind grid.Kind, rows []grid.Row) bool {
	return d.panel.Reload(kind, rows)
}

func (d *Desk) ClosePanel() { d.panel.Close() }

func (d *Desk) SetFilter(classDivision string) { d.grid.SetFilter(classDivision) }

// AddRow appends a blank row to the open grid.
func (d *Desk) AddRow() (int, bool) {
	if !d.panel.Visible() {
		notify.Warnf(d.notify, "Open a table before adding rows.")
		return -1, false
	}
	return d.grid.AddBlankRow(), true
}

// EditCell stores a typed value. Identity cells of hydrated rows refuse edits.
func (d *Desk) EditCell(row int, key, value string) error {
	err := d.grid.SetCell(row, key, value)
	if errors.Is(err, grid.ErrReadOnlyCell) {
		notify.Warnf(d.notify, "Identity cells cannot be edited.")
	}
	return err
}

// PrepareSubmit extracts the diff and marks it pending. An empty diff means
// there is nothing valid to send and nothing was marked.
func (d *Desk) PrepareSubmit() (grid.Diff, error) {
	if d.pending != nil {
		notify.Warnf(d.notify, "Wait for the current submission to finish.")
		return grid.Diff{}, ErrBusy
	}
	if !d.panel.Visible() {
		return grid.Diff{}, nil
	}
	diff := d.grid.ExtractDiff()
	for _, w := range diff.Warnings {
		notify.Warnf(d.notify, "%s", w.String())
	}
	if diff.Empty() {
		if len(diff.Warnings) == 0 {
			notify.Infof(d.notify, "Nothing to submit.")
		}
		return diff, nil
	}
	d.pending = &diff
	return diff, nil
}

// FinishSubmit closes a bulk round-trip and reports whether the open panel
// should be refreshed. Failed submissions leave every grid edit in place.
func (d *Desk) FinishSubmit(err error) bool {
	diff := d.pending
	d.pending = nil
	if err != nil {
		return false
	}
	d.grid.MarkSubmitted()
	if diff != nil {
		d.recordActivity("UPDATE_STUDENT", fmt.Sprintf("bulk update of %d rows", len(diff.Records)))
	}
	return true
}

// FinishGradeSubmit closes a grade batch. The panel is always refreshed once,
// whatever the individual units returned.
func (d *Desk) FinishGradeSubmit(result gateway.BatchResult) bool {
	d.pending = nil
	if result.Succeeded() > 0 {
		d.grid.MarkSubmitted()
		d.recordActivity("UPDATE_GRADE", fmt.Sprintf("%d of %d term units saved", result.Succeeded(), len(result.Units)))
	}
	return true
}

// PrepareDelete resolves and gates the row about to be deleted.
func (d *Desk) PrepareDelete(row int) (grid.Identity, error) {
	r, ok := d.grid.Row(row)
	if !ok {
		return grid.Identity{}, grid.ErrRowNotFound
	}
	id := r.Identity(d.grid.Kind())
	if err := d.grid.CheckDeletable(id); err != nil {
		if errors.Is(err, grid.ErrPlaceholderRow) {
			notify.Warnf(d.notify, "The header row cannot be deleted.")
		}
		return id, err
	}
	return id, nil
}

// FinishDelete removes the row only once the records service confirmed it.
func (d *Desk) FinishDelete(id grid.Identity, err error) {
	if err != nil {
		return
	}
	kind := d.grid.Kind()
	d.grid.Remove(id)
	action := "DELETE_STUDENT"
	if kind == grid.Grades {
		action = "DELETE_GRADE"
	}
	d.recordActivity(action, "deleted "+id.String())
}

func (d *Desk) Prompt(ctx context.Context, text string) error {
	clean, ok := d.BeginPrompt(text)
	if !ok {
		return nil
	}
	out, err := d.svc.Interpret(ctx, clean)
	if err != nil {
		d.FailPrompt(err)
		return err
	}
	d.ApplyReply(out)
	return nil
}

// Open fetches rows of kind and shows them.
func (d *Desk) Open(ctx context.Context, kind grid.Kind) error {
	rows, err := d.svc.Refresh(ctx, kind)
	if err != nil {
		return err
	}
	d.ShowPanel(kind, rows)
	return nil
}

func (d *Desk) Refresh(ctx context.Context, kind grid.Kind) error {
	rows, err := d.svc.Refresh(ctx, kind)
	if err != nil {
		return err
	}
	d.ApplyRefresh(kind, rows)
	return nil
}

// SubmitChanges validates and pushes the open grid, then refreshes it.
func (d *Desk) SubmitChanges(ctx context.Context) error {
	diff, err := d.PrepareSubmit()
	if err != nil || diff.Empty() {
		return err
	}
	if diff.Kind == grid.Grades {
		result := d.svc.UpdateGradeUnits(ctx, diff.Units)
		if d.FinishGradeSubmit(result) {
			return d.Refresh(ctx, grid.Grades)
		}
		return nil
	}
	err = d.svc.SubmitBulkUpdate(ctx, diff.Records)
	if d.FinishSubmit(err) {
		return d.Refresh(ctx, grid.Students)
	}
	return err
}

// DeleteRow deletes row after confirm agrees.
func (d *Desk) DeleteRow(ctx context.Context, row int, confirm gateway.Confirmer) error {
	id, err := d.PrepareDelete(row)
	if err != nil {
		return err
	}
	err = d.svc.DeleteEntity(ctx, d.grid.Kind(), id, confirm)
	d.FinishDelete(id, err)
	return err
}

// Groupings lists class-division values for the filter.
func (d *Desk) Groupings(ctx context.Context) ([]string, error) {
	return d.svc.UniqueGroupings(ctx)
}

func (d *Desk) recordActivity(action, details string) {
	if d.activity == nil {
		return
	}
	if err := d.activity.RecordActivity(context.Background(), action, details); err != nil {
		d.logger.Warn("record activity", zap.String("action", action), zap.Error(err))
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
