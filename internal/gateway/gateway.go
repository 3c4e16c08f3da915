// Package gateway turns grid mutations into calls against the records
// service and reports every remote outcome to the notifier.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/srjmnh/student-ai/internal/grid"
	"github.com/srjmnh/student-ai/internal/notify"
	"github.com/srjmnh/student-ai/internal/records"
	"github.com/srjmnh/student-ai/internal/reply"
)

// ErrDeclined is returned when a destructive call was not confirmed.
var ErrDeclined = errors.New("action not confirmed")

const connectionMessage = "Could not reach the records service. Check the connection and try again."

// Confirmer gates destructive calls. Confirm is asked before any request is
// made; false or a nil Confirmer stops the call.
type Confirmer interface {
	Confirm(prompt string) bool
}

type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

type Gateway struct {
	client      Client
	notify      notify.Sink
	logger      *zap.Logger
	concurrency int
}

type Option func(*Gateway)

func WithLogger(logger *zap.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithGradeConcurrency bounds how many term units are in flight at once.
func WithGradeConcurrency(n int) Option {
	return func(g *Gateway) {
		if n < 1 {
			n = 1
		}
		g.concurrency = n
	}
}

func New(client Client, sink notify.Sink, opts ...Option) *Gateway {
	if sink == nil {
		sink = notify.Discard
	}
	g := &Gateway{client: client, notify: sink, logger: zap.NewNop(), concurrency: len(records.Terms)}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Interpret sends a prompt and classifies the reply.
func (g *Gateway) Interpret(ctx context.Context, prompt string) (reply.Outcome, error) {
	start := time.Now()
	env, err := g.client.InterpretPrompt(ctx, prompt)
	if err == nil && env.Error != "" {
		err = &RemoteError{Op: "interpret", Message: env.Error}
	}
	g.observe("interpret", start, err)
	if err != nil {
		g.report(err)
		return reply.Outcome{}, err
	}
	return reply.Classify(env), nil
}

// SubmitBulkUpdate sends the whole diff set in one call.
func (g *Gateway) SubmitBulkUpdate(ctx context.Context, diffs []records.RecordDiff) error {
	if len(diffs) == 0 {
		return nil
	}
	start := time.Now()
	err := g.client.BulkUpdateRecords(ctx, diffs)
	g.observe("bulk_update", start, err, zap.Int("rows", len(diffs)))
	if err != nil {
		g.report(err)
		return err
	}
	notify.Successf(g.notify, "Updated %d student %s.", len(diffs), plural(len(diffs), "record", "records"))
	return nil
}

// DeleteEntity deletes one student record or grade entry after confirmation.
func (g *Gateway) DeleteEntity(ctx context.Context, kind grid.Kind, id grid.Identity, confirm Confirmer) error {
	if grid.IsPlaceholder(kind, id) {
		notify.Warnf(g.notify, "The header row cannot be deleted.")
		return grid.ErrPlaceholderRow
	}
	if confirm == nil || !confirm.Confirm(DeletePrompt(kind, id)) {
		notify.Infof(g.notify, "Deletion of %s cancelled.", id)
		return ErrDeclined
	}

	start := time.Now()
	var (
		msg string
		err error
	)
	op := "delete_student"
	if kind == grid.Grades {
		op = "delete_grade"
		msg, err = g.client.DeleteGradeEntry(ctx, id.Subject, id.Student)
	} else {
		msg, err = g.client.DeleteRecord(ctx, id.Student)
	}
	g.observe(op, start, err, zap.String("identity", id.String()))
	if err != nil {
		g.report(err)
		return err
	}
	if msg == "" {
		msg = fmt.Sprintf("Deleted %s.", id)
	}
	notify.Successf(g.notify, "%s", msg)
	return nil
}

// DeletePrompt is the question shown before deleting id.
func DeletePrompt(kind grid.Kind, id grid.Identity) string {
	if kind == grid.Grades {
		return fmt.Sprintf("Delete grades of subject %s for student %s?", id.Subject, id.Student)
	}
	return fmt.Sprintf("Delete student %s?", id.Student)
}

// UnitOutcome is the result of one term unit.
type UnitOutcome struct {
	Unit    records.GradeUnit
	Message string
	Err     error
}

// BatchResult reports every unit of a grade batch in submission order.
type BatchResult struct {
	Units []UnitOutcome
}

func (b BatchResult) Succeeded() int {
	n := 0
	for _, u := range b.Units {
		if u.Err == nil {
			n++
		}
	}
	return n
}

func (b BatchResult) Failed() int { return len(b.Units) - b.Succeeded() }

// UpdateGradeUnits issues one independent call per unit. A failed unit never
// rolls back or cancels the others.
func (g *Gateway) UpdateGradeUnits(ctx context.Context, units []records.GradeUnit) BatchResult {
	result := BatchResult{Units: make([]UnitOutcome, len(units))}
	if len(units) == 0 {
		return result
	}

	var eg errgroup.Group
	eg.SetLimit(g.concurrency)
	for i, unit := range units {
		i, unit := i, unit
		eg.Go(func() error {
			start := time.Now()
			msg, err := g.client.UpdateGradeUnit(ctx, unit)
			g.observe("update_grade", start, err,
				zap.String("subject_id", unit.SubjectID),
				zap.String("student_id", unit.StudentID),
				zap.String("term", unit.Term),
			)
			result.Units[i] = UnitOutcome{Unit: unit, Message: msg, Err: err}
			return nil
		})
	}
	_ = eg.Wait()

	for _, out := range result.Units {
		if out.Err == nil {
			continue
		}
		u := out.Unit
		var remote *RemoteError
		switch {
		case errors.As(out.Err, &remote):
			notify.Dangerf(g.notify, "%s %s/%s: %s", u.Term, u.SubjectID, u.StudentID, remote.Message)
		case errors.Is(out.Err, ErrNetwork):
			notify.Dangerf(g.notify, "%s %s/%s: %s", u.Term, u.SubjectID, u.StudentID, connectionMessage)
		default:
			notify.Dangerf(g.notify, "%s %s/%s: %v", u.Term, u.SubjectID, u.StudentID, out.Err)
		}
	}
	if ok := result.Succeeded(); ok > 0 {
		notify.Successf(g.notify, "Saved %d of %d grade %s.", ok, len(units), plural(len(units), "update", "updates"))
	}
	return result
}

// Refresh re-reads every row of kind from the records service.
func (g *Gateway) Refresh(ctx context.Context, kind grid.Kind) ([]grid.Row, error) {
	start := time.Now()
	var (
		rows []grid.Row
		err  error
	)
	if kind == grid.Grades {
		var entries []records.GradeEntry
		entries, err = g.client.FetchGrades(ctx)
		rows = grid.GradeRows(entries)
	} else {
		var students []records.Student
		students, err = g.client.ListStudents(ctx)
		rows = grid.StudentRows(students)
	}
	g.observe("refresh_"+kind.String(), start, err, zap.Int("rows", len(rows)))
	if err != nil {
		g.report(err)
		return nil, err
	}
	return rows, nil
}

// UniqueGroupings lists the class-division values for filtering.
func (g *Gateway) UniqueGroupings(ctx context.Context) ([]string, error) {
	start := time.Now()
	groups, err := g.client.ListUniqueGroupings(ctx)
	g.observe("unique_class_divisions", start, err)
	if err != nil {
		g.report(err)
		return nil, err
	}
	return groups, nil
}

func (g *Gateway) report(err error) {
	var remote *RemoteError
	switch {
	case errors.As(err, &remote):
		notify.Dangerf(g.notify, "%s", remote.Message)
	case errors.Is(err, ErrNetwork):
		notify.Dangerf(g.notify, "%s", connectionMessage)
	default:
		notify.Dangerf(g.notify, "%v", err)
	}
}

func (g *Gateway) observe(op string, start time.Time, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("op", op), zap.Duration("duration", time.Since(start)))
	if err != nil {
		g.logger.Warn("records call failed", append(fields, zap.Error(err))...)
		return
	}
	g.logger.Info("records call", fields...)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
