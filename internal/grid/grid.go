// Package grid is the editable table behind a data panel. It tracks the rows
// the user edits, gates deletion of the header row, and extracts validated
// diffs for submission.
package grid

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/srjmnh/student-ai/internal/records"
	"github.com/srjmnh/student-ai/internal/reply"
)

var (
	ErrPlaceholderRow = errors.New("the header row cannot be deleted")
	ErrRowNotFound    = errors.New("row not found")
	ErrReadOnlyCell   = errors.New("identity cells are read-only")
	ErrUnknownColumn  = errors.New("unknown column")
)

// Kind selects the column set.
type Kind int

const (
	Students Kind = iota
	Grades
)

func (k Kind) String() string {
	if k == Grades {
		return "grades"
	}
	return "students"
}

// Column describes one grid column. Label doubles as the placeholder value
// a blank row carries in identity cells.
type Column struct {
	Key      string
	Label    string
	Identity bool
	Width    int
}

var studentColumns = []Column{
	{Key: "id", Label: "ID", Identity: true, Width: 12},
	{Key: "name", Label: "Name", Width: 18},
	{Key: "age", Label: "Age", Width: 5},
	{Key: "class", Label: "Class", Width: 6},
	{Key: "division", Label: "Division", Width: 8},
	{Key: "address", Label: "Address", Width: 20},
	{Key: "phone", Label: "Phone", Width: 12},
	{Key: "guardian_name", Label: "Guardian Name", Width: 16},
	{Key: "guardian_phone", Label: "Guardian Phone", Width: 14},
	{Key: "attendance", Label: "Attendance", Width: 10},
	{Key: "grades", Label: "Grades", Width: 24},
}

var gradeColumns = []Column{
	{Key: "subject_id", Label: "Subject ID", Identity: true, Width: 12},
	{Key: "subject_name", Label: "Subject", Width: 16},
	{Key: "student_id", Label: "Student ID", Identity: true, Width: 12},
	{Key: "term1", Label: "Term 1", Width: 7},
	{Key: "term2", Label: "Term 2", Width: 7},
	{Key: "term3", Label: "Term 3", Width: 7},
}

// Columns returns the columns of kind. The slice must not be modified.
func Columns(kind Kind) []Column {
	if kind == Grades {
		return gradeColumns
	}
	return studentColumns
}

func column(kind Kind, key string) (Column, bool) {
	for _, col := range Columns(kind) {
		if col.Key == key {
			return col, true
		}
	}
	return Column{}, false
}

// Identity correlates a row with its remote record. Subject is empty for
// student rows.
type Identity struct {
	Subject string
	Student string
}

func (id Identity) String() string {
	if id.Subject == "" {
		return id.Student
	}
	return id.Subject + "+" + id.Student
}

// Row is one editable row. Cells are keyed by column key.
type Row struct {
	Cells map[string]string
	// Fresh rows were added locally; their identity cells stay editable.
	Fresh    bool
	original map[string]string
}

// NewRow builds a hydrated row. The given values also become the fallback
// for numeric cells that are later edited into garbage.
func NewRow(cells map[string]string) Row {
	r := Row{Cells: make(map[string]string, len(cells)), original: make(map[string]string, len(cells))}
	for k, v := range cells {
		r.Cells[k] = v
		r.original[k] = v
	}
	return r
}

func (r Row) Cell(key string) string { return r.Cells[key] }

func (r Row) clone() Row {
	out := Row{Cells: make(map[string]string, len(r.Cells)), Fresh: r.Fresh}
	for k, v := range r.Cells {
		out.Cells[k] = v
	}
	if r.original != nil {
		out.original = make(map[string]string, len(r.original))
		for k, v := range r.original {
			out.original[k] = v
		}
	}
	return out
}

// Identity reads the identity cells of r for kind.
func (r Row) Identity(kind Kind) Identity {
	if kind == Grades {
		return Identity{
			Subject: strings.TrimSpace(r.Cells["subject_id"]),
			Student: strings.TrimSpace(r.Cells["student_id"]),
		}
	}
	return Identity{Student: strings.TrimSpace(r.Cells["id"])}
}

// IsPlaceholder reports whether id is empty or holds a header label.
func IsPlaceholder(kind Kind, id Identity) bool {
	if kind == Grades {
		return placeholderValue(kind, "subject_id", id.Subject) || placeholderValue(kind, "student_id", id.Student)
	}
	return placeholderValue(kind, "id", id.Student)
}

func placeholderValue(kind Kind, key, value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return true
	}
	col, _ := column(kind, key)
	return strings.EqualFold(value, col.Label) || strings.EqualFold(value, col.Key) || strings.EqualFold(value, "id")
}

// Grid holds the rows of whichever panel is open. It is not safe for
// concurrent use.
type Grid struct {
	kind   Kind
	rows   []Row
	filter string
}

func New() *Grid { return &Grid{} }

func (g *Grid) Kind() Kind { return g.kind }

func (g *Grid) Len() int { return len(g.rows) }

// Hydrate replaces every row. An empty rows slice leaves an empty body.
func (g *Grid) Hydrate(kind Kind, rows []Row) {
	g.kind = kind
	g.filter = ""
	g.rows = make([]Row, 0, len(rows))
	for _, row := range rows {
		g.rows = append(g.rows, normalizeRow(kind, row))
	}
}

func normalizeRow(kind Kind, row Row) Row {
	out := Row{Cells: make(map[string]string, len(Columns(kind))), Fresh: row.Fresh, original: map[string]string{}}
	for _, col := range Columns(kind) {
		out.Cells[col.Key] = row.Cells[col.Key]
		if row.original != nil {
			out.original[col.Key] = row.original[col.Key]
		}
	}
	return out
}

// Clear drops all rows; used when the panel closes.
func (g *Grid) Clear() {
	g.rows = nil
	g.filter = ""
}

// Rows returns a copy of every row.
func (g *Grid) Rows() []Row {
	out := make([]Row, len(g.rows))
	for i, row := range g.rows {
		out[i] = row.clone()
	}
	return out
}

// Row returns a copy of row i.
func (g *Grid) Row(i int) (Row, bool) {
	if i < 0 || i >= len(g.rows) {
		return Row{}, false
	}
	return g.rows[i].clone(), true
}

// AddBlankRow appends a row whose identity cells hold placeholder labels,
// and returns its index.
func (g *Grid) AddBlankRow() int {
	row := Row{Cells: map[string]string{}, Fresh: true, original: map[string]string{}}
	for _, col := range Columns(g.kind) {
		if col.Identity {
			row.Cells[col.Key] = col.Label
			continue
		}
		row.Cells[col.Key] = ""
	}
	g.rows = append(g.rows, row)
	return len(g.rows) - 1
}

// SetCell stores value as typed; trimming and validation wait for submission.
func (g *Grid) SetCell(i int, key, value string) error {
	if i < 0 || i >= len(g.rows) {
		return fmt.Errorf("%w: index %d", ErrRowNotFound, i)
	}
	col, ok := column(g.kind, key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, key)
	}
	if col.Identity && !g.rows[i].Fresh {
		return fmt.Errorf("%w: %s", ErrReadOnlyCell, col.Label)
	}
	g.rows[i].Cells[key] = value
	return nil
}

// Editable reports whether cell key of row i may be changed.
func (g *Grid) Editable(i int, key string) bool {
	if i < 0 || i >= len(g.rows) {
		return false
	}
	col, ok := column(g.kind, key)
	if !ok {
		return false
	}
	return !col.Identity || g.rows[i].Fresh
}

// Find returns the index of the first row with identity id.
func (g *Grid) Find(id Identity) (int, bool) {
	for i, row := range g.rows {
		if row.Identity(g.kind) == id {
			return i, true
		}
	}
	return -1, false
}

// CheckDeletable gates deletion before any confirmation is asked for.
func (g *Grid) CheckDeletable(id Identity) error {
	if IsPlaceholder(g.kind, id) {
		return ErrPlaceholderRow
	}
	if _, ok := g.Find(id); !ok {
		return fmt.Errorf("%w: %s", ErrRowNotFound, id)
	}
	return nil
}

// Remove drops the row with identity id. Callers remove only after the
// records service confirmed the deletion.
func (g *Grid) Remove(id Identity) bool {
	i, ok := g.Find(id)
	if !ok {
		return false
	}
	g.rows = append(g.rows[:i], g.rows[i+1:]...)
	return true
}

// MarkSubmitted locks identity cells of fresh rows once they were sent.
func (g *Grid) MarkSubmitted() {
	for i := range g.rows {
		if g.rows[i].Fresh && !IsPlaceholder(g.kind, g.rows[i].Identity(g.kind)) {
			g.rows[i].Fresh = false
		}
	}
}

var filterChars = regexp.MustCompile(`[^a-z0-9]+`)

func normalizeGroup(value string) string {
	return filterChars.ReplaceAllString(strings.ToLower(value), "")
}

// SetFilter restricts Visible to student rows whose class and division match
// classDivision ("5-B", "5B" and "5 b" are equivalent). An empty value clears it.
func (g *Grid) SetFilter(classDivision string) {
	g.filter = normalizeGroup(classDivision)
}

func (g *Grid) Filter() string { return g.filter }

// Visible returns indexes of rows that pass the filter.
func (g *Grid) Visible() []int {
	out := make([]int, 0, len(g.rows))
	for i, row := range g.rows {
		if g.filter != "" && g.kind == Students && !row.Fresh {
			group := normalizeGroup(row.Cells["class"] + row.Cells["division"])
			if group != g.filter {
				continue
			}
		}
		out = append(out, i)
	}
	return out
}

// StudentRows projects records into grid rows.
func StudentRows(students []records.Student) []Row {
	rows := make([]Row, 0, len(students))
	for _, s := range students {
		rows = append(rows, NewRow(map[string]string{
			"id":             s.ID,
			"name":           s.Name,
			"age":            optionalInt(int(s.Age)),
			"class":          s.Class,
			"division":       s.Division,
			"address":        s.Address,
			"phone":          s.Phone,
			"guardian_name":  s.GuardianName,
			"guardian_phone": s.GuardianPhone,
			"attendance":     strconv.Itoa(int(s.Attendance)),
			"grades":         records.FormatGrades(s.Grades),
		}))
	}
	return rows
}

func GradeRows(entries []records.GradeEntry) []Row {
	rows := make([]Row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, NewRow(map[string]string{
			"subject_id":   e.SubjectID,
			"subject_name": e.SubjectName,
			"student_id":   e.StudentID,
			"term1":        strconv.Itoa(int(e.Term1)),
			"term2":        strconv.Itoa(int(e.Term2)),
			"term3":        strconv.Itoa(int(e.Term3)),
		}))
	}
	return rows
}

// studentAliases maps header keys that student tables use for their
// identity column. Grade tables keep student_id as is.
var studentAliases = map[string]string{
	"student_id": "id",
	"student":    "id",
	"sid":        "id",
}

// RowsFromTable projects parsed markup into rows of kind. A header row
// rendered with <td> cells comes through as a placeholder row.
func RowsFromTable(kind Kind, table reply.Table) []Row {
	recs := table.Records()
	rows := make([]Row, 0, len(recs))
	for _, rec := range recs {
		header := headerEcho(rec)
		if kind == Students {
			rec = resolveStudentAliases(rec)
		}
		if header {
			for _, col := range Columns(kind) {
				if col.Identity {
					rec[col.Key] = col.Label
				}
			}
		}
		rows = append(rows, NewRow(rec))
	}
	return rows
}

func resolveStudentAliases(rec map[string]string) map[string]string {
	out := make(map[string]string, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	for alias, key := range studentAliases {
		v, ok := out[alias]
		if !ok {
			continue
		}
		if strings.TrimSpace(out[key]) == "" {
			out[key] = v
		}
		delete(out, alias)
	}
	return out
}

// headerEcho reports whether every filled cell of rec repeats its own
// column header.
func headerEcho(rec map[string]string) bool {
	filled := 0
	for key, v := range rec {
		if strings.TrimSpace(v) == "" {
			continue
		}
		filled++
		if reply.NormalizeHeader(v) != key {
			return false
		}
	}
	return filled > 0
}

func optionalInt(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}
