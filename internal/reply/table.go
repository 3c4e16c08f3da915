package reply

import (
	"errors"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoTable is returned when markup holds no <table>.
var ErrNoTable = errors.New("reply holds no table")

// Table is a parsed HTML table. Headers are normalized column keys; a row
// shorter than the headers is padded with empty cells.
type Table struct {
	Headers []string
	Rows    [][]string
}

var (
	nonKeyChars = regexp.MustCompile(`[^a-z0-9]+`)
	termSuffix  = regexp.MustCompile(`^term_(\d)$`)
)

// ParseTable reads the first table in markup.
func ParseTable(markup string) (Table, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return Table{}, err
	}
	table := doc.Find("table").First()
	if table.Length() == 0 {
		return Table{}, ErrNoTable
	}

	var out Table
	table.Find("th").Each(func(_ int, s *goquery.Selection) {
		if key, ok := s.Attr("data-field"); ok && strings.TrimSpace(key) != "" {
			out.Headers = append(out.Headers, NormalizeHeader(key))
			return
		}
		out.Headers = append(out.Headers, NormalizeHeader(s.Text()))
	})

	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return
		}
		row := make([]string, 0, len(out.Headers))
		cells.Each(func(_ int, td *goquery.Selection) {
			row = append(row, cellValue(td))
		})
		for len(row) < len(out.Headers) {
			row = append(row, "")
		}
		out.Rows = append(out.Rows, row)
	})

	// Tables rendered without <th> carry their header as the first row.
	if len(out.Headers) == 0 && len(out.Rows) > 0 {
		for _, label := range out.Rows[0] {
			out.Headers = append(out.Headers, NormalizeHeader(label))
		}
	}
	return out, nil
}

func cellValue(td *goquery.Selection) string {
	if input := td.Find("input, textarea").First(); input.Length() > 0 {
		if v, ok := input.Attr("value"); ok {
			return strings.TrimSpace(v)
		}
		return strings.TrimSpace(input.Text())
	}
	return strings.TrimSpace(td.Text())
}

// NormalizeHeader turns a display label into a column key:
// "Guardian Name" -> "guardian_name", "Term 1" -> "term1".
func NormalizeHeader(label string) string {
	key := nonKeyChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(label)), "_")
	key = strings.Trim(key, "_")
	if m := termSuffix.FindStringSubmatch(key); m != nil {
		return "term" + m[1]
	}
	switch key {
	case "student_name":
		return "name"
	case "subject":
		return "subject_name"
	}
	return key
}

// Records maps each row to header keys.
func (t Table) Records() []map[string]string {
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]string, len(t.Headers))
		for i, key := range t.Headers {
			if key == "" || i >= len(row) {
				continue
			}
			rec[key] = row[i]
		}
		out = append(out, rec)
	}
	return out
}
