package markup

import (
	"iter"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Semantic field names used by the shipped schemas.
const (
	FieldName                = "name"
	FieldCountry             = "country"
	FieldType                = "type"
	FieldStatus              = "status"
	FieldLocation            = "location"
	FieldCapacity            = "capacity"
	FieldGridConnection      = "grid_connection"
	FieldConstructionStart   = "construction_start"
	FieldCommercialOperation = "commercial_operation"
)

// Row is the transient output of the extractor: trimmed cell text keyed by
// semantic field name, int-kind fields parsed into Numbers, and an optional
// identifier captured from an embedded link (0 when absent).
type Row struct {
	Text    map[string]string
	Numbers map[string]int
	LinkID  int64
}

// Name returns the row's primary field.
func (r Row) Name() string { return r.Text[FieldName] }

// scanState is the extractor's position in the document. Transitions are
// guarded: a tag only moves the state when the current state admits it, so
// stray or mismatched tags degrade to skipped rows instead of errors.
type scanState int

const (
	stateIdle scanState = iota
	stateTable
	stateRow
	stateCell
)

// Extract scans the markup for the first table whose class attribute
// contains the schema's selector token and yields one Row per qualifying
// table row, in document order. The sequence is lazy and finite; each call
// restarts from the top of the document. Malformed markup never fails the
// scan.
func Extract(markup string, schema *Schema) iter.Seq[Row] {
	return func(yield func(Row) bool) {
		log := zap.L().With(zap.String("component", "markup"), zap.String("schema", schema.Name))
		tz := html.NewTokenizer(strings.NewReader(markup))

		state := stateIdle
		var (
			cur    Row
			cell   strings.Builder
			colIdx int
			nested int
		)

		for {
			tt := tz.Next()
			if tt == html.ErrorToken {
				return
			}
			tok := tz.Token()

			// Content of tables nested inside the target is not part of
			// any row; skip it wholesale.
			if nested > 0 {
				switch {
				case tt == html.StartTagToken && tok.Data == "table":
					nested++
				case tt == html.EndTagToken && tok.Data == "table":
					nested--
				}
				continue
			}

			switch tt {
			case html.StartTagToken:
				if state != stateIdle && tok.Data == "table" {
					nested++ // table nested inside the target, not a new target
					continue
				}
				switch state {
				case stateIdle:
					if tok.Data == "table" && classContains(tok, schema.Selector) {
						state = stateTable
					}
				case stateTable:
					if tok.Data == "tr" {
						state = stateRow
						colIdx = 0
						cur = Row{Text: map[string]string{}, Numbers: map[string]int{}}
					}
				case stateRow:
					switch tok.Data {
					case "td":
						state = stateCell
						cell.Reset()
					case "tr":
						// Row opened without the previous one closing:
						// the unterminated row is dropped.
						colIdx = 0
						cur = Row{Text: map[string]string{}, Numbers: map[string]int{}}
					}
				case stateCell:
					switch tok.Data {
					case "a":
						// Link inspection runs alongside text accumulation
						// and does not interrupt it.
						if schema.Link.re != nil {
							if id, ok := captureLinkID(tok, schema.Link); ok {
								cur.LinkID = id
							}
						}
					case "td":
						// Implicit close of the previous cell.
						recordCell(&cur, schema, colIdx, strings.TrimSpace(cell.String()))
						colIdx++
						cell.Reset()
					case "tr":
						// Unclosed cell and row; start over on a fresh row.
						state = stateRow
						colIdx = 0
						cur = Row{Text: map[string]string{}, Numbers: map[string]int{}}
					}
				}

			case html.TextToken:
				if state == stateCell {
					cell.WriteString(tok.Data)
				}

			case html.EndTagToken:
				switch tok.Data {
				case "td":
					if state != stateCell {
						continue
					}
					recordCell(&cur, schema, colIdx, strings.TrimSpace(cell.String()))
					colIdx++
					state = stateRow
				case "tr":
					if state == stateCell {
						// Unclosed final cell; record it before closing the row.
						recordCell(&cur, schema, colIdx, strings.TrimSpace(cell.String()))
						colIdx++
						state = stateRow
					}
					if state != stateRow {
						continue
					}
					state = stateTable
					if cur.Name() == "" {
						continue // header or malformed row, dropped silently
					}
					if colIdx != schema.Width {
						log.Warn("row width mismatch, dropping row",
							zap.String("name", cur.Name()),
							zap.Int("want", schema.Width),
							zap.Int("got", colIdx),
						)
						continue
					}
					if !yield(cur) {
						return
					}
				case "table":
					if state == stateIdle {
						continue
					}
					// The target table is complete; scanning stops here.
					return
				}
			}
		}
	}
}

// recordCell maps accumulated cell text onto the schema's field for this
// column index. Unmapped indexes still advance the counter.
func recordCell(row *Row, schema *Schema, index int, text string) {
	col, ok := schema.byIndex[index]
	if !ok {
		return
	}
	if col.Kind == "int" {
		s := strings.ReplaceAll(strings.ReplaceAll(text, ",", ""), " ", "")
		if n, err := strconv.Atoi(s); err == nil {
			row.Numbers[col.Field] = n
		}
		return
	}
	row.Text[col.Field] = text
}

func captureLinkID(tok html.Token, rule LinkRule) (int64, bool) {
	for _, attr := range tok.Attr {
		if attr.Key != rule.Attr {
			continue
		}
		m := rule.re.FindStringSubmatch(attr.Val)
		if len(m) < 2 {
			continue
		}
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		return id, true
	}
	return 0, false
}

func classContains(tok html.Token, selector string) bool {
	for _, attr := range tok.Attr {
		if attr.Key == "class" && strings.Contains(attr.Val, selector) {
			return true
		}
	}
	return false
}
