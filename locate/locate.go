// Package locate assigns document-global line numbers, character offsets
// and bounding boxes to extracted text.
//
// Lines are numbered from 1 across the whole document; numbering does not
// restart per page, and blank lines do not consume a number. Character
// offsets are rune offsets into the document stream, which is every line's
// text joined by "\n" (see Stream).
package locate

import (
	"strings"
	"unicode/utf8"

	"github.com/poiesic/docscope/core"
)

// Map builds the line table for pages given in document order.
//
// Pages with spans produce one line per span row, boxed by the union of the
// row's span boxes. Pages without spans are split on newlines and their
// lines get an unknown box and approximate precision. Span Line fields and
// char offsets are rewritten in place to their global values.
func Map(pages []core.Page) []core.Line {
	var (
		lines  []core.Line
		offset int
	)
	emit := func(l core.Line) {
		l.Number = len(lines) + 1
		l.CharStart = offset
		l.CharEnd = offset + utf8.RuneCountInString(l.Text)
		offset = l.CharEnd + 1
		lines = append(lines, l)
	}

	for i := range pages {
		page := &pages[i]
		if len(page.Spans) == 0 {
			for raw := range strings.SplitSeq(page.Text, "\n") {
				text := strings.TrimSpace(raw)
				if text == "" {
					continue
				}
				emit(core.Line{Page: page.Number, Text: text, Precision: core.PrecisionApproximate})
			}
			continue
		}

		for start := 0; start < len(page.Spans); {
			end := start + 1
			for end < len(page.Spans) && page.Spans[end].Line == page.Spans[start].Line {
				end++
			}
			if l, ok := joinSpans(page.Spans[start:end], len(lines)+1, offset); ok {
				l.Page = page.Number
				emit(l)
			}
			start = end
		}
	}
	return lines
}

// joinSpans merges one row of spans into a line and stamps each span with
// its global line number and offsets.
func joinSpans(spans []core.Span, number, offset int) (core.Line, bool) {
	var (
		text strings.Builder
		box  core.BBox
	)
	pos := offset
	for i := range spans {
		s := &spans[i]
		t := strings.TrimSpace(s.Text)
		if t == "" {
			continue
		}
		if text.Len() > 0 {
			text.WriteByte(' ')
			pos++
		}
		text.WriteString(t)
		s.Line = number
		s.CharStart = pos
		pos += utf8.RuneCountInString(t)
		s.CharEnd = pos
		box = box.Union(s.BBox)
	}
	if text.Len() == 0 {
		return core.Line{}, false
	}
	return core.Line{Text: text.String(), BBox: box, Precision: core.PrecisionExact}, true
}

// Stream returns the document text the line offsets index into.
func Stream(lines []core.Line) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.Text)
	}
	return b.String()
}
