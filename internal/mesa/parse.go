package mesa

// parse.go reads the two-block layout shared by history and profile files:
//
//	1        2        3            <- index markers (ignored)
//	name_a   name_b   name_c       <- header names
//	1        "r2403"  1.5E+00      <- header values
//	                               <- one or more blank lines
//	1        2                     <- index markers (ignored)
//	model_number   star_age        <- bulk names
//	1        0.0                   <- one line per row, until EOF or blank
//
// Anything after the blank line that ends the bulk rows is ignored.

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strings"
)

// maxLineSize bounds a single line. Profile files can carry several hundred
// columns of 40-character fields.
const maxLineSize = 64 * 1024 * 1024

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadTable parses the history, profile or model file at path. Paths ending
// in ModelSuffix are read with ParseModel, everything else with Parse.
func ReadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, unreadable(path, err)
	}
	defer f.Close()

	if IsModelFile(path) {
		return ParseModel(f, path)
	}
	return Parse(f, path)
}

// Parse reads a history or profile file from r. name is used in error
// messages and reported by Table.Name.
func Parse(r io.Reader, name string) (*Table, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, unreadable(name, err)
	}

	p := &parser{name: name, lines: lines}
	return p.parse()
}

// line is one input line with its 1-based position.
type line struct {
	num  int
	text string
}

func (l line) blank() bool { return strings.TrimSpace(l.text) == "" }

// readLines returns every line of r with a leading UTF-8 BOM removed.
func readLines(r io.Reader) ([]line, error) {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, err
		}
	}

	sc := bufio.NewScanner(br)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var lines []line
	for n := 1; sc.Scan(); n++ {
		lines = append(lines, line{num: n, text: sc.Text()})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

type parser struct {
	name  string
	lines []line
	pos   int
}

func (p *parser) parse() (*Table, error) {
	if len(p.lines) == 0 {
		return nil, formatErr(p.name, 0, "empty file")
	}

	p.skipBlank()
	head := p.block()
	if len(head) == 0 {
		return nil, formatErr(p.name, 0, "empty file")
	}
	if len(head) < 3 {
		return nil, formatErr(p.name, head[len(head)-1].num,
			"header block has %d lines, want markers, names and values", len(head))
	}
	if len(head) > 3 {
		return nil, formatErr(p.name, head[3].num, "missing blank line between header and bulk blocks")
	}

	t := &Table{name: p.name}
	if err := p.parseHeader(t, head[1], head[2]); err != nil {
		return nil, err
	}

	p.skipBlank()
	bulk := p.block()
	if len(bulk) < 2 {
		at := head[2].num
		if len(bulk) == 1 {
			at = bulk[0].num
		}
		return nil, formatErr(p.name, at, "missing bulk block")
	}
	if err := p.parseBulk(t, bulk[1], strings.Fields(bulk[1].text), bulk[2:]); err != nil {
		return nil, err
	}

	t.init()
	return t, nil
}

func (p *parser) skipBlank() {
	for p.pos < len(p.lines) && p.lines[p.pos].blank() {
		p.pos++
	}
}

// block returns consecutive non-blank lines starting at the current position.
func (p *parser) block() []line {
	start := p.pos
	for p.pos < len(p.lines) && !p.lines[p.pos].blank() {
		p.pos++
	}
	return p.lines[start:p.pos]
}

func (p *parser) parseHeader(t *Table, names, values line) error {
	keys := strings.Fields(names.text)
	vals := splitFields(values.text)
	if len(keys) != len(vals) {
		return formatErr(p.name, values.num, "%d header values for %d header names", len(vals), len(keys))
	}

	t.headerOrder = keys
	t.header = make(map[string]Value, len(keys))
	for i, k := range keys {
		if _, dup := t.header[k]; dup {
			return formatErr(p.name, names.num, "duplicate header name %q", k)
		}
		t.header[k] = parseValue(vals[i])
	}
	return nil
}

// parseBulk fills t from rows. cols are the column names, which the names
// line may not spell out in full.
func (p *parser) parseBulk(t *Table, names line, cols []string, rows []line) error {
	seen := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		if _, dup := seen[c]; dup {
			return formatErr(p.name, names.num, "duplicate column name %q", c)
		}
		seen[c] = struct{}{}
	}

	cells := make([]float64, 0, len(cols)*len(rows))
	for _, row := range rows {
		fields := strings.Fields(row.text)
		if len(fields) != len(cols) {
			return formatErr(p.name, row.num, "row has %d fields, want %d", len(fields), len(cols))
		}
		for j, f := range fields {
			v, err := parseFloat(f)
			if err != nil {
				return formatErr(p.name, row.num, "column %q: %q is not a number", cols[j], f)
			}
			cells = append(cells, v)
		}
	}

	t.columnOrder = cols
	t.cells = cells
	t.rows = len(rows)
	return nil
}

// splitFields splits on whitespace but keeps double-quoted runs together so
// that quoted header strings may contain spaces. Quotes are kept.
func splitFields(s string) []string {
	var (
		fields  []string
		b       strings.Builder
		inQuote bool
		started bool
	)
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			started = true
			b.WriteRune(r)
		case !inQuote && (r == ' ' || r == '\t' || r == '\r' || r == '\v' || r == '\f'):
			if started {
				fields = append(fields, b.String())
				b.Reset()
				started = false
			}
		default:
			started = true
			b.WriteRune(r)
		}
	}
	if started {
		fields = append(fields, b.String())
	}
	return fields
}
