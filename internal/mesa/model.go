package mesa

// model.go reads saved stellar models (.mod files):
//
//	! comments, version and option lines   <- preamble (ignored)
//	                                       <- one or more blank lines
//	  version_number   'r24.03.1'          <- one "name value" pair per line
//	          M/Msun   1.0000000000000000D+00
//	                                       <- one or more blank lines
//	       lnd        lnT         L        <- column names; zone is implied
//	  1  -1.5D+00   8.5D+00   3.8D+33      <- zone number, then one value per name
//	                                       <- blank line; the rest is ignored

import (
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ModelSuffix is the file extension of saved models.
const ModelSuffix = ".mod"

// ZoneColumn is the leading column of a model file. Its name is not written
// in the file.
const ZoneColumn = "zone"

// IsModelFile reports whether path names a saved model.
func IsModelFile(path string) bool { return filepath.Ext(path) == ModelSuffix }

// ReadModel parses the model file at path, whatever its extension.
func ReadModel(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, unreadable(path, err)
	}
	defer f.Close()

	return ParseModel(f, path)
}

// ParseModel reads a saved model from r. The result is a Table whose header
// holds the model's scalar properties and whose first column is zone.
func ParseModel(r io.Reader, name string) (*Table, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, unreadable(name, err)
	}

	p := &parser{name: name, lines: lines}
	return p.parseModel()
}

func (p *parser) parseModel() (*Table, error) {
	p.skipBlank()
	preamble := p.block()
	if len(preamble) == 0 {
		return nil, formatErr(p.name, 0, "empty file")
	}

	p.skipBlank()
	head := p.block()
	if len(head) == 0 {
		return nil, formatErr(p.name, preamble[len(preamble)-1].num, "missing header block")
	}

	t := &Table{name: p.name}
	if err := p.parseModelHeader(t, head); err != nil {
		return nil, err
	}

	p.skipBlank()
	bulk := p.block()
	if len(bulk) == 0 {
		return nil, formatErr(p.name, head[len(head)-1].num, "missing bulk block")
	}
	cols := append([]string{ZoneColumn}, strings.Fields(bulk[0].text)...)
	if err := p.parseBulk(t, bulk[0], cols, bulk[1:]); err != nil {
		return nil, err
	}

	t.init()
	return t, nil
}

func (p *parser) parseModelHeader(t *Table, head []line) error {
	t.headerOrder = make([]string, 0, len(head))
	t.header = make(map[string]Value, len(head))
	for _, l := range head {
		text := strings.TrimSpace(l.text)
		fields := strings.Fields(text)
		if len(fields) < 2 {
			return formatErr(p.name, l.num, "header line needs a name and a value")
		}
		key := fields[0]
		if _, dup := t.header[key]; dup {
			return formatErr(p.name, l.num, "duplicate header name %q", key)
		}
		t.headerOrder = append(t.headerOrder, key)
		t.header[key] = modelValue(strings.TrimSpace(text[len(key):]))
	}
	return nil
}

// modelValue converts the text after a header name. Quoted values (single or
// double quotes) are strings and may hold spaces; otherwise only the first
// field counts.
func modelValue(s string) Value {
	if q := s[0]; q == '\'' || q == '"' {
		if end := strings.IndexByte(s[1:], q); end >= 0 {
			return StringVal(s[1 : end+1])
		}
	}
	return parseValue(strings.Fields(s)[0])
}
