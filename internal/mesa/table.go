package mesa

import (
	"math"
	"slices"
	"strconv"
	"sync"
)

// ModelNumberColumn is the bulk column that ties history rows to profiles.
const ModelNumberColumn = "model_number"

// Row is one bulk row keyed by column name.
type Row map[string]float64

// Table is a parsed history or profile file. It is immutable once built;
// columns are gathered out of the row-major cells on first use and memoized.
type Table struct {
	name string

	headerOrder []string
	header      map[string]Value

	columnOrder []string
	colIndex    map[string]int
	cells       []float64 // row-major, rows*len(columnOrder)
	rows        int

	mu      sync.Mutex
	columns map[string][]float64
}

func (t *Table) init() {
	t.colIndex = make(map[string]int, len(t.columnOrder))
	for i, c := range t.columnOrder {
		t.colIndex[c] = i
	}
	t.columns = make(map[string][]float64)
}

// Name returns the path or name the table was parsed from.
func (t *Table) Name() string { return t.name }

// Len returns the number of bulk rows.
func (t *Table) Len() int { return t.rows }

// ColumnNames returns bulk column names in file order.
func (t *Table) ColumnNames() []string { return slices.Clone(t.columnOrder) }

// HeaderNames returns header names in file order.
func (t *Table) HeaderNames() []string { return slices.Clone(t.headerOrder) }

func (t *Table) HasColumn(name string) bool {
	_, ok := t.colIndex[name]
	return ok
}

func (t *Table) HasHeader(name string) bool {
	_, ok := t.header[name]
	return ok
}

// Header returns the header value called name.
func (t *Table) Header(name string) (Value, error) {
	v, ok := t.header[name]
	if !ok {
		return Value{}, notFound(KindHeader, name)
	}
	return v, nil
}

// Column returns a copy of the bulk column called name.
func (t *Table) Column(name string) ([]float64, error) {
	col, err := t.column(name)
	if err != nil {
		return nil, err
	}
	return slices.Clone(col), nil
}

// column returns the memoized column without copying. Callers must not
// modify the result.
func (t *Table) column(name string) ([]float64, error) {
	j, ok := t.colIndex[name]
	if !ok {
		return nil, notFound(KindColumn, name)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if col, ok := t.columns[name]; ok {
		return col, nil
	}
	width := len(t.columnOrder)
	col := make([]float64, t.rows)
	for i := range col {
		col[i] = t.cells[i*width+j]
	}
	t.columns[name] = col
	return col, nil
}

// Row returns row i keyed by bulk column name.
func (t *Table) Row(i int) (Row, error) {
	if i < 0 || i >= t.rows {
		return nil, &IndexError{Index: i, Len: t.rows}
	}
	return t.row(i), nil
}

func (t *Table) row(i int) Row {
	width := len(t.columnOrder)
	r := make(Row, width)
	for j, c := range t.columnOrder {
		r[c] = t.cells[i*width+j]
	}
	return r
}

// FieldSource says which namespace satisfied a Lookup.
type FieldSource uint8

const (
	FromColumn FieldSource = iota + 1
	FromDerived
	FromHeader
)

func (s FieldSource) String() string {
	switch s {
	case FromColumn:
		return "column"
	case FromDerived:
		return "derived"
	case FromHeader:
		return "header"
	default:
		return "unknown"
	}
}

// Field is the result of Lookup: either a column or a header value.
type Field struct {
	Name   string
	Source FieldSource
	Column []float64
	Header Value
}

// IsColumn reports whether the field holds per-row data.
func (f Field) IsColumn() bool { return f.Source == FromColumn || f.Source == FromDerived }

// Lookup resolves name against the table's namespaces in a fixed order:
// a bulk column of that exact name, then a column derived from a log or
// linear counterpart (see Derived), then the header. A header entry that
// shares its name with a column is therefore only reachable through Header.
func (t *Table) Lookup(name string) (Field, error) {
	if t.HasColumn(name) {
		col, err := t.Column(name)
		if err != nil {
			return Field{}, err
		}
		return Field{Name: name, Source: FromColumn, Column: col}, nil
	}
	if col, err := t.Derived(name); err == nil {
		return Field{Name: name, Source: FromDerived, Column: col}, nil
	}
	if v, ok := t.header[name]; ok {
		return Field{Name: name, Source: FromHeader, Header: v}, nil
	}
	return Field{}, notFound(KindField, name)
}

// Equal reports whether both tables carry the same header (names, order,
// kinds and values) and the same columns in the same order. NaN cells
// compare equal to NaN cells.
func (t *Table) Equal(o *Table) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil {
		return false
	}
	if t.rows != o.rows ||
		!slices.Equal(t.headerOrder, o.headerOrder) ||
		!slices.Equal(t.columnOrder, o.columnOrder) {
		return false
	}
	for _, k := range t.headerOrder {
		if !t.header[k].Equal(o.header[k]) {
			return false
		}
	}
	return slices.EqualFunc(t.cells, o.cells, floatsEqual)
}

// IndexOfModel returns the row whose model_number equals model.
func (t *Table) IndexOfModel(model int) (int, error) {
	col, err := t.column(ModelNumberColumn)
	if err != nil {
		return 0, err
	}
	idx := -1
	for i, m := range col {
		if m != float64(model) {
			continue
		}
		if idx >= 0 {
			return 0, &duplicateModelError{model: model, path: t.name}
		}
		idx = i
	}
	if idx < 0 {
		return 0, notFound(KindModel, model)
	}
	return idx, nil
}

// ValueAtModel returns column name at the row for model.
func (t *Table) ValueAtModel(name string, model int) (float64, error) {
	col, err := t.column(name)
	if err != nil {
		return 0, err
	}
	i, err := t.IndexOfModel(model)
	if err != nil {
		return 0, err
	}
	return col[i], nil
}

// ModelNumbers returns the model_number column converted to ints.
func (t *Table) ModelNumbers() ([]int, error) {
	col, err := t.column(ModelNumberColumn)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(col))
	for i, m := range col {
		out[i] = int(m)
	}
	return out, nil
}

// WithoutRestarts returns a copy of the table without the rows left behind
// by backups and restarts: a row is dropped when any later row has a model
// number less than or equal to its own. Tables without a model_number
// column are returned unchanged. removed is the number of dropped rows.
func (t *Table) WithoutRestarts() (out *Table, removed int) {
	models, err := t.column(ModelNumberColumn)
	if err != nil || t.rows < 2 {
		return t, 0
	}

	keep := make([]bool, t.rows)
	minFuture := math.Inf(1)
	for i := t.rows - 1; i >= 0; i-- {
		keep[i] = models[i] < minFuture
		if !keep[i] {
			removed++
		}
		minFuture = math.Min(minFuture, models[i])
	}
	if removed == 0 {
		return t, 0
	}

	width := len(t.columnOrder)
	cells := make([]float64, 0, (t.rows-removed)*width)
	for i, ok := range keep {
		if ok {
			cells = append(cells, t.cells[i*width:(i+1)*width]...)
		}
	}

	out = &Table{
		name:        t.name,
		headerOrder: t.headerOrder,
		header:      t.header,
		columnOrder: t.columnOrder,
		cells:       cells,
		rows:        t.rows - removed,
	}
	out.init()
	return out, removed
}

type duplicateModelError struct {
	model int
	path  string
}

func (e *duplicateModelError) Error() string {
	return "model " + strconv.Itoa(e.model) + " appears more than once in " + e.path
}

func (e *duplicateModelError) Is(target error) bool { return target == ErrDuplicateModel }

func floatsEqual(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
