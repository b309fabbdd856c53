// Package query compiles history selection expressions such as
//
//	star_age > 1e9 && log_L > 3
//
// into predicates over history rows. Expressions use HCL syntax. Every name
// refers to a history column, stored or derived (L from log_L, log_R from R,
// as mesa.Table.Derived computes them). Header values are reachable as
// header.<name> unless the history has a column called header.
package query

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/JonMunkholm/mesalogs/internal/mesa"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// ErrInvalid matches every query compile or evaluation error.
var ErrInvalid = errors.New("invalid query")

// Error describes why an expression could not be compiled or evaluated.
type Error struct {
	Expr string
	Msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("query %q: %s", e.Expr, e.Msg) }

func (e *Error) Is(target error) bool { return target == ErrInvalid }

const headerVar = "header"

var functions = map[string]function.Function{
	"abs":   stdlib.AbsoluteFunc,
	"ceil":  stdlib.CeilFunc,
	"floor": stdlib.FloorFunc,
	"log":   stdlib.LogFunc,
	"max":   stdlib.MaxFunc,
	"min":   stdlib.MinFunc,
	"pow":   stdlib.PowFunc,
}

// Query is a compiled selection expression.
type Query struct {
	src   string
	expr  hcl.Expression
	names []string
}

// Compile parses src. Names are checked later, against a concrete table.
func Compile(src string) (*Query, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, &Error{Expr: src, Msg: "empty expression"}
	}

	expr, diags := hclsyntax.ParseExpression([]byte(src), "where", hcl.Pos{Line: 1, Column: 1, Byte: 0})
	if diags.HasErrors() {
		return nil, &Error{Expr: src, Msg: diags.Error()}
	}

	var names []string
	for _, tr := range expr.Variables() {
		names = append(names, tr.RootName())
	}
	slices.Sort(names)

	return &Query{src: src, expr: expr, names: slices.Compact(names)}, nil
}

// String returns the source expression.
func (q *Query) String() string { return q.src }

// Names returns the root names the expression refers to, sorted.
func (q *Query) Names() []string { return slices.Clone(q.names) }

// scope holds what a query needs from one table beyond the row itself.
type scope struct {
	header  cty.Value
	derived map[string]derivedColumn
}

type derivedColumn struct {
	src string
	fn  func(float64) float64
}

// resolve binds every name to a stored column, the header object or a
// derived column of t, in that order.
func (q *Query) resolve(t *mesa.Table) (*scope, error) {
	s := &scope{derived: make(map[string]derivedColumn)}
	var missing []string
	for _, n := range q.names {
		if t.HasColumn(n) {
			continue
		}
		if n == headerVar {
			s.header = headerObject(t)
			continue
		}
		src, fn, ok := t.DerivedFrom(n)
		if !ok {
			missing = append(missing, n)
			continue
		}
		s.derived[n] = derivedColumn{src: src, fn: fn}
	}
	if len(missing) > 0 {
		return nil, &Error{Expr: q.src, Msg: "unknown column " + strings.Join(missing, ", ")}
	}
	return s, nil
}

// Check reports names that t cannot supply.
func (q *Query) Check(t *mesa.Table) error {
	_, err := q.resolve(t)
	return err
}

// Eval evaluates the expression for one row of t. Rows holding NaN in a
// referenced column evaluate to false.
func (q *Query) Eval(t *mesa.Table, row mesa.Row) (bool, error) {
	s, err := q.resolve(t)
	if err != nil {
		return false, err
	}
	return q.eval(row, s)
}

func (q *Query) eval(row mesa.Row, s *scope) (bool, error) {
	vars := make(map[string]cty.Value, len(q.names))
	for _, n := range q.names {
		if v, ok := row[n]; ok {
			vars[n] = number(v)
			continue
		}
		if n == headerVar {
			vars[n] = s.header
			continue
		}
		if d, ok := s.derived[n]; ok {
			if v, ok := row[d.src]; ok {
				vars[n] = number(d.fn(v))
				continue
			}
		}
		return false, &Error{Expr: q.src, Msg: "unknown column " + n}
	}

	val, diags := q.expr.Value(&hcl.EvalContext{Variables: vars, Functions: functions})
	if diags.HasErrors() {
		return false, &Error{Expr: q.src, Msg: diags.Error()}
	}
	if !val.IsKnown() {
		return false, nil
	}
	if val.IsNull() || val.Type() != cty.Bool {
		return false, &Error{Expr: q.src, Msg: "expression must be true or false, got " + val.Type().FriendlyName()}
	}
	return val.True(), nil
}

// Selection is the result of running a query over a run's history.
type Selection struct {
	Models   []int `json:"models"`
	Profiles []int `json:"profiles"`
}

// Select evaluates q once over every history row of d. Profiles are the
// selected models that the index lists.
func (q *Query) Select(d *mesa.LogDir) (Selection, error) {
	s, err := q.resolve(d.History())
	if err != nil {
		return Selection{}, err
	}

	var evalErr error
	pred := func(r mesa.Row) bool {
		if evalErr != nil {
			return false
		}
		ok, err := q.eval(r, s)
		if err != nil {
			evalErr = err
			return false
		}
		return ok
	}

	models, err := d.SelectModels(pred)
	if err != nil {
		return Selection{}, err
	}
	if evalErr != nil {
		return Selection{}, evalErr
	}
	return Selection{Models: models, Profiles: d.ProfilesFor(models)}, nil
}

func number(f float64) cty.Value {
	if math.IsNaN(f) {
		return cty.UnknownVal(cty.Number)
	}
	return cty.NumberFloatVal(f)
}

func headerObject(t *mesa.Table) cty.Value {
	names := t.HeaderNames()
	if len(names) == 0 {
		return cty.EmptyObjectVal
	}
	attrs := make(map[string]cty.Value, len(names))
	for _, n := range names {
		v, _ := t.Header(n)
		switch v.Kind {
		case mesa.IntValue:
			attrs[n] = cty.NumberIntVal(v.Int)
		case mesa.FloatValue:
			attrs[n] = number(v.Float)
		default:
			attrs[n] = cty.StringVal(v.Str)
		}
	}
	return cty.ObjectVal(attrs)
}
