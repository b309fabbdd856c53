package mesa

import (
	"math"
	"regexp"
)

var (
	logPrefixes = []string{"log_", "log", "lg_", "lg"}
	lnPrefixes  = []string{"ln_", "ln"}

	logName = regexp.MustCompile(`^lo?g_?(.+)`)
	lnName  = regexp.MustCompile(`^ln_?(.+)`)
)

// Derived returns column name, computing it from a logarithmic or linear
// counterpart when the file does not carry it directly:
//
//	L      from log_L, logL, lg_L or lgL  as 10^x
//	R      from ln_R or lnR               as e^x
//	log_R  from R                         as log10(x)
//	ln_R   from R                         as ln(x)
//
// Candidates are tried in that order; the first existing column wins.
func (t *Table) Derived(name string) ([]float64, error) {
	if t.HasColumn(name) {
		return t.Column(name)
	}
	if src, fn, ok := t.derivation(name); ok {
		return t.mapColumn(src, fn)
	}
	return nil, notFound(KindColumn, name)
}

// DerivedFrom reports the stored column Derived computes name from and the
// conversion it applies to each value. ok is false when name is a stored
// column or cannot be derived.
func (t *Table) DerivedFrom(name string) (src string, fn func(float64) float64, ok bool) {
	if t.HasColumn(name) {
		return "", nil, false
	}
	return t.derivation(name)
}

func (t *Table) derivation(name string) (string, func(float64) float64, bool) {
	for _, p := range logPrefixes {
		if t.HasColumn(p + name) {
			return p + name, pow10, true
		}
	}
	for _, p := range lnPrefixes {
		if t.HasColumn(p + name) {
			return p + name, math.Exp, true
		}
	}
	if m := logName.FindStringSubmatch(name); m != nil && t.HasColumn(m[1]) {
		return m[1], math.Log10, true
	}
	if m := lnName.FindStringSubmatch(name); m != nil && t.HasColumn(m[1]) {
		return m[1], math.Log, true
	}
	return "", nil, false
}

func pow10(x float64) float64 { return math.Pow(10, x) }

func (t *Table) mapColumn(src string, fn func(float64) float64) ([]float64, error) {
	col, err := t.column(src)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(col))
	for i, x := range col {
		out[i] = fn(x)
	}
	return out, nil
}
