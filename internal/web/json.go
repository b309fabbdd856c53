package web

import (
	"math"
	"strconv"

	"github.com/JonMunkholm/mesalogs/internal/mesa"
)

// number is a float64 that encodes NaN and infinities as null, which
// encoding/json would otherwise reject.
type number float64

func (n number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

func numbers(col []float64) []number {
	out := make([]number, len(col))
	for i, f := range col {
		out[i] = number(f)
	}
	return out
}

type headerEntry struct {
	Name  string     `json:"name"`
	Kind  string     `json:"kind"`
	Value mesa.Value `json:"value"`
}

func headerEntries(t *mesa.Table) []headerEntry {
	names := t.HeaderNames()
	out := make([]headerEntry, 0, len(names))
	for _, n := range names {
		v, _ := t.Header(n)
		out = append(out, headerEntry{Name: n, Kind: v.Kind.String(), Value: v})
	}
	return out
}

type runSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	HistoryRows int    `json:"history_rows"`
	Profiles    int    `json:"profiles"`
}

type runDetail struct {
	runSummary
	Columns        []string `json:"columns"`
	Header         []string `json:"header"`
	Models         []int    `json:"models"`
	ProfilesOnDisk []int    `json:"profiles_on_disk"`
	CachedProfiles int      `json:"cached_profiles"`
	LastProfile    *int     `json:"last_profile,omitempty"`
}

func summarize(r *Run) runSummary {
	return runSummary{
		ID:          r.ID,
		Name:        r.Name,
		HistoryRows: r.Logs.History().Len(),
		Profiles:    r.Logs.Index().Len(),
	}
}

func detail(r *Run) runDetail {
	d := runDetail{
		runSummary:     summarize(r),
		Columns:        r.Logs.History().ColumnNames(),
		Header:         r.Logs.History().HeaderNames(),
		Models:         r.Logs.ModelNumbers(),
		ProfilesOnDisk: r.Logs.ProfilesOnDisk(),
		CachedProfiles: r.Logs.CachedProfiles(),
	}
	if nums := r.Logs.ProfileNumbers(); len(nums) > 0 {
		last := nums[len(nums)-1]
		d.LastProfile = &last
	}
	return d
}

type fieldResponse struct {
	Name   string      `json:"name"`
	Source string      `json:"source"`
	Values []number    `json:"values,omitempty"`
	Value  *mesa.Value `json:"value,omitempty"`
}

func field(f mesa.Field) fieldResponse {
	resp := fieldResponse{Name: f.Name, Source: f.Source.String()}
	if f.IsColumn() {
		resp.Values = numbers(f.Column)
	} else {
		v := f.Header
		resp.Value = &v
	}
	return resp
}

type profileEntry struct {
	mesa.IndexEntry
	OnDisk bool `json:"on_disk"`
}

type profileSummary struct {
	Profile int           `json:"profile_number"`
	Model   int           `json:"model_number,omitempty"`
	Rows    int           `json:"rows"`
	Columns []string      `json:"columns"`
	Header  []headerEntry `json:"header"`
}

func profile(n, model int, t *mesa.Table) profileSummary {
	return profileSummary{
		Profile: n,
		Model:   model,
		Rows:    t.Len(),
		Columns: t.ColumnNames(),
		Header:  headerEntries(t),
	}
}

type rowResponse struct {
	Row    int               `json:"row"`
	Values map[string]number `json:"values"`
}
