package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/mesalogs/internal/logging"
	"github.com/JonMunkholm/mesalogs/internal/mesa"
	"github.com/JonMunkholm/mesalogs/internal/query"
	"github.com/go-chi/chi/v5"
)

// intParam parses the chi URL parameter name as an integer.
func intParam(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", errBadParam, name, raw)
	}
	return n, nil
}

// run resolves {runID} and tags the request context with it.
func (s *Server) run(r *http.Request) (*Run, *http.Request, error) {
	run, err := s.runs.Get(chi.URLParam(r, "runID"))
	if err != nil {
		return nil, r, err
	}
	return run, r.WithContext(logging.WithRun(r.Context(), run.ID)), nil
}

// loadProfile returns profile n of run, taking a parse slot unless the
// profile is already cached.
func (s *Server) loadProfile(r *http.Request, run *Run, n int) (*mesa.Table, error) {
	if !run.Logs.IsCached(n) {
		if err := s.parses.Acquire(r.Context()); err != nil {
			return nil, err
		}
		defer s.parses.Release()
	}
	return run.Logs.Profile(n)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, map[string]any{
		"status": "ok",
		"runs":   s.runs.Len(),
		"parses": s.parses.Status(),
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs := s.runs.List()
	out := make([]runSummary, len(runs))
	for i, run := range runs {
		out[i] = summarize(run)
	}
	writeJSON(w, r, out)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, r, err := s.run(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, detail(run))
}

func (s *Server) handleHistoryHeader(w http.ResponseWriter, r *http.Request) {
	run, r, err := s.run(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, headerEntries(run.Logs.History()))
}

func (s *Server) handleHistoryColumn(w http.ResponseWriter, r *http.Request) {
	run, r, err := s.run(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	f, err := run.Logs.History().Lookup(chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, field(f))
}

func (s *Server) handleHistoryRow(w http.ResponseWriter, r *http.Request) {
	run, r, err := s.run(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	i, err := intParam(r, "row")
	if err != nil {
		respondError(w, r, err)
		return
	}
	row, err := run.Logs.History().Row(i)
	if err != nil {
		respondError(w, r, err)
		return
	}

	values := make(map[string]number, len(row))
	for k, v := range row {
		values[k] = number(v)
	}
	writeJSON(w, r, rowResponse{Row: i, Values: values})
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	run, r, err := s.run(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	entries := run.Logs.Index().ByModel()
	out := make([]profileEntry, len(entries))
	for i, e := range entries {
		_, onDisk := run.Logs.ProfilePath(e.Profile)
		out[i] = profileEntry{IndexEntry: e, OnDisk: onDisk}
	}
	writeJSON(w, r, out)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	run, r, err := s.run(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	n, err := intParam(r, "profile")
	if err != nil {
		respondError(w, r, err)
		return
	}
	t, err := s.loadProfile(r, run, n)
	if err != nil {
		respondError(w, r, err)
		return
	}
	model, _ := run.Logs.Index().ModelForProfile(n)
	writeJSON(w, r, profile(n, model, t))
}

func (s *Server) handleProfileColumn(w http.ResponseWriter, r *http.Request) {
	run, r, err := s.run(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	n, err := intParam(r, "profile")
	if err != nil {
		respondError(w, r, err)
		return
	}
	t, err := s.loadProfile(r, run, n)
	if err != nil {
		respondError(w, r, err)
		return
	}
	f, err := t.Lookup(chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, field(f))
}

func (s *Server) handleModelProfile(w http.ResponseWriter, r *http.Request) {
	run, r, err := s.run(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	model, err := intParam(r, "model")
	if err != nil {
		respondError(w, r, err)
		return
	}
	n, err := run.Logs.Index().ProfileForModel(model)
	if err != nil {
		respondError(w, r, err)
		return
	}
	t, err := s.loadProfile(r, run, n)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, profile(n, model, t))
}

type selectResponse struct {
	Where string `json:"where"`
	query.Selection
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	run, r, err := s.run(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	q, err := query.Compile(r.URL.Query().Get("where"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	sel, err := q.Select(run.Logs)
	if err != nil {
		respondError(w, r, err)
		return
	}
	logging.WithFields(r.Context(), "where", q.String(), "models", len(sel.Models)).Debug("selection evaluated")
	writeJSON(w, r, selectResponse{Where: q.String(), Selection: sel})
}
