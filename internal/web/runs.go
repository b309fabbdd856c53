package web

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/JonMunkholm/mesalogs/internal/mesa"
	"github.com/google/uuid"
)

// runNamespace seeds run IDs so the same directory always yields the same ID.
var runNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("mesalogs:run"))

// Run is an opened logs directory served under a stable ID.
type Run struct {
	ID   string
	Name string
	Logs *mesa.LogDir
}

// Registry holds the runs a Server exposes. It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]*Run)}
}

// RunID derives the ID for a logs directory from its absolute path.
func RunID(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = filepath.Clean(dir)
	}
	return uuid.NewSHA1(runNamespace, []byte(abs)).String()
}

// Add registers logs under name. Adding the same directory twice is an
// error.
func (g *Registry) Add(name string, logs *mesa.LogDir) (*Run, error) {
	run := &Run{ID: RunID(logs.Dir()), Name: name, Logs: logs}

	g.mu.Lock()
	defer g.mu.Unlock()
	if prev, ok := g.runs[run.ID]; ok {
		return nil, fmt.Errorf("run %q: directory already registered as %q", name, prev.Name)
	}
	g.runs[run.ID] = run
	return run, nil
}

// Get returns the run with id.
func (g *Registry) Get(id string) (*Run, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	run, ok := g.runs[strings.ToLower(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownRun, id)
	}
	return run, nil
}

// List returns every run ordered by name, then ID.
func (g *Registry) List() []*Run {
	g.mu.RLock()
	out := make([]*Run, 0, len(g.runs))
	for _, r := range g.runs {
		out = append(out, r)
	}
	g.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Run) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.runs)
}
