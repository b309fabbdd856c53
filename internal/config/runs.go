package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/mesalogs/internal/mesa"
	"gopkg.in/yaml.v3"
)

// Run is one logs directory to serve. Empty file name fields fall back to
// the MESA_* defaults.
type Run struct {
	Name          string `yaml:"name"`
	Dir           string `yaml:"dir"`
	HistoryFile   string `yaml:"history_file"`
	IndexFile     string `yaml:"index_file"`
	ProfilePrefix string `yaml:"profile_prefix"`
	ProfileSuffix string `yaml:"profile_suffix"`
}

// Manifest is the layout of MESA_RUNS_FILE:
//
//	runs:
//	  - name: 1M_pre_ms_to_wd
//	    dir: /data/1M_pre_ms_to_wd/LOGS
//	  - dir: /data/15M/LOGS
//	    history_file: history_15M.data
type Manifest struct {
	Runs []Run `yaml:"runs"`
}

// LoadManifest reads a run manifest. Relative directories are resolved
// against the manifest's own directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read runs file: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse runs file %s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i, r := range m.Runs {
		if r.Dir == "" {
			return nil, fmt.Errorf("runs file %s: run %d has no dir", path, i+1)
		}
		if !filepath.IsAbs(r.Dir) {
			m.Runs[i].Dir = filepath.Join(base, r.Dir)
		}
	}
	return &m, nil
}

// Runs lists every configured run: MESA_LOG_DIRS first, then the manifest.
// Runs without a name are named after their directory.
func (c *Config) Runs() ([]Run, error) {
	var runs []Run
	for _, dir := range c.Mesa.LogDirs {
		runs = append(runs, Run{Dir: dir})
	}

	if c.Mesa.RunsFile != "" {
		m, err := LoadManifest(c.Mesa.RunsFile)
		if err != nil {
			return nil, err
		}
		runs = append(runs, m.Runs...)
	}

	if len(runs) == 0 {
		return nil, errors.New("no runs configured: set MESA_LOG_DIRS or MESA_RUNS_FILE")
	}

	for i := range runs {
		if runs[i].Name == "" {
			runs[i].Name = RunName(runs[i].Dir)
		}
	}
	return runs, nil
}

// RunName derives a display name from a logs directory. MESA writes into
// <work>/LOGS, so a trailing LOGS element gives way to its parent.
func RunName(dir string) string {
	clean := filepath.Clean(dir)
	name := filepath.Base(clean)
	if name == "LOGS" {
		if parent := filepath.Base(filepath.Dir(clean)); parent != "." && parent != string(filepath.Separator) {
			return parent
		}
	}
	return name
}

// Options returns the mesa.Open options for r. Per-run file names override
// the configured defaults.
func (c *MesaConfig) Options(r Run) ([]mesa.Option, error) {
	layout, err := mesa.ParseIndexLayout(c.IndexLayout)
	if err != nil {
		return nil, err
	}

	prefix, suffix := c.ProfilePrefix, c.ProfileSuffix
	if r.ProfilePrefix != "" {
		prefix = r.ProfilePrefix
	}
	if r.ProfileSuffix != "" {
		suffix = r.ProfileSuffix
	}

	return []mesa.Option{
		mesa.WithHistoryFile(firstNonEmpty(r.HistoryFile, c.HistoryFile)),
		mesa.WithIndexFile(firstNonEmpty(r.IndexFile, c.IndexFile)),
		mesa.WithProfileNaming(prefix, suffix),
		mesa.WithIndexLayout(layout),
		mesa.WithMemoize(c.MemoizeProfiles),
		mesa.WithScrubRestarts(c.ScrubRestarts),
	}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
