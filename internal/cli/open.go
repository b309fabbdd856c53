package cli

import (
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/mesalogs/internal/config"
	"github.com/JonMunkholm/mesalogs/internal/mesa"
	"github.com/spf13/cobra"
)

// dirFlags are per-directory overrides shared by inspect and select.
type dirFlags struct {
	run     config.Run
	layout  string
	noScrub bool
}

func (f *dirFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.run.HistoryFile, "history-file", "", "history file name (default from MESA_HISTORY_FILE)")
	fl.StringVar(&f.run.IndexFile, "index-file", "", "profile index file name (default from MESA_INDEX_FILE)")
	fl.StringVar(&f.run.ProfilePrefix, "profile-prefix", "", "profile file prefix (default from MESA_PROFILE_PREFIX)")
	fl.StringVar(&f.run.ProfileSuffix, "profile-suffix", "", "profile file suffix (default from MESA_PROFILE_SUFFIX)")
	fl.StringVar(&f.layout, "index-layout", "", "index column order, e.g. model,priority,profile")
	fl.BoolVar(&f.noScrub, "keep-restarts", false, "keep history rows superseded by a restart")
}

// open reads dir using the configured defaults and any flag overrides.
func (f *dirFlags) open(cfg *config.Config, dir string) (*mesa.LogDir, error) {
	mc := cfg.Mesa
	if f.layout != "" {
		mc.IndexLayout = f.layout
	}
	if f.noScrub {
		mc.ScrubRestarts = false
	}

	run := f.run
	run.Dir = dir
	opts, err := mc.Options(run)
	if err != nil {
		return nil, fmt.Errorf("index layout: %w", err)
	}
	return mesa.Open(dir, opts...)
}

// openRuns opens every configured run into a registry-ready list.
func openRuns(cfg *config.Config, obs mesa.Observer) ([]openedRun, error) {
	runs, err := cfg.Runs()
	if err != nil {
		return nil, err
	}

	out := make([]openedRun, 0, len(runs))
	for _, r := range runs {
		opts, err := cfg.Mesa.Options(r)
		if err != nil {
			return nil, err
		}
		opts = append(opts, mesa.WithLogger(slog.Default().With("run", r.Name)))
		if obs != nil {
			opts = append(opts, mesa.WithObserver(obs))
		}

		logs, err := mesa.Open(r.Dir, opts...)
		if err != nil {
			return nil, fmt.Errorf("run %q: %w", r.Name, err)
		}
		slog.Info("run opened",
			"run", r.Name,
			"history_rows", logs.History().Len(),
			"profiles_indexed", logs.Index().Len(),
			"profiles_on_disk", len(logs.ProfilesOnDisk()),
		)
		out = append(out, openedRun{name: r.Name, logs: logs})
	}
	return out, nil
}

type openedRun struct {
	name string
	logs *mesa.LogDir
}
