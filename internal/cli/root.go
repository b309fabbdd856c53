// Package cli defines the mesalogs command tree.
package cli

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/JonMunkholm/mesalogs/internal/config"
	"github.com/JonMunkholm/mesalogs/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// app carries state shared by subcommands once the root has run.
type app struct {
	envFile string
	cfg     *config.Config
}

// Execute runs the root command with os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "mesalogs",
		Short: "Read MESA history, profile and index output",
		Long: `mesalogs reads the LOGS directory written by a MESA run: the history file,
the profiles index and the profile files. Serve one or more runs over HTTP,
inspect and query a single directory from the shell, or summarize one
history, profile or model file.

Configuration comes from the environment (see MESA_*, SERVER_*, LOG_*),
optionally loaded from a .env file.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file to load; missing files are ignored")

	root.AddCommand(
		newServeCmd(a),
		newInspectCmd(a),
		newSelectCmd(a),
		newTableCmd(),
	)
	return root
}

// setup loads .env (overwriting existing variables), then configuration and
// logging.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	envLoaded := false
	if a.envFile != "" {
		err := godotenv.Overload(a.envFile)
		switch {
		case err == nil:
			envLoaded = true
		case errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("env-file"):
		default:
			return err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if envLoaded {
		slog.Debug("loaded env file (overwriting existing env vars)", "path", a.envFile)
	}
	return nil
}
