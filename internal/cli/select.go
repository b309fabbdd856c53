package cli

import (
	"encoding/json"
	"strings"

	"github.com/JonMunkholm/mesalogs/internal/query"
	"github.com/spf13/cobra"
)

func newSelectCmd(a *app) *cobra.Command {
	var flags dirFlags
	cmd := &cobra.Command{
		Use:   "select <dir> <expr>",
		Short: "Print the models and profiles whose history rows match an expression",
		Long: `Evaluates an expression against every history row. Column names are
variables; header values are available as header.<name>. Rows where a
referenced column is NaN do not match.`,
		Example: `  mesalogs select ./LOGS 'star_age > 1e9 && log_L > 3'
  mesalogs select ./LOGS 'abs(log_Teff - 3.76) < 0.01'`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := query.Compile(strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			d, err := flags.open(a.cfg, args[0])
			if err != nil {
				return err
			}
			sel, err := q.Select(d)
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(sel)
		},
	}
	flags.register(cmd)
	return cmd
}
