package cli

import (
	"encoding/json"

	"github.com/JonMunkholm/mesalogs/internal/mesa"
	"github.com/spf13/cobra"
)

// tableSummary is the JSON summary printed by table.
type tableSummary struct {
	File    string            `json:"file"`
	Format  string            `json:"format"`
	Rows    int               `json:"rows"`
	Columns []string          `json:"columns"`
	Header  map[string]string `json:"header"`
}

func newTableCmd() *cobra.Command {
	var model bool
	cmd := &cobra.Command{
		Use:   "table <file>",
		Short: "Print a JSON summary of one history, profile or model file",
		Long: `Parses a single file. Files ending in .mod are read as saved models,
with an implied leading zone column; anything else as history or profile
output. --model forces the model format.`,
		Example: `  mesalogs table ./LOGS/profile12.data
  mesalogs table final.mod`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			read := mesa.ReadTable
			if model {
				read = mesa.ReadModel
			}
			t, err := read(args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summarize(t, model || mesa.IsModelFile(args[0])))
		},
	}
	cmd.Flags().BoolVar(&model, "model", false, "read the file as a saved model whatever its extension")
	return cmd
}

func summarize(t *mesa.Table, model bool) tableSummary {
	out := tableSummary{
		File:    t.Name(),
		Format:  "log",
		Rows:    t.Len(),
		Columns: t.ColumnNames(),
		Header:  make(map[string]string),
	}
	if model {
		out.Format = "model"
	}
	for _, n := range t.HeaderNames() {
		v, _ := t.Header(n)
		out.Header[n] = v.String()
	}
	return out
}
