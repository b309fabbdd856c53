package cli

import (
	"encoding/json"
	"errors"

	"github.com/JonMunkholm/mesalogs/internal/mesa"
	"github.com/spf13/cobra"
)

// inspection is the JSON summary printed by inspect.
type inspection struct {
	Dir            string            `json:"dir"`
	HistoryRows    int               `json:"history_rows"`
	Columns        []string          `json:"columns"`
	Header         map[string]string `json:"header"`
	ModelRange     []int             `json:"model_range,omitempty"`
	Index          []mesa.IndexEntry `json:"index"`
	ProfilesOnDisk []int             `json:"profiles_on_disk"`
	MissingFiles   []int             `json:"missing_profile_files,omitempty"`
	Unindexed      []int             `json:"unindexed_profile_files,omitempty"`
}

func newInspectCmd(a *app) *cobra.Command {
	var flags dirFlags
	cmd := &cobra.Command{
		Use:   "inspect <dir>",
		Short: "Print a JSON summary of a logs directory",
		Example: `  mesalogs inspect ./LOGS
  mesalogs inspect --index-layout model,priority,profile ./LOGS`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := flags.open(a.cfg, args[0])
			if err != nil {
				return err
			}
			out, err := inspect(d)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	flags.register(cmd)
	return cmd
}

func inspect(d *mesa.LogDir) (inspection, error) {
	h := d.History()
	out := inspection{
		Dir:            d.Dir(),
		HistoryRows:    h.Len(),
		Columns:        h.ColumnNames(),
		Header:         make(map[string]string),
		Index:          d.Index().ByModel(),
		ProfilesOnDisk: d.ProfilesOnDisk(),
	}
	for _, n := range h.HeaderNames() {
		v, err := h.Header(n)
		if err != nil {
			return inspection{}, err
		}
		out.Header[n] = v.String()
	}

	models, err := h.ModelNumbers()
	if err != nil && !errors.Is(err, mesa.ErrKeyNotFound) {
		return inspection{}, err
	}
	if len(models) > 0 {
		out.ModelRange = []int{models[0], models[len(models)-1]}
	}

	for _, e := range out.Index {
		if _, ok := d.ProfilePath(e.Profile); !ok {
			out.MissingFiles = append(out.MissingFiles, e.Profile)
		}
	}
	for _, p := range out.ProfilesOnDisk {
		if !d.HasProfile(p) {
			out.Unindexed = append(out.Unindexed, p)
		}
	}
	return out, nil
}
