package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/JonMunkholm/mesalogs/internal/mesa"
	"github.com/JonMunkholm/mesalogs/internal/query"
)

const history = `1 2
initial_mass version_number
1.0 "r24.03.1"

1 2
model_number star_age
1 0
2 1e9
3 2e9
2 1.5e9
3 2.5e9
4 3e9
`

const profile = "1\nmodel_number\n%d\n\n1\nzone\n1\n"

// writeRun lays out a run whose history restarts from model 2. Profile 2
// is indexed but never written and profile 9 exists without an entry.
func writeRun(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		mesa.DefaultHistoryFile: history,
		mesa.DefaultIndexFile:   "3\n1 1 1\n3 2 1\n4 3 1\n",
		"profile1.data":         strings.Replace(profile, "%d", "1", 1),
		"profile3.data":         strings.Replace(profile, "%d", "4", 1),
		"profile9.data":         strings.Replace(profile, "%d", "9", 1),
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestInspect(t *testing.T) {
	dir := writeRun(t)

	out, err := run(t, "inspect", dir)
	if err != nil {
		t.Fatalf("inspect error = %v", err)
	}

	var got inspection
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("inspect output is not JSON: %v\n%s", err, out)
	}
	if got.HistoryRows != 4 {
		t.Errorf("HistoryRows = %d, want 4 after restart scrubbing", got.HistoryRows)
	}
	if !slices.Equal(got.ModelRange, []int{1, 4}) {
		t.Errorf("ModelRange = %v, want [1 4]", got.ModelRange)
	}
	if got.Header["version_number"] != "r24.03.1" {
		t.Errorf("Header = %v", got.Header)
	}
	if !slices.Equal(got.MissingFiles, []int{2}) {
		t.Errorf("MissingFiles = %v, want [2]", got.MissingFiles)
	}
	if !slices.Equal(got.Unindexed, []int{9}) {
		t.Errorf("Unindexed = %v, want [9]", got.Unindexed)
	}
	if len(got.Index) != 3 || got.Index[1].Model != 3 {
		t.Errorf("Index = %+v", got.Index)
	}

	out, err = run(t, "inspect", "--keep-restarts", dir)
	if err != nil {
		t.Fatalf("inspect --keep-restarts error = %v", err)
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatal(err)
	}
	if got.HistoryRows != 6 {
		t.Errorf("HistoryRows = %d with --keep-restarts, want 6", got.HistoryRows)
	}
}

func TestSelect(t *testing.T) {
	dir := writeRun(t)

	out, err := run(t, "select", dir, "star_age", ">=", "2e9")
	if err != nil {
		t.Fatalf("select error = %v", err)
	}
	var sel query.Selection
	if err := json.Unmarshal([]byte(out), &sel); err != nil {
		t.Fatalf("select output is not JSON: %v\n%s", err, out)
	}
	if !slices.Equal(sel.Models, []int{3, 4}) {
		t.Errorf("Models = %v, want [3 4]", sel.Models)
	}
	if !slices.Equal(sel.Profiles, []int{2, 3}) {
		t.Errorf("Profiles = %v, want [2 3]", sel.Profiles)
	}
}

const model = `! saved model

      version_number   'r24.03.1'
        model_number   12
            star_age   1.5D+09

      lnd     lnT
  1  1.0D+00  8.0D+00
  2  2.0D+00  7.5D+00
`

func TestTable(t *testing.T) {
	dir := writeRun(t)
	modelPath := filepath.Join(dir, "final.mod")
	if err := os.WriteFile(modelPath, []byte(model), 0o644); err != nil {
		t.Fatal(err)
	}
	// The same model under a name that does not say so.
	renamed := filepath.Join(dir, "final.txt")
	if err := os.WriteFile(renamed, []byte(model), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		args        []string
		wantFormat  string
		wantRows    int
		wantColumns []string
	}{
		{"history", []string{"table", filepath.Join(dir, mesa.DefaultHistoryFile)}, "log", 6, []string{"model_number", "star_age"}},
		{"model by suffix", []string{"table", modelPath}, "model", 2, []string{"zone", "lnd", "lnT"}},
		{"model by flag", []string{"table", "--model", renamed}, "model", 2, []string{"zone", "lnd", "lnT"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.args...)
			if err != nil {
				t.Fatalf("table error = %v", err)
			}
			var got tableSummary
			if err := json.Unmarshal([]byte(out), &got); err != nil {
				t.Fatalf("table output is not JSON: %v\n%s", err, out)
			}
			if got.Format != tt.wantFormat || got.Rows != tt.wantRows {
				t.Errorf("format, rows = %q, %d, want %q, %d", got.Format, got.Rows, tt.wantFormat, tt.wantRows)
			}
			if !slices.Equal(got.Columns, tt.wantColumns) {
				t.Errorf("Columns = %v, want %v", got.Columns, tt.wantColumns)
			}
		})
	}

	out, err := run(t, "table", modelPath)
	if err != nil {
		t.Fatal(err)
	}
	var got tableSummary
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatal(err)
	}
	if got.Header["star_age"] != "1.5e+09" || got.Header["version_number"] != "r24.03.1" {
		t.Errorf("Header = %v", got.Header)
	}

	if _, err := run(t, "table", renamed); !errors.Is(err, mesa.ErrFormat) {
		t.Errorf("table on a model without --model: error = %v, want ErrFormat", err)
	}
}

func TestCommandErrors(t *testing.T) {
	dir := writeRun(t)

	tests := []struct {
		name string
		args []string
		is   error
	}{
		{"missing directory", []string{"inspect", filepath.Join(dir, "absent")}, os.ErrNotExist},
		{"bad expression", []string{"select", dir, "star_age >"}, query.ErrInvalid},
		{"unknown column", []string{"select", dir, "log_L > 1"}, query.ErrInvalid},
		{"bad layout", []string{"inspect", "--index-layout", "profile,model", dir}, nil},
		{"explicit env file missing", []string{"--env-file", filepath.Join(dir, "absent.env"), "inspect", dir}, os.ErrNotExist},
		{"wrong arg count", []string{"inspect"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("error = %v, want %v", err, tt.is)
			}
		})
	}
}

func TestServe_NoRuns(t *testing.T) {
	t.Setenv("MESA_LOG_DIRS", "")
	t.Setenv("MESA_RUNS_FILE", "")
	if _, err := run(t, "serve"); err == nil || !strings.Contains(err.Error(), "no runs configured") {
		t.Errorf("serve error = %v, want no runs configured", err)
	}
}

func TestEnvFile(t *testing.T) {
	dir := writeRun(t)
	env := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(env, []byte("MESA_SCRUB_RESTARTS=false\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MESA_SCRUB_RESTARTS", "true")

	out, err := run(t, "--env-file", env, "inspect", dir)
	if err != nil {
		t.Fatalf("inspect error = %v", err)
	}
	var got inspection
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatal(err)
	}
	if got.HistoryRows != 6 {
		t.Errorf("HistoryRows = %d, want 6 with scrubbing disabled by env file", got.HistoryRows)
	}
}
