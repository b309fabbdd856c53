package mesa

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"
)

const testProfile = `1 2 3
model_number num_zones star_age
%d 2 %g

1 2
zone logT
1 7.%d
2 6.%d
`

// writeRun lays out a logs directory with three history rows, an index
// covering models 1 and 3, and profile files 1 and 2.
func writeRun(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		DefaultHistoryFile: sampleHistory,
		DefaultIndexFile:   "2 models.\n1 1 0\n3 2 0\n",
		"profile1.data":    fmt.Sprintf(testProfile, 1, 0.0, 1, 1),
		"profile2.data":    fmt.Sprintf(testProfile, 3, 3e4, 2, 2),
		"profile3.data.gz": "not a profile",
		"profiles.txt":     "not a profile either",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "profile9.data"), 0o755); err != nil {
		t.Fatal(err)
	}
	return dir
}

func openRun(t *testing.T, dir string, opts ...Option) *LogDir {
	t.Helper()
	d, err := Open(dir, opts...)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return d
}

func TestOpen_Scan(t *testing.T) {
	d := openRun(t, writeRun(t))

	if got := d.ProfilesOnDisk(); !slices.Equal(got, []int{1, 2}) {
		t.Errorf("ProfilesOnDisk() = %v, want [1 2]", got)
	}
	if d.History().Len() != 3 {
		t.Errorf("History().Len() = %d, want 3", d.History().Len())
	}
	if d.Index().Len() != 2 {
		t.Errorf("Index().Len() = %d, want 2", d.Index().Len())
	}
	if d.CachedProfiles() != 0 {
		t.Errorf("CachedProfiles() = %d after Open, want 0", d.CachedProfiles())
	}
	if !d.HasModel(3) || d.HasModel(2) {
		t.Error("HasModel() disagrees with the index")
	}
	if !d.HasProfile(2) || d.HasProfile(3) {
		t.Error("HasProfile() disagrees with the index")
	}
	if got := d.ModelNumbers(); !slices.Equal(got, []int{1, 3}) {
		t.Errorf("ModelNumbers() = %v, want [1 3]", got)
	}
	if got := d.ProfileNumbers(); !slices.Equal(got, []int{1, 2}) {
		t.Errorf("ProfileNumbers() = %v, want [1 2]", got)
	}
}

func TestLogDir_Profile(t *testing.T) {
	d := openRun(t, writeRun(t))

	p, err := d.Profile(2)
	if err != nil {
		t.Fatalf("Profile(2) error = %v", err)
	}
	model, err := p.Header(ModelNumberColumn)
	if err != nil || !model.Equal(IntVal(3)) {
		t.Errorf("Header(model_number) = %v, %v, want 3", model, err)
	}
	logT, _ := p.Column("logT")
	if !slices.Equal(logT, []float64{7.2, 6.2}) {
		t.Errorf("Column(logT) = %v, want [7.2 6.2]", logT)
	}

	again, err := d.Profile(2)
	if err != nil {
		t.Fatalf("Profile(2) second call error = %v", err)
	}
	if again != p {
		t.Error("Profile(2) returned a different table on the second call")
	}
	if d.CachedProfiles() != 1 {
		t.Errorf("CachedProfiles() = %d, want 1", d.CachedProfiles())
	}
	if !d.IsCached(2) || d.IsCached(1) {
		t.Errorf("IsCached(2), IsCached(1) = %v, %v, want true, false", d.IsCached(2), d.IsCached(1))
	}
}

func TestLogDir_ProfileNotFound(t *testing.T) {
	d := openRun(t, writeRun(t))

	for _, n := range []int{99, 3, 9} {
		_, err := d.Profile(n)
		if !errors.Is(err, ErrKeyNotFound) {
			t.Errorf("Profile(%d) error = %v, want ErrKeyNotFound", n, err)
		}
	}
	if _, err := d.ProfileByModel(2); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("ProfileByModel(2) error = %v, want ErrKeyNotFound", err)
	}
}

func TestLogDir_ProfileByModel(t *testing.T) {
	d := openRun(t, writeRun(t))

	byModel, err := d.ProfileByModel(3)
	if err != nil {
		t.Fatalf("ProfileByModel(3) error = %v", err)
	}
	byNumber, _ := d.Profile(2)
	if byModel != byNumber {
		t.Error("ProfileByModel(3) and Profile(2) should be the same cached table")
	}

	last, err := d.LastProfile()
	if err != nil {
		t.Fatalf("LastProfile() error = %v", err)
	}
	if last != byNumber {
		t.Error("LastProfile() should be profile 2")
	}
}

func TestLogDir_Select(t *testing.T) {
	d := openRun(t, writeRun(t))

	tests := []struct {
		name         string
		pred         Predicate
		wantModels   []int
		wantProfiles []int
	}{
		{"all rows", func(Row) bool { return true }, []int{1, 2, 3}, []int{1, 2}},
		{"no rows", func(Row) bool { return false }, []int{}, []int{}},
		{"older than 1e4", func(r Row) bool { return r["star_age"] > 1e4 }, []int{2, 3}, []int{2}},
		{"only unindexed model", func(r Row) bool { return r["model_number"] == 2 }, []int{2}, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			models, err := d.SelectModels(tt.pred)
			if err != nil {
				t.Fatalf("SelectModels() error = %v", err)
			}
			if !slices.Equal(models, tt.wantModels) {
				t.Errorf("SelectModels() = %v, want %v", models, tt.wantModels)
			}
			profiles, err := d.SelectProfiles(tt.pred)
			if err != nil {
				t.Fatalf("SelectProfiles() error = %v", err)
			}
			if !slices.Equal(profiles, tt.wantProfiles) {
				t.Errorf("SelectProfiles() = %v, want %v", profiles, tt.wantProfiles)
			}
		})
	}
}

func TestLogDir_ProfilesFor(t *testing.T) {
	d := openRun(t, writeRun(t))

	tests := []struct {
		models []int
		want   []int
	}{
		{nil, []int{}},
		{[]int{1, 2, 3}, []int{1, 2}},
		{[]int{3, 1}, []int{2, 1}},
		{[]int{2, 7}, []int{}},
	}

	for _, tt := range tests {
		if got := d.ProfilesFor(tt.models); !slices.Equal(got, tt.want) {
			t.Errorf("ProfilesFor(%v) = %v, want %v", tt.models, got, tt.want)
		}
	}
}

func TestLogDir_SelectSeesRows(t *testing.T) {
	d := openRun(t, writeRun(t))

	var seen []Row
	if _, err := d.SelectModels(func(r Row) bool {
		seen = append(seen, r)
		return true
	}); err != nil {
		t.Fatal(err)
	}
	for i, r := range seen {
		want, _ := d.History().Row(i)
		if len(r) != len(want) || r["star_age"] != want["star_age"] || r["log_L"] != want["log_L"] {
			t.Errorf("predicate row %d = %v, want %v", i, r, want)
		}
	}
}

func TestOpen_WithoutMemoize(t *testing.T) {
	d := openRun(t, writeRun(t), WithMemoize(false))

	a, err := d.Profile(1)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := d.Profile(1)
	if a == b {
		t.Error("Profile() should parse afresh when memoization is off")
	}
	if !a.Equal(b) {
		t.Error("two parses of the same file should be equal")
	}
	if d.CachedProfiles() != 0 {
		t.Errorf("CachedProfiles() = %d, want 0", d.CachedProfiles())
	}
}

func TestOpen_ScrubRestarts(t *testing.T) {
	dir := writeRun(t)
	history := "1\nx\n1\n\n1 2\nmodel_number star_age\n1 0\n2 1\n3 2\n2 1.5\n3 2.5\n"
	if err := os.WriteFile(filepath.Join(dir, DefaultHistoryFile), []byte(history), 0o644); err != nil {
		t.Fatal(err)
	}

	scrubbed := openRun(t, dir)
	if models, _ := scrubbed.SelectModels(func(Row) bool { return true }); !slices.Equal(models, []int{1, 2, 3}) {
		t.Errorf("scrubbed SelectModels() = %v, want [1 2 3]", models)
	}

	raw := openRun(t, dir, WithScrubRestarts(false))
	if raw.History().Len() != 5 {
		t.Errorf("unscrubbed History().Len() = %d, want 5", raw.History().Len())
	}
}

func TestOpen_CustomNames(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("run.log", sampleHistory)
	write("index.txt", "1\n3 2 4\n")
	write("snap_4.log", fmt.Sprintf(testProfile, 3, 3e4, 2, 2))

	d := openRun(t, dir,
		WithHistoryFile("run.log"),
		WithIndexFile("index.txt"),
		WithProfileNaming("snap_", "log"),
		WithIndexLayout(LayoutModelPriorityProfile),
	)
	p, err := d.ProfileByModel(3)
	if err != nil {
		t.Fatalf("ProfileByModel(3) error = %v", err)
	}
	if p.Name() != filepath.Join(dir, "snap_4.log") {
		t.Errorf("Name() = %q", p.Name())
	}
}

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(t *testing.T, dir string) string
		wantErr error
	}{
		{
			name:    "missing directory",
			mutate:  func(t *testing.T, dir string) string { return filepath.Join(dir, "nope") },
			wantErr: fs.ErrNotExist,
		},
		{
			name: "missing history",
			mutate: func(t *testing.T, dir string) string {
				os.Remove(filepath.Join(dir, DefaultHistoryFile))
				return dir
			},
			wantErr: fs.ErrNotExist,
		},
		{
			name: "missing index",
			mutate: func(t *testing.T, dir string) string {
				os.Remove(filepath.Join(dir, DefaultIndexFile))
				return dir
			},
			wantErr: fs.ErrNotExist,
		},
		{
			name: "history without model numbers",
			mutate: func(t *testing.T, dir string) string {
				os.WriteFile(filepath.Join(dir, DefaultHistoryFile), []byte("1\nx\n1\n\n1\nstar_age\n0\n"), 0o644)
				return dir
			},
			wantErr: ErrFormat,
		},
		{
			name: "malformed index",
			mutate: func(t *testing.T, dir string) string {
				os.WriteFile(filepath.Join(dir, DefaultIndexFile), []byte("1\n1 x 1\n"), 0o644)
				return dir
			},
			wantErr: ErrFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := tt.mutate(t, writeRun(t))
			d, err := Open(dir)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Open() error = %v, want %v", err, tt.wantErr)
			}
			if d != nil {
				t.Error("Open() returned a LogDir alongside an error")
			}
		})
	}
}

func TestOpen_NotADirectory(t *testing.T) {
	dir := writeRun(t)
	if _, err := Open(filepath.Join(dir, DefaultHistoryFile)); err == nil {
		t.Error("Open() on a file should fail")
	}
}

func TestLogDir_BadProfileFile(t *testing.T) {
	dir := writeRun(t)
	if err := os.WriteFile(filepath.Join(dir, "profile1.data"), []byte("1\nx\n1\n\n1 2\na b\n1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	d := openRun(t, dir)

	if _, err := d.Profile(1); !errors.Is(err, ErrFormat) {
		t.Errorf("Profile(1) error = %v, want ErrFormat", err)
	}
	if d.CachedProfiles() != 0 {
		t.Error("a failed parse must not be cached")
	}
}

func TestLogDir_ProfileRemovedAfterOpen(t *testing.T) {
	dir := writeRun(t)
	d := openRun(t, dir)
	if err := os.Remove(filepath.Join(dir, "profile2.data")); err != nil {
		t.Fatal(err)
	}

	_, err := d.Profile(2)
	if !errors.Is(err, ErrFormat) || !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Profile(2) error = %v, want ErrFormat wrapping fs.ErrNotExist", err)
	}
}

type countingObserver struct {
	mu     sync.Mutex
	parsed map[string]int
	failed int
	hits   int
	misses int
}

func (o *countingObserver) FileParsed(kind string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.parsed == nil {
		o.parsed = make(map[string]int)
	}
	o.parsed[kind]++
	if err != nil {
		o.failed++
	}
}

func (o *countingObserver) ProfileCache(hit bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if hit {
		o.hits++
	} else {
		o.misses++
	}
}

func TestLogDir_Observer(t *testing.T) {
	obs := &countingObserver{}
	d := openRun(t, writeRun(t), WithObserver(obs))

	d.Profile(1)
	d.Profile(1)
	d.Profile(2)

	if obs.parsed[FileHistory] != 1 || obs.parsed[FileIndex] != 1 || obs.parsed[FileProfile] != 2 {
		t.Errorf("parsed = %v, want history 1, index 1, profile 2", obs.parsed)
	}
	if obs.hits != 1 || obs.misses != 2 {
		t.Errorf("hits/misses = %d/%d, want 1/2", obs.hits, obs.misses)
	}
	if obs.failed != 0 {
		t.Errorf("failed = %d, want 0", obs.failed)
	}
}

func TestLogDir_ConcurrentProfile(t *testing.T) {
	d := openRun(t, writeRun(t))

	const workers = 8
	tables := make([]*Table, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := d.Profile(1)
			if err != nil {
				t.Errorf("Profile(1) error = %v", err)
				return
			}
			if _, err := p.Column("logT"); err != nil {
				t.Errorf("Column(logT) error = %v", err)
			}
			tables[i] = p
		}()
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if tables[i] != tables[0] {
			t.Fatalf("worker %d got a different table", i)
		}
	}
}
