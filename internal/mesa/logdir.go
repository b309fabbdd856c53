package mesa

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"sync"
	"time"
)

// Default file names inside a logs directory.
const (
	DefaultHistoryFile   = "history.data"
	DefaultIndexFile     = "profiles.index"
	DefaultProfilePrefix = "profile"
	DefaultProfileSuffix = "data"
)

// Predicate selects history rows.
type Predicate func(Row) bool

// Option configures Open.
type Option func(*options)

type options struct {
	historyFile   string
	indexFile     string
	profilePrefix string
	profileSuffix string
	layout        IndexLayout
	memoize       bool
	scrub         bool
	logger        *slog.Logger
	observer      Observer
}

func defaultOptions() options {
	return options{
		historyFile:   DefaultHistoryFile,
		indexFile:     DefaultIndexFile,
		profilePrefix: DefaultProfilePrefix,
		profileSuffix: DefaultProfileSuffix,
		layout:        LayoutModelProfilePriority,
		memoize:       true,
		scrub:         true,
	}
}

func WithHistoryFile(name string) Option { return func(o *options) { o.historyFile = name } }
func WithIndexFile(name string) Option   { return func(o *options) { o.indexFile = name } }

// WithProfileNaming sets the profile file pattern to prefix<N>.suffix, or
// prefix<N> when suffix is empty.
func WithProfileNaming(prefix, suffix string) Option {
	return func(o *options) {
		o.profilePrefix = prefix
		o.profileSuffix = suffix
	}
}

func WithIndexLayout(l IndexLayout) Option { return func(o *options) { o.layout = l } }

// WithMemoize controls whether parsed profiles are cached. Default true.
func WithMemoize(on bool) Option { return func(o *options) { o.memoize = on } }

// WithScrubRestarts controls whether history rows superseded by a restart
// are dropped at Open. Default true.
func WithScrubRestarts(on bool) Option { return func(o *options) { o.scrub = on } }

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

func WithObserver(obs Observer) Option { return func(o *options) { o.observer = obs } }

// LogDir is one run's logs directory: the history, the profile index and
// the profile files found on disk. Profiles are parsed on first request.
type LogDir struct {
	dir     string
	opts    options
	history *Table
	index   *ProfileIndex

	profilePaths map[int]string

	mu       sync.Mutex
	profiles map[int]*Table
}

// Open reads the history and index in dir and records which profile files
// exist. Profile contents are not read.
func Open(dir string, opts ...Option) (*LogDir, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open log dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open log dir: %s is not a directory", dir)
	}

	d := &LogDir{
		dir:      dir,
		opts:     o,
		profiles: make(map[int]*Table),
	}

	if err := d.readHistory(); err != nil {
		return nil, err
	}
	if err := d.readIndex(); err != nil {
		return nil, err
	}
	if err := d.scanProfiles(); err != nil {
		return nil, err
	}

	o.logger.Debug("opened log dir",
		"dir", dir,
		"history_rows", d.history.Len(),
		"index_entries", d.index.Len(),
		"profile_files", len(d.profilePaths),
	)
	return d, nil
}

func (d *LogDir) readHistory() error {
	path := filepath.Join(d.dir, d.opts.historyFile)
	start := time.Now()
	h, err := ReadTable(path)
	if err == nil && !h.HasColumn(ModelNumberColumn) {
		err = formatErr(path, 0, "history has no %s column", ModelNumberColumn)
	}
	d.opts.observer.FileParsed(FileHistory, time.Since(start), err)
	if err != nil {
		return err
	}

	if d.opts.scrub {
		var removed int
		h, removed = h.WithoutRestarts()
		if removed > 0 {
			d.opts.logger.Info("dropped history rows superseded by restarts",
				"path", path,
				"removed", removed,
			)
		}
	}
	d.history = h
	return nil
}

func (d *LogDir) readIndex() error {
	path := filepath.Join(d.dir, d.opts.indexFile)
	start := time.Now()
	idx, err := ReadIndex(path, d.opts.layout, d.opts.logger)
	d.opts.observer.FileParsed(FileIndex, time.Since(start), err)
	if err != nil {
		return err
	}
	d.index = idx
	return nil
}

func (d *LogDir) scanProfiles() error {
	suffix := ""
	if d.opts.profileSuffix != "" {
		suffix = `\.` + regexp.QuoteMeta(d.opts.profileSuffix)
	}
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(d.opts.profilePrefix) + `(\d+)` + suffix + `$`)

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return fmt.Errorf("scan profiles: %w", err)
	}

	d.profilePaths = make(map[int]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := pattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		// profile7.data and profile007.data both claim 7; keep the first seen.
		if prev, dup := d.profilePaths[n]; dup {
			d.opts.logger.Warn("two files for one profile number",
				"profile", n, "kept", prev, "ignored", e.Name())
			continue
		}
		d.profilePaths[n] = filepath.Join(d.dir, e.Name())
	}
	return nil
}

// Dir returns the directory the run was opened from.
func (d *LogDir) Dir() string { return d.dir }

// History returns the run's history table.
func (d *LogDir) History() *Table { return d.history }

// Index returns the run's profile index.
func (d *LogDir) Index() *ProfileIndex { return d.index }

// ProfilePath returns the file for profile, if one was found on disk.
func (d *LogDir) ProfilePath(profile int) (string, bool) {
	p, ok := d.profilePaths[profile]
	return p, ok
}

// ProfilesOnDisk returns the profile numbers with a file, ascending.
func (d *LogDir) ProfilesOnDisk() []int {
	out := make([]int, 0, len(d.profilePaths))
	for n := range d.profilePaths {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

func (d *LogDir) HasModel(model int) bool     { return d.index.HasModel(model) }
func (d *LogDir) HasProfile(profile int) bool { return d.index.HasProfile(profile) }

// ModelNumbers returns the indexed model numbers, ascending.
func (d *LogDir) ModelNumbers() []int {
	entries := d.index.ByModel()
	out := make([]int, len(entries))
	for i, e := range entries {
		out[i] = e.Model
	}
	return out
}

// ProfileNumbers returns the indexed profile numbers ordered by model number.
func (d *LogDir) ProfileNumbers() []int {
	entries := d.index.ByModel()
	out := make([]int, len(entries))
	for i, e := range entries {
		out[i] = e.Profile
	}
	return out
}

// Profile returns the parsed profile file for profile number n.
func (d *LogDir) Profile(n int) (*Table, error) {
	path, ok := d.profilePaths[n]
	if !ok {
		return nil, notFound(KindProfile, n)
	}

	if d.opts.memoize {
		d.mu.Lock()
		t, hit := d.profiles[n]
		d.mu.Unlock()
		d.opts.observer.ProfileCache(hit)
		if hit {
			return t, nil
		}
	}

	start := time.Now()
	t, err := ReadTable(path)
	d.opts.observer.FileParsed(FileProfile, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	d.opts.logger.Debug("parsed profile", "profile", n, "path", path, "rows", t.Len())

	if !d.opts.memoize {
		return t, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if cached, ok := d.profiles[n]; ok {
		return cached, nil
	}
	d.profiles[n] = t
	return t, nil
}

// ProfileByModel returns the profile saved at model.
func (d *LogDir) ProfileByModel(model int) (*Table, error) {
	n, err := d.index.ProfileForModel(model)
	if err != nil {
		return nil, err
	}
	return d.Profile(n)
}

// LastProfile returns the profile with the largest indexed model number.
func (d *LogDir) LastProfile() (*Table, error) {
	nums := d.ProfileNumbers()
	if len(nums) == 0 {
		return nil, notFound(KindProfile, "last")
	}
	return d.Profile(nums[len(nums)-1])
}

// SelectModels returns, in history row order, the model number of every
// history row for which pred holds.
func (d *LogDir) SelectModels(pred Predicate) ([]int, error) {
	models, err := d.history.ModelNumbers()
	if err != nil {
		return nil, err
	}
	out := make([]int, 0)
	for i := range d.history.Len() {
		if pred(d.history.row(i)) {
			out = append(out, models[i])
		}
	}
	return out, nil
}

// SelectProfiles maps SelectModels through the index. Selected models that
// have no profile are skipped.
func (d *LogDir) SelectProfiles(pred Predicate) ([]int, error) {
	models, err := d.SelectModels(pred)
	if err != nil {
		return nil, err
	}
	return d.ProfilesFor(models), nil
}

// ProfilesFor maps model numbers to profile numbers, keeping their order.
// Models the index does not list are skipped.
func (d *LogDir) ProfilesFor(models []int) []int {
	out := make([]int, 0, len(models))
	for _, m := range models {
		if p, err := d.index.ProfileForModel(m); err == nil {
			out = append(out, p)
		}
	}
	return out
}

// IsCached reports whether profile n is memoized.
func (d *LogDir) IsCached(n int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.profiles[n]
	return ok
}

// CachedProfiles returns how many profiles are memoized.
func (d *LogDir) CachedProfiles() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.profiles)
}
