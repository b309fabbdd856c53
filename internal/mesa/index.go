package mesa

import (
	"cmp"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
)

// IndexEntry is one profile declared in the profile index.
type IndexEntry struct {
	Model    int `json:"model_number"`
	Profile  int `json:"profile_number"`
	Priority int `json:"priority"`
}

// IndexLayout gives the column order of the triples in an index file.
type IndexLayout uint8

const (
	// LayoutModelProfilePriority reads "model profile priority".
	LayoutModelProfilePriority IndexLayout = iota
	// LayoutModelPriorityProfile reads "model priority profile".
	LayoutModelPriorityProfile
)

// ParseIndexLayout accepts "model,profile,priority" or "model,priority,profile".
func ParseIndexLayout(s string) (IndexLayout, error) {
	switch strings.ReplaceAll(strings.ToLower(s), " ", "") {
	case "", "model,profile,priority":
		return LayoutModelProfilePriority, nil
	case "model,priority,profile":
		return LayoutModelPriorityProfile, nil
	default:
		return 0, fmt.Errorf("unknown index layout %q", s)
	}
}

func (l IndexLayout) String() string {
	if l == LayoutModelPriorityProfile {
		return "model,priority,profile"
	}
	return "model,profile,priority"
}

func (l IndexLayout) entry(a, b, c int) IndexEntry {
	if l == LayoutModelPriorityProfile {
		return IndexEntry{Model: a, Priority: b, Profile: c}
	}
	return IndexEntry{Model: a, Profile: b, Priority: c}
}

// ProfileIndex maps model numbers to profile numbers and back.
type ProfileIndex struct {
	name      string
	entries   []IndexEntry
	byModel   map[int]int // model -> position in entries
	byProfile map[int]int // profile -> position in entries
}

// ReadIndex parses the profile index at path.
func ReadIndex(path string, layout IndexLayout, logger *slog.Logger) (*ProfileIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, unreadable(path, err)
	}
	defer f.Close()

	return ParseIndex(f, path, layout, logger)
}

// ParseIndex reads a profile index. The first line holds the record count;
// a count that disagrees with the records that follow is logged, not fatal.
func ParseIndex(r io.Reader, name string, layout IndexLayout, logger *slog.Logger) (*ProfileIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}
	lines, err := readLines(r)
	if err != nil {
		return nil, unreadable(name, err)
	}

	pos := 0
	for pos < len(lines) && lines[pos].blank() {
		pos++
	}
	if pos == len(lines) {
		return nil, formatErr(name, 0, "empty file")
	}

	first := lines[pos]
	declared, err := strconv.Atoi(strings.Fields(first.text)[0])
	if err != nil {
		return nil, formatErr(name, first.num, "first line must start with the record count")
	}

	idx := &ProfileIndex{
		name:      name,
		byModel:   make(map[int]int),
		byProfile: make(map[int]int),
	}
	for _, ln := range lines[pos+1:] {
		if ln.blank() {
			continue
		}
		fields := strings.Fields(ln.text)
		if len(fields) != 3 {
			return nil, formatErr(name, ln.num, "want 3 integers, got %d fields", len(fields))
		}
		var nums [3]int
		for i, f := range fields {
			n, err := strconv.Atoi(f)
			if err != nil {
				return nil, formatErr(name, ln.num, "%q is not an integer", f)
			}
			nums[i] = n
		}
		e := layout.entry(nums[0], nums[1], nums[2])
		if _, dup := idx.byModel[e.Model]; dup {
			return nil, formatErr(name, ln.num, "model %d listed twice", e.Model)
		}
		if _, dup := idx.byProfile[e.Profile]; dup {
			return nil, formatErr(name, ln.num, "profile %d listed twice", e.Profile)
		}
		idx.byModel[e.Model] = len(idx.entries)
		idx.byProfile[e.Profile] = len(idx.entries)
		idx.entries = append(idx.entries, e)
	}

	if declared != len(idx.entries) {
		logger.Warn("profile index count is stale",
			"path", name,
			"declared", declared,
			"entries", len(idx.entries),
		)
	}
	return idx, nil
}

// Name returns the path the index was read from.
func (x *ProfileIndex) Name() string { return x.name }

// Len returns the number of entries.
func (x *ProfileIndex) Len() int { return len(x.entries) }

// ProfileForModel returns the profile number saved at model.
func (x *ProfileIndex) ProfileForModel(model int) (int, error) {
	i, ok := x.byModel[model]
	if !ok {
		return 0, notFound(KindModel, model)
	}
	return x.entries[i].Profile, nil
}

// ModelForProfile returns the model number profile was saved at.
func (x *ProfileIndex) ModelForProfile(profile int) (int, error) {
	i, ok := x.byProfile[profile]
	if !ok {
		return 0, notFound(KindProfile, profile)
	}
	return x.entries[i].Model, nil
}

func (x *ProfileIndex) HasModel(model int) bool {
	_, ok := x.byModel[model]
	return ok
}

func (x *ProfileIndex) HasProfile(profile int) bool {
	_, ok := x.byProfile[profile]
	return ok
}

// All yields entries in file order. Each call starts a fresh pass.
func (x *ProfileIndex) All() iter.Seq[IndexEntry] {
	return func(yield func(IndexEntry) bool) {
		for _, e := range x.entries {
			if !yield(e) {
				return
			}
		}
	}
}

// Entries returns a copy of the entries in file order.
func (x *ProfileIndex) Entries() []IndexEntry { return slices.Clone(x.entries) }

// ByModel returns a copy of the entries sorted by model number.
func (x *ProfileIndex) ByModel() []IndexEntry {
	out := slices.Clone(x.entries)
	slices.SortFunc(out, func(a, b IndexEntry) int { return cmp.Compare(a.Model, b.Model) })
	return out
}
