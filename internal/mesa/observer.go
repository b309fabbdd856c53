package mesa

import "time"

// File kinds reported to an Observer.
const (
	FileHistory = "history"
	FileProfile = "profile"
	FileIndex   = "index"
)

// Observer receives parse and cache events from a LogDir. Implementations
// must be safe for concurrent use.
type Observer interface {
	FileParsed(kind string, d time.Duration, err error)
	ProfileCache(hit bool)
}

type nopObserver struct{}

func (nopObserver) FileParsed(string, time.Duration, error) {}
func (nopObserver) ProfileCache(bool)                        {}
