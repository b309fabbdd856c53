package web

// limiter.go bounds how many profile files the API parses at once.
//
// Profiles can run to hundreds of megabytes. Requests for profiles that are
// not yet cached take a slot; when all slots are occupied they wait up to
// maxWait before failing with ErrBusy. Cached profiles never wait.

import (
	"context"
	"errors"
	"time"
)

// ErrBusy is returned when no parse slot frees up in time. Clients should
// retry after a short delay.
var ErrBusy = errors.New("too many profiles being parsed, please try again later")

// DefaultMaxParses is the default limit for parallel profile parses.
const DefaultMaxParses = 4

// DefaultParseWait is how long to wait for a slot before rejecting.
const DefaultParseWait = 30 * time.Second

// ParseLimiter is a counting semaphore with a bounded wait.
type ParseLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
}

// NewParseLimiter allows at most limit concurrent parses. Non-positive
// arguments select the defaults.
func NewParseLimiter(limit int, maxWait time.Duration) *ParseLimiter {
	if limit <= 0 {
		limit = DefaultMaxParses
	}
	if maxWait <= 0 {
		maxWait = DefaultParseWait
	}
	return &ParseLimiter{slots: make(chan struct{}, limit), maxWait: maxWait}
}

// Acquire takes a slot. The caller must Release it.
func (l *ParseLimiter) Acquire(ctx context.Context) error {
	select {
	case l.slots <- struct{}{}:
		return nil
	default:
	}

	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrBusy
	}
}

// Release frees a slot taken by Acquire.
func (l *ParseLimiter) Release() { <-l.slots }

// LimiterStatus is a snapshot for /healthz.
type LimiterStatus struct {
	Active int `json:"active"`
	Max    int `json:"max"`
}

func (l *ParseLimiter) Status() LimiterStatus {
	return LimiterStatus{Active: len(l.slots), Max: cap(l.slots)}
}
