package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a minimum gap between accepted attempts per key.
// Rejected attempts are not queued and do not push the window forward.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type Local struct {
	Gap time.Duration
	Now func() time.Time

	mu        sync.Mutex
	windows   map[string]*window
	lastPrune time.Time
}

type window struct {
	lim      *rate.Limiter
	accepted time.Time
}

func NewLocal(gap time.Duration) *Local {
	return &Local{Gap: gap, windows: map[string]*window{}}
}

func (l *Local) Allow(_ context.Context, key string) (bool, error) {
	now := time.Now()
	if l.Now != nil {
		now = l.Now()
	}
	return l.AllowAt(key, now), nil
}

// AllowAt reports whether an attempt at the given instant is accepted.
func (l *Local) AllowAt(key string, at time.Time) bool {
	if l.Gap <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.windows == nil {
		l.windows = map[string]*window{}
	}
	l.pruneLocked(at)
	w, ok := l.windows[key]
	if !ok {
		w = &window{lim: rate.NewLimiter(rate.Every(l.Gap), 1)}
		l.windows[key] = w
	}
	if !w.lim.AllowN(at, 1) {
		return false
	}
	w.accepted = at
	return true
}

// pruneLocked drops keys whose last accepted attempt is a full gap old; a
// fresh limiter would answer the same. Runs at most once per gap.
func (l *Local) pruneLocked(at time.Time) {
	if at.Sub(l.lastPrune) < l.Gap {
		return
	}
	l.lastPrune = at
	for key, w := range l.windows {
		if at.Sub(w.accepted) >= l.Gap {
			delete(l.windows, key)
		}
	}
}

// Len is the number of keys currently holding a window.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
