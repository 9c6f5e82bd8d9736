package watcher

import (
	"os"
	"time"
)

// pendingWrite tracks one file whose size and mtime have not yet been quiet
// for the stability threshold.
type pendingWrite struct {
	abs     string
	created bool
	size    int64
	mtime   time.Time
	since   time.Time
}

// stabilizer holds files until their writes settle, so an editor that saves
// through several syscalls is reported once.
type stabilizer struct {
	threshold time.Duration
	pending   map[string]*pendingWrite
	order     []string
}

// settled is a file that stopped changing.
type settled struct {
	rel     string
	created bool
}

func newStabilizer(threshold time.Duration) *stabilizer {
	return &stabilizer{
		threshold: threshold,
		pending:   make(map[string]*pendingWrite),
	}
}

// touch records activity on rel. A pending create stays a create until it
// settles.
func (s *stabilizer) touch(rel, abs string, created bool, now time.Time) {
	if p, ok := s.pending[rel]; ok {
		p.created = p.created || created
		p.since = now
		p.size, p.mtime = statSizeMtime(abs)
		return
	}
	p := &pendingWrite{abs: abs, created: created, since: now}
	p.size, p.mtime = statSizeMtime(abs)
	s.pending[rel] = p
	s.order = append(s.order, rel)
}

// forget drops rel and everything below it. It reports whether a pending
// create for exactly rel was dropped.
func (s *stabilizer) forget(rel string) (wasPendingCreate bool) {
	if p, ok := s.pending[rel]; ok && p.created {
		wasPendingCreate = true
	}
	for k := range s.pending {
		if isSelfOrDescendant(rel, k) {
			delete(s.pending, k)
		}
	}
	s.compact()
	return wasPendingCreate
}

func (s *stabilizer) empty() bool {
	return len(s.pending) == 0
}

// poll re-stats every pending file and returns those that have been quiet for
// the threshold, in arrival order. Files that vanished are dropped silently;
// the removal itself arrives as its own event.
func (s *stabilizer) poll(now time.Time) []settled {
	var out []settled
	for _, rel := range s.order {
		p, ok := s.pending[rel]
		if !ok {
			continue
		}
		info, err := os.Stat(p.abs)
		if err != nil {
			delete(s.pending, rel)
			continue
		}
		if info.Size() != p.size || !info.ModTime().Equal(p.mtime) {
			p.size = info.Size()
			p.mtime = info.ModTime()
			p.since = now
			continue
		}
		if now.Sub(p.since) >= s.threshold {
			out = append(out, settled{rel: rel, created: p.created})
			delete(s.pending, rel)
		}
	}
	s.compact()
	return out
}

func (s *stabilizer) discard() {
	s.pending = make(map[string]*pendingWrite)
	s.order = nil
}

func (s *stabilizer) compact() {
	kept := s.order[:0]
	for _, rel := range s.order {
		if _, ok := s.pending[rel]; ok {
			kept = append(kept, rel)
		}
	}
	s.order = kept
}

func statSizeMtime(abs string) (int64, time.Time) {
	info, err := os.Stat(abs)
	if err != nil {
		return -1, time.Time{}
	}
	return info.Size(), info.ModTime()
}
