// Package profiling records nested timing spans and pprof profiles for
// lore commands.
package profiling

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Stopper ends a span started with Start.
type Stopper interface {
	Stop()
}

type span struct {
	name     string
	start    time.Time
	duration time.Duration
	children []*span
	recorder *Recorder
}

func (s *span) Stop() {
	s.recorder.end(s)
}

// Recorder collects a tree of spans. Spans started while another is open
// become its children.
type Recorder struct {
	mu      sync.Mutex
	enabled bool
	root    *span
	open    []*span
}

var defaultRecorder = &Recorder{}

// Enable starts recording on the process-wide recorder.
func Enable() {
	defaultRecorder.Enable()
}

// Enabled reports whether the process-wide recorder is on.
func Enabled() bool {
	defaultRecorder.mu.Lock()
	defer defaultRecorder.mu.Unlock()
	return defaultRecorder.enabled
}

// Start opens a span on the process-wide recorder. It is a no-op until Enable
// has been called.
func Start(name string) Stopper {
	return defaultRecorder.Start(name)
}

// Summarize writes the process-wide span tree to w.
func Summarize(w io.Writer) {
	defaultRecorder.Summarize(w)
}

// Enable turns recording on. Calling it again keeps the existing tree.
func (r *Recorder) Enable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enabled {
		return
	}
	r.enabled = true
	r.root = &span{name: "total", start: time.Now(), recorder: r}
	r.open = []*span{r.root}
}

// Start opens a span named name.
func (r *Recorder) Start(name string) Stopper {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return noopStopper{}
	}
	parent := r.open[len(r.open)-1]
	s := &span{name: name, start: time.Now(), recorder: r}
	parent.children = append(parent.children, s)
	r.open = append(r.open, s)
	return s
}

func (r *Recorder) end(s *span) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.duration == 0 {
		s.duration = time.Since(s.start)
	}
	for i := len(r.open) - 1; i > 0; i-- {
		if r.open[i] == s {
			r.open = r.open[:i]
			return
		}
	}
}

// Summarize writes the span tree with each span's share of the total.
func (r *Recorder) Summarize(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return
	}
	total := time.Since(r.root.start)

	fmt.Fprintln(w, "--- timing ---")
	for _, child := range r.root.children {
		writeSpan(w, child, 0, total)
	}
	fmt.Fprintf(w, "total %v\n", total.Round(100*time.Microsecond))
}

func writeSpan(w io.Writer, s *span, depth int, total time.Duration) {
	d := s.duration
	if d == 0 {
		d = time.Since(s.start)
	}
	share := 0.0
	if total > 0 {
		share = float64(d) / float64(total) * 100
	}
	fmt.Fprintf(w, "%s%s %v (%.1f%%)\n", strings.Repeat("  ", depth), s.name, d.Round(100*time.Microsecond), share)
	for _, child := range s.children {
		writeSpan(w, child, depth+1, total)
	}
}

type noopStopper struct{}

func (noopStopper) Stop() {}
