package watcher

import (
	"strings"

	"github.com/grovetools/lore/pkg/models"
)

// pendingQueue accumulates changed paths between debounce flushes. Paths are
// deduplicated and keep their first-arrival order.
type pendingQueue struct {
	paths []string
	seen  map[string]struct{}
}

func newPendingQueue() *pendingQueue {
	return &pendingQueue{seen: make(map[string]struct{})}
}

func (q *pendingQueue) add(rel string) {
	if _, ok := q.seen[rel]; ok {
		return
	}
	q.seen[rel] = struct{}{}
	q.paths = append(q.paths, rel)
}

// drop removes rel and everything below it.
func (q *pendingQueue) drop(rel string) {
	if len(q.paths) == 0 {
		return
	}
	kept := q.paths[:0]
	for _, p := range q.paths {
		if isSelfOrDescendant(rel, p) {
			delete(q.seen, p)
			continue
		}
		kept = append(kept, p)
	}
	q.paths = kept
}

func (q *pendingQueue) len() int {
	return len(q.paths)
}

// flush empties the queue and returns the event it represents, or nil when
// nothing was pending.
func (q *pendingQueue) flush() models.ChangeEvent {
	paths := q.paths
	q.paths = nil
	q.seen = make(map[string]struct{})

	switch len(paths) {
	case 0:
		return nil
	case 1:
		return models.Changed{Path: paths[0]}
	default:
		return models.BulkChanged{Paths: paths}
	}
}

// discard drops everything without producing an event.
func (q *pendingQueue) discard() {
	q.paths = nil
	q.seen = make(map[string]struct{})
}

func isSelfOrDescendant(parent, p string) bool {
	return p == parent || strings.HasPrefix(p, parent+"/")
}
