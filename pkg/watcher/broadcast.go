package watcher

import (
	"sync"

	"github.com/grovetools/lore/pkg/models"
)

// Listener receives change events. It is called from the watcher goroutine
// and must not block; hand events off to a buffered channel when work is slow.
type Listener func(models.ChangeEvent)

// Broadcaster fans change events out to a dynamic set of listeners.
type Broadcaster struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[uint64]Listener
	order     []uint64
}

// NewBroadcaster creates a Broadcaster with no listeners.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{listeners: make(map[uint64]Listener)}
}

// Subscribe registers l and returns a function that removes it again.
// Calling the returned function more than once is harmless.
func (b *Broadcaster) Subscribe(l Listener) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.listeners[id] = l
	b.order = append(b.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Broadcaster) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.listeners, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Publish delivers event to every listener registered at the time of the
// call, in registration order. Listeners may subscribe or unsubscribe from
// inside the callback.
func (b *Broadcaster) Publish(event models.ChangeEvent) {
	for _, l := range b.snapshot() {
		l(event)
	}
}

// Len returns the number of registered listeners.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

func (b *Broadcaster) snapshot() []Listener {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Listener, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.listeners[id])
	}
	return out
}
