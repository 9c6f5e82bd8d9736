package watcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/lore/pkg/models"
)

func TestPendingQueueFlush(t *testing.T) {
	q := newPendingQueue()
	assert.Nil(t, q.flush(), "empty queue flushes nothing")

	q.add("a.md")
	q.add("a.md")
	assert.Equal(t, models.Changed{Path: "a.md"}, q.flush())
	assert.Zero(t, q.len(), "flush clears the queue")

	q.add("b.md")
	q.add("a.md")
	q.add("b.md")
	q.add("c/d.md")
	assert.Equal(t, models.BulkChanged{Paths: []string{"b.md", "a.md", "c/d.md"}}, q.flush())

	q.add("a.md")
	assert.Equal(t, models.Changed{Path: "a.md"}, q.flush(), "a path changing after a flush starts a fresh window")
}

func TestPendingQueueDrop(t *testing.T) {
	q := newPendingQueue()
	q.add("notes/a.md")
	q.add("notes/sub/b.md")
	q.add("notes-old/c.md")
	q.add("top.md")

	q.drop("notes")
	require.Equal(t, 2, q.len())
	assert.Equal(t, models.BulkChanged{Paths: []string{"notes-old/c.md", "top.md"}}, q.flush())

	q.add("x.md")
	q.discard()
	assert.Nil(t, q.flush())
}

func TestIgnoreMatcher(t *testing.T) {
	m, err := newIgnoreMatcher(DefaultIgnore)
	require.NoError(t, err)

	assert.True(t, m.ignored(".git"))
	assert.True(t, m.ignored(".git/objects/ab/cdef"))
	assert.True(t, m.ignored("knowledge/.note.md.swp"))
	assert.True(t, m.ignored("draft.md~"))
	assert.False(t, m.ignored("knowledge/note.md"))
	assert.False(t, m.ignored(""))

	none, err := newIgnoreMatcher([]string{})
	require.NoError(t, err)
	assert.False(t, none.ignored(".git"))
}
