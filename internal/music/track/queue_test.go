package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func named(title string) Descriptor {
	return New(title, "", "http://example.com/"+title, SourceStream, 0)
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(0)
	require.NoError(t, q.Push(named("a")))
	require.NoError(t, q.Push(named("b")))
	require.NoError(t, q.Push(named("c")))

	var got []string
	for {
		d, ok := q.Pop()
		if !ok {
			break
		}
		got = append(got, d.Title)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, 0, q.Len())
}

func TestQueuePushFront(t *testing.T) {
	q := NewQueue(0)
	require.NoError(t, q.Push(named("a")))
	require.NoError(t, q.Push(named("b")))
	require.NoError(t, q.PushFront(named("urgent")))

	d, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "urgent", d.Title)

	full := NewQueue(1)
	require.NoError(t, full.Push(named("only")))
	assert.ErrorIs(t, full.PushFront(named("more")), ErrQueueFull)
}

func TestQueuePopSkipsPlaceholders(t *testing.T) {
	q := NewQueue(0)
	require.NoError(t, q.Push(NewPlaceholder("My Playlist", 10)))
	require.NoError(t, q.Push(NewPlaceholder("Another", 3)))
	require.NoError(t, q.Push(named("real")))

	d, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "real", d.Title)
	assert.Equal(t, 0, q.Len(), "skipped placeholders must be dropped")

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestQueuePopOnlyPlaceholders(t *testing.T) {
	q := NewQueue(0)
	require.NoError(t, q.Push(NewPlaceholder("pending", 5)))

	_, ok := q.Pop()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
}

func TestQueueLimit(t *testing.T) {
	q := NewQueue(2)
	require.NoError(t, q.Push(named("a")))
	require.NoError(t, q.Push(named("b")))
	assert.ErrorIs(t, q.Push(named("c")), ErrQueueFull)
	assert.Equal(t, 0, q.Free())

	_, _ = q.Pop()
	assert.Equal(t, 1, q.Free())
	assert.NoError(t, q.Push(named("c")))
}

func TestQueueReplaceInPlace(t *testing.T) {
	q := NewQueue(0)
	require.NoError(t, q.Push(named("before")))
	ph := NewPlaceholder("album", 2)
	require.NoError(t, q.Push(ph))
	require.NoError(t, q.Push(named("after")))

	inserted, found := q.Replace(ph.ID, named("one"), named("two"))
	require.True(t, found)
	assert.Equal(t, 2, inserted)

	snap := q.Snapshot()
	titles := make([]string, len(snap))
	for i, d := range snap {
		titles[i] = d.Title
	}
	assert.Equal(t, []string{"before", "one", "two", "after"}, titles)
}

func TestQueueReplaceMissing(t *testing.T) {
	q := NewQueue(0)
	require.NoError(t, q.Push(named("a")))

	_, found := q.Replace("nope", named("b"))
	assert.False(t, found)
	assert.Equal(t, 1, q.Len())
}

func TestQueueReplaceWithNothingDeletes(t *testing.T) {
	q := NewQueue(0)
	ph := NewPlaceholder("failed import", 4)
	require.NoError(t, q.Push(ph))
	require.NoError(t, q.Push(named("keep")))

	inserted, found := q.Replace(ph.ID)
	require.True(t, found)
	assert.Equal(t, 0, inserted)
	require.Equal(t, 1, q.Len())
	assert.Equal(t, "keep", q.Snapshot()[0].Title)
}

func TestQueueReplaceHonorsLimit(t *testing.T) {
	q := NewQueue(3)
	ph := NewPlaceholder("big import", 10)
	require.NoError(t, q.Push(named("a")))
	require.NoError(t, q.Push(ph))

	inserted, found := q.Replace(ph.ID, named("1"), named("2"), named("3"), named("4"))
	require.True(t, found)
	assert.Equal(t, 2, inserted, "the freed slot plus one spare")
	assert.Equal(t, 3, q.Len())
}

func TestQueueRemoveAt(t *testing.T) {
	q := NewQueue(0)
	require.NoError(t, q.Push(named("a")))
	require.NoError(t, q.Push(named("b")))
	require.NoError(t, q.Push(named("c")))

	d, err := q.RemoveAt(1)
	require.NoError(t, err)
	assert.Equal(t, "b", d.Title)

	_, err = q.RemoveAt(5)
	assert.ErrorIs(t, err, ErrBadPosition)
	_, err = q.RemoveAt(-1)
	assert.ErrorIs(t, err, ErrBadPosition)
}

func TestQueueShuffleKeepsElements(t *testing.T) {
	q := NewQueue(0)
	want := map[string]bool{}
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, q.Push(named(name)))
		want[name] = true
	}

	q.Shuffle()

	got := map[string]bool{}
	for _, d := range q.Snapshot() {
		got[d.Title] = true
	}
	assert.Equal(t, want, got)
}

func TestQueueClear(t *testing.T) {
	q := NewQueue(0)
	require.NoError(t, q.Push(named("a")))
	require.NoError(t, q.Push(named("b")))

	assert.Equal(t, 2, q.Clear())
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, q.Clear())
}
