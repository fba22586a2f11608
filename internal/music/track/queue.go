package track

import "math/rand"

// Queue is the ordered list of upcoming descriptors for one voice call.
// It is not safe for concurrent use; the owning playback session
// serializes every access through its command loop.
type Queue struct {
	items []Descriptor
	limit int
}

// NewQueue returns a queue holding at most limit entries. A limit of
// zero or less means unbounded.
func NewQueue(limit int) *Queue {
	return &Queue{limit: limit}
}

// Push appends a descriptor, rejecting it with ErrQueueFull once the
// limit is reached.
func (q *Queue) Push(d Descriptor) error {
	if q.limit > 0 && len(q.items) >= q.limit {
		return ErrQueueFull
	}
	q.items = append(q.items, d)
	return nil
}

// PushFront inserts a descriptor at the head of the queue so that it
// plays next. The limit applies the same as for Push.
func (q *Queue) PushFront(d Descriptor) error {
	if q.limit > 0 && len(q.items) >= q.limit {
		return ErrQueueFull
	}
	q.items = append([]Descriptor{d}, q.items...)
	return nil
}

// Pop removes and returns the first playable descriptor. Placeholders
// at the head are dropped, never returned. ok is false when nothing
// playable remains.
func (q *Queue) Pop() (Descriptor, bool) {
	for len(q.items) > 0 {
		head := q.items[0]
		q.items = q.items[1:]
		if !head.Placeholder {
			return head, true
		}
	}
	return Descriptor{}, false
}

// Len reports the number of entries, placeholders included.
func (q *Queue) Len() int { return len(q.items) }

// Free reports how many more entries fit.
func (q *Queue) Free() int {
	if q.limit <= 0 {
		return int(^uint(0) >> 1)
	}
	if n := q.limit - len(q.items); n > 0 {
		return n
	}
	return 0
}

// Clear drops every entry and returns how many were dropped.
func (q *Queue) Clear() int {
	n := len(q.items)
	q.items = nil
	return n
}

// RemoveAt removes the entry at zero-based position i.
func (q *Queue) RemoveAt(i int) (Descriptor, error) {
	if i < 0 || i >= len(q.items) {
		return Descriptor{}, ErrBadPosition
	}
	d := q.items[i]
	q.items = append(q.items[:i], q.items[i+1:]...)
	return d, nil
}

// Shuffle randomises the order of all queued entries.
func (q *Queue) Shuffle() {
	rand.Shuffle(len(q.items), func(i, j int) {
		q.items[i], q.items[j] = q.items[j], q.items[i]
	})
}

// Replace swaps the entry with the given ID for the provided
// descriptors, preserving its slot: the first replacement lands exactly
// where the old entry sat and the rest splice in directly after it.
// Calling it with no replacements simply deletes the entry. Entries
// beyond the queue limit are dropped. found is false when no entry with
// that ID is present, in which case the queue is untouched.
func (q *Queue) Replace(id string, ds ...Descriptor) (inserted int, found bool) {
	idx := -1
	for i, it := range q.items {
		if it.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, false
	}

	room := len(ds)
	if q.limit > 0 {
		// The replaced slot frees one position.
		if free := q.limit - len(q.items) + 1; free < room {
			room = free
		}
	}
	if room < 0 {
		room = 0
	}

	rest := make([]Descriptor, len(q.items[idx+1:]))
	copy(rest, q.items[idx+1:])
	q.items = append(q.items[:idx], ds[:room]...)
	q.items = append(q.items, rest...)
	return room, true
}

// Snapshot returns a copy of the queue for display.
func (q *Queue) Snapshot() []Descriptor {
	out := make([]Descriptor, len(q.items))
	copy(out, q.items)
	return out
}
