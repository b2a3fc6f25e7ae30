package live

import (
	"sort"
	"sync"

	"github.com/sudwiptokm/TravelBuddy/internal/model"
)

// Outcome describes what Timeline.Merge did with a message.
type Outcome int

const (
	Merged Outcome = iota
	Duplicate
	Deferred
)

func (o Outcome) String() string {
	switch o {
	case Merged:
		return "merged"
	case Duplicate:
		return "duplicate"
	case Deferred:
		return "deferred"
	}
	return "unknown"
}

// Timeline is a conversation's messages ordered by (created_at, id) with
// duplicates suppressed by id.
//
// Until history has been applied, merged messages are held back and flushed
// in order by Apply, so an event that races the history load is never lost
// or placed by arrival time.
type Timeline struct {
	mu      sync.Mutex
	msgs    []model.Message
	ids     map[string]struct{}
	ready   bool
	pending []model.Message
	queued  map[string]struct{}
}

// NewTimeline returns a timeline awaiting its history.
func NewTimeline() *Timeline {
	return &Timeline{
		ids:    make(map[string]struct{}),
		queued: make(map[string]struct{}),
	}
}

// Apply merges history and then flushes every held-back message. It returns
// the held-back messages that were new, in order.
func (t *Timeline) Apply(history []model.Message) []model.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, m := range history {
		t.insertLocked(m)
	}
	t.ready = true

	pending := t.pending
	t.pending = nil
	t.queued = make(map[string]struct{})
	model.SortMessages(pending)

	flushed := make([]model.Message, 0, len(pending))
	for _, m := range pending {
		if t.insertLocked(m) {
			flushed = append(flushed, m)
		}
	}
	return flushed
}

// Merge inserts m in order. Messages already present are ignored.
func (t *Timeline) Merge(m model.Message) Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.ids[m.ID]; ok {
		return Duplicate
	}
	if !t.ready {
		if _, ok := t.queued[m.ID]; ok {
			return Duplicate
		}
		t.queued[m.ID] = struct{}{}
		t.pending = append(t.pending, m)
		return Deferred
	}
	t.insertLocked(m)
	return Merged
}

// Ready reports whether history has been applied.
func (t *Timeline) Ready() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ready
}

// Contains reports whether a message id is in the timeline.
func (t *Timeline) Contains(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.ids[id]
	return ok
}

// Len returns the number of merged messages.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.msgs)
}

// Messages returns a copy of the ordered sequence.
func (t *Timeline) Messages() []model.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

func (t *Timeline) insertLocked(m model.Message) bool {
	if _, ok := t.ids[m.ID]; ok {
		return false
	}
	t.ids[m.ID] = struct{}{}

	n := len(t.msgs)
	if n == 0 || t.msgs[n-1].Before(m) {
		t.msgs = append(t.msgs, m)
		return true
	}
	i := sort.Search(n, func(i int) bool { return m.Before(t.msgs[i]) })
	t.msgs = append(t.msgs, model.Message{})
	copy(t.msgs[i+1:], t.msgs[i:])
	t.msgs[i] = m
	return true
}
