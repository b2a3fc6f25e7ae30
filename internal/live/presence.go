package live

import (
	"context"
	"sync"
	"time"

	"github.com/sudwiptokm/TravelBuddy/internal/model"
	"github.com/sudwiptokm/TravelBuddy/pkg/metrics"
)

const kindPresence = "presence"

// PresenceWatch tracks one profile's last_online from profile-updated events.
type PresenceWatch struct {
	profileID string
	window    time.Duration
	bridge    *Bridge
	onChange  func(model.Profile)

	mu         sync.RWMutex
	lastOnline time.Time
}

// NewPresenceWatch creates a detached watch seeded with a known profile.
// window is the online threshold; zero means model.OnlineWindow.
func NewPresenceWatch(feed Feed, seed model.Profile, window time.Duration, onChange func(model.Profile)) *PresenceWatch {
	if window <= 0 {
		window = model.OnlineWindow
	}
	w := &PresenceWatch{
		profileID:  seed.ID,
		window:     window,
		onChange:   onChange,
		lastOnline: seed.LastOnline,
	}
	w.bridge = NewBridge(feed, ProfileTopic(seed.ID), kindPresence, w.onEvent)
	return w
}

// Attach subscribes to updates of the profile.
func (w *PresenceWatch) Attach(ctx context.Context) error {
	return w.bridge.Attach(ctx)
}

// Detach stops the watch. No onChange call happens after it returns.
func (w *PresenceWatch) Detach() error {
	return w.bridge.Detach()
}

// State returns the state of the underlying bridge.
func (w *PresenceWatch) State() State {
	return w.bridge.State()
}

// LastOnline returns the latest known heartbeat.
func (w *PresenceWatch) LastOnline() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastOnline
}

// Online applies the online predicate at now.
func (w *PresenceWatch) Online(now time.Time) bool {
	return model.IsOnlineWithin(w.LastOnline(), now, w.window)
}

func (w *PresenceWatch) onEvent(ev model.ChangeEvent) {
	if ev.Type != model.EventTypeProfileUpdated || ev.Profile == nil || ev.Profile.ID != w.profileID {
		return
	}
	w.mu.Lock()
	// heartbeats only move forward
	if ev.Profile.LastOnline.Before(w.lastOnline) {
		w.mu.Unlock()
		metrics.RecordLiveEvent(kindPresence, metrics.OutcomeDuplicate)
		return
	}
	w.lastOnline = ev.Profile.LastOnline
	w.mu.Unlock()
	metrics.RecordLiveEvent(kindPresence, metrics.OutcomeMerged)

	if w.onChange != nil {
		w.onChange(*ev.Profile)
	}
}
