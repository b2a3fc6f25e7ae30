// Package service implements the messaging core: the directory, the
// conversation resolver, message history, read state and the inbox aggregator.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sudwiptokm/TravelBuddy/internal/cache"
	"github.com/sudwiptokm/TravelBuddy/internal/live"
	"github.com/sudwiptokm/TravelBuddy/internal/model"
	"github.com/sudwiptokm/TravelBuddy/internal/store"
	"github.com/sudwiptokm/TravelBuddy/pkg/logger"
	"github.com/sudwiptokm/TravelBuddy/pkg/metrics"
)

const touchTimeout = 5 * time.Second

// Directory answers which profiles exist and whether they are online.
// Read paths degrade to empty results instead of failing.
type Directory struct {
	profiles store.ProfileStore
	feed     live.Feed
	throttle cache.Throttle
	logger   *logger.Logger

	window   time.Duration
	interval time.Duration
	now      func() time.Time
}

// DirectoryOption configures a Directory.
type DirectoryOption func(*Directory)

// WithPresenceWindow overrides the online threshold.
func WithPresenceWindow(d time.Duration) DirectoryOption {
	return func(s *Directory) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithTouchInterval sets the minimum spacing between stored heartbeats of one user.
func WithTouchInterval(d time.Duration) DirectoryOption {
	return func(s *Directory) { s.interval = d }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) DirectoryOption {
	return func(s *Directory) { s.now = now }
}

// NewDirectory creates a new directory service. feed and throttle may be nil.
func NewDirectory(profiles store.ProfileStore, feed live.Feed, throttle cache.Throttle, log *logger.Logger, opts ...DirectoryOption) *Directory {
	d := &Directory{
		profiles: profiles,
		feed:     feed,
		throttle: throttle,
		logger:   log.Named("directory"),
		window:   model.OnlineWindow,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register creates a profile. Username must be non-empty.
func (s *Directory) Register(ctx context.Context, p model.Profile) (model.Profile, error) {
	p.Username = strings.TrimSpace(p.Username)
	if p.Username == "" {
		return model.Profile{}, model.Validation("register", "username is required")
	}
	if p.ID == "" {
		p.ID = uuid.Must(uuid.NewV7()).String()
	}
	if p.LastOnline.IsZero() {
		p.LastOnline = s.now().UTC()
	}
	created, err := s.profiles.CreateProfile(ctx, p)
	if err != nil {
		return model.Profile{}, model.Backend("register", err)
	}
	s.logger.Info("profile registered", zap.String("user_id", created.ID))
	return created, nil
}

// Profile returns one profile.
func (s *Directory) Profile(ctx context.Context, id string) (model.Profile, error) {
	if id == "" {
		return model.Profile{}, model.Validation("profile", "profile id is required")
	}
	p, err := s.profiles.GetProfile(ctx, id)
	if err != nil {
		return model.Profile{}, model.Backend("profile", err)
	}
	return p, nil
}

// ListOtherUsers returns every profile except callerID. Failures are logged
// and yield an empty slice.
func (s *Directory) ListOtherUsers(ctx context.Context, callerID string) []model.Profile {
	profiles, err := s.profiles.ListProfilesExcept(ctx, callerID)
	if err != nil {
		s.logger.Warn("failed to list users", zap.String("user_id", callerID), zap.Error(err))
		return []model.Profile{}
	}
	return profiles
}

// ListUsers is ListOtherUsers with the online predicate applied.
func (s *Directory) ListUsers(ctx context.Context, callerID string) []model.UserEntry {
	profiles := s.ListOtherUsers(ctx, callerID)
	now := s.now()
	entries := make([]model.UserEntry, len(profiles))
	for i, p := range profiles {
		entries[i] = model.UserEntry{Profile: p, Online: s.IsOnline(p, now)}
	}
	return entries
}

// IsOnline applies the online threshold to p at now.
func (s *Directory) IsOnline(p model.Profile, now time.Time) bool {
	return model.IsOnlineWithin(p.LastOnline, now, s.window)
}

// Window returns the online threshold.
func (s *Directory) Window() time.Duration {
	return s.window
}

// TouchPresence records a heartbeat for userID. It never fails the caller:
// errors are logged, and heartbeats inside the touch interval are skipped.
func (s *Directory) TouchPresence(ctx context.Context, userID string) {
	if userID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, touchTimeout)
	defer cancel()

	log := s.logger.With(zap.String("user_id", userID))

	key := "presence:" + userID
	reserved := false
	if s.throttle != nil && s.interval > 0 {
		switch ok, err := s.throttle.Allow(ctx, key, s.interval); {
		case err != nil:
			// a broken throttle must not stop heartbeats
			log.Warn("presence throttle unavailable", zap.Error(err))
		case !ok:
			metrics.PresenceTouchesTotal.WithLabelValues("throttled").Inc()
			return
		default:
			reserved = true
		}
	}

	p, err := s.profiles.TouchProfile(ctx, userID, s.now().UTC())
	if err != nil {
		metrics.PresenceTouchesTotal.WithLabelValues("error").Inc()
		log.Warn("failed to touch presence", zap.Error(err))
		if reserved {
			// nothing was stored, so the next heartbeat must not be throttled
			if err := s.throttle.Release(ctx, key); err != nil {
				log.Warn("failed to release presence throttle", zap.Error(err))
			}
		}
		return
	}
	metrics.PresenceTouchesTotal.WithLabelValues("stored").Inc()

	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, model.NewProfileUpdated(p)); err != nil {
		log.Warn("failed to publish presence", zap.Error(err))
	}
}
