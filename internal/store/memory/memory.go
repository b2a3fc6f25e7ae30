// Package memory provides an in-process implementation of store.Store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sudwiptokm/TravelBuddy/internal/model"
	"github.com/sudwiptokm/TravelBuddy/internal/store"
)

// Store keeps every relation in maps guarded by a single RWMutex.
type Store struct {
	mu sync.RWMutex

	profiles      map[string]model.Profile
	conversations map[string]model.Conversation
	convOrder     []string                       // creation order
	participants  map[string]map[string]struct{} // conversationID -> userIDs
	memberships   map[string]map[string]struct{} // userID -> conversationIDs
	messages      map[string][]model.Message     // conversationID -> messages, insertion order
}

var _ store.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		profiles:      make(map[string]model.Profile),
		conversations: make(map[string]model.Conversation),
		participants:  make(map[string]map[string]struct{}),
		memberships:   make(map[string]map[string]struct{}),
		messages:      make(map[string][]model.Message),
	}
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

func (s *Store) CreateProfile(ctx context.Context, p model.Profile) (model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, exists := s.profiles[p.ID]; exists {
		return model.Profile{}, model.Validation("create profile", "profile already exists")
	}
	for _, existing := range s.profiles {
		if existing.Username == p.Username {
			return model.Profile{}, model.Validation("create profile", "username already taken")
		}
	}
	s.profiles[p.ID] = p
	return p, nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return model.Profile{}, model.NotFound("get profile", "profile")
	}
	return p, nil
}

func (s *Store) ProfilesByIDs(ctx context.Context, ids []string) (map[string]model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]model.Profile, len(ids))
	for _, id := range ids {
		if p, ok := s.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *Store) ListProfilesExcept(ctx context.Context, excludeID string) ([]model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Profile, 0, len(s.profiles))
	for id, p := range s.profiles {
		if id == excludeID {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) TouchProfile(ctx context.Context, id string, at time.Time) (model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return model.Profile{}, model.NotFound("touch profile", "profile")
	}
	p.LastOnline = at
	s.profiles[id] = p
	return p, nil
}

func (s *Store) CreateConversation(ctx context.Context, c model.Conversation) (model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.Must(uuid.NewV7()).String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if _, exists := s.conversations[c.ID]; exists {
		return model.Conversation{}, model.Validation("create conversation", "conversation already exists")
	}
	s.conversations[c.ID] = c
	s.convOrder = append(s.convOrder, c.ID)
	s.participants[c.ID] = make(map[string]struct{})
	return c, nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok {
		return model.Conversation{}, model.NotFound("get conversation", "conversation")
	}
	return c, nil
}

func (s *Store) ConversationsByIDs(ctx context.Context, ids []string) (map[string]model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]model.Conversation, len(ids))
	for _, id := range ids {
		if c, ok := s.conversations[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (s *Store) AddParticipants(ctx context.Context, conversationID string, userIDs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.participants[conversationID]
	if !ok {
		return model.NotFound("add participants", "conversation")
	}
	for _, uid := range userIDs {
		members[uid] = struct{}{}
		set := s.memberships[uid]
		if set == nil {
			set = make(map[string]struct{})
			s.memberships[uid] = set
		}
		set[conversationID] = struct{}{}
	}
	return nil
}

func (s *Store) ConversationIDsForUser(ctx context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.memberships[userID]
	out := make([]string, 0, len(set))
	for _, id := range s.convOrder {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *Store) FilterConversationsWithUser(ctx context.Context, conversationIDs []string, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]struct{}, len(conversationIDs))
	for _, id := range conversationIDs {
		wanted[id] = struct{}{}
	}
	set := s.memberships[userID]
	var out []string
	for _, id := range s.convOrder {
		if _, ok := wanted[id]; !ok {
			continue
		}
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *Store) OtherParticipants(ctx context.Context, conversationIDs []string, userID string) (map[string][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]string, len(conversationIDs))
	for _, convID := range conversationIDs {
		members, ok := s.participants[convID]
		if !ok {
			continue
		}
		others := make([]string, 0, len(members))
		for uid := range members {
			if uid != userID {
				others = append(others, uid)
			}
		}
		sort.Strings(others)
		out[convID] = others
	}
	return out, nil
}

func (s *Store) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.participants[conversationID][userID]
	return ok, nil
}

func (s *Store) InsertMessage(ctx context.Context, m model.Message) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[m.ConversationID]; !ok {
		return model.Message{}, model.NotFound("insert message", "conversation")
	}
	if m.ID == "" {
		m.ID = uuid.Must(uuid.NewV7()).String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	m.Sender = nil
	s.messages[m.ConversationID] = append(s.messages[m.ConversationID], m)
	return m, nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.messages[conversationID]
	out := make([]model.Message, len(src))
	copy(out, src)
	model.SortMessages(out)
	return out, nil
}

func (s *Store) LatestMessages(ctx context.Context, conversationIDs []string) (map[string]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]model.Message, len(conversationIDs))
	for _, convID := range conversationIDs {
		var latest *model.Message
		for i := range s.messages[convID] {
			m := &s.messages[convID][i]
			if latest == nil || latest.Before(*m) {
				latest = m
			}
		}
		if latest != nil {
			out[convID] = *latest
		}
	}
	return out, nil
}

func (s *Store) MarkRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	msgs := s.messages[conversationID]
	for i := range msgs {
		if msgs[i].SenderID != readerID && !msgs[i].IsRead {
			msgs[i].IsRead = true
			n++
		}
	}
	return n, nil
}

func (s *Store) UnreadCounts(ctx context.Context, conversationIDs []string, readerID string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int, len(conversationIDs))
	for _, convID := range conversationIDs {
		count := 0
		for _, m := range s.messages[convID] {
			if m.SenderID != readerID && !m.IsRead {
				count++
			}
		}
		out[convID] = count
	}
	return out, nil
}
