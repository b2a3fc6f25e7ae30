package postgres

import (
	"context"
	"fmt"
)

// schema has no uniqueness constraint on the unordered participant pair, so two
// concurrent resolves of the same pair can still create two conversations.
const schema = `
CREATE TABLE IF NOT EXISTS profiles (
    id          TEXT PRIMARY KEY,
    username    TEXT NOT NULL UNIQUE CHECK (username <> ''),
    full_name   TEXT,
    avatar_url  TEXT,
    last_online TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS conversations (
    id         TEXT PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS conversation_participants (
    conversation_id TEXT NOT NULL REFERENCES conversations(id),
    user_id         TEXT NOT NULL REFERENCES profiles(id),
    PRIMARY KEY (conversation_id, user_id)
);

CREATE INDEX IF NOT EXISTS conversation_participants_user_idx
    ON conversation_participants (user_id);

CREATE TABLE IF NOT EXISTS messages (
    id              TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL REFERENCES conversations(id),
    sender_id       TEXT NOT NULL REFERENCES profiles(id),
    content         TEXT NOT NULL CHECK (content <> ''),
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    is_read         BOOLEAN NOT NULL DEFAULT false
);

CREATE INDEX IF NOT EXISTS messages_conversation_order_idx
    ON messages (conversation_id, created_at, id);

CREATE INDEX IF NOT EXISTS messages_unread_idx
    ON messages (conversation_id, sender_id)
    WHERE is_read = false;
`

// Migrate creates the tables the store needs if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}
