// Package sqlite implements store.Store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/sudwiptokm/TravelBuddy/internal/model"
	"github.com/sudwiptokm/TravelBuddy/internal/store"
)

// Timestamps are stored as unix nanoseconds so that ORDER BY is chronological.
const schema = `
CREATE TABLE IF NOT EXISTS profiles (
    id          TEXT PRIMARY KEY,
    username    TEXT NOT NULL UNIQUE CHECK (username <> ''),
    full_name   TEXT,
    avatar_url  TEXT,
    last_online INTEGER
);

CREATE TABLE IF NOT EXISTS conversations (
    id         TEXT PRIMARY KEY,
    created_at INTEGER NOT NULL
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
    created_at      INTEGER NOT NULL,
    is_read         INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS messages_conversation_order_idx
    ON messages (conversation_id, created_at, id);
`

// Store is a store.Store backed by database/sql and go-sqlite3.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// A single writer keeps SQLite from returning SQLITE_BUSY under concurrent use.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &model.Error{Kind: model.KindNotFound, Op: op, Msg: "not found", Err: err}
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return &model.Error{Kind: model.KindValidation, Op: op, Msg: "already exists", Err: err}
		case sqlite3.ErrConstraintForeignKey:
			return &model.Error{Kind: model.KindNotFound, Op: op, Msg: "referenced row not found", Err: err}
		case sqlite3.ErrConstraintCheck:
			return &model.Error{Kind: model.KindValidation, Op: op, Msg: "constraint violated", Err: err}
		}
	}
	return model.Backend(op, err)
}

// inList returns "?,?,?" for n placeholders and the ids as driver args.
func inList(ids []string) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","), args
}

func toNanos(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNanos(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return time.Unix(0, n.Int64).UTC()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (model.Profile, error) {
	var (
		p          model.Profile
		fullName   sql.NullString
		avatarURL  sql.NullString
		lastOnline sql.NullInt64
	)
	if err := row.Scan(&p.ID, &p.Username, &fullName, &avatarURL, &lastOnline); err != nil {
		return model.Profile{}, err
	}
	if fullName.Valid {
		p.FullName = &fullName.String
	}
	if avatarURL.Valid {
		p.AvatarURL = &avatarURL.String
	}
	p.LastOnline = fromNanos(lastOnline)
	return p, nil
}

func scanMessage(row rowScanner) (model.Message, error) {
	var (
		m         model.Message
		createdAt int64
	)
	if err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &createdAt, &m.IsRead); err != nil {
		return model.Message{}, err
	}
	m.CreatedAt = time.Unix(0, createdAt).UTC()
	return m, nil
}

const profileColumns = `id, username, full_name, avatar_url, last_online`
const messageColumns = `id, conversation_id, sender_id, content, created_at, is_read`

// Profiles

func (s *Store) CreateProfile(ctx context.Context, p model.Profile) (model.Profile, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, username, full_name, avatar_url, last_online)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Username, p.FullName, p.AvatarURL, toNanos(p.LastOnline))
	if err != nil {
		return model.Profile{}, classify("create profile", err)
	}
	return s.GetProfile(ctx, p.ID)
}

func (s *Store) GetProfile(ctx context.Context, id string) (model.Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if err != nil {
		return model.Profile{}, classify("get profile", err)
	}
	return p, nil
}

func (s *Store) ProfilesByIDs(ctx context.Context, ids []string) (map[string]model.Profile, error) {
	out := make(map[string]model.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders, args := inList(ids)
	rows, err := s.db.QueryContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, classify("query profiles", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, classify("scan profile", err)
		}
		out[p.ID] = p
	}
	return out, classify("query profiles", rows.Err())
}

func (s *Store) ListProfilesExcept(ctx context.Context, excludeID string) ([]model.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+profileColumns+` FROM profiles
		WHERE id <> ?
		ORDER BY username`, excludeID)
	if err != nil {
		return nil, classify("list profiles", err)
	}
	defer rows.Close()

	var out []model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, classify("scan profile", err)
		}
		out = append(out, p)
	}
	return out, classify("list profiles", rows.Err())
}

func (s *Store) TouchProfile(ctx context.Context, id string, at time.Time) (model.Profile, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE profiles SET last_online = ? WHERE id = ?`, toNanos(at), id)
	if err != nil {
		return model.Profile{}, classify("touch profile", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.Profile{}, model.NotFound("touch profile", "profile")
	}
	return s.GetProfile(ctx, id)
}

// Conversations

func (s *Store) CreateConversation(ctx context.Context, c model.Conversation) (model.Conversation, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO conversations (id, created_at) VALUES (?, ?)`,
		c.ID, c.CreatedAt.UnixNano())
	if err != nil {
		return model.Conversation{}, classify("create conversation", err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (model.Conversation, error) {
	var (
		c         model.Conversation
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, created_at FROM conversations WHERE id = ?`, id).
		Scan(&c.ID, &createdAt)
	if err != nil {
		return model.Conversation{}, classify("get conversation", err)
	}
	c.CreatedAt = time.Unix(0, createdAt).UTC()
	return c, nil
}

func (s *Store) ConversationsByIDs(ctx context.Context, ids []string) (map[string]model.Conversation, error) {
	out := make(map[string]model.Conversation, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders, args := inList(ids)
	rows, err := s.db.QueryContext(ctx, `SELECT id, created_at FROM conversations WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, classify("query conversations", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c         model.Conversation
			createdAt int64
		)
		if err := rows.Scan(&c.ID, &createdAt); err != nil {
			return nil, classify("scan conversation", err)
		}
		c.CreatedAt = time.Unix(0, createdAt).UTC()
		out[c.ID] = c
	}
	return out, classify("query conversations", rows.Err())
}

func (s *Store) AddParticipants(ctx context.Context, conversationID string, userIDs ...string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("add participants", err)
	}
	defer tx.Rollback()

	for _, uid := range userIDs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO conversation_participants (conversation_id, user_id)
			VALUES (?, ?)
			ON CONFLICT (conversation_id, user_id) DO NOTHING`, conversationID, uid)
		if err != nil {
			return classify("add participants", err)
		}
	}
	return classify("add participants", tx.Commit())
}

func (s *Store) ConversationIDsForUser(ctx context.Context, userID string) ([]string, error) {
	return s.queryIDs(ctx, "conversations for user", `
		SELECT c.id
		FROM conversation_participants p
		JOIN conversations c ON c.id = p.conversation_id
		WHERE p.user_id = ?
		ORDER BY c.created_at, c.id`, userID)
}

func (s *Store) FilterConversationsWithUser(ctx context.Context, conversationIDs []string, userID string) ([]string, error) {
	if len(conversationIDs) == 0 {
		return nil, nil
	}
	placeholders, args := inList(conversationIDs)
	return s.queryIDs(ctx, "shared conversations", `
		SELECT c.id
		FROM conversation_participants p
		JOIN conversations c ON c.id = p.conversation_id
		WHERE p.conversation_id IN (`+placeholders+`) AND p.user_id = ?
		ORDER BY c.created_at, c.id`, append(args, userID)...)
}

func (s *Store) queryIDs(ctx context.Context, op, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, classify(op, err)
		}
		ids = append(ids, id)
	}
	return ids, classify(op, rows.Err())
}

func (s *Store) OtherParticipants(ctx context.Context, conversationIDs []string, userID string) (map[string][]string, error) {
	out := make(map[string][]string, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return out, nil
	}
	placeholders, args := inList(conversationIDs)
	rows, err := s.db.QueryContext(ctx, `
		SELECT conversation_id, user_id
		FROM conversation_participants
		WHERE conversation_id IN (`+placeholders+`) AND user_id <> ?
		ORDER BY conversation_id, user_id`, append(args, userID)...)
	if err != nil {
		return nil, classify("other participants", err)
	}
	defer rows.Close()

	for rows.Next() {
		var convID, uid string
		if err := rows.Scan(&convID, &uid); err != nil {
			return nil, classify("scan participant", err)
		}
		out[convID] = append(out[convID], uid)
	}
	return out, classify("other participants", rows.Err())
}

func (s *Store) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM conversation_participants
			WHERE conversation_id = ? AND user_id = ?
		)`, conversationID, userID).Scan(&ok)
	if err != nil {
		return false, classify("is participant", err)
	}
	return ok, nil
}

// Messages

func (s *Store) InsertMessage(ctx context.Context, m model.Message) (model.Message, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, content, created_at, is_read)
		VALUES (?, ?, ?, ?, ?, 0)`,
		m.ID, m.ConversationID, m.SenderID, m.Content, m.CreatedAt.UnixNano())
	if err != nil {
		return model.Message{}, classify("insert message", err)
	}
	m.CreatedAt = m.CreatedAt.UTC()
	m.IsRead = false
	m.Sender = nil
	return m, nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC`, conversationID)
	if err != nil {
		return nil, classify("list messages", err)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, classify("scan message", err)
		}
		out = append(out, m)
	}
	return out, classify("list messages", rows.Err())
}

func (s *Store) LatestMessages(ctx context.Context, conversationIDs []string) (map[string]model.Message, error) {
	out := make(map[string]model.Message, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return out, nil
	}
	placeholders, args := inList(conversationIDs)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM (
			SELECT `+messageColumns+`,
				ROW_NUMBER() OVER (
					PARTITION BY conversation_id
					ORDER BY created_at DESC, id DESC
				) AS rn
			FROM messages
			WHERE conversation_id IN (`+placeholders+`)
		) WHERE rn = 1`, args...)
	if err != nil {
		return nil, classify("latest messages", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, classify("scan message", err)
		}
		out[m.ConversationID] = m
	}
	return out, classify("latest messages", rows.Err())
}

func (s *Store) MarkRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET is_read = 1
		WHERE conversation_id = ? AND sender_id <> ? AND is_read = 0`, conversationID, readerID)
	if err != nil {
		return 0, classify("mark read", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classify("mark read", err)
	}
	return n, nil
}

func (s *Store) UnreadCounts(ctx context.Context, conversationIDs []string, readerID string) (map[string]int, error) {
	out := make(map[string]int, len(conversationIDs))
	for _, id := range conversationIDs {
		out[id] = 0
	}
	if len(conversationIDs) == 0 {
		return out, nil
	}
	placeholders, args := inList(conversationIDs)
	rows, err := s.db.QueryContext(ctx, `
		SELECT conversation_id, COUNT(*)
		FROM messages
		WHERE conversation_id IN (`+placeholders+`) AND sender_id <> ? AND is_read = 0
		GROUP BY conversation_id`, append(args, readerID)...)
	if err != nil {
		return nil, classify("unread counts", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			convID string
			n      int
		)
		if err := rows.Scan(&convID, &n); err != nil {
			return nil, classify("scan unread count", err)
		}
		out[convID] = n
	}
	return out, classify("unread counts", rows.Err())
}
