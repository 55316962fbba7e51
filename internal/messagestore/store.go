// Package messagestore persists topic messages and serves paginated reads.
// It is the one write-contention surface in the runtime: the Topic Service
// orders writes per topic, but the store itself must tolerate concurrent
// appends across different topics.
package messagestore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/TIZ36/ai-chatbotee-sub000/pkg/models"
)

// Store is the message-persistence contract every Topic Service backend
// depends on.
type Store interface {
	// SendMessage appends a message to topicID and returns the stored copy,
	// with a new MessageID filled in when it was empty. CreatedAt is stored
	// as given.
	SendMessage(ctx context.Context, msg models.Message) (models.Message, error)

	// GetMessagesPaginated returns up to limit messages older than beforeID
	// (or the newest limit if beforeID is empty), newest first, along with
	// whether more messages exist and the latest message id in the topic.
	GetMessagesPaginated(ctx context.Context, topicID string, limit int, beforeID string) (msgs []models.Message, hasMore bool, latestID string, err error)

	// DeleteAfter removes every message after targetID (exclusive) in
	// topicID, used to implement rollback on edit/regenerate.
	DeleteAfter(ctx context.Context, topicID, targetID string) error
}

// MemoryStore is an in-memory Store, used in tests and as a development
// fallback when no SQL backend is configured.
type MemoryStore struct {
	mu       sync.Mutex
	byTopic  map[string][]models.Message
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byTopic: make(map[string][]models.Message)}
}

// SendMessage implements Store.
func (s *MemoryStore) SendMessage(_ context.Context, msg models.Message) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}
	s.byTopic[msg.TopicID] = append(s.byTopic[msg.TopicID], msg)
	return msg, nil
}

// GetMessagesPaginated implements Store.
func (s *MemoryStore) GetMessagesPaginated(_ context.Context, topicID string, limit int, beforeID string) ([]models.Message, bool, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.byTopic[topicID]
	if len(all) == 0 {
		return nil, false, "", nil
	}
	latestID := all[len(all)-1].MessageID

	end := len(all)
	if beforeID != "" {
		for i, m := range all {
			if m.MessageID == beforeID {
				end = i
				break
			}
		}
	}
	if limit <= 0 {
		limit = 50
	}
	start := end - limit
	hasMore := start > 0
	if start < 0 {
		start = 0
	}
	window := all[start:end]

	out := make([]models.Message, len(window))
	for i := range window {
		out[len(window)-1-i] = window[i]
	}
	return out, hasMore, latestID, nil
}

// DeleteAfter implements Store.
func (s *MemoryStore) DeleteAfter(_ context.Context, topicID, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.byTopic[topicID]
	idx := -1
	for i, m := range all {
		if m.MessageID == targetID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil
	}
	s.byTopic[topicID] = all[:idx+1]
	return nil
}

// SQLStore persists messages to a relational backend (PostgreSQL via
// lib/pq or SQLite via modernc.org/sqlite — the driver is selected by the
// *sql.DB the caller constructs) behind the same Store contract. The
// queries below use $N placeholders throughout; SQLite's own parameter
// grammar accepts $N (binding positionally, same as Postgres), so one
// query set serves both drivers without a dialect switch.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps an already-opened database handle. The messages table
// is expected to follow the shape: messages(message_id PK, topic_id,
// sender_id, sender_type, role, content, created_at, mentions, ext).
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// SendMessage implements Store.
func (s *SQLStore) SendMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (message_id, topic_id, sender_id, sender_type, role, content, created_at, mentions, ext)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		msg.MessageID, msg.TopicID, msg.SenderID, msg.SenderType, msg.Role,
		msg.Content, msg.CreatedAt, models.RawJSON(msg.Mentions), models.RawJSON(msg.Ext))
	if err != nil {
		return models.Message{}, fmt.Errorf("messagestore: insert message: %w", err)
	}
	return msg, nil
}

// GetMessagesPaginated implements Store.
func (s *SQLStore) GetMessagesPaginated(ctx context.Context, topicID string, limit int, beforeID string) ([]models.Message, bool, string, error) {
	if limit <= 0 {
		limit = 50
	}

	var latestID string
	err := s.db.QueryRowContext(ctx,
		`SELECT message_id FROM messages WHERE topic_id = $1 ORDER BY created_at DESC LIMIT 1`, topicID,
	).Scan(&latestID)
	if err == sql.ErrNoRows {
		return nil, false, "", nil
	}
	if err != nil {
		return nil, false, "", fmt.Errorf("messagestore: latest id query: %w", err)
	}

	var rows *sql.Rows
	if beforeID == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT message_id, sender_id, sender_type, role, content, created_at
			 FROM messages WHERE topic_id = $1 ORDER BY created_at DESC LIMIT $2`,
			topicID, limit+1)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT message_id, sender_id, sender_type, role, content, created_at
			 FROM messages WHERE topic_id = $1 AND created_at < (
				SELECT created_at FROM messages WHERE message_id = $2
			 ) ORDER BY created_at DESC LIMIT $3`,
			topicID, beforeID, limit+1)
	}
	if err != nil {
		return nil, false, "", fmt.Errorf("messagestore: page query: %w", err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.MessageID, &m.SenderID, &m.SenderType, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, false, "", fmt.Errorf("messagestore: scan message: %w", err)
		}
		m.TopicID = topicID
		out = append(out, m)
	}

	hasMore := len(out) > limit
	if hasMore {
		out = out[:limit]
	}
	return out, hasMore, latestID, nil
}

// DeleteAfter implements Store.
func (s *SQLStore) DeleteAfter(ctx context.Context, topicID, targetID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM messages WHERE topic_id = $1 AND created_at > (
			SELECT created_at FROM messages WHERE message_id = $2
		)`, topicID, targetID)
	if err != nil {
		return fmt.Errorf("messagestore: delete after: %w", err)
	}
	return nil
}

// sortMessagesByCreatedAt is used by tests seeding out-of-order fixtures.
func sortMessagesByCreatedAt(msgs []models.Message) {
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
}
