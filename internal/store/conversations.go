package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/kildespor/kildespor/models"
)

func (s *Store) CreateConversation(ctx context.Context, userID, orgID, title string) (models.Conversation, error) {
	var c models.Conversation
	var updated sql.NullTime
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO conversations (user_id, organization_id, title)
VALUES ($1,$2,$3)
RETURNING id, user_id, organization_id, title, created_at, updated_at`,
		userID, orgID, title).
		Scan(&c.ID, &c.UserID, &c.OrganizationID, &c.Title, &c.CreatedAt, &updated)
	if err != nil {
		return models.Conversation{}, err
	}
	if updated.Valid {
		c.UpdatedAt = &updated.Time
	}
	return c, nil
}

// GetConversation fetches a conversation only if it belongs to the user and
// their organization.
func (s *Store) GetConversation(ctx context.Context, id, userID, orgID string) (models.Conversation, bool, error) {
	var c models.Conversation
	var updated sql.NullTime
	err := s.DB.QueryRowContext(ctx, `
SELECT id, user_id, organization_id, title, created_at, updated_at
FROM conversations
WHERE id=$1 AND user_id=$2 AND organization_id=$3`, id, userID, orgID).
		Scan(&c.ID, &c.UserID, &c.OrganizationID, &c.Title, &c.CreatedAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, false, nil
	}
	if err != nil {
		return models.Conversation{}, false, err
	}
	if updated.Valid {
		c.UpdatedAt = &updated.Time
	}
	return c, true, nil
}

func (s *Store) ListConversations(ctx context.Context, userID, orgID string, skip, limit int) ([]models.Conversation, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT c.id, c.user_id, c.organization_id, c.title, c.created_at, c.updated_at,
       (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
FROM conversations c
WHERE c.user_id=$1 AND c.organization_id=$2
ORDER BY c.updated_at DESC NULLS LAST, c.created_at DESC
OFFSET $3 LIMIT $4`, userID, orgID, skip, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Conversation
	for rows.Next() {
		var c models.Conversation
		var updated sql.NullTime
		if err := rows.Scan(&c.ID, &c.UserID, &c.OrganizationID, &c.Title, &c.CreatedAt, &updated, &c.MessageCount); err != nil {
			return nil, err
		}
		if updated.Valid {
			c.UpdatedAt = &updated.Time
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) DeleteConversation(ctx context.Context, id, userID, orgID string) (bool, error) {
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM conversations WHERE id=$1 AND user_id=$2 AND organization_id=$3`, id, userID, orgID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// AddMessage appends a message and bumps the conversation's updated_at in
// one transaction. Sources may be nil for user messages; for assistant
// messages an empty non-nil slice persists as an empty JSON list.
func (s *Store) AddMessage(ctx context.Context, convID, role, content string, sources []models.Source) (models.Message, error) {
	var srcJSON interface{}
	if sources != nil {
		b, err := json.Marshal(sources)
		if err != nil {
			return models.Message{}, err
		}
		srcJSON = b
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	var m models.Message
	err = tx.QueryRowContext(ctx, `
INSERT INTO messages (conversation_id, role, content, sources)
VALUES ($1,$2,$3,$4)
RETURNING id, conversation_id, role, content, created_at`,
		convID, role, content, srcJSON).
		Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt)
	if err != nil {
		return models.Message{}, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at=now() WHERE id=$1`, convID); err != nil {
		return models.Message{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Message{}, err
	}
	m.Sources = sources
	return m, nil
}

func (s *Store) ListMessages(ctx context.Context, convID string, limit int) ([]models.Message, error) {
	query := `
SELECT id, conversation_id, role, content, sources, created_at
FROM messages WHERE conversation_id=$1 ORDER BY created_at`
	args := []interface{}{convID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Message
	for rows.Next() {
		var m models.Message
		var srcJSON []byte
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &srcJSON, &m.CreatedAt); err != nil {
			return nil, err
		}
		if len(srcJSON) > 0 {
			if err := json.Unmarshal(srcJSON, &m.Sources); err != nil {
				return nil, err
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// History returns the last messages of a conversation as role/content pairs
// for the retrieval engine's conversation memory.
func (s *Store) History(ctx context.Context, convID string, max int) ([]models.HistoryEntry, error) {
	msgs, err := s.ListMessages(ctx, convID, max)
	if err != nil {
		return nil, err
	}
	out := make([]models.HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, models.HistoryEntry{Role: m.Role, Content: m.Content})
	}
	return out, nil
}
