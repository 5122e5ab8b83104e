package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/domain"
)

type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) AppendTurn(ctx context.Context, message domain.Message) error {
	if strings.TrimSpace(message.SessionID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "append turn", errors.New("session id is required"))
	}
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO chat_messages (id, user_id, session_id, role, content, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, message.ID, message.UserID, message.SessionID, message.Role, message.Content, message.CreatedAt)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// RecentTurns returns the last limit messages of a session, oldest first.
// Messages stamped with the same time keep their insertion order via seq.
func (r *ConversationRepository) RecentTurns(ctx context.Context, userID, sessionID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_id, session_id, role, content, created_at
FROM chat_messages
WHERE user_id = $1 AND session_id = $2
ORDER BY created_at DESC, seq DESC
LIMIT $3
`, userID, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent turns: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Message, 0, limit)
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.UserID,
			&msg.SessionID,
			&msg.Role,
			&msg.Content,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan recent turn: %w", err)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent turns: %w", err)
	}

	// Returned in descending order from SQL; reverse to keep chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// DeleteSession drops a session's history and reports how many messages went.
func (r *ConversationRepository) DeleteSession(ctx context.Context, userID, sessionID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
DELETE FROM chat_messages
WHERE user_id = $1 AND session_id = $2
`, userID, sessionID)
	if err != nil {
		return 0, fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete session rows affected: %w", err)
	}
	if n == 0 {
		return 0, domain.WrapError(domain.ErrNotFound, "delete session", fmt.Errorf("session %s not found", sessionID))
	}
	return n, nil
}
