// Package history persists chat turns of authenticated users.
package history

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/shopmduc247/product-assistant-bfa-go/internal/domain"
	"github.com/shopmduc247/product-assistant-bfa-go/internal/infra/resilience"
)

var tracer = otel.Tracer("infra/history")

const insertMessage = `INSERT INTO chat_messages (id, user_id, role, content) VALUES ($1, $2, $3, $4)`

const recentMessages = `
SELECT id, user_id, role, content FROM (
    SELECT id, user_id, role, content, created_at
    FROM chat_messages
    WHERE user_id = $1
    ORDER BY created_at DESC
    LIMIT $2
) recent
ORDER BY created_at ASC`

// PostgresStore writes chat turns to the chat_messages table.
type PostgresStore struct {
	db    *sql.DB
	guard *resilience.Guard
}

// NewPostgresStore creates a history store over db.
func NewPostgresStore(db *sql.DB, guard *resilience.Guard) *PostgresStore {
	return &PostgresStore{db: db, guard: guard}
}

// EnsureSchema creates the chat_messages table if it does not already exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chat_messages (
            id UUID PRIMARY KEY,
            user_id TEXT NOT NULL,
            role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
            content TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_user ON chat_messages(user_id, created_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// Save appends one turn.
func (s *PostgresStore) Save(ctx context.Context, userID, role, text string) error {
	ctx, span := tracer.Start(ctx, "PostgresStore.Save")
	defer span.End()
	span.SetAttributes(attribute.String("history.role", role))

	if err := validateTurn(userID, role); err != nil {
		return err
	}

	_, err := resilience.Execute(ctx, s.guard, func(ctx context.Context) (struct{}, error) {
		if _, err := s.db.ExecContext(ctx, insertMessage, uuid.NewString(), userID, role, text); err != nil {
			return struct{}{}, fmt.Errorf("insert chat message: %w", err)
		}
		return struct{}{}, nil
	})
	return err
}

// Recent returns the last limit turns of userID, oldest first.
func (s *PostgresStore) Recent(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error) {
	ctx, span := tracer.Start(ctx, "PostgresStore.Recent")
	defer span.End()

	return resilience.Execute(ctx, s.guard, func(ctx context.Context) ([]domain.ChatMessage, error) {
		rows, err := s.db.QueryContext(ctx, recentMessages, userID, limit)
		if err != nil {
			return nil, fmt.Errorf("query chat messages: %w", err)
		}
		defer rows.Close()

		out := []domain.ChatMessage{}
		for rows.Next() {
			var m domain.ChatMessage
			if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Content); err != nil {
				return nil, fmt.Errorf("scan chat message: %w", err)
			}
			out = append(out, m)
		}
		return out, rows.Err()
	})
}

func validateTurn(userID, role string) error {
	if userID == "" {
		return &domain.ErrValidation{Field: "user_id", Message: "required"}
	}
	if role != domain.RoleUser && role != domain.RoleAssistant {
		return &domain.ErrValidation{Field: "role", Message: fmt.Sprintf("unknown role %q", role)}
	}
	return nil
}
