package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/chatbot-auth/internal/database"
)

var (
	ErrNotFound     = errors.New("chat not found")
	ErrUserNotFound = errors.New("chat owner not found")
)

// Repository handles chat and message persistence
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a chat and appends it to the owner's chat list in one transaction
func (r *Repository) Create(ctx context.Context, userID uuid.UUID, title *string) (*Chat, error) {
	dbChat := &database.Chat{
		ID:            uuid.New(),
		InitializedBy: userID,
		Title:         title,
	}

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(dbChat).Returning("*").Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert chat: %w", err)
		}

		result, err := tx.NewUpdate().
			Model((*database.User)(nil)).
			Set("chat_ids = array_append(chat_ids, ?)", dbChat.ID.String()).
			Set("updated_at = NOW()").
			Where("id = ?", userID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to append chat to user: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return ErrUserNotFound
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return mapDBChatToModel(dbChat), nil
}

// GetByID retrieves a chat by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Chat, error) {
	dbChat := new(database.Chat)
	err := r.db.NewSelect().
		Model(dbChat).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}

	return mapDBChatToModel(dbChat), nil
}

// ListByUser returns the user's chats, oldest first
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Chat, error) {
	var dbChats []database.Chat
	err := r.db.NewSelect().
		Model(&dbChats).
		Where("initialized_by = ?", userID).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}

	chats := make([]*Chat, 0, len(dbChats))
	for i := range dbChats {
		chats = append(chats, mapDBChatToModel(&dbChats[i]))
	}
	return chats, nil
}

// AddMessage stores a message and bumps the chat's message counter
func (r *Repository) AddMessage(ctx context.Context, chatID uuid.UUID, role Role, content string) (*Message, error) {
	dbMsg := &database.Message{
		ID:      uuid.New(),
		ChatID:  chatID,
		Role:    string(role),
		Content: content,
	}

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		result, err := tx.NewUpdate().
			Model((*database.Chat)(nil)).
			Set("message_count = message_count + 1").
			Set("updated_at = NOW()").
			Where("id = ?", chatID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to bump message count: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return ErrNotFound
		}

		if _, err := tx.NewInsert().Model(dbMsg).Returning("*").Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:        dbMsg.ID,
		ChatID:    dbMsg.ChatID,
		Role:      Role(dbMsg.Role),
		Content:   dbMsg.Content,
		CreatedAt: dbMsg.CreatedAt,
	}, nil
}

func mapDBChatToModel(dbc *database.Chat) *Chat {
	return &Chat{
		ID:            dbc.ID,
		InitializedBy: dbc.InitializedBy,
		Title:         dbc.Title,
		MessageCount:  dbc.MessageCount,
		CreatedAt:     dbc.CreatedAt,
		UpdatedAt:     dbc.UpdatedAt,
	}
}
