package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/chatbot-auth/internal/database"
)

var chatColumns = []string{"id", "initialized_by", "title", "message_count", "created_at", "updated_at"}

func newTestRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	return NewRepository(database.NewBunDB(sqlDB)), mock
}

func TestRepository_Create_AppendsToUser(t *testing.T) {
	repo, mock := newTestRepo(t)

	userID := uuid.New()
	chatID := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "chats"`).
		WillReturnRows(sqlmock.NewRows(chatColumns).AddRow(chatID.String(), userID.String(), nil, 0, now, now))
	mock.ExpectExec(`UPDATE "users".*array_append\(chat_ids`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	created, err := repo.Create(context.Background(), userID, nil)
	require.NoError(t, err)

	assert.Equal(t, chatID, created.ID)
	assert.Equal(t, userID, created.InitializedBy)
	assert.True(t, created.IsEmpty())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Create_MissingUserRollsBack(t *testing.T) {
	repo, mock := newTestRepo(t)

	userID := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "chats"`).
		WillReturnRows(sqlmock.NewRows(chatColumns).AddRow(uuid.NewString(), userID.String(), nil, 0, now, now))
	mock.ExpectExec(`UPDATE "users"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), userID, nil)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery(`SELECT .* FROM "chats"`).WillReturnRows(sqlmock.NewRows(chatColumns))

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_AddMessage(t *testing.T) {
	t.Run("bumps counter and inserts", func(t *testing.T) {
		repo, mock := newTestRepo(t)
		chatID := uuid.New()
		msgID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "chats".*message_count = message_count \+ 1`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`INSERT INTO "messages"`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "chat_id", "role", "content", "created_at"}).
				AddRow(msgID.String(), chatID.String(), "user", "hi", time.Now()))
		mock.ExpectCommit()

		msg, err := repo.AddMessage(context.Background(), chatID, RoleUser, "hi")
		require.NoError(t, err)
		assert.Equal(t, msgID, msg.ID)
		assert.Equal(t, RoleUser, msg.Role)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing chat", func(t *testing.T) {
		repo, mock := newTestRepo(t)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "chats"`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := repo.AddMessage(context.Background(), uuid.New(), RoleUser, "hi")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("insert failure", func(t *testing.T) {
		repo, mock := newTestRepo(t)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "chats"`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`INSERT INTO "messages"`).WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		_, err := repo.AddMessage(context.Background(), uuid.New(), RoleUser, "hi")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
	})
}
