package repository

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-notes/inkwell/internal/domain"
)

func newTestRepo(t *testing.T) *SessionRepository {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSessionRepository(db)
}

func sampleSession(title string) *domain.ChatSession {
	now := time.Now()
	return &domain.ChatSession{
		Title: title,
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: "first question", Timestamp: now},
			{Role: domain.RoleAssistant, Content: "first answer", Timestamp: now},
		},
		UpdatedAt: now,
	}
}

func TestCreateAndGetRoundtrip(t *testing.T) {
	repo := newTestRepo(t)

	session := sampleSession("My notes")
	require.NoError(t, repo.Create(session))
	require.NotEmpty(t, session.ID)

	got, err := repo.Get(session.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, "My notes", got.Title)
	assert.WithinDuration(t, session.UpdatedAt, got.UpdatedAt, time.Second)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, domain.RoleUser, got.Messages[0].Role)
	assert.Equal(t, "first question", got.Messages[0].Content)
	assert.Equal(t, domain.RoleAssistant, got.Messages[1].Role)
	assert.Equal(t, "first answer", got.Messages[1].Content)
}

func TestGetMissingReturnsNil(t *testing.T) {
	repo := newTestRepo(t)

	got, err := repo.Get("does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdateReplacesMessageSequence(t *testing.T) {
	repo := newTestRepo(t)

	session := sampleSession("Before")
	require.NoError(t, repo.Create(session))

	session.Title = "After"
	session.Messages = append(session.Messages,
		domain.Message{Role: domain.RoleUser, Content: "second question", Timestamp: time.Now()},
		domain.Message{Role: domain.RoleAssistant, Content: "second answer", Timestamp: time.Now()},
	)
	require.NoError(t, repo.Update(session))

	got, err := repo.Get(session.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "After", got.Title)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "second answer", got.Messages[3].Content)
}

func TestUpdateMissingSession(t *testing.T) {
	repo := newTestRepo(t)

	session := sampleSession("ghost")
	session.ID = "no-such-id"
	assert.ErrorIs(t, repo.Update(session), domain.ErrNotFound)
}

func TestListOrdersByRecency(t *testing.T) {
	repo := newTestRepo(t)

	older := sampleSession("older")
	older.UpdatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, repo.Create(older))

	newer := sampleSession("newer")
	require.NoError(t, repo.Create(newer))

	sessions, err := repo.List()
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "newer", sessions[0].Title)
	assert.Equal(t, "older", sessions[1].Title)
}

func TestDeleteCascadesMessages(t *testing.T) {
	repo := newTestRepo(t)

	session := sampleSession("doomed")
	require.NoError(t, repo.Create(session))
	require.NoError(t, repo.Delete(session.ID))

	got, err := repo.Get(session.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	var count int
	err = repo.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE session_id = ?`, session.ID).Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDeleteMissingSession(t *testing.T) {
	repo := newTestRepo(t)
	assert.ErrorIs(t, repo.Delete("nope"), domain.ErrNotFound)
}
