package auth

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPrincipalStore(t *testing.T) (*PostgresPrincipalStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewPostgresPrincipalStore(db), mock
}

func TestPostgresPrincipalStore_FindByUsername(t *testing.T) {
	ctx := context.Background()
	query := regexp.QuoteMeta("SELECT u.id, u.username, u.password")

	t.Run("found", func(t *testing.T) {
		store, mock := newMockPrincipalStore(t)
		mock.ExpectQuery(query).
			WithArgs("alice").
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password", "roles"}).
				AddRow(7, "alice", "$2a$hash", "{ESCRITA,LEITURA}"))

		p, err := store.FindByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(7), p.ID)
		assert.Equal(t, "alice", p.Username)
		assert.Equal(t, "$2a$hash", p.PasswordHash)
		assert.Equal(t, []Role{RoleEscrita, RoleLeitura}, p.Roles)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		store, mock := newMockPrincipalStore(t)
		mock.ExpectQuery(query).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

		_, err := store.FindByUsername(ctx, "ghost")
		assert.ErrorIs(t, err, ErrPrincipalNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		store, mock := newMockPrincipalStore(t)
		mock.ExpectQuery(query).WithArgs("alice").WillReturnError(errors.New("connection reset"))

		_, err := store.FindByUsername(ctx, "alice")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrPrincipalNotFound)
	})
}

func TestPostgresPrincipalStore_ExistsByUsername(t *testing.T) {
	store, mock := newMockPrincipalStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM usuarios WHERE username = $1)")).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := store.ExistsByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPrincipalStore_Create(t *testing.T) {
	ctx := context.Background()
	insertUser := regexp.QuoteMeta("INSERT INTO usuarios (username, password) VALUES ($1, $2) RETURNING id")
	insertRoles := regexp.QuoteMeta("INSERT INTO usuario_roles (usuario_id, role)")

	t.Run("success", func(t *testing.T) {
		store, mock := newMockPrincipalStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(insertUser).
			WithArgs("alice", "$2a$hash").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
		mock.ExpectExec(insertRoles).
			WithArgs(int64(42), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		p := &Principal{Username: "alice", PasswordHash: "$2a$hash", Roles: []Role{RoleLeitura, RoleEscrita}}
		require.NoError(t, store.Create(ctx, p))
		assert.Equal(t, int64(42), p.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation", func(t *testing.T) {
		store, mock := newMockPrincipalStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(insertUser).
			WithArgs("alice", "$2a$hash").
			WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})
		mock.ExpectRollback()

		err := store.Create(ctx, &Principal{Username: "alice", PasswordHash: "$2a$hash", Roles: []Role{RoleLeitura}})
		assert.ErrorIs(t, err, ErrUsernameTaken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("role insert failure rolls back", func(t *testing.T) {
		store, mock := newMockPrincipalStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(insertUser).
			WithArgs("alice", "$2a$hash").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectExec(insertRoles).WillReturnError(errors.New("constraint"))
		mock.ExpectRollback()

		err := store.Create(ctx, &Principal{Username: "alice", PasswordHash: "$2a$hash", Roles: []Role{RoleLeitura}})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUsernameTaken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
