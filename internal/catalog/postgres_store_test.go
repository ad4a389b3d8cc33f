package catalog

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

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewPostgresStore(db), mock
}

func TestPostgresStore_Authors(t *testing.T) {
	ctx := context.Background()

	t.Run("create", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO autores")).
			WithArgs("Cecília Meireles", "Poeta", "1901-11-07").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))

		a := &Author{Nome: "Cecília Meireles", Biografia: "Poeta", DataNascimento: "1901-11-07"}
		require.NoError(t, store.CreateAuthor(ctx, a))
		assert.Equal(t, int64(5), a.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("create unique violation", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO autores")).
			WithArgs("Dup", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnError(&pq.Error{Code: uniqueViolation})

		err := store.CreateAuthor(ctx, &Author{Nome: "Dup"})
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("get", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM autores WHERE id = $1")).
			WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "nome", "biografia", "data_nascimento"}).
				AddRow(5, "Cecília Meireles", "", "1901-11-07"))

		a, err := store.GetAuthor(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, &Author{ID: 5, Nome: "Cecília Meireles", DataNascimento: "1901-11-07"}, a)
	})

	t.Run("get missing", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM autores WHERE id = $1")).
			WithArgs(int64(9)).
			WillReturnError(sql.ErrNoRows)

		_, err := store.GetAuthor(ctx, 9)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update missing", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE autores SET")).
			WithArgs(int64(9), "X", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.UpdateAuthor(ctx, &Author{ID: 9, Nome: "X"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete referenced", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM autores WHERE id = $1")).
			WithArgs(int64(5)).
			WillReturnError(&pq.Error{Code: foreignKeyViolation})

		err := store.DeleteAuthor(ctx, 5)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("name exists ignores case", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE LOWER(nome) = LOWER($1)")).
			WithArgs("jorge amado").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		exists, err := store.AuthorNameExists(ctx, "jorge amado")
		require.NoError(t, err)
		assert.True(t, exists)
	})
}

func TestPostgresStore_Genres(t *testing.T) {
	ctx := context.Background()

	t.Run("list", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM generos ORDER BY id")).
			WillReturnRows(sqlmock.NewRows([]string{"id", "nome", "descricao"}).
				AddRow(1, "Romance", "").
				AddRow(2, "Poesia", "Versos"))

		genres, err := store.ListGenres(ctx)
		require.NoError(t, err)
		assert.Equal(t, []Genre{{ID: 1, Nome: "Romance"}, {ID: 2, Nome: "Poesia", Descricao: "Versos"}}, genres)
	})

	t.Run("list empty is not nil", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM generos ORDER BY id")).
			WillReturnRows(sqlmock.NewRows([]string{"id", "nome", "descricao"}))

		genres, err := store.ListGenres(ctx)
		require.NoError(t, err)
		assert.NotNil(t, genres)
		assert.Empty(t, genres)
	})

	t.Run("delete", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM generos WHERE id = $1")).
			WithArgs(int64(2)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.DeleteGenre(ctx, 2))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_Books(t *testing.T) {
	ctx := context.Background()
	bookColumns := []string{"id", "titulo", "isbn", "editora", "ano_publicacao", "genero_id", "autor_id",
		"g_nome", "g_descricao", "a_nome", "a_biografia", "a_data_nascimento"}

	t.Run("get joins author and genre", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM livros l")).
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows(bookColumns).
				AddRow(3, "Capitães da Areia", "978-1", "Record", 1937, 2, 1, "Romance", "", "Jorge Amado", "", "1912-08-10"))

		b, err := store.GetBook(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, "Capitães da Areia", b.Titulo)
		require.NotNil(t, b.AnoPublicacao)
		assert.Equal(t, 1937, *b.AnoPublicacao)
		assert.Equal(t, &Genre{ID: 2, Nome: "Romance"}, b.Genero)
		assert.Equal(t, &Author{ID: 1, Nome: "Jorge Amado", DataNascimento: "1912-08-10"}, b.Autor)
	})

	t.Run("null year", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM livros l")).
			WillReturnRows(sqlmock.NewRows(bookColumns).
				AddRow(3, "T", "1", "E", nil, 2, 1, "G", "", "A", "", ""))

		books, err := store.ListBooks(ctx)
		require.NoError(t, err)
		require.Len(t, books, 1)
		assert.Nil(t, books[0].AnoPublicacao)
	})

	t.Run("create", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO livros")).
			WithArgs("T", "978-2", "E", int64(2001), int64(2), int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))

		ano := 2001
		b := &Book{Titulo: "T", ISBN: "978-2", Editora: "E", AnoPublicacao: &ano, GeneroID: 2, AutorID: 1}
		require.NoError(t, store.CreateBook(ctx, b))
		assert.Equal(t, int64(10), b.ID)
	})

	t.Run("update db error is wrapped", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE livros")).
			WillReturnError(errors.New("connection reset"))

		err := store.UpdateBook(ctx, &Book{ID: 1})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrConflict)
		assert.Contains(t, err.Error(), "update book")
	})

	t.Run("isbn exists excludes id", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE LOWER(isbn) = LOWER($1) AND id <> $2")).
			WithArgs("978-2", int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		exists, err := store.ISBNExists(ctx, "978-2", 10)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("book ids by author", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM livros WHERE autor_id = $1")).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3).AddRow(4))

		ids, err := store.BookIDsByAuthor(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []int64{3, 4}, ids)
	})
}
