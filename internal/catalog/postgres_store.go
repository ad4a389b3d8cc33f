package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Postgres SQLSTATE codes
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL catalog store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// storeError translates constraint violations into ErrConflict and wraps
// everything else with op
func storeError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case uniqueViolation, foreignKeyViolation:
			return ErrConflict
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const authorColumns = `id, nome, COALESCE(biografia, ''), COALESCE(TO_CHAR(data_nascimento, 'YYYY-MM-DD'), '')`

func (s *PostgresStore) CreateAuthor(ctx context.Context, a *Author) error {
	query := `INSERT INTO autores (nome, biografia, data_nascimento) VALUES ($1, $2, $3::date) RETURNING id`
	err := s.db.QueryRowContext(ctx, query, a.Nome, nullString(a.Biografia), nullString(a.DataNascimento)).Scan(&a.ID)
	if err != nil {
		return storeError("insert author", err)
	}
	return nil
}

func (s *PostgresStore) GetAuthor(ctx context.Context, id int64) (*Author, error) {
	var a Author
	err := s.db.QueryRowContext(ctx, `SELECT `+authorColumns+` FROM autores WHERE id = $1`, id).
		Scan(&a.ID, &a.Nome, &a.Biografia, &a.DataNascimento)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query author: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) ListAuthors(ctx context.Context) ([]Author, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+authorColumns+` FROM autores ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query authors: %w", err)
	}
	defer rows.Close()

	out := []Author{}
	for rows.Next() {
		var a Author
		if err := rows.Scan(&a.ID, &a.Nome, &a.Biografia, &a.DataNascimento); err != nil {
			return nil, fmt.Errorf("scan author: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateAuthor(ctx context.Context, a *Author) error {
	query := `UPDATE autores SET nome = $2, biografia = $3, data_nascimento = $4::date WHERE id = $1`
	res, err := s.db.ExecContext(ctx, query, a.ID, a.Nome, nullString(a.Biografia), nullString(a.DataNascimento))
	if err != nil {
		return storeError("update author", err)
	}
	return checkAffected(res)
}

func (s *PostgresStore) DeleteAuthor(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM autores WHERE id = $1`, id)
	if err != nil {
		return storeError("delete author", err)
	}
	return checkAffected(res)
}

func (s *PostgresStore) AuthorNameExists(ctx context.Context, nome string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS(SELECT 1 FROM autores WHERE LOWER(nome) = LOWER($1))`, nome)
}

func (s *PostgresStore) CreateGenre(ctx context.Context, g *Genre) error {
	query := `INSERT INTO generos (nome, descricao) VALUES ($1, $2) RETURNING id`
	err := s.db.QueryRowContext(ctx, query, g.Nome, nullString(g.Descricao)).Scan(&g.ID)
	if err != nil {
		return storeError("insert genre", err)
	}
	return nil
}

func (s *PostgresStore) GetGenre(ctx context.Context, id int64) (*Genre, error) {
	var g Genre
	err := s.db.QueryRowContext(ctx, `SELECT id, nome, COALESCE(descricao, '') FROM generos WHERE id = $1`, id).
		Scan(&g.ID, &g.Nome, &g.Descricao)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query genre: %w", err)
	}
	return &g, nil
}

func (s *PostgresStore) ListGenres(ctx context.Context) ([]Genre, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, nome, COALESCE(descricao, '') FROM generos ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query genres: %w", err)
	}
	defer rows.Close()

	out := []Genre{}
	for rows.Next() {
		var g Genre
		if err := rows.Scan(&g.ID, &g.Nome, &g.Descricao); err != nil {
			return nil, fmt.Errorf("scan genre: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateGenre(ctx context.Context, g *Genre) error {
	res, err := s.db.ExecContext(ctx, `UPDATE generos SET nome = $2, descricao = $3 WHERE id = $1`,
		g.ID, g.Nome, nullString(g.Descricao))
	if err != nil {
		return storeError("update genre", err)
	}
	return checkAffected(res)
}

func (s *PostgresStore) DeleteGenre(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM generos WHERE id = $1`, id)
	if err != nil {
		return storeError("delete genre", err)
	}
	return checkAffected(res)
}

func (s *PostgresStore) GenreNameExists(ctx context.Context, nome string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS(SELECT 1 FROM generos WHERE LOWER(nome) = LOWER($1))`, nome)
}

const bookSelect = `
	SELECT l.id, l.titulo, l.isbn, l.editora, l.ano_publicacao, l.genero_id, l.autor_id,
		g.nome, COALESCE(g.descricao, ''),
		a.nome, COALESCE(a.biografia, ''), COALESCE(TO_CHAR(a.data_nascimento, 'YYYY-MM-DD'), '')
	FROM livros l
	JOIN generos g ON g.id = l.genero_id
	JOIN autores a ON a.id = l.autor_id`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBook(row rowScanner) (*Book, error) {
	var (
		b   Book
		g   Genre
		a   Author
		ano sql.NullInt64
	)
	err := row.Scan(&b.ID, &b.Titulo, &b.ISBN, &b.Editora, &ano, &b.GeneroID, &b.AutorID,
		&g.Nome, &g.Descricao,
		&a.Nome, &a.Biografia, &a.DataNascimento)
	if err != nil {
		return nil, err
	}
	b.AnoPublicacao = intPtr(ano)
	g.ID = b.GeneroID
	a.ID = b.AutorID
	b.Genero = &g
	b.Autor = &a
	return &b, nil
}

func (s *PostgresStore) CreateBook(ctx context.Context, b *Book) error {
	query := `
		INSERT INTO livros (titulo, isbn, editora, ano_publicacao, genero_id, autor_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query, b.Titulo, b.ISBN, b.Editora, nullInt(b.AnoPublicacao), b.GeneroID, b.AutorID).
		Scan(&b.ID)
	if err != nil {
		return storeError("insert book", err)
	}
	return nil
}

func (s *PostgresStore) GetBook(ctx context.Context, id int64) (*Book, error) {
	b, err := scanBook(s.db.QueryRowContext(ctx, bookSelect+` WHERE l.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query book: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) ListBooks(ctx context.Context) ([]Book, error) {
	rows, err := s.db.QueryContext(ctx, bookSelect+` ORDER BY l.id`)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	out := []Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateBook(ctx context.Context, b *Book) error {
	query := `
		UPDATE livros
		SET titulo = $2, isbn = $3, editora = $4, ano_publicacao = $5, genero_id = $6, autor_id = $7
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query, b.ID, b.Titulo, b.ISBN, b.Editora, nullInt(b.AnoPublicacao), b.GeneroID, b.AutorID)
	if err != nil {
		return storeError("update book", err)
	}
	return checkAffected(res)
}

func (s *PostgresStore) DeleteBook(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM livros WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	return checkAffected(res)
}

func (s *PostgresStore) ISBNExists(ctx context.Context, isbn string, excludeID int64) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS(SELECT 1 FROM livros WHERE LOWER(isbn) = LOWER($1) AND id <> $2)`, isbn, excludeID)
}

func (s *PostgresStore) BookIDsByAuthor(ctx context.Context, authorID int64) ([]int64, error) {
	return s.ids(ctx, `SELECT id FROM livros WHERE autor_id = $1`, authorID)
}

func (s *PostgresStore) BookIDsByGenre(ctx context.Context, genreID int64) ([]int64, error) {
	return s.ids(ctx, `SELECT id FROM livros WHERE genero_id = $1`, genreID)
}

func (s *PostgresStore) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("database query failed: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ids(ctx context.Context, query string, arg int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
