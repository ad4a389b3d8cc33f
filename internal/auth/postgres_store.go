package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// uniqueViolation is the Postgres SQLSTATE for unique_violation
const uniqueViolation = "23505"

// PostgresPrincipalStore implements PrincipalStore using PostgreSQL
type PostgresPrincipalStore struct {
	db *sql.DB
}

// NewPostgresPrincipalStore creates a new PostgreSQL principal store
func NewPostgresPrincipalStore(db *sql.DB) *PostgresPrincipalStore {
	return &PostgresPrincipalStore{db: db}
}

// FindByUsername loads a principal and its role set
func (s *PostgresPrincipalStore) FindByUsername(ctx context.Context, username string) (*Principal, error) {
	query := `
		SELECT u.id, u.username, u.password,
			COALESCE(array_agg(r.role ORDER BY r.role) FILTER (WHERE r.role IS NOT NULL), '{}')
		FROM usuarios u
		LEFT JOIN usuario_roles r ON r.usuario_id = u.id
		WHERE u.username = $1
		GROUP BY u.id, u.username, u.password
	`

	var (
		p     Principal
		roles []string
	)
	err := s.db.QueryRowContext(ctx, query, username).Scan(&p.ID, &p.Username, &p.PasswordHash, pq.Array(&roles))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPrincipalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}

	p.Roles = make([]Role, 0, len(roles))
	for _, r := range roles {
		p.Roles = append(p.Roles, Role(r))
	}
	return &p, nil
}

// ExistsByUsername reports whether a principal with username is stored
func (s *PostgresPrincipalStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM usuarios WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("database query failed: %w", err)
	}
	return exists, nil
}

// Create inserts the principal and its roles in one transaction
func (s *PostgresPrincipalStore) Create(ctx context.Context, p *Principal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO usuarios (username, password) VALUES ($1, $2) RETURNING id`,
		p.Username, p.PasswordHash,
	).Scan(&p.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrUsernameTaken
		}
		return fmt.Errorf("failed to insert principal: %w", err)
	}

	if len(p.Roles) > 0 {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO usuario_roles (usuario_id, role) SELECT $1, unnest($2::text[])`,
			p.ID, pq.Array(RoleNames(p.Roles)),
		)
		if err != nil {
			return fmt.Errorf("failed to insert roles: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
