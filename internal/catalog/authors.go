package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

func authorNotFound(id int64) error {
	return notFound("Autor não encontrado com ID: %d", id)
}

// CreateAuthor registers an author whose name is not yet taken, ignoring case
func (s *Service) CreateAuthor(ctx context.Context, in AuthorInput) (*Author, error) {
	in = in.normalized()
	if err := in.Validate(); err != nil {
		return nil, invalidInput(err)
	}

	exists, err := s.store.AuthorNameExists(ctx, in.Nome)
	if err != nil {
		return nil, fmt.Errorf("check author name: %w", err)
	}
	if exists {
		return nil, conflict("Autor já existe: %s", in.Nome)
	}

	a := &Author{Nome: in.Nome, Biografia: in.Biografia, DataNascimento: in.DataNascimento}
	if err := s.store.CreateAuthor(ctx, a); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, conflict("Autor já existe: %s", in.Nome)
		}
		return nil, fmt.Errorf("create author: %w", err)
	}

	s.logger.Info("Author created", zap.Int64("id", a.ID))
	return a, nil
}

// GetAuthor returns an author by id
func (s *Service) GetAuthor(ctx context.Context, id int64) (*Author, error) {
	return readThrough(ctx, s, cacheKey(authorKeyPrefix, id), func() (*Author, error) {
		a, err := s.store.GetAuthor(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return nil, authorNotFound(id)
		}
		if err != nil {
			return nil, fmt.Errorf("get author: %w", err)
		}
		return a, nil
	})
}

// ListAuthors returns every author ordered by id
func (s *Service) ListAuthors(ctx context.Context) ([]Author, error) {
	authors, err := s.store.ListAuthors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}
	return authors, nil
}

// UpdateAuthor replaces the fields of an existing author
func (s *Service) UpdateAuthor(ctx context.Context, id int64, in AuthorInput) (*Author, error) {
	in = in.normalized()
	if err := in.Validate(); err != nil {
		return nil, invalidInput(err)
	}

	a := &Author{ID: id, Nome: in.Nome, Biografia: in.Biografia, DataNascimento: in.DataNascimento}
	if err := s.store.UpdateAuthor(ctx, a); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, authorNotFound(id)
		case errors.Is(err, ErrConflict):
			return nil, conflict("Autor já existe: %s", in.Nome)
		}
		return nil, fmt.Errorf("update author: %w", err)
	}

	s.invalidate(ctx, s.authorKeys(ctx, id)...)
	return a, nil
}

// DeleteAuthor removes an author that no book references
func (s *Service) DeleteAuthor(ctx context.Context, id int64) error {
	if err := s.store.DeleteAuthor(ctx, id); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return authorNotFound(id)
		case errors.Is(err, ErrConflict):
			return conflict("Autor possui livros cadastrados: %d", id)
		}
		return fmt.Errorf("delete author: %w", err)
	}

	s.invalidate(ctx, cacheKey(authorKeyPrefix, id))
	s.logger.Info("Author deleted", zap.Int64("id", id))
	return nil
}

// authorKeys lists the cache keys holding a copy of the author
func (s *Service) authorKeys(ctx context.Context, id int64) []string {
	keys := []string{cacheKey(authorKeyPrefix, id)}
	bookIDs, err := s.store.BookIDsByAuthor(ctx, id)
	if err != nil {
		s.logger.Warn("Failed to list books for cache invalidation", zap.Int64("author_id", id), zap.Error(err))
	}
	for _, bid := range bookIDs {
		keys = append(keys, cacheKey(bookKeyPrefix, bid))
	}
	return keys
}
