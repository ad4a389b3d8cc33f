package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

func genreNotFound(id int64) error {
	return notFound("Gênero não encontrado com ID: %d", id)
}

// CreateGenre registers a genre whose name is not yet taken, ignoring case
func (s *Service) CreateGenre(ctx context.Context, in GenreInput) (*Genre, error) {
	in = in.normalized()
	if err := in.Validate(); err != nil {
		return nil, invalidInput(err)
	}

	exists, err := s.store.GenreNameExists(ctx, in.Nome)
	if err != nil {
		return nil, fmt.Errorf("check genre name: %w", err)
	}
	if exists {
		return nil, conflict("Já existe um gênero com este nome: %s", in.Nome)
	}

	g := &Genre{Nome: in.Nome, Descricao: in.Descricao}
	if err := s.store.CreateGenre(ctx, g); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, conflict("Já existe um gênero com este nome: %s", in.Nome)
		}
		return nil, fmt.Errorf("create genre: %w", err)
	}

	s.logger.Info("Genre created", zap.Int64("id", g.ID))
	return g, nil
}

// GetGenre returns a genre by id
func (s *Service) GetGenre(ctx context.Context, id int64) (*Genre, error) {
	return readThrough(ctx, s, cacheKey(genreKeyPrefix, id), func() (*Genre, error) {
		g, err := s.store.GetGenre(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return nil, genreNotFound(id)
		}
		if err != nil {
			return nil, fmt.Errorf("get genre: %w", err)
		}
		return g, nil
	})
}

// ListGenres returns every genre ordered by id
func (s *Service) ListGenres(ctx context.Context) ([]Genre, error) {
	genres, err := s.store.ListGenres(ctx)
	if err != nil {
		return nil, fmt.Errorf("list genres: %w", err)
	}
	return genres, nil
}

// UpdateGenre replaces the fields of an existing genre
func (s *Service) UpdateGenre(ctx context.Context, id int64, in GenreInput) (*Genre, error) {
	in = in.normalized()
	if err := in.Validate(); err != nil {
		return nil, invalidInput(err)
	}

	g := &Genre{ID: id, Nome: in.Nome, Descricao: in.Descricao}
	if err := s.store.UpdateGenre(ctx, g); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, genreNotFound(id)
		case errors.Is(err, ErrConflict):
			return nil, conflict("Já existe um gênero com este nome: %s", in.Nome)
		}
		return nil, fmt.Errorf("update genre: %w", err)
	}

	keys := []string{cacheKey(genreKeyPrefix, id)}
	bookIDs, err := s.store.BookIDsByGenre(ctx, id)
	if err != nil {
		s.logger.Warn("Failed to list books for cache invalidation", zap.Int64("genre_id", id), zap.Error(err))
	}
	for _, bid := range bookIDs {
		keys = append(keys, cacheKey(bookKeyPrefix, bid))
	}
	s.invalidate(ctx, keys...)
	return g, nil
}

// DeleteGenre removes a genre that no book references
func (s *Service) DeleteGenre(ctx context.Context, id int64) error {
	if err := s.store.DeleteGenre(ctx, id); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return genreNotFound(id)
		case errors.Is(err, ErrConflict):
			return conflict("Gênero possui livros cadastrados: %d", id)
		}
		return fmt.Errorf("delete genre: %w", err)
	}

	s.invalidate(ctx, cacheKey(genreKeyPrefix, id))
	s.logger.Info("Genre deleted", zap.Int64("id", id))
	return nil
}
