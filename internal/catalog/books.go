package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

func bookNotFound(id int64) error {
	return notFound("Livro não encontrado com ID: %d", id)
}

// references loads the author and genre a book input points at
func (s *Service) references(ctx context.Context, in BookInput) (*Author, *Genre, error) {
	a, err := s.store.GetAuthor(ctx, in.AutorID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil, authorNotFound(in.AutorID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get author: %w", err)
	}

	g, err := s.store.GetGenre(ctx, in.GeneroID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil, genreNotFound(in.GeneroID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get genre: %w", err)
	}
	return a, g, nil
}

func bookFromInput(id int64, in BookInput) *Book {
	return &Book{
		ID:            id,
		Titulo:        in.Titulo,
		ISBN:          in.ISBN,
		Editora:       in.Editora,
		AnoPublicacao: in.AnoPublicacao,
		GeneroID:      in.GeneroID,
		AutorID:       in.AutorID,
	}
}

// CreateBook registers a book. The ISBN must be unique ignoring case, then
// the referenced author and genre must exist.
func (s *Service) CreateBook(ctx context.Context, in BookInput) (*Book, error) {
	in = in.normalized()
	if err := in.Validate(); err != nil {
		return nil, invalidInput(err)
	}

	exists, err := s.store.ISBNExists(ctx, in.ISBN, 0)
	if err != nil {
		return nil, fmt.Errorf("check isbn: %w", err)
	}
	if exists {
		return nil, conflict("Já existe um livro com este ISBN: %s", in.ISBN)
	}

	a, g, err := s.references(ctx, in)
	if err != nil {
		return nil, err
	}

	b := bookFromInput(0, in)
	if err := s.store.CreateBook(ctx, b); err != nil {
		switch {
		case errors.Is(err, ErrConflict):
			return nil, conflict("Já existe um livro com este ISBN: %s", in.ISBN)
		case errors.Is(err, ErrNotFound):
			return nil, authorNotFound(in.AutorID)
		}
		return nil, fmt.Errorf("create book: %w", err)
	}
	b.Autor, b.Genero = a, g

	s.logger.Info("Book created", zap.Int64("id", b.ID), zap.String("isbn", b.ISBN))
	return b, nil
}

// GetBook returns a book with its author and genre
func (s *Service) GetBook(ctx context.Context, id int64) (*Book, error) {
	return readThrough(ctx, s, cacheKey(bookKeyPrefix, id), func() (*Book, error) {
		b, err := s.store.GetBook(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return nil, bookNotFound(id)
		}
		if err != nil {
			return nil, fmt.Errorf("get book: %w", err)
		}
		return b, nil
	})
}

// ListBooks returns every book ordered by id
func (s *Service) ListBooks(ctx context.Context) ([]Book, error) {
	books, err := s.store.ListBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// UpdateBook replaces an existing book. A missing book is reported before
// the ISBN check, which only considers other books.
func (s *Service) UpdateBook(ctx context.Context, id int64, in BookInput) (*Book, error) {
	in = in.normalized()
	if err := in.Validate(); err != nil {
		return nil, invalidInput(err)
	}

	if _, err := s.store.GetBook(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, bookNotFound(id)
		}
		return nil, fmt.Errorf("get book: %w", err)
	}

	exists, err := s.store.ISBNExists(ctx, in.ISBN, id)
	if err != nil {
		return nil, fmt.Errorf("check isbn: %w", err)
	}
	if exists {
		return nil, conflict("Já existe outro livro com este ISBN: %s", in.ISBN)
	}

	a, g, err := s.references(ctx, in)
	if err != nil {
		return nil, err
	}

	b := bookFromInput(id, in)
	if err := s.store.UpdateBook(ctx, b); err != nil {
		switch {
		case errors.Is(err, ErrConflict):
			return nil, conflict("Já existe outro livro com este ISBN: %s", in.ISBN)
		case errors.Is(err, ErrNotFound):
			return nil, bookNotFound(id)
		}
		return nil, fmt.Errorf("update book: %w", err)
	}
	b.Autor, b.Genero = a, g

	s.invalidate(ctx, cacheKey(bookKeyPrefix, id))
	return b, nil
}

// DeleteBook removes a book
func (s *Service) DeleteBook(ctx context.Context, id int64) error {
	if err := s.store.DeleteBook(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return bookNotFound(id)
		}
		return fmt.Errorf("delete book: %w", err)
	}

	s.invalidate(ctx, cacheKey(bookKeyPrefix, id))
	s.logger.Info("Book deleted", zap.Int64("id", id))
	return nil
}
