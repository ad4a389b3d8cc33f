package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Store persists catalog entities. Lookups of missing ids return
// ErrNotFound; unique violations and deletes blocked by referencing books
// return ErrConflict.
type Store interface {
	CreateAuthor(ctx context.Context, a *Author) error
	GetAuthor(ctx context.Context, id int64) (*Author, error)
	ListAuthors(ctx context.Context) ([]Author, error)
	UpdateAuthor(ctx context.Context, a *Author) error
	DeleteAuthor(ctx context.Context, id int64) error
	AuthorNameExists(ctx context.Context, nome string) (bool, error)

	CreateGenre(ctx context.Context, g *Genre) error
	GetGenre(ctx context.Context, id int64) (*Genre, error)
	ListGenres(ctx context.Context) ([]Genre, error)
	UpdateGenre(ctx context.Context, g *Genre) error
	DeleteGenre(ctx context.Context, id int64) error
	GenreNameExists(ctx context.Context, nome string) (bool, error)

	CreateBook(ctx context.Context, b *Book) error
	// GetBook returns the book with Autor and Genero populated
	GetBook(ctx context.Context, id int64) (*Book, error)
	ListBooks(ctx context.Context) ([]Book, error)
	UpdateBook(ctx context.Context, b *Book) error
	DeleteBook(ctx context.Context, id int64) error
	// ISBNExists ignores case; excludeID of 0 excludes nothing
	ISBNExists(ctx context.Context, isbn string, excludeID int64) (bool, error)
	BookIDsByAuthor(ctx context.Context, authorID int64) ([]int64, error)
	BookIDsByGenre(ctx context.Context, genreID int64) ([]int64, error)
}

// MemoryStore is an in-memory Store for tests and development
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	authors map[int64]Author
	genres  map[int64]Genre
	books   map[int64]Book
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		authors: make(map[int64]Author),
		genres:  make(map[int64]Genre),
		books:   make(map[int64]Book),
	}
}

func (s *MemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) authorNameTaken(nome string, exclude int64) bool {
	for id, a := range s.authors {
		if id != exclude && strings.EqualFold(a.Nome, nome) {
			return true
		}
	}
	return false
}

func (s *MemoryStore) genreNameTaken(nome string, exclude int64) bool {
	for id, g := range s.genres {
		if id != exclude && strings.EqualFold(g.Nome, nome) {
			return true
		}
	}
	return false
}

func (s *MemoryStore) isbnTaken(isbn string, exclude int64) bool {
	for id, b := range s.books {
		if id != exclude && strings.EqualFold(b.ISBN, isbn) {
			return true
		}
	}
	return false
}

func (s *MemoryStore) CreateAuthor(ctx context.Context, a *Author) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.authorNameTaken(a.Nome, 0) {
		return ErrConflict
	}
	a.ID = s.id()
	s.authors[a.ID] = *a
	return nil
}

func (s *MemoryStore) GetAuthor(ctx context.Context, id int64) (*Author, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.authors[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (s *MemoryStore) ListAuthors(ctx context.Context) ([]Author, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Author, 0, len(s.authors))
	for _, a := range s.authors {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) UpdateAuthor(ctx context.Context, a *Author) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.authors[a.ID]; !ok {
		return ErrNotFound
	}
	if s.authorNameTaken(a.Nome, a.ID) {
		return ErrConflict
	}
	s.authors[a.ID] = *a
	return nil
}

func (s *MemoryStore) DeleteAuthor(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.authors[id]; !ok {
		return ErrNotFound
	}
	for _, b := range s.books {
		if b.AutorID == id {
			return ErrConflict
		}
	}
	delete(s.authors, id)
	return nil
}

func (s *MemoryStore) AuthorNameExists(ctx context.Context, nome string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authorNameTaken(nome, 0), nil
}

func (s *MemoryStore) CreateGenre(ctx context.Context, g *Genre) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.genreNameTaken(g.Nome, 0) {
		return ErrConflict
	}
	g.ID = s.id()
	s.genres[g.ID] = *g
	return nil
}

func (s *MemoryStore) GetGenre(ctx context.Context, id int64) (*Genre, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.genres[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &g, nil
}

func (s *MemoryStore) ListGenres(ctx context.Context) ([]Genre, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Genre, 0, len(s.genres))
	for _, g := range s.genres {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) UpdateGenre(ctx context.Context, g *Genre) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.genres[g.ID]; !ok {
		return ErrNotFound
	}
	if s.genreNameTaken(g.Nome, g.ID) {
		return ErrConflict
	}
	s.genres[g.ID] = *g
	return nil
}

func (s *MemoryStore) DeleteGenre(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.genres[id]; !ok {
		return ErrNotFound
	}
	for _, b := range s.books {
		if b.GeneroID == id {
			return ErrConflict
		}
	}
	delete(s.genres, id)
	return nil
}

func (s *MemoryStore) GenreNameExists(ctx context.Context, nome string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.genreNameTaken(nome, 0), nil
}

// withRefs returns a copy of b with its author and genre attached
func (s *MemoryStore) withRefs(b Book) Book {
	if a, ok := s.authors[b.AutorID]; ok {
		b.Autor = &a
	}
	if g, ok := s.genres[b.GeneroID]; ok {
		b.Genero = &g
	}
	if b.AnoPublicacao != nil {
		ano := *b.AnoPublicacao
		b.AnoPublicacao = &ano
	}
	return b
}

// stripRefs returns the stored form of b, owning its own AnoPublicacao
func stripRefs(b Book) Book {
	b.Autor, b.Genero = nil, nil
	if b.AnoPublicacao != nil {
		ano := *b.AnoPublicacao
		b.AnoPublicacao = &ano
	}
	return b
}

func (s *MemoryStore) checkRefs(b *Book) error {
	if _, ok := s.authors[b.AutorID]; !ok {
		return ErrNotFound
	}
	if _, ok := s.genres[b.GeneroID]; !ok {
		return ErrNotFound
	}
	return nil
}

func (s *MemoryStore) CreateBook(ctx context.Context, b *Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkRefs(b); err != nil {
		return err
	}
	if s.isbnTaken(b.ISBN, 0) {
		return ErrConflict
	}
	b.ID = s.id()
	s.books[b.ID] = stripRefs(*b)
	return nil
}

func (s *MemoryStore) GetBook(ctx context.Context, id int64) (*Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[id]
	if !ok {
		return nil, ErrNotFound
	}
	b = s.withRefs(b)
	return &b, nil
}

func (s *MemoryStore) ListBooks(ctx context.Context) ([]Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Book, 0, len(s.books))
	for _, b := range s.books {
		out = append(out, s.withRefs(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) UpdateBook(ctx context.Context, b *Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[b.ID]; !ok {
		return ErrNotFound
	}
	if err := s.checkRefs(b); err != nil {
		return err
	}
	if s.isbnTaken(b.ISBN, b.ID) {
		return ErrConflict
	}
	s.books[b.ID] = stripRefs(*b)
	return nil
}

func (s *MemoryStore) DeleteBook(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[id]; !ok {
		return ErrNotFound
	}
	delete(s.books, id)
	return nil
}

func (s *MemoryStore) ISBNExists(ctx context.Context, isbn string, excludeID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isbnTaken(isbn, excludeID), nil
}

func (s *MemoryStore) BookIDsByAuthor(ctx context.Context, authorID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []int64
	for id, b := range s.books {
		if b.AutorID == authorID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *MemoryStore) BookIDsByGenre(ctx context.Context, genreID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []int64
	for id, b := range s.books {
		if b.GeneroID == genreID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
