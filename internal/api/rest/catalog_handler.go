package rest

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/biblioteca/catalog-api/internal/catalog"
)

// pathID parses the {id} route variable, writing a 400 when it is not a
// positive integer
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, http.StatusBadRequest, MsgInvalidID)
		return 0, false
	}
	return id, true
}

func (s *Server) created(w http.ResponseWriter, r *http.Request, id int64, data interface{}) {
	w.Header().Set("Location", fmt.Sprintf("%s/%d", r.URL.Path, id))
	writeEnvelope(w, http.StatusCreated, data)
}

func (s *Server) listAuthorsHandler(w http.ResponseWriter, r *http.Request) {
	authors, err := s.svc.Catalog.ListAuthors(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeEnvelope(w, http.StatusOK, authors)
}

func (s *Server) createAuthorHandler(w http.ResponseWriter, r *http.Request) {
	var in catalog.AuthorInput
	if !readJSON(w, r, &in) {
		return
	}

	a, err := s.svc.Catalog.CreateAuthor(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.created(w, r, a.ID, a)
}

func (s *Server) getAuthorHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	a, err := s.svc.Catalog.GetAuthor(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeEnvelope(w, http.StatusOK, a)
}

func (s *Server) updateAuthorHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in catalog.AuthorInput
	if !readJSON(w, r, &in) {
		return
	}

	a, err := s.svc.Catalog.UpdateAuthor(r.Context(), id, in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeEnvelope(w, http.StatusOK, a)
}

func (s *Server) deleteAuthorHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Catalog.DeleteAuthor(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listGenresHandler(w http.ResponseWriter, r *http.Request) {
	genres, err := s.svc.Catalog.ListGenres(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeEnvelope(w, http.StatusOK, genres)
}

func (s *Server) createGenreHandler(w http.ResponseWriter, r *http.Request) {
	var in catalog.GenreInput
	if !readJSON(w, r, &in) {
		return
	}

	g, err := s.svc.Catalog.CreateGenre(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.created(w, r, g.ID, g)
}

func (s *Server) getGenreHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	g, err := s.svc.Catalog.GetGenre(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeEnvelope(w, http.StatusOK, g)
}

func (s *Server) updateGenreHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in catalog.GenreInput
	if !readJSON(w, r, &in) {
		return
	}

	g, err := s.svc.Catalog.UpdateGenre(r.Context(), id, in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeEnvelope(w, http.StatusOK, g)
}

func (s *Server) deleteGenreHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Catalog.DeleteGenre(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listBooksHandler(w http.ResponseWriter, r *http.Request) {
	books, err := s.svc.Catalog.ListBooks(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeEnvelope(w, http.StatusOK, books)
}

func (s *Server) createBookHandler(w http.ResponseWriter, r *http.Request) {
	var in catalog.BookInput
	if !readJSON(w, r, &in) {
		return
	}

	b, err := s.svc.Catalog.CreateBook(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.created(w, r, b.ID, b)
}

func (s *Server) getBookHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	b, err := s.svc.Catalog.GetBook(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeEnvelope(w, http.StatusOK, b)
}

func (s *Server) updateBookHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in catalog.BookInput
	if !readJSON(w, r, &in) {
		return
	}

	b, err := s.svc.Catalog.UpdateBook(r.Context(), id, in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeEnvelope(w, http.StatusOK, b)
}

func (s *Server) deleteBookHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Catalog.DeleteBook(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
