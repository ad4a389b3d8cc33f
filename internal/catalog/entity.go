// Package catalog manages the authors, genres and books of the library
// catalog. Service enforces the uniqueness and reference rules; Store
// implementations only persist.
package catalog

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

// Field limits mirrored by the database schema
const (
	MaxNomeLength    = 100
	MaxTituloLength  = 255
	MaxISBNLength    = 20
	MaxEditoraLength = 20
	DateLayout       = "2006-01-02"
)

// Author is a book author
type Author struct {
	ID             int64  `json:"id"`
	Nome           string `json:"nome"`
	Biografia      string `json:"biografia,omitempty"`
	DataNascimento string `json:"dataNascimento,omitempty"`
}

// Genre is a literary genre
type Genre struct {
	ID        int64  `json:"id"`
	Nome      string `json:"nome"`
	Descricao string `json:"descricao,omitempty"`
}

// Book is a catalog entry. Autor and Genero are populated on reads.
type Book struct {
	ID            int64   `json:"id"`
	Titulo        string  `json:"titulo"`
	ISBN          string  `json:"isbn"`
	Editora       string  `json:"editora"`
	AnoPublicacao *int    `json:"anoPublicacao,omitempty"`
	GeneroID      int64   `json:"generoId"`
	AutorID       int64   `json:"autorId"`
	Genero        *Genre  `json:"genero,omitempty"`
	Autor         *Author `json:"autor,omitempty"`
}

// AuthorInput is the payload for creating or replacing an author
type AuthorInput struct {
	Nome           string `json:"nome"`
	Biografia      string `json:"biografia"`
	DataNascimento string `json:"dataNascimento"`
}

// Validate checks the input field rules
func (in AuthorInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Nome, validation.Required, validation.Length(1, MaxNomeLength)),
		validation.Field(&in.DataNascimento, validation.Date(DateLayout)),
	)
}

// GenreInput is the payload for creating or replacing a genre
type GenreInput struct {
	Nome      string `json:"nome"`
	Descricao string `json:"descricao"`
}

// Validate checks the input field rules
func (in GenreInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Nome, validation.Required, validation.Length(1, MaxNomeLength)),
	)
}

// BookInput is the payload for creating or replacing a book
type BookInput struct {
	Titulo        string `json:"titulo"`
	ISBN          string `json:"isbn"`
	Editora       string `json:"editora"`
	AnoPublicacao *int   `json:"anoPublicacao"`
	GeneroID      int64  `json:"generoId"`
	AutorID       int64  `json:"autorId"`
}

// Validate checks the input field rules
func (in BookInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Titulo, validation.Required, validation.Length(1, MaxTituloLength)),
		validation.Field(&in.ISBN, validation.Required, validation.Length(1, MaxISBNLength)),
		validation.Field(&in.Editora, validation.Required, validation.Length(1, MaxEditoraLength)),
		validation.Field(&in.AnoPublicacao, validation.Min(0)),
		validation.Field(&in.GeneroID, validation.Required),
		validation.Field(&in.AutorID, validation.Required),
	)
}

func (in AuthorInput) normalized() AuthorInput {
	in.Nome = strings.TrimSpace(in.Nome)
	in.DataNascimento = strings.TrimSpace(in.DataNascimento)
	return in
}

func (in GenreInput) normalized() GenreInput {
	in.Nome = strings.TrimSpace(in.Nome)
	return in
}

func (in BookInput) normalized() BookInput {
	in.Titulo = strings.TrimSpace(in.Titulo)
	in.ISBN = strings.TrimSpace(in.ISBN)
	in.Editora = strings.TrimSpace(in.Editora)
	return in
}
