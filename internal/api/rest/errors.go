package rest

import (
	"errors"
	"net/http"

	"github.com/biblioteca/catalog-api/internal/auth"
	"github.com/biblioteca/catalog-api/internal/catalog"
	"go.uber.org/zap"
)

// Messages not produced by a service
const (
	MsgInvalidBody    = "corpo da requisição inválido"
	MsgBodyTooLarge   = "corpo da requisição muito grande"
	MsgInvalidID      = "ID inválido"
	MsgInternalError  = "erro interno do servidor"
	MsgNotFound       = "recurso não encontrado"
	MsgMethodNotAllow = "método não permitido"
)

var authKindStatus = map[auth.Kind]int{
	auth.KindInvalidInput:       http.StatusBadRequest,
	auth.KindDuplicateAccount:   http.StatusConflict,
	auth.KindInvalidCredentials: http.StatusUnauthorized,
	auth.KindPrincipalNotFound:  http.StatusNotFound,
}

var catalogErrStatus = []struct {
	err    error
	status int
}{
	{catalog.ErrNotFound, http.StatusNotFound},
	{catalog.ErrConflict, http.StatusConflict},
	{catalog.ErrInvalidInput, http.StatusBadRequest},
}

// statusFor maps a service error to a status and client message.
// Unrecognized errors are internal and never expose their text.
func statusFor(err error) (int, string) {
	var authErr *auth.Error
	if errors.As(err, &authErr) {
		if status, ok := authKindStatus[authErr.Kind]; ok {
			return status, authErr.Message
		}
	}

	for _, m := range catalogErrStatus {
		if errors.Is(err, m.err) {
			msg := catalog.Message(err)
			if msg == "" {
				msg = m.err.Error()
			}
			return m.status, msg
		}
	}

	return http.StatusInternalServerError, MsgInternalError
}

// writeServiceError writes the response for an error returned by a service
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	WriteError(w, status, message)
}
