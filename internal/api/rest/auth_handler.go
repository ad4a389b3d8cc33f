package rest

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/biblioteca/catalog-api/internal/audit"
	"github.com/biblioteca/catalog-api/internal/auth"
	"github.com/biblioteca/catalog-api/internal/metrics"
)

// loginHandler handles POST /api/v1/auth/login
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !readJSON(w, r, &req) {
		return
	}

	event := s.newAuditEvent(r, audit.EventTypeLogin, req.Username)

	token, err := s.svc.Auth.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		s.svc.Metrics.RecordLogin(metrics.OutcomeFailure)
		event.Reason = auth.KindOf(err).String()
		s.svc.Audit.Record(r.Context(), event)
		s.writeServiceError(w, r, err)
		return
	}

	roles, err := s.svc.Auth.GetRoles(r.Context(), req.Username)
	if err != nil {
		s.svc.Metrics.RecordLogin(metrics.OutcomeFailure)
		s.writeServiceError(w, r, err)
		return
	}

	s.svc.Metrics.RecordLogin(metrics.OutcomeSuccess)
	event.Success = true
	s.svc.Audit.Record(r.Context(), event)

	s.logger.Debug("Login succeeded", zap.String("username", req.Username))
	WriteJSON(w, http.StatusOK, LoginResponse{Token: token, Roles: roles})
}

// registerHandler handles POST /api/v1/auth/register
func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !readJSON(w, r, &req) {
		return
	}

	event := s.newAuditEvent(r, audit.EventTypeRegister, req.Username)

	p, err := s.svc.Auth.Register(r.Context(), auth.RegisterRequest{
		Username:        req.Username,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Roles:           req.Roles,
	})
	if err != nil {
		s.svc.Metrics.RecordRegistration(metrics.OutcomeFailure)
		event.Reason = registrationReason(err)
		s.svc.Audit.Record(r.Context(), event)
		s.writeServiceError(w, r, err)
		return
	}

	s.svc.Metrics.RecordRegistration(metrics.OutcomeSuccess)
	event.Success = true
	s.svc.Audit.Record(r.Context(), event)

	WriteJSON(w, http.StatusCreated, RegisterResponse{
		ID:       p.ID,
		Username: p.Username,
		Roles:    p.RoleNames(),
	})
}

func (s *Server) newAuditEvent(r *http.Request, t audit.EventType, subject string) audit.Event {
	event := audit.NewEvent(t)
	event.Subject = subject
	event.RemoteAddr = s.config.Proxies.ClientIP(r)
	return event
}

// registrationReason prefers the violated rule over the kind
func registrationReason(err error) string {
	var e *auth.Error
	if errors.As(err, &e) && e.Reason != "" {
		return e.Reason
	}
	return auth.KindOf(err).String()
}
