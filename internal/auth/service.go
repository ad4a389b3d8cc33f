package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Sub-reasons carried by KindInvalidInput errors from Register
const (
	ReasonUsernameBlank    = "username_blank"
	ReasonUsernameTooLong  = "username_too_long"
	ReasonPasswordBlank    = "password_blank"
	ReasonPasswordTooLong  = "password_too_long"
	ReasonConfirmMissing   = "confirm_password_missing"
	ReasonPasswordMismatch = "password_mismatch"
	ReasonRolesEmpty       = "roles_empty"
	ReasonRoleUnknown      = "role_unknown"
)

// Registration limits. Usernames are stored in a VARCHAR(100) column and
// bcrypt rejects passwords longer than 72 bytes.
const (
	MaxUsernameLength = 100
	MaxPasswordBytes  = 72
)

// TokenIssuer mints a signed token for a subject and role set
type TokenIssuer interface {
	Issue(subject string, roles []string) (string, error)
}

// ServiceConfig contains the collaborators of the authentication service
type ServiceConfig struct {
	Store  PrincipalStore
	Issuer TokenIssuer
	Hasher Hasher
	Logger *zap.Logger
}

// Service verifies credentials, looks up roles and registers principals
type Service struct {
	store  PrincipalStore
	issuer TokenIssuer
	hasher Hasher
	logger *zap.Logger

	// dummyHash is compared against when the username is unknown so both
	// failure paths cost one hash verification
	dummyHash string
}

// RegisterRequest is the input of Register. ConfirmPassword is a pointer
// because an absent confirmation differs from a blank one.
type RegisterRequest struct {
	Username        string
	Password        string
	ConfirmPassword *string
	Roles           []string
}

// NewService creates a new authentication service
func NewService(cfg *ServiceConfig) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("principal store is required")
	}
	if cfg.Issuer == nil {
		return nil, fmt.Errorf("token issuer is required")
	}
	if cfg.Hasher == nil {
		cfg.Hasher = NewBcryptHasher(BCryptCost)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	dummy, err := cfg.Hasher.Hash("unused-password-placeholder")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	return &Service{
		store:     cfg.Store,
		issuer:    cfg.Issuer,
		hasher:    cfg.Hasher,
		logger:    cfg.Logger,
		dummyHash: dummy,
	}, nil
}

// Authenticate checks username and password and returns a signed token.
// An unknown username and a wrong password fail identically.
func (s *Service) Authenticate(ctx context.Context, username, password string) (string, error) {
	p, err := s.store.FindByUsername(ctx, username)
	if errors.Is(err, ErrPrincipalNotFound) {
		s.hasher.Verify(password, s.dummyHash)
		return "", invalidCredentials()
	}
	if err != nil {
		return "", fmt.Errorf("lookup principal: %w", err)
	}

	if !s.hasher.Verify(password, p.PasswordHash) {
		return "", invalidCredentials()
	}

	token, err := s.issuer.Issue(p.Username, p.RoleNames())
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

// GetRoles returns the role names of username. Not to be used for login.
func (s *Service) GetRoles(ctx context.Context, username string) ([]string, error) {
	p, err := s.store.FindByUsername(ctx, username)
	if errors.Is(err, ErrPrincipalNotFound) {
		return nil, &Error{Kind: KindPrincipalNotFound, Message: MsgPrincipalNotFound}
	}
	if err != nil {
		return nil, fmt.Errorf("lookup principal: %w", err)
	}
	return p.RoleNames(), nil
}

// Register validates req, rejects duplicate usernames and stores a new principal.
// Shape errors take precedence over duplication, which takes precedence over unknown roles.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Principal, error) {
	if err := validateRegistration(req); err != nil {
		return nil, err
	}

	exists, err := s.store.ExistsByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if exists {
		return nil, &Error{Kind: KindDuplicateAccount, Message: MsgDuplicateAccount}
	}

	roles, err := parseRoles(req.Roles)
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, invalidInput(ReasonPasswordTooLong, MsgInvalidFields)
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	p := &Principal{
		Username:     req.Username,
		PasswordHash: hash,
		Roles:        roles,
	}
	if err := s.store.Create(ctx, p); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return nil, &Error{Kind: KindDuplicateAccount, Message: MsgDuplicateAccount}
		}
		return nil, fmt.Errorf("store principal: %w", err)
	}

	s.logger.Info("Principal registered",
		zap.Int64("id", p.ID),
		zap.String("username", p.Username),
		zap.Strings("roles", p.RoleNames()),
	)
	return p, nil
}

func validateRegistration(req RegisterRequest) error {
	switch {
	case isBlank(req.Username):
		return invalidInput(ReasonUsernameBlank, MsgInvalidFields)
	case utf8.RuneCountInString(req.Username) > MaxUsernameLength:
		return invalidInput(ReasonUsernameTooLong, MsgInvalidFields)
	case isBlank(req.Password):
		return invalidInput(ReasonPasswordBlank, MsgInvalidFields)
	case len(req.Password) > MaxPasswordBytes:
		return invalidInput(ReasonPasswordTooLong, MsgInvalidFields)
	case req.ConfirmPassword == nil:
		return invalidInput(ReasonConfirmMissing, MsgInvalidFields)
	case req.Password != *req.ConfirmPassword:
		return invalidInput(ReasonPasswordMismatch, MsgPasswordMismatch)
	case len(req.Roles) == 0:
		return invalidInput(ReasonRolesEmpty, MsgRolesRequired)
	}
	return nil
}

func parseRoles(in []string) ([]Role, error) {
	seen := make(map[Role]struct{}, len(in))
	out := make([]Role, 0, len(in))
	for _, s := range in {
		r, ok := ParseRole(s)
		if !ok {
			return nil, invalidInput(ReasonRoleUnknown, fmt.Sprintf("Permissão inválida: %s", s))
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out, nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func invalidCredentials() *Error {
	return &Error{Kind: KindInvalidCredentials, Message: MsgInvalidCredentials}
}

func invalidInput(reason, message string) *Error {
	return &Error{Kind: KindInvalidInput, Reason: reason, Message: message}
}
