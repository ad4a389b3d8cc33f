package auth

import "errors"

// Kind enumerates the failures raised by the credential verifier and registration guard
type Kind int

const (
	KindInvalidInput Kind = iota + 1
	KindDuplicateAccount
	KindInvalidCredentials
	KindPrincipalNotFound
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindDuplicateAccount:
		return "duplicate_account"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindPrincipalNotFound:
		return "principal_not_found"
	default:
		return "unknown"
	}
}

// User-facing messages
const (
	MsgInvalidCredentials = "Usuário ou senha inválidos"
	MsgInvalidFields      = "Campos inválidos"
	MsgPasswordMismatch   = "Senhas não conferem"
	MsgRolesRequired      = "Selecione pelo menos uma permissão"
	MsgDuplicateAccount   = "Usuário já existe"
	MsgPrincipalNotFound  = "Usuário não encontrado"
)

// Error is a typed failure carrying a Kind and a human-readable message.
// Reason is set for KindInvalidInput and names the violated rule.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// KindOf returns the Kind of err, or 0 if err is not an *Error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

var (
	// ErrPrincipalNotFound is returned by a PrincipalStore when no principal has the username
	ErrPrincipalNotFound = errors.New("principal not found")

	// ErrUsernameTaken is returned by a PrincipalStore when the username is already stored
	ErrUsernameTaken = errors.New("username already taken")
)
