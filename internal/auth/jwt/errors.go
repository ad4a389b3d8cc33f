package jwt

import "fmt"

// DecodeKind classifies why a token could not be decoded
type DecodeKind int

const (
	// DecodeOther covers any decode failure that is neither expiry nor a bad encoding/signature
	DecodeOther DecodeKind = iota
	// DecodeExpired means the signature verified but the token is past its expiry
	DecodeExpired
	// DecodeMalformed means the token could not be parsed or its signature does not match
	DecodeMalformed
)

func (k DecodeKind) String() string {
	switch k {
	case DecodeExpired:
		return "expired"
	case DecodeMalformed:
		return "malformed"
	default:
		return "other"
	}
}

// DecodeError is returned by Codec.Decode for every rejected token
type DecodeError struct {
	Kind DecodeKind
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode token (%s): %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
