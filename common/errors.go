package common

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code is a stable machine readable identifier of a validation or arithmetic failure.
type Code uint32

const (
	MissingSignature Code = 6000 + iota
	Unauthorized
	InvalidOwner
	TypeMismatch
	AccountNotInitialized
	InvalidPDA
	InvalidProgram
	TokenAccountOwnerMismatch
	AlreadyInitialized
	IncompleteClose
	Overflow
	InsufficientFunds
	DivisionByZero
	CastOverflow
)

var codeNames = map[Code]string{
	MissingSignature:          "MissingSignature",
	Unauthorized:              "Unauthorized",
	InvalidOwner:              "InvalidOwner",
	TypeMismatch:              "TypeMismatch",
	AccountNotInitialized:     "AccountNotInitialized",
	InvalidPDA:                "InvalidPDA",
	InvalidProgram:            "InvalidProgram",
	TokenAccountOwnerMismatch: "TokenAccountOwnerMismatch",
	AlreadyInitialized:        "AlreadyInitialized",
	IncompleteClose:           "IncompleteClose",
	Overflow:                  "Overflow",
	InsufficientFunds:         "InsufficientFunds",
	DivisionByZero:            "DivisionByZero",
	CastOverflow:              "CastOverflow",
}

func (c Code) String() string {
	if n, f := codeNames[c]; f {
		return n
	}
	return fmt.Sprintf("Code(%d)", uint32(c))
}

// Error is the single failure type surfaced by rules and checked arithmetic.
type Error struct {
	code Code
	msg  string
}

func (e *Error) Code() Code {
	return e.code
}

// Tag returns the machine readable name of the failure.
func (e *Error) Tag() string {
	return e.code.String()
}

func (e *Error) Message() string {
	return e.msg
}

func (e *Error) Error() string {
	return e.msg
}

func newError(code Code, msg string) *Error {
	return &Error{code: code, msg: msg}
}

var (
	ErrMissingSignature          = newError(MissingSignature, "missing required signature")
	ErrUnauthorized              = newError(Unauthorized, "you are not authorized to perform this action")
	ErrInvalidOwner              = newError(InvalidOwner, "account owner validation failed")
	ErrTypeMismatch              = newError(TypeMismatch, "account type mismatch")
	ErrAccountNotInitialized     = newError(AccountNotInitialized, "account is not initialized")
	ErrInvalidPDA                = newError(InvalidPDA, "pda derivation mismatch")
	ErrInvalidProgram            = newError(InvalidProgram, "invalid program id for cpi")
	ErrTokenAccountOwnerMismatch = newError(TokenAccountOwnerMismatch, "token account does not belong to user")
	ErrAlreadyInitialized        = newError(AlreadyInitialized, "account is already initialized")
	ErrIncompleteClose           = newError(IncompleteClose, "account close left revivable state")
	ErrOverflow                  = newError(Overflow, "arithmetic overflow")
	ErrInsufficientFunds         = newError(InsufficientFunds, "arithmetic underflow - insufficient funds")
	ErrDivisionByZero            = newError(DivisionByZero, "division by zero")
	ErrCastOverflow              = newError(CastOverflow, "cast overflow - value too large for target type")
)

// CodeOf unwraps err down to its *Error and returns the code.
func CodeOf(err error) (Code, bool) {
	if err == nil {
		return 0, false
	}
	e, ok := errors.Cause(err).(*Error)
	if !ok {
		return 0, false
	}
	return e.code, true
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
