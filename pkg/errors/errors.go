// Package errors defines custom error types and error handling utilities for credkit.
// Every failure surfaced by the token and key-entry subsystems carries one of the codes below,
// so callers can branch on the kind without string matching.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code identifies the kind of a CredError.
type Code string

const (
	// CodeValidation indicates a required argument or property is missing or empty.
	CodeValidation Code = "validation_error"
	// CodeMalformedToken indicates a token wire string could not be split or decoded.
	CodeMalformedToken Code = "malformed_token"
	// CodeTokenFormat indicates a token claim is missing its required prefix.
	CodeTokenFormat Code = "token_format"
	// CodeEntryAlreadyExists indicates a key entry with the same name is already stored.
	CodeEntryAlreadyExists Code = "entry_already_exists"
	// CodeEntryNotFound indicates the targeted key entry does not exist.
	CodeEntryNotFound Code = "entry_not_found"
	// CodeInvalidEntry indicates persisted bytes could not be decoded into a key entry.
	CodeInvalidEntry Code = "invalid_entry"
	// CodeInternal indicates an unexpected failure.
	CodeInternal Code = "internal_error"
)

// ================================================================================
// Base Error Interface
// ================================================================================

// CredError represents a structured error with additional metadata
type CredError interface {
	error

	// Code returns the error kind
	Code() Code

	// Description returns a human-readable description of the kind
	Description() string

	// Unwrap returns the underlying error for error chain support
	Unwrap() error

	// WithCause adds a cause error to the error chain
	WithCause(cause error) CredError

	// WithMetadata adds additional context metadata
	WithMetadata(key string, value interface{}) CredError

	// Metadata returns all metadata
	Metadata() map[string]interface{}
}

// ================================================================================
// Base Error Implementation
// ================================================================================

type baseError struct {
	code        Code
	description string
	message     string
	cause       error
	metadata    map[string]interface{}
}

// Error implements the error interface
func (e *baseError) Error() string {
	msg := e.message
	if msg == "" {
		msg = e.description
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

func (e *baseError) Code() Code {
	return e.code
}

func (e *baseError) Description() string {
	return e.description
}

func (e *baseError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a CredError of the same kind. It lets callers
// write errors.Is(err, errors.ErrEntryNotFound("")) style checks.
func (e *baseError) Is(target error) bool {
	t, ok := target.(*baseError)
	if !ok {
		return false
	}
	return t.code == e.code
}

func (e *baseError) WithCause(cause error) CredError {
	e.cause = cause
	return e
}

func (e *baseError) WithMetadata(key string, value interface{}) CredError {
	if e.metadata == nil {
		e.metadata = make(map[string]interface{})
	}
	e.metadata[key] = value
	return e
}

func (e *baseError) Metadata() map[string]interface{} {
	return e.metadata
}

// ================================================================================
// Error Constructor
// ================================================================================

// NewError creates a new CredError with the specified parameters
func NewError(code Code, description string, message string) CredError {
	return &baseError{
		code:        code,
		description: description,
		message:     message,
		metadata:    make(map[string]interface{}),
	}
}

// ================================================================================
// Predefined Error Constructors
// ================================================================================

// ErrValidation creates a validation error for a missing or empty parameter
func ErrValidation(param string) CredError {
	return NewError(
		CodeValidation,
		"A required argument or property is missing or empty.",
		fmt.Sprintf("%s is required", param),
	).WithMetadata("parameter", param)
}

// ErrMalformedToken creates a malformed token error
func ErrMalformedToken(reason string) CredError {
	return NewError(
		CodeMalformedToken,
		"The token string is not a well-formed three part JWT.",
		fmt.Sprintf("wrong JWT format: %s", reason),
	).WithMetadata("reason", reason)
}

// ErrTokenFormat creates an error for a claim missing its required prefix
func ErrTokenFormat(claim string, prefix string) CredError {
	return NewError(
		CodeTokenFormat,
		"A token claim does not carry its required prefix.",
		fmt.Sprintf("wrong %s format: expected prefix %q", claim, prefix),
	).WithMetadata("claim", claim).
		WithMetadata("prefix", prefix)
}

// ErrEntryAlreadyExists creates an error for saving over an existing key entry
func ErrEntryAlreadyExists(name string) CredError {
	return NewError(
		CodeEntryAlreadyExists,
		"A key entry with the same name already exists.",
		fmt.Sprintf("key entry %q already exists", name),
	).WithMetadata("name", name)
}

// ErrEntryNotFound creates an error for a missing key entry
func ErrEntryNotFound(name string) CredError {
	return NewError(
		CodeEntryNotFound,
		"The key entry does not exist.",
		fmt.Sprintf("key entry %q not found", name),
	).WithMetadata("name", name)
}

// ErrInvalidEntry creates an error for persisted bytes that are not a valid key entry
func ErrInvalidEntry(reason string) CredError {
	return NewError(
		CodeInvalidEntry,
		"The stored key entry could not be deserialized.",
		fmt.Sprintf("invalid key entry: %s", reason),
	).WithMetadata("reason", reason)
}

// ErrInternal creates an internal error
func ErrInternal(message string) CredError {
	return NewError(CodeInternal, "An unexpected error occurred.", message)
}

// ================================================================================
// Error Validation Utilities
// ================================================================================

// AsCredError finds the first CredError in err's chain
func AsCredError(err error) (CredError, bool) {
	var credErr CredError
	if stderrors.As(err, &credErr) {
		return credErr, true
	}
	return nil, false
}

// HasCode reports whether err's chain contains a CredError with the given code
func HasCode(err error, code Code) bool {
	if credErr, ok := AsCredError(err); ok {
		return credErr.Code() == code
	}
	return false
}

// IsNotFoundError checks if an error is a not found error.
func IsNotFoundError(err error) bool {
	return HasCode(err, CodeEntryNotFound)
}

// WrapError wraps a generic error into a CredError
func WrapError(err error, code Code, message string) CredError {
	return NewError(code, message, message).WithCause(err)
}

// Is and As are re-exported so callers need a single errors import.
var (
	Is = stderrors.Is
	As = stderrors.As
)
