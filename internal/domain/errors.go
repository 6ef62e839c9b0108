package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedItem       = errors.New("malformed content item")
	ErrMalformedEvent      = errors.New("malformed change event")
	ErrUnknownCollection   = errors.New("unknown collection")
	ErrMutationRejected    = errors.New("mutation rejected")
	ErrMutationTimeout     = errors.New("mutation timed out")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrQueueFull           = errors.New("too many pending mutations for entity")
	ErrEngineClosed        = errors.New("engine closed")
)

// ErrorKind classifies store failures. Only transient errors are retried.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindAuthorization ErrorKind = "authorization"
	KindTransient     ErrorKind = "transient"
	KindUnknown       ErrorKind = "unknown"
)

type StoreError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func NewStoreError(kind ErrorKind, op string, err error) *StoreError {
	return &StoreError{Kind: kind, Op: op, Err: err}
}

// KindOf returns the store error kind of err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}
