package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for routing and HTTP mapping.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindClassification Kind = "classification"
	KindGeneration     Kind = "generation"
	KindRetrieval      Kind = "retrieval"
	KindStore          Kind = "store"
	KindCache          Kind = "cache"
	KindNotFound       Kind = "not_found"
	KindInternal       Kind = "internal"
)

// Error wraps a cause with its kind and the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Classification(op string, err error) error { return New(KindClassification, op, err) }
func Generation(op string, err error) error     { return New(KindGeneration, op, err) }
func Retrieval(op string, err error) error      { return New(KindRetrieval, op, err) }
func Store(op string, err error) error          { return New(KindStore, op, err) }
func Cache(op string, err error) error          { return New(KindCache, op, err) }

// ValidationError reports the specific invariant a workflow or connector
// payload violated. It is never retried.
type ValidationError struct {
	Invariant string
	Subject   string
	Detail    string
}

func (e *ValidationError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("validation failed [%s]: %s", e.Invariant, e.Detail)
	}
	return fmt.Sprintf("validation failed [%s] on %q: %s", e.Invariant, e.Subject, e.Detail)
}

func Validation(invariant, subject, format string, args ...interface{}) *ValidationError {
	return &ValidationError{
		Invariant: invariant,
		Subject:   subject,
		Detail:    fmt.Sprintf(format, args...),
	}
}

// KindOf returns the outermost kind found in the chain, KindInternal otherwise.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var verr *ValidationError
	var aerr *Error
	switch {
	case errors.As(err, &aerr):
		return aerr.Kind
	case errors.As(err, &verr):
		return KindValidation
	default:
		return KindInternal
	}
}

func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	if kind == KindValidation {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return true
		}
	}
	var aerr *Error
	for e := err; e != nil; {
		if !errors.As(e, &aerr) {
			return false
		}
		if aerr.Kind == kind {
			return true
		}
		e = aerr.Err
	}
	return false
}
