// Package crdterr defines the typed error kinds surfaced at the engine's API
// boundary. Internal invariant violations use panic instead — see Fatalf.
package crdterr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a boundary-facing failure.
type Kind int

const (
	// Decode covers malformed bytes, unknown container types, and invalid
	// container id strings.
	Decode Kind = iota
	// Usage covers out-of-range indices, zero-length delete constructors,
	// and operations against a detached container.
	Usage
	// Causality covers integrating a change whose deps are missing while
	// deferral is disabled.
	Causality
	// Version covers checkout to a frontier not covered by the DAG.
	Version
	// DepthExceeded covers value nesting beyond the 128 limit.
	DepthExceeded
)

func (k Kind) String() string {
	switch k {
	case Decode:
		return "DecodeError"
	case Usage:
		return "UsageError"
	case Causality:
		return "CausalityError"
	case Version:
		return "VersionError"
	case DepthExceeded:
		return "DepthExceeded"
	default:
		return "UnknownError"
	}
}

// Error is the typed failure returned across the engine's public API.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.cause)
}

// Unwrap lets errors.Is/errors.As see through to the wrapped cause.
func (e *Error) Unwrap() error { return e.cause }

// New builds a typed error from a kind and a formatted message, with a stack
// trace attached via pkg/errors.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, cause: errors.Errorf(format, args...)}
}

// Wrap attaches a kind to an existing cause, preserving its stack trace.
func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, cause: errors.Wrap(cause, msg)}
}

// Is reports whether err is a typed Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Fatalf panics with a message describing an invariant violation. Reserved
// for cases that are unreachable unless engine invariants are already
// broken (type mismatches after discriminant checks, counter gaps, Lamport
// inconsistencies) — these are programming errors, not user-facing ones.
func Fatalf(format string, args ...any) {
	panic(fmt.Sprintf("crdt: invariant violation: "+format, args...))
}
