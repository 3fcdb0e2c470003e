// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package errors

import (
	"errors"
	"fmt"
)

// Kind identifies which error class an error belongs to.
type Kind int

const (
	KindUnknown Kind = iota
	// KindSetup errors are fatal at startup: surface to the operator, exit
	// with the code in Error.ExitCode.
	KindSetup
	// KindRuntime errors are non-fatal: counted by the diagnostics meter,
	// surfaced to a UI notification bar; the pipeline continues.
	KindRuntime
	// KindUser errors are returned to the command originator; no state is
	// changed on failure.
	KindUser
	// KindProtocol errors are benign header-parse failures: the packet
	// passes uncaptured and the error never surfaces.
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindSetup:
		return "setup"
	case KindRuntime:
		return "runtime"
	case KindUser:
		return "user"
	case KindProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// Error represents a structured error in the ingestion/firewall pipeline.
type Error struct {
	Kind       Kind
	Message    string
	Underlying error
	Attributes map[string]any
	// ExitCode is only meaningful for KindSetup errors.
	ExitCode int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Underlying)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Underlying
}

// New creates a new Error of the specified kind.
func New(kind Kind, msg string) error {
	return &Error{
		Kind:    kind,
		Message: msg,
	}
}

// Errorf creates a new Error of the specified kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error as a new Error of the specified kind.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:       kind,
		Message:    msg,
		Underlying: err,
	}
}

// Wrapf wraps an existing error as a new Error of the specified kind with a formatted message.
func Wrapf(err error, kind Kind, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:       kind,
		Message:    fmt.Sprintf(format, args...),
		Underlying: err,
	}
}

// Attr attaches an attribute to an error. If the error is not an *Error, it wraps it as KindRuntime.
func Attr(err error, key string, val any) error {
	if err == nil {
		return nil
	}

	var e *Error
	if !errors.As(err, &e) {
		e = &Error{
			Kind:       KindRuntime,
			Message:    err.Error(),
			Underlying: err,
		}
	}

	if e.Attributes == nil {
		e.Attributes = make(map[string]any)
	}
	e.Attributes[key] = val
	return e
}

// GetKind returns the Kind of the error, or KindUnknown if err is not an *Error.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// GetAttributes returns all attributes associated with the error and its chain.
func GetAttributes(err error) map[string]any {
	attrs := make(map[string]any)
	var e *Error

	// We use errors.As in a loop to collect all attributes in the chain
	// although typically we only have one *Error in the chain.
	tempErr := err
	for tempErr != nil {
		if errors.As(tempErr, &e) {
			for k, v := range e.Attributes {
				if _, ok := attrs[k]; !ok {
					attrs[k] = v
				}
			}
			tempErr = e.Underlying
		} else {
			break
		}
	}

	return attrs
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target, and if so, sets target to that error value and returns true.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err, if err's type contains an Unwrap method returning error.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// ExitCode extracts the process exit code carried by a KindSetup error
// anywhere in err's chain, or 0. Wrapping a Setup error does not erase
// its code.
func ExitCode(err error) int {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return 0
		}
		if e.ExitCode != 0 {
			return e.ExitCode
		}
		err = e.Underlying
	}
	return 0
}

// Setup builds a KindSetup error carrying a process exit code.
func Setup(exitCode int, msg string, underlying error) error {
	return &Error{Kind: KindSetup, Message: msg, Underlying: underlying, ExitCode: exitCode}
}

// Setup-error constructors, one per documented exit code.
func NoCapabilities(u error) error   { return Setup(1, "missing CAP_NET_ADMIN/CAP_BPF (or root)", u) }
func InterfaceMissing(name string, u error) error {
	return Setup(2, fmt.Sprintf("interface not found: %s", name), u)
}
func ProgramLoadFailed(u error) error { return Setup(3, "kernel program load failed", u) }
func RulesParseFailed(u error) error  { return Setup(4, "firewall rules file parse error", u) }

// User-facing sentinel errors.
var (
	ErrAlreadyExists = New(KindUser, "rule already exists")
	ErrInvalidRule   = New(KindUser, "invalid rule")
	ErrNotFound      = New(KindUser, "rule not found")
	ErrRuleEnabled   = New(KindUser, "rule is enabled; disable it before editing")
)

// Runtime counter names fed to the diagnostics meter.
const (
	RuntimeRingReserveExhausted = "ring_reserve_exhausted"
	RuntimeBusLagged            = "bus_lagged"
	RuntimeDNSTimeout           = "dns_timeout"
	RuntimeFilesystemIO         = "filesystem_io"
)

// ReconcileFailed wraps a firewall reconciliation failure after an in-memory
// rollback: controller state has been restored to match the maps.
func ReconcileFailed(u error) error {
	return Errorf(KindRuntime, "reconcile failed, rolled back: %v", u)
}
