// Package errs provides the structured error system used across the build
// driver: a domain + code identify the kind of failure (§7 of the build
// driver specification: configuration, description, graph, build,
// freshness-degradation errors), and every error carries the process exit
// code that should be returned for it.
package errs

import (
	"errors"
	"fmt"
)

// Domain categorizes an error by the subsystem that raised it.
type Domain string

const (
	DomainConfig      Domain = "config"      // project config / toolset wiring
	DomainDescription Domain = "description" // minibuild.mk / minibuild.ext loading
	DomainGraph       Domain = "graph"       // module dependency graph
	DomainBuild       Domain = "build"       // subprocess / toolchain action failure
	DomainFreshness   Domain = "freshness"   // dependency-file / freshness degradation
	DomainInternal    Domain = "internal"
)

// Code is a short machine-checkable identifier within a Domain.
type Code string

// DefaultExitCode is returned for engine-raised errors with no subprocess
// exit code of their own (§7: "for the engine's own errors, code 126").
const DefaultExitCode = 126

// Error is the structured error type returned by every core package.
type Error struct {
	Domain   Domain
	Code     Code
	Message  string
	ExitCode int
	cause    error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// Is implements errors.Is by domain+code equality.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Domain == t.Domain && e.Code == t.Code
}

// New creates an Error with the default (126) exit code.
func New(domain Domain, code Code, format string, args ...interface{}) *Error {
	return &Error{Domain: domain, Code: code, Message: fmt.Sprintf(format, args...), ExitCode: DefaultExitCode}
}

// NewExit creates an Error carrying an explicit exit code, used when a
// subprocess's own exit status must propagate (§7 build errors).
func NewExit(domain Domain, code Code, exitCode int, format string, args ...interface{}) *Error {
	return &Error{Domain: domain, Code: code, Message: fmt.Sprintf(format, args...), ExitCode: exitCode}
}

// Wrap attaches cause to a new Error.
func Wrap(cause error, domain Domain, code Code, format string, args ...interface{}) *Error {
	return &Error{Domain: domain, Code: code, Message: fmt.Sprintf(format, args...), ExitCode: DefaultExitCode, cause: cause}
}

// ExitCode returns the process exit code for err: the wrapped Error's
// ExitCode if it is one, otherwise DefaultExitCode.
func ExitCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.ExitCode
	}
	return DefaultExitCode
}

// Is delegates to errors.Is.
func Is(err, target error) bool { return errors.Is(err, target) }

// As delegates to errors.As.
func As(err error, target interface{}) bool { return errors.As(err, target) }
