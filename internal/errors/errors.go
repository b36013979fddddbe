package errors

import (
	"errors"
	"fmt"
	"strings"
)

// DocError is the structured error type threaded through every package in
// this module. It carries a Kind for programmatic branching, a Category
// derived from that Kind for coarse handling, and optional Details for
// context that doesn't belong in the message itself.
type DocError struct {
	Kind     Kind
	Message  string
	Category Category

	Details map[string]string

	// Available and Similar carry UnknownPackage's two suggestion lists as
	// slices, not just the comma-joined strings folded into Details, so a
	// structured caller (the MCP error mapping, chiefly) can hand them back
	// as JSON arrays instead of parsing free text.
	Available []string
	Similar   []string

	// Cause is the underlying error, if any.
	Cause error

	Retryable  bool
	Suggestion string
}

// Error implements the error interface.
func (e *DocError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	}
	var parts []string
	for k, v := range e.Details {
		parts = append(parts, fmt.Sprintf("%s=%s", k, v))
	}
	return fmt.Sprintf("[%s] %s (%s)", e.Kind, e.Message, strings.Join(parts, ", "))
}

// Unwrap returns the underlying cause for error chain support.
func (e *DocError) Unwrap() error {
	return e.Cause
}

// Is enables errors.Is(err, target) to match by Kind rather than identity.
func (e *DocError) Is(target error) bool {
	if t, ok := target.(*DocError); ok {
		return e.Kind == t.Kind
	}
	return false
}

// WithDetail attaches a key-value detail and returns the error for chaining.
func (e *DocError) WithDetail(key, value string) *DocError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion attaches an actionable suggestion and returns the error for
// chaining.
func (e *DocError) WithSuggestion(suggestion string) *DocError {
	e.Suggestion = suggestion
	return e
}

// New creates a DocError of the given Kind. Category and retryability are
// derived from the Kind.
func New(kind Kind, message string, cause error) *DocError {
	return &DocError{
		Kind:      kind,
		Message:   message,
		Category:  categoryForKind(kind),
		Cause:     cause,
		Retryable: retryableKind(kind),
	}
}

// Wrap creates a DocError from an existing error, reusing its message.
// Returns nil if err is nil, so callers can write `return errors.Wrap(kind, err)`
// directly from a `if err != nil` branch without a nil-check of their own.
func Wrap(kind Kind, err error) *DocError {
	if err == nil {
		return nil
	}
	return New(kind, err.Error(), err)
}

// UnknownPackageError reports a package name that the registry could not
// resolve. available is every package currently loaded; similar is the
// subset of names (loaded or renderable) that fuzzy-matched name. Both are
// always attached — as Details strings for the formatted error message and
// as Available/Similar slices for structured callers — regardless of
// whether the other is also non-empty.
func UnknownPackageError(name string, available []string, similar []string) *DocError {
	e := New(UnknownPackage, fmt.Sprintf("unknown package %q", name), nil)
	e.WithDetail("package", name)
	e.Available = available
	e.Similar = similar
	if len(available) > 0 {
		e.WithDetail("available", strings.Join(available, ", "))
	}
	if len(similar) > 0 {
		e.WithDetail("similar", strings.Join(similar, ", "))
		e.WithSuggestion(fmt.Sprintf("did you mean %s?", strings.Join(similar, ", ")))
	}
	return e
}

// DimensionMismatchError reports two embeddings whose dimensions should have
// agreed but did not.
func DimensionMismatchError(expected, actual int) *DocError {
	e := New(DimensionMismatch, fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", expected, actual), nil)
	e.WithDetail("expected", fmt.Sprintf("%d", expected))
	e.WithDetail("actual", fmt.Sprintf("%d", actual))
	return e
}

// ContextMissingError reports a resolved package with no chunk available to
// ground an answer in.
func ContextMissingError(pkg string) *DocError {
	return New(ContextMissing, fmt.Sprintf("no documentation context available for %q", pkg), nil).
		WithDetail("package", pkg)
}

// MissingEnvError reports a required environment variable that was not set.
func MissingEnvError(name string) *DocError {
	return New(MissingEnv, fmt.Sprintf("required environment variable %s is not set", name), nil).
		WithDetail("variable", name)
}

// IsRetryable reports whether err is, or wraps, a DocError marked
// retryable. Uses errors.As rather than a bare type assertion so a Kind
// survives being wrapped by fmt.Errorf("...: %w", err) — as Retry's
// final-failure return does.
func IsRetryable(err error) bool {
	var de *DocError
	if errors.As(err, &de) {
		return de.Retryable
	}
	return false
}

// GetKind extracts the Kind from a DocError err wraps, or "" if it
// doesn't wrap one.
func GetKind(err error) Kind {
	var de *DocError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// GetCategory extracts the Category from a DocError err wraps, or "" if it
// doesn't wrap one.
func GetCategory(err error) Category {
	var de *DocError
	if errors.As(err, &de) {
		return de.Category
	}
	return ""
}
