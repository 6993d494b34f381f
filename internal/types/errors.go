// Package types holds the error kinds shared by every stage of the inference
// pipeline: declaration parsing, sentence parsing, sampling and updating.
package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrOracleUnknown is returned when the satisfiability oracle can neither
// prove nor refute a query. It is never folded into "unsatisfiable".
var ErrOracleUnknown = errors.New("oracle returned unknown")

// ConfigError is a fatal configuration problem: an inconsistent knowledge
// base, a reserved or malformed declaration, or a malformed input file.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config error: %s: %v", e.Reason, e.Err)
	}
	return "config error: " + e.Reason
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError builds a ConfigError from a format string.
func NewConfigError(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// ParseError reports a sentence that could not be turned into an expression.
// Position is the index of the offending token, or -1 when the problem is
// not tied to a single token (unbalanced parentheses, empty input).
type ParseError struct {
	Sentence string
	Token    string
	Position int
	Reason   string
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("parse error")
	if e.Position >= 0 {
		fmt.Fprintf(&b, " at token %d", e.Position)
	}
	if e.Token != "" {
		fmt.Fprintf(&b, " (%q)", e.Token)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Sentence != "" {
		fmt.Fprintf(&b, " in %q", e.Sentence)
	}
	return b.String()
}

// IsConfigError reports whether err wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsParseError reports whether err wraps a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsFatal reports whether err aborts a session before any result exists.
func IsFatal(err error) bool {
	return IsConfigError(err) || IsParseError(err)
}
