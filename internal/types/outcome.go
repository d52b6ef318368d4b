package types

import "strings"

// OutcomeKind tags the two terminal results of an authorization session.
type OutcomeKind int

const (
	OutcomeCode OutcomeKind = iota + 1
	OutcomeError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCode:
		return "code"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome is the single terminal result of a session: either the
// authorization code or an error message.
type Outcome struct {
	Kind  OutcomeKind
	Value string
}

// CodeOutcome returns a successful outcome carrying an authorization code.
func CodeOutcome(code string) Outcome {
	return Outcome{Kind: OutcomeCode, Value: singleLine(code)}
}

// ErrorOutcome returns a failure outcome carrying an error message.
func ErrorOutcome(msg string) Outcome {
	return Outcome{Kind: OutcomeError, Value: singleLine(msg)}
}

// Success reports whether the outcome carries a code.
func (o Outcome) Success() bool { return o.Kind == OutcomeCode }

// Well-known error values produced locally rather than by the provider.
const (
	ErrUserCancelled  = "user_cancelled"
	ErrSessionTimeout = "session_timeout"
	ErrInterrupted    = "interrupted"
)

// singleLine keeps values on one output line.
func singleLine(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
