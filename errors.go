package odbcarrow

import (
	"errors"
	"strings"
)

// ErrorType is the caller-facing category of a failed call.
type ErrorType int

const (
	// ErrRuntime is anything that matched no other category.
	ErrRuntime ErrorType = iota
	// ErrConnection covers unreachable targets, failed authentication and
	// driver manager or environment initialization failures.
	ErrConnection
	// ErrSQL covers statements rejected by the data source.
	ErrSQL
	// ErrArrow covers schema inference, batch decoding and stream encoding.
	ErrArrow
)

// String returns the label used as the message prefix.
func (t ErrorType) String() string {
	switch t {
	case ErrConnection:
		return "Connection Error"
	case ErrSQL:
		return "SQL Error"
	case ErrArrow:
		return "Arrow Error"
	default:
		return "Runtime Error"
	}
}

var (
	// ErrNoResultSet is returned when a statement executed but produced no
	// result set and the sink was asked to treat that as an error.
	ErrNoResultSet = errors.New("SQL did not return a result set")
	// ErrNoData is returned by the zero-copy sink when the result produced no
	// batches to export.
	ErrNoData = errors.New("No data returned from query") //nolint:staticcheck
)

// Error is a classified odbcarrow error.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
}

// Error returns the message prefixed by the category label.
func (e *Error) Error() string {
	return e.Type.String() + ": " + e.Message
}

// Unwrap returns the underlying driver or encoding error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error.
func NewError(typ ErrorType, message string) *Error {
	return &Error{
		Type:    typ,
		Message: message,
	}
}

// IsError checks if an error is of a specific type.
func IsError(err error, typ ErrorType) bool {
	var oErr *Error
	if !errors.As(err, &oErr) {
		return false
	}
	return oErr.Type == typ
}

// ClassifyRule maps any of its substring patterns onto a category.
type ClassifyRule struct {
	Type     ErrorType
	Patterns []string
}

// DefaultRules is the ordered rule table used by Classify. The first rule with
// a matching pattern wins.
//
// Matching is done on free-form driver text and therefore depends on how a
// given driver words its diagnostics. SQLSTATE codes are kept in the
// diagnostic text (see odbc.go) so the connection rules can key on them.
var DefaultRules = []ClassifyRule{
	{Type: ErrConnection, Patterns: []string{"IM002", "IM003", "08001", "08004", "08S01", "28000", "connection"}},
	{Type: ErrSQL, Patterns: []string{"SQL", "syntax"}},
	{Type: ErrArrow, Patterns: []string{"Arrow", "c_data"}},
}

// Classify maps err onto the error taxonomy using DefaultRules. Errors that
// are already classified are returned unchanged. A nil error yields nil.
func Classify(err error) *Error {
	return ClassifyWith(DefaultRules, err)
}

// ClassifyWith is Classify with a caller supplied rule table.
func ClassifyWith(rules []ClassifyRule, err error) *Error {
	if err == nil {
		return nil
	}

	var oErr *Error
	if errors.As(err, &oErr) {
		return oErr
	}

	msg := err.Error()
	return &Error{
		Type:    classifyText(rules, msg),
		Message: msg,
		Cause:   err,
	}
}

// ClassifyText returns the category DefaultRules assign to a diagnostic text.
func ClassifyText(msg string) ErrorType {
	return classifyText(DefaultRules, msg)
}

func classifyText(rules []ClassifyRule, msg string) ErrorType {
	for _, rule := range rules {
		for _, p := range rule.Patterns {
			if strings.Contains(msg, p) {
				return rule.Type
			}
		}
	}
	return ErrRuntime
}
