package util

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrQuestionNotFound = errors.New("question not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrQuestionInUse    = errors.New("question is used in assignments")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// FieldError is a single field-level rule violation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every violation found in a payload so the caller
// can report them together.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
