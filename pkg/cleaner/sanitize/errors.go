package sanitize

import (
	"errors"
	"fmt"
)

// ErrEmptySelection is returned when there is no element to sanitize.
var ErrEmptySelection = errors.New("no element selected")

// SanitizeError reports a failure while cloning, cleaning or serializing
// an element. The selection that triggered it is aborted.
type SanitizeError struct {
	Op  string // "clone", "parse", "render"
	Err error
}

func (e *SanitizeError) Error() string {
	return fmt.Sprintf("sanitize %s: %v", e.Op, e.Err)
}

func (e *SanitizeError) Unwrap() error {
	return e.Err
}

// IsSanitizeError reports whether err came from the sanitizer.
func IsSanitizeError(err error) bool {
	var se *SanitizeError
	return errors.As(err, &se)
}
