package inject

import (
	"errors"
	"fmt"
)

// InjectionError indicates OS-level input delivery failed. It is fatal
// to the action being played back.
type InjectionError struct {
	// Op names the failed injection ("click", "type", "key", "scroll",
	// "open_url").
	Op string

	// Err is the backend failure.
	Err error
}

func (e *InjectionError) Error() string {
	return fmt.Sprintf("inject %s: %v", e.Op, e.Err)
}

func (e *InjectionError) Unwrap() error { return e.Err }

// IsInjectionError reports whether err is an injection failure.
// Uses errors.As to handle wrapped errors.
func IsInjectionError(err error) bool {
	var ie *InjectionError
	return errors.As(err, &ie)
}
