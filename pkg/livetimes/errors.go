// Package livetimes holds the immutable live departure value types. Every type
// is created through its builder; Build rejects missing identifying fields
// with an error wrapping ErrInvalidArgument.
package livetimes

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is wrapped by every builder validation failure.
var ErrInvalidArgument = errors.New("invalid argument")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
