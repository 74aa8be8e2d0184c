package history

import (
	"errors"
	"fmt"
)

// ErrKeyNotFound indicates the requested key does not exist in the adapter.
var ErrKeyNotFound = errors.New("history: key not found")

// SerializationError wraps JSON marshaling errors with the affected key.
type SerializationError struct {
	Key string
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("history: serialization error for key %q: %v", e.Key, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}
