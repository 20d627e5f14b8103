package router

import (
	"errors"
	"fmt"
)

var (
	ErrNilResponse    = errors.New("nil response")
	ErrLateMiddleware = errors.New("middlewares must be registered before routes")
)

// PanicError wraps a value recovered from a handler panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
