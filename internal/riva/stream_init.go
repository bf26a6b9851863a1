package riva

import (
	"context"
	"fmt"
	"time"
)

type callResult[T any] struct {
	value T
	err   error
}

// withTimeout runs call and gives up after timeout. On timeout the call is
// abandoned, not cancelled.
func withTimeout[T any](ctx context.Context, timeout time.Duration, call func() (T, error)) (T, error) {
	if timeout <= 0 {
		return call()
	}

	done := make(chan callResult[T], 1)
	go func() {
		value, err := call()
		done <- callResult[T]{value: value, err: err}
	}()

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-time.After(timeout):
		return zero, fmt.Errorf("timed out after %s", timeout)
	case result := <-done:
		return result.value, result.err
	}
}
