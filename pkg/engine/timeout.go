package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// EvalTimeout is the hard limit for a single evaluation.
const EvalTimeout = 5 * time.Second

// ErrSuperseded is returned when a newer evaluation started before this one
// finished.
var ErrSuperseded = errors.New("evaluation superseded by newer request")

type evalResult struct {
	res EvalResult
	err error
}

// waitWithTimeout waits for a result from ch. The generation check discards
// results of evaluations that a newer one replaced. On timeout or
// cancellation the goroutine may still be running; its result is dropped
// into the buffered channel and never read.
func waitWithTimeout(
	ctx context.Context,
	ch <-chan evalResult,
	gen uint64,
	mu *sync.Mutex,
	currentGen *uint64,
) (EvalResult, error) {
	timer := time.NewTimer(EvalTimeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		mu.Lock()
		current := *currentGen
		mu.Unlock()
		if gen != current {
			return EvalResult{}, ErrSuperseded
		}
		return r.res, r.err

	case <-ctx.Done():
		return EvalResult{}, fmt.Errorf("evaluation cancelled: %w", ctx.Err())

	case <-timer.C:
		return EvalResult{}, fmt.Errorf("evaluation timed out after %s", EvalTimeout)
	}
}
