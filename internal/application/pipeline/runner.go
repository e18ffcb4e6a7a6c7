package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/historify/internal/domain/analysis"
)

// runStage invokes one collaborator call with a per-stage timeout and
// converts every failure mode (error, timeout, panic) into a failed
// StageResult. A stage failure must never escape past this boundary.
//
// The call is attempted exactly once; retry policy belongs to the caller.
func runStage[T any](ctx context.Context, stage domain.Stage, timeout time.Duration, fn func(context.Context) (T, error)) domain.StageResult[T] {
	start := time.Now()

	sctx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		sctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		payload T
		err     error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", rec)}
			}
		}()
		v, err := fn(sctx)
		done <- outcome{payload: v, err: err}
	}()

	var res domain.StageResult[T]
	select {
	case out := <-done:
		if out.err != nil {
			res = domain.Failed[T](stage, failureReason(out.err))
		} else {
			res = domain.Ok(stage, out.payload)
		}
	case <-sctx.Done():
		res = domain.Failed[T](stage, failureReason(sctx.Err()))
	}
	res.Duration = time.Since(start)
	return res
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return err.Error()
	}
}
