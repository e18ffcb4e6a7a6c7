package analysis

import "time"

// StageResult is the uniform wrapper every stage invocation returns.
// Exactly one of Payload/Reason is meaningful; a result is immutable once
// produced.
type StageResult[T any] struct {
	Stage    Stage
	OK       bool
	Payload  T
	Reason   string
	Duration time.Duration
}

// Ok wraps a successful stage payload.
func Ok[T any](stage Stage, payload T) StageResult[T] {
	return StageResult[T]{Stage: stage, OK: true, Payload: payload}
}

// Failed wraps a stage failure with a diagnostic reason.
func Failed[T any](stage Stage, reason string) StageResult[T] {
	return StageResult[T]{Stage: stage, Reason: reason}
}

// PayloadOr returns the payload when the stage succeeded, otherwise the
// given fallback.
func (r StageResult[T]) PayloadOr(fallback T) T {
	if r.OK {
		return r.Payload
	}
	return fallback
}
