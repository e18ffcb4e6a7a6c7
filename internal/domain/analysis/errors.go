package analysis

import "errors"

// ErrStorageExhausted indicates every backend in the persistence chain
// rejected the write. The record still exists in memory but is not durable.
var ErrStorageExhausted = errors.New("all storage backends failed")

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error
// (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")
