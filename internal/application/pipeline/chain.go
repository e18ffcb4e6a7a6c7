package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	domain "github.com/bryanwahyu/historify/internal/domain/analysis"
)

// Chain writes a record through an ordered list of storage backends,
// falling through to the next on failure. Backends represent decreasing
// trust tiers, so attempts are strictly sequential: the next tier is tried
// only after the previous one failed.
//
// An attempt fails on driver error, rejected write, or its per-attempt
// timeout elapsing; a hung backend cannot stall the chain past that
// timeout.
type Chain struct {
	backends       []domain.Repository
	attemptTimeout time.Duration
}

// Outcome names the backend that accepted the record.
type Outcome struct {
	Backend string          `json:"backend"`
	ID      domain.RecordID `json:"id"`
}

func NewChain(attemptTimeout time.Duration, backends ...domain.Repository) *Chain {
	return &Chain{backends: backends, attemptTimeout: attemptTimeout}
}

// Backends exposes the chain's tiers in order, primary first.
func (c *Chain) Backends() []domain.Repository { return c.backends }

// Persist attempts each backend in order and stamps the record with the
// winning backend's name and the assigned ID. When every backend fails the
// record is left unstamped and ErrStorageExhausted is returned; the caller
// still holds the in-memory record.
func (c *Chain) Persist(ctx context.Context, rec *domain.Record) (Outcome, error) {
	id := domain.RecordID(uuid.New().String())

	for _, backend := range c.backends {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}

		rec.ID = id
		actx := ctx
		var cancel context.CancelFunc
		if c.attemptTimeout > 0 {
			actx, cancel = context.WithTimeout(ctx, c.attemptTimeout)
		}
		assigned, err := backend.Save(actx, rec)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			log.Printf("persist backend=%s record=%s error=%v", backend.Name(), id, err)
			rec.ID = ""
			continue
		}

		rec.ID = assigned
		rec.StorageBackend = backend.Name()
		return Outcome{Backend: backend.Name(), ID: assigned}, nil
	}

	rec.ID = ""
	rec.StorageBackend = ""
	return Outcome{}, domain.ErrStorageExhausted
}
