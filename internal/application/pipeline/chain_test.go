package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/bryanwahyu/historify/internal/domain/analysis"
)

// stubRepo records Save attempts; the other Repository methods are not
// exercised by the chain.
type stubRepo struct {
	name    string
	saveErr error
	delay   time.Duration

	calls  int
	gotIDs []domain.RecordID
}

func (s *stubRepo) Name() string { return s.name }

func (s *stubRepo) Save(ctx context.Context, r *domain.Record) (domain.RecordID, error) {
	s.calls++
	s.gotIDs = append(s.gotIDs, r.ID)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.saveErr != nil {
		return "", s.saveErr
	}
	return r.ID, nil
}

func (s *stubRepo) Get(ctx context.Context, id domain.RecordID) (*domain.Record, error) {
	return nil, errors.New("not implemented")
}

func (s *stubRepo) Latest(ctx context.Context, limit int) ([]*domain.Record, error) {
	return nil, errors.New("not implemented")
}

func (s *stubRepo) Search(ctx context.Context, query string, limit int) ([]*domain.Record, error) {
	return nil, errors.New("not implemented")
}

func (s *stubRepo) Stats(ctx context.Context) (domain.Stats, error) {
	return domain.Stats{}, errors.New("not implemented")
}

func TestChainPrimarySucceeds(t *testing.T) {
	primary := &stubRepo{name: "postgres"}
	secondary := &stubRepo{name: "mysql"}
	chain := NewChain(time.Second, primary, secondary)

	rec := &domain.Record{Title: "t"}
	out, err := chain.Persist(context.Background(), rec)
	if err != nil {
		t.Fatalf("persist: %v", err)
	}

	if out.Backend != "postgres" {
		t.Errorf("backend = %q", out.Backend)
	}
	if primary.calls != 1 {
		t.Errorf("primary attempts = %d, want exactly one", primary.calls)
	}
	if secondary.calls != 0 {
		t.Errorf("secondary attempted %d times after primary success", secondary.calls)
	}
	if rec.ID == "" || rec.ID != out.ID {
		t.Errorf("record not stamped: id=%q outcome=%q", rec.ID, out.ID)
	}
	if rec.StorageBackend != "postgres" {
		t.Errorf("storage_backend = %q", rec.StorageBackend)
	}
}

func TestChainFallsThroughInOrder(t *testing.T) {
	primary := &stubRepo{name: "postgres", saveErr: errors.New("connection refused")}
	secondary := &stubRepo{name: "mysql", saveErr: errors.New("access denied")}
	tertiary := &stubRepo{name: "sqlite"}
	chain := NewChain(time.Second, primary, secondary, tertiary)

	rec := &domain.Record{Title: "t"}
	out, err := chain.Persist(context.Background(), rec)
	if err != nil {
		t.Fatalf("persist: %v", err)
	}

	if out.Backend != "sqlite" {
		t.Errorf("backend = %q", out.Backend)
	}
	for _, s := range []*stubRepo{primary, secondary, tertiary} {
		if s.calls != 1 {
			t.Errorf("%s attempts = %d, want exactly one", s.name, s.calls)
		}
	}
	// Every tier must see the same pre-minted ID.
	if primary.gotIDs[0] != out.ID || secondary.gotIDs[0] != out.ID || tertiary.gotIDs[0] != out.ID {
		t.Errorf("id not stable across attempts: %v %v %v", primary.gotIDs, secondary.gotIDs, tertiary.gotIDs)
	}
	if rec.StorageBackend != "sqlite" {
		t.Errorf("storage_backend = %q", rec.StorageBackend)
	}
}

func TestChainAllBackendsFail(t *testing.T) {
	primary := &stubRepo{name: "postgres", saveErr: errors.New("down")}
	secondary := &stubRepo{name: "mysql", saveErr: errors.New("down")}
	chain := NewChain(time.Second, primary, secondary)

	rec := &domain.Record{Title: "t"}
	_, err := chain.Persist(context.Background(), rec)

	if !errors.Is(err, domain.ErrStorageExhausted) {
		t.Fatalf("err = %v, want ErrStorageExhausted", err)
	}
	if rec.ID != "" || rec.StorageBackend != "" {
		t.Errorf("failed persist must leave record unstamped, got id=%q backend=%q", rec.ID, rec.StorageBackend)
	}
}

func TestChainAttemptTimeout(t *testing.T) {
	hung := &stubRepo{name: "postgres", delay: 5 * time.Second}
	fallback := &stubRepo{name: "sqlite"}
	chain := NewChain(30*time.Millisecond, hung, fallback)

	started := time.Now()
	out, err := chain.Persist(context.Background(), &domain.Record{Title: "t"})
	if err != nil {
		t.Fatalf("persist: %v", err)
	}

	if out.Backend != "sqlite" {
		t.Errorf("backend = %q", out.Backend)
	}
	if elapsed := time.Since(started); elapsed > time.Second {
		t.Errorf("hung backend stalled the chain for %v", elapsed)
	}
}

func TestChainCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	primary := &stubRepo{name: "postgres"}
	chain := NewChain(time.Second, primary)

	_, err := chain.Persist(ctx, &domain.Record{Title: "t"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if primary.calls != 0 {
		t.Errorf("backend attempted under canceled context")
	}
}
