package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/vadiminshakov/rebalancer/internal/domain"
	"go.uber.org/zap"
)

type stubRegistry struct {
	mu         sync.Mutex
	strategies []domain.Strategy
	triggered  []string
	failFor    map[string]error
}

func (r *stubRegistry) List() []domain.Strategy {
	return r.strategies
}

func (r *stubRegistry) ActiveDeals() int {
	return 0
}

func (r *stubRegistry) TriggerUser(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggered = append(r.triggered, userID)
	if err, ok := r.failFor[userID]; ok {
		return err
	}
	return nil
}

func (r *stubRegistry) triggeredUsers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.triggered))
	copy(out, r.triggered)
	return out
}

func TestSweepTriggersAllStrategies(t *testing.T) {
	reg := &stubRegistry{
		strategies: []domain.Strategy{
			{UserID: "alice"}, {UserID: "bob"}, {UserID: "carol"},
		},
	}
	s := New(reg, time.Hour, zap.NewNop())

	s.sweep(context.Background())

	assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, reg.triggeredUsers())
}

func TestSweepContinuesAfterStrategyFailure(t *testing.T) {
	reg := &stubRegistry{
		strategies: []domain.Strategy{
			{UserID: "alice"}, {UserID: "bob"}, {UserID: "carol"},
		},
		failFor: map[string]error{"alice": errors.New("boom")},
	}
	s := New(reg, time.Hour, zap.NewNop())

	s.sweep(context.Background())

	assert.Len(t, reg.triggeredUsers(), 3, "one failing strategy must not abort the sweep")
}

func TestRunStopsOnContextCancel(t *testing.T) {
	reg := &stubRegistry{strategies: []domain.Strategy{{UserID: "alice"}}}
	s := New(reg, 5*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotEmpty(t, reg.triggeredUsers(), "ticks before cancellation must sweep")
}
