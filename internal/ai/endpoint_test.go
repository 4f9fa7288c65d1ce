package ai

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRegistry_OrdersByPriority(t *testing.T) {
	r := NewRegistry([]Endpoint{
		{Name: "c", Priority: 3},
		{Name: "a", Priority: 1},
		{Name: "b1", Priority: 2},
		{Name: "b2", Priority: 2},
	}, CooldownPolicy{Threshold: 1, Duration: time.Minute})

	require.Equal(t, 4, r.Len())
	var names []string
	for i := range r.Len() {
		names = append(names, r.Endpoint(i).Name)
	}
	assert.Equal(t, []string{"a", "b1", "b2", "c"}, names)
}

func TestRegistry_NextEligibleSkipsCoolingEndpoints(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry([]Endpoint{
		{Name: "first", Priority: 1},
		{Name: "second", Priority: 2},
		{Name: "third", Priority: 3},
	}, CooldownPolicy{Threshold: 1, Duration: time.Minute})

	_, started := r.RecordFailure(1, clock.Now(), nil)
	require.True(t, started)

	idx, ok := r.NextEligible(-1, clock.Now())
	require.True(t, ok)
	assert.Equal(t, 0, idx)

	idx, ok = r.NextEligible(0, clock.Now())
	require.True(t, ok)
	assert.Equal(t, 2, idx, "cooling endpoint must be skipped")

	_, ok = r.NextEligible(2, clock.Now())
	assert.False(t, ok)
}

func TestRegistry_CooldownRespectedUntilExpiry(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry([]Endpoint{{Name: "only"}}, CooldownPolicy{Threshold: 3, Duration: 5 * time.Minute})

	for range 3 {
		r.RecordFailure(0, clock.Now(), nil)
	}
	assert.Equal(t, 3, r.Health(0).ConsecutiveFailures)

	_, ok := r.NextEligible(-1, clock.Now())
	assert.False(t, ok)

	clock.Advance(5*time.Minute - time.Second)
	_, ok = r.NextEligible(-1, clock.Now())
	assert.False(t, ok)

	clock.Advance(time.Second)
	idx, ok := r.NextEligible(-1, clock.Now())
	assert.True(t, ok)
	assert.Equal(t, 0, idx)
}

func TestRegistry_EligibilityCheckHasNoSideEffects(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry([]Endpoint{{Name: "only"}}, CooldownPolicy{Threshold: 1, Duration: time.Minute})
	r.RecordFailure(0, clock.Now(), nil)
	before := r.Health(0)

	for range 5 {
		r.Eligible(0, clock.Now())
		r.NextEligible(-1, clock.Now())
		r.Snapshot(clock.Now())
	}

	assert.Equal(t, before, r.Health(0))
}

func TestRegistry_RecordSuccessClearsCooldown(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry([]Endpoint{{Name: "only"}}, CooldownPolicy{Threshold: 1, Duration: time.Hour})

	r.RecordFailure(0, clock.Now(), nil)
	require.False(t, r.Eligible(0, clock.Now()))

	r.RecordSuccess(0)
	assert.True(t, r.Eligible(0, clock.Now()))
	assert.Zero(t, r.Health(0).ConsecutiveFailures)
}

func TestRegistry_Snapshot(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry([]Endpoint{
		{Name: "primary", Model: "m1", Priority: 1},
		{Name: "backup", Model: "m2", Priority: 2},
	}, CooldownPolicy{Threshold: 1, Duration: time.Minute})
	r.RecordFailure(0, clock.Now(), assert.AnError)

	snapshot := r.Snapshot(clock.Now())
	require.Len(t, snapshot, 2)
	assert.Equal(t, "primary", snapshot[0].Name)
	assert.False(t, snapshot[0].Eligible)
	assert.Equal(t, 1, snapshot[0].ConsecutiveFailures)
	assert.Equal(t, assert.AnError.Error(), snapshot[0].LastError)
	assert.True(t, snapshot[1].Eligible)
}

func TestRegistry_ConcurrentFailuresAreCounted(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry([]Endpoint{{Name: "only"}}, CooldownPolicy{Threshold: 1000, Duration: time.Minute})

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			r.RecordFailure(0, clock.Now(), nil)
			r.Eligible(0, clock.Now())
		})
	}
	wg.Wait()

	assert.Equal(t, 50, r.Health(0).ConsecutiveFailures)
}
