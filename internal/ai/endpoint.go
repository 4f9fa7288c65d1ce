package ai

import (
	"slices"
	"sync"
	"time"
)

// Endpoint is one configured upstream. It is immutable after registration.
type Endpoint struct {
	Name      string
	Model     string
	MaxTokens int
	Priority  int
	Provider  Provider
}

type endpointState struct {
	endpoint Endpoint

	mu     sync.Mutex
	health EndpointHealth
}

// Registry holds endpoints in priority order with their health. Queries are
// pure; health changes only through RecordFailure and RecordSuccess.
type Registry struct {
	policy  CooldownPolicy
	entries []*endpointState
}

// NewRegistry orders endpoints by ascending Priority. Equal priorities keep
// their configuration order.
func NewRegistry(endpoints []Endpoint, policy CooldownPolicy) *Registry {
	sorted := slices.Clone(endpoints)
	slices.SortStableFunc(sorted, func(a, b Endpoint) int {
		return a.Priority - b.Priority
	})

	entries := make([]*endpointState, len(sorted))
	for i, ep := range sorted {
		entries[i] = &endpointState{endpoint: ep}
	}
	return &Registry{policy: policy, entries: entries}
}

func (r *Registry) Len() int {
	return len(r.entries)
}

func (r *Registry) Endpoint(index int) Endpoint {
	return r.entries[index].endpoint
}

func (r *Registry) Health(index int) EndpointHealth {
	e := r.entries[index]
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.health
}

func (r *Registry) Eligible(index int, now time.Time) bool {
	return r.policy.Eligible(r.Health(index), now)
}

// NextEligible returns the first eligible index strictly after after. Pass
// -1 to start from the highest priority endpoint.
func (r *Registry) NextEligible(after int, now time.Time) (int, bool) {
	for i := max(after+1, 0); i < len(r.entries); i++ {
		if r.Eligible(i, now) {
			return i, true
		}
	}
	return -1, false
}

// RecordFailure counts a failure and reports whether it put the endpoint
// into cooldown.
func (r *Registry) RecordFailure(index int, now time.Time, cause error) (EndpointHealth, bool) {
	e := r.entries[index]
	e.mu.Lock()
	defer e.mu.Unlock()

	health, started := r.policy.Fail(e.health, now, cause)
	e.health = health
	return health, started
}

func (r *Registry) RecordSuccess(index int) {
	e := r.entries[index]
	e.mu.Lock()
	defer e.mu.Unlock()
	e.health = r.policy.Succeed(e.health)
}

// EndpointStatus is a point-in-time view of one endpoint for operators.
type EndpointStatus struct {
	Name                string
	Model               string
	Priority            int
	ConsecutiveFailures int
	CooldownUntil       time.Time
	LastError           string
	Eligible            bool
}

func (r *Registry) Snapshot(now time.Time) []EndpointStatus {
	statuses := make([]EndpointStatus, len(r.entries))
	for i, e := range r.entries {
		health := r.Health(i)
		statuses[i] = EndpointStatus{
			Name:                e.endpoint.Name,
			Model:               e.endpoint.Model,
			Priority:            e.endpoint.Priority,
			ConsecutiveFailures: health.ConsecutiveFailures,
			CooldownUntil:       health.CooldownUntil,
			LastError:           health.LastError,
			Eligible:            r.policy.Eligible(health, now),
		}
	}
	return statuses
}
