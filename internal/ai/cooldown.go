package ai

import "time"

// EndpointHealth is the failure bookkeeping of one endpoint.
type EndpointHealth struct {
	ConsecutiveFailures int
	CooldownUntil       time.Time
	LastFailure         time.Time
	LastError           string
}

// CooldownPolicy turns failures into temporary suspensions. It holds no
// state: Registry stores the health and applies the policy under its lock.
type CooldownPolicy struct {
	// Threshold is the number of consecutive failures that suspends an
	// endpoint. Zero disables cooldown.
	Threshold int
	Duration  time.Duration
}

// Eligible reports whether an endpoint with health h may be tried at now.
func (p CooldownPolicy) Eligible(h EndpointHealth, now time.Time) bool {
	return !now.Before(h.CooldownUntil)
}

// Fail returns h updated for one more failure, and whether that failure
// started a cooldown. Once an endpoint has reached the threshold, each
// further failure (the probe after an expired cooldown) re-arms it.
func (p CooldownPolicy) Fail(h EndpointHealth, now time.Time, cause error) (EndpointHealth, bool) {
	h.ConsecutiveFailures++
	h.LastFailure = now
	if cause != nil {
		h.LastError = cause.Error()
	}

	if p.Threshold <= 0 || h.ConsecutiveFailures < p.Threshold {
		return h, false
	}
	until := now.Add(p.Duration)
	if until.Before(h.CooldownUntil) {
		until = h.CooldownUntil
	}
	h.CooldownUntil = until
	return h, true
}

// Succeed resets the failure count and clears any cooldown.
func (p CooldownPolicy) Succeed(EndpointHealth) EndpointHealth {
	return EndpointHealth{}
}
