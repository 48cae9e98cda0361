package connection

import "time"

// ReconnectPolicy decides the delay before the next reconnect attempt.
// The Manager calls it with its lock held.
type ReconnectPolicy interface {
	// Next returns the delay for the next attempt.
	Next() time.Duration

	// Reset is called after a successful connect.
	Reset()
}

// FixedInterval retries forever with a constant delay.
type FixedInterval struct {
	Delay time.Duration
}

// NewFixedInterval creates a constant-delay policy.
func NewFixedInterval(delay time.Duration) *FixedInterval {
	return &FixedInterval{Delay: delay}
}

// Next returns the constant delay.
func (p *FixedInterval) Next() time.Duration {
	return p.Delay
}

// Reset is a no-op.
func (p *FixedInterval) Reset() {}

// Backoff doubles the delay on every attempt up to Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration

	wait time.Duration
}

// NewBackoff creates a capped exponential policy.
func NewBackoff(base, max time.Duration) *Backoff {
	if max < base {
		max = base
	}
	return &Backoff{Base: base, Max: max}
}

// Next returns the current delay and doubles it for the following call.
func (p *Backoff) Next() time.Duration {
	if p.wait == 0 {
		p.wait = p.Base
	}
	wait := p.wait

	p.wait *= 2
	if p.wait > p.Max {
		p.wait = p.Max
	}
	return wait
}

// Reset starts the sequence over at Base.
func (p *Backoff) Reset() {
	p.wait = 0
}

func policyFor(cfg ManagerConfig) ReconnectPolicy {
	if cfg.ReconnectBackoff {
		return NewBackoff(cfg.ReconnectDelay, cfg.ReconnectMaxDelay)
	}
	return NewFixedInterval(cfg.ReconnectDelay)
}
