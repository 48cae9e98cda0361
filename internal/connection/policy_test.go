package connection

import (
	"testing"
	"time"
)

func TestFixedInterval(t *testing.T) {
	p := NewFixedInterval(3 * time.Second)

	for i := 0; i < 5; i++ {
		if got := p.Next(); got != 3*time.Second {
			t.Errorf("Next() #%d = %v, want 3s", i, got)
		}
	}
	p.Reset()
	if got := p.Next(); got != 3*time.Second {
		t.Errorf("Next() after Reset = %v, want 3s", got)
	}
}

func TestBackoff(t *testing.T) {
	p := NewBackoff(time.Second, 5*time.Second)

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		5 * time.Second,
		5 * time.Second,
	}
	for i, w := range want {
		if got := p.Next(); got != w {
			t.Errorf("Next() #%d = %v, want %v", i, got, w)
		}
	}

	p.Reset()
	if got := p.Next(); got != time.Second {
		t.Errorf("Next() after Reset = %v, want 1s", got)
	}
}

func TestNewBackoff_MaxBelowBase(t *testing.T) {
	p := NewBackoff(2*time.Second, time.Second)
	if p.Max != 2*time.Second {
		t.Errorf("Max = %v, want 2s", p.Max)
	}
}

func TestPolicyFor(t *testing.T) {
	cfg := DefaultManagerConfig()
	if _, ok := policyFor(cfg).(*FixedInterval); !ok {
		t.Error("default policy should be FixedInterval")
	}

	cfg.ReconnectBackoff = true
	if _, ok := policyFor(cfg).(*Backoff); !ok {
		t.Error("backoff config should yield Backoff")
	}
}
