package state

import (
	"sync"
	"time"
)

// DefaultFeedbackExpiry is how long command feedback stays visible.
const DefaultFeedbackExpiry = 5 * time.Second

// FeedbackSlot holds the last command feedback and clears it after a
// fixed expiry. Setting a new value cancels the pending expiry first.
type FeedbackSlot struct {
	slot   *Slot[*CommandFeedback]
	expiry time.Duration

	// pubMu orders publications and is taken before mu. mu is never held
	// while subscribers run.
	pubMu sync.Mutex

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64 // bumped on every Set; a timer only clears its own generation
}

// NewFeedbackSlot creates an empty feedback slot.
func NewFeedbackSlot(expiry time.Duration) *FeedbackSlot {
	if expiry <= 0 {
		expiry = DefaultFeedbackExpiry
	}
	return &FeedbackSlot{
		slot:   NewSlot[*CommandFeedback](nil),
		expiry: expiry,
	}
}

// Set publishes fb and arms its expiry. A nil fb clears immediately.
// Subscribers may call Pending, Stop or Get, but not Set or Clear.
func (f *FeedbackSlot) Set(fb *CommandFeedback) {
	f.pubMu.Lock()
	defer f.pubMu.Unlock()

	f.mu.Lock()
	f.cancelLocked()
	if fb != nil {
		gen := f.gen
		f.timer = time.AfterFunc(f.expiry, func() { f.expire(gen) })
	}
	f.mu.Unlock()

	f.slot.Set(fb)
}

// Clear publishes nil and cancels any pending expiry.
func (f *FeedbackSlot) Clear() {
	f.Set(nil)
}

// Pending reports whether an expiry is armed.
func (f *FeedbackSlot) Pending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.timer != nil
}

// Stop cancels the pending expiry without publishing.
func (f *FeedbackSlot) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelLocked()
}

// Expiry returns the configured expiry.
func (f *FeedbackSlot) Expiry() time.Duration {
	return f.expiry
}

// Get returns the current feedback, nil when none is shown.
func (f *FeedbackSlot) Get() *CommandFeedback {
	return f.slot.Get()
}

// Subscribe implements Observable.
func (f *FeedbackSlot) Subscribe(fn func(*CommandFeedback)) (cancel func()) {
	return f.slot.Subscribe(fn)
}

func (f *FeedbackSlot) cancelLocked() {
	f.gen++
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}

func (f *FeedbackSlot) expire(gen uint64) {
	f.pubMu.Lock()
	defer f.pubMu.Unlock()

	f.mu.Lock()
	// Superseded after this timer had already fired.
	if gen != f.gen {
		f.mu.Unlock()
		return
	}
	f.gen++
	f.timer = nil
	f.mu.Unlock()

	f.slot.Set(nil)
}
