package state

// DefaultLogCapacity is the number of messages kept by a MessageLog.
const DefaultLogCapacity = 50

// MessageLog is a bounded, ordered log of recent messages published
// through a Slot. Every Append publishes a fresh slice; published slices
// are never modified.
type MessageLog struct {
	slot     *Slot[[]LogEntry]
	capacity int
}

// NewMessageLog creates an empty log holding at most capacity entries.
func NewMessageLog(capacity int) *MessageLog {
	if capacity < 1 {
		capacity = DefaultLogCapacity
	}
	return &MessageLog{
		slot:     NewSlot([]LogEntry{}),
		capacity: capacity,
	}
}

// Append adds entry at the end, evicting the oldest entries beyond capacity.
func (l *MessageLog) Append(entry LogEntry) {
	l.slot.Update(func(current []LogEntry) []LogEntry {
		return appendBounded(current, entry, l.capacity)
	})
}

// Get returns the current entries, oldest first.
func (l *MessageLog) Get() []LogEntry {
	return l.slot.Get()
}

// Subscribe implements Observable.
func (l *MessageLog) Subscribe(fn func([]LogEntry)) (cancel func()) {
	return l.slot.Subscribe(fn)
}

// Len returns the number of entries.
func (l *MessageLog) Len() int {
	return len(l.slot.Get())
}

// Capacity returns the maximum number of entries.
func (l *MessageLog) Capacity() int {
	return l.capacity
}

func appendBounded(current []LogEntry, entry LogEntry, capacity int) []LogEntry {
	start := 0
	if len(current)+1 > capacity {
		start = len(current) + 1 - capacity
	}
	next := make([]LogEntry, 0, len(current)-start+1)
	next = append(next, current[start:]...)
	return append(next, entry)
}
