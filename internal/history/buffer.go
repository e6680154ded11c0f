// Package history keeps a fixed-size circular record of prediction hits and
// misses, in the manner of a branch history table.
package history

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCapacity = errors.New("history: capacity must be at least 1")
	ErrInvalidOutcome  = errors.New("history: outcome must be 0 or 1")
)

// #region outcome

// Outcome is one slot value: Miss (0) or Hit (1).
type Outcome int

const (
	Miss Outcome = 0
	Hit  Outcome = 1
)

// OutcomeOf maps a comparison result to its slot value.
func OutcomeOf(hit bool) Outcome {
	if hit {
		return Hit
	}
	return Miss
}

func (o Outcome) valid() bool { return o == Miss || o == Hit }

// #endregion outcome

// #region buffer

// Buffer is a ring of outcomes. The oldest slot is overwritten once the ring
// wraps. It is not safe for concurrent use; callers serialize access.
type Buffer struct {
	slots   []Outcome
	cursor  int
	written int
}

// New returns a buffer with every slot 0 and the cursor at 0.
func New(capacity int) (*Buffer, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidCapacity, capacity)
	}
	return &Buffer{slots: make([]Outcome, capacity)}, nil
}

// Record writes outcome at the cursor and returns the advanced cursor.
// An invalid outcome leaves the buffer untouched.
func (b *Buffer) Record(outcome Outcome) (int, error) {
	if !outcome.valid() {
		return b.cursor, fmt.Errorf("%w (got %d)", ErrInvalidOutcome, outcome)
	}
	b.slots[b.cursor] = outcome
	b.cursor = (b.cursor + 1) % len(b.slots)
	b.written++
	return b.cursor, nil
}

// Reset zeroes every slot and rewinds the cursor. Capacity is unchanged.
func (b *Buffer) Reset() {
	clear(b.slots)
	b.cursor = 0
	b.written = 0
}

// Slots returns a copy of the ring in slot order (not write order).
func (b *Buffer) Slots() []Outcome {
	return append([]Outcome(nil), b.slots...)
}

func (b *Buffer) Cursor() int   { return b.cursor }
func (b *Buffer) Capacity() int { return len(b.slots) }

// Written counts Record calls since creation or the last Reset.
func (b *Buffer) Written() int { return b.written }

// Filled is the number of slots holding a recorded outcome.
func (b *Buffer) Filled() int { return min(b.written, len(b.slots)) }

// HitRate is the share of 1s among filled slots, or 0 before any write.
func (b *Buffer) HitRate() float64 { return hitRate(b.slots, b.Filled()) }

func hitRate(slots []Outcome, filled int) float64 {
	if filled == 0 {
		return 0
	}
	hits := 0
	for _, o := range slots[:filled] {
		if o == Hit {
			hits++
		}
	}
	return float64(hits) / float64(filled)
}

// #endregion buffer
