package history

import (
	"errors"
	"reflect"
	"testing"
)

func mustNew(t *testing.T, capacity int) *Buffer {
	t.Helper()
	b, err := New(capacity)
	if err != nil {
		t.Fatalf("New(%d): %v", capacity, err)
	}
	return b
}

func TestNew_InvalidCapacity(t *testing.T) {
	for _, c := range []int{0, -1, -10} {
		if _, err := New(c); !errors.Is(err, ErrInvalidCapacity) {
			t.Errorf("New(%d) err = %v, want ErrInvalidCapacity", c, err)
		}
	}
}

func TestNew_Zeroed(t *testing.T) {
	b := mustNew(t, 10)
	if b.Cursor() != 0 || b.Capacity() != 10 || b.Written() != 0 {
		t.Fatalf("cursor=%d cap=%d written=%d", b.Cursor(), b.Capacity(), b.Written())
	}
	for i, o := range b.Slots() {
		if o != Miss {
			t.Errorf("slot %d = %d, want 0", i, o)
		}
	}
}

func TestRecord_WrapsAtCapacity(t *testing.T) {
	b := mustNew(t, 3)
	seq := []Outcome{Hit, Miss, Hit, Hit}
	wantCursor := []int{1, 2, 0, 1}

	for i, o := range seq {
		got, err := b.Record(o)
		if err != nil {
			t.Fatalf("Record #%d: %v", i, err)
		}
		if got != wantCursor[i] {
			t.Errorf("Record #%d cursor = %d, want %d", i, got, wantCursor[i])
		}
	}
	// slot 0 now holds the 4th outcome; slot 1 still holds the miss
	if want := []Outcome{Hit, Miss, Hit}; !reflect.DeepEqual(b.Slots(), want) {
		t.Errorf("slots = %v, want %v", b.Slots(), want)
	}
	if b.Cursor() != 1 {
		t.Errorf("cursor = %d, want 1", b.Cursor())
	}
	if b.Written() != 4 {
		t.Errorf("written = %d, want 4", b.Written())
	}
}

// After k writes the cursor is k mod capacity and the last min(k,capacity)
// outcomes occupy the slots just behind it.
func TestRecord_WrapProperty(t *testing.T) {
	for capacity := 1; capacity <= 7; capacity++ {
		b := mustNew(t, capacity)
		var written []Outcome
		for k := 1; k <= 3*capacity+2; k++ {
			o := OutcomeOf(k%3 == 0)
			if _, err := b.Record(o); err != nil {
				t.Fatal(err)
			}
			written = append(written, o)

			if b.Cursor() != k%capacity {
				t.Fatalf("cap=%d k=%d cursor=%d", capacity, k, b.Cursor())
			}
			slots := b.Slots()
			for back := 1; back <= min(k, capacity); back++ {
				idx := ((k-back)%capacity + capacity) % capacity
				if slots[idx] != written[k-back] {
					t.Fatalf("cap=%d k=%d slot %d = %d, want %d", capacity, k, idx, slots[idx], written[k-back])
				}
			}
		}
	}
}

func TestRecord_InvalidOutcomeUnchanged(t *testing.T) {
	b := mustNew(t, 4)
	b.Record(Hit)
	before := b.Slots()

	cursor, err := b.Record(Outcome(2))
	if !errors.Is(err, ErrInvalidOutcome) {
		t.Fatalf("err = %v, want ErrInvalidOutcome", err)
	}
	if cursor != 1 || b.Cursor() != 1 || b.Written() != 1 {
		t.Errorf("cursor=%d written=%d after rejected write", b.Cursor(), b.Written())
	}
	if !reflect.DeepEqual(before, b.Slots()) {
		t.Errorf("slots changed: %v -> %v", before, b.Slots())
	}
}

func TestReset(t *testing.T) {
	b := mustNew(t, 3)
	b.Record(Hit)
	b.Record(Hit)
	b.Reset()

	if b.Cursor() != 0 || b.Written() != 0 || b.Capacity() != 3 {
		t.Fatalf("cursor=%d written=%d cap=%d", b.Cursor(), b.Written(), b.Capacity())
	}
	if want := []Outcome{Miss, Miss, Miss}; !reflect.DeepEqual(b.Slots(), want) {
		t.Errorf("slots = %v", b.Slots())
	}
}

func TestSlots_IsCopy(t *testing.T) {
	b := mustNew(t, 2)
	s := b.Slots()
	s[0] = Hit
	if b.Slots()[0] != Miss {
		t.Error("mutating Slots() result changed the buffer")
	}
}

func TestHitRate(t *testing.T) {
	b := mustNew(t, 4)
	if b.HitRate() != 0 {
		t.Errorf("empty hit rate = %v", b.HitRate())
	}
	b.Record(Hit)
	b.Record(Miss)
	if got := b.HitRate(); got != 0.5 {
		t.Errorf("hit rate = %v, want 0.5", got)
	}
	for range 4 {
		b.Record(Hit)
	}
	if got := b.HitRate(); got != 1 {
		t.Errorf("hit rate after wrap = %v, want 1", got)
	}
}

func TestPair_SharedCursor(t *testing.T) {
	p, err := NewPair(3)
	if err != nil {
		t.Fatal(err)
	}
	for _, actual := range []Outcome{Hit, Miss, Hit, Hit} {
		if _, err := p.Record(Hit, actual); err != nil {
			t.Fatal(err)
		}
	}
	snap := p.Snapshot()
	if snap.Cursor != 1 || p.Cursor() != 1 {
		t.Errorf("cursor = %d, want 1", snap.Cursor)
	}
	if want := []Outcome{Hit, Hit, Hit}; !reflect.DeepEqual(snap.Predicted, want) {
		t.Errorf("predicted = %v", snap.Predicted)
	}
	if want := []Outcome{Hit, Miss, Hit}; !reflect.DeepEqual(snap.Actual, want) {
		t.Errorf("actual = %v", snap.Actual)
	}
	if snap.Filled() != 3 || snap.Written != 4 {
		t.Errorf("filled=%d written=%d", snap.Filled(), snap.Written)
	}
	if got, want := snap.HitRate(), p.HitRate(); got != want || got != 2.0/3.0 {
		t.Errorf("snapshot hit rate = %v, pair = %v", got, want)
	}
}

func TestPair_RejectsWithoutPartialWrite(t *testing.T) {
	p, err := NewPair(2)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Record(Hit, Outcome(9)); !errors.Is(err, ErrInvalidOutcome) {
		t.Fatalf("err = %v", err)
	}
	snap := p.Snapshot()
	if snap.Cursor != 0 || snap.Predicted[0] != Miss {
		t.Errorf("partial write: %+v", snap)
	}
}

func TestNewPair_InvalidCapacity(t *testing.T) {
	if _, err := NewPair(0); !errors.Is(err, ErrInvalidCapacity) {
		t.Errorf("err = %v", err)
	}
}
