package history

// #region pair

// Pair holds the predicted and actual rings. Both always sit at the same cursor.
type Pair struct {
	predicted *Buffer
	actual    *Buffer
}

// NewPair returns two zeroed rings of the given capacity.
func NewPair(capacity int) (*Pair, error) {
	p, err := New(capacity)
	if err != nil {
		return nil, err
	}
	a, err := New(capacity)
	if err != nil {
		return nil, err
	}
	return &Pair{predicted: p, actual: a}, nil
}

// Record writes both outcomes into the same slot. The session passes Hit for
// predicted on every cycle, so the predicted ring is all 1s once written.
// Nothing is written unless both outcomes are valid.
func (p *Pair) Record(predicted, actual Outcome) (int, error) {
	if !predicted.valid() {
		return p.actual.cursor, ErrInvalidOutcome
	}
	if !actual.valid() {
		return p.actual.cursor, ErrInvalidOutcome
	}
	if _, err := p.predicted.Record(predicted); err != nil {
		return p.actual.cursor, err
	}
	return p.actual.Record(actual)
}

func (p *Pair) Reset() {
	p.predicted.Reset()
	p.actual.Reset()
}

func (p *Pair) Cursor() int   { return p.actual.Cursor() }
func (p *Pair) Capacity() int { return p.actual.Capacity() }
func (p *Pair) Written() int  { return p.actual.Written() }

// HitRate reports the actual ring's hit rate.
func (p *Pair) HitRate() float64 { return p.actual.HitRate() }

// Snapshot copies both rings.
func (p *Pair) Snapshot() Snapshot {
	return Snapshot{
		Predicted: p.predicted.Slots(),
		Actual:    p.actual.Slots(),
		Cursor:    p.actual.Cursor(),
		Written:   p.actual.Written(),
	}
}

// #endregion pair

// #region snapshot

// Snapshot is a point-in-time copy of a Pair.
type Snapshot struct {
	Predicted []Outcome `json:"predicted"`
	Actual    []Outcome `json:"actual"`
	Cursor    int       `json:"cursor"`
	Written   int       `json:"written"`
}

// Filled is the number of slots holding a recorded outcome.
func (s Snapshot) Filled() int { return min(s.Written, len(s.Actual)) }

// HitRate is the actual ring's hit rate at the time of the copy.
func (s Snapshot) HitRate() float64 { return hitRate(s.Actual, s.Filled()) }

// #endregion snapshot
