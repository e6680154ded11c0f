package predictor

import (
	"sort"

	"github.com/danielpatrickdp/launch-predictor/internal/occurrence"
)

// #region types

// Prediction is the top-ranked application for a record set.
// OK is false when there was nothing to predict from.
type Prediction struct {
	Application string  `json:"application"`
	Confidence  float64 `json:"confidence"`
	OK          bool    `json:"ok"`
}

// Ranked is one label with its occurrence-weighted score.
type Ranked struct {
	Application string
	Score       float64
}

// #endregion types

// #region proba

// PredictProba returns the leaf class distribution for r keyed by application.
func (m *Model) PredictProba(r occurrence.Record) map[string]float64 {
	proba := m.proba(r)
	if proba == nil {
		return nil
	}
	out := make(map[string]float64, len(proba))
	for i, p := range proba {
		out[m.classes[i]] = p
	}
	return out
}

func (m *Model) proba(r occurrence.Record) []float64 {
	if m.Empty() {
		return nil
	}
	x := EncodeRecord(r)
	n := m.root
	for !n.leaf() {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	out := make([]float64, len(n.counts))
	for i, c := range n.counts {
		out[i] = c / float64(n.samples)
	}
	return out
}

// Predict returns the most probable label for r; ties go to the smaller label.
func (m *Model) Predict(r occurrence.Record) string {
	proba := m.proba(r)
	best := -1
	for i, p := range proba {
		if best < 0 || p > proba[best] {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return m.classes[best]
}

// #endregion proba

// #region rank

// Rank runs the model over records (normally the rows it was trained on) and
// sums each row's class distribution weighted by occurrences+1. Labels are
// ordered by score, then alphabetically.
func (m *Model) Rank(records []occurrence.Record) []Ranked {
	if m.Empty() || len(records) == 0 {
		return nil
	}
	scores := make([]float64, len(m.classes))
	for _, r := range records {
		w := float64(r.Occurrences) + 1
		for i, p := range m.proba(r) {
			scores[i] += p * w
		}
	}

	ranked := make([]Ranked, len(m.classes))
	for i, c := range m.classes {
		ranked[i] = Ranked{Application: c, Score: scores[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Application < ranked[j].Application
	})
	return ranked
}

// PredictTop returns the first-ranked application. An empty model or record
// set yields a Prediction with OK=false.
func PredictTop(m *Model, records []occurrence.Record) Prediction {
	ranked := m.Rank(records)
	if len(ranked) == 0 {
		return Prediction{}
	}
	var total float64
	for _, r := range ranked {
		total += r.Score
	}
	conf := 0.0
	if total > 0 {
		conf = ranked[0].Score / total
	}
	return Prediction{
		Application: ranked[0].Application,
		Confidence:  conf,
		OK:          true,
	}
}

// #endregion rank
