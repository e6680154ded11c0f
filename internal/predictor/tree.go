package predictor

import (
	"math/rand"
	"sort"

	"github.com/danielpatrickdp/launch-predictor/internal/occurrence"
)

// #region options

// Options controls tree fitting.
type Options struct {
	Seed            int64 // permutes feature order; equal-gain splits resolve by it
	MaxDepth        int   // 0 = unlimited
	MinSamplesSplit int   // nodes with fewer rows become leaves (default 2)
}

// DefaultOptions returns the fitting defaults.
func DefaultOptions() Options {
	return Options{
		Seed:            42,
		MaxDepth:        0,
		MinSamplesSplit: 2,
	}
}

// #endregion options

// #region model

type node struct {
	feature   int
	threshold float64
	left      *node // feature <= threshold
	right     *node
	counts    []float64
	samples   int
}

func (n *node) leaf() bool { return n.left == nil }

// Model is a fitted decision tree. It is never mutated after Train returns.
type Model struct {
	root     *node
	classes  []string
	features []string
	opts     Options
}

// Classes returns the labels the model can predict, ascending.
func (m *Model) Classes() []string {
	return append([]string(nil), m.classes...)
}

// Empty reports whether the model was trained on no rows.
func (m *Model) Empty() bool { return m == nil || m.root == nil }

// Degenerate reports a model that cannot discriminate: one class or no usable split.
func (m *Model) Degenerate() bool {
	return m.Empty() || len(m.classes) <= 1 || m.root.leaf()
}

// Depth returns the longest root-to-leaf path (a lone leaf has depth 0).
func (m *Model) Depth() int {
	if m.Empty() {
		return 0
	}
	var walk func(n *node) int
	walk = func(n *node) int {
		if n.leaf() {
			return 0
		}
		return 1 + max(walk(n.left), walk(n.right))
	}
	return walk(m.root)
}

// Leaves counts leaf nodes.
func (m *Model) Leaves() int {
	if m.Empty() {
		return 0
	}
	var walk func(n *node) int
	walk = func(n *node) int {
		if n.leaf() {
			return 1
		}
		return walk(n.left) + walk(n.right)
	}
	return walk(m.root)
}

// #endregion model

// #region train

// Train fits a CART tree with Gini impurity on the encoded records.
// Records with a single label give a one-leaf model rather than an error.
func Train(records []occurrence.Record, opts Options) (*Model, error) {
	if opts.MinSamplesSplit < 2 {
		opts.MinSamplesSplit = 2
	}
	ds := Encode(records)
	m := &Model{classes: ds.Classes, features: ds.Features, opts: opts}
	if len(records) == 0 {
		return m, nil
	}

	b := &builder{
		ds:    ds,
		opts:  opts,
		order: rand.New(rand.NewSource(opts.Seed)).Perm(len(ds.Features)),
	}
	idx := make([]int, len(records))
	for i := range idx {
		idx[i] = i
	}
	m.root = b.grow(idx, 0)
	return m, nil
}

type builder struct {
	ds    Dataset
	opts  Options
	order []int
}

func (b *builder) grow(idx []int, depth int) *node {
	n := &node{counts: b.counts(idx), samples: len(idx)}
	if len(idx) < b.opts.MinSamplesSplit || gini(n.counts, len(idx)) == 0 {
		return n
	}
	if b.opts.MaxDepth > 0 && depth >= b.opts.MaxDepth {
		return n
	}

	feature, threshold, ok := b.bestSplit(idx, n.counts)
	if !ok {
		return n
	}
	var left, right []int
	for _, i := range idx {
		if b.ds.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	n.feature = feature
	n.threshold = threshold
	n.left = b.grow(left, depth+1)
	n.right = b.grow(right, depth+1)
	return n
}

// bestSplit scans features in seeded order and keeps the first split with
// the strictly largest impurity decrease.
func (b *builder) bestSplit(idx []int, parent []float64) (int, float64, bool) {
	total := float64(len(idx))
	parentGini := gini(parent, len(idx))

	bestGain := 0.0
	bestFeature, bestThreshold := -1, 0.0

	for _, f := range b.order {
		values := make([]float64, 0, len(idx))
		for _, i := range idx {
			values = append(values, b.ds.X[i][f])
		}
		sort.Float64s(values)

		for v := 1; v < len(values); v++ {
			if values[v] == values[v-1] {
				continue
			}
			threshold := (values[v] + values[v-1]) / 2

			left := make([]float64, len(b.ds.Classes))
			right := make([]float64, len(b.ds.Classes))
			nl, nr := 0, 0
			for _, i := range idx {
				if b.ds.X[i][f] <= threshold {
					left[b.ds.Y[i]]++
					nl++
				} else {
					right[b.ds.Y[i]]++
					nr++
				}
			}
			weighted := float64(nl)/total*gini(left, nl) + float64(nr)/total*gini(right, nr)
			if gain := parentGini - weighted; gain > bestGain+1e-12 {
				bestGain = gain
				bestFeature = f
				bestThreshold = threshold
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func (b *builder) counts(idx []int) []float64 {
	c := make([]float64, len(b.ds.Classes))
	for _, i := range idx {
		c[b.ds.Y[i]]++
	}
	return c
}

func gini(counts []float64, n int) float64 {
	if n == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := c / float64(n)
		g -= p * p
	}
	return g
}

// #endregion train
