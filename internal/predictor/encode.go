// Package predictor fits a decision tree over a profile's occurrence table and
// ranks the applications it is most likely to see next.
package predictor

import (
	"sort"

	"github.com/danielpatrickdp/launch-predictor/internal/occurrence"
)

// #region dataset

// Dataset is the encoded form of a record set.
type Dataset struct {
	Features []string
	X        [][]float64
	Y        []int
	Classes  []string
	// Weights scale each row's vote when ranking (occurrences + 1).
	Weights []float64
}

// #endregion dataset

// #region encode

// FeatureNames lists the encoded columns: one-hot category, one-hot profile,
// then the occurrence count.
func FeatureNames() []string {
	names := make([]string, 0, len(occurrence.Categories())+len(occurrence.Profiles())+1)
	for _, c := range occurrence.Categories() {
		names = append(names, "category="+c.String())
	}
	for _, p := range occurrence.Profiles() {
		names = append(names, "profile="+p.String())
	}
	return append(names, "occurrences")
}

// EncodeRecord turns one record into its feature row.
func EncodeRecord(r occurrence.Record) []float64 {
	nCat := len(occurrence.Categories())
	row := make([]float64, nCat+len(occurrence.Profiles())+1)
	if int(r.Category) >= 0 && int(r.Category) < nCat {
		row[int(r.Category)] = 1
	}
	if int(r.Profile) >= 0 && int(r.Profile) < len(occurrence.Profiles()) {
		row[nCat+int(r.Profile)] = 1
	}
	row[len(row)-1] = float64(r.Occurrences)
	return row
}

// Encode builds the training set. Classes are the distinct applications in
// ascending order so class indices do not depend on row order.
func Encode(records []occurrence.Record) Dataset {
	classes := occurrence.Applications(records)
	sort.Strings(classes)
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}

	ds := Dataset{
		Features: FeatureNames(),
		X:        make([][]float64, len(records)),
		Y:        make([]int, len(records)),
		Classes:  classes,
		Weights:  make([]float64, len(records)),
	}
	for i, r := range records {
		ds.X[i] = EncodeRecord(r)
		ds.Y[i] = index[r.Application]
		ds.Weights[i] = float64(r.Occurrences) + 1
	}
	return ds
}

// #endregion encode
