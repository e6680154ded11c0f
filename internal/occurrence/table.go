package occurrence

import (
	"github.com/pkg/errors"
)

// #region filter

// FilterByProfile returns the records tracked under profile, in input order.
func FilterByProfile(records []Record, profile Profile) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Profile == profile {
			out = append(out, r)
		}
	}
	return out
}

// #endregion filter

// #region increment

// Increment bumps the occurrences of the (application, profile) record by one.
// The input slice is never modified: on a hit a copy is returned with true,
// otherwise the input itself is returned with false.
func Increment(records []Record, application string, profile Profile) ([]Record, bool) {
	idx := indexOf(records, application, profile)
	if idx < 0 {
		return records, false
	}
	out := make([]Record, len(records))
	copy(out, records)
	out[idx].Occurrences++
	return out, true
}

// Insert appends rec unless its (application, profile) pair already exists.
func Insert(records []Record, rec Record) ([]Record, bool) {
	if indexOf(records, rec.Application, rec.Profile) >= 0 {
		return records, false
	}
	out := make([]Record, len(records), len(records)+1)
	copy(out, records)
	return append(out, rec), true
}

func indexOf(records []Record, application string, profile Profile) int {
	for i, r := range records {
		if r.Application == application && r.Profile == profile {
			return i
		}
	}
	return -1
}

// #endregion increment

// #region lookup

// CategoryOf finds the category an application is filed under, looking first
// at the table and then at the default catalog.
func CategoryOf(records []Record, application string) (Category, bool) {
	for _, r := range records {
		if r.Application == application {
			return r.Category, true
		}
	}
	for _, e := range defaultCatalog {
		if e.application == application {
			return e.category, true
		}
	}
	return 0, false
}

// Applications lists the distinct applications of records in first-seen order.
func Applications(records []Record) []string {
	seen := make(map[string]struct{}, len(records))
	var apps []string
	for _, r := range records {
		if _, ok := seen[r.Application]; ok {
			continue
		}
		seen[r.Application] = struct{}{}
		apps = append(apps, r.Application)
	}
	return apps
}

// #endregion lookup

// #region validate

// Validate enforces one record per (application, profile) and non-negative counts.
func Validate(records []Record) error {
	type key struct {
		app     string
		profile Profile
	}
	seen := make(map[key]int, len(records))
	for i, r := range records {
		if r.Occurrences < 0 {
			return errors.Wrapf(ErrNegativeOccurrences, "row %d (%s, %s): %d", i, r.Application, r.Profile, r.Occurrences)
		}
		k := key{r.Application, r.Profile}
		if prev, ok := seen[k]; ok {
			return errors.Wrapf(ErrDuplicateRecord, "rows %d and %d (%s, %s)", prev, i, r.Application, r.Profile)
		}
		seen[k] = i
	}
	return nil
}

// #endregion validate

// #region default-table

type catalogEntry struct {
	category    Category
	application string
}

var defaultCatalog = []catalogEntry{
	{WebBrowser, "Google Chrome"},
	{WebBrowser, "Mozilla Firefox"},
	{WebBrowser, "Microsoft Edge"},
	{OfficeSuite, "Microsoft Word"},
	{OfficeSuite, "Microsoft Excel"},
	{OfficeSuite, "Microsoft PowerPoint"},
	{MediaPlayer, "VLC Media Player"},
	{MediaPlayer, "Windows Media Player"},
	{EmailClient, "Microsoft Outlook"},
	{EmailClient, "Mozilla Thunderbird"},
}

// DefaultTable returns the seed catalog for every profile at zero occurrences.
func DefaultTable() []Record {
	out := make([]Record, 0, len(defaultCatalog)*len(profileLabels))
	for _, p := range Profiles() {
		for _, e := range defaultCatalog {
			out = append(out, Record{
				Category:    e.category,
				Application: e.application,
				Profile:     p,
			})
		}
	}
	return out
}

// #endregion default-table
