package occurrence

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// #region category

// Category is the fixed application category a record belongs to.
type Category int

const (
	WebBrowser Category = iota
	OfficeSuite
	MediaPlayer
	EmailClient
)

var categoryLabels = [...]string{
	WebBrowser:  "WebBrowser",
	OfficeSuite: "OfficeSuite",
	MediaPlayer: "MediaPlayer",
	EmailClient: "EmailClient",
}

var categoryByLabel = map[string]Category{
	"WebBrowser":  WebBrowser,
	"OfficeSuite": OfficeSuite,
	"MediaPlayer": MediaPlayer,
	"EmailClient": EmailClient,
}

// Categories returns the closed category set in declaration order.
func Categories() []Category {
	return []Category{WebBrowser, OfficeSuite, MediaPlayer, EmailClient}
}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryLabels) {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryLabels[c]
}

// ParseCategory maps a label to its Category.
func ParseCategory(label string) (Category, error) {
	c, ok := categoryByLabel[strings.TrimSpace(label)]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownLabel, "category %q", label)
	}
	return c, nil
}

func (c Category) MarshalText() ([]byte, error) {
	if c < 0 || int(c) >= len(categoryLabels) {
		return nil, errors.Wrapf(ErrUnknownLabel, "category %d", int(c))
	}
	return []byte(categoryLabels[c]), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// #endregion category

// #region profile

// Profile identifies the user profile a record is tracked under.
type Profile int

const (
	Admin Profile = iota
	Guest
	User1
	User2
)

var profileLabels = [...]string{
	Admin: "Admin",
	Guest: "Guest",
	User1: "User1",
	User2: "User2",
}

var profileByLabel = map[string]Profile{
	"Admin": Admin,
	"Guest": Guest,
	"User1": User1,
	"User2": User2,
}

// Profiles returns the closed profile set in declaration order.
func Profiles() []Profile {
	return []Profile{Admin, Guest, User1, User2}
}

func (p Profile) String() string {
	if p < 0 || int(p) >= len(profileLabels) {
		return fmt.Sprintf("Profile(%d)", int(p))
	}
	return profileLabels[p]
}

// ParseProfile maps a label to its Profile.
func ParseProfile(label string) (Profile, error) {
	p, ok := profileByLabel[strings.TrimSpace(label)]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownLabel, "profile %q", label)
	}
	return p, nil
}

func (p Profile) MarshalText() ([]byte, error) {
	if p < 0 || int(p) >= len(profileLabels) {
		return nil, errors.Wrapf(ErrUnknownLabel, "profile %d", int(p))
	}
	return []byte(profileLabels[p]), nil
}

func (p *Profile) UnmarshalText(b []byte) error {
	parsed, err := ParseProfile(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// #endregion profile

// #region record

// Record is one row of the occurrence table.
type Record struct {
	Category    Category `json:"category"`
	Application string   `json:"application"`
	Occurrences int      `json:"occurrences"`
	Profile     Profile  `json:"profile"`
}

// Header is the persisted column order.
var Header = []string{"Category", "Application", "Occurrences", "Profile"}

// #endregion record

// #region errors

var (
	ErrStorageUnavailable  = errors.New("storage unavailable")
	ErrStorageWrite        = errors.New("storage write failed")
	ErrUnknownLabel        = errors.New("unknown label")
	ErrDuplicateRecord     = errors.New("duplicate (application, profile) record")
	ErrNegativeOccurrences = errors.New("negative occurrences")
	ErrOccurrencesRange    = errors.New("occurrences out of range")
)

// StorageError carries the failing operation, the backing resource and the
// error class (ErrStorageUnavailable or ErrStorageWrite).
type StorageError struct {
	Op       string
	Resource string
	Kind     error
	Err      error
}

func (e *StorageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Resource, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Resource, e.Kind, e.Err)
}

func (e *StorageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func unavailable(op, resource string, err error) error {
	return errors.WithStack(&StorageError{Op: op, Resource: resource, Kind: ErrStorageUnavailable, Err: err})
}

func writeFailed(op, resource string, err error) error {
	return errors.WithStack(&StorageError{Op: op, Resource: resource, Kind: ErrStorageWrite, Err: err})
}

// #endregion errors
