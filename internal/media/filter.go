// Package media decides which attached files are worth relaying.
package media

import "strings"

const (
	// MIMEPrefix is matched case-sensitively, as Telegram reports it.
	MIMEPrefix = "audio/"
	// MinDuration is in seconds; eligible files must be strictly longer.
	MinDuration = 3600
)

// FileInfo is the subset of attached-file metadata the filter looks at.
type FileInfo struct {
	MIMEType string
	// Duration in seconds; nil when the file carries no duration attribute.
	Duration *float64
}

// Seconds is a convenience constructor for FileInfo.Duration.
func Seconds(v float64) *float64 { return &v }

// Filter is the eligibility predicate. The zero value accepts any typed file
// with a positive duration; use Default for the relay's criteria.
type Filter struct {
	MIMEPrefix  string
	MinDuration float64
}

// Default returns the filter built from the package constants.
func Default() Filter {
	return Filter{MIMEPrefix: MIMEPrefix, MinDuration: MinDuration}
}

// Eligible reports whether f should be forwarded: it must exist, carry a
// MIME type starting with the prefix and a duration above the threshold.
func (flt Filter) Eligible(f *FileInfo) bool {
	if f == nil || f.MIMEType == "" || f.Duration == nil {
		return false
	}
	if !strings.HasPrefix(f.MIMEType, flt.MIMEPrefix) {
		return false
	}
	return *f.Duration > flt.MinDuration
}

// IsEligible applies the default filter.
func IsEligible(f *FileInfo) bool { return Default().Eligible(f) }
