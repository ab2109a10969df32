package verify

import "strings"

// Status classifies a scanned file (or a synthetic catalog placeholder)
// relative to the catalog for its system.
type Status string

const (
	// StatusCorrect: file present, checksum+size match the catalog, name matches.
	StatusCorrect Status = "correct"
	// StatusWrongFilename: checksum+size match but the on-disk name differs.
	StatusWrongFilename Status = "wrong_filename"
	// StatusBroken: unreadable, or the name resembles a catalog entry whose
	// checksum the file does not have.
	StatusBroken Status = "broken"
	// StatusNotRecognized: no exact match and no sufficiently similar name.
	StatusNotRecognized Status = "not_recognized"
	// StatusMissing: catalog entry with no local file. Derived, never produced
	// by the per-file scan pipeline.
	StatusMissing Status = "missing"
	// StatusDuplicate: same checksum observed more than once. Derived.
	StatusDuplicate Status = "duplicate"
	// StatusIgnored: user override suppressing the record from normal reporting.
	StatusIgnored Status = "ignored"
	// StatusMovedExtra: unrecognized file the user relocated to an extras folder.
	StatusMovedExtra Status = "moved_extra"
	// StatusMovedBroken: broken file the user relocated to a broken folder.
	StatusMovedBroken Status = "moved_broken"
)

var allStatuses = []Status{
	StatusCorrect,
	StatusWrongFilename,
	StatusBroken,
	StatusNotRecognized,
	StatusMissing,
	StatusDuplicate,
	StatusIgnored,
	StatusMovedExtra,
	StatusMovedBroken,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// derivedStatuses are reporting states computed from cross-file or
// cross-catalog queries rather than assigned by the per-file pipeline.
var derivedStatuses = map[Status]struct{}{
	StatusMissing:   {},
	StatusDuplicate: {},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsDerived reports whether a status is produced by reporting queries
// instead of the scan pipeline.
func (s Status) IsDerived() bool {
	_, ok := derivedStatuses[s]
	return ok
}

// IsOverride reports whether a status represents a user-driven override that
// a fresh scan must preserve instead of replacing.
func (s Status) IsOverride() bool {
	return s == StatusIgnored
}

// Matched reports whether a status means the file's content was positively
// identified as a catalog entry.
func (s Status) Matched() bool {
	return s == StatusCorrect || s == StatusWrongFilename
}
