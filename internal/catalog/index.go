package catalog

import "strings"

// matchKey is the exact-match key for catalog lookups.
type matchKey struct {
	crc  string
	size int64
}

// Index is an immutable in-memory view of one system's catalog, built once
// when a scan starts. Workers read it concurrently without locking.
type Index struct {
	entries []*Entry
	byKey   map[matchKey]*Entry
}

// NewIndex builds an Index from a system's entries. When two entries collide
// on (crc, size), the first inserted wins; the collision is tolerated, not an
// error.
func NewIndex(entries []*Entry) *Index {
	idx := &Index{
		entries: entries,
		byKey:   make(map[matchKey]*Entry, len(entries)),
	}
	for _, e := range entries {
		key := matchKey{crc: strings.ToLower(e.CRC32), size: e.Size}
		if _, exists := idx.byKey[key]; !exists {
			idx.byKey[key] = e
		}
	}
	return idx
}

// Len returns the number of catalog entries in the index.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Entries returns all entries in insertion order. Callers must not mutate
// the returned slice.
func (idx *Index) Entries() []*Entry {
	return idx.entries
}

// Lookup returns the entry matching the checksum and size exactly, or nil.
func (idx *Index) Lookup(crc string, size int64) *Entry {
	return idx.byKey[matchKey{crc: strings.ToLower(crc), size: size}]
}

// SearchNames returns up to limit entries whose expected file name or
// canonical title contains the given stem, case-insensitively. It is the
// candidate pre-filter for fuzzy matching; ranking is the caller's job.
func (idx *Index) SearchNames(stem string, limit int) []*Entry {
	needle := strings.ToLower(strings.TrimSpace(stem))
	if needle == "" || limit <= 0 {
		return nil
	}

	var hits []*Entry
	for _, e := range idx.entries {
		if strings.Contains(strings.ToLower(e.ExpectedFileName), needle) ||
			strings.Contains(strings.ToLower(e.CanonicalTitle), needle) {
			hits = append(hits, e)
			if len(hits) == limit {
				break
			}
		}
	}
	return hits
}
