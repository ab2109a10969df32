package scanner

import (
	"romplestiltskin/internal/verify"
)

// Summarize counts scan results per status. It is a read-only fold over a
// result set, not part of the per-file pipeline.
func Summarize(results []verify.ScanResult) verify.Summary {
	summary := verify.Summary{
		Total:  len(results),
		Counts: make(map[verify.Status]int),
	}
	for _, r := range results {
		summary.Counts[r.Status]++
	}
	return summary
}

// FindDuplicates groups results sharing a checksum, returning only groups
// with more than one file. Broken files are excluded; ignored and moved
// files still count toward duplicate groups.
func FindDuplicates(results []verify.ScanResult) [][]verify.ScanResult {
	groups := make(map[string][]verify.ScanResult)
	var order []string
	for _, r := range results {
		if r.CRC32 == "" || r.Status == verify.StatusBroken {
			continue
		}
		if _, seen := groups[r.CRC32]; !seen {
			order = append(order, r.CRC32)
		}
		groups[r.CRC32] = append(groups[r.CRC32], r)
	}

	var duplicates [][]verify.ScanResult
	for _, crc := range order {
		if group := groups[crc]; len(group) > 1 {
			duplicates = append(duplicates, group)
		}
	}
	return duplicates
}
