// Package scanner walks a ROM directory, fingerprints each candidate file,
// and classifies it against the catalog index.
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"romplestiltskin/internal/catalog"
	"romplestiltskin/internal/checksum"
	"romplestiltskin/internal/verify"
)

// Policy bundles the knobs the scan pipeline needs. Passing it explicitly
// keeps the pipeline free of ambient state.
type Policy struct {
	// Workers is the size of the scan worker pool.
	Workers int
	// SimilarityThreshold is the minimum fuzzy name similarity for a file to
	// classify as broken instead of not recognized. The boundary is
	// inclusive.
	SimilarityThreshold float64
	// TopCandidates bounds the fuzzy name search.
	TopCandidates int
}

// DefaultPolicy returns the standard scan policy.
func DefaultPolicy() Policy {
	return Policy{
		Workers:             4,
		SimilarityThreshold: 0.7,
		TopCandidates:       5,
	}
}

// supportedExtensions are the file types considered ROM candidates.
var supportedExtensions = map[string]struct{}{
	".zip": {}, ".7z": {}, ".rar": {},
	".bin": {}, ".rom": {}, ".img": {},
	".nes": {}, ".smc": {}, ".sfc": {}, ".gb": {}, ".gbc": {}, ".gba": {},
	".md": {}, ".smd": {}, ".gen": {}, ".32x": {},
	".a26": {}, ".a52": {}, ".a78": {},
	".pce": {}, ".tg16": {},
	".ngp": {}, ".ngc": {},
	".ws": {}, ".wsc": {},
	".chd": {}, ".cue": {}, ".iso": {}, ".pbp": {},
	".n64": {}, ".z64": {}, ".v64": {},
	".nds": {}, ".3ds": {},
	".psp": {}, ".cso": {},
}

// auxiliaryFolders hold files a user moved out of the collection (broken
// dumps, extras). The scanner never descends into them; callers that move
// files use IsAuxiliaryFolder to pick destinations the next scan will skip.
var auxiliaryFolders = map[string]struct{}{
	"broken": {}, "_broken": {},
	"extra": {}, "_extra": {},
	"filtered": {}, "_filtered": {},
	"multi": {}, "_multi": {},
}

// IsAuxiliaryFolder reports whether a folder name is excluded from scans.
func IsAuxiliaryFolder(name string) bool {
	_, ok := auxiliaryFolders[strings.ToLower(name)]
	return ok
}

// Scanner classifies the files of one directory against a catalog index.
type Scanner struct {
	engine *checksum.Engine
	policy Policy
}

// New creates a Scanner. engine may be nil for a default-chunked engine.
func New(engine *checksum.Engine, policy Policy) *Scanner {
	if engine == nil {
		engine = &checksum.Engine{}
	}
	if policy.Workers <= 0 {
		policy.Workers = DefaultPolicy().Workers
	}
	if policy.TopCandidates <= 0 {
		policy.TopCandidates = DefaultPolicy().TopCandidates
	}
	if policy.SimilarityThreshold <= 0 {
		policy.SimilarityThreshold = DefaultPolicy().SimilarityThreshold
	}
	return &Scanner{engine: engine, policy: policy}
}

// Scan classifies every supported file directly inside dir. The scan is
// parallel across a bounded worker pool; result ordering is not guaranteed.
// Per-file failures degrade that file's result to broken and never abort
// the scan. progress may be nil.
func (s *Scanner) Scan(ctx context.Context, dir string, systemID int64, index *catalog.Index, progress verify.ScanProgress) ([]verify.ScanResult, error) {
	files, err := s.enumerate(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	paths := make(chan string)
	resultCh := make(chan verify.ScanResult)

	var wg sync.WaitGroup
	for i := 0; i < s.policy.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range paths {
				resultCh <- s.scanFile(path, index)
			}
		}()
	}

	go func() {
		defer close(paths)
		for _, path := range files {
			select {
			case paths <- path:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// Single collector: assembles results and drives the progress callback,
	// so no shared counter is needed.
	results := make([]verify.ScanResult, 0, len(files))
	for result := range resultCh {
		results = append(results, result)
		if progress != nil {
			progress(len(results), len(files))
		}
	}

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// enumerate lists the immediate supported files of dir. Sub-folders are
// never traversed; excluded auxiliary folder names are skipped outright.
func (s *Scanner) enumerate(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			// The scan is non-recursive; auxiliary folders in particular
			// must never be descended into.
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := supportedExtensions[ext]; ok {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// scanFile runs the self-contained per-file pipeline: fingerprint, exact
// match, fuzzy fallback.
func (s *Scanner) scanFile(path string, index *catalog.Index) verify.ScanResult {
	size := int64(0)
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}

	sum, err := s.engine.Compute(path, nil)
	if err != nil {
		return verify.ScanResult{
			FilePath:     path,
			FileSize:     size,
			Status:       verify.StatusBroken,
			ErrorMessage: err.Error(),
		}
	}

	// Exact fingerprint match. The checksum is authoritative: a name
	// mismatch on an exact match is cosmetic, never broken.
	if entry := index.Lookup(sum.CRC32, sum.Size); entry != nil {
		status := verify.StatusWrongFilename
		if strings.EqualFold(sum.PayloadName, entry.ExpectedFileName) {
			status = verify.StatusCorrect
		}
		return verify.ScanResult{
			FilePath:        path,
			FileSize:        sum.Size,
			CRC32:           sum.CRC32,
			Status:          status,
			Matched:         entry,
			SimilarityScore: 1.0,
		}
	}

	// Fuzzy fallback: the content matches nothing, but a similar name means
	// the file is probably a bad dump of that entry.
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	best, score := s.bestFuzzyMatch(stem, index)
	if best != nil && score >= s.policy.SimilarityThreshold {
		return verify.ScanResult{
			FilePath:        path,
			FileSize:        sum.Size,
			CRC32:           sum.CRC32,
			Status:          verify.StatusBroken,
			Matched:         best,
			SimilarityScore: score,
		}
	}

	return verify.ScanResult{
		FilePath:        path,
		FileSize:        sum.Size,
		CRC32:           sum.CRC32,
		Status:          verify.StatusNotRecognized,
		SimilarityScore: score,
	}
}

// bestFuzzyMatch ranks the top name-search candidates by similarity against
// both the expected file name (extension stripped) and the canonical title.
func (s *Scanner) bestFuzzyMatch(stem string, index *catalog.Index) (*catalog.Entry, float64) {
	candidates := index.SearchNames(stem, s.policy.TopCandidates)

	var best *catalog.Entry
	bestScore := 0.0
	for _, entry := range candidates {
		expectedStem := strings.TrimSuffix(entry.ExpectedFileName, filepath.Ext(entry.ExpectedFileName))
		score := Similarity(stem, expectedStem)
		if titleScore := Similarity(stem, entry.CanonicalTitle); titleScore > score {
			score = titleScore
		}
		if score > bestScore {
			bestScore = score
			best = entry
		}
	}
	return best, bestScore
}
