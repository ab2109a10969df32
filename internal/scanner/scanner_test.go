package scanner_test

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"romplestiltskin/internal/catalog"
	"romplestiltskin/internal/scanner"
	"romplestiltskin/internal/testutil"
	"romplestiltskin/internal/verify"
)

var (
	marioContent = []byte("mario rom content")
	kirbyContent = []byte("kirby rom content")
)

func testIndex(t *testing.T) *catalog.Index {
	t.Helper()
	return catalog.NewIndex([]*catalog.Entry{
		{
			ID:               1,
			ReleaseName:      "Super Mario Bros. (USA)",
			ExpectedFileName: "Super Mario Bros. (USA).nes",
			CanonicalTitle:   "Super Mario Bros.",
			CRC32:            testutil.CRC32Hex(marioContent),
			Size:             int64(len(marioContent)),
		},
		{
			ID:               2,
			ReleaseName:      "Kirby's Adventure (USA)",
			ExpectedFileName: "Kirby's Adventure (USA).nes",
			CanonicalTitle:   "Kirby's Adventure",
			CRC32:            testutil.CRC32Hex(kirbyContent),
			Size:             int64(len(kirbyContent)),
		},
	})
}

func resultFor(t *testing.T, results []verify.ScanResult, baseName string) verify.ScanResult {
	t.Helper()
	for _, r := range results {
		if filepath.Base(r.FilePath) == baseName {
			return r
		}
	}
	t.Fatalf("no result for %s in %v", baseName, results)
	return verify.ScanResult{}
}

func TestScanner_Scan(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "Super Mario Bros. (USA).nes", marioContent)
	testutil.WriteFile(t, dir, "kirby renamed.nes", kirbyContent)
	testutil.WriteFile(t, dir, "Super Mario Bros.nes", []byte("corrupted dump!!"))
	testutil.WriteFile(t, dir, "mystery.rom", []byte("nothing like the catalog"))
	testutil.WriteFile(t, dir, "notes.txt", []byte("not a rom"))
	if err := os.MkdirAll(filepath.Join(dir, "_broken"), 0755); err != nil {
		t.Fatal(err)
	}
	testutil.WriteFile(t, filepath.Join(dir, "_broken"), "old.nes", marioContent)

	s := scanner.New(nil, scanner.DefaultPolicy())
	results, err := s.Scan(context.Background(), dir, 1, testIndex(t), nil)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	// notes.txt and everything under _broken/ are out of scope.
	if len(results) != 4 {
		t.Fatalf("len(results) = %d, want 4: %v", len(results), results)
	}

	t.Run("exact match with expected name is correct", func(t *testing.T) {
		r := resultFor(t, results, "Super Mario Bros. (USA).nes")
		if r.Status != verify.StatusCorrect {
			t.Errorf("Status = %v, want correct", r.Status)
		}
		if r.Matched == nil || r.Matched.ID != 1 {
			t.Errorf("Matched = %v, want entry 1", r.Matched)
		}
		if r.SimilarityScore != 1.0 {
			t.Errorf("SimilarityScore = %v, want 1.0", r.SimilarityScore)
		}
	})

	t.Run("exact match with renamed file is wrong_filename", func(t *testing.T) {
		r := resultFor(t, results, "kirby renamed.nes")
		if r.Status != verify.StatusWrongFilename {
			t.Errorf("Status = %v, want wrong_filename", r.Status)
		}
		if r.Matched == nil || r.Matched.ID != 2 {
			t.Errorf("Matched = %v, want entry 2", r.Matched)
		}
	})

	t.Run("similar name with unknown checksum is broken", func(t *testing.T) {
		r := resultFor(t, results, "Super Mario Bros.nes")
		if r.Status != verify.StatusBroken {
			t.Errorf("Status = %v, want broken", r.Status)
		}
		if r.Matched == nil || r.Matched.ID != 1 {
			t.Errorf("Matched = %v, want entry 1", r.Matched)
		}
		if r.SimilarityScore < 0.7 {
			t.Errorf("SimilarityScore = %v, want >= 0.7", r.SimilarityScore)
		}
	})

	t.Run("unknown checksum and name is not_recognized", func(t *testing.T) {
		r := resultFor(t, results, "mystery.rom")
		if r.Status != verify.StatusNotRecognized {
			t.Errorf("Status = %v, want not_recognized", r.Status)
		}
		if r.Matched != nil {
			t.Errorf("Matched = %v, want nil", r.Matched)
		}
	})
}

func TestScanner_Scan_CaseInsensitiveNameCheck(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "SUPER MARIO BROS. (USA).NES", marioContent)

	s := scanner.New(nil, scanner.DefaultPolicy())
	results, err := s.Scan(context.Background(), dir, 1, testIndex(t), nil)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].Status != verify.StatusCorrect {
		t.Errorf("Status = %v, want correct for case-only name difference", results[0].Status)
	}
}

func TestScanner_Scan_UnreadableArchiveIsBroken(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "damaged.zip", []byte("not really a zip"))

	s := scanner.New(nil, scanner.DefaultPolicy())
	results, err := s.Scan(context.Background(), dir, 1, testIndex(t), nil)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	r := results[0]
	if r.Status != verify.StatusBroken {
		t.Errorf("Status = %v, want broken", r.Status)
	}
	if r.ErrorMessage == "" {
		t.Error("expected an error message on unreadable file")
	}
}

func TestScanner_Scan_ZipPayloadMatches(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteZip(t, dir, "mario.zip", map[string][]byte{
		"Super Mario Bros. (USA).nes": marioContent,
	})

	s := scanner.New(nil, scanner.DefaultPolicy())
	results, err := s.Scan(context.Background(), dir, 1, testIndex(t), nil)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	r := results[0]
	if r.Status != verify.StatusCorrect {
		t.Errorf("Status = %v, want correct for matching archived payload", r.Status)
	}
	if r.FileSize != int64(len(marioContent)) {
		t.Errorf("FileSize = %d, want payload size %d", r.FileSize, len(marioContent))
	}
}

func TestScanner_Scan_EmptyDirectory(t *testing.T) {
	s := scanner.New(nil, scanner.DefaultPolicy())
	results, err := s.Scan(context.Background(), t.TempDir(), 1, testIndex(t), nil)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("len(results) = %d, want 0", len(results))
	}
}

func TestScanner_Scan_MissingDirectory(t *testing.T) {
	s := scanner.New(nil, scanner.DefaultPolicy())
	_, err := s.Scan(context.Background(), filepath.Join(t.TempDir(), "nope"), 1, testIndex(t), nil)
	if err == nil {
		t.Fatal("Scan() expected error for missing directory")
	}
}

func TestScanner_Scan_ReportsProgress(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "a.nes", marioContent)
	testutil.WriteFile(t, dir, "b.nes", kirbyContent)
	testutil.WriteFile(t, dir, "c.nes", []byte("junk"))

	var last, total int
	s := scanner.New(nil, scanner.DefaultPolicy())
	_, err := s.Scan(context.Background(), dir, 1, testIndex(t), func(completed, totalFiles int) {
		last = completed
		total = totalFiles
	})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if last != 3 || total != 3 {
		t.Errorf("final progress = (%d, %d), want (3, 3)", last, total)
	}
}

func TestScanner_SimilarityThresholdBoundary(t *testing.T) {
	policy := scanner.Policy{Workers: 1, SimilarityThreshold: 0.7, TopCandidates: 5}

	t.Run("score at the threshold classifies broken", func(t *testing.T) {
		dir := t.TempDir()
		testutil.WriteFile(t, dir, "Battlet.nes", []byte("corrupted dump!!"))

		idx := catalog.NewIndex([]*catalog.Entry{{
			ID:               1,
			ReleaseName:      "Battletoad (USA)",
			ExpectedFileName: "Battletoad (USA).nes",
			CanonicalTitle:   "Battletoad",
			CRC32:            testutil.CRC32Hex(marioContent),
			Size:             int64(len(marioContent)),
		}})

		s := scanner.New(nil, policy)
		results, err := s.Scan(context.Background(), dir, 1, idx, nil)
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("len(results) = %d, want 1", len(results))
		}
		r := results[0]
		// "battlet" vs "battletoad" is 3 edits over 10 runes: exactly 0.7.
		if r.Status != verify.StatusBroken {
			t.Errorf("Status = %v, want broken at the inclusive boundary", r.Status)
		}
		if r.Matched == nil || r.Matched.ID != 1 {
			t.Errorf("Matched = %v, want entry 1", r.Matched)
		}
		if math.Abs(r.SimilarityScore-0.7) > 1e-9 {
			t.Errorf("SimilarityScore = %v, want 0.7", r.SimilarityScore)
		}
	})

	t.Run("score just below the threshold is not recognized", func(t *testing.T) {
		dir := t.TempDir()
		testutil.WriteFile(t, dir, "Battletoa.nes", []byte("corrupted dump!!"))

		idx := catalog.NewIndex([]*catalog.Entry{{
			ID:               1,
			ReleaseName:      "Battletoaders (USA)",
			ExpectedFileName: "Battletoaders (USA).nes",
			CanonicalTitle:   "Battletoaders",
			CRC32:            testutil.CRC32Hex(marioContent),
			Size:             int64(len(marioContent)),
		}})

		s := scanner.New(nil, policy)
		results, err := s.Scan(context.Background(), dir, 1, idx, nil)
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("len(results) = %d, want 1", len(results))
		}
		r := results[0]
		// "battletoa" vs "battletoaders" is 4 edits over 13 runes: 0.6923.
		if r.Status != verify.StatusNotRecognized {
			t.Errorf("Status = %v, want not_recognized below the boundary", r.Status)
		}
		if r.Matched != nil {
			t.Errorf("Matched = %v, want nil", r.Matched)
		}
	})
}

func TestIsAuxiliaryFolder(t *testing.T) {
	for _, name := range []string{"broken", "_broken", "extra", "_extra", "Filtered", "_MULTI"} {
		if !scanner.IsAuxiliaryFolder(name) {
			t.Errorf("IsAuxiliaryFolder(%q) = false, want true", name)
		}
	}
	if scanner.IsAuxiliaryFolder("roms") {
		t.Error("IsAuxiliaryFolder(roms) = true, want false")
	}
}
