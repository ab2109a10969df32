package verify_test

import (
	"context"
	"strings"
	"testing"

	"romplestiltskin/internal/catalog"
	"romplestiltskin/internal/testutil"
	"romplestiltskin/internal/verify"
)

const nesDatafile = `<?xml version="1.0"?>
<datafile>
  <header><name>nes</name></header>
  <game name="Super Mario Bros. (USA)">
    <rom name="Super Mario Bros. (USA).nes" crc="d445f698" size="40976"/>
  </game>
  <game name="Kirby's Adventure (USA)">
    <rom name="Kirby's Adventure (USA).nes" crc="5ed6f221" size="786448"/>
  </game>
  <game name="Metroid (USA)">
    <rom name="Metroid (USA).nes" crc="70080810" size="131088"/>
  </game>
</datafile>`

// fakeRunner returns canned scan results and records the directory it was
// asked to scan.
type fakeRunner struct {
	results []verify.ScanResult
	err     error
	lastDir string
}

func (f *fakeRunner) Scan(_ context.Context, dir string, _ int64, index *catalog.Index, _ verify.ScanProgress) ([]verify.ScanResult, error) {
	f.lastDir = dir
	if f.err != nil {
		return nil, f.err
	}
	// Resolve Matched pointers against the live index, the way the real
	// scanner would.
	resolved := make([]verify.ScanResult, len(f.results))
	for i, r := range f.results {
		if r.Matched != nil {
			r.Matched = index.Lookup(r.Matched.CRC32, r.Matched.Size)
		}
		resolved[i] = r
	}
	return resolved, nil
}

func newTestService(t *testing.T, runner verify.ScanRunner) (*verify.Service, verify.Store) {
	t.Helper()
	st := testutil.NewTestStore(t)
	svc := verify.NewService(st, catalog.NewParser(nil), runner, verify.NewNopLogger(), testutil.FixedClock())
	return svc, st
}

func importNES(t *testing.T, svc *verify.Service) {
	t.Helper()
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "nes.dat", []byte(nesDatafile))
	if _, err := svc.ImportCatalogFile(context.Background(), path); err != nil {
		t.Fatalf("ImportCatalogFile() error = %v", err)
	}
}

func TestService_ImportCatalogFile(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, &fakeRunner{})

	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "nes.dat", []byte(nesDatafile))

	result, err := svc.ImportCatalogFile(ctx, path)
	if err != nil {
		t.Fatalf("ImportCatalogFile() error = %v", err)
	}
	if result.SystemName != "nes" {
		t.Errorf("SystemName = %q, want nes", result.SystemName)
	}
	if result.Entries != 3 || result.Skipped != 0 {
		t.Errorf("Entries = %d, Skipped = %d, want 3 and 0", result.Entries, result.Skipped)
	}

	systems, err := svc.Systems(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(systems) != 1 || systems[0].GameCount != 3 {
		t.Fatalf("systems = %v, want one with 3 games", systems)
	}

	// Re-import replaces rather than appends.
	if _, err := svc.ImportCatalogFile(ctx, path); err != nil {
		t.Fatalf("second ImportCatalogFile() error = %v", err)
	}
	systems, _ = svc.Systems(ctx)
	if systems[0].GameCount != 3 {
		t.Errorf("GameCount after re-import = %d, want 3", systems[0].GameCount)
	}
}

func TestService_ImportCatalogFolder(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, &fakeRunner{})

	dir := t.TempDir()
	testutil.WriteFile(t, dir, "nes.dat", []byte(nesDatafile))
	testutil.WriteFile(t, dir, "bad.dat", []byte("<<< not xml"))

	imported, found, err := svc.ImportCatalogFolder(ctx, dir, nil)
	if err != nil {
		t.Fatalf("ImportCatalogFolder() error = %v", err)
	}
	if found != 2 {
		t.Errorf("found = %d, want 2", found)
	}
	if imported != 1 {
		t.Errorf("imported = %d, want 1 (the malformed document is skipped)", imported)
	}
}

func TestService_ScanDirectory(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{
		results: []verify.ScanResult{
			{FilePath: "/roms/Super Mario Bros. (USA).nes", FileSize: 40976, CRC32: "d445f698", Status: verify.StatusCorrect, Matched: &catalog.Entry{CRC32: "d445f698", Size: 40976}, SimilarityScore: 1.0},
			{FilePath: "/roms/kirby moved.nes", FileSize: 786448, CRC32: "5ed6f221", Status: verify.StatusWrongFilename, Matched: &catalog.Entry{CRC32: "5ed6f221", Size: 786448}, SimilarityScore: 1.0},
			{FilePath: "/roms/junk.nes", FileSize: 3, CRC32: "99999999", Status: verify.StatusNotRecognized},
		},
	}
	svc, st := newTestService(t, runner)
	importNES(t, svc)

	report, err := svc.ScanDirectory(ctx, "/roms", "nes", nil)
	if err != nil {
		t.Fatalf("ScanDirectory() error = %v", err)
	}

	if runner.lastDir != "/roms" {
		t.Errorf("scanned dir = %q, want /roms", runner.lastDir)
	}
	if len(report.Results) != 3 {
		t.Errorf("len(Results) = %d, want 3", len(report.Results))
	}

	// Catalog holds 3 entries, 2 positively matched: 1 missing.
	if len(report.Missing) != 1 {
		t.Fatalf("len(Missing) = %d, want 1", len(report.Missing))
	}
	if report.Missing[0].CRC32 != "70080810" {
		t.Errorf("missing entry = %q, want metroid", report.Missing[0].CRC32)
	}

	// Results were persisted.
	records, err := st.Records(ctx, report.System.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Errorf("len(records) = %d, want 3 persisted", len(records))
	}
	// The service stamps records with its own clock, not the wall clock.
	want := testutil.FixedClock().Now()
	for _, r := range records {
		if !r.ScanTimestamp.Equal(want) {
			t.Errorf("ScanTimestamp = %v, want the service clock time %v", r.ScanTimestamp, want)
		}
	}
}

func TestService_ScanDirectory_UnknownSystem(t *testing.T) {
	svc, _ := newTestService(t, &fakeRunner{})
	_, err := svc.ScanDirectory(context.Background(), "/roms", "unknown", nil)
	if err == nil || !strings.Contains(err.Error(), "system not imported") {
		t.Fatalf("ScanDirectory() error = %v, want system not imported", err)
	}
}

func TestService_Missing_UsesStoredRecords(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{
		results: []verify.ScanResult{
			{FilePath: "/roms/mario.nes", FileSize: 40976, CRC32: "d445f698", Status: verify.StatusCorrect, Matched: &catalog.Entry{CRC32: "d445f698", Size: 40976}},
		},
	}
	svc, _ := newTestService(t, runner)
	importNES(t, svc)

	if _, err := svc.ScanDirectory(ctx, "/roms", "nes", nil); err != nil {
		t.Fatal(err)
	}

	missing, err := svc.Missing(ctx, "nes")
	if err != nil {
		t.Fatalf("Missing() error = %v", err)
	}
	if len(missing) != 2 {
		t.Fatalf("len(missing) = %d, want 2", len(missing))
	}
}

func TestService_Ignore(t *testing.T) {
	ctx := context.Background()

	t.Run("missing entry by checksum gets a placeholder", func(t *testing.T) {
		svc, st := newTestService(t, &fakeRunner{})
		importNES(t, svc)

		if err := svc.Ignore(ctx, "nes", verify.Key{CRC32: "70080810"}); err != nil {
			t.Fatalf("Ignore() error = %v", err)
		}

		system, err := st.SystemByName(ctx, "nes")
		if err != nil {
			t.Fatal(err)
		}
		record, err := st.RecordByCRC(ctx, system.ID, "70080810")
		if err != nil {
			t.Fatal(err)
		}
		if record == nil {
			t.Fatal("expected a placeholder record")
		}
		if record.Status != verify.StatusIgnored {
			t.Errorf("Status = %v, want ignored", record.Status)
		}
		if record.OriginalStatus != verify.StatusMissing {
			t.Errorf("OriginalStatus = %v, want missing", record.OriginalStatus)
		}
		if !verify.IsPlaceholderPath(record.FilePath) {
			t.Errorf("FilePath = %q, want a placeholder path", record.FilePath)
		}
		if record.FileSize != 131088 {
			t.Errorf("FileSize = %d, want the catalog entry size", record.FileSize)
		}
	})

	t.Run("existing record is ignored in place", func(t *testing.T) {
		runner := &fakeRunner{
			results: []verify.ScanResult{
				{FilePath: "/roms/junk.nes", FileSize: 3, CRC32: "99999999", Status: verify.StatusNotRecognized},
			},
		}
		svc, _ := newTestService(t, runner)
		importNES(t, svc)
		if _, err := svc.ScanDirectory(ctx, "/roms", "nes", nil); err != nil {
			t.Fatal(err)
		}

		if err := svc.Ignore(ctx, "nes", verify.Key{FilePath: "/roms/junk.nes"}); err != nil {
			t.Fatalf("Ignore() error = %v", err)
		}
		records, err := svc.RecordsByStatus(ctx, "nes", verify.StatusIgnored)
		if err != nil {
			t.Fatal(err)
		}
		if len(records) != 1 {
			t.Fatalf("len(ignored) = %d, want 1", len(records))
		}
	})

	t.Run("zero key fails", func(t *testing.T) {
		svc, _ := newTestService(t, &fakeRunner{})
		importNES(t, svc)
		if err := svc.Ignore(ctx, "nes", verify.Key{}); err != verify.ErrInvalidKey {
			t.Errorf("Ignore() error = %v, want ErrInvalidKey", err)
		}
	})
}

func TestService_Duplicates(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{
		results: []verify.ScanResult{
			{FilePath: "/roms/mario.nes", FileSize: 40976, CRC32: "d445f698", Status: verify.StatusCorrect, Matched: &catalog.Entry{CRC32: "d445f698", Size: 40976}},
			{FilePath: "/roms/mario copy.nes", FileSize: 40976, CRC32: "d445f698", Status: verify.StatusWrongFilename, Matched: &catalog.Entry{CRC32: "d445f698", Size: 40976}},
			{FilePath: "/roms/bad.nes", FileSize: 9, CRC32: "77777777", Status: verify.StatusBroken},
			{FilePath: "/roms/bad copy.nes", FileSize: 9, CRC32: "77777777", Status: verify.StatusBroken},
		},
	}
	svc, _ := newTestService(t, runner)
	importNES(t, svc)
	if _, err := svc.ScanDirectory(ctx, "/roms", "nes", nil); err != nil {
		t.Fatal(err)
	}

	groups, err := svc.Duplicates(ctx, "nes")
	if err != nil {
		t.Fatalf("Duplicates() error = %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("len(groups) = %d, want 1 (broken files never count)", len(groups))
	}
	if len(groups[0]) != 2 || groups[0][0].CRC32 != "d445f698" {
		t.Fatalf("group = %v, want the two mario copies", groups[0])
	}
}

func TestService_Rename(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{
		results: []verify.ScanResult{
			{FilePath: "/roms/kirby moved.nes", FileSize: 786448, CRC32: "5ed6f221", Status: verify.StatusWrongFilename, Matched: &catalog.Entry{CRC32: "5ed6f221", Size: 786448}},
		},
	}
	svc, _ := newTestService(t, runner)
	importNES(t, svc)
	if _, err := svc.ScanDirectory(ctx, "/roms", "nes", nil); err != nil {
		t.Fatal(err)
	}

	if err := svc.Rename(ctx, "nes", "/roms/kirby moved.nes", "/roms/Kirby's Adventure (USA).nes"); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}

	records, err := svc.Records(ctx, "nes")
	if err != nil {
		t.Fatal(err)
	}
	if records[0].FilePath != "/roms/Kirby's Adventure (USA).nes" {
		t.Errorf("FilePath = %q, want the new path", records[0].FilePath)
	}
	if records[0].Status != verify.StatusWrongFilename {
		t.Errorf("Status = %v, rename must not change status", records[0].Status)
	}
}

func TestService_DeleteSystem(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, &fakeRunner{})
	importNES(t, svc)

	if err := svc.DeleteSystem(ctx, "nes"); err != nil {
		t.Fatalf("DeleteSystem() error = %v", err)
	}
	systems, err := svc.Systems(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(systems) != 0 {
		t.Errorf("systems = %v, want none", systems)
	}

	if err := svc.DeleteSystem(ctx, "nes"); err == nil {
		t.Error("second DeleteSystem() expected error for unknown system")
	}
}
