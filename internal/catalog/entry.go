package catalog

// Entry is one official ROM variant from a catalog document.
// Entries are created in bulk during import and never mutated field-by-field;
// re-importing a system's catalog replaces its entries wholesale.
type Entry struct {
	ID       int64 // database row ID; zero until persisted
	SystemID int64

	// Provenance.
	ReleaseName      string // raw release name from the catalog
	ExpectedFileName string // file name the catalog expects on disk
	CloneOfID        string // optional link between variants of the same game

	// Matching key. CRC32 is lower-case 8-digit hex; Size is the payload size
	// in bytes. Uniqueness of (system, crc, size) is not guaranteed by the
	// catalog format.
	CRC32 string
	Size  int64

	// Secondary hashes; recorded but not used for matching.
	MD5  string
	SHA1 string

	// Attributes derived from the release name.
	CanonicalTitle          string
	Region                  string
	Languages               string // comma-joined codes, e.g. "En" or "En,Fr,De"
	IsBeta                  bool
	IsDemo                  bool
	IsPrototype             bool
	IsUnlicensed            bool
	Revision                int // 0 = base release
	IsUnofficialTranslation bool
	IsVerifiedDump          bool
	IsPirate                bool
	IsHack                  bool
	IsTrainer               bool
	IsOverdump              bool
	IsModified              bool // pirate OR hack OR trainer
	DiscInfo                string
}

// Document is the parsed form of one catalog file.
type Document struct {
	SystemName string
	SourcePath string
	Entries    []Entry
	Skipped    int // malformed game elements skipped during parsing
}
