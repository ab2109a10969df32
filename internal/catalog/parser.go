package catalog

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ErrFormat indicates a catalog document whose structure could not be read
// at all. Individual malformed game records do not raise it; they are
// skipped and counted on the returned Document.
var ErrFormat = errors.New("malformed catalog document")

// Parser reads catalog documents into Entry lists.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a Parser. logger may be nil to disable logging.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Parser{logger: logger}
}

// xmlDatafile mirrors the catalog document structure. The root element name
// is deliberately unconstrained; catalogs in the wild use several.
type xmlDatafile struct {
	Header *xmlHeader `xml:"header"`
	Games  []xmlGame  `xml:"game"`
}

type xmlHeader struct {
	Name string `xml:"name"`
}

type xmlGame struct {
	Name      string   `xml:"name,attr"`
	CloneOfID string   `xml:"cloneofid,attr"`
	ROMs      []xmlROM `xml:"rom"`
}

type xmlROM struct {
	Name   string `xml:"name,attr"`
	CRC    string `xml:"crc,attr"`
	Size   string `xml:"size,attr"`
	MD5    string `xml:"md5,attr"`
	SHA1   string `xml:"sha1,attr"`
	Status string `xml:"status,attr"`
}

// ParseFile parses the catalog document at path. The document's base file
// name (without extension) is the system-name fallback when the header
// carries none.
func (p *Parser) ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog file: %w", err)
	}
	defer f.Close()

	base := filepath.Base(path)
	fallback := strings.TrimSuffix(base, filepath.Ext(base))

	doc, err := p.Parse(f, fallback)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	doc.SourcePath = path
	return doc, nil
}

// Parse reads one catalog document. fallbackName becomes the system name
// when the document header has none. Malformed game elements are skipped
// (logged and counted); a document without readable structure fails with
// ErrFormat.
func (p *Parser) Parse(r io.Reader, fallbackName string) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading catalog document: %w", err)
	}

	var df xmlDatafile
	if err := xml.Unmarshal(data, &df); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	systemName := fallbackName
	if df.Header != nil && strings.TrimSpace(df.Header.Name) != "" {
		systemName = strings.TrimSpace(df.Header.Name)
	}

	doc := &Document{SystemName: systemName}
	for _, game := range df.Games {
		entry, err := p.parseGame(game)
		if err != nil {
			p.logger.Warn("skipping catalog record", "game", game.Name, "error", err)
			doc.Skipped++
			continue
		}
		doc.Entries = append(doc.Entries, entry)
	}

	return doc, nil
}

// parseGame converts one game element into an Entry.
func (p *Parser) parseGame(game xmlGame) (Entry, error) {
	if len(game.ROMs) == 0 {
		return Entry{}, errors.New("game has no rom descriptor")
	}
	rom := game.ROMs[0]

	size := int64(0)
	if rom.Size != "" {
		parsed, err := strconv.ParseInt(rom.Size, 10, 64)
		if err != nil {
			return Entry{}, fmt.Errorf("invalid rom size %q", rom.Size)
		}
		size = parsed
	}

	attrs := parseReleaseName(game.Name)

	entry := Entry{
		ReleaseName:             game.Name,
		ExpectedFileName:        rom.Name,
		CloneOfID:               game.CloneOfID,
		CRC32:                   strings.ToLower(rom.CRC),
		Size:                    size,
		MD5:                     rom.MD5,
		SHA1:                    rom.SHA1,
		CanonicalTitle:          attrs.CanonicalTitle,
		Region:                  attrs.Region,
		Languages:               attrs.Languages,
		IsBeta:                  attrs.IsBeta,
		IsDemo:                  attrs.IsDemo,
		IsPrototype:             attrs.IsPrototype,
		IsUnlicensed:            attrs.IsUnlicensed,
		Revision:                attrs.Revision,
		IsUnofficialTranslation: attrs.IsUnofficialTranslation,
		IsVerifiedDump:          attrs.IsVerifiedDump || rom.Status == "verified",
		IsPirate:                attrs.IsPirate,
		IsHack:                  attrs.IsHack,
		IsTrainer:               attrs.IsTrainer,
		IsOverdump:              attrs.IsOverdump,
		IsModified:              attrs.IsPirate || attrs.IsHack || attrs.IsTrainer,
		DiscInfo:                attrs.DiscInfo,
	}
	return entry, nil
}

// ScanFolder finds catalog files (.dat or .xml) under dir, recursively,
// sorted by path. A missing directory yields an empty list.
func ScanFolder(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".dat", ".xml":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning catalog folder: %w", err)
	}
	sort.Strings(files)
	return files, nil
}
