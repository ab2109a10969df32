package checksum

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// ErrNoPayload indicates an archive with no usable ROM payload entry.
var ErrNoPayload = errors.New("archive contains no usable payload")

// romExtensions are payload extensions preferred when choosing the entry to
// checksum inside an archive.
var romExtensions = map[string]struct{}{
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

// metadataExtensions are entries that describe a ROM rather than being one.
var metadataExtensions = map[string]struct{}{
	".txt": {}, ".nfo": {}, ".dat": {}, ".xml": {},
}

// computeArchived locates the single payload entry inside a zip container
// and fingerprints its decompressed bytes.
func (e *Engine) computeArchived(path string, progress ProgressFunc) (Sum, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return Sum{}, fmt.Errorf("opening archive %s: %w", path, err)
	}
	defer zr.Close()

	entry := selectPayload(zr.File)
	if entry == nil {
		return Sum{}, fmt.Errorf("%s: %w", path, ErrNoPayload)
	}

	rc, err := entry.Open()
	if err != nil {
		return Sum{}, fmt.Errorf("opening archive entry %s: %w", entry.Name, err)
	}
	defer rc.Close()

	total := int64(entry.UncompressedSize64)
	crc, err := e.stream(rc, total, progress)
	if err != nil {
		return Sum{}, fmt.Errorf("reading archive entry %s: %w", entry.Name, err)
	}

	return Sum{
		CRC32:       FormatCRC(crc),
		Size:        total,
		PayloadName: filepath.Base(entry.Name),
	}, nil
}

// selectPayload picks the entry to checksum: recognized ROM extensions
// first, then the first non-metadata file. Directories and metadata-only
// entries never qualify.
func selectPayload(files []*zip.File) *zip.File {
	var fallback *zip.File
	for _, f := range files {
		if f.FileInfo().IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(f.Name))
		if _, ok := romExtensions[ext]; ok {
			return f
		}
		if _, ok := metadataExtensions[ext]; ok {
			continue
		}
		if fallback == nil {
			fallback = f
		}
	}
	return fallback
}
