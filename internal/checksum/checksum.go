// Package checksum computes the 32-bit content fingerprint used for catalog
// matching. Zip containers are transparent: the checksum and size describe
// the decompressed payload, not the archive.
package checksum

import (
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultChunkSize bounds memory use while streaming large ROM images.
const DefaultChunkSize = 64 * 1024 * 1024

// ProgressFunc receives streaming progress after each chunk.
type ProgressFunc func(bytesRead, totalSize int64)

// Sum is the fingerprint of a file's payload bytes.
type Sum struct {
	// CRC32 is the zero-padded lower-case hex of the unsigned 32-bit checksum.
	CRC32 string
	// Size is the payload size: the file size for plain files, the
	// uncompressed size for archived payloads.
	Size int64
	// PayloadName is the file's base name, or the inner entry name when the
	// payload came from an archive.
	PayloadName string
}

// Engine streams files through a running CRC32 accumulator.
type Engine struct {
	// ChunkSize is the read granularity; DefaultChunkSize when zero.
	ChunkSize int64
}

// Compute fingerprints the file at path. progress may be nil.
// Any read error is returned to the caller for a "broken" classification;
// Compute never panics on unreadable input.
func (e *Engine) Compute(path string, progress ProgressFunc) (Sum, error) {
	if isArchive(path) {
		return e.computeArchived(path, progress)
	}

	f, err := os.Open(path)
	if err != nil {
		return Sum{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Sum{}, fmt.Errorf("stat %s: %w", path, err)
	}

	crc, err := e.stream(f, info.Size(), progress)
	if err != nil {
		return Sum{}, fmt.Errorf("reading %s: %w", path, err)
	}

	return Sum{
		CRC32:       FormatCRC(crc),
		Size:        info.Size(),
		PayloadName: filepath.Base(path),
	}, nil
}

// stream reads r in ChunkSize chunks into a running CRC32, reporting
// progress against totalSize after each chunk.
func (e *Engine) stream(r io.Reader, totalSize int64, progress ProgressFunc) (uint32, error) {
	chunkSize := e.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	var crc uint32
	var bytesRead int64
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			crc = crc32.Update(crc, crc32.IEEETable, buf[:n])
			bytesRead += int64(n)
			if progress != nil {
				progress(bytesRead, totalSize)
			}
		}
		if err == io.EOF {
			return crc, nil
		}
		if err != nil {
			return 0, err
		}
	}
}

// FormatCRC renders an unsigned 32-bit checksum in the canonical form used
// throughout the catalog: 8 hex digits, zero-padded, lower-case.
func FormatCRC(crc uint32) string {
	return fmt.Sprintf("%08x", crc)
}

func isArchive(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".zip")
}
