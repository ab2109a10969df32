package testutil

import (
	"fmt"
	"hash/crc32"
)

// CRC32Hex returns the CRC-32 checksum of data as a lowercase 8-digit hex
// string. Matches the checksum format used by catalog entries and scan
// records.
func CRC32Hex(data []byte) string {
	return fmt.Sprintf("%08x", crc32.ChecksumIEEE(data))
}
