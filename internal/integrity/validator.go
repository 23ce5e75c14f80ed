package integrity

import (
	"bytes"
	"io"
	"os"
)

// zipMagic is the ZIP local file header signature.
var zipMagic = []byte{0x50, 0x4B, 0x03, 0x04}

// minArchiveSize is the smallest byte size accepted for a downloaded
// archive; anything at or below it is treated as a failed download.
const minArchiveSize = 100

// ValidateArchive reports whether the file at path looks like a
// well-formed ZIP archive. It never modifies the file; deleting an
// invalid artifact is the caller's responsibility.
func ValidateArchive(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	if info.Size() <= minArchiveSize {
		return false
	}

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	header := make([]byte, len(zipMagic))
	if _, err := io.ReadFull(f, header); err != nil {
		return false
	}

	return bytes.Equal(header, zipMagic)
}
