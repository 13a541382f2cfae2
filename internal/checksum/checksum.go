// Package checksum computes SHA-256 content digests by streaming file bytes.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Chunk sizes for streamed hashing. FastChunkSize is used on bulk-scan paths.
const (
	ChunkSize     = 4 << 10
	FastChunkSize = 64 << 10
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// File returns the hex-encoded SHA-256 digest of the file at path, reading it
// in ChunkSize pieces.
func File(path string) (string, error) {
	return fileWithChunk(path, ChunkSize)
}

// FileFast is File with FastChunkSize reads.
func FileFast(path string) (string, error) {
	return fileWithChunk(path, FastChunkSize)
}

// Reader digests everything readable from r. A read error is returned as is;
// no partial digest is ever produced.
func Reader(r io.Reader, chunk int) (string, error) {
	h := sha256.New()
	buf := make([]byte, chunk)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func fileWithChunk(path string, chunk int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("checksum: open %s: %w", path, err)
	}
	defer f.Close()

	sum, err := Reader(f, chunk)
	if err != nil {
		return "", fmt.Errorf("checksum: read %s: %w", path, err)
	}
	return sum, nil
}
