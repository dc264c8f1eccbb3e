package checksum

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
)

// BlockSize is the transfer block size. Files are digested and
// streamed in blocks of this many bytes.
const BlockSize = 4096

// New returns a streaming digest accumulator for an inbound transfer.
func New() hash.Hash {
	return md5.New()
}

// Sum renders an accumulator in the wire format: lowercase hex of the
// 128-bit digest.
func Sum(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

// File computes the digest of the file at path, reading it in
// BlockSize blocks, and returns the digest with the byte length read.
func File(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	h := md5.New()
	n, err := io.CopyBuffer(h, f, make([]byte, BlockSize))
	if err != nil {
		return "", 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
