package storage

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ComputeChecksum calculates the SHA-256 hash of everything read from r.
func ComputeChecksum(r io.Reader) ([32]byte, error) {
	hash := sha256.New()
	if _, err := io.Copy(hash, r); err != nil {
		return [32]byte{}, err
	}

	var checksum [32]byte
	copy(checksum[:], hash.Sum(nil))
	return checksum, nil
}

// bunnyChecksum is the upper-case hex SHA-256 Bunny expects in the Checksum header.
func bunnyChecksum(body []byte) string {
	sum, _ := ComputeChecksum(bytes.NewReader(body))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// DetectContentType sniffs body and falls back to the declared type when the
// content is not recognised.
func DetectContentType(body []byte, declared string) string {
	if len(body) > 0 {
		if mt := mimetype.Detect(body); mt != nil && !mt.Is("application/octet-stream") {
			return mt.String()
		}
	}
	if declared != "" {
		return declared
	}
	return "application/octet-stream"
}
