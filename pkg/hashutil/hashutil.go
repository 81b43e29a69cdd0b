package hashutil

import (
	"encoding/hex"
	"fmt"
	"path/filepath"

	"lukechampine.com/blake3"
)

type HashAlgo string

const HashAlgoBLAKE3 HashAlgo = "blake3"

// HashBytes returns the hex digest of data. Only BLAKE3 is supported.
func HashBytes(data []byte, algo HashAlgo) (string, error) {
	switch algo {
	case HashAlgoBLAKE3:
		return hashBytesBlake3(data), nil
	default:
		return "", fmt.Errorf("unsupported hash algorithm: %s", algo)
	}
}

// HashString is HashBytes for string input.
func HashString(s string, algo HashAlgo) (string, error) {
	return HashBytes([]byte(s), algo)
}

// ShardedPath spreads a hex digest over nested directories so that no single
// directory grows too large: ("abcdef...", 2) -> "ab/cd/abcdef...".
// Levels beyond what the digest can supply are ignored.
func ShardedPath(digest string, levels int) string {
	parts := make([]string, 0, levels+1)
	for i := 0; i < levels && (i+1)*2 < len(digest); i++ {
		parts = append(parts, digest[i*2:(i+1)*2])
	}
	parts = append(parts, digest)
	return filepath.Join(parts...)
}

func hashBytesBlake3(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}
