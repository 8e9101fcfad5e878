package assetstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"
)

// Supported hash algorithm names.
const (
	HashSHA256  = "sha256"
	HashBLAKE2b = "blake2b"
)

// DefaultHashAlgorithm is used when no algorithm is configured.
const DefaultHashAlgorithm = HashSHA256

// StateHashAlgorithm is the crawler_state key recording the algorithm in use.
const StateHashAlgorithm = "hash_algorithm"

// SupportedHashAlgorithms lists the accepted algorithm names.
func SupportedHashAlgorithms() []string {
	return []string{HashSHA256, HashBLAKE2b}
}

// newHasher returns a constructor for the named algorithm.
func newHasher(name string) (func() hash.Hash, error) {
	switch name {
	case HashSHA256:
		return sha256.New, nil
	case HashBLAKE2b:
		// New256 only fails for keys longer than 64 bytes.
		return func() hash.Hash {
			h, _ := blake2b.New256(nil)
			return h
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownHashAlgorithm, name)
	}
}

// digest returns the hex digest of data.
func digest(newHash func() hash.Hash, data []byte) string {
	h := newHash()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// digestFile returns the hex digest of the file at path.
func digestFile(newHash func() hash.Hash, path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the asset index
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := newHash()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
