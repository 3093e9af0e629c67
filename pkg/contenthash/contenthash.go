// Package contenthash computes content digests used for asset deduplication
// and change detection.
package contenthash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Size is the digest length in bytes.
const Size = 32

// Digest is a fixed-size content digest.
type Digest [Size]byte

// String returns the digest as lowercase hex.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// IsZero reports whether the digest is all zero bytes.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// FromBytes converts a 32-byte slice into a Digest.
func FromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != Size {
		return d, fmt.Errorf("digest must be %d bytes, got %d", Size, len(b))
	}
	copy(d[:], b)
	return d, nil
}

// Hasher computes digests over byte ranges.
type Hasher interface {
	Name() string
	Sum(data []byte, offset, count int) Digest
}

// Algorithm names accepted by ByName.
const (
	AlgorithmSHA256  = "sha256"
	AlgorithmBLAKE2b = "blake2b"
)

type sha256Hasher struct{}

func (sha256Hasher) Name() string { return AlgorithmSHA256 }

func (sha256Hasher) Sum(data []byte, offset, count int) Digest {
	return Digest(sha256.Sum256(window(data, offset, count)))
}

type blake2bHasher struct{}

func (blake2bHasher) Name() string { return AlgorithmBLAKE2b }

func (blake2bHasher) Sum(data []byte, offset, count int) Digest {
	return Digest(blake2b.Sum256(window(data, offset, count)))
}

var (
	// SHA256 is the default hasher.
	SHA256 Hasher = sha256Hasher{}
	// BLAKE2b256 is an alternative hasher producing 32-byte BLAKE2b digests.
	BLAKE2b256 Hasher = blake2bHasher{}
)

// ByName returns the hasher registered under name. An empty name selects SHA256.
func ByName(name string) (Hasher, error) {
	switch name {
	case "", AlgorithmSHA256:
		return SHA256, nil
	case AlgorithmBLAKE2b:
		return BLAKE2b256, nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q", name)
	}
}

// Sum hashes data[offset:offset+count] with SHA-256.
func Sum(data []byte, offset, count int) Digest {
	return SHA256.Sum(data, offset, count)
}

// SumOfSums hashes the concatenation of the given digests.
func SumOfSums(h Hasher, digests ...Digest) Digest {
	buf := make([]byte, 0, len(digests)*Size)
	for _, d := range digests {
		buf = append(buf, d[:]...)
	}
	return h.Sum(buf, 0, len(buf))
}

func window(data []byte, offset, count int) []byte {
	if offset < 0 || count < 0 || offset+count > len(data) {
		panic(fmt.Sprintf("contenthash: range [%d:%d] out of bounds for %d bytes", offset, offset+count, len(data)))
	}
	return data[offset : offset+count]
}
