package auth

import (
	"bytes"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	// ErrMalformedHash indicates a stored hash that cannot be decoded.
	ErrMalformedHash = errors.New("auth: malformed password hash")
	// ErrUnsupportedAlgorithm indicates a stored hash produced by another scheme.
	ErrUnsupportedAlgorithm = errors.New("auth: unsupported hash algorithm")
	// ErrIncompatibleVersion indicates an argon2 version this build cannot verify.
	ErrIncompatibleVersion = errors.New("auth: incompatible argon2 version")
)

// Params are the argon2id cost settings. They are fixed per deployment and
// embedded in every hash, so verification always uses the hash's own values.
type Params struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
	SaltLen   uint32
	KeyLen    uint32
}

// Hasher hashes and verifies secrets with argon2id.
type Hasher struct {
	params Params
}

// NewHasher validates params and returns a Hasher. Zero costs are rejected.
func NewHasher(p Params) (*Hasher, error) {
	switch {
	case p.Time == 0:
		return nil, errors.New("auth: argon2 time cost must be positive")
	case p.MemoryKiB < 8*uint32(p.Threads) || p.MemoryKiB == 0:
		return nil, errors.New("auth: argon2 memory must be at least 8 KiB per thread")
	case p.Threads == 0:
		return nil, errors.New("auth: argon2 threads must be positive")
	case p.SaltLen < 8:
		return nil, errors.New("auth: salt must be at least 8 bytes")
	case p.KeyLen < 16:
		return nil, errors.New("auth: key must be at least 16 bytes")
	}
	return &Hasher{params: p}, nil
}

// Params returns the configured costs.
func (h *Hasher) Params() Params {
	return h.params
}

// Hash returns the PHC-encoded argon2id hash of secret.
func (h *Hasher) Hash(secret string) ([]byte, error) {
	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("auth: read salt: %w", err)
	}
	key := argon2.IDKey([]byte(secret), salt, h.params.Time, h.params.MemoryKiB, h.params.Threads, h.params.KeyLen)
	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.MemoryKiB, h.params.Time, h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
	return []byte(encoded), nil
}

// maxCostFactor bounds the costs a stored hash may demand relative to the
// configured ones.
const maxCostFactor = 4

// Verify reports whether secret matches encoded. A mismatch is (false, nil);
// any decoding problem is returned as an error.
func (h *Hasher) Verify(encoded []byte, secret string) (bool, error) {
	p, salt, key, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}
	if !h.withinLimits(p) {
		return false, fmt.Errorf("%w: costs m=%d,t=%d,p=%d exceed limits", ErrMalformedHash, p.MemoryKiB, p.Time, p.Threads)
	}
	other := argon2.IDKey([]byte(secret), salt, p.Time, p.MemoryKiB, p.Threads, p.KeyLen)
	return subtle.ConstantTimeCompare(key, other) == 1, nil
}

func (h *Hasher) withinLimits(p Params) bool {
	return uint64(p.MemoryKiB) <= maxCostFactor*uint64(h.params.MemoryKiB) &&
		uint64(p.Time) <= maxCostFactor*uint64(h.params.Time) &&
		uint64(p.Threads) <= maxCostFactor*uint64(h.params.Threads) &&
		uint64(p.KeyLen) <= maxCostFactor*uint64(h.params.KeyLen)
}

func decodeHash(encoded []byte) (Params, []byte, []byte, error) {
	var p Params
	if len(encoded) == 0 || !bytes.HasPrefix(encoded, []byte("$")) {
		return p, nil, nil, ErrMalformedHash
	}
	parts := strings.Split(string(encoded), "$")
	if len(parts) != 6 {
		return p, nil, nil, ErrMalformedHash
	}
	if parts[1] != "argon2id" {
		return p, nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, nil, nil, ErrMalformedHash
	}
	if version != argon2.Version {
		return p, nil, nil, ErrIncompatibleVersion
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.MemoryKiB, &p.Time, &p.Threads); err != nil {
		return p, nil, nil, ErrMalformedHash
	}
	if p.MemoryKiB == 0 || p.Time == 0 || p.Threads == 0 {
		return p, nil, nil, ErrMalformedHash
	}

	salt, err := base64.RawStdEncoding.Strict().DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, ErrMalformedHash
	}
	key, err := base64.RawStdEncoding.Strict().DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, ErrMalformedHash
	}
	p.SaltLen = uint32(len(salt))
	p.KeyLen = uint32(len(key))
	return p, salt, key, nil
}
