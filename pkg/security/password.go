// Package security hashes staff passwords with Argon2id and mints temporary
// credentials for seeded accounts.
package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/angelmondragon/stockyard-backend/pkg/config"
)

const tempPasswordAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"

// ErrInvalidHash is returned for strings that are not PHC-formatted Argon2id hashes.
var ErrInvalidHash = errors.New("invalid argon2id hash")

var b64 = base64.RawStdEncoding

// Argon2Params is the cost profile written into every hash. Verification
// always reads the parameters back from the hash itself.
type Argon2Params struct {
	MemoryKB   uint32
	Iterations uint32
	Threads    uint8
	SaltLen    uint32
	KeyLen     uint32
}

// ParamsFromConfig clamps configured costs into a sane range.
func ParamsFromConfig(cfg config.PasswordConfig) Argon2Params {
	return Argon2Params{
		MemoryKB:   uint32(clamp(cfg.ArgonMemoryKB, 8, 512*1024)),
		Iterations: uint32(clamp(cfg.ArgonTime, 1, 10)),
		Threads:    uint8(clamp(cfg.ArgonParallelism, 1, 255)),
		SaltLen:    uint32(clamp(cfg.ArgonSaltLen, 8, 64)),
		KeyLen:     uint32(clamp(cfg.ArgonKeyLen, 16, 64)),
	}
}

// Hash returns $argon2id$v=19$m=..,t=..,p=..$salt$key.
func (p Argon2Params) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, p.Iterations, p.MemoryKB, p.Threads, p.KeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.MemoryKB, p.Iterations, p.Threads, b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

// HashPassword hashes with the configured cost profile.
func HashPassword(password string, cfg config.PasswordConfig) (string, error) {
	return ParamsFromConfig(cfg).Hash(password)
}

// VerifyPassword compares in constant time. A malformed hash is an error,
// a wrong password is not.
func VerifyPassword(password, encoded string) (bool, error) {
	p, salt, key, err := parseHash(encoded)
	if err != nil {
		return false, err
	}
	candidate := argon2.IDKey([]byte(password), salt, p.Iterations, p.MemoryKB, p.Threads, p.KeyLen)
	return subtle.ConstantTimeCompare(key, candidate) == 1, nil
}

// NeedsRehash reports whether encoded was produced with a different cost
// profile than p.
func NeedsRehash(encoded string, p Argon2Params) bool {
	got, salt, _, err := parseHash(encoded)
	if err != nil {
		return true
	}
	got.SaltLen = uint32(len(salt))
	return got != p
}

func parseHash(encoded string) (Argon2Params, []byte, []byte, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return Argon2Params{}, nil, nil, ErrInvalidHash
	}
	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil || version != argon2.Version {
		return Argon2Params{}, nil, nil, ErrInvalidHash
	}
	var p Argon2Params
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.MemoryKB, &p.Iterations, &p.Threads); err != nil {
		return Argon2Params{}, nil, nil, ErrInvalidHash
	}
	salt, err := b64.DecodeString(fields[4])
	if err != nil {
		return Argon2Params{}, nil, nil, ErrInvalidHash
	}
	key, err := b64.DecodeString(fields[5])
	if err != nil || len(key) == 0 {
		return Argon2Params{}, nil, nil, ErrInvalidHash
	}
	p.KeyLen = uint32(len(key))
	return p, salt, key, nil
}

// GenerateTempPassword draws length characters from an alphabet without
// look-alike glyphs.
func GenerateTempPassword(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}
	limit := big.NewInt(int64(len(tempPasswordAlphabet)))
	var sb strings.Builder
	sb.Grow(length)
	for range length {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		sb.WriteByte(tempPasswordAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
