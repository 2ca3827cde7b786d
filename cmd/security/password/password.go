package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const phcVersion = argon2.Version

var b64 = base64.RawStdEncoding

// Hash validates password against the policy and returns an Argon2id PHC string.
func (c Config) Hash(password string) (string, error) {
	if err := c.Validate(password); err != nil {
		return "", err
	}

	salt := make([]byte, c.Params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}

	p := c.Params
	key := argon2.IDKey([]byte(password), salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLength)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcVersion, p.MemoryKiB, p.Iterations, p.Parallelism,
		b64.EncodeToString(salt), b64.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encodedHash.
// (false, nil) is a mismatch; ErrInvalidHash means the hash is malformed or unsupported.
func (c Config) Verify(encodedHash, password string) (bool, error) {
	if IsBcrypt(encodedHash) {
		return verifyBcrypt(encodedHash, password)
	}

	ph, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}
	if !ph.params.within(c.Params) {
		return false, ErrInvalidHash
	}

	key := argon2.IDKey(
		[]byte(password),
		ph.salt,
		ph.params.Iterations,
		ph.params.MemoryKiB,
		ph.params.Parallelism,
		ph.params.KeyLength,
	)
	return subtle.ConstantTimeCompare(key, ph.key) == 1, nil
}

// IsBcrypt reports whether encoded looks like a bcrypt hash.
func IsBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}

func verifyBcrypt(encoded, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, ErrInvalidHash
	}
}

// within rejects stored parameters far above the configured cost, so a
// tampered hash row cannot force pathological work.
func (got Argon2idParams) within(limits Argon2idParams) bool {
	switch {
	case got.MemoryKiB > limits.MemoryKiB*2:
		return false
	case got.Iterations > limits.Iterations*2:
		return false
	case uint32(got.Parallelism) > uint32(limits.Parallelism)*2:
		return false
	case got.SaltLength < 8 || got.SaltLength > 64:
		return false
	case got.KeyLength < 16 || got.KeyLength > 128:
		return false
	}
	return true
}

type phcHash struct {
	params Argon2idParams
	salt   []byte
	key    []byte
}

// parsePHC decodes $argon2id$v=19$m=..,t=..,p=..$salt$key.
func parsePHC(encoded string) (phcHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return phcHash{}, ErrInvalidHash
	}
	if parts[2] != "v="+strconv.Itoa(phcVersion) {
		return phcHash{}, ErrInvalidHash
	}

	var mem, it, par uint64
	for _, kv := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return phcHash{}, ErrInvalidHash
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil || n == 0 {
			return phcHash{}, ErrInvalidHash
		}
		switch k {
		case "m":
			mem = n
		case "t":
			it = n
		case "p":
			par = n
		default:
			return phcHash{}, ErrInvalidHash
		}
	}
	if mem == 0 || it == 0 || par == 0 || par > 255 {
		return phcHash{}, ErrInvalidHash
	}

	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return phcHash{}, ErrInvalidHash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil {
		return phcHash{}, ErrInvalidHash
	}

	return phcHash{
		params: Argon2idParams{
			MemoryKiB:   uint32(mem),
			Iterations:  uint32(it),
			Parallelism: uint8(par),
			SaltLength:  uint32(len(salt)), // #nosec G115 -- bounded by within().
			KeyLength:   uint32(len(key)),  // #nosec G115 -- bounded by within().
		},
		salt: salt,
		key:  key,
	}, nil
}
