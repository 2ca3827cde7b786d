package password

import (
	"fmt"
	"runtime"

	"github.com/caarlos0/env/v11"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32 `env:"KITE_ARGON2_MEMORY_KIB"`
	Iterations  uint32 `env:"KITE_ARGON2_ITERATIONS"`
	Parallelism uint8  `env:"KITE_ARGON2_PARALLELISM"`
	SaltLength  uint32 `env:"KITE_ARGON2_SALT_LEN"`
	KeyLength   uint32 `env:"KITE_ARGON2_KEY_LEN"`
}

// Policy controls password validation and anti-DoS boundaries.
type Policy struct {
	MinLength int `env:"KITE_PASSWORD_MIN_LEN"`
	MaxLength int `env:"KITE_PASSWORD_MAX_LEN"`
	// If true, enable an extra, minimal weak-pattern rejection.
	RejectVeryWeak bool `env:"KITE_PASSWORD_REJECT_VERY_WEAK"`
}

// Config is the single configuration surface for this package.
type Config struct {
	Params Argon2idParams
	Policy Policy
}

// DefaultConfig returns the production baseline.
func DefaultConfig() Config {
	// Parallelism follows the host but stays within [1..4] for predictable container usage.
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024, // 64 MiB
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above.
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength:      8,
			MaxLength:      256,
			RejectVeryWeak: false,
		},
	}
}

// FromEnv overlays environment variables on DefaultConfig and validates the result.
//
// Env surface:
//   - KITE_PASSWORD_MIN_LEN, KITE_PASSWORD_MAX_LEN, KITE_PASSWORD_REJECT_VERY_WEAK
//   - KITE_ARGON2_MEMORY_KIB, KITE_ARGON2_ITERATIONS, KITE_ARGON2_PARALLELISM
//   - KITE_ARGON2_SALT_LEN, KITE_ARGON2_KEY_LEN
func FromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := cfg.Check(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Check validates ranges for every tunable.
func (c Config) Check() error {
	checks := []struct {
		name     string
		val      uint64
		min, max uint64
	}{
		{"KITE_PASSWORD_MIN_LEN", uint64(max(c.Policy.MinLength, 0)), 1, 1024},
		{"KITE_PASSWORD_MAX_LEN", uint64(max(c.Policy.MaxLength, 0)), 1, 4096},
		{"KITE_ARGON2_MEMORY_KIB", uint64(c.Params.MemoryKiB), 8 * 1024, 1024 * 1024},
		{"KITE_ARGON2_ITERATIONS", uint64(c.Params.Iterations), 1, 20},
		{"KITE_ARGON2_PARALLELISM", uint64(c.Params.Parallelism), 1, 64},
		{"KITE_ARGON2_SALT_LEN", uint64(c.Params.SaltLength), 8, 64},
		{"KITE_ARGON2_KEY_LEN", uint64(c.Params.KeyLength), 16, 64},
	}
	for _, ch := range checks {
		if ch.val < ch.min || ch.val > ch.max {
			return fmt.Errorf("%w: %s out of range [%d..%d]", ErrConfig, ch.name, ch.min, ch.max)
		}
	}

	if c.Policy.MinLength > c.Policy.MaxLength {
		return fmt.Errorf(
			"%w: min_len(%d) > max_len(%d)",
			ErrConfig,
			c.Policy.MinLength,
			c.Policy.MaxLength,
		)
	}
	return nil
}
