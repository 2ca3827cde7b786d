package app

import (
	"encoding/hex"
	"fmt"

	"kite/cmd/security/token"
)

// validateSecurity enforces the token policy at startup so a weak or missing
// signing key is a boot failure, never a silent fallback.
func validateSecurity(c TokenConfig) error {
	if c.TTL <= 0 {
		return fmt.Errorf("security policy: token ttl must be positive")
	}
	switch c.Format {
	case token.FormatJWT:
		if len(c.Secret) < token.MinSecretBytes {
			return fmt.Errorf("security policy: KITE_TOKEN_SECRET must be at least %d bytes", token.MinSecretBytes)
		}
	case token.FormatPASETO:
		b, err := hex.DecodeString(c.PasetoV4SecretKeyHex)
		if err != nil || len(b) == 0 {
			return fmt.Errorf("security policy: KITE_PASETO_V4_SECRET_KEY_HEX must be a hex key")
		}
	default:
		return fmt.Errorf("security policy: token format %q (want %s or %s)", c.Format, token.FormatJWT, token.FormatPASETO)
	}
	return nil
}

func (c TokenConfig) serviceConfig() token.Config {
	return token.Config{
		Format:               c.Format,
		TTL:                  c.TTL,
		Secret:               c.Secret,
		PasetoV4SecretKeyHex: c.PasetoV4SecretKeyHex,
	}
}
