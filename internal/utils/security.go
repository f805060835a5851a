package contextutils

import (
	"strings"
)

// MaskSecret masks a secret (cron secret, SMTP password, provider API key) for
// logging purposes. Returns a masked version showing only the first 4 and last
// 4 characters.
func MaskSecret(secret string) string {
	if secret == "" {
		return "[EMPTY]"
	}

	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}

	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}
