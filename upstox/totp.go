package upstox

import (
	"fmt"
	"time"

	"github.com/pquerna/otp/totp"
)

// LoginCode generates the time based one-time password the login page asks for.
func LoginCode(secret string, t time.Time) (string, error) {
	code, err := totp.GenerateCode(secret, t)
	if err != nil {
		return "", fmt.Errorf("generating login code: %w", err)
	}

	return code, nil
}
