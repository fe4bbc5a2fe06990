// Package twofactor holds the client side of time-based one-time passwords:
// building the provisioning URI shown during setup and checking codes locally
// before the user leaves the setup step.
package twofactor

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Issuer is the label authenticator apps show for this service.
const Issuer = "MiniTwitter"

// ErrInvalidSecret is returned when a secret is not valid base32.
var ErrInvalidSecret = errors.New("invalid one-time password secret")

// Setup is what the user needs to enroll an authenticator app.
type Setup struct {
	Secret string
	URI    string
}

// NewSetup validates secret and builds the otpauth:// URI for account.
// account may be empty.
func NewSetup(secret, account string) (Setup, error) {
	secret = normalize(secret)
	if secret == "" {
		return Setup{}, ErrInvalidSecret
	}
	if _, err := totp.GenerateCode(secret, time.Now()); err != nil {
		return Setup{}, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}

	label := Issuer
	if account = strings.TrimSpace(account); account != "" {
		label = Issuer + ":" + account
	}
	q := url.Values{}
	q.Set("secret", secret)
	q.Set("issuer", Issuer)
	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + label,
		RawQuery: q.Encode(),
	}
	key, err := otp.NewKeyFromURL(u.String())
	if err != nil {
		return Setup{}, fmt.Errorf("build provisioning uri: %w", err)
	}
	return Setup{Secret: key.Secret(), URI: key.URL()}, nil
}

// Check reports whether code is currently valid for secret.
func Check(secret, code string) bool {
	return totp.Validate(strings.TrimSpace(code), normalize(secret))
}

// CodeAt returns the code for secret at t.
func CodeAt(secret string, t time.Time) (string, error) {
	code, err := totp.GenerateCode(normalize(secret), t)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return code, nil
}

func normalize(secret string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(secret), " ", ""))
}
