// Package otpauth converts records to and from otpauth:// URIs and QR codes,
// limited to the parameters the code engine reproduces: TOTP, SHA1, 6 digits, 30s.
package otpauth

import (
	"errors"
	"fmt"
	"strings"

	pqotp "github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"otpdeck/internal/otp"
)

// DefaultIssuer is used when a label carries no issuer
const DefaultIssuer = "otpdeck"

// ErrUnsupported is returned for URIs whose parameters the engine cannot reproduce
var ErrUnsupported = errors.New("unsupported otpauth parameters")

// Entry is a record parsed from an otpauth URI
type Entry struct {
	Label   string
	Secret  string
	Issuer  string
	Account string
}

// Parse reads an otpauth://totp URI
func Parse(uri string) (Entry, error) {
	key, err := pqotp.NewKeyFromURL(strings.TrimSpace(uri))
	if err != nil {
		return Entry{}, fmt.Errorf("invalid otpauth uri: %w", err)
	}

	if key.Type() != "totp" {
		return Entry{}, fmt.Errorf("%w: type %q", ErrUnsupported, key.Type())
	}
	if key.Digits() != pqotp.DigitsSix {
		return Entry{}, fmt.Errorf("%w: %d digits", ErrUnsupported, key.Digits().Length())
	}
	if key.Period() != otp.StepSeconds {
		return Entry{}, fmt.Errorf("%w: period %ds", ErrUnsupported, key.Period())
	}
	if key.Algorithm() != pqotp.AlgorithmSHA1 {
		return Entry{}, fmt.Errorf("%w: algorithm %s", ErrUnsupported, key.Algorithm())
	}

	secret := otp.NormalizeSecret(key.Secret())
	if secret == "" {
		return Entry{}, fmt.Errorf("invalid otpauth uri: %w", otp.ErrEmptyKey)
	}

	entry := Entry{
		Secret:  secret,
		Issuer:  key.Issuer(),
		Account: key.AccountName(),
	}
	entry.Label = FormatLabel(entry.Issuer, entry.Account)
	return entry, nil
}

// FormatLabel renders "Issuer (account)", or whichever part is present
func FormatLabel(issuer, account string) string {
	issuer = strings.TrimSpace(issuer)
	account = strings.TrimSpace(account)
	switch {
	case issuer != "" && account != "" && issuer != account:
		return fmt.Sprintf("%s (%s)", issuer, account)
	case issuer != "":
		return issuer
	default:
		return account
	}
}

// splitLabel reverses FormatLabel. A plain label is used as both issuer and account.
func splitLabel(label string) (issuer, account string) {
	label = strings.TrimSpace(label)
	if open := strings.LastIndex(label, " ("); open > 0 && strings.HasSuffix(label, ")") {
		return label[:open], label[open+2 : len(label)-1]
	}
	if label == "" {
		return DefaultIssuer, DefaultIssuer
	}
	return label, label
}

// Build returns an otpauth://totp URI for a stored record
func Build(label, secret string) (string, error) {
	raw := otp.Decode(secret)
	if len(raw) == 0 {
		return "", otp.ErrEmptyKey
	}

	issuer, account := splitLabel(label)

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      otp.StepSeconds,
		Secret:      raw,
		Digits:      pqotp.DigitsSix,
		Algorithm:   pqotp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build otpauth uri: %w", err)
	}

	uri := key.URL()
	if _, err := Parse(uri); err != nil {
		return "", fmt.Errorf("built uri does not round-trip: %w", err)
	}
	return uri, nil
}

// NewSecret generates a fresh 20-byte secret, Base32 encoded
func NewSecret(issuer, account string) (string, error) {
	if strings.TrimSpace(issuer) == "" {
		issuer = DefaultIssuer
	}
	if strings.TrimSpace(account) == "" {
		account = issuer
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      otp.StepSeconds,
		SecretSize:  20,
		Digits:      pqotp.DigitsSix,
		Algorithm:   pqotp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return key.Secret(), nil
}
