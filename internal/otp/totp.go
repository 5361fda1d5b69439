package otp

import (
	"crypto/hmac"
	"crypto/sha1" // #nosec G505 -- RFC 6238 default, required for authenticator compatibility
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"time"
)

const (
	// StepSeconds is the TOTP period length
	StepSeconds = 30
	// Digits is the number of decimal digits in a code
	Digits = 6

	modulus    = 1_000_000
	digestSize = sha1.Size
)

var (
	// ErrInvalidSecretFormat is returned by strict decoding when the secret has characters outside the alphabet
	ErrInvalidSecretFormat = errors.New("invalid secret format")
	// ErrEmptyKey is returned when a secret decodes to zero bytes
	ErrEmptyKey = errors.New("empty key")
	// ErrCryptoUnavailable is returned when the HMAC primitive is missing or misconfigured
	ErrCryptoUnavailable = errors.New("crypto unavailable")
	// ErrInvalidTime is returned for instants before the Unix epoch
	ErrInvalidTime = errors.New("time before unix epoch")
)

// Generator computes TOTP codes with fixed parameters: HMAC-SHA1, 30 second step, 6 digits.
// It is a pure function of (key, instant) and is safe for concurrent use.
type Generator struct {
	newHash  func() hash.Hash
	leniency Leniency
}

// Option configures a Generator
type Option func(*Generator)

// WithLeniency selects the Base32 decoding policy used by Generate
func WithLeniency(l Leniency) Option {
	return func(g *Generator) {
		g.leniency = l
	}
}

// WithHash replaces the HMAC hash constructor. Anything other than a 20-byte
// digest makes every generation fail with ErrCryptoUnavailable.
func WithHash(newHash func() hash.Hash) Option {
	return func(g *Generator) {
		g.newHash = newHash
	}
}

// NewGenerator creates a generator with SHA-1 and lenient decoding
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		newHash:  sha1.New,
		leniency: Lenient,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Leniency returns the decoding policy
func (g *Generator) Leniency() Leniency {
	return g.leniency
}

// Generate decodes a Base32 secret and returns the code for the period containing at
func (g *Generator) Generate(secret string, at time.Time) (string, error) {
	key, err := g.leniency.Decode(secret)
	if err != nil {
		return "", err
	}
	return g.GenerateBytes(key, at)
}

// GenerateBytes returns the code for raw key bytes at the given instant
func (g *Generator) GenerateBytes(key []byte, at time.Time) (string, error) {
	period, err := Period(at)
	if err != nil {
		return "", err
	}
	return g.HOTP(key, period)
}

// HOTP computes the RFC 4226 value for a counter, zero-padded to six digits
func (g *Generator) HOTP(key []byte, counter uint64) (string, error) {
	if len(key) == 0 {
		return "", ErrEmptyKey
	}
	if g.newHash == nil {
		return "", fmt.Errorf("%w: no hash constructor", ErrCryptoUnavailable)
	}

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(g.newHash, key)
	if mac.Size() != digestSize {
		return "", fmt.Errorf("%w: digest size %d, want %d", ErrCryptoUnavailable, mac.Size(), digestSize)
	}
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	return format(truncate(sum)), nil
}

// truncate applies RFC 4226 dynamic truncation to a 20-byte digest
func truncate(sum []byte) uint32 {
	offset := sum[len(sum)-1] & 0x0F
	return uint32(sum[offset]&0x7F)<<24 |
		uint32(sum[offset+1])<<16 |
		uint32(sum[offset+2])<<8 |
		uint32(sum[offset+3])
}

func format(binaryCode uint32) string {
	return fmt.Sprintf("%0*d", Digits, binaryCode%modulus)
}

// Period returns floor(unix seconds / 30)
func Period(at time.Time) (uint64, error) {
	sec := at.Unix()
	if sec < 0 {
		return 0, ErrInvalidTime
	}
	return uint64(sec / StepSeconds), nil
}

// PeriodStart returns the first instant of the period containing at
func PeriodStart(at time.Time) time.Time {
	sec := at.Unix()
	return time.Unix(sec-mod(sec, StepSeconds), 0)
}

// SecondsUntilNextPeriod returns 30 - (now mod 30), always in [1,30]
func SecondsUntilNextPeriod(now time.Time) int {
	return StepSeconds - int(mod(now.Unix(), StepSeconds))
}

func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
