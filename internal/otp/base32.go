package otp

import (
	"fmt"
	"strings"
	"unicode"
)

// Alphabet is the RFC 4648 Base32 alphabet
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

// Leniency selects how malformed secrets are treated
type Leniency string

const (
	// Lenient skips characters outside the alphabet
	Lenient Leniency = "lenient"
	// Strict rejects secrets containing characters outside the alphabet
	Strict Leniency = "strict"
)

// IsValid reports whether l is a known policy
func (l Leniency) IsValid() bool {
	return l == Lenient || l == Strict
}

// Decode converts a secret to key bytes using the policy's decoder
func (l Leniency) Decode(text string) ([]byte, error) {
	if l == Strict {
		return DecodeStrict(text)
	}
	return Decode(text), nil
}

var decodeMap = func() [256]int8 {
	var m [256]int8
	for i := range m {
		m[i] = -1
	}
	for i := 0; i < len(Alphabet); i++ {
		m[Alphabet[i]] = int8(i)
	}
	return m
}()

// Decode is the lenient Base32 decoder. Trailing '=' padding is stripped, the
// input is upper-cased, and any byte outside the alphabet is skipped. A trailing
// partial byte is discarded, so the output is floor(5*valid/8) bytes long.
func Decode(text string) []byte {
	out, _ := decode(text)
	return out
}

// DecodeStrict behaves like Decode but fails with ErrInvalidSecretFormat when any
// non-whitespace character falls outside the alphabet.
func DecodeStrict(text string) ([]byte, error) {
	out, skipped := decode(stripSpace(text))
	if skipped > 0 {
		return nil, fmt.Errorf("%w: %d invalid character(s)", ErrInvalidSecretFormat, skipped)
	}
	return out, nil
}

func decode(text string) ([]byte, int) {
	text = strings.ToUpper(strings.TrimRight(text, "="))

	out := make([]byte, 0, len(text)*5/8)
	var value uint32
	bits := 0
	skipped := 0

	for i := 0; i < len(text); i++ {
		idx := decodeMap[text[i]]
		if idx < 0 {
			skipped++
			continue
		}
		value = value<<5 | uint32(idx)
		bits += 5
		if bits >= 8 {
			bits -= 8
			out = append(out, byte(value>>uint(bits)))
		}
		// keep only the bits not yet emitted
		value &= 1<<uint(bits) - 1
	}

	return out, skipped
}

// Encode renders data as unpadded Base32
func Encode(data []byte) string {
	var b strings.Builder
	b.Grow((len(data)*8 + 4) / 5)

	var value uint32
	bits := 0
	for _, c := range data {
		value = value<<8 | uint32(c)
		bits += 8
		for bits >= 5 {
			bits -= 5
			b.WriteByte(Alphabet[(value>>uint(bits))&0x1F])
		}
		value &= 1<<uint(bits) - 1
	}
	if bits > 0 {
		b.WriteByte(Alphabet[(value<<uint(5-bits))&0x1F])
	}

	return b.String()
}

// NormalizeSecret strips all whitespace from user input
func NormalizeSecret(secret string) string {
	return stripSpace(secret)
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
