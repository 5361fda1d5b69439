package otp

import (
	"bytes"
	"encoding/base32"
	"errors"
	"strings"
	"testing"
)

func TestDecode_RFC4648Vectors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"MY======", "f"},
		{"MZXQ====", "fo"},
		{"MZXW6===", "foo"},
		{"MZXW6YQ=", "foob"},
		{"MZXW6YTB", "fooba"},
		{"MZXW6YTBOI======", "foobar"},
		{"mzxw6ytboi", "foobar"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Decode(tt.input)
			if string(got) != tt.want {
				t.Errorf("Decode(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDecode_OutputLength(t *testing.T) {
	tests := []struct {
		input   string
		wantLen int
	}{
		{"A", 0},
		{"AB", 1},
		{"ABC", 1},
		{"ABCD", 2},
		{"ABCDEFGH", 5},
		{"GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ", 20},
		{"GIO32ZTF6KSJKNBG", 10},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := len(Decode(tt.input)); got != tt.wantLen {
				t.Errorf("len(Decode(%q)) = %d, want %d", tt.input, got, tt.wantLen)
			}
		})
	}
}

func TestDecode_LenientIgnoresNoise(t *testing.T) {
	clean := "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"
	want := Decode(clean)

	noisy := []string{
		"GEZD GNBV GY3T QOJQ GEZD GNBV GY3T QOJQ",
		"gezd-gnbv-gy3t-qojq-gezd-gnbv-gy3t-qojq",
		"\tGEZDGNBVGY3TQOJQ\nGEZDGNBVGY3TQOJQ  ",
		"GEZDGNBV1GY3TQOJQ8GEZDGNBV0GY3TQOJQ9",
		"GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ====",
		"GE*ZD.GN_BV/GY3TQOJQGEZDGNBVGY3TQOJQ",
	}

	for _, input := range noisy {
		t.Run(input, func(t *testing.T) {
			if got := Decode(input); !bytes.Equal(got, want) {
				t.Errorf("Decode(%q) = %x, want %x", input, got, want)
			}
		})
	}
}

func TestDecode_FullyInvalidYieldsEmpty(t *testing.T) {
	for _, input := range []string{"", "====", "0189", "!!!", "   "} {
		if got := Decode(input); len(got) != 0 {
			t.Errorf("Decode(%q) = %x, want empty", input, got)
		}
	}
}

func TestDecodeStrict(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "JBSWY3DPEHPK3PXP", false},
		{"lowercase", "jbswy3dpehpk3pxp", false},
		{"padded", "MZXW6===", false},
		{"grouped with spaces", "JBSW Y3DP EHPK 3PXP", false},
		{"digit outside alphabet", "JBSWY3DPEHPK3PX1", true},
		{"dash separators", "JBSW-Y3DP", true},
		{"padding in the middle", "MZ=XW6", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeStrict(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSecretFormat) {
					t.Fatalf("DecodeStrict(%q) error = %v, want ErrInvalidSecretFormat", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeStrict(%q) unexpected error: %v", tt.input, err)
			}
			if want := Decode(tt.input); !bytes.Equal(got, want) {
				t.Errorf("DecodeStrict(%q) = %x, lenient gives %x", tt.input, got, want)
			}
		})
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	inputs := [][]byte{
		{},
		{0x00},
		{0xff},
		[]byte("f"),
		[]byte("foobar"),
		[]byte("12345678901234567890"),
		{0x3d, 0xc6, 0xca, 0xa4, 0x82, 0x4a, 0x6d, 0x28, 0x87, 0x67, 0xb2, 0x33, 0x1e, 0x20, 0xb4, 0x31, 0x66, 0xcb, 0x85, 0xd9},
	}

	for _, in := range inputs {
		encoded := Encode(in)

		want := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(in)
		if encoded != want {
			t.Errorf("Encode(%x) = %q, want %q", in, encoded, want)
		}

		decoded, err := DecodeStrict(encoded)
		if err != nil {
			t.Fatalf("DecodeStrict(%q) error = %v", encoded, err)
		}
		if !bytes.Equal(decoded, in) {
			t.Errorf("round trip of %x gave %x", in, decoded)
		}
	}
}

func TestEncode_KnownSecret(t *testing.T) {
	if got := Encode([]byte("12345678901234567890")); got != "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ" {
		t.Errorf("Encode() = %q", got)
	}
}

func TestLeniency(t *testing.T) {
	if !Lenient.IsValid() || !Strict.IsValid() {
		t.Error("expected lenient and strict to be valid")
	}
	if Leniency("loose").IsValid() {
		t.Error("expected unknown policy to be invalid")
	}

	if _, err := Lenient.Decode("JBSW-Y3DP"); err != nil {
		t.Errorf("lenient Decode() error = %v", err)
	}
	if _, err := Strict.Decode("JBSW-Y3DP"); !errors.Is(err, ErrInvalidSecretFormat) {
		t.Errorf("strict Decode() error = %v, want ErrInvalidSecretFormat", err)
	}
}

func TestNormalizeSecret(t *testing.T) {
	got := NormalizeSecret(" jbsw y3dp\tehpk\n3pxp ")
	if got != "jbswy3dpehpk3pxp" {
		t.Errorf("NormalizeSecret() = %q", got)
	}
	if strings.ContainsAny(got, " \t\n") {
		t.Error("whitespace survived normalization")
	}
}
