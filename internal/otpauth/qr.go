package otpauth

import (
	"fmt"

	"github.com/skip2/go-qrcode"

	"otpdeck/internal/fsutil"
)

// DefaultQRSize is the PNG edge length in pixels
const DefaultQRSize = 256

// QRCodePNG writes uri as a PNG QR code to path with mode 0600
func QRCodePNG(uri, path string, size int) error {
	if size <= 0 {
		size = DefaultQRSize
	}
	png, err := qrcode.Encode(uri, qrcode.Medium, size)
	if err != nil {
		return fmt.Errorf("failed to encode qr code: %w", err)
	}
	// The image carries the secret
	return fsutil.AtomicWriteFile(path, png, fsutil.DefaultFilePermissions, nil)
}

// QRCodeTerminal renders uri with half-block characters for a terminal
func QRCodeTerminal(uri string) (string, error) {
	q, err := qrcode.New(uri, qrcode.Low)
	if err != nil {
		return "", fmt.Errorf("failed to encode qr code: %w", err)
	}
	return q.ToSmallString(false), nil
}
