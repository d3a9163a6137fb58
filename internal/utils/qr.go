package utils

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// RenderQRCode renders a QR credential value as a PNG for printing or
// on-screen display
func RenderQRCode(value string, size int) ([]byte, error) {
	if value == "" {
		return nil, fmt.Errorf("qr code value is empty")
	}
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(value, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to render qr code: %w", err)
	}
	return png, nil
}
