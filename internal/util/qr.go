package util

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const qrImageSize = 300

// RenderQRPNG renders a QR payload as a PNG image.
func RenderQRPNG(payload string) ([]byte, error) {
	png, err := qrcode.Encode(payload, qrcode.Medium, qrImageSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

// RenderQRDataURL renders a QR payload as a data URL usable in an <img> tag.
func RenderQRDataURL(payload string) (string, error) {
	png, err := RenderQRPNG(payload)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// DecodeQRDataURL returns the PNG bytes of a data URL produced by RenderQRDataURL.
func DecodeQRDataURL(dataURL string) ([]byte, error) {
	const prefix = "data:image/png;base64,"
	if len(dataURL) <= len(prefix) || dataURL[:len(prefix)] != prefix {
		return nil, fmt.Errorf("not a png data url")
	}
	return base64.StdEncoding.DecodeString(dataURL[len(prefix):])
}
