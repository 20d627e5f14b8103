// Package qrcode renders PNG QR codes.
package qrcode

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/skip2/go-qrcode"
)

// DefaultSize is the edge length in pixels used when size is zero.
const DefaultSize = 256

var (
	ErrEmptyContent = errors.New("qrcode: empty content")
	ErrInvalidSize  = errors.New("qrcode: size must be between 64 and 2048 pixels")
)

// Generate encodes content as a PNG with medium error correction.
func Generate(content string, size int) ([]byte, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}
	if size == 0 {
		size = DefaultSize
	}
	if size < 64 || size > 2048 {
		return nil, ErrInvalidSize
	}
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("qrcode: encode: %w", err)
	}
	return png, nil
}

// GenerateBase64Image returns the PNG as a data URI.
func GenerateBase64Image(content string, size int) (string, error) {
	png, err := Generate(content, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
