// Package qrcode encodes ticket codes into PNG QR images and decodes them
// back from photos.
package qrcode

import (
	"bytes"
	"errors"
	"image"
	_ "image/jpeg" // photos arrive as JPEG
	_ "image/png"
	"strings"

	"github.com/makiuchi-d/gozxing"
	gozxingqr "github.com/makiuchi-d/gozxing/qrcode"
	goqrcode "github.com/skip2/go-qrcode"
)

// ErrNoCode is returned when no QR code can be found in the image.  It is
// not fatal: the caller asks for another photo or a typed code.
var ErrNoCode = errors.New("no QR code found")

// Size is the edge length of generated images in pixels.
const Size = 512

// Encode renders text as a PNG QR code.
func Encode(text string) ([]byte, error) {
	return goqrcode.Encode(text, goqrcode.Medium, Size)
}

// Decode finds a QR code in an image (PNG or JPEG) and returns its text.
func Decode(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", ErrNoCode
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", ErrNoCode
	}
	hints := map[gozxing.DecodeHintType]interface{}{gozxing.DecodeHintType_TRY_HARDER: true}
	res, err := gozxingqr.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", ErrNoCode
	}
	text := strings.TrimSpace(res.GetText())
	if text == "" {
		return "", ErrNoCode
	}
	return text, nil
}
