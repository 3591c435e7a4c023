// Package imaging decodes uploaded images and turns them into model input tensors.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	"github.com/mikey/teethanalyzer/internal/core"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels bounds the declared dimensions of an image before its pixels are
// allocated
const DefaultMaxPixels = 40_000_000

var (
	// ErrEmptyImage is returned when no image bytes were supplied
	ErrEmptyImage = errors.New("image is empty")
	// ErrTooManyPixels is returned when the image header declares more pixels than allowed
	ErrTooManyPixels = errors.New("image dimensions exceed the pixel limit")
)

// Decode decodes any supported image format with the default pixel limit
func Decode(data []byte) (image.Image, string, error) {
	return DecodeLimited(data, DefaultMaxPixels)
}

// DecodeLimited decodes any supported image format. The header is checked first so
// that an image declaring more than maxPixels pixels is rejected without allocating
// it; maxPixels <= 0 selects DefaultMaxPixels. Failures are returned as
// *core.DecodeError.
func DecodeLimited(data []byte, maxPixels int) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", &core.DecodeError{Err: ErrEmptyImage}
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", &core.DecodeError{Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", &core.DecodeError{Err: fmt.Errorf("image has zero size %dx%d", cfg.Width, cfg.Height)}
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, "", &core.DecodeError{
			Err: fmt.Errorf("%w: %dx%d, limit %d", ErrTooManyPixels, cfg.Width, cfg.Height, maxPixels),
		}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", &core.DecodeError{Err: err}
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, "", &core.DecodeError{Err: fmt.Errorf("image has zero size %dx%d", b.Dx(), b.Dy())}
	}
	return img, format, nil
}

// DecodeBase64Image accepts plain base64 or a data URL and returns the raw bytes and
// their MIME type. The MIME type comes from the data URL header when present and is
// sniffed from the content otherwise.
func DecodeBase64Image(encoded string) ([]byte, string, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, "", &core.DecodeError{Err: ErrEmptyImage}
	}

	mime := ""
	if strings.HasPrefix(encoded, "data:") {
		header, payload, ok := strings.Cut(encoded, ",")
		if !ok {
			return nil, "", &core.DecodeError{Err: errors.New("malformed data URL")}
		}
		mime = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		encoded = payload
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		// some clients strip padding
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
		if err != nil {
			return nil, "", &core.DecodeError{Err: fmt.Errorf("invalid base64 image: %w", err)}
		}
	}
	if mime == "" {
		mime = SniffMIME(data)
	}
	return data, mime, nil
}

// SniffMIME guesses the MIME type of image bytes, defaulting to image/jpeg
func SniffMIME(data []byte) string {
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "image/jpeg"
	}
	return mime
}

// DataURL encodes bytes as a base64 data URL
func DataURL(data []byte, mime string) string {
	if mime == "" {
		mime = SniffMIME(data)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
