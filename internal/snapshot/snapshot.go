// Package snapshot handles the camera frames clients attach to detections
// as base64 data URLs.
package snapshot

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Thumbnail width bounds in pixels.
const (
	DefaultThumbnailWidth = 160
	MaxThumbnailWidth     = 1024
)

// MaxPixels caps the decoded size of a snapshot (about 40 megapixels).
const MaxPixels = 40_000_000

var (
	// ErrNotDataURL is returned for strings that are not base64 data URLs.
	ErrNotDataURL = errors.New("not a base64 data URL")
	// ErrDecode is returned when the payload is not a decodable image.
	ErrDecode = errors.New("failed to decode image")
)

// DataURL is a parsed "data:<mime>;base64,<payload>" string.
type DataURL struct {
	MediaType string
	Data      []byte
}

// Parse decodes a base64 data URL. Only the base64 form is accepted,
// which is what canvas.toDataURL produces.
func Parse(s string) (*DataURL, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "data:")
	if !ok {
		return nil, ErrNotDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, ErrNotDataURL
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, ErrNotDataURL
	}
	if mediaType == "" {
		mediaType = "text/plain"
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some encoders drop padding.
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotDataURL, err)
		}
	}
	return &DataURL{MediaType: mediaType, Data: data}, nil
}

// Extension returns a file extension for the media type, defaulting to ".jpg".
func (d *DataURL) Extension() string {
	switch d.MediaType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

// Thumbnail decodes an image and scales it to width, keeping the aspect ratio.
// Images narrower than width are re-encoded without upscaling. Returns JPEG bytes.
func Thumbnail(data []byte, width int) ([]byte, error) {
	if width <= 0 {
		width = DefaultThumbnailWidth
	}
	width = min(width, MaxThumbnailWidth)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecode, cfg.Width, cfg.Height, MaxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, ErrDecode
	}

	if bounds.Dx() > width {
		height := max(1, bounds.Dy()*width/bounds.Dx())
		img = resizeImage(img, width, height)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func resizeImage(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}
