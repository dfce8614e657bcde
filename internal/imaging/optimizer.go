// Package imaging normalizes inline gathering photos: oversized images are
// scaled down to a bounded width and recompressed as JPEG before persistence.
package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Options bound the normalized output.
type Options struct {
	MaxWidth    int
	JPEGQuality int
}

// DefaultOptions matches the storage budget of the live write path.
func DefaultOptions() Options {
	return Options{MaxWidth: 500, JPEGQuality: 80}
}

// IsInline reports whether the stored photo value is an inline encoded image
// rather than an uploaded-file path.
func IsInline(photo string) bool {
	return photo != "" && !strings.HasPrefix(photo, "/")
}

// NormalizeBase64 decodes a base64 photo (with or without a data URL prefix),
// scales it down to opts.MaxWidth if wider, re-encodes it as JPEG and returns
// it as a "data:image/jpeg;base64," string.
//
// Callers treat any error as non-fatal and keep the original value; a broken
// photo must never abort the gathering write.
func NormalizeBase64(photo string, opts Options) (string, error) {
	raw, err := decodePayload(photo)
	if err != nil {
		return "", err
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("not a recognizable image: %w", err)
	}

	img = scaleToWidth(img, opts.MaxWidth)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: opts.JPEGQuality}); err != nil {
		return "", fmt.Errorf("failed to encode jpeg: %w", err)
	}

	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// decodePayload strips an optional "data:image/...;base64," prefix and
// decodes the remaining base64 payload.
func decodePayload(photo string) ([]byte, error) {
	payload := photo
	if strings.HasPrefix(photo, "data:") {
		idx := strings.Index(photo, ",")
		if idx < 0 {
			return nil, fmt.Errorf("malformed data URL")
		}
		payload = photo[idx+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty image payload")
	}
	return raw, nil
}

// scaleToWidth downscales img to maxWidth preserving aspect ratio. Images at
// or below the bound are returned untouched; photos are never enlarged.
func scaleToWidth(img image.Image, maxWidth int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	if maxWidth <= 0 || width <= maxWidth {
		return img
	}

	height := bounds.Dy() * maxWidth / width
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}
