package services

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	_ "image/gif"
	_ "image/png"

	"github.com/desertthunder/mixtape/internal/shared"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const coverQuality = 90

// PrepareCover decodes a base64 or data-URI image and returns JPEG bytes no larger than maxBytes.
//
// A payload whose decoded size is already over maxBytes is rejected without decoding the image.
// A JPEG is returned unchanged. Other formats are re-encoded once and rejected if the JPEG is over maxBytes.
func PrepareCover(payload string, maxBytes int) ([]byte, error) {
	raw, err := decodeCoverPayload(payload)
	if err != nil {
		return nil, err
	}
	if len(raw) > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes, %d allowed", shared.ErrCoverTooLarge, len(raw), maxBytes)
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: cover is not a supported image: %v", shared.ErrInvalidInput, err)
	}
	if format == "jpeg" {
		return raw, nil
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: coverQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode cover: %w", err)
	}
	if buf.Len() > maxBytes {
		return nil, fmt.Errorf("%w: %s converted to %d bytes of jpeg, %d allowed", shared.ErrCoverTooLarge, format, buf.Len(), maxBytes)
	}
	return buf.Bytes(), nil
}

func decodeCoverPayload(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "data:") {
		_, data, ok := strings.Cut(payload, ",")
		if !ok {
			return nil, fmt.Errorf("%w: malformed data URI", shared.ErrInvalidInput)
		}
		payload = data
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		if raw, err = base64.RawStdEncoding.DecodeString(payload); err != nil {
			return nil, fmt.Errorf("%w: cover is not valid base64", shared.ErrInvalidInput)
		}
	}
	return raw, nil
}
