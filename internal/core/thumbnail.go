package core

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"strings"

	_ "image/jpeg"
	_ "image/png"
)

const (
	// Thumbnails are small periodic stills, not uploads.
	maxThumbnailBytes = 512 << 10
	maxThumbnailEdge  = 1280
)

var (
	ErrThumbnailTooLarge  = errors.New("thumbnail too large")
	ErrThumbnailMalformed = errors.New("thumbnail is not a decodable image")
)

// DecodeThumbnail turns the client-supplied base64 blob (with or without a
// data-URI prefix) into raw image bytes, rejecting anything that is not a
// reasonably sized jpeg or png still.
func DecodeThumbnail(encoded string) ([]byte, error) {
	if idx := strings.Index(encoded, "base64,"); idx >= 0 {
		encoded = encoded[idx+len("base64,"):]
	}

	if base64.StdEncoding.DecodedLen(len(encoded)) > maxThumbnailBytes {
		return nil, ErrThumbnailTooLarge
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrThumbnailMalformed
	}
	if len(raw) > maxThumbnailBytes {
		return nil, ErrThumbnailTooLarge
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, ErrThumbnailMalformed
	}
	if cfg.Width > maxThumbnailEdge || cfg.Height > maxThumbnailEdge {
		return nil, ErrThumbnailTooLarge
	}

	return raw, nil
}
