package confirm

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"sentrycam-go/internal/platform/errors"
)

// PayloadValidator rejects frames that would be wasted or abusive model
// calls before any tokens are spent.
type PayloadValidator struct {
	maxSize   int64
	maxWidth  int
	maxHeight int
}

// NewPayloadValidator creates a validator with the given byte limit.
// Dimension limits guard against decompression bombs.
func NewPayloadValidator(maxSize int64) *PayloadValidator {
	if maxSize <= 0 {
		maxSize = 5 * 1024 * 1024
	}
	return &PayloadValidator{
		maxSize:   maxSize,
		maxWidth:  8192,
		maxHeight: 8192,
	}
}

// Validate checks size, magic bytes, and decoded dimensions.
func (v *PayloadValidator) Validate(data []byte) error {
	const op = "confirm.PayloadValidator.Validate"

	if len(data) == 0 {
		return errors.New(errors.KindConfirm, op, "empty image payload")
	}
	if int64(len(data)) > v.maxSize {
		return errors.New(errors.KindConfirm, op,
			fmt.Sprintf("image payload %d bytes exceeds limit %d", len(data), v.maxSize))
	}

	format := sniffFormat(data)
	if format == "" {
		return errors.New(errors.KindConfirm, op, "unrecognized image format")
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(errors.KindConfirm, op, "decode image header", err)
	}
	if cfg.Width > v.maxWidth || cfg.Height > v.maxHeight {
		return errors.New(errors.KindConfirm, op,
			fmt.Sprintf("image dimensions %dx%d exceed limit", cfg.Width, cfg.Height))
	}

	return nil
}

// sniffFormat identifies the image type from its magic bytes.
func sniffFormat(data []byte) string {
	switch {
	case len(data) >= 3 && bytes.Equal(data[:3], []byte{0xFF, 0xD8, 0xFF}):
		return "jpeg"
	case len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return "png"
	case len(data) >= 6 && (bytes.Equal(data[:6], []byte("GIF87a")) || bytes.Equal(data[:6], []byte("GIF89a"))):
		return "gif"
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "webp"
	default:
		return ""
	}
}
