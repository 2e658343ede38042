/*
This file validates and decodes the inline image payloads the client attaches
to messages and profiles: base64 data URLs, capped in size and restricted to
common raster image types.
*/
package storage

import (
	"encoding/base64"
	"strings"

	"talkora/internal/pkg/errs"
)

// MaxImageBytes is the maximum decoded size accepted for an inline image.
const MaxImageBytes = 10 << 20 // 10 MB

// allowedImageTypes lists the MIME types accepted for chat and profile images.
var allowedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
}

// DecodeImageDataURL parses a "data:<mime>;base64,<payload>" string into its
// MIME type and raw bytes. It rejects non-image types and oversized payloads.
func DecodeImageDataURL(dataURL string) (string, []byte, *errs.CustomError) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return "", nil, errs.NewError(errs.ErrImageInvalid)
	}

	mimeType, payload, ok := strings.Cut(rest, ";base64,")
	if !ok {
		return "", nil, errs.NewError(errs.ErrImageInvalid)
	}

	if _, allowed := allowedImageTypes[mimeType]; !allowed {
		return "", nil, errs.NewError(errs.ErrImageInvalid)
	}

	// Reject obviously oversized payloads before decoding. Base64 inflates by
	// 4/3, so this bound slightly overshoots and the decoded check is exact.
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxImageBytes+3 {
		return "", nil, errs.NewError(errs.ErrImageTooLarge)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, errs.NewError(errs.ErrImageInvalid)
	}

	if len(data) == 0 {
		return "", nil, errs.NewError(errs.ErrImageInvalid)
	}
	if len(data) > MaxImageBytes {
		return "", nil, errs.NewError(errs.ErrImageTooLarge)
	}

	return mimeType, data, nil
}

// ImageExtension maps an accepted MIME type to the object key extension.
func ImageExtension(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".bin"
	}
}
