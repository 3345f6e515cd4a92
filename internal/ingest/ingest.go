package ingest

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// MaxImageBytes is the largest accepted image payload.
const MaxImageBytes = 5 * 1024 * 1024

// EncodedImage is an image packaged for transport inside a JSON request body.
type EncodedImage struct {
	MimeType  string
	Data      string // base64
	SizeBytes int
}

// ValidationKind classifies why an image was rejected.
type ValidationKind int

const (
	NotAnImage ValidationKind = iota
	TooLarge
)

type ValidationError struct {
	Kind ValidationKind
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case TooLarge:
		return fmt.Sprintf("image exceeds the %d byte limit", MaxImageBytes)
	default:
		return "file is not an image"
	}
}

// Ingest validates and encodes a user-supplied file. The MIME type is taken
// from the caller when given, otherwise detected from the filename extension
// or the leading bytes.
func Ingest(filename, mimeType string, r io.Reader) (*EncodedImage, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file contents: %w", err)
	}

	// Size is checked first: an oversized file is rejected as TooLarge even
	// when its type is also wrong.
	if len(data) > MaxImageBytes {
		return nil, &ValidationError{Kind: TooLarge}
	}

	if mimeType == "" {
		mimeType = detectMimeType(filename, data)
	}

	if !strings.HasPrefix(mimeType, "image/") {
		return nil, &ValidationError{Kind: NotAnImage}
	}

	return &EncodedImage{
		MimeType:  mimeType,
		Data:      base64.StdEncoding.EncodeToString(data),
		SizeBytes: len(data),
	}, nil
}

// Decode returns the original bytes of an encoded image.
func Decode(img *EncodedImage) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(img.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image payload: %w", err)
	}
	return data, nil
}

func detectMimeType(filename string, data []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(filename)); t != "" {
		return t
	}
	return http.DetectContentType(data)
}
