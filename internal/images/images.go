package images

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxImageSize bounds reference images fetched or decoded from requests
const MaxImageSize = 10 * 1024 * 1024

var (
	// ErrNotImage is returned when decoded content is not an image
	ErrNotImage = errors.New("content is not an image")

	// ErrImageTooLarge is returned when an image exceeds MaxImageSize
	ErrImageTooLarge = fmt.Errorf("image too large (max %d bytes)", MaxImageSize)
)

// Image is decoded binary image content with its MIME type
type Image struct {
	MIMEType string
	Data     []byte
}

// New wraps raw bytes, sniffing the MIME type from the content
func New(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image data")
	}
	if len(data) > MaxImageSize {
		return nil, ErrImageTooLarge
	}
	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, fmt.Errorf("%w: detected %s", ErrNotImage, mtype.String())
	}
	return &Image{MIMEType: baseMIME(mtype.String()), Data: data}, nil
}

// FromBase64 decodes a base64 payload. An empty MIME type is sniffed from the content.
func FromBase64(mimeType, payload string) (*Image, error) {
	payload = strings.TrimSpace(payload)
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxImageSize+2 {
		return nil, ErrImageTooLarge
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 image: %w", err)
	}
	if mimeType == "" {
		return New(data)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image data")
	}
	if len(data) > MaxImageSize {
		return nil, ErrImageTooLarge
	}
	return &Image{MIMEType: baseMIME(mimeType), Data: data}, nil
}

// ParseDataURI decodes a "data:<mime>;base64,<payload>" URI
func ParseDataURI(uri string) (*Image, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, fmt.Errorf("not a data URI")
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URI: missing payload separator")
	}
	mimeType, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return nil, fmt.Errorf("unsupported data URI encoding, only base64 is accepted")
	}
	return FromBase64(mimeType, payload)
}

// DataURI re-encodes the image as a base64 data URI
func (img *Image) DataURI() string {
	return "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// Base64 returns the standard base64 encoding of the image bytes
func (img *Image) Base64() string {
	return base64.StdEncoding.EncodeToString(img.Data)
}

// Extension returns a file extension (with dot) suitable for the image
func (img *Image) Extension() string {
	if m := mimetype.Lookup(img.MIMEType); m != nil {
		return m.Extension()
	}
	return ".bin"
}

func baseMIME(m string) string {
	if i := strings.Index(m, ";"); i >= 0 {
		m = m[:i]
	}
	return strings.TrimSpace(strings.ToLower(m))
}
