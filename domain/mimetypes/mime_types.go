package mimetypes

import (
	"mime"

	"github.com/gabriel-vasile/mimetype"
)

// MIME is a media type without its parameters
type MIME string

const (
	Unknown                MIME = "unknown"
	TextPlain              MIME = "text/plain"
	ApplicationPDF         MIME = "application/pdf"
	ApplicationOctetStream MIME = "application/octet-stream"
	ImagePNG               MIME = "image/png"
)

// Detect sniffs the media type from the first bytes of a file.
// An empty payload has no media type.
func Detect(payload []byte) string {
	if len(payload) == 0 {
		return ""
	}
	return mimetype.Detect(payload).String()
}

// Essence drops the parameters of a detected media type
func Essence(detected string) MIME {
	mt, _, err := mime.ParseMediaType(detected)
	if err != nil {
		return Unknown
	}
	return MIME(mt)
}
