package assistant

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Accepted document media types.
const (
	MediaTypeText = "text/plain"
	MediaTypePDF  = "application/pdf"
)

var pdfMagic = []byte("%PDF-")

var (
	// ErrUnsupportedDocument is returned for documents that are neither plain
	// text nor PDF.
	ErrUnsupportedDocument = errors.New("unsupported document type")
	// ErrEmptyDocument is returned for documents with no content.
	ErrEmptyDocument = errors.New("document is empty")
)

// Document is an uploaded book. Plain text books carry Text; PDF books
// carry the file in Data and are read by the model directly.
type Document struct {
	Name     string
	MIMEType string
	Text     string
	Data     []byte
}

// NewDocument validates an upload. UTF-8 text/plain and application/pdf are
// accepted; an empty or generic binary content type is sniffed from the
// data.
func NewDocument(name, contentType string, data []byte) (Document, error) {
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %q", ErrUnsupportedDocument, contentType)
	}

	switch mediaType {
	case MediaTypePDF:
		if len(bytes.TrimSpace(data)) == 0 {
			return Document{}, ErrEmptyDocument
		}
		if !bytes.HasPrefix(data, pdfMagic) {
			return Document{}, fmt.Errorf("%w: missing PDF header", ErrUnsupportedDocument)
		}
		return Document{Name: name, MIMEType: mediaType, Data: data}, nil

	case MediaTypeText:
		if !utf8.Valid(data) {
			return Document{}, fmt.Errorf("%w: text is not UTF-8", ErrUnsupportedDocument)
		}
		text := strings.TrimPrefix(string(data), "\ufeff")
		if strings.TrimSpace(text) == "" {
			return Document{}, ErrEmptyDocument
		}
		return Document{Name: name, MIMEType: mediaType, Text: text}, nil

	default:
		return Document{}, fmt.Errorf("%w: %s", ErrUnsupportedDocument, mediaType)
	}
}

// IsPDF reports whether the document must be read by the model from the
// attached file rather than from Text.
func (d Document) IsPDF() bool {
	return d.MIMEType == MediaTypePDF
}

// dataURI encodes the attached file for an image_url content part.
func (d Document) dataURI() string {
	return "data:" + d.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(d.Data)
}
