// Package extract converts uploaded study material into plain text.
// Dispatch is keyed on the MIME type declared by the upload, not the file
// extension, since browser uploads carry a Content-Type per part.
package extract

import (
	"fmt"
)

// MIME types accepted by the ingestion pipeline.
const (
	MimePDF   = "application/pdf"
	MimePlain = "text/plain"
	MimeDoc   = "application/msword"
	MimeDocx  = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeXlsx  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// UnsupportedTypeError reports a MIME type no extractor handles.
type UnsupportedTypeError struct {
	MimeType string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported file type: %s", e.MimeType)
}

// Extractor extracts plain text from uploaded document bytes.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Supported reports whether mimeType has an extractor.
func (e *Extractor) Supported(mimeType string) bool {
	switch mimeType {
	case MimePDF, MimePlain, MimeDoc, MimeDocx, MimeXlsx:
		return true
	}
	return false
}

// ExtractBytes extracts text from content based on its MIME type.
// Legacy .doc files are accepted for upload but only the OOXML container
// variant can be decoded; a genuine binary .doc fails with a zip error.
func (e *Extractor) ExtractBytes(content []byte, mimeType string) (string, error) {
	switch mimeType {
	case MimePDF:
		return extractPDF(content)
	case MimePlain:
		return extractPlain(content)
	case MimeDoc, MimeDocx:
		return extractWord(content)
	case MimeXlsx:
		return extractExcel(content)
	default:
		return "", &UnsupportedTypeError{MimeType: mimeType}
	}
}
