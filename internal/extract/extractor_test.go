package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestExtractBytes_plain(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte("Hello world\nLine 2"), MimePlain)
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Hello world\nLine 2" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_plainInvalidUTF8(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte("hello\x80world"), MimePlain)
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "hello�world" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_unsupportedType(t *testing.T) {
	e := NewExtractor()
	_, err := e.ExtractBytes([]byte("<html>"), "text/html")
	var unsupported *UnsupportedTypeError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedTypeError, got %v", err)
	}
	if unsupported.MimeType != "text/html" {
		t.Errorf("got %q", unsupported.MimeType)
	}
}

func TestSupported(t *testing.T) {
	e := NewExtractor()
	for _, mt := range []string{MimePDF, MimePlain, MimeDoc, MimeDocx, MimeXlsx} {
		if !e.Supported(mt) {
			t.Errorf("expected %s to be supported", mt)
		}
	}
	if e.Supported("image/png") {
		t.Error("image/png should not be supported")
	}
}

func buildWordDoc(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractBytes_word(t *testing.T) {
	doc := buildWordDoc(t, `<w:document><w:body><w:p w:rsidR="0"><w:r><w:t>First run</w:t></w:r><w:r><w:t xml:space="preserve">second run</w:t></w:r></w:p></w:body></w:document>`)
	e := NewExtractor()
	got, err := e.ExtractBytes(doc, MimeDocx)
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "First run second run" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_wordNotAZip(t *testing.T) {
	e := NewExtractor()
	// A legacy binary .doc is not an OOXML container.
	_, err := e.ExtractBytes([]byte{0xD0, 0xCF, 0x11, 0xE0}, MimeDoc)
	if err == nil {
		t.Fatal("expected error for non-zip word document")
	}
}

func TestExtractBytes_excel(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Title")
	f.SetCellValue("Sheet1", "A2", "Value 1")
	f.SetCellValue("Sheet1", "B2", "Value 2")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	e := NewExtractor()
	got, err := e.ExtractBytes(buf.Bytes(), MimeXlsx)
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Title\nValue 1\tValue 2" {
		t.Errorf("got %q", got)
	}
}
