package assistant

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
)

func TestNewDocument(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		data        []byte
		wantErr     error
		wantText    string
	}{
		{"plain", "text/plain", []byte("hello"), nil, "hello"},
		{"plain with charset", "text/plain; charset=utf-8", []byte("नमस्ते"), nil, "नमस्ते"},
		{"sniffed", "", []byte("a story"), nil, "a story"},
		{"generic binary type", "application/octet-stream", []byte("a story"), nil, "a story"},
		{"byte order mark", "text/plain", []byte("\ufeffhello"), nil, "hello"},
		{"pdf", "application/pdf", []byte("%PDF-1.7"), nil, ""},
		{"sniffed pdf", "", []byte("%PDF-1.7\n"), nil, ""},
		{"pdf without header", "application/pdf", []byte("hello"), ErrUnsupportedDocument, ""},
		{"empty pdf", "application/pdf", nil, ErrEmptyDocument, ""},
		{"image", "image/png", []byte("\x89PNG"), ErrUnsupportedDocument, ""},
		{"malformed type", "text/", []byte("x"), ErrUnsupportedDocument, ""},
		{"not utf-8", "text/plain", []byte{0xff, 0xfe, 0x00}, ErrUnsupportedDocument, ""},
		{"blank", "text/plain", []byte(" \n\n "), ErrEmptyDocument, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := NewDocument("book.txt", tt.contentType, tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NewDocument() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && doc.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", doc.Text, tt.wantText)
			}
		})
	}
}

func TestNewDocument_PDFKeepsBytes(t *testing.T) {
	data := []byte("%PDF-1.4\n%scanned pages\n")
	doc, err := NewDocument("book.pdf", "application/pdf", data)
	if err != nil {
		t.Fatalf("NewDocument() error = %v", err)
	}
	if !doc.IsPDF() || doc.MIMEType != MediaTypePDF {
		t.Errorf("MIMEType = %q, want %q", doc.MIMEType, MediaTypePDF)
	}
	if !bytes.Equal(doc.Data, data) {
		t.Error("PDF bytes were not kept")
	}
	if want := "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(data); doc.dataURI() != want {
		t.Errorf("dataURI() = %q, want %q", doc.dataURI(), want)
	}
}

func TestYouTubeSearchURL(t *testing.T) {
	got := YouTubeSearchURL("राम & श्याम")
	want := "https://www.youtube.com/results?search_query=%E0%A4%B0%E0%A4%BE%E0%A4%AE+%26+%E0%A4%B6%E0%A5%8D%E0%A4%AF%E0%A4%BE%E0%A4%AE"
	if got != want {
		t.Errorf("YouTubeSearchURL() = %q, want %q", got, want)
	}
}
