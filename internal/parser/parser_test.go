package parser

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtractText_TXT(t *testing.T) {
	path := writeFile(t, "doc.txt", []byte("plain text content"))

	text, err := ExtractText(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "plain text content" {
		t.Errorf("got %q", text)
	}
}

func TestExtractText_UnsupportedFormat(t *testing.T) {
	path := writeFile(t, "image.png", []byte{0x89, 0x50})

	_, err := ExtractText(path)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestExtractText_Markdown(t *testing.T) {
	path := writeFile(t, "notes.md", []byte("# Title\n\nSome **bold** body text.\n"))

	text, err := ExtractText(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "Title") || !strings.Contains(text, "bold") {
		t.Errorf("expected markdown text content, got %q", text)
	}
	if strings.Contains(text, "<h1>") || strings.Contains(text, "**") {
		t.Errorf("expected markup to be stripped, got %q", text)
	}
}

func TestDecodeText_UTF8(t *testing.T) {
	if got := DecodeText([]byte("héllo")); got != "héllo" {
		t.Errorf("got %q", got)
	}
}

func TestDecodeText_Latin1Fallback(t *testing.T) {
	// 0xE9 is 'é' in Latin-1 and invalid as a standalone UTF-8 byte.
	got := DecodeText([]byte{'c', 'a', 'f', 0xE9})
	if got != "café" {
		t.Errorf("expected latin-1 fallback to yield café, got %q", got)
	}
}
