package media

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"leadbot_backend/platform/apperr"
	"leadbot_backend/platform/config"
	"leadbot_backend/platform/logger"
)

func TestPresentationBase64FromLocalFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("%PDF-1.4 fake")
	if err := os.WriteFile(filepath.Join(dir, "apresentacao.pdf"), content, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg := &config.Config{
		MaterialsDir:        dir,
		PresentationFile:    "apresentacao.pdf",
		PresentationCaption: "Segue o material",
	}
	m, err := New(cfg, logger.New("development"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := m.PresentationBase64(context.Background())
	if err != nil {
		t.Fatalf("PresentationBase64: %v", err)
	}
	if got != base64.StdEncoding.EncodeToString(content) {
		t.Fatalf("unexpected base64 payload")
	}
	if m.Filename() != "apresentacao.pdf" || m.Caption() != "Segue o material" {
		t.Fatalf("accessors wrong: %q %q", m.Filename(), m.Caption())
	}
}

func TestPresentationBase64Caches(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "apresentacao.pdf")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg := &config.Config{MaterialsDir: dir, PresentationFile: "apresentacao.pdf"}
	m, err := New(cfg, logger.New("development"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first, err := m.PresentationBase64(context.Background())
	if err != nil {
		t.Fatalf("first load: %v", err)
	}

	// Removing the file must not affect subsequent reads.
	os.Remove(path)
	second, err := m.PresentationBase64(context.Background())
	if err != nil {
		t.Fatalf("cached load: %v", err)
	}
	if first != second {
		t.Fatalf("cache returned different payload")
	}
}

func TestPresentationBase64Missing(t *testing.T) {
	cfg := &config.Config{MaterialsDir: t.TempDir(), PresentationFile: "nope.pdf"}
	m, err := New(cfg, logger.New("development"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = m.PresentationBase64(context.Background())
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}
