package storage

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

var pdfMagic = []byte("%PDF")

// PDFStore keeps downloaded invoice PDFs on the local filesystem, one file
// per invoice id. Files double as an idempotent download cache: an existing
// non-empty file is served instead of re-downloading. Writes are sequential
// (single sync run or single webhook event), so no locking is needed.
type PDFStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewPDFStore creates the store and its base directory.
func NewPDFStore(baseDir string, logger *zap.Logger) (*PDFStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("pdf storage directory is required")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create pdf storage directory: %w", err)
	}
	return &PDFStore{baseDir: baseDir, logger: logger}, nil
}

// Path returns the deterministic local filename for an invoice id.
func (s *PDFStore) Path(invoiceID string) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("invoice_%s.pdf", invoiceID))
}

// CachedPath returns the stored path for the invoice if a non-empty file is
// already present.
func (s *PDFStore) CachedPath(invoiceID string) (string, bool) {
	path := s.Path(invoiceID)
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return "", false
	}
	return path, true
}

// Save validates and writes PDF content for the invoice, returning the local
// path. Content that does not start with the PDF magic bytes is rejected.
func (s *PDFStore) Save(invoiceID string, content []byte) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("empty pdf content for invoice %s", invoiceID)
	}
	if !LooksLikePDF(content) {
		return "", fmt.Errorf("content for invoice %s is not a pdf", invoiceID)
	}

	path := s.Path(invoiceID)
	if err := s.validatePath(path); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		s.logger.Error("failed to write pdf",
			zap.String("path", path),
			zap.Error(err))
		return "", fmt.Errorf("failed to write pdf: %w", err)
	}

	s.logger.Debug("pdf saved",
		zap.String("invoice_id", invoiceID),
		zap.String("path", path),
		zap.Int("size", len(content)))
	return path, nil
}

// validatePath confines writes to the base directory. Invoice ids come from
// an external API, so a traversal attempt in an id must not escape.
func (s *PDFStore) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("path escapes storage directory: %s", fullPath)
	}
	return nil
}

// LooksLikePDF reports whether content starts with the %PDF magic bytes.
func LooksLikePDF(content []byte) bool {
	return bytes.HasPrefix(content, pdfMagic)
}
