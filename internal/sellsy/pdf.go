package sellsy

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// DownloadPDF retrieves the invoice PDF and returns its local path. The
// local store acts as a cache: an existing non-empty file short-circuits the
// download. A direct URL discovered in the invoice detail is tried first,
// then the document-link endpoint. The store rejects content that fails the
// %PDF magic-byte check, so an HTML error page never lands on disk.
func (c *Client) DownloadPDF(ctx context.Context, invoiceID, directURL string) (string, error) {
	if invoiceID == "" {
		return "", fmt.Errorf("invoice id is required")
	}
	if c.store == nil {
		return "", fmt.Errorf("pdf storage is not configured")
	}

	if path, ok := c.store.CachedPath(invoiceID); ok {
		c.logger.Debug("pdf already downloaded",
			zap.String("invoice_id", invoiceID),
			zap.String("path", path))
		return path, nil
	}

	pdfURL := directURL
	if pdfURL == "" {
		link, err := c.documentLink(ctx, invoiceID)
		if err != nil {
			return "", fmt.Errorf("no pdf source for invoice %s: %w", invoiceID, err)
		}
		pdfURL = link
	}

	content, err := c.do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, pdfURL, nil)
	})
	if err != nil {
		return "", fmt.Errorf("pdf download failed for invoice %s: %w", invoiceID, err)
	}

	path, err := c.store.Save(invoiceID, content)
	if err != nil {
		return "", err
	}
	c.logger.Info("pdf downloaded",
		zap.String("invoice_id", invoiceID),
		zap.String("path", path),
		zap.Int("size", len(content)))
	return path, nil
}
