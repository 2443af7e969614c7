package syncer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sellsync/supplier-invoice-sync/internal/models"
	"github.com/sellsync/supplier-invoice-sync/internal/normalize"
)

// InvoiceSource lists and resolves supplier invoices upstream.
type InvoiceSource interface {
	ListSupplierInvoices(ctx context.Context, limit, days int) ([]models.RawInvoice, error)
	GetSupplierInvoice(ctx context.Context, invoiceID string) (models.RawInvoice, error)
	DownloadPDF(ctx context.Context, invoiceID, directURL string) (string, error)
}

// InvoiceSink persists normalized invoices downstream.
type InvoiceSink interface {
	Upsert(ctx context.Context, invoice *models.CanonicalInvoice, pdfPath string) (string, error)
}

const (
	defaultBatchSize = 10
	defaultCooldown  = 2 * time.Second
	defaultListLimit = 1000
)

// Syncer drives the list, normalize, download, upsert pipeline. Each invoice
// is processed in isolation: a failure or panic on one never stops the run.
type Syncer struct {
	source     InvoiceSource
	sink       InvoiceSink
	normalizer *normalize.Normalizer
	logger     *zap.Logger

	batchSize int
	cooldown  time.Duration
	sleep     func(time.Duration)
}

// NewSyncer creates a sync pipeline.
func NewSyncer(source InvoiceSource, sink InvoiceSink, normalizer *normalize.Normalizer, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{
		source:     source,
		sink:       sink,
		normalizer: normalizer,
		logger:     logger,
		batchSize:  defaultBatchSize,
		cooldown:   defaultCooldown,
		sleep:      time.Sleep,
	}
}

// Run syncs all supplier invoices issued within the last days days and
// reports the tally. The listing itself failing is the only fatal error.
func (s *Syncer) Run(ctx context.Context, days int) (*models.SyncReport, error) {
	invoices, err := s.source.ListSupplierInvoices(ctx, defaultListLimit, days)
	if err != nil && len(invoices) == 0 {
		return nil, fmt.Errorf("listing supplier invoices failed: %w", err)
	}
	if err != nil {
		s.logger.Warn("listing was partial, syncing retrieved invoices", zap.Error(err))
	}

	report := &models.SyncReport{Total: len(invoices)}
	s.logger.Info("sync run started",
		zap.Int("invoices", len(invoices)),
		zap.Int("days", days))

	for i, raw := range invoices {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.processOne(ctx, raw); err != nil {
			report.Errors++
			s.logger.Error("invoice sync failed",
				zap.String("invoice_id", normalize.ResolveString(raw, "id", "docid", "ident")),
				zap.Error(err))
		} else {
			report.Succeeded++
		}
		// Pause between batches so the upstream rate limiter stays quiet.
		if (i+1)%s.batchSize == 0 && i+1 < len(invoices) {
			s.sleep(s.cooldown)
		}
	}

	s.logger.Info("sync run finished",
		zap.Int("total", report.Total),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("errors", report.Errors))
	return report, nil
}

// SyncOne syncs a single invoice by its upstream id. Used by the webhook
// handler.
func (s *Syncer) SyncOne(ctx context.Context, invoiceID string) error {
	if invoiceID == "" {
		return fmt.Errorf("invoice id is required")
	}
	raw, err := s.source.GetSupplierInvoice(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("fetching invoice %s failed: %w", invoiceID, err)
	}
	return s.processOne(ctx, raw)
}

// processOne runs the full pipeline for one invoice. Panics from malformed
// payloads are converted into errors so the batch keeps going.
func (s *Syncer) processOne(ctx context.Context, raw models.RawInvoice) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing invoice: %v", r)
		}
	}()

	raw = s.withDetail(ctx, raw)

	invoice, err := s.normalizer.Normalize(raw)
	if err != nil {
		return fmt.Errorf("normalization failed: %w", err)
	}

	pdfPath, err := s.source.DownloadPDF(ctx, invoice.InvoiceID, invoice.PDFURL)
	if err != nil {
		// A missing document is not fatal; the record still syncs.
		s.logger.Warn("pdf download failed, syncing without attachment",
			zap.String("invoice_id", invoice.InvoiceID),
			zap.Error(err))
		pdfPath = ""
	}

	if _, err := s.sink.Upsert(ctx, invoice, pdfPath); err != nil {
		return fmt.Errorf("upsert failed: %w", err)
	}
	return nil
}

// withDetail swaps a listing summary for the full detail payload when one
// can be fetched. The summary is kept on failure, it already normalizes.
func (s *Syncer) withDetail(ctx context.Context, raw models.RawInvoice) models.RawInvoice {
	invoiceID := normalize.ResolveString(raw, "id", "docid", "ident")
	if invoiceID == "" {
		return raw
	}
	detail, err := s.source.GetSupplierInvoice(ctx, invoiceID)
	if err != nil {
		s.logger.Debug("detail fetch failed, using listing payload",
			zap.String("invoice_id", invoiceID),
			zap.Error(err))
		return raw
	}
	return detail
}
