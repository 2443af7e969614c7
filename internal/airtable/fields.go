package airtable

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/sellsync/supplier-invoice-sync/internal/models"
)

// Table column names. The table uses French labels because it is consumed by
// the accounting team.
const (
	fieldInvoiceID    = "ID_Facture_Fournisseur"
	fieldReference    = "Numéro"
	fieldDate         = "Date"
	fieldDateInferred = "Date_Estimée"
	fieldSupplierName = "Fournisseur"
	fieldSupplierID   = "ID_Fournisseur_Sellsy"
	fieldAmountExcl   = "Montant_HT"
	fieldAmountIncl   = "Montant_TTC"
	fieldStatus       = "Statut"
	fieldSourceURL    = "URL"
	fieldPDFURL       = "PDF_URL"
	fieldAttachment   = "PDF"
	fieldCustomNumber = "Numéro_Custom"
	fieldLinkedID     = "ID_Client_Lié"
	fieldLinkedName   = "Client_Lié"
)

// maxAttachmentSize is Airtable's limit for inline data-URL uploads. Larger
// documents are referenced by URL only.
const maxAttachmentSize = 5 * 1024 * 1024

// recordFields maps a canonical invoice onto table columns. Only columns the
// pipeline owns are included, so a PATCH never touches hand-maintained ones.
func recordFields(invoice *models.CanonicalInvoice) map[string]interface{} {
	fields := map[string]interface{}{
		fieldInvoiceID:    invoice.InvoiceID,
		fieldReference:    invoice.Reference,
		fieldDate:         invoice.Date,
		fieldSupplierName: invoice.SupplierName,
		fieldAmountExcl:   invoice.AmountExclTax,
		fieldAmountIncl:   invoice.AmountInclTax,
		fieldStatus:       invoice.Status,
		fieldSourceURL:    invoice.SourceURL,
	}
	if invoice.DateInferred {
		fields[fieldDateInferred] = true
	}
	if invoice.SupplierID != "" {
		fields[fieldSupplierID] = invoice.SupplierID
	}
	if invoice.PDFURL != "" {
		fields[fieldPDFURL] = invoice.PDFURL
	}
	if invoice.CustomInvoiceNumber != "" {
		fields[fieldCustomNumber] = invoice.CustomInvoiceNumber
	}
	if invoice.LinkedCustomerID != "" {
		fields[fieldLinkedID] = invoice.LinkedCustomerID
	}
	if invoice.LinkedCustomerName != "" {
		fields[fieldLinkedName] = invoice.LinkedCustomerName
	}
	return fields
}

// invoiceFormula builds the filterByFormula lookup for one invoice id.
// Single quotes are doubled, the Airtable formula escape.
func invoiceFormula(invoiceID string) string {
	escaped := strings.ReplaceAll(invoiceID, "'", "''")
	return fmt.Sprintf("{%s}='%s'", fieldInvoiceID, escaped)
}

// applyAttachment inlines the local PDF as a base64 data URL when it fits
// under the attachment limit. Oversized or unreadable files fall back to the
// PDF_URL column already set by recordFields.
func applyAttachment(fields map[string]interface{}, invoice *models.CanonicalInvoice, pdfPath string, logger *zap.Logger) {
	if pdfPath == "" {
		return
	}

	data, err := os.ReadFile(pdfPath)
	if err != nil {
		logger.Warn("could not read local pdf, keeping url reference only",
			zap.String("invoice_id", invoice.InvoiceID),
			zap.String("path", pdfPath),
			zap.Error(err))
		return
	}
	if len(data) == 0 {
		return
	}
	if len(data) > maxAttachmentSize {
		logger.Warn("pdf exceeds attachment limit, keeping url reference only",
			zap.String("invoice_id", invoice.InvoiceID),
			zap.Int("size", len(data)))
		return
	}

	fields[fieldAttachment] = []map[string]interface{}{
		{
			"url":      "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(data),
			"filename": filepath.Base(pdfPath),
		},
	}
}
