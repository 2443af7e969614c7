package normalize

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sellsync/supplier-invoice-sync/internal/models"
)

// ErrEmptyInvoice is returned when the raw payload carries no fields at all.
// Every other degradation (missing date, amount, reference) is absorbed.
var ErrEmptyInvoice = errors.New("invoice payload is empty")

// DefaultTaxRate is the VAT percentage used for cross-derivation when the
// payload carries no explicit rate (French standard rate).
const DefaultTaxRate = 20.0

// Candidate field lists. Order is the contract: real payloads carry legacy
// and modern fields simultaneously with different values, and the winner is
// decided by position alone. Do not reorder.
var (
	v1DateFields = []string{"doc_date", "documentdate", "created", "date"}
	v2DateFields = []string{"created_at", "date", "created", "issueDate", "documentdate", "creationDate"}

	referenceFields = []string{"reference", "number", "decimal_number", "invoiceNumber", "document_number", "docNumber"}

	v1StatusFields = []string{"step", "doc_status", "status", "state"}
	v2StatusFields = []string{"status", "state", "documentStatus", "step"}

	// Keys inside the nested "amounts" object.
	amountsExclKeys = []string{"total_excluding_tax", "totalAmountWithoutTaxes", "tax_excl", "total_excl_tax", "totalExclTax", "preTax", "totalHT"}
	amountsInclKeys = []string{"total_including_tax", "totalAmountWithTaxes", "tax_incl", "total_incl_tax", "totalInclTax", "withTax", "totalTTC"}

	// Keys inside the singular "amount" object.
	amountExclKeys = []string{"tax_excl", "ht", "preTax", "withoutTax"}
	amountInclKeys = []string{"tax_incl", "ttc", "withTax", "total"}

	// Flat root-level monetary fields.
	v1FlatExclFields = []string{"totalAmountTaxesFree", "total_amount_without_taxes", "totalht", "amountHT", "totalHT", "preTaxAmount"}
	v1FlatInclFields = []string{"totalAmount", "total_amount_with_taxes", "totalttc", "amountTTC", "totalTTC"}
	v2FlatExclFields = []string{"total_amount_without_taxes", "totalht", "amountHT", "totalHT", "preTaxAmount"}
	v2FlatInclFields = []string{"total_amount_with_taxes", "totalttc", "amountTTC", "totalTTC", "totalAmount"}

	taxRateFields = []string{"tax_rate", "taxRate", "vat_rate", "vatRate"}

	pdfURLFields = []string{"pdf_link", "pdfUrl", "pdf_url", "downloadUrl"}

	flatSupplierNameFields = []string{"thirdname", "corp_name", "company_name", "supplier_name", "name", "clientname", "third_name"}
	flatSupplierIDFields   = []string{"thirdid", "clientid", "supplier_id", "third_id"}
	counterpartyNameKeys   = []string{"name", "fullname", "displayName", "title"}
)

var supplierRelatedTypes = map[string]bool{
	"individual":  true,
	"corporation": true,
	"supplier":    true,
	"third":       true,
}

// Invoice-number-like patterns probed against free-text notes: letter prefix
// with digit groups (FA-2023-001), "N°" references, "INV-" references.
var notesPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[A-Z]{1,3}[-\s]?\d{2,4}[-\s]?\d{1,6}`),
	regexp.MustCompile(`N°\s*[A-Z0-9][A-Z0-9-]*`),
	regexp.MustCompile(`INV[-\s]?\d+`),
}

// Sellsy custom-field codes recognized by the extractor.
const (
	customCodeInvoiceNumber = "numero-facture"
	customCodeLinkedClient  = "client-lie"
)

const notesMaxDirectLen = 20

// Normalizer maps a raw Sellsy invoice payload, in any of the known shapes,
// to the canonical record. It is pure apart from logging: normalizing the
// same payload twice yields the same record, up to the current-date fallback.
type Normalizer struct {
	defaultTaxRate float64
	now            func() time.Time
	logger         *zap.Logger
}

// NewNormalizer creates a normalizer. A non-positive tax rate falls back to
// DefaultTaxRate.
func NewNormalizer(defaultTaxRate float64, logger *zap.Logger) *Normalizer {
	if defaultTaxRate <= 0 {
		defaultTaxRate = DefaultTaxRate
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{
		defaultTaxRate: defaultTaxRate,
		now:            time.Now,
		logger:         logger,
	}
}

// Normalize converts a raw invoice into the canonical record. It fails only
// for an entirely empty payload; every missing field degrades independently
// (synthesized reference, current-date fallback, zero amounts, unspecified
// status).
func (n *Normalizer) Normalize(raw models.RawInvoice) (*models.CanonicalInvoice, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyInvoice
	}

	id := ResolveString(raw, "id", "docid", "ident")

	// Presence of the legacy flat identifiers selects the v1 candidate lists.
	_, hasDocID := raw["docid"]
	_, hasIdent := raw["ident"]
	v1 := hasDocID || hasIdent

	rec := &models.CanonicalInvoice{InvoiceID: id}

	rec.SupplierID, rec.SupplierName = n.resolveSupplier(raw)

	dateFields := v2DateFields
	if v1 {
		dateFields = v1DateFields
	}
	if v, ok := Resolve(raw, dateFields...); ok {
		if d, parsed := ParseDate(v); parsed {
			rec.Date = d
		}
	}
	if rec.Date == "" {
		rec.Date = n.now().Format(dateLayout)
		rec.DateInferred = true
		n.logger.Warn("invoice date unresolvable, using current date",
			zap.String("invoice_id", id))
	}

	rec.Reference = n.resolveReference(raw, v1, id)
	rec.AmountExclTax, rec.AmountInclTax = n.resolveAmounts(raw, v1)

	statusFields := v2StatusFields
	if v1 {
		statusFields = v1StatusFields
	}
	rec.Status = TranslateStatus(ResolveString(raw, statusFields...))

	rec.PDFURL = ResolveString(raw, pdfURLFields...)
	if id != "" {
		rec.SourceURL = "https://go.sellsy.com/purchase/" + id
	}

	n.extractCustomFields(raw, rec)

	n.logger.Debug("invoice normalized",
		zap.String("invoice_id", rec.InvoiceID),
		zap.Float64("amount_excl_tax", rec.AmountExclTax),
		zap.Float64("amount_incl_tax", rec.AmountInclTax),
		zap.String("status", rec.Status))

	return rec, nil
}

// resolveSupplier probes the structured counterparty objects first, then the
// flat legacy fields, and synthesizes a display name when only an id exists.
func (n *Normalizer) resolveSupplier(raw models.RawInvoice) (id, name string) {
	if rel, ok := raw["relation"].(map[string]interface{}); ok {
		id, name = counterparty(rel)
	}
	if id == "" && name == "" {
		if related, ok := raw["related"].([]interface{}); ok {
			for _, r := range related {
				m, ok := r.(map[string]interface{})
				if !ok {
					continue
				}
				if supplierRelatedTypes[strings.ToLower(Stringify(m["type"]))] {
					id, name = counterparty(m)
					break
				}
			}
		}
	}
	for _, key := range []string{"third", "supplier", "client"} {
		if id != "" || name != "" {
			break
		}
		if m, ok := raw[key].(map[string]interface{}); ok {
			id, name = counterparty(m)
		}
	}

	if id == "" {
		id = ResolveString(raw, flatSupplierIDFields...)
	}
	if name == "" {
		name = ResolveString(raw, flatSupplierNameFields...)
	}
	if name == "" && id != "" {
		name = "Supplier #" + id
	}
	return id, name
}

func counterparty(m map[string]interface{}) (id, name string) {
	return ResolveString(m, "id"), ResolveString(m, counterpartyNameKeys...)
}

// resolveReference walks the reference candidates, falls back to mining the
// free-text notes for an invoice-number pattern, then to the legacy document
// number fields, and finally synthesizes REF-{id}.
func (n *Normalizer) resolveReference(raw models.RawInvoice, v1 bool, invoiceID string) string {
	if ref := ResolveString(raw, referenceFields...); ref != "" {
		return ref
	}
	if notes := ResolveString(raw, "notes"); notes != "" {
		if ref := referenceFromNotes(notes); ref != "" {
			return ref
		}
	}
	if v1 {
		if ref := ResolveString(raw, "ident", "docnum"); ref != "" {
			return ref
		}
	}
	if invoiceID != "" {
		return "REF-" + invoiceID
	}
	return ""
}

// referenceFromNotes extracts an invoice-number-like substring from notes.
// Short notes are taken verbatim; long notes are used only when a pattern
// matches, never as-is.
func referenceFromNotes(notes string) string {
	notes = strings.TrimSpace(notes)
	if len(notes) <= notesMaxDirectLen {
		return notes
	}
	for _, pattern := range notesPatterns {
		if m := pattern.FindString(notes); m != "" {
			return strings.TrimSpace(m)
		}
	}
	return ""
}

// resolveAmounts resolves the excl./incl. tax totals through the staged
// strategy: nested amounts object, singular amount object, flat fields, line
// item summation, then cross-derivation through the tax rate.
func (n *Normalizer) resolveAmounts(raw models.RawInvoice, v1 bool) (excl, incl float64) {
	if amounts, ok := raw["amounts"].(map[string]interface{}); ok {
		excl = firstAmount(amounts, amountsExclKeys)
		incl = firstAmount(amounts, amountsInclKeys)
	}

	if excl == 0 || incl == 0 {
		if amount, ok := raw["amount"].(map[string]interface{}); ok {
			if excl == 0 {
				excl = firstAmount(amount, amountExclKeys)
			}
			if incl == 0 {
				incl = firstAmount(amount, amountInclKeys)
			}
		}
	}

	flatExcl, flatIncl := v2FlatExclFields, v2FlatInclFields
	if v1 {
		flatExcl, flatIncl = v1FlatExclFields, v1FlatInclFields
	}
	if excl == 0 {
		if v, ok := Resolve(raw, flatExcl...); ok {
			excl = ParseAmount(v)
		}
	}
	if incl == 0 {
		if v, ok := Resolve(raw, flatIncl...); ok {
			incl = ParseAmount(v)
		}
	}

	if excl == 0 {
		if sum := sumRows(raw); sum > 0 {
			excl = sum
			n.logger.Debug("amount excl. tax summed from line items",
				zap.Float64("amount", excl))
		}
	}

	rate := n.taxRate(raw)
	if excl > 0 && incl == 0 {
		incl = excl * (1 + rate/100)
	}
	if incl > 0 && excl == 0 {
		excl = incl / (1 + rate/100)
	}

	return Round2(excl), Round2(incl)
}

// firstAmount parses the first present non-nil key; presence wins over value,
// so an explicit zero stops the scan.
func firstAmount(m map[string]interface{}, keys []string) float64 {
	for _, key := range keys {
		if v, ok := m[key]; ok && v != nil {
			return ParseAmount(v)
		}
	}
	return 0.0
}

// sumRows computes an excl.-tax total from line items, trying the known row
// shapes in order and taking the first that matches per row.
func sumRows(raw models.RawInvoice) float64 {
	rows, ok := raw["rows"].([]interface{})
	if !ok {
		return 0.0
	}
	var total float64
	for _, r := range rows {
		row, ok := r.(map[string]interface{})
		if !ok {
			continue
		}
		switch {
		case hasKey(row, "unit_amount") && hasKey(row, "qty"):
			total += ParseAmount(row["unit_amount"]) * ParseAmount(row["qty"])
		case hasKey(row, "unitAmount") && hasKey(row, "quantity"):
			total += ParseAmount(row["unitAmount"]) * ParseAmount(row["quantity"])
		case hasKey(row, "price") && hasKey(row, "quantity"):
			total += ParseAmount(row["price"]) * ParseAmount(row["quantity"])
		case hasKey(row, "total"):
			total += ParseAmount(row["total"])
		case hasKey(row, "totalAmount"):
			total += ParseAmount(row["totalAmount"])
		}
	}
	return total
}

func (n *Normalizer) taxRate(raw models.RawInvoice) float64 {
	if v, ok := Resolve(raw, taxRateFields...); ok {
		if rate := ParseAmount(v); rate > 0 {
			return rate
		}
	}
	return n.defaultTaxRate
}

// extractCustomFields scans both custom-field container shapes (map keyed by
// field id, or list) for the alternate invoice number and the linked customer.
// Absence is silent.
func (n *Normalizer) extractCustomFields(raw models.RawInvoice, rec *models.CanonicalInvoice) {
	container, ok := Resolve(raw, "customfields", "custom_fields")
	if !ok {
		return
	}

	var entries []map[string]interface{}
	switch c := container.(type) {
	case []interface{}:
		for _, e := range c {
			if m, ok := e.(map[string]interface{}); ok {
				entries = append(entries, m)
			}
		}
	case map[string]interface{}:
		for _, e := range c {
			if m, ok := e.(map[string]interface{}); ok {
				entries = append(entries, m)
			}
		}
	}

	for _, entry := range entries {
		code := strings.ToLower(Stringify(entry["code"]))
		value := entry["value"]
		if value == nil {
			value = entry["formatted_value"]
		}
		switch code {
		case customCodeInvoiceNumber:
			rec.CustomInvoiceNumber = Stringify(value)
		case customCodeLinkedClient:
			switch v := value.(type) {
			case map[string]interface{}:
				rec.LinkedCustomerID = ResolveString(v, "id")
				rec.LinkedCustomerName = ResolveString(v, counterpartyNameKeys...)
			default:
				rec.LinkedCustomerID = Stringify(value)
			}
		}
	}
}

func hasKey(m map[string]interface{}, key string) bool {
	_, ok := m[key]
	return ok
}
