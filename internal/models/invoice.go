package models

// RawInvoice is an untyped supplier invoice payload as returned by Sellsy.
// The shape varies by API generation: the legacy v1 purchase endpoints return
// flat fields (docid, thirdname, totalAmount, step, ...) while the v2 OCR
// endpoints return nested objects (relation, amounts, created_at, ...). The
// only field stable across shapes is the invoice identifier.
type RawInvoice map[string]interface{}

// CanonicalInvoice is the normalized invoice shape produced by the
// normalizer, independent of the upstream schema version.
type CanonicalInvoice struct {
	InvoiceID    string `json:"invoice_id"`
	Reference    string `json:"reference"`
	Date         string `json:"date"` // YYYY-MM-DD
	DateInferred bool   `json:"date_inferred"`
	SupplierName string `json:"supplier_name"`
	SupplierID   string `json:"supplier_id,omitempty"`

	AmountExclTax float64 `json:"amount_excl_tax"`
	AmountInclTax float64 `json:"amount_incl_tax"`

	Status    string `json:"status"`
	SourceURL string `json:"source_url"`
	PDFURL    string `json:"pdf_url,omitempty"`

	// Extension fields recovered from Sellsy custom-field containers.
	CustomInvoiceNumber string `json:"custom_invoice_number,omitempty"`
	LinkedCustomerID    string `json:"linked_customer_id,omitempty"`
	LinkedCustomerName  string `json:"linked_customer_name,omitempty"`
}

// Status labels produced by the normalizer's status vocabulary.
const (
	StatusPaid        = "Paid"
	StatusUnpaid      = "Unpaid"
	StatusDraft       = "Draft"
	StatusCreated     = "Created"
	StatusValidated   = "Validated"
	StatusCancelled   = "Cancelled"
	StatusPending     = "Pending"
	StatusSent        = "Sent"
	StatusExpired     = "Expired"
	StatusUnspecified = "Unspecified"
)
