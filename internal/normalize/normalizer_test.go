package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sellsync/supplier-invoice-sync/internal/models"
)

func newTestNormalizer() *Normalizer {
	n := NewNormalizer(DefaultTaxRate, zap.NewNop())
	n.now = func() time.Time {
		return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	}
	return n
}

func TestNormalize_EmptyPayload(t *testing.T) {
	n := newTestNormalizer()

	_, err := n.Normalize(models.RawInvoice{})
	assert.ErrorIs(t, err, ErrEmptyInvoice)

	_, err = n.Normalize(nil)
	assert.ErrorIs(t, err, ErrEmptyInvoice)
}

func TestNormalize_MinimalPayload(t *testing.T) {
	n := newTestNormalizer()

	rec, err := n.Normalize(models.RawInvoice{"id": "1"})
	require.NoError(t, err)

	assert.Equal(t, "1", rec.InvoiceID)
	assert.Equal(t, "REF-1", rec.Reference)
	assert.Equal(t, 0.0, rec.AmountExclTax)
	assert.Equal(t, 0.0, rec.AmountInclTax)
	assert.Equal(t, models.StatusUnspecified, rec.Status)
	assert.Equal(t, "2024-06-01", rec.Date)
	assert.True(t, rec.DateInferred)
	assert.Equal(t, "https://go.sellsy.com/purchase/1", rec.SourceURL)
}

func TestNormalize_V1EndToEnd(t *testing.T) {
	n := newTestNormalizer()

	rec, err := n.Normalize(models.RawInvoice{
		"id":                   "77",
		"docid":                "77",
		"thirdname":            "Acme Corp",
		"thirdid":              "9",
		"doc_date":             "15/01/2024",
		"totalAmountTaxesFree": 500,
		"totalAmount":          600,
		"step":                 "validated",
	})
	require.NoError(t, err)

	assert.Equal(t, "77", rec.InvoiceID)
	assert.Equal(t, "Acme Corp", rec.SupplierName)
	assert.Equal(t, "9", rec.SupplierID)
	assert.Equal(t, "2024-01-15", rec.Date)
	assert.False(t, rec.DateInferred)
	assert.Equal(t, 500.0, rec.AmountExclTax)
	assert.Equal(t, 600.0, rec.AmountInclTax)
	assert.Equal(t, models.StatusValidated, rec.Status)
	assert.Equal(t, "REF-77", rec.Reference)
	assert.Equal(t, "https://go.sellsy.com/purchase/77", rec.SourceURL)
}

func TestNormalize_Idempotent(t *testing.T) {
	n := newTestNormalizer()
	raw := models.RawInvoice{
		"id":          "5",
		"docid":       "5",
		"doc_date":    "2024-02-02",
		"totalAmount": 240.0,
	}

	first, err := n.Normalize(raw)
	require.NoError(t, err)
	second, err := n.Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestNormalize_StatusMapping(t *testing.T) {
	n := newTestNormalizer()

	cases := map[string]string{
		"paid":      models.StatusPaid,
		"PAID":      models.StatusPaid,
		"draft":     models.StatusDraft,
		"canceled":  models.StatusCancelled,
		"cancelled": models.StatusCancelled,
		"pending":   models.StatusPending,
		"expired":   models.StatusExpired,
	}
	for in, want := range cases {
		rec, err := n.Normalize(models.RawInvoice{"id": "1", "step": in})
		require.NoError(t, err)
		assert.Equal(t, want, rec.Status, "status %q", in)
	}

	t.Run("unmapped status passes through capitalized", func(t *testing.T) {
		rec, err := n.Normalize(models.RawInvoice{"id": "1", "status": "archived"})
		require.NoError(t, err)
		assert.Equal(t, "Archived", rec.Status)
	})
}

func TestNormalize_AmountCrossDerivation(t *testing.T) {
	n := newTestNormalizer()

	t.Run("incl derived from excl", func(t *testing.T) {
		rec, err := n.Normalize(models.RawInvoice{"id": "1", "totalHT": 100, "tax_rate": 20})
		require.NoError(t, err)
		assert.Equal(t, 100.0, rec.AmountExclTax)
		assert.Equal(t, 120.0, rec.AmountInclTax)
	})

	t.Run("excl derived from incl", func(t *testing.T) {
		rec, err := n.Normalize(models.RawInvoice{"id": "1", "totalTTC": 120, "tax_rate": 20})
		require.NoError(t, err)
		assert.Equal(t, 100.0, rec.AmountExclTax)
		assert.Equal(t, 120.0, rec.AmountInclTax)
	})

	t.Run("default rate applies without explicit rate", func(t *testing.T) {
		rec, err := n.Normalize(models.RawInvoice{"id": "1", "totalHT": 50})
		require.NoError(t, err)
		assert.Equal(t, 60.0, rec.AmountInclTax)
	})

	t.Run("configured rate overrides the default", func(t *testing.T) {
		custom := NewNormalizer(10.0, zap.NewNop())
		rec, err := custom.Normalize(models.RawInvoice{"id": "1", "totalHT": 100})
		require.NoError(t, err)
		assert.Equal(t, 110.0, rec.AmountInclTax)
	})
}

func TestNormalize_NestedAmounts(t *testing.T) {
	n := newTestNormalizer()

	t.Run("amounts object wins over flat fields", func(t *testing.T) {
		rec, err := n.Normalize(models.RawInvoice{
			"id": "1",
			"amounts": map[string]interface{}{
				"total_excluding_tax": "100.00",
				"total_including_tax": "120.00",
			},
			"totalTTC": 999,
		})
		require.NoError(t, err)
		assert.Equal(t, 100.0, rec.AmountExclTax)
		assert.Equal(t, 120.0, rec.AmountInclTax)
	})

	t.Run("singular amount object fills missing side", func(t *testing.T) {
		rec, err := n.Normalize(models.RawInvoice{
			"id": "1",
			"amount": map[string]interface{}{
				"tax_excl": 200,
				"tax_incl": 240,
			},
		})
		require.NoError(t, err)
		assert.Equal(t, 200.0, rec.AmountExclTax)
		assert.Equal(t, 240.0, rec.AmountInclTax)
	})
}

func TestNormalize_RowSummation(t *testing.T) {
	n := newTestNormalizer()

	rec, err := n.Normalize(models.RawInvoice{
		"id":       "1",
		"tax_rate": 20,
		"rows": []interface{}{
			map[string]interface{}{"unit_amount": 10, "qty": 3},
			map[string]interface{}{"unitAmount": "5.50", "quantity": 2},
			map[string]interface{}{"total": 9},
			map[string]interface{}{"unrelated": true},
		},
	})
	require.NoError(t, err)

	// 30 + 11 + 9
	assert.Equal(t, 50.0, rec.AmountExclTax)
	assert.Equal(t, 60.0, rec.AmountInclTax)
}

func TestNormalize_SupplierResolution(t *testing.T) {
	n := newTestNormalizer()

	t.Run("relation object", func(t *testing.T) {
		rec, err := n.Normalize(models.RawInvoice{
			"id":       "1",
			"relation": map[string]interface{}{"id": 12.0, "name": "Fournitout SARL"},
		})
		require.NoError(t, err)
		assert.Equal(t, "12", rec.SupplierID)
		assert.Equal(t, "Fournitout SARL", rec.SupplierName)
	})

	t.Run("related list filtered by type", func(t *testing.T) {
		rec, err := n.Normalize(models.RawInvoice{
			"id": "1",
			"related": []interface{}{
				map[string]interface{}{"type": "document", "id": "x"},
				map[string]interface{}{"type": "corporation", "id": "44", "name": "Bureau SA"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "44", rec.SupplierID)
		assert.Equal(t, "Bureau SA", rec.SupplierName)
	})

	t.Run("nested object probed for alternate name keys", func(t *testing.T) {
		rec, err := n.Normalize(models.RawInvoice{
			"id":    "1",
			"third": map[string]interface{}{"id": "3", "fullname": "Jean Dupont"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Jean Dupont", rec.SupplierName)
	})

	t.Run("id-only supplier synthesizes a name", func(t *testing.T) {
		rec, err := n.Normalize(models.RawInvoice{"id": "1", "thirdid": "9"})
		require.NoError(t, err)
		assert.Equal(t, "9", rec.SupplierID)
		assert.Equal(t, "Supplier #9", rec.SupplierName)
	})
}

func TestNormalize_ReferenceFromNotes(t *testing.T) {
	n := newTestNormalizer()

	t.Run("pattern mined from long notes", func(t *testing.T) {
		rec, err := n.Normalize(models.RawInvoice{
			"id":    "42",
			"notes": "Règlement sous 30 jours, merci de rappeler la facture FA-2023-001 dans toute correspondance",
		})
		require.NoError(t, err)
		assert.Equal(t, "FA-2023-001", rec.Reference)
	})

	t.Run("long notes without a pattern are not used", func(t *testing.T) {
		rec, err := n.Normalize(models.RawInvoice{
			"id":    "42",
			"notes": "merci de votre confiance et à bientôt pour de nouvelles commandes",
		})
		require.NoError(t, err)
		assert.Equal(t, "REF-42", rec.Reference)
	})

	t.Run("short notes used verbatim", func(t *testing.T) {
		rec, err := n.Normalize(models.RawInvoice{"id": "42", "notes": "FA-77"})
		require.NoError(t, err)
		assert.Equal(t, "FA-77", rec.Reference)
	})

	t.Run("explicit reference field wins over notes", func(t *testing.T) {
		rec, err := n.Normalize(models.RawInvoice{
			"id":        "42",
			"reference": "REF-EXPLICIT",
			"notes":     "FA-01",
		})
		require.NoError(t, err)
		assert.Equal(t, "REF-EXPLICIT", rec.Reference)
	})
}

func TestNormalize_PDFAndCustomFields(t *testing.T) {
	n := newTestNormalizer()

	t.Run("pdf url resolved from aliases", func(t *testing.T) {
		rec, err := n.Normalize(models.RawInvoice{
			"id":      "7",
			"pdfUrl":  "https://cdn.example.com/7.pdf",
		})
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/7.pdf", rec.PDFURL)
	})

	t.Run("custom fields as list", func(t *testing.T) {
		rec, err := n.Normalize(models.RawInvoice{
			"id": "7",
			"custom_fields": []interface{}{
				map[string]interface{}{"code": "numero-facture", "value": "FC-0099"},
				map[string]interface{}{"code": "client-lie", "value": map[string]interface{}{"id": "31", "name": "Client SARL"}},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "FC-0099", rec.CustomInvoiceNumber)
		assert.Equal(t, "31", rec.LinkedCustomerID)
		assert.Equal(t, "Client SARL", rec.LinkedCustomerName)
	})

	t.Run("custom fields keyed by field id", func(t *testing.T) {
		rec, err := n.Normalize(models.RawInvoice{
			"id": "7",
			"customfields": map[string]interface{}{
				"1045": map[string]interface{}{"code": "numero-facture", "value": "FC-0100"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "FC-0100", rec.CustomInvoiceNumber)
	})
}
