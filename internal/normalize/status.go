package normalize

import (
	"strings"

	"github.com/sellsync/supplier-invoice-sync/internal/models"
)

// statusLabels maps Sellsy status codes to the labels stored downstream.
// Matching is case-insensitive; both US and UK spellings of "cancelled" occur
// in real payloads.
var statusLabels = map[string]string{
	"paid":      models.StatusPaid,
	"unpaid":    models.StatusUnpaid,
	"draft":     models.StatusDraft,
	"created":   models.StatusCreated,
	"validated": models.StatusValidated,
	"canceled":  models.StatusCancelled,
	"cancelled": models.StatusCancelled,
	"pending":   models.StatusPending,
	"sent":      models.StatusSent,
	"expired":   models.StatusExpired,
}

// TranslateStatus maps an upstream status code through the fixed vocabulary.
// Unknown codes pass through capitalized; an absent status becomes the
// unspecified sentinel.
func TranslateStatus(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.StatusUnspecified
	}
	if label, ok := statusLabels[strings.ToLower(raw)]; ok {
		return label
	}
	return strings.ToUpper(raw[:1]) + raw[1:]
}
