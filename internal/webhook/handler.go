package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sellsync/supplier-invoice-sync/internal/normalize"
)

// InvoiceSyncer runs the pipeline for a single invoice.
type InvoiceSyncer interface {
	SyncOne(ctx context.Context, invoiceID string) error
}

// Handler handles supplier invoice webhook deliveries.
type Handler struct {
	verifier *Verifier
	syncer   InvoiceSyncer
	logger   *zap.Logger
}

// NewHandler creates a webhook handler.
func NewHandler(verifier *Verifier, syncer InvoiceSyncer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		verifier: verifier,
		syncer:   syncer,
		logger:   logger,
	}
}

// event covers both notification shapes Sellsy sends: the flat legacy one
// and the nested resource one.
type event struct {
	RelatedType string `json:"relatedtype"`
	RelatedID   any    `json:"relatedid"`
	Event       string `json:"event"`

	Action   string `json:"action"`
	Resource struct {
		Type string `json:"type"`
		ID   any    `json:"id"`
	} `json:"resource"`
}

// invoiceTypes are the resource types that identify a supplier invoice
// notification, lowercased with separators stripped.
var invoiceTypes = map[string]bool{
	"purinvoice":      true,
	"purchaseinvoice": true,
	"supplierinvoice": true,
	"purchase":        true,
}

// Handle processes an incoming webhook delivery. The payload is verified,
// classified and, for supplier invoices, synced before responding. Pipeline
// failures answer with an error status rather than a 5xx so the sender does
// not retry a delivery that was received intact.
func (h *Handler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error("failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "unreadable body"})
		return
	}

	if !h.verifier.Verify(c.GetHeader("Authorization"), body) {
		h.logger.Warn("webhook delivery rejected, bad signature",
			zap.String("ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "invalid signature"})
		return
	}

	var evt event
	if err := json.Unmarshal(body, &evt); err != nil {
		h.logger.Error("failed to parse webhook payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid payload"})
		return
	}

	resourceType, invoiceID, action := evt.classify()
	if !invoiceTypes[resourceType] {
		h.logger.Info("ignoring webhook for unrelated resource",
			zap.String("resource_type", resourceType))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	if invoiceID == "" {
		h.logger.Warn("supplier invoice webhook carried no id")
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "missing invoice id"})
		return
	}

	h.logger.Info("processing supplier invoice webhook",
		zap.String("invoice_id", invoiceID),
		zap.String("action", action))

	if err := h.syncer.SyncOne(c.Request.Context(), invoiceID); err != nil {
		h.logger.Error("webhook sync failed",
			zap.String("invoice_id", invoiceID),
			zap.Error(err))
		c.JSON(http.StatusOK, gin.H{
			"status":     "error",
			"invoice_id": invoiceID,
			"message":    err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "invoice_id": invoiceID})
}

// classify extracts the resource type, invoice id and action from whichever
// shape the delivery used.
func (e *event) classify() (resourceType, invoiceID, action string) {
	if e.RelatedType != "" {
		return canonicalType(e.RelatedType), normalize.Stringify(e.RelatedID), e.Event
	}
	return canonicalType(e.Resource.Type), normalize.Stringify(e.Resource.ID), e.Action
}

func canonicalType(t string) string {
	t = strings.ToLower(t)
	t = strings.NewReplacer("-", "", "_", "", ".", "").Replace(t)
	return t
}
