package sellsy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sellsync/supplier-invoice-sync/internal/models"
)

const v2PageSize = 100

// SearchOCRInvoices pages through the v2 OCR purchase-invoice search,
// offset-based, newest first, optionally restricted to the last days.
// Entries without an id are dropped before they reach the pipeline.
func (c *Client) SearchOCRInvoices(ctx context.Context, limit, days int) ([]models.RawInvoice, error) {
	if limit <= 0 {
		limit = v2PageSize
	}

	filters := map[string]interface{}{}
	if days > 0 {
		from := time.Now().AddDate(0, 0, -days).Format("2006-01-02")
		filters["created_at"] = map[string]interface{}{"$gte": from}
	}

	var invoices []models.RawInvoice
	offset := 0

	for len(invoices) < limit {
		payload, err := json.Marshal(map[string]interface{}{
			"filters":   filters,
			"limit":     minInt(limit-len(invoices), v2PageSize),
			"offset":    offset,
			"order":     "created_at",
			"direction": "desc",
		})
		if err != nil {
			return invoices, fmt.Errorf("failed to encode search payload: %w", err)
		}

		body, err := c.do(ctx, func(ctx context.Context) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost,
				c.cfg.APIURL+"/ocr/pur-invoice/search", bytes.NewReader(payload))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json")
			return req, nil
		})
		if err != nil {
			c.logger.Error("ocr invoice search failed, returning partial results",
				zap.Int("accumulated", len(invoices)),
				zap.Error(err))
			return invoices, nil
		}

		var data struct {
			Data []models.RawInvoice `json:"data"`
		}
		if err := json.Unmarshal(body, &data); err != nil {
			c.logger.Error("failed to decode ocr search response", zap.Error(err))
			return invoices, nil
		}
		if len(data.Data) == 0 {
			break
		}

		valid := 0
		for _, invoice := range data.Data {
			if id, ok := invoice["id"]; ok && id != nil && fmt.Sprintf("%v", id) != "" {
				invoices = append(invoices, invoice)
				valid++
			}
		}
		c.logger.Debug("ocr invoice batch fetched",
			zap.Int("batch", len(data.Data)),
			zap.Int("valid", valid))

		if len(data.Data) < v2PageSize {
			break
		}
		offset += len(data.Data)
	}

	if len(invoices) > limit {
		invoices = invoices[:limit]
	}
	c.logger.Info("ocr invoices listed", zap.Int("count", len(invoices)))
	return invoices, nil
}

// GetOCRInvoice fetches one OCR invoice detail and pins its id.
func (c *Client) GetOCRInvoice(ctx context.Context, invoiceID string) (models.RawInvoice, error) {
	if invoiceID == "" {
		return nil, fmt.Errorf("invoice id is required")
	}

	body, err := c.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			c.cfg.APIURL+"/ocr/pur-invoice/"+invoiceID, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var detail models.RawInvoice
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, fmt.Errorf("failed to decode ocr invoice %s: %w", invoiceID, err)
	}
	detail["id"] = invoiceID
	return detail, nil
}
