package sellsy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sellsync/supplier-invoice-sync/internal/models"
)

// v1Envelope is the response wrapper of the legacy apifeed RPC API.
type v1Envelope struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
	Error    json.RawMessage `json:"error"`
}

// callV1 posts one RPC call through the form-encoded envelope the legacy API
// expects: the method name plus a JSON-encoded do_in payload.
func (c *Client) callV1(ctx context.Context, method string, params map[string]interface{}) (json.RawMessage, error) {
	doIn, err := json.Marshal(map[string]interface{}{
		"method": method,
		"params": params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s params: %w", method, err)
	}

	form := url.Values{}
	form.Set("method", method)
	form.Set("io_mode", "json")
	form.Set("do_in", string(doIn))
	encoded := form.Encode()

	body, err := c.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.V1URL,
			strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	var envelope v1Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%s: failed to decode response: %w", method, err)
	}
	if envelope.Status != "success" {
		return nil, fmt.Errorf("%s: api reported %q: %s", method, envelope.Status, truncate(envelope.Error))
	}
	return envelope.Response, nil
}

// ListSupplierInvoices pages through Purchase.getList, newest first,
// optionally restricted to the last days. A failing page stops the listing;
// the invoices accumulated so far are returned together with the error so
// callers can choose to proceed with partial results.
func (c *Client) ListSupplierInvoices(ctx context.Context, limit, days int) ([]models.RawInvoice, error) {
	if limit <= 0 {
		limit = v1PageSize
	}

	params := map[string]interface{}{
		"pagination": map[string]interface{}{
			"nbperpage": minInt(limit, v1PageSize),
			"pagenum":   1,
		},
		"order": map[string]interface{}{
			"direction": "DESC",
			"field":     "doc_date",
		},
		"doctype": "invoice",
	}
	if days > 0 {
		params["search"] = map[string]interface{}{
			"doc_date": map[string]interface{}{
				"from": time.Now().Add(-time.Duration(days) * 24 * time.Hour).Unix(),
			},
		}
	}

	var invoices []models.RawInvoice
	totalPages := 1

	for page := 1; page <= totalPages && len(invoices) < limit; page++ {
		params["pagination"].(map[string]interface{})["pagenum"] = page
		c.logger.Debug("fetching supplier invoice page", zap.Int("page", page))

		response, err := c.callV1(ctx, "Purchase.getList", params)
		if err != nil {
			c.logger.Error("supplier invoice listing failed, returning partial results",
				zap.Int("page", page),
				zap.Int("accumulated", len(invoices)),
				zap.Error(err))
			return invoices, fmt.Errorf("listing stopped at page %d: %w", page, err)
		}

		var data struct {
			Infos struct {
				NbPages int `json:"nbpages"`
			} `json:"infos"`
			Result json.RawMessage `json:"result"`
		}
		if err := json.Unmarshal(response, &data); err != nil {
			c.logger.Error("failed to decode invoice page", zap.Int("page", page), zap.Error(err))
			return invoices, fmt.Errorf("failed to decode invoice page %d: %w", page, err)
		}
		if page == 1 && data.Infos.NbPages > 0 {
			totalPages = data.Infos.NbPages
		}

		entries, decErr := c.decodeResultPage(data.Result)
		for _, invoice := range entries {
			invoices = append(invoices, invoice)
			if len(invoices) >= limit {
				break
			}
		}
		if decErr != nil {
			c.logger.Error("failed to decode invoice page", zap.Int("page", page), zap.Error(decErr))
			return invoices, fmt.Errorf("failed to decode invoice page %d: %w", page, decErr)
		}
	}

	c.logger.Info("supplier invoices listed", zap.Int("count", len(invoices)))
	return invoices, nil
}

// decodeResultPage walks a v1 result object token by token. Pages are keyed
// by invoice id and the key order is the API's sort order (doc_date DESC
// here); decoding into a map would shuffle it and a truncating limit would
// then keep arbitrary invoices instead of the newest.
func (c *Client) decodeResultPage(raw json.RawMessage) ([]models.RawInvoice, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	// An empty page arrives as [] rather than {}.
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil
	}

	var invoices []models.RawInvoice
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return invoices, err
		}
		id, _ := keyTok.(string)

		var invoice models.RawInvoice
		if err := dec.Decode(&invoice); err != nil {
			return invoices, err
		}

		id = strings.TrimSpace(id)
		if id == "" || invoice == nil {
			c.logger.Warn("skipping listing entry without id")
			continue
		}
		normalizeV1Identity(invoice, id)
		invoices = append(invoices, invoice)
	}
	return invoices, nil
}

// GetSupplierInvoice fetches full invoice detail through Purchase.getOne.
func (c *Client) GetSupplierInvoice(ctx context.Context, invoiceID string) (models.RawInvoice, error) {
	if invoiceID == "" {
		return nil, fmt.Errorf("invoice id is required")
	}

	response, err := c.callV1(ctx, "Purchase.getOne", map[string]interface{}{
		"id":          invoiceID,
		"includeTags": "N",
	})
	if err != nil {
		return nil, err
	}

	var detail models.RawInvoice
	if err := json.Unmarshal(response, &detail); err != nil {
		return nil, fmt.Errorf("failed to decode invoice %s: %w", invoiceID, err)
	}
	normalizeV1Identity(detail, invoiceID)
	return detail, nil
}

// documentLink asks the platform for a one-shot PDF download URL.
func (c *Client) documentLink(ctx context.Context, invoiceID string) (string, error) {
	response, err := c.callV1(ctx, "Purchase.getDocumentLink", map[string]interface{}{
		"docid":    invoiceID,
		"filetype": "pdf",
	})
	if err != nil {
		return "", err
	}

	var payload struct {
		DownloadURL string `json:"download_url"`
	}
	if err := json.Unmarshal(response, &payload); err != nil {
		return "", fmt.Errorf("failed to decode document link: %w", err)
	}
	if payload.DownloadURL == "" {
		return "", fmt.Errorf("no download url for invoice %s", invoiceID)
	}
	return payload.DownloadURL, nil
}

// normalizeV1Identity pins the identifier fields the rest of the pipeline
// relies on: id and docid always present, docnum backfilled from ident.
func normalizeV1Identity(invoice models.RawInvoice, id string) {
	invoice["id"] = id
	invoice["docid"] = id
	if _, ok := invoice["docnum"]; !ok {
		if ident, ok := invoice["ident"]; ok {
			invoice["docnum"] = ident
		}
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
