package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/sellsync/supplier-invoice-sync/internal/models"
)

// ErrMissingID is returned when an upsert is attempted without the upstream
// invoice identifier, which is the natural key of the table.
var ErrMissingID = errors.New("airtable: invoice id is required")

// HTTPClient interface for testability
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const (
	defaultBaseURL = "https://api.airtable.com/v0"
	requestTimeout = 30 * time.Second
)

// Config holds Airtable connection settings.
type Config struct {
	APIKey  string
	BaseID  string
	Table   string
	BaseURL string
}

// Client mirrors normalized invoices into one Airtable table. Records are
// keyed by the upstream invoice id; updates PATCH only the provided fields,
// so columns maintained by hand downstream are never clobbered.
type Client struct {
	cfg        Config
	httpClient HTTPClient
	logger     *zap.Logger
}

// Record is an Airtable record envelope.
type Record struct {
	ID     string                 `json:"id"`
	Fields map[string]interface{} `json:"fields"`
}

// NewClient creates an Airtable client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}
}

func (c *Client) tableURL() string {
	return fmt.Sprintf("%s/%s/%s", c.cfg.BaseURL, c.cfg.BaseID, url.PathEscape(c.cfg.Table))
}

// FindByInvoiceID looks up the record keyed by the upstream invoice id.
// Returns nil without error when no record exists.
func (c *Client) FindByInvoiceID(ctx context.Context, invoiceID string) (*Record, error) {
	if invoiceID == "" {
		return nil, ErrMissingID
	}

	query := url.Values{}
	query.Set("filterByFormula", invoiceFormula(invoiceID))
	query.Set("maxRecords", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.tableURL()+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Records []Record `json:"records"`
	}
	if err := c.send(req, &result); err != nil {
		return nil, fmt.Errorf("lookup for invoice %s failed: %w", invoiceID, err)
	}
	if len(result.Records) == 0 {
		return nil, nil
	}
	return &result.Records[0], nil
}

// Upsert creates or updates the record for the canonical invoice, attaching
// the local PDF when one is supplied. Returns the Airtable record id.
func (c *Client) Upsert(ctx context.Context, invoice *models.CanonicalInvoice, pdfPath string) (string, error) {
	if invoice == nil || invoice.InvoiceID == "" {
		return "", ErrMissingID
	}

	fields := recordFields(invoice)
	applyAttachment(fields, invoice, pdfPath, c.logger)

	existing, err := c.FindByInvoiceID(ctx, invoice.InvoiceID)
	if err != nil {
		return "", err
	}

	if existing != nil {
		if err := c.update(ctx, existing.ID, fields); err != nil {
			return "", fmt.Errorf("update of invoice %s failed: %w", invoice.InvoiceID, err)
		}
		c.logger.Info("invoice record updated",
			zap.String("invoice_id", invoice.InvoiceID),
			zap.String("record_id", existing.ID))
		return existing.ID, nil
	}

	recordID, err := c.create(ctx, fields)
	if err != nil {
		return "", fmt.Errorf("creation of invoice %s failed: %w", invoice.InvoiceID, err)
	}
	c.logger.Info("invoice record created",
		zap.String("invoice_id", invoice.InvoiceID),
		zap.String("record_id", recordID))
	return recordID, nil
}

func (c *Client) create(ctx context.Context, fields map[string]interface{}) (string, error) {
	payload, err := json.Marshal(map[string]interface{}{"fields": fields})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tableURL(), bytes.NewReader(payload))
	if err != nil {
		return "", err
	}

	var created Record
	if err := c.send(req, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("create response carried no record id")
	}
	return created.ID, nil
}

// update PATCHes only the provided fields; absent columns keep their
// downstream values.
func (c *Client) update(ctx context.Context, recordID string, fields map[string]interface{}) error {
	payload, err := json.Marshal(map[string]interface{}{"fields": fields})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch,
		c.tableURL()+"/"+recordID, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	return c.send(req, nil)
}

// Delete removes a record by its Airtable id.
func (c *Client) Delete(ctx context.Context, recordID string) error {
	if recordID == "" {
		return fmt.Errorf("record id is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.tableURL()+"/"+recordID, nil)
	if err != nil {
		return err
	}
	return c.send(req, nil)
}

// Healthy probes the table with a zero-row read. Used by the webhook health
// endpoint.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.tableURL()+"?maxRecords=1", nil)
	if err != nil {
		return err
	}
	return c.send(req, nil)
}

func (c *Client) send(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if req.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("airtable error %d: %s", resp.StatusCode, truncate(body))
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func truncate(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
