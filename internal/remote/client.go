// Package remote talks to the backend REST surface: row inserts into the
// server tables, filtered selects against tables and views, and the
// collect_and_renew stored procedure. Responses are plain JSON documents;
// failures are classified into the sentinel errors the sync engine acts on.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/JohnF-code/financeflow-app-cobrador/internal/common"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/logging"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/models"
)

// Remote table and view names.
const (
	TableClients   = "clients"
	TablePrestamos = "prestamos"
	TablePagos     = "pagos"
	ViewQuotas     = "v_cuotas_cobrador"
	ViewSettings   = "settings"
)

// Client is a thin HTTP client for the backend REST API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     logging.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, log logging.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// Insert writes doc as a new row and returns the server's representation of
// it, including the permanent id the server assigned.
func (c *Client) Insert(ctx context.Context, table string, doc models.Document) (models.Document, error) {
	body, status, err := c.do(ctx, http.MethodPost, "/rest/v1/"+table, nil, doc, true)
	if err != nil {
		return nil, err
	}
	if err := classify(status, body); err != nil {
		return nil, fmt.Errorf("insert into %s: %w", table, err)
	}

	// representation responses are a one-element array
	var rows []models.Document
	if err := json.Unmarshal(body, &rows); err != nil || len(rows) == 0 {
		return nil, fmt.Errorf("%w: insert into %s returned no representation", common.ErrRemoteWriteFailed, table)
	}
	return rows[0], nil
}

// Select reads rows from a table or view with equality filters
// (column -> value).
func (c *Client) Select(ctx context.Context, table string, filters url.Values) ([]models.Document, error) {
	query := url.Values{"select": {"*"}}
	for column, values := range filters {
		for _, v := range values {
			query.Add(column, "eq."+v)
		}
	}

	body, status, err := c.do(ctx, http.MethodGet, "/rest/v1/"+table, query, nil, false)
	if err != nil {
		return nil, err
	}
	if err := classify(status, body); err != nil {
		return nil, fmt.Errorf("select from %s: %w", table, err)
	}

	var rows []models.Document
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("deserializing rows from %s: %w", table, err)
	}
	return rows, nil
}

// CollectAndRenew invokes the server-side procedure that atomically records
// a final collection on one loan and opens the replacement loan. The two
// writes either both happen or neither does; the procedure enforces the
// idempotency key inside args.
func (c *Client) CollectAndRenew(ctx context.Context, args models.Document) (models.Document, error) {
	body, status, err := c.do(ctx, http.MethodPost, "/rest/v1/rpc/collect_and_renew", nil, args, false)
	if err != nil {
		return nil, err
	}
	if err := classify(status, body); err != nil {
		return nil, fmt.Errorf("collect_and_renew: %w", err)
	}

	var result models.Document
	if len(body) > 0 && !bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("deserializing collect_and_renew result: %w", err)
		}
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any, representation bool) ([]byte, int, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("serializing request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if representation {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", common.ErrRemoteWriteFailed, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("reading response body: %w", err)
	}
	c.log.Debug(ctx, "remote call", "method", method, "path", path, "status", resp.StatusCode)
	return b, resp.StatusCode, nil
}

var permissionPattern = regexp.MustCompile(`(?i)row-level security|\brls\b|policy|permission denied|not authorized`)

var duplicatePattern = regexp.MustCompile(`(?i)duplicate key|idempotency_key|already exists`)

// classify maps an HTTP response to the sentinel the caller dispatches on.
// A duplicate-effect conflict means the server already holds this record,
// so the sync engine treats it as success.
func classify(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	text := string(body)
	switch {
	case status == http.StatusConflict || duplicatePattern.MatchString(text):
		return fmt.Errorf("%w: status %d: %s", common.ErrDuplicateEffect, status, snippet(text))
	case status == http.StatusUnauthorized || status == http.StatusForbidden || permissionPattern.MatchString(text):
		return fmt.Errorf("%w: status %d: %s", common.ErrPermissionDenied, status, snippet(text))
	default:
		return fmt.Errorf("%w: status %d: %s", common.ErrRemoteWriteFailed, status, snippet(text))
	}
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
