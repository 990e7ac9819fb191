package servicenow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/deskmate-ai/deskmate/logging"
)

// APIError is returned when the Table API answers with a non-2xx status.
type APIError struct {
	// StatusCode is the HTTP status of the failed request.
	StatusCode int

	// Message is the error message from the ServiceNow error envelope,
	// or the raw response body when the envelope could not be decoded.
	Message string

	// Detail carries the optional detail field from the error envelope.
	Detail string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("servicenow: %s (status %d): %s", e.Message, e.StatusCode, e.Detail)
	}

	return fmt.Sprintf("servicenow: %s (status %d)", e.Message, e.StatusCode)
}

// NotFound reports whether the error represents a missing record.
func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// ClientOptions configures a Client.
type ClientOptions struct {
	// HTTPClient is the HTTP client used for requests. Defaults to a
	// client with Timeout applied.
	HTTPClient *http.Client

	// Timeout bounds each request when no custom HTTPClient is given.
	Timeout time.Duration

	// Logger receives structured log output.
	Logger logging.Logger
}

// Client talks to a ServiceNow instance through the Table API.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     logging.Logger
}

// NewClient creates a Table API client for the given instance.
// The instance URL is the plain host URL, e.g. https://dev12345.service-now.com.
func NewClient(instanceURL, username, password string, optFns ...func(o *ClientOptions)) *Client {
	opts := ClientOptions{
		Timeout: 30 * time.Second,
		Logger:  logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(instanceURL, "/"),
		username:   username,
		password:   password,
		httpClient: httpClient,
		logger:     opts.Logger,
	}
}

// ListOptions narrows a ListRecords call.
type ListOptions struct {
	// Query is an encoded query string (sysparm_query).
	Query string

	// Limit caps the number of returned records (sysparm_limit).
	Limit int

	// Fields restricts the returned fields, comma separated (sysparm_fields).
	Fields string

	// Offset skips records for pagination (sysparm_offset).
	Offset int
}

// ListRecords returns the records of a table as a raw JSON array. The
// backend returns them in storage order; sorting parameters are not
// supported. The raw form keeps each record's field order exactly as the
// API sent it.
func (c *Client) ListRecords(ctx context.Context, table string, opts ListOptions) (json.RawMessage, error) {
	query := url.Values{}

	if opts.Query != "" {
		query.Set("sysparm_query", opts.Query)
	}

	if opts.Limit > 0 {
		query.Set("sysparm_limit", strconv.Itoa(opts.Limit))
	}

	if opts.Fields != "" {
		query.Set("sysparm_fields", opts.Fields)
	}

	if opts.Offset > 0 {
		query.Set("sysparm_offset", strconv.Itoa(opts.Offset))
	}

	body, err := c.do(ctx, http.MethodGet, c.tableURL(table, "", query), nil)
	if err != nil {
		return nil, err
	}

	return decodeResult(body, "[]")
}

// GetRecord returns a single record by sys_id as a raw JSON object with its
// field order intact. Fields optionally restricts the returned fields,
// comma separated.
func (c *Client) GetRecord(ctx context.Context, table, sysID, fields string) (json.RawMessage, error) {
	query := url.Values{}

	if fields != "" {
		query.Set("sysparm_fields", fields)
	}

	body, err := c.do(ctx, http.MethodGet, c.tableURL(table, sysID, query), nil)
	if err != nil {
		return nil, err
	}

	return decodeResult(body, "{}")
}

// CreateRecord inserts a record and returns it as stored, as a raw JSON
// object.
func (c *Client) CreateRecord(ctx context.Context, table string, fields map[string]any) (json.RawMessage, error) {
	body, err := c.do(ctx, http.MethodPost, c.tableURL(table, "", nil), fields)
	if err != nil {
		return nil, err
	}

	return decodeResult(body, "{}")
}

// UpdateRecord patches a record by sys_id and returns the updated record as
// a raw JSON object.
func (c *Client) UpdateRecord(ctx context.Context, table, sysID string, fields map[string]any) (json.RawMessage, error) {
	body, err := c.do(ctx, http.MethodPatch, c.tableURL(table, sysID, nil), fields)
	if err != nil {
		return nil, err
	}

	return decodeResult(body, "{}")
}

func (c *Client) tableURL(table, sysID string, query url.Values) string {
	u := fmt.Sprintf("%s/api/now/table/%s", c.baseURL, url.PathEscape(table))

	if sysID != "" {
		u += "/" + url.PathEscape(sysID)
	}

	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	return u
}

func (c *Client) createRequest(ctx context.Context, method, rawURL string, payload any) (*http.Request, error) {
	var body io.Reader

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}

		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, payload any) ([]byte, error) {
	req, err := c.createRequest(ctx, method, rawURL, payload)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.logger.Debug("servicenow.request",
		"method", method,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, newAPIError(resp.StatusCode, body)
	}

	return body, nil
}

// decodeResult extracts the result payload without reshaping it. Decoding
// into a map would re-sort record fields alphabetically on the next marshal,
// so the payload stays raw. A missing or null result becomes empty.
func decodeResult(body []byte, empty string) (json.RawMessage, error) {
	var envelope struct {
		Result json.RawMessage `json:"result"`
	}

	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	result := bytes.TrimSpace(envelope.Result)
	if len(result) == 0 || string(result) == "null" {
		return json.RawMessage(empty), nil
	}

	return result, nil
}

func newAPIError(statusCode int, body []byte) *APIError {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Detail  string `json:"detail"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return &APIError{
			StatusCode: statusCode,
			Message:    envelope.Error.Message,
			Detail:     envelope.Error.Detail,
		}
	}

	message := strings.TrimSpace(string(body))
	if message == "" {
		message = http.StatusText(statusCode)
	}

	return &APIError{
		StatusCode: statusCode,
		Message:    message,
	}
}
