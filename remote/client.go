package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ClientOptions configures a Client.
type ClientOptions struct {
	// HTTPClient is the HTTP client used for requests. Defaults to a
	// client with Timeout applied.
	HTTPClient *http.Client

	// Timeout bounds each request when no custom HTTPClient is given.
	// Turns can run several model calls, so the default is generous.
	Timeout time.Duration
}

// Client calls a served Engine.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the engine served at baseURL.
func NewClient(baseURL string, optFns ...func(o *ClientOptions)) *Client {
	opts := ClientOptions{
		Timeout: 2 * time.Minute,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Query sends text to the engine and returns its response text.
func (c *Client) Query(ctx context.Context, text string) (string, error) {
	payload, err := json.Marshal(queryRequest{Text: text})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/query", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if body.Error != "" {
			return "", fmt.Errorf("query failed: %s", body.Error)
		}

		return "", fmt.Errorf("query failed with status %d", resp.StatusCode)
	}

	return body.Response, nil
}
