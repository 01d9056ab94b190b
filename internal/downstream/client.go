// Package downstream talks to the templating service that consumes
// expanded tool documents and their template-macro payloads.
package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client communicates with the downstream templating HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// RetryableError marks a publish failure worth retrying (server-side or
// transport trouble, as opposed to a rejected document).
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// DocumentRequest is the body for PUT /documents/{name}.
type DocumentRequest struct {
	SourcePath     string            `json:"source_path"`
	XML            string            `json:"xml"`
	ImportPaths    []string          `json:"import_paths,omitempty"`
	TemplateParams map[string]string `json:"template_params,omitempty"`
}

// PublishDocument uploads one expanded document.
func (c *Client) PublishDocument(ctx context.Context, name string, req DocumentRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.baseURL+"/documents/"+url.PathEscape(name), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &RetryableError{Err: fmt.Errorf("publish document: %w", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return &RetryableError{Err: statusError("publish document", name, resp)}
	default:
		return statusError("publish document", name, resp)
	}
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func statusError(op, name string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("%s %s: status %d: %s", op, name, resp.StatusCode, string(body))
}
