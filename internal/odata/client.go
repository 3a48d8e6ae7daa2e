package odata

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/oskarih/fmcloud-go/internal/batch"
)

// TokenProvider supplies the envelope-level Authorization header value.
// Defined at the consumer per Go convention "accept interfaces, return
// structs"; fmid.TokenManager is the real implementation.
type TokenProvider interface {
	AuthorizationHeader(ctx context.Context) (string, error)
}

// Client executes batch round trips against one service endpoint.
// It performs no automatic retries: the only recovery in this stack is
// the token manager's refresh fallback, and abandonment or timeout
// policy belongs to the caller's context.
type Client struct {
	endpoint   string
	httpClient *http.Client
	tokens     TokenProvider
	logger     *slog.Logger
}

// NewClient creates a batch transport client.
// endpoint is the service root, e.g. "https://host/fmi/odata/v4/Sales".
func NewClient(endpoint string, httpClient *http.Client, tokens TokenProvider, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		endpoint:   endpoint,
		httpClient: httpClient,
		tokens:     tokens,
		logger:     logger,
	}
}

// Batch sends the operations as one $batch exchange and returns the
// individual responses in operation order.
func (c *Client) Batch(ctx context.Context, ops []batch.Operation) ([]batch.Response, error) {
	authorization, err := c.tokens.AuthorizationHeader(ctx)
	if err != nil {
		return nil, fmt.Errorf("odata: obtaining authorization: %w", err)
	}

	req, err := batch.Encode(ops, authorization, c.endpoint)
	if err != nil {
		return nil, err
	}

	req = req.WithContext(ctx)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("odata: POST %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("odata: reading batch response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Err:        classifyStatus(resp.StatusCode),
		}
	}

	c.logger.Debug("batch round trip",
		slog.Int("operations", len(ops)),
		slog.Int("status", resp.StatusCode),
	)

	return batch.Decode(body, resp.Header)
}
