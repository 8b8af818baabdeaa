// Package mpesa is the outbound client for the Safaricom Daraja API.
package mpesa

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"mpesa-callback-relay/config"
	"mpesa-callback-relay/internal/core/ports"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const stkPushPath = "/mpesa/stkpush/v1/processrequest"

// maxErrorBody caps how much of a failed response is kept for the error.
const maxErrorBody = 4 << 10

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client implements ports.MpesaGateway.
type Client struct {
	baseURL    string
	httpClient HTTPClient
	tokens     oauth2.TokenSource
	log        zerolog.Logger
}

// NewClient creates a Daraja client. Access tokens are fetched with the
// consumer key and secret and reused until shortly before they expire.
func NewClient(ctx context.Context, cfg config.MpesaConfig, httpClient HTTPClient, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	src := &tokenSource{
		ctx:        ctx,
		url:        base + tokenPath,
		key:        cfg.ConsumerKey,
		secret:     cfg.ConsumerSecret,
		httpClient: httpClient,
	}
	return &Client{
		baseURL:    base,
		httpClient: httpClient,
		tokens:     oauth2.ReuseTokenSource(nil, src),
		log:        log,
	}
}

// apiError is the body Daraja returns on a rejected request.
type apiError struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// STKPush sends a Lipa Na M-Pesa Online request.
func (c *Client) STKPush(ctx context.Context, payload *ports.STKPushPayload) (*ports.STKPushResult, error) {
	tok, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("access token: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal stk push: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+stkPushPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build stk push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	tok.SetAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stk push request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, readAPIError(resp)
	}

	var res ports.STKPushResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode stk push response: %w", err)
	}

	c.log.Debug().
		Str("checkout_request_id", res.CheckoutRequestID).
		Str("response_code", res.ResponseCode).
		Msg("daraja accepted stk push")

	return &res, nil
}

func readAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var apiErr apiError
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.ErrorMessage != "" {
		return fmt.Errorf("daraja %d %s: %s", resp.StatusCode, apiErr.ErrorCode, apiErr.ErrorMessage)
	}
	return fmt.Errorf("daraja %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
}
