// Package backend is the storefront's only door to the REST backend. Every call goes through
// one request helper that translates transport outcomes into the storefront error taxonomy.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	sferrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/pkg/auth"
	"github.com/abgdnv/storefront/pkg/client/http/interceptors"
	"github.com/abgdnv/storefront/pkg/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	idempotencyHeader = "Idempotency-Key"
	maxBodyBytes      = 10 << 20
)

// Client issues backend calls. It never retries.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewTransport stacks tracing over the circuit breaker over the default transport.
func NewTransport(cfg config.ResilienceConfig) http.RoundTripper {
	cb := interceptors.NewCircuitBreaker("backend", cfg.CircuitBreaker)
	return otelhttp.NewTransport(interceptors.CircuitBreakerRoundTripper(cb, http.DefaultTransport))
}

// NewClient creates a Client. A nil transport uses http.DefaultTransport.
func NewClient(cfg config.BackendConfig, transport http.RoundTripper, logger *slog.Logger) *Client {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.URL), "/"),
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		logger: logger.With("component", "backend"),
	}
}

// request describes one backend call. A nil creds makes an anonymous call.
type request struct {
	method         string
	path           string
	creds          auth.CredentialProvider
	idempotencyKey string
	body           any
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *apiError       `json:"error"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// do performs req and decodes the payload into T. Bodies may be wrapped in {"data": ...}
// or bare. Errors wrap one of ErrUnauthenticated, ErrNotFound, ErrUnavailable,
// or the context error when ctx ended.
func do[T any](ctx context.Context, c *Client, req request) (T, error) {
	var zero T

	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return zero, err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, fmt.Errorf("%s %s: %w", req.method, req.path, ctxErr)
		}
		c.logger.WarnContext(ctx, "backend call failed", "method", req.method, "path", req.path, "error", err)
		return zero, fmt.Errorf("%w: %s %s: %v", sferrors.ErrUnavailable, req.method, req.path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, fmt.Errorf("%s %s: %w", req.method, req.path, ctxErr)
		}
		return zero, fmt.Errorf("%w: reading %s %s: %v", sferrors.ErrUnavailable, req.method, req.path, err)
	}

	if err := statusError(resp.StatusCode, body); err != nil {
		c.logger.DebugContext(ctx, "backend rejected call", "method", req.method, "path", req.path,
			"status", resp.StatusCode, "error", err)
		return zero, fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}

	if err := decode(body, &zero); err != nil {
		return zero, fmt.Errorf("%w: decoding %s %s: %v", sferrors.ErrUnavailable, req.method, req.path, err)
	}
	return zero, nil
}

func (c *Client) newRequest(ctx context.Context, req request) (*http.Request, error) {
	var reader io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	endpoint, err := url.JoinPath(c.baseURL, req.path)
	if err != nil {
		return nil, fmt.Errorf("invalid backend path %s: %w", req.path, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if reader != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.idempotencyKey != "" {
		httpReq.Header.Set(idempotencyHeader, req.idempotencyKey)
	}
	if req.creds != nil {
		token, err := req.creds.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", sferrors.ErrUnauthenticated, err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	return httpReq, nil
}

func statusError(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	msg := http.StatusText(status)
	var env envelope
	if json.Unmarshal(body, &env) == nil && env.Error != nil && env.Error.Message != "" {
		msg = env.Error.Message
	}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", sferrors.ErrUnauthenticated, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", sferrors.ErrNotFound, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", sferrors.ErrUnavailable, status, msg)
	}
}

// decode fills out from the "data" member when present, otherwise from the whole body.
func decode(body []byte, out any) error {
	if _, ok := out.(*struct{}); ok {
		return nil
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return errors.New("empty response body")
	}
	if body[0] == '{' {
		var env envelope
		if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
			return json.Unmarshal(env.Data, out)
		}
	}
	return json.Unmarshal(body, out)
}
