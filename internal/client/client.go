// Package client is the transport for the Expat Assistant query API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/expat-assistant/internal/model"
	"github.com/capitalize-ai/expat-assistant/pkg/logger"
	"github.com/capitalize-ai/expat-assistant/pkg/metrics"
)

const (
	// QueryPath is the primary Q&A endpoint.
	QueryPath = "/api/query"
	// AdvertisingPath is the advertising sales bot endpoint.
	AdvertisingPath = "/api/bot/advertising"
	// AnalyticsPath receives fire-and-forget beacons.
	AnalyticsPath = "/api/analytics"

	// DefaultTimeout bounds every upstream call.
	DefaultTimeout = 30 * time.Second

	maxBodyBytes = 4 << 20
)

// Sender issues one query and returns the decoded upstream response.
type Sender interface {
	Send(ctx context.Context, q model.Query) (*model.RawResponse, error)
}

// Config holds transport settings.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client posts queries to the query API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	schemas    *schemas
	tracer     trace.Tracer
	logger     *logger.Logger
}

// New creates a client. An empty BaseURL resolves to the local loopback server.
func New(cfg Config, log *logger.Logger) (*Client, error) {
	s, err := compileSchemas()
	if err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	if log == nil {
		log = logger.NewNop()
	}

	return &Client{
		baseURL:    ResolveBaseURL(cfg.BaseURL, ""),
		httpClient: httpClient,
		schemas:    s,
		tracer:     otel.Tracer("github.com/capitalize-ai/expat-assistant/internal/client"),
		logger:     log,
	}, nil
}

// BaseURL returns the resolved API base.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HTTPClient returns the underlying HTTP client so beacons share its transport.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Send posts q to the endpoint for its mode. Every upstream problem is
// returned as a *Failure.
func (c *Client) Send(ctx context.Context, q model.Query) (*model.RawResponse, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	path, payload := requestFor(q)

	ctx, span := c.tracer.Start(ctx, "client.Send", trace.WithAttributes(
		attribute.String("query.mode", string(q.Mode)),
		attribute.String("query.language", q.Language),
		attribute.Int("query.offset", q.Offset),
	))
	defer span.End()

	start := time.Now()
	raw, err := c.send(ctx, q.Mode, path, payload)
	outcome := "success"
	if err != nil {
		outcome = "error"
		if f, ok := AsFailure(err); ok {
			outcome = string(f.Kind)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	metrics.RecordUpstreamQuery(string(q.Mode), outcome, time.Since(start).Seconds())

	c.logger.Debug("query API call finished",
		zap.String("mode", string(q.Mode)),
		zap.String("path", path),
		zap.String("outcome", outcome),
		zap.Duration("duration", time.Since(start)),
	)

	return raw, err
}

func requestFor(q model.Query) (string, any) {
	if q.Mode == model.ModeAdvertising {
		return AdvertisingPath, model.AdvertisingRequest{
			Message:        q.Text,
			Language:       q.Language,
			ConversationID: q.ConversationID,
		}
	}
	return QueryPath, model.QueryRequest{
		Question: q.Text,
		Language: q.Language,
		Limit:    q.Limit,
		Offset:   q.Offset,
		Agent:    q.Agent,
	}
}

func (c *Client) send(ctx context.Context, mode model.Mode, path string, payload any) (*model.RawResponse, error) {
	body, err := c.post(ctx, path, payload)
	if err != nil {
		return nil, err
	}

	if err := c.schemas.validate(mode, body); err != nil {
		return nil, malformedFailure(err)
	}

	raw := &model.RawResponse{Mode: mode}
	if mode == model.ModeAdvertising {
		raw.Advertising = &model.AdvertisingResponse{}
		err = json.Unmarshal(body, raw.Advertising)
	} else {
		raw.Query = &model.QueryResponse{}
		err = json.Unmarshal(body, raw.Query)
	}
	if err != nil {
		return nil, malformedFailure(err)
	}

	return raw, nil
}

// post sends payload as JSON and returns the body of a 2xx response.
func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, networkFailure(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, serverFailure(resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, networkFailure(err)
	}
	return data, nil
}
