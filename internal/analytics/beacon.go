// Package analytics relays usage events to the query API's analytics endpoint.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/expat-assistant/internal/client"
	"github.com/capitalize-ai/expat-assistant/internal/model"
	"github.com/capitalize-ai/expat-assistant/pkg/logger"
	"github.com/capitalize-ai/expat-assistant/pkg/metrics"
)

const sendTimeout = 5 * time.Second

// Tracker records analytics events without blocking the caller.
type Tracker interface {
	Track(event model.EventName, sessionID string, data map[string]any)
}

// Beacon posts events to {base}/api/analytics.
type Beacon struct {
	url        string
	httpClient *http.Client
	enabled    bool
	logger     *logger.Logger
	wg         sync.WaitGroup
}

// New creates a beacon. A disabled beacon drops every event.
func New(baseURL string, httpClient *http.Client, enabled bool, log *logger.Logger) *Beacon {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: sendTimeout}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Beacon{
		url:        baseURL + client.AnalyticsPath,
		httpClient: httpClient,
		enabled:    enabled,
		logger:     log,
	}
}

// Send posts one event and waits for the answer.
func (b *Beacon) Send(ctx context.Context, ev model.AnalyticsEvent) error {
	if ev.Data == nil {
		ev.Data = map[string]any{}
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending event: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("analytics endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// Track sends the event in the background. Failures never reach the
// caller; they are only logged at debug level.
func (b *Beacon) Track(event model.EventName, sessionID string, data map[string]any) {
	if !b.enabled {
		return
	}

	ev := model.AnalyticsEvent{
		Event:     event,
		Data:      data,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		outcome := "success"
		if err := b.Send(ctx, ev); err != nil {
			outcome = "error"
			b.logger.Debug("analytics beacon dropped",
				zap.String("event", string(event)),
				zap.Error(err),
			)
		}
		metrics.BeaconsTotal.WithLabelValues(string(event), outcome).Inc()
	}()
}

// Wait blocks until every background send has finished.
func (b *Beacon) Wait() {
	b.wg.Wait()
}

// Nop is a Tracker that drops everything.
type Nop struct{}

// Track implements Tracker.
func (Nop) Track(model.EventName, string, map[string]any) {}
