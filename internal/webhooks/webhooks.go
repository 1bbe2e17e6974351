// Package webhooks notifies external listeners about session activity.
package webhooks

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/lherron/eotdiff/internal/domain"
	"github.com/lherron/eotdiff/internal/logging"
)

const (
	defaultTimeout     = 500 * time.Millisecond
	defaultConcurrency = 4
)

// Payload is the webhook body sent after a compare or attribution.
type Payload struct {
	Event           string                 `json:"event"`
	SessionID       string                 `json:"session_id"`
	Summary         domain.CompareSummary  `json:"summary"`
	FaultAllocation domain.FaultAllocation `json:"fault_allocation"`
}

// NewPayload builds a payload from a session result.
func NewPayload(event, sessionID string, result *domain.CompareResult) Payload {
	return Payload{
		Event:           event,
		SessionID:       sessionID,
		Summary:         result.Summary,
		FaultAllocation: result.FaultAllocation,
	}
}

// Dispatcher posts payloads to a fixed list of URL templates.
type Dispatcher struct {
	urls   []string
	client *http.Client
	log    *logging.Logger
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher. URLs may contain {session_id}.
func NewDispatcher(urls []string, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Dispatcher{
		urls:   urls,
		client: &http.Client{Timeout: defaultTimeout},
		log:    logger,
	}
}

// Enabled reports whether any URL is configured.
func (d *Dispatcher) Enabled() bool {
	return d != nil && len(d.urls) > 0
}

// Dispatch sends payload in the background. Failures are logged, never returned.
func (d *Dispatcher) Dispatch(payload Payload) {
	if !d.Enabled() {
		return
	}
	targets := ResolveTargets(d.urls, payload, d.log)
	if len(targets) == 0 {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.dispatchURLs(targets, payload)
	}()
}

// Wait blocks until every in-flight dispatch has finished.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

// ResolveTargets templates, normalizes, and de-dupes webhook URLs.
func ResolveTargets(urls []string, payload Payload, logger *logging.Logger) []string {
	if len(urls) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(urls))
	var normalized []string

	for _, raw := range urls {
		templated := strings.TrimSpace(applyTemplate(strings.TrimSpace(raw), payload))
		templated = strings.TrimRight(templated, "/")
		if templated == "" {
			continue
		}
		if !isValidWebhookURL(templated) {
			if logger != nil {
				logger.Warn("skipping invalid webhook url", "url", templated)
			}
			continue
		}
		if _, ok := seen[templated]; ok {
			continue
		}
		seen[templated] = struct{}{}
		normalized = append(normalized, templated)
	}

	return normalized
}

func applyTemplate(raw string, payload Payload) string {
	return strings.ReplaceAll(raw, "{session_id}", payload.SessionID)
}

func isValidWebhookURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	return parsed.Host != ""
}

func (d *Dispatcher) dispatchURLs(urls []string, payload Payload) {
	body, err := json.Marshal(payload)
	if err != nil {
		d.log.Error("failed to encode webhook payload", "error", err)
		return
	}

	workers := defaultConcurrency
	if len(urls) < workers {
		workers = len(urls)
	}

	jobs := make(chan string)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for endpoint := range jobs {
				d.send(endpoint, body)
			}
		}()
	}

	for _, endpoint := range urls {
		jobs <- endpoint
	}
	close(jobs)
	wg.Wait()
}

func (d *Dispatcher) send(endpoint string, body []byte) {
	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		d.log.Warn("webhook request build failed", "url", endpoint, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		d.log.Warn("webhook request failed", "url", endpoint, "error", err)
		return
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		d.log.Warn("webhook rejected", "url", endpoint, "status", resp.StatusCode)
	}
}
