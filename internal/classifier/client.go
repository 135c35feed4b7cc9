// Package classifier is the client of the external category-suggestion
// service. Every failure of the service degrades to "no suggestion".
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"finsight/internal/core"
	"finsight/internal/log"
)

const (
	DefaultTimeout     = 3000 * time.Millisecond
	DefaultPingTimeout = 2000 * time.Millisecond

	maxResponseBytes = 1 << 20
)

// Config is fixed at construction.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	PingTimeout time.Duration
	// HTTPClient defaults to a client without its own timeout; per-call
	// deadlines are always set through the request context.
	HTTPClient *http.Client
	// Dispatcher delivers feedback off the critical path. Defaults to a
	// GoroutineDispatcher posting through this client.
	Dispatcher Dispatcher
}

// Health is the liveness view of the classifier service.
type Health struct {
	Available       bool `json:"available"`
	CategoriesCount *int `json:"categoriesCount,omitempty"`
}

// Feedback is the correction sent back to the classifier. It is also the
// AMQP message body when feedback goes through the broker.
type Feedback struct {
	Description         string `json:"description"`
	CorrectCategorySlug string `json:"correct_category_slug"`
}

type Client struct {
	baseURL     string
	timeout     time.Duration
	pingTimeout time.Duration
	http        *http.Client
	dispatcher  Dispatcher
	logger      *log.Logger
}

func NewClient(cfg Config, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Discard()
	}
	c := &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		timeout:     cfg.Timeout,
		pingTimeout: cfg.PingTimeout,
		http:        cfg.HTTPClient,
		dispatcher:  cfg.Dispatcher,
		logger:      logger.WithComponent(log.ComponentClassifier),
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.pingTimeout <= 0 {
		c.pingTimeout = DefaultPingTimeout
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.dispatcher == nil {
		c.dispatcher = NewGoroutineDispatcher(c, c.timeout, c.logger)
	}
	return c
}

type predictRequest struct {
	Description string `json:"description"`
	Type        string `json:"type"`
}

type predictResponse struct {
	CategorySlug string   `json:"category_slug"`
	Confidence   *float64 `json:"confidence"`
}

// Classify asks the service for a category suggestion. It returns nil on
// any failure, including the call exceeding the client timeout, and never
// returns an error.
func (c *Client) Classify(ctx context.Context, description string, typ core.TransactionType) *core.Prediction {
	description = strings.TrimSpace(description)
	if description == "" || !typ.Valid() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(predictRequest{Description: description, Type: string(typ)})
	if err != nil {
		c.logger.Warn("Failed to encode prediction request", log.FieldError, err)
		return nil
	}

	resp, err := c.do(ctx, http.MethodPost, "/predict", body)
	if err != nil {
		c.degrade(log.OpClassify, err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.degrade(log.OpClassify, fmt.Errorf("unexpected status %d", resp.StatusCode))
		return nil
	}

	var out predictResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		c.degrade(log.OpClassify, fmt.Errorf("decode response: %w", err))
		return nil
	}
	if out.CategorySlug == "" || out.Confidence == nil || *out.Confidence < 0 || *out.Confidence > 1 {
		c.degrade(log.OpClassify, errors.New("incomplete prediction"))
		return nil
	}

	c.logger.Debug("Category predicted",
		log.FieldCategory, out.CategorySlug,
		log.FieldConfidence, *out.Confidence)
	return &core.Prediction{CategorySlug: out.CategorySlug, Confidence: *out.Confidence}
}

type healthResponse struct {
	Status     string          `json:"status"`
	Categories json.RawMessage `json:"categories"`
}

// Ping reports whether the service is up. It never blocks longer than the
// ping timeout.
func (c *Client) Ping(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		c.degrade(log.OpPing, err)
		return Health{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.degrade(log.OpPing, fmt.Errorf("unexpected status %d", resp.StatusCode))
		return Health{}
	}

	var out healthResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		c.degrade(log.OpPing, fmt.Errorf("decode response: %w", err))
		return Health{}
	}
	if out.Status != "ok" {
		return Health{}
	}

	return Health{Available: true, CategoriesCount: countCategories(out.Categories)}
}

// countCategories accepts either a list of slugs or a bare count.
func countCategories(raw json.RawMessage) *int {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		n := len(list)
		return &n
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n
	}
	return nil
}

// PostFeedback synchronously sends a correction to the service. It is
// meant to run inside a Dispatcher, never on a request path.
func (c *Client) PostFeedback(ctx context.Context, fb Feedback) error {
	if strings.TrimSpace(fb.Description) == "" || fb.CorrectCategorySlug == "" {
		return errors.New("feedback requires description and category slug")
	}

	body, err := json.Marshal(fb)
	if err != nil {
		return fmt.Errorf("encode feedback: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/feedback", body)
	if err != nil {
		return fmt.Errorf("post feedback: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post feedback: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// SendFeedback hands the correction to the dispatcher and returns at once.
// Dispatch failures are logged only.
func (c *Client) SendFeedback(ctx context.Context, description, correctSlug string) {
	fb := Feedback{Description: strings.TrimSpace(description), CorrectCategorySlug: correctSlug}
	if err := c.dispatcher.Dispatch(ctx, fb); err != nil {
		c.logger.Warn("Failed to dispatch classifier feedback",
			log.FieldCategory, correctSlug,
			log.FieldError, err)
	}
}

// Drain blocks until feedback still in flight has been delivered, when the
// dispatcher tracks it. Called on shutdown.
func (c *Client) Drain() {
	if w, ok := c.dispatcher.(interface{ Wait() }); ok {
		w.Wait()
	}
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return c.http.Do(req)
}

// degrade logs a failed call at Info, or Debug when the deadline or the
// caller ended it. A missing classifier is an expected state, not a fault.
func (c *Client) degrade(op string, err error) {
	level := c.logger.Info
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		level = c.logger.Debug
	}
	level("Classifier unavailable, continuing without it",
		log.FieldOperation, op,
		log.FieldEndpoint, c.baseURL,
		log.FieldError, err)
}
