package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/T-Rylander/unifi-edtech-stack/internal/metrics"
)

var ( // Define custom errors
	// ErrUnavailable means the backend could not be reached at all.
	ErrUnavailable = errors.New("failed to connect to Ollama")
	// ErrTimeout means the backend did not answer within the configured timeout.
	ErrTimeout = errors.New("Ollama request timed out")
)

// StatusError is returned when Ollama answered with a non-200 status. It
// carries the upstream status code and body so callers can tell a rejected
// request apart from an unreachable backend.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Ollama API returned %d: %s", e.StatusCode, e.Body)
}

// VersionUnknown is reported when the backend version cannot be determined.
const VersionUnknown = "unknown"

// DefaultModel is used when no model is configured.
const DefaultModel = "llama3:8b"

const (
	defaultTimeout = 30 * time.Second
	healthTimeout  = 5 * time.Second
	listTimeout    = 10 * time.Second
	pullTimeout    = 300 * time.Second
)

// Client is a client for the Ollama API. Every prompt that leaves the
// process goes through it.
type Client struct {
	host       string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	System string `json:"system,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type versionResponse struct {
	Version string `json:"version"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

type pullRequest struct {
	Name string `json:"name"`
}

// NewClient creates a new Ollama client. An empty model or non-positive
// timeout falls back to the defaults.
func NewClient(host, model string, timeout time.Duration, logger *zap.Logger) *Client {
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		host:       strings.TrimSuffix(host, "/"),
		model:      model,
		timeout:    timeout,
		httpClient: &http.Client{},
		logger:     logger,
	}

	logger.Info("Initialized Ollama client",
		zap.String("host", c.host),
		zap.String("model", c.model))

	return c
}

// IsHealthy reports whether the backend answers its version endpoint within
// the probe deadline. It never returns an error: any failure reads as
// unhealthy.
func (c *Client) IsHealthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/version", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Ollama health check failed", zap.Error(err))
		metrics.BackendUp.Set(0)
		return false
	}
	defer resp.Body.Close()

	healthy := resp.StatusCode == http.StatusOK
	if healthy {
		metrics.BackendUp.Set(1)
	} else {
		metrics.BackendUp.Set(0)
	}
	return healthy
}

// Version returns the backend's reported version, or VersionUnknown on any
// failure. It never returns an error.
func (c *Client) Version(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/version", nil)
	if err != nil {
		return VersionUnknown
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to get Ollama version", zap.Error(err))
		return VersionUnknown
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return VersionUnknown
	}

	var version versionResponse
	if err := json.NewDecoder(resp.Body).Decode(&version); err != nil {
		c.logger.Error("Failed to decode Ollama version", zap.Error(err))
		return VersionUnknown
	}
	if version.Version == "" {
		return VersionUnknown
	}

	return version.Version
}

// Query submits a non-streaming generation request and returns the model's
// text. Unlike the diagnostic calls, failures are returned to the caller:
// ErrTimeout when the configured deadline passes, ErrUnavailable on a
// connection failure, and *StatusError for a non-200 reply.
func (c *Client) Query(ctx context.Context, prompt, system string) (string, error) {
	payload := generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		System: system,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/generate", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Info("Querying Ollama model", zap.String("model", c.model))
	c.logger.Debug("Prompt preview", zap.String("prompt", truncate(prompt, 100)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
		}
		return "", fmt.Errorf("%w at %s: %v", ErrUnavailable, c.host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
		c.logger.Error("Ollama rejected generate request",
			zap.Int("status", resp.StatusCode))
		return "", statusErr
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		// The deadline can also expire mid-read, after Do has returned.
		if isTimeout(err) {
			return "", fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
		}
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Info("Ollama response received", zap.Int("chars", len(result.Response)))
	c.logger.Debug("Response preview", zap.String("response", truncate(result.Response, 100)))

	return result.Response, nil
}

// ListModels returns the model names available on the backend. Best-effort:
// an empty slice on any failure, never an error.
func (c *Client) ListModels(ctx context.Context) []string {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return nil
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to list Ollama models", zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		c.logger.Error("Failed to decode Ollama model list", zap.Error(err))
		return nil
	}

	models := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		models = append(models, m.Name)
	}

	c.logger.Info("Available Ollama models", zap.Strings("models", models))

	return models
}

// PullModel asks the backend to download a model. Downloads can run to
// multiple gigabytes, hence the long deadline. Best-effort: false on any
// failure, never an error.
func (c *Client) PullModel(ctx context.Context, model string) bool {
	jsonData, err := json.Marshal(pullRequest{Name: model})
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, pullTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/pull", bytes.NewBuffer(jsonData))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Info("Pulling Ollama model", zap.String("model", model))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to pull model", zap.String("model", model), zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// isTimeout tells a deadline failure apart from a connection failure.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

