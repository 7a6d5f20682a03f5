package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/T-Rylander/unifi-edtech-stack/internal/audit"
	"github.com/T-Rylander/unifi-edtech-stack/internal/metrics"
	"github.com/T-Rylander/unifi-edtech-stack/internal/models"
)

var ( // Define custom errors
	ErrMissingFields   = errors.New("missing 'ssids' or 'devices' in request")
	ErrNotArrays       = errors.New("'ssids' and 'devices' must be arrays")
	ErrMissingFeedback = errors.New("missing 'timestamp' or 'decision'")
)

// fallbackReasoning explains a downgraded suggestion when the model's reply
// could not be parsed.
const fallbackReasoning = "Ollama returned invalid response format"

const promptTemplate = `
You are a network assistant for a classroom environment. Analyze the following devices and suggest how to group them across SSIDs for optimal performance.

Available SSIDs: %s

Devices:
%s

Consider:
1. Signal strength (prefer devices with strong signals on primary SSID)
2. Load balancing (distribute devices evenly)
3. Device type (if hostname indicates purpose)

Respond with JSON only in this format:
{
  "suggestion": {
    "lab-101": ["device-a1b2c3d4", "device-e5f6g7h8"],
    "quiet-corner": ["device-11223344"]
  },
  "confidence": 0.87,
  "reasoning": "Strong signal devices to lab-101 for bandwidth-heavy tasks, weaker signals to quiet-corner."
}
`

// InferenceClient is the backend seam; tests substitute a fake.
type InferenceClient interface {
	Query(ctx context.Context, prompt, system string) (string, error)
}

// Suggester runs the grouping pipeline: validate, sanitize, compose, query,
// parse, stamp, audit.
type Suggester struct {
	client InferenceClient
	audit  audit.Logger
	logger *zap.Logger
}

// NewSuggester creates a new suggestion service.
func NewSuggester(client InferenceClient, auditLog audit.Logger, logger *zap.Logger) *Suggester {
	return &Suggester{
		client: client,
		audit:  auditLog,
		logger: logger,
	}
}

// parsedReply is the shape the model is asked to produce.
type parsedReply struct {
	Suggestion map[string][]string `json:"suggestion"`
	Confidence float64             `json:"confidence"`
	Reasoning  string              `json:"reasoning"`
}

// Suggest handles one grouping request from raw body to stamped envelope.
// Validation failures return ErrMissingFields/ErrNotArrays before the
// backend is ever contacted; backend failures are returned as-is so the
// handler can report the detail.
func (s *Suggester) Suggest(ctx context.Context, body []byte) (*models.GroupingSuggestion, error) {
	req, err := parseGroupingRequest(body)
	if err != nil {
		return nil, err
	}

	observations := sanitizeDevices(req.Devices)

	prompt, err := buildPrompt(req.SSIDs, observations)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Querying Ollama for VLAN grouping",
		zap.Int("devices", len(req.Devices)),
		zap.Int("ssids", len(req.SSIDs)))

	// The query is bounded by the client's own timeout, not the inbound
	// request context: a caller disconnect must not abort an in-flight
	// backend call.
	reply, err := s.client.Query(context.Background(), prompt, "")
	if err != nil {
		metrics.SuggestionsTotal.WithLabelValues("backend_error").Inc()
		return nil, err
	}

	suggestion := s.parseReply(reply)

	// Suggestions always require human review, whatever the model said.
	suggestion.HumanReviewRequired = true
	suggestion.Timestamp = time.Now().UTC().Format(time.RFC3339)

	s.audit.Record(ctx,
		fmt.Sprintf("Group %d devices across %d SSIDs", len(req.Devices), len(req.SSIDs)),
		suggestion,
		"pending",
		"AI suggestion generated")

	return suggestion, nil
}

// RecordFeedback validates a feedback payload and appends it to the audit
// log. Feedback is stored as a fresh entry; it is never linked back to the
// suggestion it refers to.
func (s *Suggester) RecordFeedback(ctx context.Context, body []byte) error {
	var raw struct {
		Timestamp json.RawMessage `json:"timestamp"`
		Decision  json.RawMessage `json:"decision"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return ErrMissingFeedback
	}
	if raw.Timestamp == nil || raw.Decision == nil {
		return ErrMissingFeedback
	}

	var feedback models.FeedbackRequest
	if err := json.Unmarshal(body, &feedback); err != nil {
		return ErrMissingFeedback
	}

	s.logger.Info("Recording feedback",
		zap.String("decision", feedback.Decision),
		zap.String("timestamp", feedback.Timestamp))

	s.audit.Record(ctx,
		fmt.Sprintf("Feedback for %s", feedback.Timestamp),
		map[string]interface{}{},
		feedback.Decision,
		feedback.Notes)

	return nil
}

// parseGroupingRequest checks the raw payload without touching the backend:
// both keys must exist and both must be arrays of the right shape.
func parseGroupingRequest(body []byte) (*models.GroupingRequest, error) {
	var raw struct {
		SSIDs   json.RawMessage `json:"ssids"`
		Devices json.RawMessage `json:"devices"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, ErrMissingFields
	}
	if raw.SSIDs == nil || raw.Devices == nil {
		return nil, ErrMissingFields
	}
	if string(raw.SSIDs) == "null" || string(raw.Devices) == "null" {
		return nil, ErrNotArrays
	}

	req := &models.GroupingRequest{}
	if err := json.Unmarshal(raw.SSIDs, &req.SSIDs); err != nil {
		return nil, ErrNotArrays
	}
	if err := json.Unmarshal(raw.Devices, &req.Devices); err != nil {
		return nil, ErrNotArrays
	}

	return req, nil
}

// hashDeviceID converts a MAC address to its opaque identifier. The hash is
// one-way and truncated; the mapping back to the MAC is never stored.
func hashDeviceID(mac string) string {
	sum := sha256.Sum256([]byte(mac))
	return "device-" + hex.EncodeToString(sum[:4])
}

// sanitizeDevices drops entries without a MAC and hashes the rest, with
// defaults for missing signal and hostname. Raw MACs do not survive this
// call.
func sanitizeDevices(devices []models.RawDevice) []models.DeviceObservation {
	observations := make([]models.DeviceObservation, 0, len(devices))
	for _, device := range devices {
		if device.Mac == "" {
			continue
		}

		hostname := device.Hostname
		if hostname == "" {
			hostname = "unknown"
		}

		observations = append(observations, models.DeviceObservation{
			DeviceID: hashDeviceID(device.Mac),
			Signal:   device.Signal,
			Hostname: hostname,
		})
	}
	return observations
}

// buildPrompt embeds the SSID list and the sanitized device JSON into the
// instruction block.
func buildPrompt(ssids []string, observations []models.DeviceObservation) (string, error) {
	deviceJSON, err := json.MarshalIndent(observations, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal devices: %w", err)
	}
	return fmt.Sprintf(promptTemplate, strings.Join(ssids, ", "), deviceJSON), nil
}

// parseReply parses the model text, downgrading malformed output to the
// low-confidence fallback. A garbage reply is a recoverable outcome, not an
// API error.
func (s *Suggester) parseReply(reply string) *models.GroupingSuggestion {
	// A reply of bare "null" unmarshals into a nil pointer without error; it
	// carries none of the expected fields and takes the fallback too.
	var parsed *parsedReply
	if err := json.Unmarshal([]byte(reply), &parsed); err != nil || parsed == nil {
		s.logger.Warn("Ollama returned non-JSON response", zap.String("response", reply))
		metrics.SuggestionsTotal.WithLabelValues("fallback").Inc()
		return &models.GroupingSuggestion{
			Suggestion: map[string][]string{},
			Confidence: 0.0,
			Reasoning:  fallbackReasoning,
		}
	}

	if parsed.Suggestion == nil {
		parsed.Suggestion = map[string][]string{}
	}

	metrics.SuggestionsTotal.WithLabelValues("ok").Inc()
	return &models.GroupingSuggestion{
		Suggestion: parsed.Suggestion,
		Confidence: parsed.Confidence,
		Reasoning:  parsed.Reasoning,
	}
}
