package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/T-Rylander/unifi-edtech-stack/internal/models"
)

const validReply = `{
  "suggestion": {
    "lab-101": ["device-a1b2c3d4"],
    "quiet-corner": ["device-e5f6g7h8"]
  },
  "confidence": 0.87,
  "reasoning": "Strong signal devices to lab-101."
}`

type fakeClient struct {
	reply  string
	err    error
	calls  int
	prompt string
	system string
}

func (f *fakeClient) Query(_ context.Context, prompt, system string) (string, error) {
	f.calls++
	f.prompt = prompt
	f.system = system
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type auditEntry struct {
	query      string
	suggestion interface{}
	decision   string
	notes      string
}

type fakeAudit struct {
	entries []auditEntry
}

func (f *fakeAudit) Record(_ context.Context, query string, suggestion interface{}, decision, notes string) {
	f.entries = append(f.entries, auditEntry{query, suggestion, decision, notes})
}

func newTestSuggester(client *fakeClient) (*Suggester, *fakeAudit) {
	auditLog := &fakeAudit{}
	return NewSuggester(client, auditLog, zap.NewNop()), auditLog
}

func parseDevices(t *testing.T, raw string) []models.RawDevice {
	t.Helper()
	var devices []models.RawDevice
	if err := json.Unmarshal([]byte(raw), &devices); err != nil {
		t.Fatalf("parse devices: %v", err)
	}
	return devices
}

func TestHashDeviceID(t *testing.T) {
	first := hashDeviceID("AA:BB:CC:DD:EE:FF")
	second := hashDeviceID("AA:BB:CC:DD:EE:FF")
	other := hashDeviceID("11:22:33:44:55:66")

	if first != second {
		t.Errorf("hash not deterministic: %q vs %q", first, second)
	}
	if first == other {
		t.Errorf("distinct MACs collided on %q", first)
	}
	if !strings.HasPrefix(first, "device-") {
		t.Errorf("id = %q, want device- prefix", first)
	}
	if len(first) != len("device-")+8 {
		t.Errorf("id length = %d, want %d", len(first), len("device-")+8)
	}
	if strings.Contains(first, ":") {
		t.Errorf("id %q leaks MAC separators", first)
	}
}

func TestSuggest_PromptNeverContainsRawMACs(t *testing.T) {
	client := &fakeClient{reply: validReply}
	suggester, _ := newTestSuggester(client)

	body := `{
		"ssids": ["lab-101", "quiet-corner"],
		"devices": [
			{"mac": "AA:BB:CC:DD:EE:FF", "signal": -45, "hostname": "chromebook-12"},
			{"mac": "11:22:33:44:55:66", "signal": -72, "hostname": "ipad-cart-3"}
		]
	}`

	if _, err := suggester.Suggest(context.Background(), []byte(body)); err != nil {
		t.Fatalf("Suggest() error = %v", err)
	}

	for _, mac := range []string{"AA:BB:CC:DD:EE:FF", "11:22:33:44:55:66"} {
		if strings.Contains(client.prompt, mac) {
			t.Errorf("prompt leaks raw MAC %s", mac)
		}
	}
	for _, want := range []string{
		"Available SSIDs: lab-101, quiet-corner",
		hashDeviceID("AA:BB:CC:DD:EE:FF"),
		hashDeviceID("11:22:33:44:55:66"),
		"chromebook-12",
		"Respond with JSON only",
	} {
		if !strings.Contains(client.prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if client.system != "" {
		t.Errorf("system prompt = %q, want empty", client.system)
	}
}

func TestSuggest_ValidationRejectsBeforeBackend(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"empty object", `{}`, ErrMissingFields},
		{"only ssids", `{"ssids": ["lab-101"]}`, ErrMissingFields},
		{"only devices", `{"devices": []}`, ErrMissingFields},
		{"not json", `not even close`, ErrMissingFields},
		{"top-level array", `[]`, ErrMissingFields},
		{"ssids is string", `{"ssids": "lab-101", "devices": []}`, ErrNotArrays},
		{"devices is object", `{"ssids": [], "devices": {"mac": "x"}}`, ErrNotArrays},
		{"ssids is null", `{"ssids": null, "devices": []}`, ErrNotArrays},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{reply: validReply}
			suggester, auditLog := newTestSuggester(client)

			_, err := suggester.Suggest(context.Background(), []byte(tt.body))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Suggest() error = %v, want %v", err, tt.wantErr)
			}
			if client.calls != 0 {
				t.Errorf("backend called %d times for invalid input", client.calls)
			}
			if len(auditLog.entries) != 0 {
				t.Errorf("audit written for invalid input")
			}
		})
	}
}

func TestSuggest_EmptyArraysAreValid(t *testing.T) {
	client := &fakeClient{reply: validReply}
	suggester, _ := newTestSuggester(client)

	suggestion, err := suggester.Suggest(context.Background(), []byte(`{"ssids": [], "devices": []}`))
	if err != nil {
		t.Fatalf("Suggest() error = %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("backend calls = %d, want 1", client.calls)
	}
	if suggestion.Confidence != 0.87 {
		t.Errorf("confidence = %v, want 0.87", suggestion.Confidence)
	}
}

func TestSuggest_StampsEnvelope(t *testing.T) {
	client := &fakeClient{reply: validReply}
	suggester, _ := newTestSuggester(client)

	suggestion, err := suggester.Suggest(context.Background(), []byte(`{"ssids": ["lab-101"], "devices": []}`))
	if err != nil {
		t.Fatalf("Suggest() error = %v", err)
	}

	if !suggestion.HumanReviewRequired {
		t.Error("human_review_required = false, want true")
	}
	if _, err := time.Parse(time.RFC3339, suggestion.Timestamp); err != nil {
		t.Errorf("timestamp %q is not RFC3339: %v", suggestion.Timestamp, err)
	}
	if got := suggestion.Suggestion["lab-101"]; len(got) != 1 || got[0] != "device-a1b2c3d4" {
		t.Errorf("lab-101 group = %v", got)
	}
	if suggestion.Reasoning != "Strong signal devices to lab-101." {
		t.Errorf("reasoning = %q", suggestion.Reasoning)
	}
}

func TestSuggest_OverridesModelReviewOptOut(t *testing.T) {
	client := &fakeClient{reply: `{"suggestion": {}, "confidence": 0.99, "reasoning": "trust me", "human_review_required": false}`}
	suggester, _ := newTestSuggester(client)

	suggestion, err := suggester.Suggest(context.Background(), []byte(`{"ssids": [], "devices": []}`))
	if err != nil {
		t.Fatalf("Suggest() error = %v", err)
	}
	if !suggestion.HumanReviewRequired {
		t.Error("model opted out of review and we let it")
	}
}

func TestSuggest_FallbackOnMalformedReply(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"prose", "Sure! I'd put the chromebooks on lab-101."},
		{"truncated json", `{"suggestion": {"lab-101": ["dev`},
		{"wrong shape", `{"suggestion": "lab-101"}`},
		{"top-level array", `[1, 2, 3]`},
		{"bare null", `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{reply: tt.reply}
			suggester, auditLog := newTestSuggester(client)

			suggestion, err := suggester.Suggest(context.Background(), []byte(`{"ssids": ["lab-101"], "devices": []}`))
			if err != nil {
				t.Fatalf("malformed reply must not be an error, got %v", err)
			}
			if suggestion.Suggestion == nil || len(suggestion.Suggestion) != 0 {
				t.Errorf("suggestion groups = %v, want empty map", suggestion.Suggestion)
			}
			if suggestion.Confidence != 0.0 {
				t.Errorf("confidence = %v, want 0.0", suggestion.Confidence)
			}
			if suggestion.Reasoning != "Ollama returned invalid response format" {
				t.Errorf("reasoning = %q", suggestion.Reasoning)
			}
			if !suggestion.HumanReviewRequired {
				t.Error("fallback must still require review")
			}
			if len(auditLog.entries) != 1 {
				t.Errorf("audit entries = %d, want 1", len(auditLog.entries))
			}
		})
	}
}

func TestSuggest_BackendErrorPropagates(t *testing.T) {
	backendErr := errors.New("request to Ollama timed out")
	client := &fakeClient{err: backendErr}
	suggester, auditLog := newTestSuggester(client)

	_, err := suggester.Suggest(context.Background(), []byte(`{"ssids": ["lab-101"], "devices": []}`))
	if !errors.Is(err, backendErr) {
		t.Fatalf("Suggest() error = %v, want %v", err, backendErr)
	}
	if len(auditLog.entries) != 0 {
		t.Errorf("audit written despite backend failure")
	}
}

func TestSuggest_AuditsPendingDecision(t *testing.T) {
	client := &fakeClient{reply: validReply}
	suggester, auditLog := newTestSuggester(client)

	body := `{"ssids": ["lab-101", "quiet-corner"], "devices": [{"mac": "AA:BB:CC:DD:EE:FF"}, {"mac": "11:22:33:44:55:66"}]}`
	suggestion, err := suggester.Suggest(context.Background(), []byte(body))
	if err != nil {
		t.Fatalf("Suggest() error = %v", err)
	}

	if len(auditLog.entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(auditLog.entries))
	}
	entry := auditLog.entries[0]
	if entry.query != "Group 2 devices across 2 SSIDs" {
		t.Errorf("query = %q", entry.query)
	}
	if entry.decision != "pending" {
		t.Errorf("decision = %q, want pending", entry.decision)
	}
	if entry.notes != "AI suggestion generated" {
		t.Errorf("notes = %q", entry.notes)
	}
	if entry.suggestion != suggestion {
		t.Error("audited suggestion is not the returned envelope")
	}
}

func TestSanitizeDevices(t *testing.T) {
	devices := parseDevices(t, `[
		{"mac": "AA:BB:CC:DD:EE:FF", "signal": -45, "hostname": "chromebook-12"},
		{"signal": -60, "hostname": "ghost"},
		{"mac": "11:22:33:44:55:66"}
	]`)

	observations := sanitizeDevices(devices)
	if len(observations) != 2 {
		t.Fatalf("observations = %d, want 2 (entry without mac dropped)", len(observations))
	}
	if observations[0].Hostname != "chromebook-12" || observations[0].Signal != -45 {
		t.Errorf("first observation = %+v", observations[0])
	}
	if observations[1].Hostname != "unknown" {
		t.Errorf("missing hostname = %q, want unknown", observations[1].Hostname)
	}
	if observations[1].Signal != 0 {
		t.Errorf("missing signal = %d, want 0", observations[1].Signal)
	}
}

func TestRecordFeedback(t *testing.T) {
	client := &fakeClient{}
	suggester, auditLog := newTestSuggester(client)

	body := `{"timestamp": "2025-01-15T10:30:00Z", "decision": "approved", "notes": "moved 2 devices"}`
	if err := suggester.RecordFeedback(context.Background(), []byte(body)); err != nil {
		t.Fatalf("RecordFeedback() error = %v", err)
	}

	if len(auditLog.entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(auditLog.entries))
	}
	entry := auditLog.entries[0]
	if entry.query != "Feedback for 2025-01-15T10:30:00Z" {
		t.Errorf("query = %q", entry.query)
	}
	if entry.decision != "approved" {
		t.Errorf("decision = %q", entry.decision)
	}
	if entry.notes != "moved 2 devices" {
		t.Errorf("notes = %q", entry.notes)
	}
	groups, ok := entry.suggestion.(map[string]interface{})
	if !ok || len(groups) != 0 {
		t.Errorf("suggestion = %#v, want empty map", entry.suggestion)
	}
}

func TestRecordFeedback_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing decision", `{"timestamp": "2025-01-15T10:30:00Z"}`},
		{"missing timestamp", `{"decision": "rejected"}`},
		{"empty object", `{}`},
		{"not json", `nope`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{}
			suggester, auditLog := newTestSuggester(client)

			err := suggester.RecordFeedback(context.Background(), []byte(tt.body))
			if !errors.Is(err, ErrMissingFeedback) {
				t.Fatalf("RecordFeedback() error = %v, want %v", err, ErrMissingFeedback)
			}
			if len(auditLog.entries) != 0 {
				t.Errorf("audit written for invalid feedback")
			}
		})
	}
}

func TestRecordFeedback_NotesOptional(t *testing.T) {
	client := &fakeClient{}
	suggester, auditLog := newTestSuggester(client)

	body := `{"timestamp": "2025-01-15T10:30:00Z", "decision": "rejected"}`
	if err := suggester.RecordFeedback(context.Background(), []byte(body)); err != nil {
		t.Fatalf("RecordFeedback() error = %v", err)
	}
	if auditLog.entries[0].notes != "" {
		t.Errorf("notes = %q, want empty", auditLog.entries[0].notes)
	}
}
