package models

// AuditRecord is one line of the AI decision log. AISuggestion carries the
// full suggestion envelope for grouping entries and an empty object for
// feedback entries.
type AuditRecord struct {
	Timestamp     string      `json:"timestamp"`
	Query         string      `json:"query"`
	AISuggestion  interface{} `json:"ai_suggestion"`
	HumanDecision string      `json:"human_decision"`
	Notes         string      `json:"notes"`
}
