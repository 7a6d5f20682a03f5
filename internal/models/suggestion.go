package models

// GroupingSuggestion is the response envelope for POST /vlan-group.
// HumanReviewRequired is always true on output: the service recommends
// groupings, it never applies them.
type GroupingSuggestion struct {
	Suggestion          map[string][]string `json:"suggestion"`
	Confidence          float64             `json:"confidence"`
	Reasoning           string              `json:"reasoning"`
	HumanReviewRequired bool                `json:"human_review_required"`
	Timestamp           string              `json:"timestamp"`
}

// FeedbackRequest records a human decision about an earlier suggestion.
// Decision is a free-form string; the server does not validate it against
// an enum.
type FeedbackRequest struct {
	Timestamp string `json:"timestamp"`
	Decision  string `json:"decision"`
	Notes     string `json:"notes"`
}
