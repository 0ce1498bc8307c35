// Package models holds the persisted request-history and feedback records.
package models

import "time"

// AskRecord is one processed utterance with everything the pipeline decided.
type AskRecord struct {
	ID               string    `json:"id"`
	UserQuery        string    `json:"user_query"`
	DetectedProtocol string    `json:"detected_protocol"`
	Confidence       float64   `json:"confidence"`
	Reasoning        string    `json:"reasoning,omitempty"`
	GeneratedQuery   string    `json:"generated_query,omitempty"`
	GeneratedRequest string    `json:"generated_request,omitempty"`
	Message          string    `json:"message,omitempty"`
	LatencyMS        int64     `json:"latency_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// ContextSource is one retrieved document that fed a generation.
type ContextSource struct {
	AskID        string  `json:"ask_id"`
	Name         string  `json:"name"`
	ProtocolType string  `json:"protocol_type"`
	Preview      string  `json:"preview"`
	Score        float64 `json:"score"`
}

type Feedback struct {
	ID        string    `json:"id"`
	AskID     string    `json:"ask_id"`
	Helpful   bool      `json:"helpful"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
