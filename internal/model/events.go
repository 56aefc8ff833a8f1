package model

import "time"

// CompletionEvent is raised once per record that reached completed status.
type CompletionEvent struct {
	ShareID      string       `json:"shareId"`
	DocumentType DocumentType `json:"documentType"`
	CompletedAt  time.Time    `json:"completedAt"`
	DetectedAt   time.Time    `json:"detectedAt"`
}

// AuditEntry is one line of the audit trail.
type AuditEntry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	ShareID   string         `json:"shareId,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}
