package models

import (
	"time"
)

type BatchStatus string

const (
	StatusCompleted BatchStatus = "completed"
	StatusPartial   BatchStatus = "partial"
	StatusFailed    BatchStatus = "failed"
)

// Batch summarizes one finished conversion request. It is published as an
// event and never stored by this service.
type Batch struct {
	ID          string      `json:"id"`
	TraceID     string      `json:"trace_id"`
	Resolution  string      `json:"resolution"`
	Background  string      `json:"background"`
	Total       int         `json:"total"`
	Succeeded   int         `json:"succeeded"`
	Failed      int         `json:"failed"`
	Status      BatchStatus `json:"status"`
	Error       string      `json:"error,omitempty"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt time.Time   `json:"completed_at"`
}

func StatusFor(succeeded, failed int) BatchStatus {
	switch {
	case succeeded == 0:
		return StatusFailed
	case failed > 0:
		return StatusPartial
	default:
		return StatusCompleted
	}
}
