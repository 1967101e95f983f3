package api

import (
	"time"

	"portwarden/scanner"
)

// Task lifecycle states.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ScanTask is a scan accepted by the API and processed by a background worker.
type ScanTask struct {
	// ID is the immutable identifier of the task (UUID v4).
	ID string `json:"id" format:"uuid" example:"a3f5c62e-1234-4f72-a84a-1c2d3e4f5678"`
	// Status is one of pending, running, completed, failed.
	Status string `json:"status" enums:"pending,running,completed,failed" example:"pending"`
	// Host is the single target of the scan.
	Host string `json:"host" example:"scanme.nmap.org"`
	// Ports is the inclusive range expression "start-end".
	Ports string `json:"ports" example:"1-1024"`
	// Concurrency is the worker count requested for the scan; 0 uses the server default.
	Concurrency int `json:"concurrency,omitempty" example:"200"`
	// TimeoutMs is the connect timeout per port in milliseconds; 0 uses the server default.
	TimeoutMs int `json:"timeout_ms,omitempty" example:"300"`
	// Banner enables banner grabbing on open ports.
	Banner bool `json:"banner,omitempty"`
	// Report is attached once the task completes.
	Report *scanner.ScanReport `json:"report,omitempty"`
	// CreatedAt records when the task was accepted.
	CreatedAt time.Time `json:"created_at" format:"date-time"`
	// CompletedAt is set once the task reaches a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty" format:"date-time"`
	// Error explains why a task failed.
	Error string `json:"error,omitempty" example:"invalid port range \"500-10\": start exceeds end"`
}

// CreateScanRequest is the payload for creating new scan tasks.
type CreateScanRequest struct {
	Host        string `json:"host" binding:"required" example:"scanme.nmap.org"`
	Ports       string `json:"ports" binding:"required" example:"1-1024"`
	Concurrency int    `json:"concurrency" binding:"omitempty,min=1,max=500" example:"200"`
	TimeoutMs   int    `json:"timeout_ms" binding:"omitempty,min=100,max=5000" example:"300"`
	Banner      bool   `json:"banner" example:"true"`
}

// ScanAcceptedResponse is returned after a scan has been queued.
type ScanAcceptedResponse struct {
	ID     string `json:"id" format:"uuid" example:"a3f5c62e-1234-4f72-a84a-1c2d3e4f5678"`
	Status string `json:"status" enums:"pending" example:"pending"`
}

// ErrorResponse provides a consistent structure for API error payloads.
type ErrorResponse struct {
	Error string `json:"error" example:"task not found"`
}
