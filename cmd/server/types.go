package main

import "github.com/wicketlens/WicketLens/pkg/models"

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// HealthResponse reports service and backend status.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	BackendOnline bool   `json:"backendOnline"`
	Mode          string `json:"mode"` // live | simulation
	Time          string `json:"time"`
}

// HistoryResponse wraps the history list.
type HistoryResponse struct {
	Analyses []models.HistoryEntry `json:"analyses"`
	Count    int                   `json:"count"`
}

// DeleteResponse is returned by DELETE /api/result/{id}.
type DeleteResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

// streamFrame is one event-stream payload. Exactly one of the optional
// fields is populated, selected by Type.
type streamFrame struct {
	Type     string                 `json:"type"` // step | progress | result | error
	Name     string                 `json:"name,omitempty"`
	Status   models.StepStatus      `json:"status,omitempty"`
	Progress float64                `json:"progress,omitempty"`
	Report   *models.DecisionReport `json:"report,omitempty"`
	Message  string                 `json:"message,omitempty"`
}
