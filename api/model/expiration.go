package model

import "github.com/containershare/lifecycle/model"

// TriggerRequest is the optional body of a POST activation.
type TriggerRequest struct {
	Test bool `json:"test"`
}

type RunData struct {
	Processed int    `json:"processed"`
	Expired   int    `json:"expired"`
	Errors    int    `json:"errors"`
	Duration  string `json:"duration"`
	Timestamp string `json:"timestamp"`
}

type RunResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Data    RunData `json:"data"`
}

type DryRunResponse struct {
	Success bool               `json:"success"`
	Test    bool               `json:"test"`
	Message string             `json:"message"`
	Data    model.DryRunReport `json:"data"`
}

// FailureResponse is returned when a run could not complete. Duration and
// Timestamp are omitted for rejections that did no work.
type FailureResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Duration  string `json:"duration,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}
