package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ngmigrate/internal/apperr"
)

// ProgressEvent defines the structure for streaming progress events
type ProgressEvent struct {
	Type    string `json:"type"` // "progress", "step", "result", "error"
	Step    string `json:"step,omitempty"`
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"` // HTTP status the error would have had
	Details any    `json:"details,omitempty"`
	Data    string `json:"data,omitempty"` // JSON-encoded result
}

func sendSSEEvent(w http.ResponseWriter, event ProgressEvent) {
	data, _ := json.Marshal(event)
	fmt.Fprintf(w, "data: %s\n\n", data)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func sendSSEError(w http.ResponseWriter, err error) {
	sendSSEEvent(w, ProgressEvent{
		Type:    "error",
		Message: err.Error(),
		Status:  apperr.HTTPStatus(apperr.KindOf(err)),
		Details: apperr.DetailsOf(err),
	})
}
