package models

import "time"

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // formulario.updated, formulario.deleted, formulario.pec_requested
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

const (
	EventFormularioUpdated      = "formulario.updated"
	EventFormularioDeleted      = "formulario.deleted"
	EventFormularioPECRequested = "formulario.pec_requested"
)

// UIDArrayRequest is the body shared by the delete, send-pec and
// pec-preview endpoints.
type UIDArrayRequest struct {
	UIDArray []string `json:"uid_array"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
