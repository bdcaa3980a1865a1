package httphandler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/makerdock/anonzora/internal/application"
	"github.com/makerdock/anonzora/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// VerifyCredentialRequest is the JSON body for the verify endpoint.
type VerifyCredentialRequest struct {
	Type         string     `json:"type"`
	Version      string     `json:"version"`
	Proof        ProofBytes `json:"proof"`
	PublicInputs []string   `json:"publicInputs"`
	ParentID     *string    `json:"parentId,omitempty"`
}

// ProofBytes decodes either a standard base64 string or an array of byte values.
type ProofBytes []byte

// UnmarshalJSON implements json.Unmarshaler.
func (p *ProofBytes) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		var b []byte
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("proof: %w", err)
		}
		*p = b
		return nil
	}

	var values []int
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("proof: %w", err)
	}
	b := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return fmt.Errorf("proof: byte %d out of range: %d", i, v)
		}
		b[i] = byte(v)
	}
	*p = b
	return nil
}

// CredentialResponse is the JSON representation of a credential. Neither the
// proof nor the owning vault is ever exposed.
type CredentialResponse struct {
	ID           string                   `json:"id"`
	Class        string                   `json:"credentialId"`
	Type         string                   `json:"type"`
	Version      string                   `json:"version"`
	Metadata     model.CredentialMetadata `json:"metadata"`
	VerifiedAt   string                   `json:"verifiedAt"`
	ExpiresAt    string                   `json:"expiresAt"`
	ParentID     *string                  `json:"parentId,omitempty"`
	ReverifiedID *string                  `json:"reverifiedId,omitempty"`
}

// ExecuteActionsRequest is the JSON body for the execute endpoint.
type ExecuteActionsRequest struct {
	Actions []model.ActionRequest `json:"actions"`
}

// ExecuteActionsResponse lists one result per request, follow-ups appended.
type ExecuteActionsResponse struct {
	Results []model.ActionResult `json:"results"`
}

// ActionResponse is the JSON representation of a configured action.
type ActionResponse struct {
	ID                    string                       `json:"id"`
	Type                  string                       `json:"type"`
	CredentialID          *string                      `json:"credentialId,omitempty"`
	CredentialRequirement *model.CredentialRequirement `json:"credentialRequirement,omitempty"`
	Metadata              json.RawMessage              `json:"metadata,omitempty"`
	CommunityID           *string                      `json:"communityId,omitempty"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status     string                    `json:"status"`
	Time       string                    `json:"time"`
	Components []ComponentHealthResponse `json:"components"`
}

// ComponentHealthResponse is the probe result of one dependency.
type ComponentHealthResponse struct {
	Name      string `json:"name"`
	Healthy   bool   `json:"healthy"`
	Critical  bool   `json:"critical"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
}

// toCredentialResponse converts a domain Credential to its JSON representation.
func toCredentialResponse(c model.Credential) CredentialResponse {
	return CredentialResponse{
		ID:           c.ID,
		Class:        c.Class,
		Type:         string(c.Type),
		Version:      c.Version,
		Metadata:     c.Metadata,
		VerifiedAt:   c.VerifiedAt.UTC().Format(time.RFC3339),
		ExpiresAt:    c.ExpiresAt().UTC().Format(time.RFC3339),
		ParentID:     c.ParentID,
		ReverifiedID: c.ReverifiedID,
	}
}

// toActionResponse converts a domain Action to its JSON representation.
func toActionResponse(a model.Action) ActionResponse {
	return ActionResponse{
		ID:                    a.ID,
		Type:                  string(a.Type),
		CredentialID:          a.CredentialID,
		CredentialRequirement: a.CredentialRequirement,
		Metadata:              a.Metadata,
		CommunityID:           a.CommunityID,
	}
}

// toHealthResponse converts an application HealthReport to its JSON representation.
func toHealthResponse(report application.HealthReport, now time.Time) HealthResponse {
	components := make([]ComponentHealthResponse, 0, len(report.Components))
	for _, c := range report.Components {
		resp := ComponentHealthResponse{
			Name:      c.Name,
			Healthy:   c.Err == nil,
			Critical:  c.Critical,
			LatencyMS: c.Latency.Milliseconds(),
		}
		if c.Err != nil {
			resp.Error = c.Err.Error()
		}
		components = append(components, resp)
	}

	return HealthResponse{
		Status:     string(report.Status),
		Time:       now.UTC().Format(time.RFC3339),
		Components: components,
	}
}
