package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sarega/promptprim/internal/agent"
	"github.com/sarega/promptprim/internal/domain"
	"github.com/sarega/promptprim/internal/flow"
	"github.com/sarega/promptprim/internal/llm"
	"github.com/sarega/promptprim/internal/summary"
)

// HealthResponse is returned by health endpoints. The public HTTP endpoint
// only populates Status; the authenticated RPC handler populates all fields.
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version,omitempty"`
	Clients    int    `json:"clients,omitempty"`
	Generating bool   `json:"generating,omitempty"`
	UptimeMs   int64  `json:"uptimeMs,omitempty"`
}

// handleHealth returns the server health status. Only status is exposed
// publicly; detailed info is available via the authenticated RPC health method.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

// RequestHandler processes an incoming RPC request frame from a client.
type RequestHandler func(rc *RequestContext)

type registeredHandler struct {
	fn RequestHandler

	// async handlers run off the read loop so later frames, chat.stop in
	// particular, are read while they work.
	async bool
}

// RequestContext carries everything a handler needs.
type RequestContext struct {
	Client *Client
	Frame  Frame
	Server *Server
}

// Context is cancelled when the client disconnects.
func (rc *RequestContext) Context() context.Context {
	return rc.Client.Context()
}

// Respond sends a success response.
func (rc *RequestContext) Respond(payload any) {
	if err := rc.Client.Respond(rc.Frame.ID, payload); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send response")
	}
}

// RespondError sends an error response.
func (rc *RequestContext) RespondError(code, message string) {
	rc.RespondShape(ErrorShape{Code: code, Message: message})
}

// RespondShape sends a fully populated error response.
func (rc *RequestContext) RespondShape(shape ErrorShape) {
	if err := rc.Client.RespondError(rc.Frame.ID, shape); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send error response")
	}
}

// Fail maps err to an error response.
func (rc *RequestContext) Fail(err error) {
	shape := errorShape(err)
	if shape.Code == CodeInternal {
		rc.Server.log.Error().Err(err).Str("method", rc.Frame.Method).Msg("request failed")
	}
	rc.RespondShape(shape)
}

// Params unmarshals the request params into the given target.
func (rc *RequestContext) Params(target any) error {
	if rc.Frame.Params == nil {
		return nil
	}
	return json.Unmarshal(rc.Frame.Params, target)
}

// errorShape classifies err into a protocol error code.
func errorShape(err error) ErrorShape {
	shape := ErrorShape{Code: CodeInternal, Message: err.Error()}

	var apiErr *llm.APIError
	switch {
	case errors.Is(err, llm.ErrModelNotFound):
		shape.Code = CodeModelNotFound
	case errors.Is(err, llm.ErrInvalidResponseShape):
		shape.Code = CodeInvalidResponse
	case errors.As(err, &apiErr):
		shape.Code = CodeAPIError
		shape.Details = map[string]any{"provider": apiErr.Provider, "status": apiErr.StatusCode}
		shape.Retryable = apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	case errors.Is(err, llm.ErrNetworkUnreachable):
		shape.Code = CodeNetworkUnreachable
		shape.Retryable = true
	case errors.Is(err, flow.ErrModeratorChoiceInvalid):
		shape.Code = CodeModeratorInvalid
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, agent.ErrUnknownAgent),
		errors.Is(err, agent.ErrUnknownGroup):
		shape.Code = CodeNotFound
	case errors.Is(err, agent.ErrBusy),
		errors.Is(err, flow.ErrInvalidTransition):
		shape.Code = CodeConflict
		shape.Retryable = errors.Is(err, agent.ErrBusy)
	case errors.Is(err, agent.ErrNotMember),
		errors.Is(err, flow.ErrUnknownMember),
		errors.Is(err, summary.ErrNothingToSummarize):
		shape.Code = CodeInvalidParams
	case errors.Is(err, agent.ErrSummaryDisabled):
		shape.Code = CodeUnavailable
	}
	return shape
}
