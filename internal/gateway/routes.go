package gateway

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sarega/promptprim/internal/agent"
	"github.com/sarega/promptprim/internal/config"
	"github.com/sarega/promptprim/internal/domain"
	"github.com/sarega/promptprim/internal/render"
	"github.com/sarega/promptprim/internal/turn"
)

// safeConfigPrefixes lists config path prefixes readable via RPC. All
// other paths, provider keys and gateway credentials included, are
// denied.
var safeConfigPrefixes = []string{
	"gateway.port",
	"gateway.bind",
	"gateway.customBindHost",
	"gateway.controlUi",
	"gateway.rateLimit",
	"agents",
	"groups",
	"summary",
	"logging",
}

func isAllowedConfigPath(key string) bool {
	for _, prefix := range safeConfigPrefixes {
		if key == prefix || strings.HasPrefix(key, prefix+".") {
			return true
		}
	}
	return false
}

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("/", handleNotFound)
}

// registerRPCHandlers sets up all JSON-RPC method handlers.
func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("config.get", s.rpcConfigGet)

	s.Handle("models.list", s.withModels(s.rpcModelsList))
	s.HandleAsync("models.refresh", s.withModels(s.rpcModelsRefresh))

	s.Handle("agents.list", s.withService(s.rpcAgentsList))
	s.Handle("groups.list", s.withService(s.rpcGroupsList))
	s.Handle("sessions.create", s.withService(s.rpcSessionsCreate))
	s.Handle("sessions.list", s.withService(s.rpcSessionsList))
	s.Handle("sessions.history", s.withService(s.rpcSessionsHistory))
	s.Handle("sessions.search", s.withService(s.rpcSessionsSearch))
	s.Handle("chat.stop", s.withService(s.rpcChatStop))
	s.Handle("summary.unload", s.withService(s.rpcSummaryUnload))

	s.HandleAsync("chat.send", s.withService(s.rpcChatSend))
	s.HandleAsync("group.run", s.withService(s.rpcGroupRun))
	s.HandleAsync("summary.create", s.withService(s.rpcSummaryCreate))
}

func (s *Server) withService(h RequestHandler) RequestHandler {
	return func(rc *RequestContext) {
		if s.svc == nil {
			rc.RespondError(CodeUnavailable, "conversation service not configured")
			return
		}
		h(rc)
	}
}

func (s *Server) withModels(h RequestHandler) RequestHandler {
	return func(rc *RequestContext) {
		if s.models == nil {
			rc.RespondError(CodeUnavailable, "no model providers configured")
			return
		}
		h(rc)
	}
}

func (s *Server) rpcHealth(rc *RequestContext) {
	rc.Respond(HealthResponse{
		Status:     "ok",
		Version:    s.version,
		Clients:    s.clients.Count(),
		Generating: s.svc != nil && s.svc.Generating(),
		UptimeMs:   time.Since(s.startedAt).Milliseconds(),
	})
}

type configGetParams struct {
	Key string `json:"key"`
}

func (s *Server) rpcConfigGet(rc *RequestContext) {
	var p configGetParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if p.Key == "" {
		rc.RespondError(CodeInvalidParams, "key is required")
		return
	}
	if !isAllowedConfigPath(p.Key) {
		rc.RespondError(CodeForbidden, "access denied for config path: "+p.Key)
		return
	}

	path, err := config.ParseConfigPath(p.Key)
	if err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}

	s.mu.RLock()
	val, ok := config.GetValueAtPath(s.configRaw, path)
	s.mu.RUnlock()
	if !ok {
		rc.RespondError(CodeNotFound, "key not found: "+p.Key)
		return
	}
	rc.Respond(map[string]any{"key": p.Key, "value": val})
}

// ModelsResponse lists the catalog. Errors holds the last listing
// failure per provider.
type ModelsResponse struct {
	Models  []domain.ModelEntry `json:"models"`
	Errors  map[string]string   `json:"errors,omitempty"`
	Updated time.Time           `json:"updated,omitzero"`
}

func (s *Server) modelsResponse() ModelsResponse {
	cat := s.models.Catalog()
	resp := ModelsResponse{Models: cat.Entries(), Updated: cat.Updated()}
	if resp.Models == nil {
		resp.Models = []domain.ModelEntry{}
	}
	for kind, err := range cat.Errors() {
		if resp.Errors == nil {
			resp.Errors = make(map[string]string)
		}
		resp.Errors[string(kind)] = err.Error()
	}
	return resp
}

func (s *Server) rpcModelsList(rc *RequestContext) {
	rc.Respond(s.modelsResponse())
}

// rpcModelsRefresh re-lists both providers. A provider failure is
// reported in the errors map rather than failing the request.
func (s *Server) rpcModelsRefresh(rc *RequestContext) {
	if err := s.models.RefreshModels(rc.Context()); err != nil {
		s.log.Warn().Err(err).Msg("model refresh incomplete")
	}
	rc.Respond(s.modelsResponse())
}

func (s *Server) rpcAgentsList(rc *RequestContext) {
	rc.Respond(map[string]any{"agents": s.svc.Agents()})
}

func (s *Server) rpcGroupsList(rc *RequestContext) {
	rc.Respond(map[string]any{"groups": s.svc.Groups()})
}

type sessionCreateParams struct {
	Name  string `json:"name,omitempty"`
	Group string `json:"group,omitempty"`
}

func (s *Server) rpcSessionsCreate(rc *RequestContext) {
	var p sessionCreateParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	sess, err := s.svc.NewSession(p.Name, p.Group)
	if err != nil {
		rc.Fail(err)
		return
	}
	rc.Respond(sess)
}

func (s *Server) rpcSessionsList(rc *RequestContext) {
	sessions, err := s.svc.Sessions().List()
	if err != nil {
		rc.Fail(err)
		return
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	rc.Respond(map[string]any{"sessions": sessions})
}

type sessionParams struct {
	SessionID string `json:"sessionId"`
}

func (rc *RequestContext) sessionID() (string, bool) {
	var p sessionParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return "", false
	}
	if p.SessionID == "" {
		rc.RespondError(CodeInvalidParams, "sessionId is required")
		return "", false
	}
	return p.SessionID, true
}

type historyParams struct {
	SessionID string `json:"sessionId"`

	// View returns the history as the next turn sees it, with the
	// active summary standing in for the range it covers.
	View bool `json:"view,omitempty"`
}

// HistoryResponse carries a session transcript.
type HistoryResponse struct {
	SessionID string                `json:"sessionId"`
	Messages  []domain.Message      `json:"messages"`
	Summary   *domain.SummaryRecord `json:"summary,omitempty"`
	FlowState any                   `json:"flowState,omitempty"`
}

func (s *Server) rpcSessionsHistory(rc *RequestContext) {
	var p historyParams
	if err := rc.Params(&p); err != nil || p.SessionID == "" {
		rc.RespondError(CodeInvalidParams, "sessionId is required")
		return
	}

	var (
		msgs []domain.Message
		rec  *domain.SummaryRecord
		err  error
	)
	if p.View {
		msgs, rec, err = s.svc.View(p.SessionID)
	} else {
		msgs, err = s.svc.Sessions().History(p.SessionID)
		if err == nil {
			rec, err = s.svc.Sessions().ActiveSummary(p.SessionID)
		}
	}
	if err != nil {
		rc.Fail(err)
		return
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}

	resp := HistoryResponse{SessionID: p.SessionID, Messages: msgs, Summary: rec}
	if snap, ok := s.svc.FlowState(p.SessionID); ok {
		resp.FlowState = snap
	}
	rc.Respond(resp)
}

type searchParams struct {
	SessionID string `json:"sessionId,omitempty"`
	Query     string `json:"query"`
	Limit     int    `json:"limit,omitempty"`
}

func (s *Server) rpcSessionsSearch(rc *RequestContext) {
	searcher, ok := s.svc.Sessions().(Searcher)
	if !ok {
		rc.RespondError(CodeUnavailable, "session store does not support search")
		return
	}
	var p searchParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if strings.TrimSpace(p.Query) == "" {
		rc.RespondError(CodeInvalidParams, "query is required")
		return
	}
	hits, err := searcher.Search(p.SessionID, p.Query, p.Limit)
	if err != nil {
		rc.Fail(err)
		return
	}
	rc.Respond(map[string]any{"hits": hits})
}

// deltaPublisher streams a request's turn updates to its client as
// throttled chat.delta events.
func (s *Server) deltaPublisher(rc *RequestContext, sessionID string) (turn.Publisher, *render.Throttle) {
	th := render.NewThrottle(s.throttle, func(u turn.Update) {
		err := rc.Client.SendEvent(EventChatDelta, DeltaEvent{
			SessionID: sessionID,
			RequestID: rc.Frame.ID,
			Speaker:   u.Speaker,
			Epoch:     u.Epoch,
			Buffer:    u.Buffer,
			Final:     u.Final,
		}, s.eventSeq.Add(1))
		if err != nil && !errors.Is(err, ErrClientClosed) {
			s.log.Debug().Err(err).Str("connId", rc.Client.ConnID).Msg("delta send failed")
		}
	})
	return th.Publish, th
}

type chatSendParams struct {
	SessionID string   `json:"sessionId"`
	Agent     string   `json:"agent"`
	Text      string   `json:"text,omitempty"`
	Images    []string `json:"images,omitempty"`
	Stream    *bool    `json:"stream,omitempty"`
}

// streaming defaults to true.
func streaming(flag *bool) bool { return flag == nil || *flag }

func (s *Server) rpcChatSend(rc *RequestContext) {
	var p chatSendParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if p.SessionID == "" || p.Agent == "" {
		rc.RespondError(CodeInvalidParams, "sessionId and agent are required")
		return
	}

	publish, th := s.deltaPublisher(rc, p.SessionID)
	out, err := s.svc.Send(rc.Context(), agent.SendRequest{
		SessionID: p.SessionID,
		Agent:     p.Agent,
		Text:      p.Text,
		Images:    p.Images,
		Stream:    streaming(p.Stream),
		Publish:   publish,
	})
	th.Flush()
	if err != nil {
		rc.Fail(err)
		return
	}
	rc.Respond(out)
}

func (s *Server) rpcChatStop(rc *RequestContext) {
	rc.Respond(map[string]any{"stopped": s.svc.Stop()})
}

type groupRunParams struct {
	SessionID string   `json:"sessionId"`
	Group     string   `json:"group,omitempty"`
	Text      string   `json:"text,omitempty"`
	Images    []string `json:"images,omitempty"`
	Stream    *bool    `json:"stream,omitempty"`
}

func (s *Server) rpcGroupRun(rc *RequestContext) {
	var p groupRunParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if p.SessionID == "" {
		rc.RespondError(CodeInvalidParams, "sessionId is required")
		return
	}

	publish, th := s.deltaPublisher(rc, p.SessionID)
	res, err := s.svc.RunGroup(rc.Context(), agent.GroupRequest{
		SessionID: p.SessionID,
		Group:     p.Group,
		Text:      p.Text,
		Images:    p.Images,
		Stream:    streaming(p.Stream),
		Publish:   publish,
	})
	th.Flush()
	if err != nil {
		shape := errorShape(err)
		if res != nil {
			shape.Details = res
		}
		rc.RespondShape(shape)
		return
	}
	rc.Respond(res)
}

func (s *Server) rpcSummaryCreate(rc *RequestContext) {
	id, ok := rc.sessionID()
	if !ok {
		return
	}
	rec, err := s.svc.Summarize(rc.Context(), id)
	if err != nil {
		rc.Fail(err)
		return
	}
	rc.Respond(rec)
}

func (s *Server) rpcSummaryUnload(rc *RequestContext) {
	id, ok := rc.sessionID()
	if !ok {
		return
	}
	had, err := s.svc.Unload(rc.Context(), id)
	if err != nil {
		rc.Fail(err)
		return
	}
	rc.Respond(map[string]any{"sessionId": id, "unloaded": had})
}
