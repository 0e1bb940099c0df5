package protocol

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/photon-run/photon/internal/broker"
	"github.com/photon-run/photon/internal/invocation"
	"github.com/photon-run/photon/internal/photon"
	"github.com/photon-run/photon/internal/photonerr"
	"github.com/photon-run/photon/internal/session"
	"github.com/photon-run/photon/internal/telemetry"
)

// channelEvents are the "{toolName}:event" suffixes a session auto-
// subscribes to on calling that tool, so a method returning a collection
// can stream incremental mutations without the client subscribing by hand.
var channelEvents = []string{"added", "removed", "updated", "changed"}

// Notifier sends a server-initiated message to one connected client. Each
// transport supplies its own implementation: stdio/IPC write a framed
// line, HTTP+SSE writes an "event:" block.
type Notifier func(Notification)

// Server dispatches JSON-RPC requests for one connected session against
// the currently active photon instance.
type Server struct {
	holder  *photon.Holder
	engine  *invocation.Engine
	sess    *session.Session
	broker  *broker.Broker
	notify  Notifier
	log     telemetry.Logger
	caller  invocation.MethodCaller
	version string

	pumpOnce   sync.Once
	channelSub chan broker.Message
	subMu      sync.Mutex
	subscribed map[string]bool
}

// NewServer constructs a Server bound to one client connection's Session.
func NewServer(holder *photon.Holder, engine *invocation.Engine, sess *session.Session, br *broker.Broker, notify Notifier, log telemetry.Logger) *Server {
	if log == nil {
		log = telemetry.Noop().Log
	}
	return &Server{holder: holder, engine: engine, sess: sess, broker: br, notify: notify, log: log, version: "2025-06-18"}
}

// Handle dispatches one incoming frame, returning the response bytes for
// a request, or nil for a notification (which has no response).
func (s *Server) Handle(ctx context.Context, raw []byte) []byte {
	s.ensureChannelPump(ctx)

	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return marshal(newErrorResponse(nil, CodeParseError, "invalid JSON"))
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		return marshal(newErrorResponse(idOf(req), CodeInvalidRequest, "not a valid JSON-RPC 2.0 request"))
	}

	resp, isNotification := s.dispatch(ctx, req)
	if isNotification {
		return nil
	}
	return marshal(resp)
}

func idOf(req Request) json.RawMessage {
	if req.ID == nil {
		return nil
	}
	return json.RawMessage(*req.ID)
}

func (s *Server) dispatch(ctx context.Context, req Request) (Response, bool) {
	id := idOf(req)
	isNotification := req.ID == nil

	switch req.Method {
	case "initialize":
		return newResponse(id, s.handleInitialize()), isNotification
	case "notifications/initialized":
		return Response{}, true
	case "notifications/cancelled":
		s.handleCancelled(req.Params)
		return Response{}, true
	case "tools/list":
		return newResponse(id, s.handleToolsList()), isNotification
	case "tools/call":
		return s.handleToolsCall(ctx, id, req.Params), isNotification
	case "prompts/list":
		return newResponse(id, s.handlePromptsList()), isNotification
	case "prompts/get":
		return s.handlePromptsGet(ctx, id, req.Params), isNotification
	case "resources/list":
		return newResponse(id, s.handleResourcesList()), isNotification
	case "resources/read":
		return s.handleResourcesRead(ctx, id, req.Params), isNotification
	case "logging/setLevel":
		s.handleSetLevel(req.Params)
		return newResponse(id, map[string]any{}), isNotification
	case "elicitation/complete":
		return s.handleElicitationComplete(id, req.Params), isNotification
	default:
		if isNotification {
			return Response{}, true
		}
		return newErrorResponse(id, CodeMethodNotFound, "unknown method: "+req.Method), false
	}
}

func (s *Server) handleInitialize() map[string]any {
	inst := s.holder.Get()
	return map[string]any{
		"protocolVersion": s.version,
		"serverInfo":      map[string]any{"name": inst.Name(), "version": "0.0.0"},
		"capabilities": map[string]any{
			"tools":     map[string]any{"listChanged": true},
			"prompts":   map[string]any{"listChanged": true},
			"resources": map[string]any{"listChanged": true},
			"logging":   map[string]any{},
		},
	}
}

func (s *Server) handleCancelled(params json.RawMessage) {
	var p struct {
		RequestID json.RawMessage `json:"requestId"`
	}
	if err := json.Unmarshal(params, &p); err != nil || len(p.RequestID) == 0 {
		return
	}
	s.engine.Cancel(canonicalRequestID(p.RequestID))
}

func (s *Server) handleSetLevel(params json.RawMessage) {
	var p struct {
		Level string `json:"level"`
	}
	if err := json.Unmarshal(params, &p); err != nil || p.Level == "" {
		return
	}
	s.sess.SetLogLevel(invocation.LogLevel(p.Level))
}

func (s *Server) handleElicitationComplete(id json.RawMessage, params json.RawMessage) Response {
	var p struct {
		ElicitationID string         `json:"elicitationId"`
		Action        string         `json:"action"`
		Content       map[string]any `json:"content"`
	}
	if err := json.Unmarshal(params, &p); err != nil || p.ElicitationID == "" {
		return newErrorResponse(id, CodeInvalidParams, "malformed elicitation/complete params")
	}
	resp := invocation.ElicitResponse{Action: p.Action, Content: p.Content}
	if !s.sess.CompleteElicitation(p.ElicitationID, resp) {
		return newErrorResponse(id, CodeInvalidParams, "no pending elicitation with that id")
	}
	return newResponse(id, map[string]any{"acknowledged": true})
}

// ensureChannelPump starts, once per Server, the goroutine that forwards
// this session's Channel Broker subscriptions to NotifyChannelEvent. It is
// bound to the first ctx it sees, which every transport holds for the
// life of the connection, and tears the subscription down when that ctx
// ends.
func (s *Server) ensureChannelPump(ctx context.Context) {
	if s.broker == nil {
		return
	}
	s.pumpOnce.Do(func() {
		s.channelSub = make(chan broker.Message, 32)
		go func() {
			defer s.broker.UnsubscribeAll(s.sess.ID)
			for {
				select {
				case <-ctx.Done():
					return
				case msg := <-s.channelSub:
					s.NotifyChannelEvent(msg)
				}
			}
		}()
	})
}

// autoSubscribe wires this session to toolName's conventional event
// channels (spec section 4.H) the first time that tool is called, so a
// method returning a collection streams incremental mutations without any
// explicit subscribe call from the client.
func (s *Server) autoSubscribe(toolName string) {
	if s.broker == nil || s.channelSub == nil {
		return
	}
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.subscribed == nil {
		s.subscribed = map[string]bool{}
	}
	for _, event := range channelEvents {
		channel := broker.ChannelForEvent(toolName, event)
		if s.subscribed[channel] {
			continue
		}
		s.subscribed[channel] = true
		s.broker.Subscribe(channel, &broker.Subscriber{SessionID: s.sess.ID, C: s.channelSub})
	}
}

func (s *Server) handleToolsList() map[string]any {
	inst := s.holder.Get()
	snap := inst.CatalogSnapshot()
	tools := make([]map[string]any, 0, len(snap.Tools))
	for _, t := range snap.Tools {
		tools = append(tools, map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"inputSchema": t.InputSchema,
		})
	}
	return map[string]any{"tools": tools}
}

func (s *Server) handlePromptsList() map[string]any {
	inst := s.holder.Get()
	snap := inst.CatalogSnapshot()
	prompts := make([]map[string]any, 0, len(snap.Prompts))
	for _, p := range snap.Prompts {
		prompts = append(prompts, map[string]any{
			"name":        p.Name,
			"description": p.Description,
		})
	}
	return map[string]any{"prompts": prompts}
}

func (s *Server) handleResourcesList() map[string]any {
	inst := s.holder.Get()
	snap := inst.CatalogSnapshot()
	resources := make([]map[string]any, 0, len(snap.Resources))
	for _, r := range snap.Resources {
		resources = append(resources, map[string]any{
			"uri":      r.URITemplate,
			"name":     r.Name,
			"mimeType": r.MIMEType,
		})
	}
	return map[string]any{"resources": resources}
}

func (s *Server) handleToolsCall(ctx context.Context, id json.RawMessage, params json.RawMessage) Response {
	var p struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return newErrorResponse(id, CodeInvalidParams, "malformed tools/call params")
	}

	s.autoSubscribe(p.Name)

	invocationID := canonicalRequestID(id)
	inst := s.holder.Get()
	result, err := s.engine.InvokeTool(ctx, inst, s.callerFor(inst), invocation.Request{
		InvocationID: invocationID,
		SessionID:    s.sess.ID,
		ToolName:     p.Name,
		Arguments:    p.Arguments,
		Surface:      newLiveSurface(s, invocationID),
	})
	if err != nil {
		return errorResponseFor(id, err)
	}
	return newResponse(id, result)
}

func (s *Server) handlePromptsGet(ctx context.Context, id json.RawMessage, params json.RawMessage) Response {
	var p struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return newErrorResponse(id, CodeInvalidParams, "malformed prompts/get params")
	}
	inst := s.holder.Get()
	text, err := s.engine.InvokePrompt(ctx, inst, s.callerFor(inst), p.Name, p.Arguments)
	if err != nil {
		return errorResponseFor(id, err)
	}
	return newResponse(id, map[string]any{
		"messages": []map[string]any{
			{"role": "user", "content": map[string]any{"type": "text", "text": text}},
		},
	})
}

func (s *Server) handleResourcesRead(ctx context.Context, id json.RawMessage, params json.RawMessage) Response {
	var p struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return newErrorResponse(id, CodeInvalidParams, "malformed resources/read params")
	}
	inst := s.holder.Get()
	member, matched, err := inst.Resource(p.URI)
	if err != nil {
		return errorResponseFor(id, err)
	}
	args := make(map[string]any, len(matched))
	for k, v := range matched {
		args[k] = v
	}
	text, err := s.engine.InvokeResource(ctx, s.callerFor(inst), member, args)
	if err != nil {
		return errorResponseFor(id, err)
	}
	return newResponse(id, map[string]any{
		"contents": []map[string]any{
			{"uri": p.URI, "mimeType": member.MIMEType, "text": text},
		},
	})
}

func (s *Server) callerFor(inst *photon.Instance) invocation.MethodCaller {
	return inst.Loaded
}

func errorResponseFor(id json.RawMessage, err error) Response {
	code := CodeInternalError
	switch photonerr.KindOf(err) {
	case photonerr.NotFound:
		code = CodeMethodNotFound
	case photonerr.InvalidArguments:
		code = CodeInvalidParams
	}
	return newErrorResponse(id, code, err.Error())
}

func marshal(resp Response) []byte {
	b, err := json.Marshal(resp)
	if err != nil {
		fallback, _ := json.Marshal(newErrorResponse(nil, CodeInternalError, "failed to marshal response"))
		return fallback
	}
	return b
}

// NotifyToolsListChanged emits the "notifications/tools/list_changed"
// server-initiated notification after a successful reload.
func (s *Server) NotifyToolsListChanged() {
	if s.notify != nil {
		s.notify(newNotification("notifications/tools/list_changed", nil))
	}
}

// NotifyPhotonStateChanged reports a reload outcome to the client as a
// photon-specific extension notification.
func (s *Server) NotifyPhotonStateChanged(state string, detail string) {
	if s.notify != nil {
		s.notify(newNotification("notifications/photon_state_changed", map[string]any{"state": state, "detail": detail}))
	}
}

// NotifyChannelEvent forwards a broker.Message to the client as a
// "notifications/channel_event" message.
func (s *Server) NotifyChannelEvent(msg broker.Message) {
	if s.notify != nil {
		s.notify(newNotification("notifications/channel_event", map[string]any{"channel": msg.Channel, "payload": msg.Payload}))
	}
}
