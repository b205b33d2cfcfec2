// ABOUTME: HTTP API handlers for the chat UI
// ABOUTME: Covers sending, receiving, polling, the agent list, and the SSE stream

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Mag-201/nanda-agent/internal/bridge"
	"github.com/Mag-201/nanda-agent/internal/events"
	"github.com/Mag-201/nanda-agent/internal/store"
	"github.com/Mag-201/nanda-agent/internal/webui"
)

// SendRequest is the JSON request body for POST /api/send.
type SendRequest struct {
	Message        string `json:"message"`
	ClientID       string `json:"client_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// SendResponse is the JSON response for POST /api/send.
type SendResponse struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id,omitempty"`
	AgentID        string `json:"agent_id"`
}

func (g *Gateway) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", g.handleChatPage)
	mux.HandleFunc("GET /help", g.handleHelpPage)
	mux.HandleFunc("GET /health", g.handleHealth)
	mux.HandleFunc("GET /health/ready", g.handleReady)

	mux.HandleFunc("GET /api/health", g.handleHealth)
	mux.HandleFunc("POST /api/send", g.handleSend)
	mux.HandleFunc("GET /api/agents/list", g.handleListAgents)
	mux.HandleFunc("POST /api/receive_message", g.handleReceiveMessage)
	mux.HandleFunc("GET /api/render", g.handleRender)
	mux.HandleFunc("GET /api/messages/stream", g.handleMessageStream)

	return corsMiddleware(mux)
}

// corsMiddleware allows browser UIs served from other origins to call the API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Gateway) handleChatPage(w http.ResponseWriter, r *http.Request) {
	page, err := webui.ChatPage()
	if err != nil {
		g.logger.Error("loading chat page", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "chat page unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

func (g *Gateway) handleHelpPage(w http.ResponseWriter, r *http.Request) {
	page, err := webui.HelpPage(g.stocks.HelpText())
	if err != nil {
		g.logger.Error("rendering help page", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "help page unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	g.sendJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"agent_id": g.cfg.Agent.ID,
	})
}

func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := g.store.ListRecent(r.Context(), 1); err != nil {
		g.sendJSONError(w, http.StatusServiceUnavailable, "store not ready")
		return
	}
	g.sendJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (g *Gateway) handleSend(w http.ResponseWriter, r *http.Request) {
	req, err := parseSendRequest(r.Body)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Slash commands are answered locally without touching the bridge.
	if reply, handled := g.runCommand(r.Context(), req.Message); handled {
		g.sendJSON(w, http.StatusOK, SendResponse{
			Response:       reply,
			ConversationID: req.ConversationID,
			AgentID:        g.cfg.Agent.ID,
		})
		return
	}

	reply := g.deliver(r, req)
	g.sendJSON(w, http.StatusOK, SendResponse{
		Response:       reply.Text,
		ConversationID: reply.ConversationID,
		AgentID:        g.cfg.Agent.ID,
	})
}

// deliver routes a chat message to its bridge. Messages addressed with
// @agent_id go through a registry lookup; everything else goes to the local
// bridge.
func (g *Gateway) deliver(r *http.Request, req *SendRequest) *bridge.Reply {
	target, text := splitTarget(req.Message)

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	clientID := req.ClientID
	if clientID == "" {
		clientID = "ui_client"
	}

	msg := &bridge.Message{
		Role:           bridge.RoleUser,
		Text:           text,
		ConversationID: conversationID,
		Metadata: map[string]any{
			"source":    "ui_client",
			"client_id": clientID,
		},
	}

	sender := g.localBridge
	if target != "" {
		peerURL, err := g.registry.Lookup(r.Context(), target)
		if err != nil {
			g.logger.Warn("peer lookup failed", "target", target, "error", err)
			return &bridge.Reply{
				Text:           fmt.Sprintf("%s unknown agent %q", bridge.ErrorMarker, target),
				ConversationID: conversationID,
			}
		}
		sender = g.newBridge(peerURL)
	}

	return sender.SendMessage(r.Context(), msg)
}

func (g *Gateway) handleListAgents(w http.ResponseWriter, r *http.Request) {
	clients, err := g.registry.Clients(r.Context())
	if err != nil {
		g.logger.Warn("listing agents failed", "error", err)
		g.sendJSONError(w, http.StatusBadGateway, "registry unavailable")
		return
	}
	g.sendJSON(w, http.StatusOK, map[string]any{"agents": clients})
}

func (g *Gateway) handleReceiveMessage(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	text := extractInboundText(payload)
	if text == "" {
		g.sendJSONError(w, http.StatusBadRequest, "message has no text")
		return
	}

	fromAgent, _ := payload["from_agent"].(string)
	if fromAgent == "" {
		// Older bridges send "from" instead.
		fromAgent, _ = payload["from"].(string)
	}
	conversationID, _ := payload["conversation_id"].(string)

	senderName := fromAgent
	if fromAgent != "" {
		if name, err := g.registry.SenderName(r.Context(), fromAgent); err == nil && name != "" {
			senderName = name
		}
	}

	msg := &store.InboundMessage{
		ID:             uuid.New().String(),
		FromAgent:      fromAgent,
		SenderName:     senderName,
		ConversationID: conversationID,
		Text:           text,
		Timestamp:      time.Now().UTC(),
	}
	if err := g.store.SaveInbound(r.Context(), msg); err != nil {
		g.logger.Error("saving inbound message", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "could not store message")
		return
	}

	g.broadcaster.Publish(&events.Event{
		Type:           "message",
		From:           fromAgent,
		SenderName:     senderName,
		ConversationID: conversationID,
		Text:           text,
		Timestamp:      msg.Timestamp,
	})

	g.sendJSON(w, http.StatusOK, map[string]string{"status": "received", "id": msg.ID})
}

// extractInboundText pulls display text out of a peer's delivery payload.
// Peers speak several dialects; the same keys the outbound side produces are
// accepted here.
func extractInboundText(payload map[string]any) string {
	if content, ok := payload["content"].(map[string]any); ok {
		if text, ok := content["text"].(string); ok {
			return text
		}
	}
	if text, ok := payload["content"].(string); ok {
		return text
	}
	for _, key := range []string{"text", "message"} {
		if text, ok := payload[key].(string); ok && text != "" {
			return text
		}
	}
	return ""
}

func (g *Gateway) handleRender(w http.ResponseWriter, r *http.Request) {
	msg, err := g.store.PopLatest(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSON(w, http.StatusOK, map[string]string{"status": "empty"})
		return
	}
	if err != nil {
		g.logger.Error("fetching latest message", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "could not fetch message")
		return
	}

	g.sendJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"id":              msg.ID,
		"from":            msg.FromAgent,
		"sender_name":     msg.SenderName,
		"conversation_id": msg.ConversationID,
		"text":            msg.Text,
		"timestamp":       msg.Timestamp.Format(time.RFC3339),
	})
}

func (g *Gateway) handleMessageStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch, subID := g.broadcaster.Subscribe(r.Context())
	g.logger.Debug("stream client connected", "sub_id", subID)

	// Periodic pings keep proxies from closing idle streams.
	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case event, open := <-ch:
			if !open {
				return
			}
			g.writeSSEEvent(w, "message", event)
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes a single SSE event to the response writer.
func (g *Gateway) writeSSEEvent(w http.ResponseWriter, event string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		g.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}

func (g *Gateway) sendJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// parseSendRequest parses and validates a SendRequest from the given reader.
func parseSendRequest(r io.Reader) (*SendRequest, error) {
	var req SendRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, errors.New("invalid JSON body")
	}
	if req.Message == "" {
		return nil, errors.New("message is required")
	}
	return &req, nil
}
