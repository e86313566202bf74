package relay

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cryptolock-ai/whatsapp-relay/internal/messaging"
	"github.com/cryptolock-ai/whatsapp-relay/internal/observability/metrics"
	"github.com/cryptolock-ai/whatsapp-relay/internal/session"
	"github.com/cryptolock-ai/whatsapp-relay/pkg/logging"
)

// ServiceInfo feeds the health/status endpoints.
type ServiceInfo struct {
	Name               string
	Version            string
	Env                string
	GeminiModel        string
	TwilioConfigured   bool
	TwilioWhatsAppFrom string
}

// Handler exposes the webhook, health, and administrative HTTP surface.
type Handler struct {
	orchestrator  *Orchestrator
	store         *session.Store
	verifyToken   string
	webhookSecret string
	webhookURL    string
	info          ServiceInfo
	metrics       *metrics.RelayMetrics
	logger        *logging.Logger
}

// NewHandler creates the relay HTTP handler. webhookSecret enables Twilio
// signature validation when non-empty; webhookURL is the public URL signatures
// are computed against.
func NewHandler(orchestrator *Orchestrator, store *session.Store, verifyToken, webhookSecret, webhookURL string, info ServiceInfo, m *metrics.RelayMetrics, logger *logging.Logger) *Handler {
	if orchestrator == nil {
		panic("relay: orchestrator cannot be nil")
	}
	if store == nil {
		panic("relay: session store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		orchestrator:  orchestrator,
		store:         store,
		verifyToken:   verifyToken,
		webhookSecret: webhookSecret,
		webhookURL:    webhookURL,
		info:          info,
		metrics:       m,
		logger:        logger,
	}
}

type webhookResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Root handles GET / with a service banner and endpoint map.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": h.info.Name + " - Twilio WhatsApp Integration",
		"version": h.info.Version,
		"status":  "running",
		"endpoints": map[string]string{
			"health":       "/health",
			"status":       "/status",
			"webhook_get":  "GET /webhook (verification)",
			"webhook_post": "POST /webhook (receive messages)",
			"metrics":      "/metrics",
		},
	})
}

// VerifyWebhook handles the GET /webhook verification handshake. A request
// carrying a Twilio signature header is acknowledged outright; otherwise the
// presented verify token must match the configured secret and the challenge
// parameter is echoed back.
func (h *Handler) VerifyWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Twilio-Signature") != "" {
		h.logger.Info("webhook verified via twilio signature header")
		writePlain(w, http.StatusOK, "ok")
		return
	}

	if token := r.URL.Query().Get("hub.verify_token"); token == h.verifyToken && h.verifyToken != "" {
		challenge := r.URL.Query().Get("hub.challenge")
		if challenge == "" {
			challenge = "ok"
		}
		h.logger.Info("webhook verified via token")
		writePlain(w, http.StatusOK, challenge)
		return
	}

	h.logger.Warn("webhook verification rejected")
	writeJSON(w, http.StatusForbidden, webhookResponse{Status: "error", Message: "invalid or missing verify token"})
}

// ReceiveWebhook handles POST /webhook: parse, orchestrate, acknowledge.
func (h *Handler) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	if h.webhookSecret != "" {
		if !messaging.ValidateSignature(r, h.webhookSecret, h.webhookURL) {
			h.logger.Warn("invalid twilio signature")
			h.metrics.ObserveInbound("unknown", "unauthorized")
			writeJSON(w, http.StatusUnauthorized, webhookResponse{Status: "error", Message: "invalid signature"})
			return
		}
	}

	msg, err := messaging.ParseWebhook(r)
	if err != nil {
		h.logger.Error("failed to parse webhook", "error", err)
		h.metrics.ObserveInbound("unknown", "malformed")
		writeJSON(w, http.StatusBadRequest, webhookResponse{Status: "error", Message: err.Error()})
		return
	}

	if msg.MessageType == messaging.MessageTypeMedia {
		h.logger.Info("media message received, no AI call made", "user_id", msg.From, "media_count", msg.NumMedia)
		h.metrics.ObserveInbound(msg.MessageType, "ignored")
		writeJSON(w, http.StatusOK, webhookResponse{Status: "success", Message: "media received"})
		return
	}

	if msg.Body == "" {
		h.logger.Warn("empty text message received", "user_id", msg.From)
		h.metrics.ObserveInbound(msg.MessageType, "ignored")
		writeJSON(w, http.StatusOK, webhookResponse{Status: "success", Message: "empty message"})
		return
	}

	if err := h.orchestrator.HandleInbound(r.Context(), msg); err != nil {
		h.metrics.ObserveInbound(msg.MessageType, "error")
		writeJSON(w, http.StatusOK, webhookResponse{Status: "error", Message: "failed to generate reply"})
		return
	}

	h.metrics.ObserveInbound(msg.MessageType, "success")
	writeJSON(w, http.StatusOK, webhookResponse{Status: "success", Message: "message processed"})
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"service":         h.info.Name,
		"active_sessions": h.store.Count(),
	})
}

// Status handles GET /status with a per-dependency summary.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "running",
		"version": h.info.Version,
		"env":     h.info.Env,
		"services": map[string]any{
			"twilio": map[string]any{
				"available":       h.info.TwilioConfigured,
				"whatsapp_number": h.info.TwilioWhatsAppFrom,
			},
			"gemini": map[string]any{
				"available": true,
				"model":     h.info.GeminiModel,
			},
		},
		"sessions": map[string]any{
			"active_chat_sessions": h.store.Count(),
		},
	})
}

// DeleteSession handles DELETE /admin/sessions/{userID}.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, webhookResponse{Status: "error", Message: "user id required"})
		return
	}

	if !h.store.Delete(userID) {
		writeJSON(w, http.StatusNotFound, webhookResponse{Status: "error", Message: "no session for user"})
		return
	}
	writeJSON(w, http.StatusOK, webhookResponse{Status: "success", Message: "session deleted"})
}

// ClearSessions handles DELETE /admin/sessions.
func (h *Handler) ClearSessions(w http.ResponseWriter, r *http.Request) {
	removed := h.store.Clear()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"removed": removed,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writePlain(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
