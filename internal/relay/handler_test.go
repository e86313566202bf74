package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptolock-ai/whatsapp-relay/internal/conversation"
	"github.com/cryptolock-ai/whatsapp-relay/internal/session"
)

type scriptedLLM struct {
	reply string
	err   error
	calls int
}

func (s *scriptedLLM) Complete(_ context.Context, _ conversation.LLMRequest) (conversation.LLMResponse, error) {
	s.calls++
	if s.err != nil {
		return conversation.LLMResponse{}, s.err
	}
	return conversation.LLMResponse{Text: s.reply}, nil
}

type relayFixture struct {
	store     *session.Store
	llm       *scriptedLLM
	messenger *fakeMessenger
	router    http.Handler
}

func newRelayFixture(t *testing.T) *relayFixture {
	t.Helper()

	store := session.NewStore(0, nil)
	llm := &scriptedLLM{reply: "Oi! Como posso ajudar?"}
	messenger := &fakeMessenger{}
	chat := conversation.NewChat(llm, nil)
	orch := NewOrchestrator(store, chat, messenger, func() string { return "be helpful" }, nil, nil)
	handler := NewHandler(orch, store, "secret-token", "", "", ServiceInfo{
		Name:               "cryptolock-whatsapp-relay",
		Version:            "1.0.0",
		Env:                "test",
		GeminiModel:        "gemini-2.5-flash",
		TwilioConfigured:   true,
		TwilioWhatsAppFrom: "+14155238886",
	}, nil, nil)

	r := chi.NewRouter()
	r.Get("/", handler.Root)
	r.Get("/health", handler.HealthCheck)
	r.Get("/status", handler.Status)
	r.Get("/webhook", handler.VerifyWebhook)
	r.Post("/webhook", handler.ReceiveWebhook)
	r.Delete("/admin/sessions", handler.ClearSessions)
	r.Delete("/admin/sessions/{userID}", handler.DeleteSession)

	return &relayFixture{store: store, llm: llm, messenger: messenger, router: r}
}

func (f *relayFixture) postWebhook(t *testing.T, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func textWebhookForm(from, body string) url.Values {
	form := url.Values{}
	form.Set("MessageSid", "SM123")
	form.Set("From", from)
	form.Set("To", "whatsapp:+14155238886")
	form.Set("Body", body)
	form.Set("NumMedia", "0")
	return form
}

func TestWebhookEndToEndFirstContact(t *testing.T) {
	f := newRelayFixture(t)

	rec := f.postWebhook(t, textWebhookForm("whatsapp:+551199999999", "Olá"))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeResponse(t, rec)
	assert.Equal(t, "success", body["status"])

	require.Len(t, f.messenger.sends, 1)
	assert.Equal(t, "+551199999999", f.messenger.sends[0].To)
	assert.Equal(t, "Oi! Como posso ajudar?", f.messenger.sends[0].Body)

	sess := f.store.Get("+551199999999")
	require.NotNil(t, sess)
	assert.Equal(t, 2, sess.Len())
}

func TestWebhookEndToEndSecondMessageReusesSession(t *testing.T) {
	f := newRelayFixture(t)

	f.postWebhook(t, textWebhookForm("whatsapp:+551199999999", "Olá"))
	sess := f.store.Get("+551199999999")
	afterFirst := sess.Len()

	f.postWebhook(t, textWebhookForm("whatsapp:+551199999999", "Me conta mais"))

	assert.Equal(t, 1, f.store.Count())
	assert.Equal(t, afterFirst+2, sess.Len(), "history grows by user+assistant turns")
}

func TestWebhookRedeliveryProcessedTwice(t *testing.T) {
	f := newRelayFixture(t)
	form := textWebhookForm("whatsapp:+5511", "hi")

	f.postWebhook(t, form)
	f.postWebhook(t, form)

	assert.Equal(t, 2, f.llm.calls)
	assert.Len(t, f.messenger.sends, 2)
}

func TestWebhookMalformedPayload(t *testing.T) {
	f := newRelayFixture(t)
	form := textWebhookForm("whatsapp:+5511", "hi")
	form.Del("From")

	rec := f.postWebhook(t, form)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", decodeResponse(t, rec)["status"])
	assert.Equal(t, 0, f.store.Count(), "no session touched on parse failure")
}

func TestWebhookAIFailure(t *testing.T) {
	f := newRelayFixture(t)
	f.llm.err = errors.New("quota exceeded")

	rec := f.postWebhook(t, textWebhookForm("whatsapp:+5511", "hi"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "error", decodeResponse(t, rec)["status"])
	assert.Empty(t, f.messenger.sends, "no send after AI failure")
	assert.Equal(t, 0, f.store.Get("+5511").Len())
}

func TestWebhookDeliveryFailureStillAcknowledged(t *testing.T) {
	f := newRelayFixture(t)
	f.messenger.err = errors.New("unverified sender")

	rec := f.postWebhook(t, textWebhookForm("whatsapp:+5511", "hi"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", decodeResponse(t, rec)["status"])
}

func TestWebhookMediaMessageAcknowledgedWithoutAICall(t *testing.T) {
	f := newRelayFixture(t)
	form := textWebhookForm("whatsapp:+5511", "")
	form.Set("NumMedia", "1")
	form.Set("MediaUrl0", "https://example.com/pic.jpg")

	rec := f.postWebhook(t, form)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", decodeResponse(t, rec)["status"])
	assert.Equal(t, 0, f.llm.calls)
	assert.Empty(t, f.messenger.sends)
}

func TestWebhookEmptyBodyAcknowledged(t *testing.T) {
	f := newRelayFixture(t)
	form := textWebhookForm("whatsapp:+5511", "")

	rec := f.postWebhook(t, form)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", decodeResponse(t, rec)["status"])
	assert.Equal(t, 0, f.llm.calls)
}

func TestVerifyWebhookEchoesChallenge(t *testing.T) {
	f := newRelayFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.verify_token=secret-token&hub.challenge=42", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", rec.Body.String())
}

func TestVerifyWebhookWrongToken(t *testing.T) {
	f := newRelayFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.verify_token=wrong&hub.challenge=42", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestVerifyWebhookNoChallengeReturnsOK(t *testing.T) {
	f := newRelayFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.verify_token=secret-token", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestVerifyWebhookTwilioSignatureHeader(t *testing.T) {
	f := newRelayFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	req.Header.Set("X-Twilio-Signature", "anything")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestHealthEndpoint(t *testing.T) {
	f := newRelayFixture(t)
	f.postWebhook(t, textWebhookForm("whatsapp:+5511", "hi"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeResponse(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "cryptolock-whatsapp-relay", body["service"])
	assert.Equal(t, float64(1), body["active_sessions"])
}

func TestStatusEndpoint(t *testing.T) {
	f := newRelayFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeResponse(t, rec)
	assert.Equal(t, "running", body["status"])
	services := body["services"].(map[string]any)
	gemini := services["gemini"].(map[string]any)
	assert.Equal(t, "gemini-2.5-flash", gemini["model"])
}

func TestAdminDeleteSession(t *testing.T) {
	f := newRelayFixture(t)
	f.postWebhook(t, textWebhookForm("whatsapp:+5511", "hi"))

	req := httptest.NewRequest(http.MethodDelete, "/admin/sessions/+5511", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, f.store.Count())

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/admin/sessions/+5511", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminClearSessions(t *testing.T) {
	f := newRelayFixture(t)
	f.postWebhook(t, textWebhookForm("whatsapp:+5511", "hi"))
	f.postWebhook(t, textWebhookForm("whatsapp:+5522", "hi"))

	req := httptest.NewRequest(http.MethodDelete, "/admin/sessions", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeResponse(t, rec)
	assert.Equal(t, float64(2), body["removed"])
	assert.Equal(t, 0, f.store.Count())
}

func TestWebhookSignatureValidationWhenConfigured(t *testing.T) {
	store := session.NewStore(0, nil)
	llm := &scriptedLLM{reply: "r"}
	chat := conversation.NewChat(llm, nil)
	orch := NewOrchestrator(store, chat, &fakeMessenger{}, func() string { return "i" }, nil, nil)
	handler := NewHandler(orch, store, "tok", "signing-secret", "https://relay.example.com/webhook", ServiceInfo{}, nil, nil)

	form := textWebhookForm("whatsapp:+5511", "hi")
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ReceiveWebhook(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, llm.calls)
}
