package messaging

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Message type values inferred from an inbound webhook.
const (
	MessageTypeText  = "text"
	MessageTypeMedia = "media"
)

// InboundMessage is the normalized view of one Twilio WhatsApp webhook call.
// Immutable once constructed.
type InboundMessage struct {
	MessageSid  string
	AccountSid  string
	From        string
	To          string
	Body        string
	NumMedia    int
	MediaURLs   []string
	MessageType string
	ReceivedAt  time.Time
}

// ParseWebhook normalizes a Twilio form-encoded webhook request. Missing
// MessageSid or From fails with *MalformedWebhookError; a missing Body is an
// empty string since media-only messages are valid.
func ParseWebhook(r *http.Request) (*InboundMessage, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse form: %w", err)
	}
	return ParseWebhookForm(r.PostForm)
}

// ParseWebhookForm normalizes already-decoded webhook form values.
func ParseWebhookForm(form url.Values) (*InboundMessage, error) {
	messageSid := form.Get("MessageSid")
	if messageSid == "" {
		return nil, &MalformedWebhookError{Field: "MessageSid"}
	}

	from := StripWhatsAppPrefix(form.Get("From"))
	if from == "" {
		return nil, &MalformedWebhookError{Field: "From"}
	}

	// A garbled NumMedia is treated as zero, not rejected.
	numMedia, err := strconv.Atoi(form.Get("NumMedia"))
	if err != nil || numMedia < 0 {
		numMedia = 0
	}

	var mediaURLs []string
	for i := 0; i < numMedia; i++ {
		if u := form.Get(fmt.Sprintf("MediaUrl%d", i)); u != "" {
			mediaURLs = append(mediaURLs, u)
		}
	}

	messageType := MessageTypeText
	if len(mediaURLs) > 0 {
		messageType = MessageTypeMedia
	}

	return &InboundMessage{
		MessageSid:  messageSid,
		AccountSid:  form.Get("AccountSid"),
		From:        from,
		To:          StripWhatsAppPrefix(form.Get("To")),
		Body:        form.Get("Body"),
		NumMedia:    numMedia,
		MediaURLs:   mediaURLs,
		MessageType: messageType,
		ReceivedAt:  time.Now().UTC(),
	}, nil
}

// ValidateSignature validates that a request came from Twilio.
func ValidateSignature(r *http.Request, authToken, webhookURL string) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}

	if err := r.ParseForm(); err != nil {
		return false
	}

	payload := buildSignaturePayload(webhookURL, r.PostForm)
	expected := computeSignature(payload, authToken)

	return hmac.Equal([]byte(signature), []byte(expected))
}

// buildSignaturePayload creates the payload string for signature verification:
// the URL followed by every form parameter in sorted key order.
func buildSignaturePayload(url string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(url)
	for _, key := range keys {
		for _, value := range params[key] {
			payload.WriteString(key)
			payload.WriteString(value)
		}
	}
	return payload.String()
}

// computeSignature computes the HMAC-SHA1 signature
func computeSignature(data, key string) string {
	h := hmac.New(sha1.New, []byte(key))
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
