package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/cryptolock-ai/whatsapp-relay/pkg/logging"
)

var senderTracer = otel.Tracer("relay.internal.messaging.sender")

const defaultTwilioBaseURL = "https://api.twilio.com"

// WhatsAppSender posts WhatsApp messages using Twilio's REST API. It performs
// a single attempt per call; retry policy, if any, belongs to the caller.
type WhatsAppSender struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewWhatsAppSender builds a sender with sane defaults. from is the Twilio
// WhatsApp number messages are sent on behalf of.
func NewWhatsAppSender(accountSID, authToken, from string, logger *logging.Logger) *WhatsAppSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &WhatsAppSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    defaultTwilioBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// SendText submits one text message to the recipient and returns the gateway's
// message SID. The recipient may be given as +E164, bare digits, or an already
// prefixed whatsapp: address; the sender owns the channel formatting.
func (s *WhatsAppSender) SendText(ctx context.Context, to, body string) (string, error) {
	if s.accountSID == "" || s.authToken == "" {
		return "", errors.New("messaging: twilio credentials missing")
	}
	toAddr := WhatsAppAddress(to)
	if toAddr == "" {
		return "", errors.New("messaging: to required")
	}
	fromAddr := WhatsAppAddress(s.from)
	if fromAddr == "" {
		return "", errors.New("messaging: from required")
	}
	if strings.TrimSpace(body) == "" {
		return "", errors.New("messaging: body required")
	}

	ctx, span := senderTracer.Start(ctx, "messaging.twilio.send")
	defer span.End()
	span.SetAttributes(attribute.String("relay.to", toAddr))

	payload := url.Values{}
	payload.Set("To", toAddr)
	payload.Set("From", fromAddr)
	payload.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
	if err != nil {
		return "", fmt.Errorf("messaging: failed to build request: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return "", &DeliveryError{Cause: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		deliveryErr := newDeliveryError(resp.StatusCode, respBody)
		span.RecordError(deliveryErr)
		return "", deliveryErr
	}

	var parsed struct {
		SID    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil || parsed.SID == "" {
		// 2xx without a SID still counts as delivered to the gateway.
		s.logger.Warn("twilio response missing message sid", "to", toAddr)
	}

	s.logger.Info("whatsapp message sent", "to", toAddr, "sid", parsed.SID, "twilio_status", parsed.Status)
	return parsed.SID, nil
}

type twilioAPIError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func newDeliveryError(status int, body []byte) *DeliveryError {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return &DeliveryError{StatusCode: status}
	}
	var parsed twilioAPIError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		return &DeliveryError{StatusCode: status, Code: parsed.Code, Message: parsed.Message}
	}
	// Fallback: carry the raw body (already truncated by the read limit).
	return &DeliveryError{StatusCode: status, Message: trimmed}
}
