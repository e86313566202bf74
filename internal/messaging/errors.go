package messaging

import "fmt"

// MalformedWebhookError reports an inbound webhook payload missing a required
// field. Sessions are never touched on parse failure.
type MalformedWebhookError struct {
	Field string
}

func (e *MalformedWebhookError) Error() string {
	return fmt.Sprintf("messaging: malformed webhook: missing %s", e.Field)
}

// DeliveryError reports a rejected or failed outbound send. It carries the
// gateway's status and error code verbatim for diagnostics.
type DeliveryError struct {
	StatusCode int
	Code       int
	Message    string
	Cause      error
}

func (e *DeliveryError) Error() string {
	switch {
	case e.Cause != nil:
		return fmt.Sprintf("messaging: delivery failed: %v", e.Cause)
	case e.Code != 0:
		return fmt.Sprintf("messaging: delivery failed: status %d code %d: %s", e.StatusCode, e.Code, e.Message)
	default:
		return fmt.Sprintf("messaging: delivery failed: status %d: %s", e.StatusCode, e.Message)
	}
}

func (e *DeliveryError) Unwrap() error {
	return e.Cause
}
