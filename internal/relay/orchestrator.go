// Package relay wires webhook ingestion, session lookup, AI completion, and
// outbound delivery into one end-to-end flow per inbound message.
package relay

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/cryptolock-ai/whatsapp-relay/internal/messaging"
	"github.com/cryptolock-ai/whatsapp-relay/internal/observability/metrics"
	"github.com/cryptolock-ai/whatsapp-relay/internal/session"
	"github.com/cryptolock-ai/whatsapp-relay/pkg/logging"
)

var relayTracer = otel.Tracer("relay.internal.relay.orchestrator")

// Messenger sends a text reply through the messaging gateway.
type Messenger interface {
	SendText(ctx context.Context, to, body string) (string, error)
}

// Replier produces an AI reply for the next user turn of a session.
type Replier interface {
	Reply(ctx context.Context, sess *session.Session, text string) (string, error)
}

// Orchestrator runs the per-message cycle: resolve session, complete, deliver.
// It is memoryless across calls beyond the session store.
type Orchestrator struct {
	store       *session.Store
	chat        Replier
	messenger   Messenger
	instruction func() string
	metrics     *metrics.RelayMetrics
	logger      *logging.Logger
}

// NewOrchestrator builds the orchestrator. instruction supplies the system
// instruction for newly created sessions.
func NewOrchestrator(store *session.Store, chat Replier, messenger Messenger, instruction func() string, m *metrics.RelayMetrics, logger *logging.Logger) *Orchestrator {
	if store == nil {
		panic("relay: session store cannot be nil")
	}
	if chat == nil {
		panic("relay: chat replier cannot be nil")
	}
	if instruction == nil {
		panic("relay: instruction factory cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Orchestrator{
		store:       store,
		chat:        chat,
		messenger:   messenger,
		instruction: instruction,
		metrics:     m,
		logger:      logger,
	}
}

// HandleInbound processes one normalized inbound message. It returns an error
// only when the AI completion fails; delivery failures are logged and counted
// but do not fail the cycle, since the AI turn is already recorded and the
// gateway acknowledgment is keyed on ingestion alone.
func (o *Orchestrator) HandleInbound(ctx context.Context, msg *messaging.InboundMessage) error {
	ctx, span := relayTracer.Start(ctx, "relay.handle_inbound")
	defer span.End()
	span.SetAttributes(
		attribute.String("relay.message_sid", msg.MessageSid),
		attribute.String("relay.from", msg.From),
	)

	sess, created := o.store.GetOrCreate(msg.From, o.instruction)
	if created {
		o.logger.Info("first contact from user", "user_id", msg.From)
	}

	start := time.Now()
	reply, err := o.chat.Reply(ctx, sess, msg.Body)
	if err != nil {
		o.metrics.ObserveCompletion("error", time.Since(start).Seconds())
		span.RecordError(err)
		return err
	}
	o.metrics.ObserveCompletion("success", time.Since(start).Seconds())

	if o.messenger == nil {
		o.logger.Warn("messaging client unavailable, reply not delivered", "user_id", msg.From)
		o.metrics.ObserveOutbound("skipped")
		return nil
	}

	sid, err := o.messenger.SendText(ctx, msg.From, reply)
	if err != nil {
		// The AI turn stays recorded; the user simply gets no reply.
		o.logger.Error("failed to deliver reply", "user_id", msg.From, "error", err)
		o.metrics.ObserveOutbound("failed")
		span.RecordError(err)
		return nil
	}

	o.metrics.ObserveOutbound("delivered")
	o.logger.Info("reply delivered", "user_id", msg.From, "delivery_sid", sid)
	return nil
}
