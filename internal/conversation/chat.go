package conversation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/cryptolock-ai/whatsapp-relay/internal/session"
	"github.com/cryptolock-ai/whatsapp-relay/pkg/logging"
)

var chatTracer = otel.Tracer("relay.internal.conversation.chat")

// Chat translates inbound text into an AI reply while keeping each session's
// history consistent: the user and assistant turns of one exchange are
// recorded together, and only after the provider call succeeds.
type Chat struct {
	llm    LLMClient
	logger *logging.Logger
}

// NewChat creates the chat service over an LLM client.
func NewChat(llm LLMClient, logger *logging.Logger) *Chat {
	if llm == nil {
		panic("conversation: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Chat{llm: llm, logger: logger}
}

// Reply sends text as the next user turn for sess and returns the provider's
// reply verbatim. Exchanges for one session are serialized; a failed call
// leaves the history untouched and returns *AIProviderError.
func (c *Chat) Reply(ctx context.Context, sess *session.Session, text string) (string, error) {
	sess.LockTurn()
	defer sess.UnlockTurn()

	ctx, span := chatTracer.Start(ctx, "conversation.reply")
	defer span.End()
	span.SetAttributes(attribute.String("relay.user_id", sess.UserID))

	history := sess.History()
	messages := make([]ChatMessage, 0, len(history)+1)
	for _, turn := range history {
		role := ChatRoleUser
		if turn.Role == session.RoleAssistant {
			role = ChatRoleAssistant
		}
		messages = append(messages, ChatMessage{Role: role, Content: turn.Content})
	}
	messages = append(messages, ChatMessage{Role: ChatRoleUser, Content: text})

	resp, err := c.llm.Complete(ctx, LLMRequest{
		System:   []string{sess.SystemInstruction},
		Messages: messages,
	})
	if err != nil {
		span.RecordError(err)
		c.logger.Error("ai completion failed", "user_id", sess.UserID, "error", err)
		return "", &AIProviderError{Cause: err}
	}

	sess.AppendExchange(text, resp.Text)
	c.logger.Info("ai reply generated",
		"user_id", sess.UserID,
		"turns", sess.Len(),
		"output_tokens", resp.Usage.OutputTokens,
	)
	return resp.Text, nil
}
