package conversation

import "fmt"

// AIProviderError wraps a failed completion call. The session that triggered
// the call is guaranteed to be left unmodified, so a retry sees clean state.
type AIProviderError struct {
	Cause error
}

func (e *AIProviderError) Error() string {
	return fmt.Sprintf("conversation: ai provider call failed: %v", e.Cause)
}

func (e *AIProviderError) Unwrap() error {
	return e.Cause
}
