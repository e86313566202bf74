package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	PublicBaseURL string

	// Twilio Programmable Messaging credentials
	TwilioAccountSID    string
	TwilioAuthToken     string
	TwilioWhatsAppFrom  string
	TwilioWebhookSecret string

	// Gemini AI provider
	GeminiAPIKey string
	GeminiModel  string

	// Webhook verification handshake
	VerifyToken string

	// Prompt template
	PromptTemplatePath string

	// Session lifecycle. Zero disables idle eviction.
	SessionTTL           time.Duration
	SessionSweepInterval time.Duration
}

// Load reads configuration from environment variables. A local .env file is
// applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		TwilioAccountSID:    getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:     getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWhatsAppFrom:  getEnv("TWILIO_WHATSAPP_NUMBER", ""),
		TwilioWebhookSecret: getEnv("TWILIO_WEBHOOK_SECRET", ""),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		VerifyToken: getEnv("VERIFY_TOKEN", ""),

		PromptTemplatePath: getEnv("PROMPT_TEMPLATE_PATH", "prompts/attendant_v1.yaml"),

		SessionTTL:           getEnvAsDuration("SESSION_TTL", 0),
		SessionSweepInterval: getEnvAsDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
	}
}

// Validate reports every missing required variable at once.
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"VERIFY_TOKEN", c.VerifyToken},
		{"GEMINI_API_KEY", c.GeminiAPIKey},
		{"TWILIO_ACCOUNT_SID", c.TwilioAccountSID},
		{"TWILIO_AUTH_TOKEN", c.TwilioAuthToken},
		{"TWILIO_WHATSAPP_NUMBER", c.TwilioWhatsAppFrom},
	}

	var missing []string
	for _, v := range required {
		if strings.TrimSpace(v.value) == "" {
			missing = append(missing, v.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// TwilioConfigured reports whether the outbound messaging credentials are complete.
func (c *Config) TwilioConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioWhatsAppFrom != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
