package messaging

import (
	"regexp"
	"strings"
)

const whatsAppPrefix = "whatsapp:"

var phoneDigitsRe = regexp.MustCompile(`\d+`)

func sanitizePhone(value string) string {
	if value == "" {
		return ""
	}
	digits := phoneDigitsRe.FindAllString(value, -1)
	return strings.Join(digits, "")
}

// NormalizeE164 ensures the value begins with + and only contains digits afterward.
func NormalizeE164(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	digits := sanitizePhone(value)
	if digits == "" {
		return ""
	}
	return "+" + digits
}

// StripWhatsAppPrefix removes the channel prefix Twilio puts on WhatsApp addresses.
func StripWhatsAppPrefix(value string) string {
	return strings.TrimPrefix(strings.TrimSpace(value), whatsAppPrefix)
}

// WhatsAppAddress converts a phone number into Twilio's whatsapp:+E164 form.
func WhatsAppAddress(value string) string {
	normalized := NormalizeE164(StripWhatsAppPrefix(value))
	if normalized == "" {
		return ""
	}
	return whatsAppPrefix + normalized
}
