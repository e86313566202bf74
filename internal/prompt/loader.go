// Package prompt renders the persona template into the system instruction
// handed to every new chat session.
package prompt

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultInstruction is used when no template file is available.
const DefaultInstruction = "You are a commercial attendant for CryptoLock, a vendor of CI/CD " +
	"pipeline security solutions. Keep responses professional, informative, and focused on " +
	"product benefits. Answer in the user's language (Portuguese or English)."

// Template is the on-disk YAML shape of a persona prompt.
type Template struct {
	PromptID       string   `yaml:"prompt_id"`
	Persona        Persona  `yaml:"persona"`
	Instructions   []string `yaml:"instructions"`
	ProductContext string   `yaml:"contexto_do_produto"`
}

// Persona describes who the assistant speaks as.
type Persona struct {
	Role    string `yaml:"role"`
	Company string `yaml:"company"`
	Product string `yaml:"product"`
	Goal    string `yaml:"goal"`
}

// Load reads a persona template and renders the system instruction.
func Load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("prompt: failed to read template %s: %w", path, err)
	}

	var tpl Template
	if err := yaml.Unmarshal(data, &tpl); err != nil {
		return "", fmt.Errorf("prompt: failed to parse template %s: %w", path, err)
	}

	return Render(tpl), nil
}

// LoadOrDefault loads the template at path, falling back to DefaultInstruction
// when the file is missing or unreadable.
func LoadOrDefault(path string) string {
	instruction, err := Load(path)
	if err != nil {
		return DefaultInstruction
	}
	return instruction
}

// Render builds the system instruction string from a parsed template.
func Render(tpl Template) string {
	role := orDefault(tpl.Persona.Role, "an assistant")
	company := orDefault(tpl.Persona.Company, "CryptoLock")
	product := orDefault(tpl.Persona.Product, "Pipeline Security Posture Management (PSPM)")
	goal := orDefault(tpl.Persona.Goal, "Provide product information and sales support")

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s at %s.\n", role, company)
	fmt.Fprintf(&b, "Your product: %s.\n", product)
	fmt.Fprintf(&b, "Goal: %s.\n", goal)

	if len(tpl.Instructions) > 0 {
		b.WriteString("\nCRITICAL INSTRUCTIONS:\n")
		for _, instr := range tpl.Instructions {
			fmt.Fprintf(&b, "- %s\n", instr)
		}
	}

	if strings.TrimSpace(tpl.ProductContext) != "" {
		b.WriteString("\nPRODUCT CONTEXT:\n")
		b.WriteString(strings.TrimSpace(tpl.ProductContext))
		b.WriteString("\n")
	}

	b.WriteString("\nRESPONSE FORMAT:\n")
	b.WriteString("- Open with a professional greeting on behalf of the company\n")
	b.WriteString("- Answer focused on the user's need\n")
	b.WriteString("- Cite documentation details when relevant\n")
	b.WriteString("- Close proactively with next steps\n")

	return strings.TrimSpace(b.String())
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
