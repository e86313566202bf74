package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTemplate = `prompt_id: attendant_v1
persona:
  role: a sales attendant
  company: CryptoLock
  product: PSPM
  goal: Answer product questions
instructions:
  - Never invent pricing
  - Keep replies short
contexto_do_produto: |
  PSPM scans CI/CD pipelines for misconfigurations.
`

func writeTemplate(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prompt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadRendersTemplate(t *testing.T) {
	path := writeTemplate(t, sampleTemplate)

	instruction, err := Load(path)
	require.NoError(t, err)

	assert.Contains(t, instruction, "You are a sales attendant at CryptoLock.")
	assert.Contains(t, instruction, "CRITICAL INSTRUCTIONS:")
	assert.Contains(t, instruction, "- Never invent pricing")
	assert.Contains(t, instruction, "PRODUCT CONTEXT:")
	assert.Contains(t, instruction, "misconfigurations")
	assert.Contains(t, instruction, "RESPONSE FORMAT:")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeTemplate(t, "persona: [not: a: mapping")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadOrDefaultFallsBack(t *testing.T) {
	instruction := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, DefaultInstruction, instruction)
}

func TestRenderEmptyTemplateUsesDefaults(t *testing.T) {
	instruction := Render(Template{})

	assert.True(t, strings.HasPrefix(instruction, "You are an assistant at CryptoLock."))
	assert.NotContains(t, instruction, "CRITICAL INSTRUCTIONS:")
	assert.NotContains(t, instruction, "PRODUCT CONTEXT:")
}
