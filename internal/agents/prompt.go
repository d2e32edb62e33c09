package agents

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed prompts
var promptFiles embed.FS

// LoadPrompt loads a prompt from the embedded markdown files
func LoadPrompt(path string) (string, error) {
	content, err := promptFiles.ReadFile(fmt.Sprintf("prompts/%s.md", path))
	if err != nil {
		return "", fmt.Errorf("failed to load prompt %s: %w", path, err)
	}
	return string(content), nil
}

// renderPrompt replaces context variables in the format {{.VariableName}}.
// Replacement is single-pass, so placeholders inside values stay literal.
func renderPrompt(template string, context map[string]string) string {
	pairs := make([]string, 0, len(context)*2)
	for key, value := range context {
		pairs = append(pairs, fmt.Sprintf("{{.%s}}", key), value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// scratchpad renders previous steps so the oracle continues after the last observation.
func scratchpad(steps []AgentStep) string {
	var b strings.Builder
	for _, step := range steps {
		b.WriteString(step.Log)
		b.WriteString("\nObservation: ")
		b.WriteString(step.Observation)
		b.WriteString("\nThought: ")
	}
	return b.String()
}
