package roadmap

import (
	"encoding/json"
	"strings"
)

// Prompt is the two-part instruction sent to the generator: a fixed system
// instruction describing the output contract and the user message.
type Prompt struct {
	System string
	User   string
}

var systemInstruction = buildSystemInstruction()

func buildSystemInstruction() string {
	schema, _ := json.MarshalIndent(ResponseSchema(), "", "  ")
	parts := []string{
		"You are a career mentor. Analyze the resume and the target role and write a week-by-week learning roadmap that closes the gap between them.",
		"Return JSON ONLY. No prose, no markdown, no code fences.",
		`The response must be a single JSON object with exactly one key "roadmap" holding an array.`,
		`Each array element is an object with keys "week" (integer starting at 1), "title" (string), "description" (string) and "resources" (array of strings: URLs or references).`,
		"Example:",
		`{"roadmap":[{"week":1,"title":"Topic","description":"Details","resources":["https://example.com"]}]}`,
		"JSON Schema:",
		string(schema),
	}
	return strings.Join(parts, "\n")
}

// BuildPrompt embeds the resume text and target role verbatim. Neither is
// truncated; an empty role is sent as is.
func BuildPrompt(resumeText, targetRole string) Prompt {
	var b strings.Builder
	b.WriteString("Resume: ")
	b.WriteString(resumeText)
	b.WriteString("\nTarget Role: ")
	b.WriteString(targetRole)
	return Prompt{System: systemInstruction, User: b.String()}
}
