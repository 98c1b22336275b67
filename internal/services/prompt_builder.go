package services

import (
	"fmt"
	"strings"

	"personachat/internal/models"
)

// maxPromptSnippets caps how many snippets are written into the prompt
const maxPromptSnippets = 5

// BuildPrompt composes the generation prompt for one message: the creator persona,
// formatting instructions for the query intent, retrieved context and the user query.
// Prior turns are sent to the generator as separate messages.
func BuildPrompt(creator models.Creator, analysis QueryAnalysis, snippets []models.Snippet, userText string) string {
	var b strings.Builder

	name := orDefault(creator.Name, "AI Assistant")
	specialty := orDefault(creator.Specialty, "content creation expert")
	fmt.Fprintf(&b, "You are %s, a %s.\n", name, specialty)
	if creator.Description != "" {
		fmt.Fprintf(&b, "%s\n", creator.Description)
	}

	b.WriteString("\nPERSONALITY:\n")
	fmt.Fprintf(&b, "- Tone: %s\n", humanize(orDefault(creator.Tone, "friendly and helpful")))
	fmt.Fprintf(&b, "- Language Style: %s\n", humanize(orDefault(creator.LanguageStyle, "professional with casual elements")))
	if len(creator.Expertise) > 0 {
		fmt.Fprintf(&b, "- Expertise: %s\n", strings.Join(creator.Expertise, ", "))
	}

	switch {
	case analysis.IsInappropriate:
		b.WriteString("\nINAPPROPRIATE CONTENT RESPONSE:\n")
		fmt.Fprintf(&b, "Politely decline and redirect the user to topics within your expertise as %s. Be professional but firm.\n", specialty)
	case analysis.Intent == IntentGreeting:
		b.WriteString("\nGREETING RESPONSE:\nGreet the user back warmly in your own style and invite them to ask a question. Keep it short.\n")
	case analysis.Intent == IntentHowTo || analysis.IsStepByStep:
		b.WriteString("\nRESPONSE FORMAT FOR HOW-TO QUESTIONS:\n")
		b.WriteString("Give numbered steps (3 to 8 depending on complexity), each with a short title, an explanation and a practical tip.\n")
		b.WriteString("Finish with a few pro tips, one common mistake to avoid and what to do next.\n")
	}

	b.WriteString("\nCONTEXT INFORMATION:\n")
	if len(snippets) == 0 {
		b.WriteString("No specific context available. Answer from your general expertise and do not invent specifics.\n")
	} else {
		for i, s := range snippets {
			if i == maxPromptSnippets {
				break
			}
			fmt.Fprintf(&b, "Context %d: %s\n\n", i+1, strings.TrimSpace(s.Content))
		}
	}

	fmt.Fprintf(&b, "\nUSER QUERY: %s\n\nRESPONSE:", strings.TrimSpace(userText))
	return b.String()
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// humanize turns config identifiers like "friendly_expert" into "friendly expert"
func humanize(v string) string {
	return strings.ReplaceAll(v, "_", " ")
}
