package services

import (
	"strings"
	"testing"

	"personachat/internal/models"
)

func testCreator() models.Creator {
	return models.Creator{
		ID:            "hawa_singh",
		Name:          "Hawa Singh",
		Specialty:     "YouTube Growth Expert",
		Tone:          "friendly_expert",
		LanguageStyle: "hinglish",
		Expertise:     []string{"YouTube growth", "Content strategy"},
		IsActive:      true,
	}
}

func TestBuildPrompt(t *testing.T) {
	snippets := []models.Snippet{
		{Content: "Pick one niche", SourceID: "hs-03", Score: 0.91},
		{Content: "Post consistently", SourceID: "hs-12", Score: 0.82},
	}

	prompt := BuildPrompt(testCreator(), AnalyzeQuery("how to get first 1000 subscribers"), snippets, "how to get first 1000 subscribers")

	for _, want := range []string{
		"You are Hawa Singh, a YouTube Growth Expert.",
		"- Tone: friendly expert",
		"- Expertise: YouTube growth, Content strategy",
		"RESPONSE FORMAT FOR HOW-TO QUESTIONS",
		"Context 1: Pick one niche",
		"Context 2: Post consistently",
		"USER QUERY: how to get first 1000 subscribers",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q\n%s", want, prompt)
		}
	}
	if !strings.HasSuffix(prompt, "RESPONSE:") {
		t.Error("prompt should end with RESPONSE:")
	}
	if strings.Index(prompt, "Context 1") > strings.Index(prompt, "Context 2") {
		t.Error("snippets should keep their rank order")
	}
}

func TestBuildPrompt_Variants(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		snips   int
		want    string
		notWant string
	}{
		{"no context", "best upload time", 0, "No specific context available", "Context 1:"},
		{"inappropriate", "nsfw please", 0, "INAPPROPRIATE CONTENT RESPONSE", "HOW-TO"},
		{"greeting", "hello", 0, "GREETING RESPONSE", "HOW-TO"},
		{"caps snippets", "best camera", 7, "Context 5:", "Context 6:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snippets := make([]models.Snippet, tt.snips)
			for i := range snippets {
				snippets[i] = models.Snippet{Content: "tip", Score: 0.9}
			}
			prompt := BuildPrompt(testCreator(), AnalyzeQuery(tt.query), snippets, tt.query)
			if !strings.Contains(prompt, tt.want) {
				t.Errorf("prompt missing %q", tt.want)
			}
			if strings.Contains(prompt, tt.notWant) {
				t.Errorf("prompt should not contain %q", tt.notWant)
			}
		})
	}
}
