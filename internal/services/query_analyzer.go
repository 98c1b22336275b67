package services

import (
	"strings"
	"unicode"

	"personachat/internal/models"
)

// QueryIntent is the coarse intent of a user message
type QueryIntent string

const (
	IntentGreeting      QueryIntent = "greeting"
	IntentQuestion      QueryIntent = "question"
	IntentHowTo         QueryIntent = "how_to"
	IntentInappropriate QueryIntent = "inappropriate"
)

// QueryAnalysis is the heuristic classification of one message
type QueryAnalysis struct {
	Intent          QueryIntent
	Complex         bool
	IsGreeting      bool
	IsInappropriate bool
	IsStepByStep    bool
}

var (
	greetingWords = map[string]bool{
		"hi": true, "hii": true, "hello": true, "hey": true, "namaste": true, "hola": true,
	}
	inappropriateWords = map[string]bool{
		"sex": true, "porn": true, "adult": true, "nsfw": true,
	}
	greetingFollowers = map[string]bool{
		"there": true, "sir": true, "ji": true, "bhai": true, "all": true, "everyone": true,
	}
)

// complexWordCount is the word count above which a query is treated as multi-part
const complexWordCount = 10

// AnalyzeQuery classifies a message with word-level heuristics.
// Matching is on whole words, so "this" is not a greeting and "adultery" is not flagged.
func AnalyzeQuery(text string) QueryAnalysis {
	words := tokenize(text)
	normalized := strings.Join(words, " ")

	analysis := QueryAnalysis{
		Complex:      len(words) > complexWordCount,
		IsStepByStep: strings.Contains(normalized, "how to") || containsWord(words, "steps"),
	}

	for _, w := range words {
		if inappropriateWords[w] {
			analysis.IsInappropriate = true
			break
		}
	}
	analysis.IsGreeting = isGreeting(words)

	switch {
	case analysis.IsGreeting:
		analysis.Intent = IntentGreeting
	case analysis.IsInappropriate:
		analysis.Intent = IntentInappropriate
	case analysis.IsStepByStep:
		analysis.Intent = IntentHowTo
	default:
		analysis.Intent = IntentQuestion
	}
	return analysis
}

// SkipRetrieval reports whether the index should not be consulted at all
func (a QueryAnalysis) SkipRetrieval() bool {
	return a.IsGreeting || a.IsInappropriate
}

// Strategy returns the retrieval strategy label for the analysis
func (a QueryAnalysis) Strategy() string {
	switch {
	case a.SkipRetrieval():
		return models.StrategySkip
	case a.Complex:
		return models.StrategyComprehensive
	case a.Intent == IntentHowTo:
		return models.StrategyFocused
	default:
		return models.StrategyBalanced
	}
}

// isGreeting is true for short messages made only of a greeting and an optional addressee
func isGreeting(words []string) bool {
	if len(words) == 0 || len(words) > 3 || !greetingWords[words[0]] {
		return false
	}
	for _, w := range words[1:] {
		if !greetingWords[w] && !greetingFollowers[w] {
			return false
		}
	}
	return true
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func containsWord(words []string, target string) bool {
	for _, w := range words {
		if w == target {
			return true
		}
	}
	return false
}
