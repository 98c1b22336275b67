package models

import (
	"fmt"
	"math"
	"strings"
)

// CreatorCorpusRef identifies which creator's knowledge partition to search
type CreatorCorpusRef string

// Retrieval strategies reported alongside results
const (
	StrategyBalanced      = "balanced"
	StrategyFocused       = "focused"
	StrategyComprehensive = "comprehensive"
	StrategySkip          = "skip"
)

// RetrievalQuery is built fresh for one call and never mutated afterwards
type RetrievalQuery struct {
	RawText         string
	CreatorRef      CreatorCorpusRef
	MaxResults      int
	SimilarityFloor float64
}

// NewRetrievalQuery validates and builds a RetrievalQuery
func NewRetrievalQuery(rawText string, creatorRef CreatorCorpusRef, maxResults int, similarityFloor float64) (RetrievalQuery, error) {
	if strings.TrimSpace(rawText) == "" {
		return RetrievalQuery{}, fmt.Errorf("query text is required")
	}
	if strings.TrimSpace(string(creatorRef)) == "" {
		return RetrievalQuery{}, fmt.Errorf("creator reference is required")
	}
	if maxResults < 1 {
		return RetrievalQuery{}, fmt.Errorf("max results must be at least 1, got %d", maxResults)
	}
	if math.IsNaN(similarityFloor) || similarityFloor < 0 || similarityFloor > 1 {
		return RetrievalQuery{}, fmt.Errorf("similarity floor must be within [0,1], got %v", similarityFloor)
	}
	return RetrievalQuery{
		RawText:         rawText,
		CreatorRef:      creatorRef,
		MaxResults:      maxResults,
		SimilarityFloor: similarityFloor,
	}, nil
}

// NormalizedText lowercases the query and collapses whitespace
func (q RetrievalQuery) NormalizedText() string {
	return NormalizeQueryText(q.RawText)
}

// NormalizeQueryText lowercases text and collapses runs of whitespace
func NormalizeQueryText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Snippet is one ranked piece of creator knowledge. Score is 1.0 for an exact match, 0.0 for unrelated.
type Snippet struct {
	Content  string  `json:"content"`
	SourceID string  `json:"source_id"`
	Score    float64 `json:"score"`
}

// RetrievalResult is ordered by descending score; empty is a valid result
type RetrievalResult struct {
	Snippets []Snippet `json:"snippets"`
	Strategy string    `json:"strategy"`
}

// Len returns the number of snippets
func (r RetrievalResult) Len() int {
	return len(r.Snippets)
}

// IndexCandidate is a raw hit returned by the vector index, in index rank order
type IndexCandidate struct {
	SourceID   string           `json:"source_id"`
	Content    string           `json:"content"`
	Score      float64          `json:"score"`
	CreatorRef CreatorCorpusRef `json:"creator_ref"`
}
