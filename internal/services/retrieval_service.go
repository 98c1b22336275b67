package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"personachat/internal/models"
)

// VectorIndex is the nearest-neighbour search collaborator. Implementations restrict
// the search to the creator's partition; the engine enforces the same filter again.
type VectorIndex interface {
	Search(ctx context.Context, creatorRef models.CreatorCorpusRef, queryText string, k int) ([]models.IndexCandidate, error)
}

// RetrievalService ranks creator-scoped snippets for a query.
// It holds only collaborators and settings; nothing about any creator survives a call.
type RetrievalService struct {
	index           VectorIndex
	cache           RetrievalCache
	overfetchFactor int
	timeout         time.Duration
	metrics         *Metrics
}

// RetrievalOption configures a RetrievalService
type RetrievalOption func(*RetrievalService)

// WithRetrievalCache puts a read-through cache in front of the index
func WithRetrievalCache(c RetrievalCache) RetrievalOption {
	return func(s *RetrievalService) { s.cache = c }
}

// WithOverfetchFactor sets how many candidates to request per wanted snippet
func WithOverfetchFactor(factor int) RetrievalOption {
	return func(s *RetrievalService) {
		if factor >= 1 {
			s.overfetchFactor = factor
		}
	}
}

// WithRetrievalTimeout bounds the wait on the index
func WithRetrievalTimeout(d time.Duration) RetrievalOption {
	return func(s *RetrievalService) { s.timeout = d }
}

// WithRetrievalMetrics attaches metrics
func WithRetrievalMetrics(m *Metrics) RetrievalOption {
	return func(s *RetrievalService) { s.metrics = m }
}

// NewRetrievalService creates a retrieval engine over a vector index
func NewRetrievalService(index VectorIndex, opts ...RetrievalOption) *RetrievalService {
	s := &RetrievalService{
		index:           index,
		overfetchFactor: 2,
		timeout:         3 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Retrieve returns snippets ordered by descending score, all at or above the floor and
// all from the requested creator. An empty result is not an error. Index failures and
// timeouts return a *ChatError of kind retrieval_unavailable.
func (s *RetrievalService) Retrieve(ctx context.Context, query models.RetrievalQuery) (models.RetrievalResult, error) {
	analysis := AnalyzeQuery(query.RawText)
	strategy := analysis.Strategy()
	if analysis.SkipRetrieval() {
		return models.RetrievalResult{Snippets: []models.Snippet{}, Strategy: strategy}, nil
	}

	start := time.Now()
	k := query.MaxResults * s.overfetchFactor

	candidates, err := s.candidates(ctx, query, k)
	if err != nil {
		return models.RetrievalResult{Strategy: strategy}, err
	}

	snippets := rankSnippets(candidates, query)
	s.metrics.RecordRetrieval(time.Since(start).Seconds(), len(snippets))

	return models.RetrievalResult{Snippets: snippets, Strategy: strategy}, nil
}

// candidates returns creator-filtered candidates in index rank order, consulting the cache first
func (s *RetrievalService) candidates(ctx context.Context, query models.RetrievalQuery, k int) ([]models.IndexCandidate, error) {
	var key string
	if s.cache != nil {
		key = RetrievalCacheKey(query.CreatorRef, query.NormalizedText(), k)
		cached, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			s.metrics.RecordCacheLookup("error")
			log.Printf("⚠️  [RETRIEVAL] Cache lookup failed, querying index: %v", err)
		case ok:
			s.metrics.RecordCacheLookup("hit")
			return filterCreator(cached, query.CreatorRef), nil
		default:
			s.metrics.RecordCacheLookup("miss")
		}
	}

	searchCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	raw, err := s.index.Search(searchCtx, query.CreatorRef, query.RawText, k)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(searchCtx.Err(), context.DeadlineExceeded) {
			return nil, newChatError(KindRetrievalUnavailable, err, "vector index timed out after %s", s.timeout)
		}
		return nil, newChatError(KindRetrievalUnavailable, err, "vector index search failed")
	}

	filtered := filterCreator(raw, query.CreatorRef)
	if dropped := len(raw) - len(filtered); dropped > 0 {
		log.Printf("⚠️  [RETRIEVAL] Dropped %d candidates outside creator %s", dropped, query.CreatorRef)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, filtered); err != nil {
			log.Printf("⚠️  [RETRIEVAL] Cache store failed: %v", err)
		}
	}
	return filtered, nil
}

// filterCreator keeps only candidates from the requested partition, preserving order
func filterCreator(candidates []models.IndexCandidate, creatorRef models.CreatorCorpusRef) []models.IndexCandidate {
	out := make([]models.IndexCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.CreatorRef == creatorRef {
			out = append(out, c)
		}
	}
	return out
}

// rankSnippets applies the floor, sorts by descending score keeping index rank for ties,
// and truncates to MaxResults.
func rankSnippets(candidates []models.IndexCandidate, query models.RetrievalQuery) []models.Snippet {
	snippets := make([]models.Snippet, 0, len(candidates))
	for _, c := range candidates {
		if math.IsNaN(c.Score) {
			continue
		}
		score := math.Min(math.Max(c.Score, 0), 1)
		if score < query.SimilarityFloor {
			continue
		}
		snippets = append(snippets, models.Snippet{
			Content:  c.Content,
			SourceID: c.SourceID,
			Score:    score,
		})
	}

	sort.SliceStable(snippets, func(i, j int) bool {
		return snippets[i].Score > snippets[j].Score
	})

	if len(snippets) > query.MaxResults {
		snippets = snippets[:query.MaxResults]
	}
	return snippets
}

// String describes the engine settings for startup logs
func (s *RetrievalService) String() string {
	return fmt.Sprintf("retrieval(overfetch=%dx timeout=%s cache=%t)", s.overfetchFactor, s.timeout, s.cache != nil)
}
