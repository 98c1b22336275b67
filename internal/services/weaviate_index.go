package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"personachat/internal/models"
)

// WeaviateIndex searches creator content stored in Weaviate with nearText.
// Every query carries a where filter on creator_id.
type WeaviateIndex struct {
	client    *weaviate.Client
	className string
}

// weaviateItem is one object of the creator content class
type weaviateItem struct {
	Content    string `json:"content"`
	Source     string `json:"source"`
	CreatorID  string `json:"creator_id"`
	Additional struct {
		ID        string  `json:"id"`
		Certainty float64 `json:"certainty"`
	} `json:"_additional"`
}

// NewWeaviateIndex creates a vector index backed by Weaviate
func NewWeaviateIndex(scheme, host, className string) (*WeaviateIndex, error) {
	client, err := weaviate.NewClient(weaviate.Config{
		Host:   host,
		Scheme: scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}
	if className == "" {
		className = "CreatorContent"
	}
	return &WeaviateIndex{client: client, className: className}, nil
}

// Search returns up to k candidates from the creator's partition in index rank order
func (w *WeaviateIndex) Search(ctx context.Context, creatorRef models.CreatorCorpusRef, queryText string, k int) ([]models.IndexCandidate, error) {
	where := filters.Where().
		WithPath([]string{"creator_id"}).
		WithOperator(filters.Equal).
		WithValueString(string(creatorRef))

	nearText := w.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{queryText})

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "source"},
		{Name: "creator_id"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "certainty"}}},
	}

	result, err := w.client.GraphQL().Get().
		WithClassName(w.className).
		WithNearText(nearText).
		WithWhere(where).
		WithLimit(k).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate search: %w", err)
	}
	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			if e != nil {
				msgs = append(msgs, e.Message)
			}
		}
		return nil, fmt.Errorf("weaviate search: %s", strings.Join(msgs, "; "))
	}

	// Marshal to JSON and unmarshal to typed struct
	jsonBytes, err := json.Marshal(result.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal weaviate response: %w", err)
	}
	var typed struct {
		Get map[string][]weaviateItem `json:"Get"`
	}
	if err := json.Unmarshal(jsonBytes, &typed); err != nil {
		return nil, fmt.Errorf("unmarshal weaviate response: %w", err)
	}

	items := typed.Get[w.className]
	candidates := make([]models.IndexCandidate, 0, len(items))
	for _, item := range items {
		sourceID := item.Source
		if sourceID == "" {
			sourceID = item.Additional.ID
		}
		candidates = append(candidates, models.IndexCandidate{
			SourceID:   sourceID,
			Content:    item.Content,
			Score:      item.Additional.Certainty,
			CreatorRef: models.CreatorCorpusRef(item.CreatorID),
		})
	}
	return candidates, nil
}

// Ping checks that Weaviate is ready
func (w *WeaviateIndex) Ping(ctx context.Context) error {
	ready, err := w.client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return fmt.Errorf("weaviate ready check: %w", err)
	}
	if !ready {
		return fmt.Errorf("weaviate not ready")
	}
	return nil
}

// Name identifies the dependency in readiness reports
func (w *WeaviateIndex) Name() string {
	return "weaviate"
}
