package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

const defaultLimit = 50

// Hit is a single search result.
type Hit struct {
	ID        string  `json:"id"`
	Reference string  `json:"reference,omitempty"`
	Score     float64 `json:"score"`
}

// Result holds search hits plus the total match count.
type Result struct {
	Query string `json:"query"`
	Total uint64 `json:"total"`
	Hits  []Hit  `json:"hits"`
}

// Search runs a free-text query over references, descriptions and
// resolved tag values. An empty query returns an empty result.
func (s *Index) Search(ctx context.Context, queryText string, limit int) (*Result, error) {
	queryText = strings.TrimSpace(queryText)
	if queryText == "" {
		return &Result{Query: queryText, Hits: []Hit{}}, nil
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	searchRequest := bleve.NewSearchRequestOptions(buildSearchQuery(queryText), limit, 0, false)
	searchRequest.Fields = []string{"reference"}

	s.mu.RLock()
	defer s.mu.RUnlock()

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &Result{
		Query: queryText,
		Total: searchResult.Total,
		Hits:  make([]Hit, 0, len(searchResult.Hits)),
	}
	for _, hit := range searchResult.Hits {
		h := Hit{ID: hit.ID, Score: hit.Score}
		if ref, ok := hit.Fields["reference"].(string); ok {
			h.Reference = ref
		}
		result.Hits = append(result.Hits, h)
	}
	return result, nil
}

// buildSearchQuery combines per-field matches with OR semantics.
func buildSearchQuery(queryText string) query.Query {
	var queries []query.Query

	// Exact reference match ranks highest.
	refTerm := bleve.NewTermQuery(queryText)
	refTerm.SetField("reference")
	refTerm.SetBoost(3.0)
	queries = append(queries, refTerm)

	// Reference prefix for partial catalog numbers.
	if len(queryText) >= 2 {
		refPrefix := bleve.NewPrefixQuery(queryText)
		refPrefix.SetField("reference")
		refPrefix.SetBoost(2.0)
		queries = append(queries, refPrefix)
	}

	// Tag values, boosted over prose.
	tagMatch := bleve.NewMatchQuery(queryText)
	tagMatch.SetField("tag_values")
	tagMatch.SetBoost(2.0)
	queries = append(queries, tagMatch)

	for _, field := range []string{"anvers", "revers", "general", "seller"} {
		fieldMatch := bleve.NewMatchQuery(queryText)
		fieldMatch.SetField(field)
		queries = append(queries, fieldMatch)
	}

	// Typo tolerance on the description fields.
	fuzzy := bleve.NewFuzzyQuery(queryText)
	fuzzy.SetFuzziness(1)
	fuzzy.SetField("general")
	fuzzy.SetBoost(0.5)
	queries = append(queries, fuzzy)

	return bleve.NewDisjunctionQuery(queries...)
}
