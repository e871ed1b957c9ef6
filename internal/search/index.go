package search

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/numisapp/numis-server/internal/domain"
)

// TagResolver resolves tag IDs to definitions for denormalization.
type TagResolver interface {
	GetTag(tagID string) (domain.TagDefinition, bool)
}

// Index wraps an in-memory Bleve index over the coin catalog.
//
// All public methods are safe for concurrent use. The mutex protects
// against index swaps during rebuild operations.
type Index struct {
	mu       sync.RWMutex
	index    bleve.Index
	resolver TagResolver
	logger   *slog.Logger
}

// NewIndex creates an empty in-memory index. Callers rebuild it from the
// collection store after startup.
func NewIndex(resolver TagResolver, logger *slog.Logger) (*Index, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &Index{
		index:    index,
		resolver: resolver,
		logger:   logger,
	}, nil
}

// Close releases the index.
func (s *Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexCoin adds or updates one coin in the index.
func (s *Index) IndexCoin(ctx context.Context, coin *domain.Coin) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc := CoinToDocument(coin, s.tagValues(coin))

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Index(doc.ID, doc.ToMap())
}

// DeleteCoin removes a coin from the index.
func (s *Index) DeleteCoin(ctx context.Context, coinID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(coinID)
}

// RebuildIndex replaces the index contents with the given coins. Used
// after bulk changes (sync pull, snapshot import) where incremental
// updates cannot tell which documents disappeared.
func (s *Index) RebuildIndex(ctx context.Context, coins []domain.Coin) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fresh, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	const batchSize = 500

	for i := 0; i < len(coins); i += batchSize {
		end := min(i+batchSize, len(coins))

		batch := fresh.NewBatch()
		for j := i; j < end; j++ {
			doc := CoinToDocument(&coins[j], s.tagValues(&coins[j]))
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				fresh.Close()
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}
		if err := fresh.Batch(batch); err != nil {
			fresh.Close()
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}

	s.mu.Lock()
	old := s.index
	s.index = fresh
	s.mu.Unlock()

	if err := old.Close(); err != nil {
		s.logger.Warn("could not close replaced search index", "error", err)
	}

	s.logger.Debug("rebuilt search index", "coins", len(coins))
	return nil
}

// DocumentCount returns the number of indexed coins.
func (s *Index) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// tagValues resolves a coin's tag IDs to their values, skipping dangling
// references.
func (s *Index) tagValues(coin *domain.Coin) []string {
	var values []string
	for _, tagID := range coin.Tags {
		if def, ok := s.resolver.GetTag(tagID); ok {
			values = append(values, def.Value)
		}
	}
	return values
}
