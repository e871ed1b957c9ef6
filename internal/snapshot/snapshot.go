// Package snapshot implements whole-collection export and import through
// a portable JSON file, independent of the sync pipeline.
package snapshot

import (
	"context"
	"encoding/json/v2"
	"log/slog"
	"time"

	"github.com/numisapp/numis-server/internal/domain"
	"github.com/numisapp/numis-server/internal/errors"
	"github.com/numisapp/numis-server/internal/validation"
)

// CoinStore is the slice of the collection store the bridge needs.
type CoinStore interface {
	Coins() []domain.Coin
	ReplaceAll(coins []domain.Coin)
}

// TagRegistry is the slice of the tag registry the bridge needs.
// ImportMerge assigns fresh IDs and returns the old to new mapping.
type TagRegistry interface {
	All() []domain.TagDefinition
	ImportMerge(data []byte) (map[string]string, error)
}

// Service exports and imports snapshot files.
type Service struct {
	coins    CoinStore
	tags     TagRegistry
	validate *validation.Validator
	logger   *slog.Logger
}

// NewService creates a snapshot service.
func NewService(coins CoinStore, tags TagRegistry, logger *slog.Logger) *Service {
	return &Service{
		coins:    coins,
		tags:     tags,
		validate: validation.New(),
		logger:   logger,
	}
}

// Export captures the full collection and tag set.
func (s *Service) Export(ctx context.Context) (*domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := &domain.Snapshot{
		Coins:      s.coins.Coins(),
		Tags:       s.tags.All(),
		ExportedAt: time.Now().UTC(),
	}
	if snap.Coins == nil {
		snap.Coins = []domain.Coin{}
	}
	if snap.Tags == nil {
		snap.Tags = []domain.TagDefinition{}
	}
	return snap, nil
}

// Import applies a snapshot payload: either {coins, tags, exportedAt} or
// a legacy bare coin array. The whole payload is validated before any
// state is touched, so a bad file can never leave a half-applied import.
// Tags are merged under fresh IDs and the coins' tag references remapped;
// an ID that is not part of the snapshot's tag set passes through as-is.
// Coins replace the current collection wholesale.
func (s *Service) Import(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	coins, tags, err := parsePayload(payload)
	if err != nil {
		return err
	}

	for i := range coins {
		if err := s.validate.ValidateCtx(ctx, coins[i]); err != nil {
			return errors.ValidationWithDetails("snapshot contains an invalid coin", err.Error())
		}
	}
	for i := range tags {
		if err := s.validate.ValidateCtx(ctx, tags[i]); err != nil {
			return errors.ValidationWithDetails("snapshot contains an invalid tag", err.Error())
		}
	}

	idMap := map[string]string{}
	if len(tags) > 0 {
		tagData, err := json.Marshal(tags)
		if err != nil {
			return errors.Wrap(err, errors.CodeInternal, "serialize snapshot tags")
		}
		idMap, err = s.tags.ImportMerge(tagData)
		if err != nil {
			return err
		}
	}

	for i := range coins {
		for j, tagID := range coins[i].Tags {
			if fresh, ok := idMap[tagID]; ok {
				coins[i].Tags[j] = fresh
			}
		}
	}

	s.coins.ReplaceAll(coins)
	s.logger.Info("snapshot imported", "coins", len(coins), "tags", len(tags))
	return nil
}

// parsePayload decodes either snapshot format. A legacy bare array has no
// tags component.
func parsePayload(payload []byte) ([]domain.Coin, []domain.TagDefinition, error) {
	var snap domain.Snapshot
	if err := json.Unmarshal(payload, &snap); err == nil && snap.Coins != nil {
		return snap.Coins, snap.Tags, nil
	}

	var coins []domain.Coin
	if err := json.Unmarshal(payload, &coins); err == nil {
		return coins, nil, nil
	}

	return nil, nil, errors.Validation("snapshot is neither a {coins, tags} object nor a coin array")
}
