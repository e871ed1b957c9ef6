// Package collection owns the coin catalog: CRUD, cascading facet views,
// tag and numeric-range filtering, and reference numbering.
package collection

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/numisapp/numis-server/internal/domain"
	"github.com/numisapp/numis-server/internal/errors"
	"github.com/numisapp/numis-server/internal/id"
	"github.com/numisapp/numis-server/internal/store"
)

// TagResolver resolves tag IDs to definitions. A dangling ID resolves to
// nothing and the coin simply has one less effective tag.
type TagResolver interface {
	GetTag(tagID string) (domain.TagDefinition, bool)
}

// ChangeNotifier is told after every mutation. The sync engine uses this
// to arm its debounce and periodic timers.
type ChangeNotifier interface {
	Changed()
}

// SearchIndexer keeps the full-text index in sync with store changes.
// Index updates are performed asynchronously to not block store operations.
type SearchIndexer interface {
	IndexCoin(ctx context.Context, coin *domain.Coin) error
	DeleteCoin(ctx context.Context, coinID string) error
	RebuildIndex(ctx context.Context, coins []domain.Coin) error
}

// NoopSearchIndexer is a no-op implementation for testing.
type NoopSearchIndexer struct{}

// IndexCoin is a no-op.
func (NoopSearchIndexer) IndexCoin(context.Context, *domain.Coin) error { return nil }

// DeleteCoin is a no-op.
func (NoopSearchIndexer) DeleteCoin(context.Context, string) error { return nil }

// RebuildIndex is a no-op.
func (NoopSearchIndexer) RebuildIndex(context.Context, []domain.Coin) error { return nil }

// referencePattern matches catalog references: "M" plus exactly five digits.
var referencePattern = regexp.MustCompile(`^M(\d{5})$`)

const maxReferenceNumber = 99999

// Default bounds reported when no coin carries the measured field.
const (
	defaultRangeMin = 0
	defaultRangeMax = 100
)

// Store is the in-memory coin catalog. All methods are safe for
// concurrent use. Derived views (facets, filtered coins, ranges) are pure
// functions of current state, recomputed on every read. Every mutation
// schedules a fire-and-forget write of the full coin sequence to the
// key-value layer.
type Store struct {
	mu            sync.RWMutex
	coins         []domain.Coin
	filters       []domain.Filter
	weightRange   *domain.Range
	diameterRange *domain.Range

	resolver TagResolver
	kv       store.KV
	logger   *slog.Logger
	notifier ChangeNotifier
	indexer  SearchIndexer
}

// New creates a collection store, loading any previously persisted coins
// from the key-value layer. A missing or unreadable key yields an empty
// catalog.
func New(kv store.KV, resolver TagResolver, logger *slog.Logger) *Store {
	s := &Store{
		kv:       kv,
		resolver: resolver,
		logger:   logger,
		indexer:  NoopSearchIndexer{},
	}

	data, err := kv.Get(context.Background(), store.KeyCoins)
	if err != nil {
		if !errors.Is(err, store.ErrKeyNotFound) {
			logger.Warn("could not load coins from local storage", "error", err)
		}
		return s
	}

	if err := json.Unmarshal(data, &s.coins); err != nil {
		logger.Warn("stored coin set is corrupt, starting empty", "error", err)
		s.coins = nil
	}

	return s
}

// SetNotifier wires the change notifier. Set after construction to break
// the store/sync-engine construction cycle.
func (s *Store) SetNotifier(n ChangeNotifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

// SetSearchIndexer wires the full-text indexer. Set after store creation
// to avoid circular dependencies.
func (s *Store) SetSearchIndexer(indexer SearchIndexer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexer = indexer
}

// AddCoin creates a coin from input, assigning ID and timestamps.
func (s *Store) AddCoin(input domain.CoinInput) domain.Coin {
	coin := coinFromInput(input)
	coin.ID = id.MustGenerate("coin")
	coin.InitTimestamps()

	s.mu.Lock()
	s.coins = append(s.coins, coin)
	s.mu.Unlock()

	s.changed()
	s.indexAsync(coin)
	return coin
}

// UpdateCoin replaces every caller-settable field of the coin with the
// given ID, refreshing UpdatedAt. ID and CreatedAt are preserved. Absent
// IDs are a no-op returning false.
func (s *Store) UpdateCoin(coinID string, input domain.CoinInput) (domain.Coin, bool) {
	s.mu.Lock()
	var updated domain.Coin
	found := false
	for i := range s.coins {
		if s.coins[i].ID == coinID {
			coin := coinFromInput(input)
			coin.ID = coinID
			coin.CreatedAt = s.coins[i].CreatedAt
			coin.Touch()
			s.coins[i] = coin
			updated = coin
			found = true
			break
		}
	}
	s.mu.Unlock()

	if !found {
		return domain.Coin{}, false
	}

	s.changed()
	s.indexAsync(updated)
	return updated, true
}

// DeleteCoin removes the coin with the given ID. Absent IDs are a no-op.
func (s *Store) DeleteCoin(coinID string) bool {
	s.mu.Lock()
	found := false
	for i := range s.coins {
		if s.coins[i].ID == coinID {
			s.coins = append(s.coins[:i], s.coins[i+1:]...)
			found = true
			break
		}
	}
	s.mu.Unlock()

	if !found {
		return false
	}

	s.changed()
	go func() {
		if err := s.indexer.DeleteCoin(context.Background(), coinID); err != nil {
			s.logger.Warn("search index delete failed", "coin_id", coinID, "error", err)
		}
	}()
	return true
}

// GetCoin returns the coin with the given ID.
func (s *Store) GetCoin(coinID string) (domain.Coin, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.coins {
		if c.ID == coinID {
			return c, true
		}
	}
	return domain.Coin{}, false
}

// Coins returns a copy of every coin in insertion order.
func (s *Store) Coins() []domain.Coin {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Coin, len(s.coins))
	copy(out, s.coins)
	return out
}

// ToggleFilter flips membership of value within the named category
// filter. The first value of a new category appends a filter entry;
// removing the last value removes the whole entry, so a category appears
// at most once and only while it has selected values.
func (s *Store) ToggleFilter(category, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.filters {
		if s.filters[i].Category != category {
			continue
		}
		values := s.filters[i].Values
		for j, v := range values {
			if v == value {
				values = append(values[:j], values[j+1:]...)
				if len(values) == 0 {
					s.filters = append(s.filters[:i], s.filters[i+1:]...)
				} else {
					s.filters[i].Values = values
				}
				return
			}
		}
		s.filters[i].Values = append(values, value)
		return
	}

	s.filters = append(s.filters, domain.Filter{Category: category, Values: []string{value}})
}

// ClearFilters removes every active filter, including numeric ranges.
// Afterwards FilteredCoins is equivalent to a store that never had a
// filter applied.
func (s *Store) ClearFilters() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.filters = nil
	s.weightRange = nil
	s.diameterRange = nil
}

// Filters returns a copy of the active filters in category-first-seen order.
func (s *Store) Filters() []domain.Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Filter, len(s.filters))
	for i, f := range s.filters {
		out[i] = domain.Filter{Category: f.Category, Values: append([]string(nil), f.Values...)}
	}
	return out
}

// SetWeightRange activates a weight filter. Bounds are stored verbatim;
// callers are expected to pass sane values.
func (s *Store) SetWeightRange(min, max float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weightRange = &domain.Range{Min: min, Max: max}
}

// SetDiameterRange activates a diameter filter.
func (s *Store) SetDiameterRange(min, max float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diameterRange = &domain.Range{Min: min, Max: max}
}

// AllTagFacets aggregates (category, distinct sorted values) over every
// coin's resolved tags, sorted by category.
func (s *Store) AllTagFacets() []domain.Facet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.facetsOf(s.coins)
}

// AvailableTagFacets aggregates facets over only the coins that satisfy
// the currently active filters. Selecting a filter therefore narrows
// which other facet values remain selectable (cascading facets).
func (s *Store) AvailableTagFacets() []domain.Facet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.facetsOf(s.filteredLocked())
}

// FilteredCoins returns the coins satisfying every active filter: within
// a category any selected value matches (OR), across categories all
// filters must match (AND). Coins with a weight or diameter outside an
// active range are excluded; coins without the field always pass.
//
// Order: descending by reference; coins without a reference sort last;
// ties broken by ascending ID so the order is deterministic.
func (s *Store) FilteredCoins() []domain.Coin {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.filteredLocked()
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.Reference == "" && b.Reference == "":
			return a.ID < b.ID
		case a.Reference == "":
			return false
		case b.Reference == "":
			return true
		case a.Reference != b.Reference:
			return a.Reference > b.Reference
		default:
			return a.ID < b.ID
		}
	})
	return out
}

// WeightRange returns {floor(min), ceil(max)} over coins carrying a
// weight, or {0, 100} when none do.
func (s *Store) WeightRange() domain.Range {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return boundsOf(s.coins, func(c domain.Coin) *float64 { return c.Weight })
}

// DiameterRange returns {floor(min), ceil(max)} over coins carrying a
// diameter, or {0, 100} when none do.
func (s *Store) DiameterRange() domain.Range {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return boundsOf(s.coins, func(c domain.Coin) *float64 { return c.Diameter })
}

// NextReference scans existing references matching "M" + five digits and
// returns the next free number, zero-padded. Returns M00001 on an empty
// catalog; the counter saturates at M99999.
func (s *Store) NextReference() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	maxSeen := 0
	for _, c := range s.coins {
		m := referencePattern.FindStringSubmatch(c.Reference)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > maxSeen {
			maxSeen = n
		}
	}

	if maxSeen == 0 {
		return "M00001"
	}
	if maxSeen >= maxReferenceNumber {
		return fmt.Sprintf("M%05d", maxReferenceNumber)
	}
	return fmt.Sprintf("M%05d", maxSeen+1)
}

// ReplaceAll swaps in a whole new coin sequence. Used by the sync engine
// after a remote pull and by the snapshot importer.
func (s *Store) ReplaceAll(coins []domain.Coin) {
	replacement := make([]domain.Coin, len(coins))
	copy(replacement, coins)

	s.mu.Lock()
	s.coins = replacement
	s.mu.Unlock()

	s.changed()
	go func() {
		if err := s.indexer.RebuildIndex(context.Background(), s.Coins()); err != nil {
			s.logger.Warn("search index rebuild failed", "error", err)
		}
	}()
}

// ExportAll returns the serialized coin sequence.
func (s *Store) ExportAll() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(s.coins)
}

// ClearAll removes every coin and every active filter.
func (s *Store) ClearAll() {
	s.mu.Lock()
	s.coins = nil
	s.filters = nil
	s.weightRange = nil
	s.diameterRange = nil
	s.mu.Unlock()

	s.changed()
	go func() {
		if err := s.indexer.RebuildIndex(context.Background(), nil); err != nil {
			s.logger.Warn("search index rebuild failed", "error", err)
		}
	}()
}

// ResolvedTags returns the resolved (category, value) pairs of a coin,
// skipping dangling IDs.
func (s *Store) ResolvedTags(coin domain.Coin) []domain.Tag {
	var out []domain.Tag
	for _, tagID := range coin.Tags {
		if def, ok := s.resolver.GetTag(tagID); ok {
			out = append(out, def.Pair())
		}
	}
	return out
}

// filteredLocked computes the filtered coin list. Caller holds s.mu.
func (s *Store) filteredLocked() []domain.Coin {
	var out []domain.Coin
	for _, c := range s.coins {
		if s.matchesLocked(c) {
			out = append(out, c)
		}
	}
	return out
}

// matchesLocked reports whether a coin passes every active filter.
// Caller holds s.mu.
func (s *Store) matchesLocked(c domain.Coin) bool {
	if s.weightRange != nil && c.Weight != nil && !s.weightRange.Contains(*c.Weight) {
		return false
	}
	if s.diameterRange != nil && c.Diameter != nil && !s.diameterRange.Contains(*c.Diameter) {
		return false
	}

	if len(s.filters) == 0 {
		return true
	}

	resolved := s.ResolvedTags(c)
	for _, f := range s.filters {
		matched := false
		for _, v := range f.Values {
			want := domain.Tag{Category: f.Category, Value: v}
			for _, tag := range resolved {
				if tag == want {
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// facetsOf aggregates facets over the given coins. Caller holds s.mu.
func (s *Store) facetsOf(coins []domain.Coin) []domain.Facet {
	values := make(map[string]map[string]struct{})
	for _, c := range coins {
		for _, tagID := range c.Tags {
			def, ok := s.resolver.GetTag(tagID)
			if !ok {
				continue
			}
			if values[def.Category] == nil {
				values[def.Category] = make(map[string]struct{})
			}
			values[def.Category][def.Value] = struct{}{}
		}
	}

	facets := make([]domain.Facet, 0, len(values))
	for category, set := range values {
		facet := domain.Facet{Category: category, Values: make([]string, 0, len(set))}
		for v := range set {
			facet.Values = append(facet.Values, v)
		}
		sort.Strings(facet.Values)
		facets = append(facets, facet)
	}
	sort.Slice(facets, func(i, j int) bool { return facets[i].Category < facets[j].Category })
	return facets
}

// boundsOf computes {floor(min), ceil(max)} over the coins carrying the
// picked field, defaulting to {0, 100}.
func boundsOf(coins []domain.Coin, pick func(domain.Coin) *float64) domain.Range {
	var minV, maxV float64
	found := false
	for _, c := range coins {
		v := pick(c)
		if v == nil {
			continue
		}
		if !found || *v < minV {
			minV = *v
		}
		if !found || *v > maxV {
			maxV = *v
		}
		found = true
	}

	if !found {
		return domain.Range{Min: defaultRangeMin, Max: defaultRangeMax}
	}
	return domain.Range{Min: math.Floor(minV), Max: math.Ceil(maxV)}
}

// coinFromInput copies input into a coin, normalizing nil sequences so
// the stored JSON always carries images/tags arrays.
func coinFromInput(input domain.CoinInput) domain.Coin {
	coin := domain.Coin{
		Reference:           input.Reference,
		Images:              input.Images,
		Tags:                input.Tags,
		Anvers:              input.Anvers,
		Revers:              input.Revers,
		General:             input.General,
		Seller:              input.Seller,
		Weight:              input.Weight,
		Diameter:            input.Diameter,
		PricePaid:           input.PricePaid,
		AddedToCollectionAt: input.AddedToCollectionAt,
	}
	if coin.Images == nil {
		coin.Images = []string{}
	}
	if coin.Tags == nil {
		coin.Tags = []string{}
	}
	return coin
}

// changed persists the coin sequence and pings the notifier.
// Fire-and-forget: in-memory state stays authoritative for the session
// when the local store is unavailable.
func (s *Store) changed() {
	s.mu.RLock()
	data, err := json.Marshal(s.coins)
	notifier := s.notifier
	s.mu.RUnlock()

	if err != nil {
		s.logger.Error("could not serialize coins for persistence", "error", err)
	} else {
		go func() {
			if err := s.kv.Set(context.Background(), store.KeyCoins, data); err != nil {
				s.logger.Error("could not persist coins", "error", err)
			}
		}()
	}

	if notifier != nil {
		notifier.Changed()
	}
}

// indexAsync updates the search index for one coin, best effort.
func (s *Store) indexAsync(coin domain.Coin) {
	go func() {
		if err := s.indexer.IndexCoin(context.Background(), &coin); err != nil {
			s.logger.Warn("search index update failed", "coin_id", coin.ID, "error", err)
		}
	}()
}
