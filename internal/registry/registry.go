// Package registry owns the canonical set of tag definitions: stable IDs,
// lookup, prefix search, and merge/replace import paths.
package registry

import (
	"context"
	"encoding/json/v2"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/numisapp/numis-server/internal/domain"
	"github.com/numisapp/numis-server/internal/errors"
	"github.com/numisapp/numis-server/internal/id"
	"github.com/numisapp/numis-server/internal/store"
)

// now is a seam for tests.
var now = time.Now

// ChangeNotifier is told after every mutation. The sync engine uses this
// to arm its debounce and periodic timers.
type ChangeNotifier interface {
	Changed()
}

// Registry is the in-memory tag registry. All methods are safe for
// concurrent use. Every mutation schedules a fire-and-forget write of the
// full tag set to the key-value layer; a failed write is logged and the
// in-memory state stays authoritative.
type Registry struct {
	mu       sync.RWMutex
	tags     []domain.TagDefinition
	kv       store.KV
	logger   *slog.Logger
	notifier ChangeNotifier
}

// New creates a registry, loading any previously persisted tag set from
// the key-value layer. A missing or unreadable key yields an empty
// registry, matching a first run.
func New(kv store.KV, logger *slog.Logger) *Registry {
	r := &Registry{
		kv:     kv,
		logger: logger,
	}

	data, err := kv.Get(context.Background(), store.KeyTags)
	if err != nil {
		if !errors.Is(err, store.ErrKeyNotFound) {
			logger.Warn("could not load tags from local storage", "error", err)
		}
		return r
	}

	if err := json.Unmarshal(data, &r.tags); err != nil {
		logger.Warn("stored tag set is corrupt, starting empty", "error", err)
		r.tags = nil
	}

	return r
}

// SetNotifier wires the change notifier. Set after construction to break
// the registry/sync-engine construction cycle.
func (r *Registry) SetNotifier(n ChangeNotifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifier = n
}

// AddTag creates a definition with a fresh ID and returns the ID.
// Inputs are trimmed; if either is empty after trimming the call is a
// silent no-op returning "".
func (r *Registry) AddTag(category, value string) string {
	category = strings.TrimSpace(category)
	value = strings.TrimSpace(value)
	if category == "" || value == "" {
		return ""
	}

	def := domain.TagDefinition{
		ID:       id.MustGenerate("tag"),
		Category: category,
		Value:    value,
	}
	def.CreatedAt = now()

	r.mu.Lock()
	r.tags = append(r.tags, def)
	r.mu.Unlock()

	r.changed()
	return def.ID
}

// UpdateTag replaces the category and value of the definition with the
// given ID. Absent IDs are a no-op; the ID and CreatedAt never change.
func (r *Registry) UpdateTag(tagID, category, value string) {
	r.mu.Lock()
	touched := false
	for i := range r.tags {
		if r.tags[i].ID == tagID {
			r.tags[i].Category = category
			r.tags[i].Value = value
			touched = true
			break
		}
	}
	r.mu.Unlock()

	if touched {
		r.changed()
	}
}

// DeleteTag removes the definition with the given ID. Coins referencing
// it keep the dangling ID; lookups simply yield no match.
func (r *Registry) DeleteTag(tagID string) {
	r.mu.Lock()
	touched := false
	for i := range r.tags {
		if r.tags[i].ID == tagID {
			r.tags = append(r.tags[:i], r.tags[i+1:]...)
			touched = true
			break
		}
	}
	r.mu.Unlock()

	if touched {
		r.changed()
	}
}

// GetTag returns the definition with the given ID.
func (r *Registry) GetTag(tagID string) (domain.TagDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.tags {
		if t.ID == tagID {
			return t, true
		}
	}
	return domain.TagDefinition{}, false
}

// All returns a copy of every definition in insertion order.
func (r *Registry) All() []domain.TagDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.TagDefinition, len(r.tags))
	copy(out, r.tags)
	return out
}

// Categories returns the sorted set of distinct category names.
func (r *Registry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return sortedDistinct(r.tags, func(t domain.TagDefinition) (string, bool) {
		return t.Category, true
	})
}

// TagsByCategory returns the definitions in a category sorted by value
// ascending (case-sensitive lexicographic).
func (r *Registry) TagsByCategory(category string) []domain.TagDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.TagDefinition
	for _, t := range r.tags {
		if t.Category == category {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}

// SearchCategories returns distinct categories containing query,
// case-insensitive, sorted. An empty query returns all categories.
func (r *Registry) SearchCategories(query string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return r.Categories()
	}
	lower := strings.ToLower(query)

	r.mu.RLock()
	defer r.mu.RUnlock()

	return sortedDistinct(r.tags, func(t domain.TagDefinition) (string, bool) {
		return t.Category, strings.Contains(strings.ToLower(t.Category), lower)
	})
}

// SearchValuesByCategory returns distinct values within category
// containing query, case-insensitive, sorted. An empty query returns all
// values in the category.
func (r *Registry) SearchValuesByCategory(category, query string) []string {
	query = strings.TrimSpace(query)
	lower := strings.ToLower(query)

	r.mu.RLock()
	defer r.mu.RUnlock()

	return sortedDistinct(r.tags, func(t domain.TagDefinition) (string, bool) {
		if t.Category != category {
			return "", false
		}
		return t.Value, query == "" || strings.Contains(strings.ToLower(t.Value), lower)
	})
}

// ExportAll returns the serialized tag set.
func (r *Registry) ExportAll() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return json.Marshal(r.tags)
}

// ImportMerge appends every definition from data under a fresh ID and
// returns the old to new ID mapping. Incoming IDs are never reused, so
// they cannot collide with existing entries. Callers holding foreign
// keys (coin tag lists) remap them through the returned map.
func (r *Registry) ImportMerge(data []byte) (map[string]string, error) {
	var incoming []domain.TagDefinition
	if err := json.Unmarshal(data, &incoming); err != nil {
		return nil, errors.Wrap(err, errors.CodeValidation, "tag import payload is not a tag array")
	}

	idMap := make(map[string]string, len(incoming))

	r.mu.Lock()
	for _, t := range incoming {
		fresh := t
		fresh.ID = id.MustGenerate("tag")
		if fresh.CreatedAt.IsZero() {
			fresh.CreatedAt = now()
		}
		if t.ID != "" {
			idMap[t.ID] = fresh.ID
		}
		r.tags = append(r.tags, fresh)
	}
	r.mu.Unlock()

	r.changed()
	return idMap, nil
}

// ReplaceAll swaps in a whole new tag set. Only the sync engine calls
// this, after a remote pull: the incoming IDs are trusted because the
// coins referencing them are replaced in the same reconciliation pass.
func (r *Registry) ReplaceAll(tags []domain.TagDefinition) {
	r.mu.Lock()
	r.tags = make([]domain.TagDefinition, len(tags))
	copy(r.tags, tags)
	r.mu.Unlock()

	r.changed()
}

// ClearAll removes every definition.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	r.tags = nil
	r.mu.Unlock()

	r.changed()
}

// FindDuplicates returns groups of IDs sharing the same (category, value)
// pair. Duplicates are legal; this is the maintenance view used to clean
// them up.
func (r *Registry) FindDuplicates() [][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byPair := make(map[domain.Tag][]string)
	var order []domain.Tag
	for _, t := range r.tags {
		pair := t.Pair()
		if _, seen := byPair[pair]; !seen {
			order = append(order, pair)
		}
		byPair[pair] = append(byPair[pair], t.ID)
	}

	var groups [][]string
	for _, pair := range order {
		if ids := byPair[pair]; len(ids) > 1 {
			groups = append(groups, ids)
		}
	}
	return groups
}

// changed persists the tag set and pings the notifier. Persistence is
// fire-and-forget: the in-memory registry stays authoritative for the
// session even when the local store is unavailable.
func (r *Registry) changed() {
	r.mu.RLock()
	data, err := json.Marshal(r.tags)
	notifier := r.notifier
	r.mu.RUnlock()

	if err != nil {
		r.logger.Error("could not serialize tags for persistence", "error", err)
	} else {
		go func() {
			if err := r.kv.Set(context.Background(), store.KeyTags, data); err != nil {
				r.logger.Error("could not persist tags", "error", err)
			}
		}()
	}

	if notifier != nil {
		notifier.Changed()
	}
}

// sortedDistinct collects the distinct keys accepted by pick, sorted.
func sortedDistinct(tags []domain.TagDefinition, pick func(domain.TagDefinition) (string, bool)) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range tags {
		key, ok := pick(t)
		if !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
