package collection

import (
	"context"
	"encoding/json/v2"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numisapp/numis-server/internal/domain"
	"github.com/numisapp/numis-server/internal/registry"
	"github.com/numisapp/numis-server/internal/store"
)

func newTestStore(t *testing.T) (*Store, *registry.Registry, *store.MemoryKV) {
	t.Helper()
	kv := store.NewMemoryKV()
	reg := registry.New(kv, slog.New(slog.DiscardHandler))
	return New(kv, reg, slog.New(slog.DiscardHandler)), reg, kv
}

func floatPtr(v float64) *float64 { return &v }

func TestAddCoin(t *testing.T) {
	s, _, _ := newTestStore(t)

	coin := s.AddCoin(domain.CoinInput{Reference: "M00042", Seller: "auction house"})
	require.NotEmpty(t, coin.ID)
	assert.False(t, coin.CreatedAt.IsZero())
	assert.Equal(t, coin.CreatedAt, coin.UpdatedAt)

	// Nil sequences are normalized so the wire format always has arrays.
	assert.NotNil(t, coin.Images)
	assert.NotNil(t, coin.Tags)

	got, ok := s.GetCoin(coin.ID)
	require.True(t, ok)
	assert.Equal(t, "M00042", got.Reference)
}

func TestUpdateCoin(t *testing.T) {
	s, _, _ := newTestStore(t)

	coin := s.AddCoin(domain.CoinInput{Reference: "M00001", Seller: "first"})
	time.Sleep(time.Millisecond)

	updated, ok := s.UpdateCoin(coin.ID, domain.CoinInput{Reference: "M00002"})
	require.True(t, ok)
	assert.Equal(t, "M00002", updated.Reference)
	// Full replacement: fields absent from the input are cleared.
	assert.Empty(t, updated.Seller)
	assert.Equal(t, coin.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(coin.UpdatedAt))

	_, ok = s.UpdateCoin("coin-missing", domain.CoinInput{})
	assert.False(t, ok)
}

func TestDeleteCoin(t *testing.T) {
	s, _, _ := newTestStore(t)

	coin := s.AddCoin(domain.CoinInput{})
	require.True(t, s.DeleteCoin(coin.ID))

	_, ok := s.GetCoin(coin.ID)
	assert.False(t, ok)

	assert.False(t, s.DeleteCoin(coin.ID))
}

func TestToggleFilter(t *testing.T) {
	s, _, _ := newTestStore(t)

	s.ToggleFilter("Metal", "Silver")
	s.ToggleFilter("Metal", "Bronze")
	s.ToggleFilter("Emperor", "Trajan")

	filters := s.Filters()
	require.Len(t, filters, 2)
	assert.Equal(t, []string{"Silver", "Bronze"}, filters[0].Values)

	// Toggling off the last value drops the category entry.
	s.ToggleFilter("Emperor", "Trajan")
	filters = s.Filters()
	require.Len(t, filters, 1)
	assert.Equal(t, "Metal", filters[0].Category)

	s.ToggleFilter("Metal", "Silver")
	assert.Equal(t, []string{"Bronze"}, s.Filters()[0].Values)
}

func TestFilteredCoins_AndAcrossCategoriesOrWithin(t *testing.T) {
	s, reg, _ := newTestStore(t)

	silver := reg.AddTag("Metal", "Silver")
	bronze := reg.AddTag("Metal", "Bronze")
	trajan := reg.AddTag("Emperor", "Trajan")
	nero := reg.AddTag("Emperor", "Nero")

	silverTrajan := s.AddCoin(domain.CoinInput{Tags: []string{silver, trajan}})
	bronzeTrajan := s.AddCoin(domain.CoinInput{Tags: []string{bronze, trajan}})
	silverNero := s.AddCoin(domain.CoinInput{Tags: []string{silver, nero}})
	untagged := s.AddCoin(domain.CoinInput{})

	// No filters: everything passes.
	assert.Len(t, s.FilteredCoins(), 4)

	// OR within a category.
	s.ToggleFilter("Metal", "Silver")
	s.ToggleFilter("Metal", "Bronze")
	ids := coinIDs(s.FilteredCoins())
	assert.ElementsMatch(t, []string{silverTrajan.ID, bronzeTrajan.ID, silverNero.ID}, ids)

	// AND across categories.
	s.ToggleFilter("Emperor", "Trajan")
	ids = coinIDs(s.FilteredCoins())
	assert.ElementsMatch(t, []string{silverTrajan.ID, bronzeTrajan.ID}, ids)

	// Untagged coins never match an active tag filter.
	assert.NotContains(t, ids, untagged.ID)
}

func TestFilteredCoins_DanglingTagIDIgnored(t *testing.T) {
	s, reg, _ := newTestStore(t)

	silver := reg.AddTag("Metal", "Silver")
	coin := s.AddCoin(domain.CoinInput{Tags: []string{silver, "tag-deleted-long-ago"}})

	s.ToggleFilter("Metal", "Silver")
	assert.Equal(t, []string{coin.ID}, coinIDs(s.FilteredCoins()))

	// The dangling ID contributes no facet.
	facets := s.AllTagFacets()
	require.Len(t, facets, 1)
	assert.Equal(t, "Metal", facets[0].Category)
}

func TestClearFilters_RestoresUnfilteredView(t *testing.T) {
	s, reg, _ := newTestStore(t)

	silver := reg.AddTag("Metal", "Silver")
	s.AddCoin(domain.CoinInput{Tags: []string{silver}, Weight: floatPtr(3.5)})
	s.AddCoin(domain.CoinInput{Weight: floatPtr(12.0)})

	s.ToggleFilter("Metal", "Silver")
	s.SetWeightRange(1, 5)
	require.Len(t, s.FilteredCoins(), 1)

	s.ClearFilters()
	assert.Len(t, s.FilteredCoins(), 2)
	assert.Empty(t, s.Filters())

	// Clearing twice is the same as clearing once.
	s.ClearFilters()
	assert.Len(t, s.FilteredCoins(), 2)
}

func TestFilteredCoins_WeightRange(t *testing.T) {
	s, _, _ := newTestStore(t)

	light := s.AddCoin(domain.CoinInput{Weight: floatPtr(2.1)})
	heavy := s.AddCoin(domain.CoinInput{Weight: floatPtr(25.4)})
	unweighed := s.AddCoin(domain.CoinInput{})

	s.SetWeightRange(1, 10)
	ids := coinIDs(s.FilteredCoins())
	assert.Contains(t, ids, light.ID)
	assert.NotContains(t, ids, heavy.ID)
	// Coins without the field always pass a range filter.
	assert.Contains(t, ids, unweighed.ID)

	// Bounds are inclusive.
	s.SetWeightRange(2.1, 25.4)
	assert.Len(t, s.FilteredCoins(), 3)
}

func TestFilteredCoins_DiameterRange(t *testing.T) {
	s, _, _ := newTestStore(t)

	small := s.AddCoin(domain.CoinInput{Diameter: floatPtr(18.0)})
	s.AddCoin(domain.CoinInput{Diameter: floatPtr(34.0)})

	s.SetDiameterRange(15, 20)
	assert.Equal(t, []string{small.ID}, coinIDs(s.FilteredCoins()))
}

func TestFilteredCoins_Ordering(t *testing.T) {
	s, _, _ := newTestStore(t)

	s.AddCoin(domain.CoinInput{Reference: "M00002"})
	s.AddCoin(domain.CoinInput{Reference: "M00010"})
	s.AddCoin(domain.CoinInput{})
	s.AddCoin(domain.CoinInput{Reference: "M00005"})

	coins := s.FilteredCoins()
	require.Len(t, coins, 4)
	assert.Equal(t, "M00010", coins[0].Reference)
	assert.Equal(t, "M00005", coins[1].Reference)
	assert.Equal(t, "M00002", coins[2].Reference)
	// Referenceless coins sort last.
	assert.Empty(t, coins[3].Reference)
}

func TestAvailableTagFacets_Cascading(t *testing.T) {
	s, reg, _ := newTestStore(t)

	silver := reg.AddTag("Metal", "Silver")
	bronze := reg.AddTag("Metal", "Bronze")
	trajan := reg.AddTag("Emperor", "Trajan")
	nero := reg.AddTag("Emperor", "Nero")

	s.AddCoin(domain.CoinInput{Tags: []string{silver, trajan}})
	s.AddCoin(domain.CoinInput{Tags: []string{bronze, nero}})

	all := s.AllTagFacets()
	require.Len(t, all, 2)
	assert.Equal(t, "Emperor", all[0].Category)
	assert.Equal(t, []string{"Nero", "Trajan"}, all[0].Values)

	// Selecting Silver leaves only the silver coin, so Nero disappears
	// from the available facets while the full view keeps it.
	s.ToggleFilter("Metal", "Silver")
	available := s.AvailableTagFacets()
	require.Len(t, available, 2)
	assert.Equal(t, []string{"Trajan"}, available[0].Values)
	assert.Equal(t, []string{"Silver"}, available[1].Values)
	assert.Equal(t, []string{"Nero", "Trajan"}, s.AllTagFacets()[0].Values)
}

func TestWeightRange_Bounds(t *testing.T) {
	s, _, _ := newTestStore(t)

	// No weighed coins: default bounds.
	assert.Equal(t, domain.Range{Min: 0, Max: 100}, s.WeightRange())

	s.AddCoin(domain.CoinInput{Weight: floatPtr(3.7)})
	s.AddCoin(domain.CoinInput{Weight: floatPtr(11.2)})
	s.AddCoin(domain.CoinInput{})

	// Floor of min, ceil of max.
	assert.Equal(t, domain.Range{Min: 3, Max: 12}, s.WeightRange())
}

func TestDiameterRange_Bounds(t *testing.T) {
	s, _, _ := newTestStore(t)

	assert.Equal(t, domain.Range{Min: 0, Max: 100}, s.DiameterRange())

	s.AddCoin(domain.CoinInput{Diameter: floatPtr(17.5)})
	s.AddCoin(domain.CoinInput{Diameter: floatPtr(17.5)})

	assert.Equal(t, domain.Range{Min: 17, Max: 18}, s.DiameterRange())
}

func TestNextReference(t *testing.T) {
	s, _, _ := newTestStore(t)

	assert.Equal(t, "M00001", s.NextReference())

	s.AddCoin(domain.CoinInput{Reference: "M00005"})
	s.AddCoin(domain.CoinInput{Reference: "M00002"})
	// Non-conforming references are ignored.
	s.AddCoin(domain.CoinInput{Reference: "X99999"})
	s.AddCoin(domain.CoinInput{Reference: "M123"})

	assert.Equal(t, "M00006", s.NextReference())
}

func TestNextReference_Saturates(t *testing.T) {
	s, _, _ := newTestStore(t)

	s.AddCoin(domain.CoinInput{Reference: "M99999"})
	assert.Equal(t, "M99999", s.NextReference())
}

func TestReplaceAll(t *testing.T) {
	s, _, _ := newTestStore(t)

	s.AddCoin(domain.CoinInput{Reference: "M00001"})

	incoming := []domain.Coin{
		{ID: "coin-remote-1", Reference: "M00007", Images: []string{}, Tags: []string{}},
	}
	s.ReplaceAll(incoming)

	coins := s.Coins()
	require.Len(t, coins, 1)
	// Remote IDs are trusted as-is.
	assert.Equal(t, "coin-remote-1", coins[0].ID)
}

func TestExportAll(t *testing.T) {
	s, _, _ := newTestStore(t)

	s.AddCoin(domain.CoinInput{Reference: "M00001"})

	data, err := s.ExportAll()
	require.NoError(t, err)

	var coins []domain.Coin
	require.NoError(t, json.Unmarshal(data, &coins))
	require.Len(t, coins, 1)
	assert.Equal(t, "M00001", coins[0].Reference)
}

func TestClearAll(t *testing.T) {
	s, _, _ := newTestStore(t)

	s.AddCoin(domain.CoinInput{})
	s.ToggleFilter("Metal", "Silver")
	s.ClearAll()

	assert.Empty(t, s.Coins())
	assert.Empty(t, s.Filters())
}

func TestPersistence_WriteThrough(t *testing.T) {
	s, _, kv := newTestStore(t)

	coin := s.AddCoin(domain.CoinInput{Reference: "M00001"})

	// Persistence is fire-and-forget; wait for the write to land.
	require.Eventually(t, func() bool {
		data, err := kv.Get(context.Background(), store.KeyCoins)
		if err != nil {
			return false
		}
		var stored []domain.Coin
		if err := json.Unmarshal(data, &stored); err != nil {
			return false
		}
		return len(stored) == 1 && stored[0].ID == coin.ID
	}, time.Second, 5*time.Millisecond)
}

func TestNew_LoadsPersistedCoins(t *testing.T) {
	kv := store.NewMemoryKV()
	reg := registry.New(kv, slog.New(slog.DiscardHandler))

	data, err := json.Marshal([]domain.Coin{
		{ID: "coin-1", Reference: "M00003", Images: []string{}, Tags: []string{}},
	})
	require.NoError(t, err)
	require.NoError(t, kv.Set(context.Background(), store.KeyCoins, data))

	s := New(kv, reg, slog.New(slog.DiscardHandler))
	got, ok := s.GetCoin("coin-1")
	require.True(t, ok)
	assert.Equal(t, "M00003", got.Reference)
}

func TestNew_CorruptStateStartsEmpty(t *testing.T) {
	kv := store.NewMemoryKV()
	reg := registry.New(kv, slog.New(slog.DiscardHandler))
	require.NoError(t, kv.Set(context.Background(), store.KeyCoins, []byte("{{{")))

	s := New(kv, reg, slog.New(slog.DiscardHandler))
	assert.Empty(t, s.Coins())
}

type countingNotifier struct {
	calls int
}

func (n *countingNotifier) Changed() { n.calls++ }

func TestNotifier_CalledOnMutations(t *testing.T) {
	s, _, _ := newTestStore(t)
	n := &countingNotifier{}
	s.SetNotifier(n)

	coin := s.AddCoin(domain.CoinInput{})
	s.UpdateCoin(coin.ID, domain.CoinInput{Reference: "M00001"})
	s.DeleteCoin(coin.ID)

	assert.Equal(t, 3, n.calls)

	// Reads and filter toggles never notify; filters are session state.
	s.ToggleFilter("Metal", "Silver")
	s.FilteredCoins()
	assert.Equal(t, 3, n.calls)
}

func coinIDs(coins []domain.Coin) []string {
	ids := make([]string, len(coins))
	for i, c := range coins {
		ids[i] = c.ID
	}
	return ids
}
