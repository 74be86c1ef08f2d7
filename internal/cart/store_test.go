package cart

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/hamper-storefront/internal/model"
	"github.com/mmeshcher/hamper-storefront/internal/storage"
)

var (
	productA = model.Product{ID: 1, Name: "Apples", Price: 10, StockQuantity: 20}
	productB = model.Product{ID: 2, Name: "Bread", Price: 2.5, StockQuantity: 5}
	hamper1  = model.Hamper{ID: 1, Name: "Fruit Hamper", Price: 40, StockQuantity: 3}
)

type failingStorage struct{}

func (failingStorage) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("quota exceeded")
}

func (failingStorage) Set(ctx context.Context, key string, value []byte) error {
	return errors.New("quota exceeded")
}

func (failingStorage) Remove(ctx context.Context, key string) error {
	return errors.New("quota exceeded")
}

func newGuestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(storage.NewMemoryStorage(), nil, nil, Options{})
	t.Cleanup(s.Close)
	return s
}

func TestAddItem_SameIdentityIncrements(t *testing.T) {
	s := newGuestStore(t)

	require.NoError(t, s.AddItem(productA, 1))
	require.NoError(t, s.AddItem(productA, 1))

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, 20.0, s.Total())
}

func TestAddItem_ProductAndHamperWithSameID(t *testing.T) {
	s := newGuestStore(t)

	require.NoError(t, s.AddItem(productA, 1))
	require.NoError(t, s.AddItem(hamper1, 1))

	lines := s.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, model.KindProduct, lines[0].Item.Kind())
	assert.Equal(t, model.KindHamper, lines[1].Item.Kind())
	assert.Equal(t, 50.0, s.Total())
}

func TestAddItem_Validation(t *testing.T) {
	s := newGuestStore(t)

	assert.ErrorIs(t, s.AddItem(productA, 0), ErrInvalidQuantity)
	assert.ErrorIs(t, s.AddItem(productA, -3), ErrInvalidQuantity)
	assert.ErrorIs(t, s.AddItem(nil, 1), ErrInvalidItem)
	assert.ErrorIs(t, s.AddItem(productB, 6), ErrInsufficientStock)

	require.NoError(t, s.AddItem(productB, 5))
	assert.ErrorIs(t, s.AddItem(productB, 1), ErrInsufficientStock)

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)
}

func TestUpdateQuantity(t *testing.T) {
	s := newGuestStore(t)
	require.NoError(t, s.AddItem(productB, 1))

	ref := model.RefOf(productB)

	require.NoError(t, s.UpdateQuantity(ref, 4))
	assert.Equal(t, 10.0, s.Total())

	assert.ErrorIs(t, s.UpdateQuantity(ref, 0), ErrInvalidQuantity)
	assert.ErrorIs(t, s.UpdateQuantity(ref, 6), ErrInsufficientStock)
	assert.ErrorIs(t, s.UpdateQuantity(model.ItemRef{ID: 99}, 1), ErrLineNotFound)

	assert.Equal(t, 4, s.Lines()[0].Quantity)
}

func TestStockCeiling_OnlyForPositiveStock(t *testing.T) {
	s := newGuestStore(t)
	unstocked := model.Product{ID: 1, Name: "A", Price: 10}

	require.NoError(t, s.AddItem(unstocked, 2))
	assert.Equal(t, 20.0, s.Total())

	require.NoError(t, s.AddItem(unstocked, 40))
	require.NoError(t, s.UpdateQuantity(model.RefOf(unstocked), 100))
	assert.Equal(t, 1000.0, s.Total())

	assert.ErrorIs(t, s.UpdateQuantity(model.RefOf(unstocked), 0), ErrInvalidQuantity)
}

func TestEndToEndScenario(t *testing.T) {
	s := newGuestStore(t)
	ref := model.ItemRef{ID: productA.ID, Kind: model.KindProduct}

	require.NoError(t, s.AddItem(productA, 2))
	assert.Equal(t, 20.0, s.Total())

	require.NoError(t, s.UpdateQuantity(ref, 5))
	assert.Equal(t, 50.0, s.Total())

	s.RemoveItem(ref)
	assert.Equal(t, 0.0, s.Total())
	assert.Empty(t, s.Lines())
	assert.True(t, s.IsRemoved(model.KindProduct, productA.ID))
	assert.Equal(t, []model.Tombstone{{ID: 1, Kind: model.KindProduct}}, s.Removed())
}

func TestRemoveItem_PrefersExactName(t *testing.T) {
	s := newGuestStore(t)

	first := model.Product{ID: 7, Name: "Cheese", Price: 3, StockQuantity: 5}
	second := model.Product{ID: 7, Name: "Cheese (aged)", Price: 6, StockQuantity: 5}
	require.NoError(t, s.AddItem(first, 1))
	require.NoError(t, s.AddItem(second, 1))
	require.Len(t, s.Lines(), 2)

	s.RemoveItem(model.RefOf(second))
	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "Cheese", lines[0].Item.ItemName())

	// Без имени берётся первое совпадение по id и kind.
	require.NoError(t, s.AddItem(second, 1))
	s.RemoveItem(model.ItemRef{ID: 7, Kind: model.KindProduct})
	lines = s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "Cheese (aged)", lines[0].Item.ItemName())
}

func TestRemoveItem_MissingIsNoop(t *testing.T) {
	s := newGuestStore(t)
	require.NoError(t, s.AddItem(productA, 1))

	s.RemoveItem(model.ItemRef{ID: 42, Kind: model.KindProduct})
	s.RemoveItem(model.ItemRef{ID: productA.ID, Kind: model.KindHamper})

	assert.Len(t, s.Lines(), 1)
	assert.Empty(t, s.Removed())
}

func TestReAddClearsTombstone(t *testing.T) {
	s := newGuestStore(t)
	require.NoError(t, s.AddItem(productA, 1))

	s.RemoveItem(model.RefOf(productA))
	require.True(t, s.IsRemoved(model.KindProduct, productA.ID))

	require.NoError(t, s.AddItem(productA, 1))
	assert.False(t, s.IsRemoved(model.KindProduct, productA.ID))
}

func TestReset_Completeness(t *testing.T) {
	remote := &fakeRemote{}
	s := newSyncedStore(t, remote, "u1")

	require.NoError(t, s.AddItem(productA, 2))
	s.RemoveItem(model.RefOf(productA))
	require.NoError(t, s.AddItem(productB, 1))
	gen := s.Generation()

	s.Reset(context.Background())

	assert.Empty(t, s.Lines())
	assert.Equal(t, 0.0, s.Total())
	assert.Empty(t, s.Removed())
	_, ok := s.Owner()
	assert.False(t, ok)
	assert.False(t, s.Syncing())
	assert.Equal(t, gen+1, s.Generation())

	puts := remote.putCount()
	require.NoError(t, s.AddItem(productB, 2))
	assert.Equal(t, 5.0, s.Total())
	s.Flush(context.Background())
	assert.Equal(t, puts, remote.putCount(), "guest cart must not be pushed")
}

func TestClearCart(t *testing.T) {
	remote := &fakeRemote{}
	st := storage.NewMemoryStorage()
	s := NewStore(st, remote, nil, Options{StorageKey: "k"})
	t.Cleanup(s.Close)
	s.ApplyIdentity(context.Background(), Identity{Authenticated: true, UserID: "u1", Token: "t"})

	require.NoError(t, s.AddItem(productA, 1))
	require.NoError(t, s.AddItem(hamper1, 1))
	gen := s.Generation()

	s.ClearCart(context.Background())

	assert.Empty(t, s.Lines())
	assert.Equal(t, 0.0, s.Total())
	assert.True(t, s.IsRemoved(model.KindProduct, productA.ID))
	assert.True(t, s.IsRemoved(model.KindHamper, hamper1.ID))
	assert.Equal(t, gen+1, s.Generation())

	owner, ok := s.Owner()
	assert.True(t, ok)
	assert.Equal(t, "u1", owner)

	_, err := st.Get(context.Background(), "k")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	s.Close()
	assert.Equal(t, 1, remote.clearCount())
}

func TestClearCart_GuestSkipsRemote(t *testing.T) {
	remote := &fakeRemote{}
	s := NewStore(nil, remote, nil, Options{})
	require.NoError(t, s.AddItem(productA, 1))

	s.ClearCart(context.Background())
	s.Close()

	assert.Equal(t, 0, remote.clearCount())
}

func TestPersistAndHydrate(t *testing.T) {
	st := storage.NewMemoryStorage()

	first := NewStore(st, nil, nil, Options{})
	require.NoError(t, first.AddItem(productA, 2))
	require.NoError(t, first.AddItem(hamper1, 1))
	first.RemoveItem(model.RefOf(productB))
	require.NoError(t, first.AddItem(productB, 1))
	first.RemoveItem(model.RefOf(productB))
	first.Close()

	second := NewStore(st, nil, nil, Options{})
	t.Cleanup(second.Close)
	second.Hydrate(context.Background())

	lines := second.Lines()
	require.Len(t, lines, 2)
	_, isHamper := lines[1].Item.(model.Hamper)
	assert.True(t, isHamper)
	assert.Equal(t, 60.0, second.Total())
	assert.True(t, second.IsRemoved(model.KindProduct, productB.ID))
	assert.Equal(t, first.Generation(), second.Generation())
}

func TestHydrate_RecomputesTotal(t *testing.T) {
	st := storage.NewMemoryStorage()

	lines := []model.LineItem{{Item: productA, Quantity: 3}}
	data, err := json.Marshal(snapshot{Version: snapshotVersion, Lines: lines, Total: 999})
	require.NoError(t, err)
	require.NoError(t, st.Set(context.Background(), defaultStorageKey, data))

	s := NewStore(st, nil, nil, Options{})
	t.Cleanup(s.Close)
	s.Hydrate(context.Background())

	assert.Equal(t, 30.0, s.Total())
}

func TestHydrate_DiscardsIncompatibleSnapshot(t *testing.T) {
	st := storage.NewMemoryStorage()
	ctx := context.Background()

	data, err := json.Marshal(snapshot{Version: snapshotVersion + 1, Lines: []model.LineItem{{Item: productA, Quantity: 1}}})
	require.NoError(t, err)
	require.NoError(t, st.Set(ctx, defaultStorageKey, data))

	s := NewStore(st, nil, nil, Options{})
	t.Cleanup(s.Close)
	s.Hydrate(ctx)
	assert.Empty(t, s.Lines())

	require.NoError(t, st.Set(ctx, defaultStorageKey, []byte("{broken")))
	s.Hydrate(ctx)
	assert.Empty(t, s.Lines())
}

func TestHydrate_DiscardsOlderGeneration(t *testing.T) {
	st := storage.NewMemoryStorage()

	data, err := json.Marshal(snapshot{Version: snapshotVersion, Generation: 0, Lines: []model.LineItem{{Item: productA, Quantity: 1}}})
	require.NoError(t, err)
	require.NoError(t, st.Set(context.Background(), defaultStorageKey, data))

	s := NewStore(storage.NewMemoryStorage(), nil, nil, Options{})
	t.Cleanup(s.Close)
	s.Reset(context.Background())
	s.storage = st

	s.Hydrate(context.Background())
	assert.Empty(t, s.Lines())
}

func TestStorageFailureIsNotFatal(t *testing.T) {
	s := NewStore(failingStorage{}, nil, nil, Options{})
	t.Cleanup(s.Close)

	s.Hydrate(context.Background())
	require.NoError(t, s.AddItem(productA, 1))
	s.RemoveItem(model.RefOf(productA))
	require.NoError(t, s.AddItem(productB, 2))
	s.ClearCart(context.Background())
	require.NoError(t, s.AddItem(productB, 1))

	assert.Equal(t, 2.5, s.Total())
}

// applyOp выполняет операцию над корзиной, закодированную одним целым числом.
func applyOp(s *Store, op int) {
	items := []model.CatalogItem{productA, productB, hamper1, model.Hamper{ID: 2, Name: "Bread Box", Price: 12.75, StockQuantity: 4}}
	item := items[(op/3)%len(items)]
	qty := (op / 12) % 5

	switch op % 3 {
	case 0:
		_ = s.AddItem(item, qty)
	case 1:
		s.RemoveItem(model.RefOf(item))
	case 2:
		_ = s.UpdateQuantity(model.RefOf(item), qty)
	}
}

func TestTotalMatchesLines(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("total equals sum of price × quantity", prop.ForAll(
		func(ops []int) bool {
			s := NewStore(nil, nil, nil, Options{})
			defer s.Close()

			for _, op := range ops {
				applyOp(s, op)
				lines := s.Lines()
				var want float64
				for _, l := range lines {
					want += l.Item.ItemPrice() * float64(l.Quantity)
					if l.Quantity < 1 || exceedsStock(l.Item, l.Quantity) {
						return false
					}
				}
				if s.Total() != want {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 1000)),
	))

	properties.TestingRun(t)
}
