package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"cardmarket/core/types"
	"cardmarket/native/assets"
	"cardmarket/native/delegation"
	"cardmarket/native/market"
	"cardmarket/storage"
	"cardmarket/storage/trie"
)

func newTestManager(t *testing.T) (*Manager, *trie.Trie) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(func() { db.Close() })
	tr, err := trie.NewTrie(db, nil)
	require.NoError(t, err)
	return NewManager(tr), tr
}

func TestAccountDefaultsAndPersistence(t *testing.T) {
	m, _ := newTestManager(t)
	addr := make([]byte, 20)
	addr[0] = 1

	acc, err := m.GetAccount(addr)
	require.NoError(t, err)
	require.Zero(t, acc.Nonce)
	require.Zero(t, acc.Balance.Sign())

	require.NoError(t, m.PutAccount(addr, &types.Account{Nonce: 3, Balance: big.NewInt(1234)}))
	acc, err = m.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(3), acc.Nonce)
	require.Equal(t, int64(1234), acc.Balance.Int64())

	require.Error(t, m.PutAccount(addr, &types.Account{Balance: big.NewInt(-1)}))
	_, err = m.GetAccount([]byte{1})
	require.Error(t, err)
}

func TestHoldingRemovedWhenEmpty(t *testing.T) {
	m, tr := newTestManager(t)
	owner, asset := [20]byte{1}, [32]byte{2}
	empty := tr.Hash()

	require.NoError(t, m.HoldingPut(owner, asset, &delegation.Holding{Amount: 1, Delegate: [20]byte{9}, DelegatedAmount: 1}))
	got, err := m.HoldingGet(owner, asset)
	require.NoError(t, err)
	require.Equal(t, &delegation.Holding{Amount: 1, Delegate: [20]byte{9}, DelegatedAmount: 1}, got)

	require.NoError(t, m.HoldingPut(owner, asset, &delegation.Holding{}))
	got, err = m.HoldingGet(owner, asset)
	require.NoError(t, err)
	require.Nil(t, got)
	require.Equal(t, empty, tr.Hash())
}

func TestListingStoredAtDerivedAddress(t *testing.T) {
	m, _ := newTestManager(t)
	asset := [32]byte{0xaa}
	addr := market.ListingAddress(asset)

	_, ok, err := m.ListingGet(addr)
	require.NoError(t, err)
	require.False(t, ok)

	listing := &market.Listing{
		Status:    market.StatusActive,
		Seller:    [20]byte{1},
		Asset:     asset,
		Price:     1000,
		CreatedAt: 55,
		History:   []market.TradeEvent{{Price: 1000, Timestamp: 55, Action: market.ActionList}},
	}
	require.NoError(t, m.ListingPut(addr, listing))
	got, ok, err := m.ListingGet(addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, listing, got)

	require.Error(t, m.ListingPut([20]byte{7}, listing))
}

func TestAssetRecordsRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)
	col := &assets.Collection{ID: [32]byte{1}, Authority: [20]byte{2}, Metadata: assets.Metadata{Name: "Set", Symbol: "SET"}, Size: 4}
	require.NoError(t, m.CollectionPut(col))
	gotCol, ok, err := m.CollectionGet(col.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, col, gotCol)

	asset := &assets.Asset{ID: [32]byte{3}, Collection: col.ID, Serial: 3, Supply: 1, MintedAt: 99,
		Metadata: assets.Metadata{Name: "Card"}, Stats: assets.Stats{Attack: 50, Rarity: assets.RarityMythic}}
	require.NoError(t, m.AssetPut(asset))
	gotAsset, ok, err := m.AssetGet(asset.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, asset, gotAsset)

	_, ok, err = m.AssetGet([32]byte{4})
	require.NoError(t, err)
	require.False(t, ok)
}
