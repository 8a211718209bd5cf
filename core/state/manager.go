package state

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"cardmarket/core/types"
	"cardmarket/native/assets"
	"cardmarket/native/delegation"
	"cardmarket/native/market"
	"cardmarket/storage/trie"
)

// Manager reads and writes ledger records in the state trie. It satisfies the
// state interfaces of the bank, delegation, asset and market modules.
type Manager struct {
	trie *trie.Trie
}

// NewManager creates a state manager operating on the provided trie.
func NewManager(tr *trie.Trie) *Manager {
	return &Manager{trie: tr}
}

func (m *Manager) put(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.trie.Update(key, encoded)
}

// get decodes the value stored under key into out. The boolean reports
// whether the key existed.
func (m *Manager) get(key []byte, out interface{}) (bool, error) {
	data, err := m.trie.Get(key)
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// GetAccount returns the account at addr. Unknown accounts are empty.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	if len(addr) != 20 {
		return nil, fmt.Errorf("state: account address must be 20 bytes")
	}
	account := new(types.Account)
	if _, err := m.get(accountKey(addr), account); err != nil {
		return nil, fmt.Errorf("state: decode account: %w", err)
	}
	if account.Balance == nil {
		account.Balance = big.NewInt(0)
	}
	return account, nil
}

func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if len(addr) != 20 {
		return fmt.Errorf("state: account address must be 20 bytes")
	}
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	if account.Balance != nil && account.Balance.Sign() < 0 {
		return fmt.Errorf("state: negative balance")
	}
	return m.put(accountKey(addr), account)
}

func (m *Manager) HoldingGet(owner [20]byte, asset [32]byte) (*delegation.Holding, error) {
	holding := new(delegation.Holding)
	ok, err := m.get(holdingKey(owner, asset), holding)
	if err != nil {
		return nil, fmt.Errorf("state: decode holding: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return holding, nil
}

// HoldingPut stores the holding, removing the slot once it is empty.
func (m *Manager) HoldingPut(owner [20]byte, asset [32]byte, holding *delegation.Holding) error {
	key := holdingKey(owner, asset)
	if holding.Empty() {
		return m.trie.Delete(key)
	}
	return m.put(key, holding)
}

// ListingGet loads the listing stored at its derived address.
func (m *Manager) ListingGet(addr [20]byte) (*market.Listing, bool, error) {
	data, err := m.trie.Get(listingKey(addr))
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	listing, err := market.DecodeListing(data)
	if err != nil {
		return nil, false, err
	}
	return listing, true, nil
}

func (m *Manager) ListingPut(addr [20]byte, listing *market.Listing) error {
	if market.ListingAddress(listing.Asset) != addr {
		return fmt.Errorf("state: listing stored at foreign address")
	}
	encoded, err := market.EncodeListing(listing)
	if err != nil {
		return err
	}
	return m.trie.Update(listingKey(addr), encoded)
}

func (m *Manager) CollectionGet(id [32]byte) (*assets.Collection, bool, error) {
	col := new(assets.Collection)
	ok, err := m.get(collectionKey(id), col)
	if err != nil || !ok {
		return nil, false, err
	}
	return col, true, nil
}

func (m *Manager) CollectionPut(col *assets.Collection) error {
	return m.put(collectionKey(col.ID), col)
}

func (m *Manager) AssetGet(id [32]byte) (*assets.Asset, bool, error) {
	asset := new(assets.Asset)
	ok, err := m.get(assetKey(id), asset)
	if err != nil || !ok {
		return nil, false, err
	}
	return asset, true, nil
}

func (m *Manager) AssetPut(asset *assets.Asset) error {
	return m.put(assetKey(asset.ID), asset)
}
