package assets

import (
	"errors"
	"strings"
	"testing"

	"cardmarket/native/delegation"
)

type holdingKey struct {
	owner [20]byte
	asset [32]byte
}

type mockState struct {
	collections map[[32]byte]*Collection
	assets      map[[32]byte]*Asset
	holdings    map[holdingKey]*delegation.Holding
}

func newMockState() *mockState {
	return &mockState{
		collections: make(map[[32]byte]*Collection),
		assets:      make(map[[32]byte]*Asset),
		holdings:    make(map[holdingKey]*delegation.Holding),
	}
}

func (m *mockState) CollectionGet(id [32]byte) (*Collection, bool, error) {
	c, ok := m.collections[id]
	return c.Clone(), ok, nil
}

func (m *mockState) CollectionPut(c *Collection) error {
	m.collections[c.ID] = c.Clone()
	return nil
}

func (m *mockState) AssetGet(id [32]byte) (*Asset, bool, error) {
	a, ok := m.assets[id]
	return a.Clone(), ok, nil
}

func (m *mockState) AssetPut(a *Asset) error {
	m.assets[a.ID] = a.Clone()
	return nil
}

func (m *mockState) HoldingGet(owner [20]byte, asset [32]byte) (*delegation.Holding, error) {
	return m.holdings[holdingKey{owner, asset}].Clone(), nil
}

func (m *mockState) HoldingPut(owner [20]byte, asset [32]byte, h *delegation.Holding) error {
	m.holdings[holdingKey{owner, asset}] = h.Clone()
	return nil
}

var (
	authority = [20]byte{0xa0}
	player    = [20]byte{0x01}
	friend    = [20]byte{0x02}
)

func newTestEngine() (*Engine, *delegation.Authority) {
	st := newMockState()
	holdings := delegation.NewAuthority(st)
	engine := NewEngine(authority)
	engine.SetState(st)
	engine.SetHoldings(holdings)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	return engine, holdings
}

func TestMintCreditsSingleUnit(t *testing.T) {
	engine, holdings := newTestEngine()
	col, err := engine.CreateCollection(authority, Metadata{Name: "Meme Cards", Symbol: "MEME", URI: "ipfs://cards"})
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}
	stats := Stats{Attack: 100, Defense: 0, Element: ElementCursed, Rarity: RarityGodTier}
	asset, err := engine.Mint(authority, col.ID, player, Metadata{Name: "Doge", Symbol: "DOGE", URI: "ipfs://doge"}, stats)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if asset.Supply != 1 || asset.Serial != 0 || asset.ID != AssetID(col.ID, 0) {
		t.Fatalf("unexpected asset %+v", asset)
	}
	h, _ := holdings.Holding(player, asset.ID)
	if h.Amount != 1 {
		t.Fatalf("recipient should hold one unit, got %d", h.Amount)
	}
	second, err := engine.Mint(authority, col.ID, player, Metadata{Name: "Pepe"}, Stats{})
	if err != nil {
		t.Fatalf("second mint: %v", err)
	}
	if second.ID == asset.ID {
		t.Fatalf("asset ids must be unique")
	}
	stored, _, _ := engine.Collection(col.ID)
	if stored.Size != 2 {
		t.Fatalf("collection size %d", stored.Size)
	}
}

func TestIssuanceRequiresAuthority(t *testing.T) {
	engine, _ := newTestEngine()
	if _, err := engine.CreateCollection(player, Metadata{Name: "Rogue"}); !errors.Is(err, ErrInvalidCollectionAuthority) {
		t.Fatalf("expected authority error, got %v", err)
	}
	col, err := engine.CreateCollection(authority, Metadata{Name: "Official"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := engine.CreateCollection(authority, Metadata{Name: " Official "}); !errors.Is(err, ErrCollectionExists) {
		t.Fatalf("expected duplicate collection, got %v", err)
	}
	if _, err := engine.Mint(player, col.ID, player, Metadata{Name: "x"}, Stats{}); !errors.Is(err, ErrInvalidCollectionAuthority) {
		t.Fatalf("expected authority error, got %v", err)
	}
	if _, err := engine.Mint(authority, [32]byte{9}, player, Metadata{Name: "x"}, Stats{}); !errors.Is(err, ErrCollectionNotFound) {
		t.Fatalf("expected missing collection, got %v", err)
	}
}

func TestMetadataLimits(t *testing.T) {
	cases := []struct {
		meta Metadata
		want error
	}{
		{Metadata{Name: strings.Repeat("a", MaxNameLength+1)}, ErrNameTooLong},
		{Metadata{Name: "ok", Symbol: strings.Repeat("S", MaxSymbolLength+1)}, ErrSymbolTooLong},
		{Metadata{Name: "ok", URI: strings.Repeat("u", MaxURILength+1)}, ErrURITooLong},
		{Metadata{Name: "   "}, ErrEmptyName},
	}
	for _, tc := range cases {
		if _, err := NormalizeMetadata(tc.meta); !errors.Is(err, tc.want) {
			t.Fatalf("metadata %+v: expected %v, got %v", tc.meta, tc.want, err)
		}
	}
	// "e" followed by a combining acute accent composes to a single rune.
	got, err := NormalizeMetadata(Metadata{Name: "Cafe\u0301"})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got.Name != "Caf\u00e9" {
		t.Fatalf("expected NFC composition, got %q", got.Name)
	}
}

func TestStatsValidation(t *testing.T) {
	if err := (Stats{Attack: 101}).Validate(); !errors.Is(err, ErrInvalidStats) {
		t.Fatalf("attack above max accepted")
	}
	if err := (Stats{Defense: 101}).Validate(); !errors.Is(err, ErrInvalidStats) {
		t.Fatalf("defense above max accepted")
	}
	if err := (Stats{Element: Element(4)}).Validate(); !errors.Is(err, ErrInvalidStats) {
		t.Fatalf("unknown element accepted")
	}
	if r, err := ParseRarity("God_Tier"); err != nil || r != RarityGodTier {
		t.Fatalf("parse rarity: %v %v", r, err)
	}
	if e, err := ParseElement("DANK"); err != nil || e != ElementDank {
		t.Fatalf("parse element: %v %v", e, err)
	}
	if _, err := ParseElement("fire"); !errors.Is(err, ErrInvalidStats) {
		t.Fatalf("unknown element parsed")
	}
}

func TestTransferMovesHolding(t *testing.T) {
	engine, holdings := newTestEngine()
	col, _ := engine.CreateCollection(authority, Metadata{Name: "Set"})
	asset, err := engine.Mint(authority, col.ID, player, Metadata{Name: "Card"}, Stats{})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := engine.Transfer(friend, player, asset.ID); !errors.Is(err, delegation.ErrInsufficientHolding) {
		t.Fatalf("expected insufficient holding, got %v", err)
	}
	if err := engine.Transfer(player, friend, asset.ID); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	h, _ := holdings.Holding(friend, asset.ID)
	if h.Amount != 1 {
		t.Fatalf("friend should hold the asset")
	}
	if err := engine.Transfer(player, friend, [32]byte{7}); !errors.Is(err, ErrAssetNotFound) {
		t.Fatalf("expected missing asset, got %v", err)
	}
}
