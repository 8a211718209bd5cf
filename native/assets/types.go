package assets

import (
	"fmt"
	"strings"
)

// Element is the affinity of a card.
type Element uint8

const (
	ElementWholesome Element = iota
	ElementToxic
	ElementDank
	ElementCursed
)

var elementNames = []string{"wholesome", "toxic", "dank", "cursed"}

func (e Element) String() string {
	if int(e) < len(elementNames) {
		return elementNames[e]
	}
	return fmt.Sprintf("element(%d)", uint8(e))
}

// ParseElement accepts the case-insensitive element name.
func ParseElement(s string) (Element, error) {
	for i, name := range elementNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return Element(i), nil
		}
	}
	return 0, ErrInvalidStats
}

// Rarity is the scarcity tier of a card.
type Rarity uint8

const (
	RarityCommon Rarity = iota
	RarityRare
	RarityEpic
	RarityLegendary
	RarityMythic
	RarityGodTier
)

var rarityNames = []string{"common", "rare", "epic", "legendary", "mythic", "godtier"}

func (r Rarity) String() string {
	if int(r) < len(rarityNames) {
		return rarityNames[r]
	}
	return fmt.Sprintf("rarity(%d)", uint8(r))
}

// ParseRarity accepts the case-insensitive rarity name. "god_tier" and
// "god-tier" are accepted as well.
func ParseRarity(s string) (Rarity, error) {
	normalized := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.TrimSpace(s))
	for i, name := range rarityNames {
		if strings.EqualFold(normalized, name) {
			return Rarity(i), nil
		}
	}
	return 0, ErrInvalidStats
}

// MaxStat bounds attack and defense.
const MaxStat = 100

// Stats are the gameplay attributes attached to a card at mint time.
type Stats struct {
	Attack  uint8
	Defense uint8
	Element Element
	Rarity  Rarity
}

func (s Stats) Validate() error {
	if s.Attack > MaxStat || s.Defense > MaxStat {
		return ErrInvalidStats
	}
	if int(s.Element) >= len(elementNames) || int(s.Rarity) >= len(rarityNames) {
		return ErrInvalidStats
	}
	return nil
}

// Metadata limits, in bytes after normalisation.
const (
	MaxNameLength   = 32
	MaxSymbolLength = 10
	MaxURILength    = 200
)

// Metadata describes a collection or an asset.
type Metadata struct {
	Name   string
	Symbol string
	URI    string
}

// Collection groups assets minted under one authority.
type Collection struct {
	ID        [32]byte
	Authority [20]byte
	Metadata  Metadata
	Size      uint64
}

func (c *Collection) Clone() *Collection {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// Asset is a uniquely held item. Supply is always one.
type Asset struct {
	ID         [32]byte
	Collection [32]byte
	Serial     uint64
	Metadata   Metadata
	Stats      Stats
	Supply     uint64
	MintedAt   uint64
}

func (a *Asset) Clone() *Asset {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}
