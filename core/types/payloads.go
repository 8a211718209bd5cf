package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type TransferPayload struct {
	To     common.Address `json:"to"`
	Amount *big.Int       `json:"amount"`
}

type AssetTransferPayload struct {
	Asset common.Hash    `json:"asset"`
	To    common.Address `json:"to"`
}

type CreateCollectionPayload struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	URI    string `json:"uri"`
}

// AssetStats describes the gameplay attributes of a card.
type AssetStats struct {
	Attack  uint8  `json:"attack"`
	Defense uint8  `json:"defense"`
	Element string `json:"element"`
	Rarity  string `json:"rarity"`
}

type MintAssetPayload struct {
	Collection common.Hash    `json:"collection"`
	Recipient  common.Address `json:"recipient"`
	Name       string         `json:"name"`
	Symbol     string         `json:"symbol"`
	URI        string         `json:"uri"`
	Stats      AssetStats     `json:"stats"`
}

type ListPayload struct {
	Asset common.Hash `json:"asset"`
	Price uint64      `json:"price"`
}

type UpdatePricePayload struct {
	Asset common.Hash `json:"asset"`
	Price uint64      `json:"price"`
}

type CancelPayload struct {
	Asset common.Hash `json:"asset"`
}

type PurchasePayload struct {
	Asset common.Hash `json:"asset"`
}
