package core

import (
	"fmt"

	"github.com/holiman/uint256"

	"cardmarket/core/types"
	"cardmarket/native/assets"
	"cardmarket/native/market"
)

func (l *Ledger) dispatch(from [20]byte, tx *types.Transaction) (*market.Settlement, error) {
	switch tx.Type {
	case types.TxTypeTransfer:
		var p types.TransferPayload
		if err := decodePayload(tx, &p); err != nil {
			return nil, err
		}
		if p.Amount == nil || p.Amount.Sign() <= 0 {
			return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidPayload)
		}
		amount, overflow := uint256.FromBig(p.Amount)
		if overflow {
			return nil, fmt.Errorf("%w: amount out of range", ErrInvalidPayload)
		}
		return nil, l.bank.Transfer(from, p.To, amount)

	case types.TxTypeAssetTransfer:
		var p types.AssetTransferPayload
		if err := decodePayload(tx, &p); err != nil {
			return nil, err
		}
		return nil, l.assets.Transfer(from, p.To, p.Asset)

	case types.TxTypeCreateCollection:
		var p types.CreateCollectionPayload
		if err := decodePayload(tx, &p); err != nil {
			return nil, err
		}
		_, err := l.assets.CreateCollection(from, assets.Metadata{Name: p.Name, Symbol: p.Symbol, URI: p.URI})
		return nil, err

	case types.TxTypeMintAsset:
		var p types.MintAssetPayload
		if err := decodePayload(tx, &p); err != nil {
			return nil, err
		}
		stats, err := parseStats(p.Stats)
		if err != nil {
			return nil, err
		}
		_, err = l.assets.Mint(from, p.Collection, p.Recipient, assets.Metadata{Name: p.Name, Symbol: p.Symbol, URI: p.URI}, stats)
		return nil, err

	case types.TxTypeList:
		var p types.ListPayload
		if err := decodePayload(tx, &p); err != nil {
			return nil, err
		}
		return nil, l.market.List(from, p.Asset, p.Price)

	case types.TxTypeUpdatePrice:
		var p types.UpdatePricePayload
		if err := decodePayload(tx, &p); err != nil {
			return nil, err
		}
		return nil, l.market.UpdatePrice(from, p.Asset, p.Price)

	case types.TxTypeCancel:
		var p types.CancelPayload
		if err := decodePayload(tx, &p); err != nil {
			return nil, err
		}
		return nil, l.market.Cancel(from, p.Asset)

	case types.TxTypePurchase:
		var p types.PurchasePayload
		if err := decodePayload(tx, &p); err != nil {
			return nil, err
		}
		split, err := l.market.Purchase(from, p.Asset)
		if err != nil {
			return nil, err
		}
		return &split, nil
	}
	return nil, ErrUnknownTxType
}

func decodePayload(tx *types.Transaction, out interface{}) error {
	if err := tx.DecodeData(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func parseStats(in types.AssetStats) (assets.Stats, error) {
	element, err := assets.ParseElement(in.Element)
	if err != nil {
		return assets.Stats{}, err
	}
	rarity, err := assets.ParseRarity(in.Rarity)
	if err != nil {
		return assets.Stats{}, err
	}
	return assets.Stats{Attack: in.Attack, Defense: in.Defense, Element: element, Rarity: rarity}, nil
}
