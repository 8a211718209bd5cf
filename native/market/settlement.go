package market

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Royalty is RoyaltyNumerator/RoyaltyDenominator of the sale price, rounded
// down.
const (
	RoyaltyNumerator   = 3
	RoyaltyDenominator = 100
)

// Settlement is the split of a sale price.
type Settlement struct {
	Price        uint64
	Royalty      uint64
	SellerAmount uint64
}

// Quote splits price into the royalty and the seller's share. The product
// price*RoyaltyNumerator must fit in 64 bits.
func Quote(price uint64) (Settlement, error) {
	p := uint256.NewInt(price)
	scaled, overflow := new(uint256.Int).MulOverflow(p, uint256.NewInt(RoyaltyNumerator))
	if overflow || !scaled.IsUint64() {
		return Settlement{}, ErrArithmeticOverflow
	}
	royalty := new(uint256.Int).Div(scaled, uint256.NewInt(RoyaltyDenominator))
	sellerAmount, underflow := new(uint256.Int).SubOverflow(p, royalty)
	if underflow {
		return Settlement{}, ErrArithmeticOverflow
	}
	return Settlement{Price: price, Royalty: royalty.Uint64(), SellerAmount: sellerAmount.Uint64()}, nil
}

// Purchase settles an active listing. The buyer pays the royalty to the
// authority and the remainder to the seller, the listing's grant moves the
// asset from seller to buyer, and the buyer becomes the listing's seller so
// they can relist it. Any failure leaves the caller's transaction to roll
// back every effect.
func (e *Engine) Purchase(buyer [20]byte, asset [32]byte) (Settlement, error) {
	if err := e.ready(); err != nil {
		return Settlement{}, err
	}
	if e.authority == ([20]byte{}) {
		return Settlement{}, errNilAuthority
	}
	listing, addr, err := e.loadActive(asset)
	if err != nil {
		return Settlement{}, err
	}
	balance, err := e.bank.SpendableBalance(buyer)
	if err != nil {
		return Settlement{}, err
	}
	if balance.Lt(uint256.NewInt(listing.Price)) {
		return Settlement{}, ErrInsufficientFunds
	}
	split, err := Quote(listing.Price)
	if err != nil {
		return Settlement{}, err
	}
	if err := ensureHistoryRoom(listing, closingSlots); err != nil {
		return Settlement{}, err
	}
	if split.Royalty > 0 {
		if err := e.bank.Transfer(buyer, e.authority, uint256.NewInt(split.Royalty)); err != nil {
			return Settlement{}, fmt.Errorf("purchase: royalty: %w", err)
		}
	}
	if err := e.bank.Transfer(buyer, listing.Seller, uint256.NewInt(split.SellerAmount)); err != nil {
		return Settlement{}, fmt.Errorf("purchase: seller payment: %w", err)
	}
	if err := e.delegation.ExecuteTransfer(ListingSeeds(asset), listing.Seller, buyer, asset, 1); err != nil {
		return Settlement{}, fmt.Errorf("purchase: asset transfer: %w", err)
	}
	previousSeller := listing.Seller
	listing.Status = StatusInactive
	listing.Seller = buyer
	if err := appendHistory(listing, ActionPurchase, listing.Price, e.nowFn()); err != nil {
		return Settlement{}, err
	}
	if err := e.state.ListingPut(addr, listing); err != nil {
		return Settlement{}, err
	}
	e.emit(NewPurchasedEvent(listing, previousSeller, e.authority, split))
	return split, nil
}
