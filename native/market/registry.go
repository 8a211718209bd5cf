package market

import "fmt"

// List opens, or reopens, the listing for asset at price. The seller must
// hold exactly one unit and the listing must not already be active. The
// listing address receives a grant over that unit; custody stays with the
// seller.
func (e *Engine) List(seller [20]byte, asset [32]byte, price uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if asset == ([32]byte{}) {
		return ErrInvalidAsset
	}
	if price == 0 {
		return ErrInvalidPrice
	}
	holding, err := e.delegation.Holding(seller, asset)
	if err != nil {
		return err
	}
	if holding.Amount != 1 {
		return ErrInvalidOwnership
	}
	addr := ListingAddress(asset)
	listing, ok, err := e.state.ListingGet(addr)
	if err != nil {
		return err
	}
	if ok && listing.Active() {
		return ErrListingAlreadyActive
	}
	if !ok {
		listing = &Listing{Asset: asset}
	}
	if err := ensureHistoryRoom(listing, openingSlots); err != nil {
		return err
	}
	if err := e.delegation.Grant(seller, asset, addr, 1); err != nil {
		return fmt.Errorf("list: %w", err)
	}
	now := e.nowFn()
	listing.Status = StatusActive
	listing.Seller = seller
	listing.Asset = asset
	listing.Price = price
	listing.CreatedAt = now
	if err := appendHistory(listing, ActionList, price, now); err != nil {
		return err
	}
	if err := e.state.ListingPut(addr, listing); err != nil {
		return err
	}
	e.emit(NewListedEvent(listing))
	return nil
}

// UpdatePrice reprices an active listing. The outstanding grant is revoked
// and issued again so two grants are never live at once.
func (e *Engine) UpdatePrice(seller [20]byte, asset [32]byte, price uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if price == 0 {
		return ErrInvalidPrice
	}
	listing, addr, err := e.loadActive(asset)
	if err != nil {
		return err
	}
	if err := e.requireSeller(listing, addr, seller); err != nil {
		return err
	}
	if err := ensureHistoryRoom(listing, openingSlots); err != nil {
		return err
	}
	if err := e.delegation.Revoke(seller, asset); err != nil {
		return fmt.Errorf("update price: %w", err)
	}
	if err := e.delegation.Grant(seller, asset, addr, 1); err != nil {
		return fmt.Errorf("update price: %w", err)
	}
	listing.Price = price
	if err := appendHistory(listing, ActionUpdatePrice, price, e.nowFn()); err != nil {
		return err
	}
	if err := e.state.ListingPut(addr, listing); err != nil {
		return err
	}
	e.emit(NewPriceUpdatedEvent(listing))
	return nil
}

// Cancel withdraws an active listing and revokes its grant. The cancel
// event keeps the last asking price.
func (e *Engine) Cancel(seller [20]byte, asset [32]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	listing, addr, err := e.loadActive(asset)
	if err != nil {
		return err
	}
	if err := e.requireSeller(listing, addr, seller); err != nil {
		return err
	}
	if err := ensureHistoryRoom(listing, closingSlots); err != nil {
		return err
	}
	if err := e.delegation.Revoke(seller, asset); err != nil {
		return fmt.Errorf("cancel: %w", err)
	}
	listing.Status = StatusInactive
	if err := appendHistory(listing, ActionCancel, listing.Price, e.nowFn()); err != nil {
		return err
	}
	if err := e.state.ListingPut(addr, listing); err != nil {
		return err
	}
	e.emit(NewCancelledEvent(listing))
	return nil
}
