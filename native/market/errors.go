package market

import (
	"errors"

	"cardmarket/native/common"
)

var (
	ErrInvalidPrice         = common.NewError(common.KindValidation, "invalid_price", "market: price must be greater than zero")
	ErrInvalidAsset         = common.NewError(common.KindValidation, "invalid_asset", "market: asset identifier required")
	ErrInvalidOwnership     = common.NewError(common.KindAuthorization, "invalid_ownership", "market: seller must hold exactly one unit of the asset")
	ErrNotOwner             = common.NewError(common.KindAuthorization, "not_owner", "market: caller is not the listing seller")
	ErrDelegationMismatch   = common.NewError(common.KindAuthorization, "delegation_mismatch", "market: asset is not delegated to the listing")
	ErrListingAlreadyActive = common.NewError(common.KindState, "listing_already_active", "market: listing already active")
	ErrListingNotActive     = common.NewError(common.KindState, "listing_not_active", "market: listing not active")
	ErrHistoryFull          = common.NewError(common.KindState, "history_full", "market: trade history capacity reached")
	ErrArithmeticOverflow   = common.NewError(common.KindArithmetic, "overflow", "market: arithmetic overflow")
	ErrInsufficientFunds    = common.NewError(common.KindInsufficiency, "insufficient_funds", "market: insufficient funds")

	errNilState      = errors.New("market engine: state not configured")
	errNilDelegation = errors.New("market engine: delegation authority not configured")
	errNilBank       = errors.New("market engine: value transfer not configured")
	errNilAuthority  = errors.New("market engine: royalty authority not configured")
)
