package market

import "cardmarket/native/delegation"

var listingSeedPrefix = []byte("listing")

// ListingSeeds returns the seeds the listing address of asset is derived
// from. Presenting them proves the right to act as the listing.
func ListingSeeds(asset [32]byte) delegation.Seeds {
	key := asset
	return delegation.Seeds{listingSeedPrefix, key[:]}
}

// ListingAddress is the deterministic storage key and delegate address of
// the listing for asset.
func ListingAddress(asset [32]byte) [20]byte {
	return ListingSeeds(asset).Address()
}
