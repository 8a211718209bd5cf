package state

import ethcrypto "github.com/ethereum/go-ethereum/crypto"

var (
	accountPrefix    = []byte("account:")
	holdingPrefix    = []byte("holding:")
	listingPrefix    = []byte("listing:")
	collectionPrefix = []byte("collection:")
	assetPrefix      = []byte("asset:")
)

func prefixedKey(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, part := range parts {
		size += len(part)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for _, part := range parts {
		buf = append(buf, part...)
	}
	return ethcrypto.Keccak256(buf)
}

func accountKey(addr []byte) []byte { return prefixedKey(accountPrefix, addr) }

func holdingKey(owner [20]byte, asset [32]byte) []byte {
	return prefixedKey(holdingPrefix, owner[:], asset[:])
}

// listingKey maps the derived listing address to its trie slot.
func listingKey(addr [20]byte) []byte { return prefixedKey(listingPrefix, addr[:]) }

func collectionKey(id [32]byte) []byte { return prefixedKey(collectionPrefix, id[:]) }

func assetKey(id [32]byte) []byte { return prefixedKey(assetPrefix, id[:]) }
