package delegation

import ethcrypto "github.com/ethereum/go-ethereum/crypto"

// Holding is the quantity of one asset held by one owner together with the
// single transfer grant that may be outstanding against it.
type Holding struct {
	Amount          uint64
	Delegate        [20]byte
	DelegatedAmount uint64
}

// HasGrant reports whether a live grant exists.
func (h *Holding) HasGrant() bool {
	return h != nil && h.DelegatedAmount > 0 && h.Delegate != ([20]byte{})
}

// Clone returns a copy of the holding.
func (h *Holding) Clone() *Holding {
	if h == nil {
		return nil
	}
	clone := *h
	return &clone
}

// Empty reports whether the holding carries no units and no grant.
func (h *Holding) Empty() bool {
	return h == nil || (h.Amount == 0 && !h.HasGrant())
}

// Seeds are the inputs a program-owned address is derived from. Presenting
// the seeds is the proof that authorizes the derived address to act.
type Seeds [][]byte

// Address derives the 20-byte address for the seeds.
func (s Seeds) Address() [20]byte {
	return DeriveAddress(s...)
}

// DeriveAddress hashes the length-prefixed seeds with keccak256 and keeps the
// low 20 bytes. The result has no private key.
func DeriveAddress(seeds ...[]byte) [20]byte {
	size := 0
	for _, seed := range seeds {
		size += 1 + len(seed)
	}
	buf := make([]byte, 0, size)
	for _, seed := range seeds {
		buf = append(buf, byte(len(seed)))
		buf = append(buf, seed...)
	}
	var out [20]byte
	copy(out[:], ethcrypto.Keccak256(buf)[12:])
	return out
}
