package genesis

import (
	"bytes"
	"fmt"
	"sort"

	"cardmarket/core/types"
)

type accountWriter interface {
	PutAccount(addr []byte, account *types.Account) error
}

// Apply writes the allocations into state in address order so the resulting
// root does not depend on file order.
func Apply(spec *Spec, state accountWriter) error {
	if spec == nil {
		return fmt.Errorf("genesis spec must not be nil")
	}
	allocs, err := spec.Allocations()
	if err != nil {
		return err
	}
	sort.Slice(allocs, func(i, j int) bool {
		return bytes.Compare(allocs[i].Address[:], allocs[j].Address[:]) < 0
	})
	for _, alloc := range allocs {
		addr := alloc.Address
		if err := state.PutAccount(addr[:], &types.Account{Balance: alloc.Balance}); err != nil {
			return fmt.Errorf("genesis account %x: %w", addr, err)
		}
	}
	return nil
}
