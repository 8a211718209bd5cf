package delegation

import (
	"errors"
	"testing"
)

type holdingKey struct {
	owner [20]byte
	asset [32]byte
}

type mockState struct {
	holdings map[holdingKey]*Holding
}

func newMockState() *mockState {
	return &mockState{holdings: make(map[holdingKey]*Holding)}
}

func (m *mockState) HoldingGet(owner [20]byte, asset [32]byte) (*Holding, error) {
	h, ok := m.holdings[holdingKey{owner, asset}]
	if !ok {
		return nil, nil
	}
	return h.Clone(), nil
}

func (m *mockState) HoldingPut(owner [20]byte, asset [32]byte, h *Holding) error {
	if h.Empty() {
		delete(m.holdings, holdingKey{owner, asset})
		return nil
	}
	m.holdings[holdingKey{owner, asset}] = h.Clone()
	return nil
}

var (
	seller = [20]byte{0x01}
	buyer  = [20]byte{0x02}
	asset  = [32]byte{0xaa}
)

func listingSeeds() Seeds { return Seeds{[]byte("listing"), asset[:]} }

func newFunded(t *testing.T) (*Authority, *mockState) {
	t.Helper()
	st := newMockState()
	auth := NewAuthority(st)
	if err := auth.Credit(seller, asset, 1); err != nil {
		t.Fatalf("credit: %v", err)
	}
	return auth, st
}

func TestDeriveAddressIsDeterministic(t *testing.T) {
	a := DeriveAddress([]byte("listing"), asset[:])
	b := listingSeeds().Address()
	if a != b {
		t.Fatalf("derivation not deterministic")
	}
	other := [32]byte{0xbb}
	if DeriveAddress([]byte("listing"), other[:]) == a {
		t.Fatalf("distinct assets collided")
	}
	if DeriveAddress([]byte("listin"), append([]byte("g"), asset[:]...)) == a {
		t.Fatalf("seed boundaries must be part of the derivation")
	}
}

func TestGrantRequiresRevokeBeforeReissue(t *testing.T) {
	auth, _ := newFunded(t)
	delegate := listingSeeds().Address()
	if err := auth.Grant(seller, asset, delegate, 1); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := auth.Grant(seller, asset, delegate, 1); !errors.Is(err, ErrGrantOutstanding) {
		t.Fatalf("expected outstanding grant error, got %v", err)
	}
	if err := auth.Revoke(seller, asset); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := auth.Revoke(seller, asset); err != nil {
		t.Fatalf("second revoke should be a no-op: %v", err)
	}
	if err := auth.Grant(seller, asset, delegate, 1); err != nil {
		t.Fatalf("re-grant: %v", err)
	}
	h, _ := auth.Holding(seller, asset)
	if h.Delegate != delegate || h.DelegatedAmount != 1 || h.Amount != 1 {
		t.Fatalf("unexpected holding %+v", h)
	}
}

func TestGrantRejectsInsufficientHolding(t *testing.T) {
	auth := NewAuthority(newMockState())
	if err := auth.Grant(seller, asset, [20]byte{9}, 1); !errors.Is(err, ErrInsufficientHolding) {
		t.Fatalf("expected insufficient holding, got %v", err)
	}
	if err := auth.Grant(seller, asset, [20]byte{}, 1); !errors.Is(err, ErrInvalidDelegate) {
		t.Fatalf("expected invalid delegate, got %v", err)
	}
}

func TestExecuteTransferConsumesGrant(t *testing.T) {
	auth, st := newFunded(t)
	seeds := listingSeeds()
	if err := auth.Grant(seller, asset, seeds.Address(), 1); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := auth.ExecuteTransfer(seeds, seller, buyer, asset, 1); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if _, ok := st.holdings[holdingKey{seller, asset}]; ok {
		t.Fatalf("seller holding should be removed once empty")
	}
	h, _ := auth.Holding(buyer, asset)
	if h.Amount != 1 || h.HasGrant() {
		t.Fatalf("unexpected buyer holding %+v", h)
	}
	if err := auth.ExecuteTransfer(seeds, buyer, seller, asset, 1); !errors.Is(err, ErrNoGrant) {
		t.Fatalf("expected missing grant, got %v", err)
	}
}

func TestExecuteTransferRejectsWrongSeeds(t *testing.T) {
	auth, _ := newFunded(t)
	if err := auth.Grant(seller, asset, listingSeeds().Address(), 1); err != nil {
		t.Fatalf("grant: %v", err)
	}
	forged := Seeds{[]byte("listing"), []byte("other")}
	if err := auth.ExecuteTransfer(forged, seller, buyer, asset, 1); !errors.Is(err, ErrDelegateMismatch) {
		t.Fatalf("expected delegate mismatch, got %v", err)
	}
	if err := auth.ExecuteTransfer(listingSeeds(), seller, buyer, asset, 2); !errors.Is(err, ErrGrantExceeded) {
		t.Fatalf("expected grant exceeded, got %v", err)
	}
}

func TestOwnerTransferBlockedWhileGranted(t *testing.T) {
	auth, _ := newFunded(t)
	if err := auth.Grant(seller, asset, listingSeeds().Address(), 1); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := auth.Transfer(seller, buyer, asset, 1); !errors.Is(err, ErrGrantOutstanding) {
		t.Fatalf("expected outstanding grant, got %v", err)
	}
	if err := auth.Revoke(seller, asset); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := auth.Transfer(seller, buyer, asset, 1); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	h, _ := auth.Holding(buyer, asset)
	if h.Amount != 1 {
		t.Fatalf("buyer should hold the asset")
	}
}
