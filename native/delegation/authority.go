package delegation

import (
	"errors"

	"cardmarket/native/common"
)

var (
	ErrInvalidAmount       = common.NewError(common.KindValidation, "invalid_amount", "delegation: amount must be positive")
	ErrInvalidDelegate     = common.NewError(common.KindValidation, "invalid_delegate", "delegation: delegate address required")
	ErrInsufficientHolding = common.NewError(common.KindInsufficiency, "insufficient_holding", "delegation: holding too small")
	ErrGrantOutstanding    = common.NewError(common.KindState, "grant_outstanding", "delegation: a grant is already outstanding")
	ErrNoGrant             = common.NewError(common.KindAuthorization, "grant_missing", "delegation: no outstanding grant")
	ErrDelegateMismatch    = common.NewError(common.KindAuthorization, "delegate_mismatch", "delegation: grant held by a different address")
	ErrGrantExceeded       = common.NewError(common.KindAuthorization, "grant_exceeded", "delegation: amount exceeds grant")
	ErrHoldingOverflow     = common.NewError(common.KindArithmetic, "holding_overflow", "delegation: holding overflow")

	errNilState = errors.New("delegation: state not configured")
)

type holdingState interface {
	HoldingGet(owner [20]byte, asset [32]byte) (*Holding, error)
	HoldingPut(owner [20]byte, asset [32]byte, holding *Holding) error
}

// Authority manages asset holdings and the transfer grants issued against
// them. A grant never moves custody; it lets the delegate move up to the
// granted amount later.
type Authority struct {
	state holdingState
}

func NewAuthority(state holdingState) *Authority {
	return &Authority{state: state}
}

func (a *Authority) load(owner [20]byte, asset [32]byte) (*Holding, error) {
	if a == nil || a.state == nil {
		return nil, errNilState
	}
	holding, err := a.state.HoldingGet(owner, asset)
	if err != nil {
		return nil, err
	}
	if holding == nil {
		return &Holding{}, nil
	}
	return holding, nil
}

// Holding returns a copy of the owner's holding of asset. Absent holdings are
// reported as zero.
func (a *Authority) Holding(owner [20]byte, asset [32]byte) (*Holding, error) {
	holding, err := a.load(owner, asset)
	if err != nil {
		return nil, err
	}
	return holding.Clone(), nil
}

// Grant authorizes delegate to move amount units of asset out of owner's
// holding. Grants are never replaced in place: an outstanding grant must be
// revoked first.
func (a *Authority) Grant(owner [20]byte, asset [32]byte, delegate [20]byte, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if delegate == ([20]byte{}) {
		return ErrInvalidDelegate
	}
	holding, err := a.load(owner, asset)
	if err != nil {
		return err
	}
	if holding.HasGrant() {
		return ErrGrantOutstanding
	}
	if holding.Amount < amount {
		return ErrInsufficientHolding
	}
	holding.Delegate = delegate
	holding.DelegatedAmount = amount
	return a.state.HoldingPut(owner, asset, holding)
}

// Revoke clears any outstanding grant. Revoking without a grant is a no-op.
func (a *Authority) Revoke(owner [20]byte, asset [32]byte) error {
	holding, err := a.load(owner, asset)
	if err != nil {
		return err
	}
	if !holding.HasGrant() {
		return nil
	}
	holding.Delegate = [20]byte{}
	holding.DelegatedAmount = 0
	return a.state.HoldingPut(owner, asset, holding)
}

// ExecuteTransfer moves amount units from one holding to another on behalf
// of the address derived from seeds. The grant shrinks by amount and is
// cleared once exhausted.
func (a *Authority) ExecuteTransfer(seeds Seeds, from, to [20]byte, asset [32]byte, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	delegate := seeds.Address()
	source, err := a.load(from, asset)
	if err != nil {
		return err
	}
	if !source.HasGrant() {
		return ErrNoGrant
	}
	if source.Delegate != delegate {
		return ErrDelegateMismatch
	}
	if source.DelegatedAmount < amount {
		return ErrGrantExceeded
	}
	if source.Amount < amount {
		return ErrInsufficientHolding
	}
	source.DelegatedAmount -= amount
	if source.DelegatedAmount == 0 {
		source.Delegate = [20]byte{}
	}
	if from == to {
		return a.state.HoldingPut(from, asset, source)
	}
	return a.move(from, source, to, asset, amount)
}

// Transfer is an owner-signed move. It is refused while a grant is
// outstanding so a delegate never loses the units it was promised.
func (a *Authority) Transfer(owner, to [20]byte, asset [32]byte, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	source, err := a.load(owner, asset)
	if err != nil {
		return err
	}
	if source.HasGrant() {
		return ErrGrantOutstanding
	}
	if source.Amount < amount {
		return ErrInsufficientHolding
	}
	if owner == to {
		return nil
	}
	return a.move(owner, source, to, asset, amount)
}

// Credit adds freshly issued units to owner's holding.
func (a *Authority) Credit(owner [20]byte, asset [32]byte, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	holding, err := a.load(owner, asset)
	if err != nil {
		return err
	}
	if holding.Amount+amount < holding.Amount {
		return ErrHoldingOverflow
	}
	holding.Amount += amount
	return a.state.HoldingPut(owner, asset, holding)
}

func (a *Authority) move(from [20]byte, source *Holding, to [20]byte, asset [32]byte, amount uint64) error {
	dest, err := a.load(to, asset)
	if err != nil {
		return err
	}
	if dest.Amount+amount < dest.Amount {
		return ErrHoldingOverflow
	}
	source.Amount -= amount
	dest.Amount += amount
	if err := a.state.HoldingPut(from, asset, source); err != nil {
		return err
	}
	return a.state.HoldingPut(to, asset, dest)
}
