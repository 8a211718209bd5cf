package market

import (
	"time"

	"github.com/holiman/uint256"

	"cardmarket/core/events"
	"cardmarket/core/types"
	"cardmarket/native/common"
	"cardmarket/native/delegation"
)

// ModuleName identifies the market module for pause switches.
const ModuleName = "market"

type engineState interface {
	ListingGet(addr [20]byte) (*Listing, bool, error)
	ListingPut(addr [20]byte, listing *Listing) error
}

type delegatedAuthority interface {
	Holding(owner [20]byte, asset [32]byte) (*delegation.Holding, error)
	Grant(owner [20]byte, asset [32]byte, delegate [20]byte, amount uint64) error
	Revoke(owner [20]byte, asset [32]byte) error
	ExecuteTransfer(seeds delegation.Seeds, from, to [20]byte, asset [32]byte, amount uint64) error
}

type valueTransfer interface {
	SpendableBalance(addr [20]byte) (*uint256.Int, error)
	Transfer(from, to [20]byte, amount *uint256.Int) error
}

// Engine runs the listing registry and the settlement of purchases. It is
// not safe for concurrent use; the ledger serialises every call.
type Engine struct {
	state      engineState
	delegation delegatedAuthority
	bank       valueTransfer
	emitter    events.Emitter
	pauses     common.PauseView
	authority  [20]byte
	nowFn      func() int64
}

// NewEngine creates a market engine paying royalties to authority. The
// authority is fixed for the lifetime of the engine.
func NewEngine(authority [20]byte) *Engine {
	return &Engine{
		authority: authority,
		emitter:   events.NoopEmitter{},
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetDelegation(auth delegatedAuthority) { e.delegation = auth }

func (e *Engine) SetBank(bank valueTransfer) { e.bank = bank }

func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetNowFunc overrides the clock. Passing nil restores wall time.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// Authority returns the royalty recipient.
func (e *Engine) Authority() [20]byte { return e.authority }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(events.Envelope{Evt: evt})
}

func (e *Engine) ready() error {
	switch {
	case e == nil || e.state == nil:
		return errNilState
	case e.delegation == nil:
		return errNilDelegation
	case e.bank == nil:
		return errNilBank
	}
	return common.Guard(e.pauses, ModuleName)
}

// Listing returns a copy of the listing stored for asset.
func (e *Engine) Listing(asset [32]byte) (*Listing, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	listing, ok, err := e.state.ListingGet(ListingAddress(asset))
	if err != nil || !ok {
		return nil, ok, err
	}
	return listing.Clone(), true, nil
}

// loadActive fetches the listing for a transition that needs it Active. A
// listing that was never created is reported as not active.
func (e *Engine) loadActive(asset [32]byte) (*Listing, [20]byte, error) {
	addr := ListingAddress(asset)
	listing, ok, err := e.state.ListingGet(addr)
	if err != nil {
		return nil, addr, err
	}
	if !ok || !listing.Active() {
		return nil, addr, ErrListingNotActive
	}
	return listing, addr, nil
}

// requireSeller checks the caller against the stored seller and confirms the
// asset is still delegated to the listing.
func (e *Engine) requireSeller(listing *Listing, addr [20]byte, caller [20]byte) error {
	if listing.Seller != caller {
		return ErrNotOwner
	}
	holding, err := e.delegation.Holding(caller, listing.Asset)
	if err != nil {
		return err
	}
	if !holding.HasGrant() || holding.Delegate != addr {
		return ErrDelegationMismatch
	}
	return nil
}
