package bank

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"cardmarket/core/events"
	"cardmarket/core/types"
	"cardmarket/crypto"
	"cardmarket/native/common"
)

// ModuleName identifies the bank module for pause switches.
const ModuleName = "bank"

const EventTypeTransfer = "bank.transfer"

var (
	ErrInvalidAmount       = common.NewError(common.KindValidation, "invalid_amount", "bank: amount must be positive")
	ErrInsufficientBalance = common.NewError(common.KindInsufficiency, "insufficient_funds", "bank: insufficient balance")
	ErrBalanceOverflow     = common.NewError(common.KindArithmetic, "balance_overflow", "bank: balance overflow")

	errNilState = errors.New("bank: state not configured")
)

type bankState interface {
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

// Ledger moves native balance between accounts. Every call happens inside
// the caller's transaction, so a later failure rolls the movement back.
type Ledger struct {
	state   bankState
	emitter events.Emitter
	pauses  common.PauseView
}

func NewLedger(state bankState) *Ledger {
	return &Ledger{state: state, emitter: events.NoopEmitter{}}
}

func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

func (l *Ledger) SetPauses(p common.PauseView) { l.pauses = p }

// SpendableBalance returns the native balance available to addr.
func (l *Ledger) SpendableBalance(addr [20]byte) (*uint256.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	account, err := l.state.GetAccount(addr[:])
	if err != nil {
		return nil, err
	}
	return toUint256(account.Balance)
}

// Transfer debits from and credits to with amount. A self transfer only
// checks the balance.
func (l *Ledger) Transfer(from, to [20]byte, amount *uint256.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if err := common.Guard(l.pauses, ModuleName); err != nil {
		return err
	}
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}
	sender, err := l.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	senderBal, err := toUint256(sender.Balance)
	if err != nil {
		return err
	}
	if senderBal.Lt(amount) {
		return ErrInsufficientBalance
	}
	if from == to {
		return nil
	}
	recipient, err := l.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	recipientBal, err := toUint256(recipient.Balance)
	if err != nil {
		return err
	}
	credited, overflow := new(uint256.Int).AddOverflow(recipientBal, amount)
	if overflow {
		return ErrBalanceOverflow
	}
	sender.Balance = new(uint256.Int).Sub(senderBal, amount).ToBig()
	recipient.Balance = credited.ToBig()
	if err := l.state.PutAccount(from[:], sender); err != nil {
		return err
	}
	if err := l.state.PutAccount(to[:], recipient); err != nil {
		return err
	}
	l.emitter.Emit(events.Envelope{Evt: &types.Event{
		Type: EventTypeTransfer,
		Attributes: map[string]string{
			"from":   crypto.FormatAddress(from),
			"to":     crypto.FormatAddress(to),
			"amount": amount.Dec(),
		},
	}})
	return nil
}

func toUint256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("bank: negative balance %s", v)
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, ErrBalanceOverflow
	}
	return out, nil
}
