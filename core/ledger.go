package core

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cardmarket/core/events"
	"cardmarket/core/genesis"
	"cardmarket/core/state"
	"cardmarket/core/types"
	"cardmarket/native/assets"
	"cardmarket/native/bank"
	nativecommon "cardmarket/native/common"
	"cardmarket/native/delegation"
	"cardmarket/native/market"
	"cardmarket/observability"
	"cardmarket/storage"
	"cardmarket/storage/trie"
)

var headKey = []byte("cardmarket/head")

// head is the last committed state root and its sequence number.
type head struct {
	Root     common.Hash
	Sequence uint64
}

// Config wires a ledger.
type Config struct {
	ChainID       uint64
	Authority     [20]byte
	PausedModules []string
	Logger        *slog.Logger
	// Now overrides the clock for module timestamps.
	Now func() int64
}

// Receipt describes a committed transaction.
type Receipt struct {
	TxHash     common.Hash        `json:"txHash"`
	Type       string             `json:"type"`
	From       common.Address     `json:"from"`
	Sequence   uint64             `json:"sequence"`
	StateRoot  common.Hash        `json:"stateRoot"`
	Settlement *market.Settlement `json:"settlement,omitempty"`
	Events     []*types.Event     `json:"events"`
}

// Ledger applies signed transactions atomically against the state trie.
// Transactions are applied one at a time: a transaction either commits every
// effect together with its events, or the trie is reset to the last
// committed root and nothing it did is observable.
type Ledger struct {
	mu     sync.Mutex
	db     storage.Database
	trie   *trie.Trie
	state  *state.Manager
	head   head
	closed bool

	chainID uint64
	pauses  *nativecommon.PauseSet

	bank       *bank.Ledger
	delegation *delegation.Authority
	assets     *assets.Engine
	market     *market.Engine

	pending *pendingEmitter
	sinks   events.Fanout

	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.LedgerMetrics
}

// NewLedger opens the ledger stored in db, resuming from the persisted head
// when one exists.
func NewLedger(db storage.Database, cfg Config) (*Ledger, error) {
	if db == nil {
		return nil, fmt.Errorf("ledger: database required")
	}
	if cfg.Authority == ([20]byte{}) {
		return nil, fmt.Errorf("ledger: authority address required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h, err := loadHead(db)
	if err != nil {
		return nil, err
	}
	tr, err := trie.NewTrie(db, h.Root.Bytes())
	if err != nil {
		return nil, fmt.Errorf("ledger: open state trie: %w", err)
	}
	l := &Ledger{
		db:      db,
		trie:    tr,
		state:   state.NewManager(tr),
		head:    h,
		chainID: cfg.ChainID,
		pauses:  nativecommon.NewPauseSet(cfg.PausedModules...),
		pending: &pendingEmitter{},
		logger:  logger.With(slog.String("component", "ledger")),
		tracer:  otel.Tracer("cardmarket/core"),
		metrics: observability.Ledger(),
	}

	l.bank = bank.NewLedger(l.state)
	l.bank.SetEmitter(l.pending)
	l.bank.SetPauses(l.pauses)

	l.delegation = delegation.NewAuthority(l.state)

	l.assets = assets.NewEngine(cfg.Authority)
	l.assets.SetState(l.state)
	l.assets.SetHoldings(l.delegation)
	l.assets.SetEmitter(l.pending)
	l.assets.SetPauses(l.pauses)
	l.assets.SetNowFunc(cfg.Now)

	l.market = market.NewEngine(cfg.Authority)
	l.market.SetState(l.state)
	l.market.SetDelegation(l.delegation)
	l.market.SetBank(l.bank)
	l.market.SetEmitter(l.pending)
	l.market.SetPauses(l.pauses)
	l.market.SetNowFunc(cfg.Now)

	return l, nil
}

func loadHead(db storage.Database) (head, error) {
	raw, err := db.Get(headKey)
	if errors.Is(err, storage.ErrNotFound) {
		return head{Root: gethtypes.EmptyRootHash}, nil
	}
	if err != nil {
		return head{}, fmt.Errorf("ledger: read head: %w", err)
	}
	var h head
	if err := rlp.DecodeBytes(raw, &h); err != nil {
		return head{}, fmt.Errorf("ledger: decode head: %w", err)
	}
	return h, nil
}

// AddSink registers an emitter that receives every committed event. Sinks
// are called in commit order while the ledger lock is held, so they must not
// block or call back into the ledger.
func (l *Ledger) AddSink(sink events.Emitter) {
	if sink == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks = append(l.sinks, sink)
}

// Pauses exposes the module pause switches.
func (l *Ledger) Pauses() *nativecommon.PauseSet { return l.pauses }

func (l *Ledger) ChainID() uint64 { return l.chainID }

func (l *Ledger) Authority() [20]byte { return l.market.Authority() }

// InitGenesis funds the genesis accounts. It only runs on an empty ledger
// and reports whether it wrote anything.
func (l *Ledger) InitGenesis(spec *genesis.Spec) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false, errLedgerClosed
	}
	if l.head.Sequence != 0 || l.head.Root != gethtypes.EmptyRootHash {
		return false, nil
	}
	if spec.ChainID != 0 && spec.ChainID != l.chainID {
		return false, fmt.Errorf("ledger: genesis chain id %d does not match %d", spec.ChainID, l.chainID)
	}
	if addr, ok := spec.AuthorityAddress(); ok && addr != l.market.Authority() {
		return false, fmt.Errorf("ledger: genesis authority does not match configured authority")
	}
	if err := genesis.Apply(spec, l.state); err != nil {
		l.rollback()
		return false, err
	}
	if err := l.commit(0); err != nil {
		return false, err
	}
	l.logger.Info("genesis applied", slog.String("stateRoot", l.head.Root.Hex()), slog.Int("accounts", len(spec.Accounts)))
	return true, nil
}

// Apply verifies and executes tx. It returns the receipt of the committed
// transaction, or the error that rejected it with no effect on state.
func (l *Ledger) Apply(ctx context.Context, tx *types.Transaction) (*Receipt, error) {
	if tx == nil {
		return nil, ErrInvalidPayload
	}
	ctx, span := l.tracer.Start(ctx, "ledger.apply", trace.WithAttributes(
		attribute.String("tx.type", tx.Type.String()),
		attribute.Int64("tx.nonce", int64(tx.Nonce)),
	))
	defer span.End()
	started := time.Now()

	receipt, err := l.apply(ctx, tx)
	outcome := "committed"
	if err != nil {
		outcome = "internal"
		if modErr, ok := nativecommon.AsError(err); ok {
			outcome = modErr.Code
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	l.metrics.ObserveTx(tx.Type.String(), outcome, time.Since(started))
	return receipt, err
}

func (l *Ledger) apply(ctx context.Context, tx *types.Transaction) (*Receipt, error) {
	hash, err := tx.Hash()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	fromBytes, err := tx.From()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSender, err)
	}
	var from [20]byte
	copy(from[:], fromBytes)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, errLedgerClosed
	}
	if tx.ChainID != l.chainID {
		return nil, ErrChainIDMismatch
	}
	if !tx.Type.Valid() {
		return nil, ErrUnknownTxType
	}

	logger := l.logger.With(
		slog.String("txHash", "0x"+hex.EncodeToString(hash)),
		slog.String("type", tx.Type.String()),
	)

	settlement, err := l.execute(from, tx)
	if err != nil {
		l.rollback()
		logger.Debug("transaction rejected", slog.String("error", err.Error()))
		return nil, err
	}
	seq := l.head.Sequence + 1
	emitted := l.pending.drain()
	if err := l.commit(seq); err != nil {
		logger.Error("commit failed", slog.String("error", err.Error()))
		return nil, err
	}

	receipt := &Receipt{
		TxHash:     common.BytesToHash(hash),
		Type:       tx.Type.String(),
		From:       common.Address(from),
		Sequence:   seq,
		StateRoot:  l.head.Root,
		Settlement: settlement,
		Events:     make([]*types.Event, 0, len(emitted)),
	}
	for i, evt := range emitted {
		receipt.Events = append(receipt.Events, evt)
		l.sinks.Emit(events.Committed{
			TxHash:   receipt.TxHash,
			Sequence: seq,
			Index:    i,
			Evt:      evt,
		})
	}
	if settlement != nil {
		l.metrics.RecordSale(settlement.Price, settlement.Royalty)
	}
	logger.Info("transaction committed", slog.Uint64("sequence", seq), slog.Int("events", len(emitted)))
	return receipt, nil
}

// execute checks the nonce, dispatches to the owning module and bumps the
// nonce. Every write lands in the uncommitted trie.
func (l *Ledger) execute(from [20]byte, tx *types.Transaction) (*market.Settlement, error) {
	account, err := l.state.GetAccount(from[:])
	if err != nil {
		return nil, err
	}
	if account.Nonce != tx.Nonce {
		return nil, ErrInvalidNonce
	}
	settlement, err := l.dispatch(from, tx)
	if err != nil {
		return nil, err
	}
	// Reload: the module may have changed the sender's balance.
	account, err = l.state.GetAccount(from[:])
	if err != nil {
		return nil, err
	}
	account.Nonce++
	if err := l.state.PutAccount(from[:], account); err != nil {
		return nil, err
	}
	return settlement, nil
}

func (l *Ledger) commit(seq uint64) error {
	root, err := l.trie.Commit(seq)
	if err != nil {
		l.rollback()
		return fmt.Errorf("ledger: commit trie: %w", err)
	}
	// The committed nodes stay in the node database but are unreachable until
	// the head names their root.
	next := head{Root: root, Sequence: seq}
	encoded, err := rlp.EncodeToBytes(&next)
	if err != nil {
		l.rollback()
		return fmt.Errorf("ledger: encode head: %w", err)
	}
	if err := l.db.Put(headKey, encoded); err != nil {
		l.rollback()
		return fmt.Errorf("ledger: persist head: %w", err)
	}
	l.head = next
	l.metrics.SetSequence(seq)
	return nil
}

// rollback discards uncommitted trie writes and buffered events.
func (l *Ledger) rollback() {
	l.pending.drain()
	if err := l.trie.Reset(l.head.Root); err != nil {
		l.logger.Error("state reset failed", slog.String("error", err.Error()))
	}
}

// Close stops accepting transactions and closes the database.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.db.Close()
}

// pendingEmitter buffers the events of the transaction in flight.
type pendingEmitter struct {
	events []*types.Event
}

func (p *pendingEmitter) Emit(evt events.Event) {
	if payload, ok := events.Payload(evt); ok {
		p.events = append(p.events, payload)
	}
}

func (p *pendingEmitter) drain() []*types.Event {
	out := p.events
	p.events = nil
	return out
}

// --- Queries ---

// Head returns the last committed root and sequence.
func (l *Ledger) Head() (common.Hash, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.head.Root, l.head.Sequence
}

func (l *Ledger) Account(addr [20]byte) (*types.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.GetAccount(addr[:])
}

func (l *Ledger) Balance(addr [20]byte) (*big.Int, error) {
	account, err := l.Account(addr)
	if err != nil {
		return nil, err
	}
	return account.Balance, nil
}

func (l *Ledger) Holding(owner [20]byte, asset [32]byte) (*delegation.Holding, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.delegation.Holding(owner, asset)
}

func (l *Ledger) Listing(asset [32]byte) (*market.Listing, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.market.Listing(asset)
}

func (l *Ledger) Asset(id [32]byte) (*assets.Asset, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.assets.Asset(id)
}

func (l *Ledger) Collection(id [32]byte) (*assets.Collection, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.assets.Collection(id)
}
