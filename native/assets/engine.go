package assets

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/text/unicode/norm"

	"cardmarket/core/events"
	"cardmarket/core/types"
	"cardmarket/crypto"
	"cardmarket/native/common"
)

// ModuleName identifies the asset module for pause switches.
const ModuleName = "assets"

const (
	EventTypeCollectionCreated = "assets.collection_created"
	EventTypeMinted            = "assets.minted"
	EventTypeTransferred       = "assets.transferred"
)

var (
	ErrInvalidCollectionAuthority = common.NewError(common.KindAuthorization, "invalid_collection_authority", "assets: caller is not the collection authority")
	ErrNameTooLong                = common.NewError(common.KindValidation, "name_too_long", "assets: name too long")
	ErrSymbolTooLong              = common.NewError(common.KindValidation, "symbol_too_long", "assets: symbol too long")
	ErrURITooLong                 = common.NewError(common.KindValidation, "uri_too_long", "assets: uri too long")
	ErrEmptyName                  = common.NewError(common.KindValidation, "empty_name", "assets: name required")
	ErrInvalidStats               = common.NewError(common.KindValidation, "invalid_stats", "assets: invalid stats")
	ErrInvalidRecipient           = common.NewError(common.KindValidation, "invalid_recipient", "assets: recipient required")
	ErrCollectionExists           = common.NewError(common.KindState, "collection_exists", "assets: collection already exists")
	ErrCollectionNotFound         = common.NewError(common.KindState, "collection_not_found", "assets: collection not found")
	ErrAssetNotFound              = common.NewError(common.KindState, "asset_not_found", "assets: asset not found")

	errNilState    = errors.New("assets engine: state not configured")
	errNilHoldings = errors.New("assets engine: holdings not configured")
)

type engineState interface {
	CollectionGet(id [32]byte) (*Collection, bool, error)
	CollectionPut(c *Collection) error
	AssetGet(id [32]byte) (*Asset, bool, error)
	AssetPut(a *Asset) error
}

type holdingLedger interface {
	Credit(owner [20]byte, asset [32]byte, amount uint64) error
	Transfer(owner, to [20]byte, asset [32]byte, amount uint64) error
}

// Engine issues collections and assets. Only the configured authority may
// create collections and mint into them.
type Engine struct {
	state     engineState
	holdings  holdingLedger
	emitter   events.Emitter
	pauses    common.PauseView
	authority [20]byte
	nowFn     func() int64
}

func NewEngine(authority [20]byte) *Engine {
	return &Engine{
		authority: authority,
		emitter:   events.NoopEmitter{},
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetHoldings(h holdingLedger) { e.holdings = h }

func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.holdings == nil {
		return errNilHoldings
	}
	return common.Guard(e.pauses, ModuleName)
}

// NormalizeMetadata trims and NFC-normalises the fields and enforces the
// byte limits.
func NormalizeMetadata(meta Metadata) (Metadata, error) {
	out := Metadata{
		Name:   norm.NFC.String(strings.TrimSpace(meta.Name)),
		Symbol: norm.NFC.String(strings.TrimSpace(meta.Symbol)),
		URI:    norm.NFC.String(strings.TrimSpace(meta.URI)),
	}
	switch {
	case out.Name == "":
		return Metadata{}, ErrEmptyName
	case len(out.Name) > MaxNameLength:
		return Metadata{}, ErrNameTooLong
	case len(out.Symbol) > MaxSymbolLength:
		return Metadata{}, ErrSymbolTooLong
	case len(out.URI) > MaxURILength:
		return Metadata{}, ErrURITooLong
	}
	return out, nil
}

// CollectionID derives the identifier of a collection.
func CollectionID(authority [20]byte, name string) [32]byte {
	return ethcrypto.Keccak256Hash([]byte("collection"), authority[:], []byte(name))
}

// AssetID derives the identifier of the serial-th asset of a collection.
func AssetID(collection [32]byte, serial uint64) [32]byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], serial)
	return ethcrypto.Keccak256Hash([]byte("asset"), collection[:], buf[:])
}

// CreateCollection registers a collection owned by the authority.
func (e *Engine) CreateCollection(caller [20]byte, meta Metadata) (*Collection, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if caller != e.authority {
		return nil, ErrInvalidCollectionAuthority
	}
	normalized, err := NormalizeMetadata(meta)
	if err != nil {
		return nil, err
	}
	id := CollectionID(caller, normalized.Name)
	if _, ok, err := e.state.CollectionGet(id); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrCollectionExists
	}
	col := &Collection{ID: id, Authority: caller, Metadata: normalized}
	if err := e.state.CollectionPut(col); err != nil {
		return nil, err
	}
	e.emit(&types.Event{Type: EventTypeCollectionCreated, Attributes: map[string]string{
		"collection": "0x" + hex.EncodeToString(id[:]),
		"authority":  crypto.FormatAddress(caller),
		"name":       normalized.Name,
		"symbol":     normalized.Symbol,
	}})
	return col.Clone(), nil
}

// Mint issues a single unit of a new asset in collection and credits it to
// recipient.
func (e *Engine) Mint(caller [20]byte, collection [32]byte, recipient [20]byte, meta Metadata, stats Stats) (*Asset, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	col, ok, err := e.state.CollectionGet(collection)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCollectionNotFound
	}
	if caller != col.Authority || caller != e.authority {
		return nil, ErrInvalidCollectionAuthority
	}
	if recipient == ([20]byte{}) {
		return nil, ErrInvalidRecipient
	}
	normalized, err := NormalizeMetadata(meta)
	if err != nil {
		return nil, err
	}
	if err := stats.Validate(); err != nil {
		return nil, err
	}
	serial := col.Size
	asset := &Asset{
		ID:         AssetID(collection, serial),
		Collection: collection,
		Serial:     serial,
		Metadata:   normalized,
		Stats:      stats,
		Supply:     1,
		MintedAt:   uint64(e.nowFn()),
	}
	col.Size++
	if err := e.state.AssetPut(asset); err != nil {
		return nil, err
	}
	if err := e.state.CollectionPut(col); err != nil {
		return nil, err
	}
	if err := e.holdings.Credit(recipient, asset.ID, 1); err != nil {
		return nil, err
	}
	e.emit(&types.Event{Type: EventTypeMinted, Attributes: map[string]string{
		"asset":      "0x" + hex.EncodeToString(asset.ID[:]),
		"collection": "0x" + hex.EncodeToString(collection[:]),
		"recipient":  crypto.FormatAddress(recipient),
		"serial":     strconv.FormatUint(serial, 10),
		"rarity":     stats.Rarity.String(),
	}})
	return asset.Clone(), nil
}

// Transfer moves an asset held by owner to a new holder.
func (e *Engine) Transfer(owner, to [20]byte, asset [32]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	if to == ([20]byte{}) {
		return ErrInvalidRecipient
	}
	if _, ok, err := e.state.AssetGet(asset); err != nil {
		return err
	} else if !ok {
		return ErrAssetNotFound
	}
	if err := e.holdings.Transfer(owner, to, asset, 1); err != nil {
		return err
	}
	e.emit(&types.Event{Type: EventTypeTransferred, Attributes: map[string]string{
		"asset": "0x" + hex.EncodeToString(asset[:]),
		"from":  crypto.FormatAddress(owner),
		"to":    crypto.FormatAddress(to),
	}})
	return nil
}

// Asset returns a copy of the asset record.
func (e *Engine) Asset(id [32]byte) (*Asset, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	asset, ok, err := e.state.AssetGet(id)
	if err != nil || !ok {
		return nil, ok, err
	}
	return asset.Clone(), true, nil
}

// Collection returns a copy of the collection record.
func (e *Engine) Collection(id [32]byte) (*Collection, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	col, ok, err := e.state.CollectionGet(id)
	if err != nil || !ok {
		return nil, ok, err
	}
	return col.Clone(), true, nil
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(events.Envelope{Evt: evt})
}
