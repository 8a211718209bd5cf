package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"cardmarket/core"
	"cardmarket/core/types"
	"cardmarket/crypto"
	"cardmarket/native/common"
	"cardmarket/native/market"
	"cardmarket/services/indexer"
)

type ListingHistoryEntry struct {
	Action    string `json:"action"`
	Price     uint64 `json:"price"`
	Timestamp int64  `json:"timestamp"`
}

type ListingResult struct {
	Address          string                `json:"address"`
	Asset            string                `json:"asset"`
	Seller           string                `json:"seller"`
	Price            uint64                `json:"price"`
	Status           string                `json:"status"`
	CreatedAt        int64                 `json:"createdAt"`
	History          []ListingHistoryEntry `json:"history"`
	HistoryRemaining int                   `json:"historyRemaining"`
}

type AccountResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

type HoldingResult struct {
	Owner           string `json:"owner"`
	Asset           string `json:"asset"`
	Amount          uint64 `json:"amount"`
	Delegate        string `json:"delegate,omitempty"`
	DelegatedAmount uint64 `json:"delegatedAmount"`
}

type AssetResult struct {
	ID         string `json:"id"`
	Collection string `json:"collection"`
	Serial     uint64 `json:"serial"`
	Name       string `json:"name"`
	Symbol     string `json:"symbol"`
	URI        string `json:"uri"`
	Attack     uint8  `json:"attack"`
	Defense    uint8  `json:"defense"`
	Element    string `json:"element"`
	Rarity     string `json:"rarity"`
	Supply     uint64 `json:"supply"`
	MintedAt   uint64 `json:"mintedAt"`
}

type CollectionResult struct {
	ID        string `json:"id"`
	Authority string `json:"authority"`
	Name      string `json:"name"`
	Symbol    string `json:"symbol"`
	URI       string `json:"uri"`
	Size      uint64 `json:"size"`
}

type QuoteResult struct {
	Price        uint64 `json:"price"`
	Royalty      uint64 `json:"royalty"`
	SellerAmount uint64 `json:"sellerAmount"`
	Authority    string `json:"authority"`
}

type TradeResult struct {
	TxHash       string `json:"txHash"`
	Sequence     uint64 `json:"sequence"`
	Type         string `json:"type"`
	Action       string `json:"action"`
	Seller       string `json:"seller"`
	Buyer        string `json:"buyer,omitempty"`
	Price        uint64 `json:"price"`
	Royalty      uint64 `json:"royalty"`
	SellerAmount uint64 `json:"sellerAmount"`
	Timestamp    int64  `json:"timestamp"`
}

type StatusResult struct {
	ChainID   uint64 `json:"chainId"`
	Sequence  uint64 `json:"sequence"`
	StateRoot string `json:"stateRoot"`
	Authority string `json:"authority"`
}

func formatHash(b [32]byte) string { return "0x" + hex.EncodeToString(b[:]) }

func parseHash(raw string) ([32]byte, error) {
	var out [32]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, fmt.Errorf("invalid hex: %w", err)
	}
	if len(decoded) != len(out) {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(decoded))
	}
	copy(out[:], decoded)
	return out, nil
}

func stringParam(req *RPCRequest, index int, name string) (string, *RPCError) {
	if len(req.Params) <= index {
		return "", &RPCError{Code: codeInvalidParams, Message: name + " parameter required"}
	}
	var value string
	if err := json.Unmarshal(req.Params[index], &value); err != nil {
		return "", &RPCError{Code: codeInvalidParams, Message: "invalid " + name + " parameter", Data: err.Error()}
	}
	return value, nil
}

func hashParam(req *RPCRequest, index int, name string) ([32]byte, *RPCError) {
	raw, rpcErr := stringParam(req, index, name)
	if rpcErr != nil {
		return [32]byte{}, rpcErr
	}
	h, err := parseHash(raw)
	if err != nil {
		return [32]byte{}, &RPCError{Code: codeInvalidParams, Message: "invalid " + name + " parameter", Data: err.Error()}
	}
	return h, nil
}

func addressParam(req *RPCRequest, index int, name string) ([20]byte, *RPCError) {
	raw, rpcErr := stringParam(req, index, name)
	if rpcErr != nil {
		return [20]byte{}, rpcErr
	}
	addr, err := crypto.ParseAddress(raw)
	if err != nil {
		return [20]byte{}, &RPCError{Code: codeInvalidParams, Message: "failed to decode " + name, Data: err.Error()}
	}
	return addr, nil
}

func uintParam(req *RPCRequest, index int, name string) (uint64, *RPCError) {
	if len(req.Params) <= index {
		return 0, &RPCError{Code: codeInvalidParams, Message: name + " parameter required"}
	}
	var direct uint64
	if err := json.Unmarshal(req.Params[index], &direct); err == nil {
		return direct, nil
	}
	var text string
	if err := json.Unmarshal(req.Params[index], &text); err == nil {
		if v, err := strconv.ParseUint(strings.TrimSpace(text), 10, 64); err == nil {
			return v, nil
		}
	}
	return 0, &RPCError{Code: codeInvalidParams, Message: "invalid " + name + " parameter"}
}

func fail(w http.ResponseWriter, req *RPCRequest, rpcErr *RPCError) bool {
	status := http.StatusBadRequest
	if rpcErr.Code == codeUnauthorized {
		status = http.StatusUnauthorized
	}
	writeError(w, status, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
	return false
}

// writeModuleError maps a rejected operation to a JSON-RPC error carrying the
// module's stable code and kind.
func (s *Server) writeModuleError(w http.ResponseWriter, req *RPCRequest, err error) bool {
	modErr, ok := common.AsError(err)
	if !ok {
		s.logger.Error("rpc call failed", "method", req.Method, "error", err.Error())
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "internal error", err.Error())
		return false
	}
	code, status := codeServerError, http.StatusInternalServerError
	switch modErr.Kind {
	case common.KindValidation:
		code, status = codeValidation, http.StatusBadRequest
	case common.KindAuthorization:
		code, status = codeAuthorization, http.StatusForbidden
	case common.KindState:
		code, status = codeState, http.StatusConflict
	case common.KindArithmetic:
		code, status = codeArithmetic, http.StatusUnprocessableEntity
	case common.KindInsufficiency:
		code, status = codeInsufficiency, http.StatusPaymentRequired
	}
	writeError(w, status, req.ID, code, modErr.Msg, map[string]string{
		"code": modErr.Code,
		"kind": modErr.Kind.String(),
	})
	return false
}

func (s *Server) handleSendTransaction(w http.ResponseWriter, r *http.Request, req *RPCRequest) bool {
	if rpcErr := s.auth.require(r); rpcErr != nil {
		return fail(w, req, rpcErr)
	}
	if len(req.Params) == 0 {
		return fail(w, req, &RPCError{Code: codeInvalidParams, Message: "transaction parameter required"})
	}
	var tx types.Transaction
	if err := json.Unmarshal(req.Params[0], &tx); err != nil {
		return fail(w, req, &RPCError{Code: codeInvalidParams, Message: "invalid transaction format", Data: err.Error()})
	}
	hash, err := tx.Hash()
	if err != nil {
		return fail(w, req, &RPCError{Code: codeInvalidParams, Message: "failed to hash transaction", Data: err.Error()})
	}

	if receipt, ok, err := s.idem.Lookup(hash); err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "idempotency lookup failed", err.Error())
		return false
	} else if ok {
		writeResult(w, req.ID, receipt)
		return true
	}

	source := clientSource(r)
	if !s.limiter.allow(source) {
		s.metrics.RecordThrottle("rate_limit")
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "transaction rate limit exceeded", source)
		return false
	}

	receipt, err := s.ledger.Apply(r.Context(), &tx)
	if err != nil {
		if errors.Is(err, core.ErrInvalidSender) {
			return fail(w, req, &RPCError{Code: codeInvalidParams, Message: "invalid transaction signature", Data: err.Error()})
		}
		return s.writeModuleError(w, req, err)
	}
	if err := s.idem.Remember(hash, receipt); err != nil {
		s.logger.Warn("failed to persist receipt", "txHash", receipt.TxHash.Hex(), "error", err.Error())
	}
	writeResult(w, req.ID, receipt)
	return true
}

func listingResult(asset [32]byte, l *market.Listing) ListingResult {
	res := ListingResult{
		Address:          crypto.FormatAddress(market.ListingAddress(asset)),
		Asset:            formatHash(asset),
		Seller:           crypto.FormatAddress(l.Seller),
		Price:            l.Price,
		Status:           l.Status.String(),
		CreatedAt:        l.CreatedAt,
		History:          make([]ListingHistoryEntry, len(l.History)),
		HistoryRemaining: market.HistoryRemaining(l),
	}
	for i, evt := range l.History {
		res.History[i] = ListingHistoryEntry{Action: evt.Action.String(), Price: evt.Price, Timestamp: evt.Timestamp}
	}
	return res
}

func (s *Server) handleGetListing(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	asset, rpcErr := hashParam(req, 0, "asset")
	if rpcErr != nil {
		return fail(w, req, rpcErr)
	}
	listing, ok, err := s.ledger.Listing(asset)
	if err != nil {
		return s.writeModuleError(w, req, err)
	}
	if !ok {
		writeResult(w, req.ID, nil)
		return true
	}
	writeResult(w, req.ID, listingResult(asset, listing))
	return true
}

func (s *Server) handleListingAddress(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	asset, rpcErr := hashParam(req, 0, "asset")
	if rpcErr != nil {
		return fail(w, req, rpcErr)
	}
	writeResult(w, req.ID, crypto.FormatAddress(market.ListingAddress(asset)))
	return true
}

func (s *Server) handleGetBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	addr, rpcErr := addressParam(req, 0, "address")
	if rpcErr != nil {
		return fail(w, req, rpcErr)
	}
	account, err := s.ledger.Account(addr)
	if err != nil {
		return s.writeModuleError(w, req, err)
	}
	writeResult(w, req.ID, account.Balance.String())
	return true
}

func (s *Server) handleGetAccount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	addr, rpcErr := addressParam(req, 0, "address")
	if rpcErr != nil {
		return fail(w, req, rpcErr)
	}
	account, err := s.ledger.Account(addr)
	if err != nil {
		return s.writeModuleError(w, req, err)
	}
	writeResult(w, req.ID, AccountResult{
		Address: crypto.FormatAddress(addr),
		Balance: account.Balance.String(),
		Nonce:   account.Nonce,
	})
	return true
}

func (s *Server) handleGetHolding(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	owner, rpcErr := addressParam(req, 0, "owner")
	if rpcErr != nil {
		return fail(w, req, rpcErr)
	}
	asset, rpcErr := hashParam(req, 1, "asset")
	if rpcErr != nil {
		return fail(w, req, rpcErr)
	}
	holding, err := s.ledger.Holding(owner, asset)
	if err != nil {
		return s.writeModuleError(w, req, err)
	}
	res := HoldingResult{Owner: crypto.FormatAddress(owner), Asset: formatHash(asset)}
	if holding != nil {
		res.Amount = holding.Amount
		res.DelegatedAmount = holding.DelegatedAmount
		if holding.HasGrant() {
			res.Delegate = crypto.FormatAddress(holding.Delegate)
		}
	}
	writeResult(w, req.ID, res)
	return true
}

func (s *Server) handleGetAsset(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	id, rpcErr := hashParam(req, 0, "asset")
	if rpcErr != nil {
		return fail(w, req, rpcErr)
	}
	asset, ok, err := s.ledger.Asset(id)
	if err != nil {
		return s.writeModuleError(w, req, err)
	}
	if !ok {
		writeResult(w, req.ID, nil)
		return true
	}
	writeResult(w, req.ID, AssetResult{
		ID:         formatHash(asset.ID),
		Collection: formatHash(asset.Collection),
		Serial:     asset.Serial,
		Name:       asset.Metadata.Name,
		Symbol:     asset.Metadata.Symbol,
		URI:        asset.Metadata.URI,
		Attack:     asset.Stats.Attack,
		Defense:    asset.Stats.Defense,
		Element:    asset.Stats.Element.String(),
		Rarity:     asset.Stats.Rarity.String(),
		Supply:     asset.Supply,
		MintedAt:   asset.MintedAt,
	})
	return true
}

func (s *Server) handleGetCollection(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	id, rpcErr := hashParam(req, 0, "collection")
	if rpcErr != nil {
		return fail(w, req, rpcErr)
	}
	col, ok, err := s.ledger.Collection(id)
	if err != nil {
		return s.writeModuleError(w, req, err)
	}
	if !ok {
		writeResult(w, req.ID, nil)
		return true
	}
	writeResult(w, req.ID, CollectionResult{
		ID:        formatHash(col.ID),
		Authority: crypto.FormatAddress(col.Authority),
		Name:      col.Metadata.Name,
		Symbol:    col.Metadata.Symbol,
		URI:       col.Metadata.URI,
		Size:      col.Size,
	})
	return true
}

func (s *Server) handleQuote(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	price, rpcErr := uintParam(req, 0, "price")
	if rpcErr != nil {
		return fail(w, req, rpcErr)
	}
	split, err := market.Quote(price)
	if err != nil {
		return s.writeModuleError(w, req, err)
	}
	writeResult(w, req.ID, QuoteResult{
		Price:        split.Price,
		Royalty:      split.Royalty,
		SellerAmount: split.SellerAmount,
		Authority:    crypto.FormatAddress(s.ledger.Authority()),
	})
	return true
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, req *RPCRequest) bool {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, req.ID, codeUnavailable, "trade indexer disabled", nil)
		return false
	}
	asset, rpcErr := hashParam(req, 0, "asset")
	if rpcErr != nil {
		return fail(w, req, rpcErr)
	}
	limit := 0
	if len(req.Params) > 1 {
		v, rpcErr := uintParam(req, 1, "limit")
		if rpcErr != nil {
			return fail(w, req, rpcErr)
		}
		if v > indexer.MaxHistoryLimit {
			v = indexer.MaxHistoryLimit
		}
		limit = int(v)
	}
	records, err := s.history.History(r.Context(), asset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load history", err.Error())
		return false
	}
	out := make([]TradeResult, len(records))
	for i, rec := range records {
		out[i] = TradeResult{
			TxHash:       rec.TxHash,
			Sequence:     rec.Sequence,
			Type:         rec.EventType,
			Action:       rec.Action,
			Seller:       rec.Seller,
			Buyer:        rec.Buyer,
			Price:        rec.Price,
			Royalty:      rec.Royalty,
			SellerAmount: rec.SellerAmount,
			Timestamp:    rec.Timestamp,
		}
	}
	writeResult(w, req.ID, out)
	return true
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request, req *RPCRequest) bool {
	root, seq := s.ledger.Head()
	writeResult(w, req.ID, StatusResult{
		ChainID:   s.ledger.ChainID(),
		Sequence:  seq,
		StateRoot: root.Hex(),
		Authority: crypto.FormatAddress(s.ledger.Authority()),
	})
	return true
}
