package core

import (
	"errors"

	"cardmarket/native/common"
)

var (
	ErrChainIDMismatch = common.NewError(common.KindValidation, "chain_id_mismatch", "ledger: transaction chain id mismatch")
	ErrInvalidNonce    = common.NewError(common.KindValidation, "invalid_nonce", "ledger: transaction nonce mismatch")
	ErrUnknownTxType   = common.NewError(common.KindValidation, "unknown_tx_type", "ledger: unknown transaction type")
	ErrInvalidPayload  = common.NewError(common.KindValidation, "invalid_payload", "ledger: malformed transaction payload")
	ErrInvalidSender   = common.NewError(common.KindAuthorization, "invalid_signature", "ledger: transaction signature invalid")

	errLedgerClosed = errors.New("ledger: closed")
)
