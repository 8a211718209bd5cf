package types

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
)

// TxType defines the purpose of a transaction.
type TxType byte

const (
	TxTypeTransfer         TxType = 0x01 // Native balance transfer
	TxTypeAssetTransfer    TxType = 0x02 // Owner-signed asset move
	TxTypeCreateCollection TxType = 0x03
	TxTypeMintAsset        TxType = 0x04

	TxTypeList        TxType = 0x10
	TxTypeUpdatePrice TxType = 0x11
	TxTypeCancel      TxType = 0x12
	TxTypePurchase    TxType = 0x13
)

var txTypeNames = map[TxType]string{
	TxTypeTransfer:         "transfer",
	TxTypeAssetTransfer:    "asset_transfer",
	TxTypeCreateCollection: "create_collection",
	TxTypeMintAsset:        "mint_asset",
	TxTypeList:             "list",
	TxTypeUpdatePrice:      "update_price",
	TxTypeCancel:           "cancel",
	TxTypePurchase:         "purchase",
}

// String returns the label used in logs and metrics.
func (t TxType) String() string {
	if name, ok := txTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether the type is known.
func (t TxType) Valid() bool {
	_, ok := txTypeNames[t]
	return ok
}

var ErrMissingSignature = errors.New("types: transaction is not signed")

// Transaction is a signed request to mutate the ledger. Data carries the
// JSON payload matching Type.
type Transaction struct {
	ChainID uint64          `json:"chainId"`
	Type    TxType          `json:"type"`
	Nonce   uint64          `json:"nonce"`
	Data    json.RawMessage `json:"data"`

	R *big.Int `json:"r"`
	S *big.Int `json:"s"`
	V *big.Int `json:"v"`

	from []byte
}

// NewTransaction encodes payload into a fresh unsigned transaction.
func NewTransaction(chainID uint64, txType TxType, nonce uint64, payload interface{}) (*Transaction, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Transaction{ChainID: chainID, Type: txType, Nonce: nonce, Data: data}, nil
}

// Hash covers every field except the signature.
func (tx *Transaction) Hash() ([]byte, error) {
	txData := struct {
		ChainID uint64
		Type    TxType
		Nonce   uint64
		Data    json.RawMessage
	}{tx.ChainID, tx.Type, tx.Nonce, tx.Data}

	b, err := json.Marshal(txData)
	if err != nil {
		return nil, err
	}
	hash := sha256.Sum256(b)
	return hash[:], nil
}

func (tx *Transaction) Sign(privKey *ecdsa.PrivateKey) error {
	hash, err := tx.Hash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash, privKey)
	if err != nil {
		return err
	}
	tx.R = new(big.Int).SetBytes(sig[:32])
	tx.S = new(big.Int).SetBytes(sig[32:64])
	tx.V = new(big.Int).SetBytes([]byte{sig[64] + 27})
	tx.from = nil
	return nil
}

// From recovers the signer address.
func (tx *Transaction) From() ([]byte, error) {
	if tx.from != nil {
		return tx.from, nil
	}
	if tx.R == nil || tx.S == nil || tx.V == nil {
		return nil, ErrMissingSignature
	}
	if len(tx.R.Bytes()) > 32 || len(tx.S.Bytes()) > 32 || tx.V.Uint64() < 27 {
		return nil, errors.New("types: malformed signature")
	}
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}
	sig := make([]byte, 65)
	copy(sig[32-len(tx.R.Bytes()):32], tx.R.Bytes())
	copy(sig[64-len(tx.S.Bytes()):64], tx.S.Bytes())
	sig[64] = byte(tx.V.Uint64() - 27)
	pubKey, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return nil, err
	}
	tx.from = crypto.PubkeyToAddress(*pubKey).Bytes()
	return tx.from, nil
}

// DecodeData unmarshals the payload strictly.
func (tx *Transaction) DecodeData(out interface{}) error {
	if len(tx.Data) == 0 {
		return errors.New("types: empty transaction payload")
	}
	return json.Unmarshal(tx.Data, out)
}
