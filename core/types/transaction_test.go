package types

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestTransactionSignRecoversSender(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tx, err := NewTransaction(7, TxTypeList, 3, ListPayload{Asset: common.HexToHash("0x01"), Price: 1000})
	if err != nil {
		t.Fatalf("new tx: %v", err)
	}
	if _, err := tx.From(); err != ErrMissingSignature {
		t.Fatalf("expected missing signature, got %v", err)
	}
	if err := tx.Sign(key); err != nil {
		t.Fatalf("sign: %v", err)
	}
	from, err := tx.From()
	if err != nil {
		t.Fatalf("from: %v", err)
	}
	want := crypto.PubkeyToAddress(key.PublicKey)
	if !bytes.Equal(from, want.Bytes()) {
		t.Fatalf("sender mismatch: got %x want %x", from, want)
	}
}

func TestTransactionSurvivesJSONRoundTrip(t *testing.T) {
	key, _ := crypto.GenerateKey()
	tx, _ := NewTransaction(1, TxTypePurchase, 0, PurchasePayload{Asset: common.HexToHash("0xaa")})
	if err := tx.Sign(key); err != nil {
		t.Fatalf("sign: %v", err)
	}
	raw, err := json.Marshal(tx)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Transaction
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	from, err := decoded.From()
	if err != nil {
		t.Fatalf("from: %v", err)
	}
	if !bytes.Equal(from, crypto.PubkeyToAddress(key.PublicKey).Bytes()) {
		t.Fatalf("sender changed after round trip")
	}
	var payload PurchasePayload
	if err := decoded.DecodeData(&payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Asset != common.HexToHash("0xaa") {
		t.Fatalf("unexpected asset %s", payload.Asset.Hex())
	}
}

func TestTamperedPayloadChangesSender(t *testing.T) {
	key, _ := crypto.GenerateKey()
	tx, _ := NewTransaction(1, TxTypeList, 0, ListPayload{Price: 10})
	if err := tx.Sign(key); err != nil {
		t.Fatalf("sign: %v", err)
	}
	tampered := &Transaction{ChainID: tx.ChainID, Type: tx.Type, Nonce: tx.Nonce, R: tx.R, S: tx.S, V: tx.V}
	tampered.Data, _ = json.Marshal(ListPayload{Price: 1})
	from, err := tampered.From()
	if err == nil && bytes.Equal(from, crypto.PubkeyToAddress(key.PublicKey).Bytes()) {
		t.Fatalf("tampered payload still recovered original signer")
	}
}
