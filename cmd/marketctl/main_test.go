package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"cardmarket/core/types"
	"cardmarket/crypto"
)

type fakeNode struct {
	mu      sync.Mutex
	methods []string
	sent    []*types.Transaction
	auth    []string
}

func (f *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.methods = append(f.methods, req.Method)
	f.mu.Unlock()

	var result interface{}
	switch req.Method {
	case "market_status":
		result = map[string]interface{}{"chainId": 5}
	case "market_getAccount":
		result = map[string]interface{}{"nonce": 3, "balance": "10"}
	case "market_getBalance":
		result = "1234"
	case "market_getListing":
		result = nil
	case "market_sendTransaction":
		var tx types.Transaction
		if err := json.Unmarshal(req.Params[0], &tx); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.sent = append(f.sent, &tx)
		f.auth = append(f.auth, r.Header.Get("Authorization"))
		f.mu.Unlock()
		result = map[string]interface{}{"sequence": 9}
	case "market_quote":
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0", "id": 1,
			"error": map[string]interface{}{"code": -32043, "message": "market: arithmetic overflow"},
		})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": 1, "result": result})
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestBalancePrintsResult(t *testing.T) {
	node := &fakeNode{}
	srv := httptest.NewServer(node)
	defer srv.Close()

	code, out, errOut := runCLI(t, "--rpc", srv.URL, "balance", "card1xyz")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if strings.TrimSpace(out) != "1234" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestBuySignsAtCurrentNonce(t *testing.T) {
	t.Setenv(keyPassEnv, "wallet-pass")
	keyPath := filepath.Join(t.TempDir(), "buyer.keystore")
	key, err := crypto.GenerateKeystore(keyPath, "wallet-pass")
	if err != nil {
		t.Fatalf("generate keystore: %v", err)
	}

	node := &fakeNode{}
	srv := httptest.NewServer(node)
	defer srv.Close()

	asset := "0x" + strings.Repeat("ab", 32)
	code, out, errOut := runCLI(t, "--rpc", srv.URL, "--token", "jwt-token", "buy", "--key", keyPath, asset)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if !strings.Contains(out, `"sequence": 9`) {
		t.Fatalf("receipt not printed: %q", out)
	}
	if len(node.sent) != 1 {
		t.Fatalf("expected one transaction, got %d", len(node.sent))
	}
	tx := node.sent[0]
	if tx.ChainID != 5 || tx.Nonce != 3 || tx.Type != types.TxTypePurchase {
		t.Fatalf("unexpected transaction %+v", tx)
	}
	from, err := tx.From()
	if err != nil {
		t.Fatalf("recover signer: %v", err)
	}
	if crypto.MustNewAddress(crypto.CardPrefix, from).String() != key.PubKey().Address().String() {
		t.Fatalf("transaction signed by the wrong key")
	}
	var payload types.PurchasePayload
	if err := tx.DecodeData(&payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Asset.Hex() != asset {
		t.Fatalf("unexpected asset %s", payload.Asset.Hex())
	}
	if node.auth[0] != "Bearer jwt-token" {
		t.Fatalf("missing bearer token: %q", node.auth[0])
	}
}

func TestMissingListingIsAnError(t *testing.T) {
	srv := httptest.NewServer(&fakeNode{})
	defer srv.Close()
	code, _, errOut := runCLI(t, "--rpc", srv.URL, "listing", "0x"+strings.Repeat("00", 32))
	if code != 1 || !strings.Contains(errOut, "not found") {
		t.Fatalf("expected not found, got %d %q", code, errOut)
	}
}

func TestRPCErrorsSurface(t *testing.T) {
	srv := httptest.NewServer(&fakeNode{})
	defer srv.Close()
	code, _, errOut := runCLI(t, "--rpc", srv.URL, "quote", "18446744073709551615")
	if code != 1 || !strings.Contains(errOut, "-32043") {
		t.Fatalf("expected rpc error, got %d %q", code, errOut)
	}
}

func TestUsageErrors(t *testing.T) {
	if code, _, _ := runCLI(t); code != 2 {
		t.Fatalf("expected usage exit without command, got %d", code)
	}
	if code, _, errOut := runCLI(t, "nope"); code != 2 || !strings.Contains(errOut, "unknown command") {
		t.Fatalf("expected unknown command, got %d %q", code, errOut)
	}
	if code, _, errOut := runCLI(t, "list", "--key", "k", "0x12", "5"); code != 2 || !strings.Contains(errOut, "Usage: marketctl list") {
		t.Fatalf("expected list usage, got %d %q", code, errOut)
	}
}
