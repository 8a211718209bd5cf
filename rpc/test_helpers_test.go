package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"cardmarket/core"
	"cardmarket/core/genesis"
	"cardmarket/core/types"
	"cardmarket/crypto"
	"cardmarket/native/assets"
	"cardmarket/storage"
)

const testChainID = 99

type testActor struct {
	key   *crypto.PrivateKey
	addr  [20]byte
	nonce uint64
}

func newTestActor(t *testing.T) *testActor {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &testActor{key: key, addr: key.PubKey().Address().Raw()}
}

func (a *testActor) bech32() string { return crypto.FormatAddress(a.addr) }

type testEnv struct {
	ledger    *core.Ledger
	server    *Server
	http      *httptest.Server
	hub       *EventHub
	authority *testActor
	seller    *testActor
	buyer     *testActor
	asset     [32]byte
}

func newTestEnv(t *testing.T, cfg ServerConfig) *testEnv {
	t.Helper()
	env := &testEnv{
		authority: newTestActor(t),
		seller:    newTestActor(t),
		buyer:     newTestActor(t),
		hub:       NewEventHub(),
	}
	ledger, err := core.NewLedger(storage.NewMemDB(), core.Config{
		ChainID:   testChainID,
		Authority: env.authority.addr,
		Now:       func() int64 { return 1_700_000_000 },
	})
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	if _, err := ledger.InitGenesis(&genesis.Spec{
		ChainID: testChainID,
		Accounts: []genesis.AccountSpec{
			{Address: env.buyer.bech32(), Balance: "2000"},
		},
	}); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	ledger.AddSink(env.hub)
	env.ledger = ledger

	idem, err := OpenIdempotencyStore(filepath.Join(t.TempDir(), "idempotency.db"))
	if err != nil {
		t.Fatalf("open idempotency store: %v", err)
	}
	t.Cleanup(func() { _ = idem.Close() })

	srv, err := NewServer(ledger, nil, env.hub, idem, cfg, nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	env.server = srv
	env.http = httptest.NewServer(srv.Handler())
	t.Cleanup(env.http.Close)
	t.Cleanup(env.hub.Close)
	return env
}

// seedAsset mints one card to the seller directly through the ledger.
func (env *testEnv) seedAsset(t *testing.T) {
	t.Helper()
	env.applyDirect(t, env.authority, types.TxTypeCreateCollection, types.CreateCollectionPayload{Name: "Relics", Symbol: "RLC"})
	collection := assets.CollectionID(env.authority.addr, "Relics")
	env.applyDirect(t, env.authority, types.TxTypeMintAsset, types.MintAssetPayload{
		Collection: collection,
		Recipient:  env.seller.addr,
		Name:       "Skull",
		Stats:      types.AssetStats{Attack: 10, Defense: 10, Element: "cursed", Rarity: "epic"},
	})
	env.asset = assets.AssetID(collection, 0)
}

func (env *testEnv) applyDirect(t *testing.T, from *testActor, txType types.TxType, payload interface{}) {
	t.Helper()
	tx := env.signed(t, from, txType, payload)
	if _, err := env.ledger.Apply(context.Background(), tx); err != nil {
		t.Fatalf("apply %s: %v", txType, err)
	}
}

func (env *testEnv) signed(t *testing.T, from *testActor, txType types.TxType, payload interface{}) *types.Transaction {
	t.Helper()
	tx, err := types.NewTransaction(testChainID, txType, from.nonce, payload)
	if err != nil {
		t.Fatalf("new transaction: %v", err)
	}
	if err := tx.Sign(from.key.PrivateKey); err != nil {
		t.Fatalf("sign: %v", err)
	}
	from.nonce++
	return tx
}

type rpcReply struct {
	status int
	resp   struct {
		JSONRPC string          `json:"jsonrpc"`
		Result  json.RawMessage `json:"result"`
		Error   *struct {
			Code    int             `json:"code"`
			Message string          `json:"message"`
			Data    json.RawMessage `json:"data"`
		} `json:"error"`
	}
}

func (env *testEnv) call(t *testing.T, header http.Header, method string, params ...interface{}) rpcReply {
	t.Helper()
	rawParams := make([]json.RawMessage, len(params))
	for i, p := range params {
		b, err := json.Marshal(p)
		if err != nil {
			t.Fatalf("marshal param: %v", err)
		}
		rawParams[i] = b
	}
	body, err := json.Marshal(RPCRequest{JSONRPC: jsonRPCVersion, Method: method, Params: rawParams, ID: 1})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, env.http.URL+"/", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	res, err := env.http.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	var reply rpcReply
	reply.status = res.StatusCode
	if err := json.NewDecoder(res.Body).Decode(&reply.resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return reply
}

func (r rpcReply) decode(t *testing.T, out interface{}) {
	t.Helper()
	if r.resp.Error != nil {
		t.Fatalf("unexpected rpc error %d: %s", r.resp.Error.Code, r.resp.Error.Message)
	}
	if err := json.Unmarshal(r.resp.Result, out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
}

func bigInt(v int64) *big.Int { return big.NewInt(v) }
