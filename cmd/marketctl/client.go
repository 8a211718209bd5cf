package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cardmarket/cmd/internal/passphrase"
	"cardmarket/core/types"
	"cardmarket/crypto"
)

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	if len(e.Data) > 0 && string(e.Data) != "null" {
		return fmt.Sprintf("rpc error %d: %s (%s)", e.Code, e.Message, string(e.Data))
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// cliEnv carries the resolved globals of one invocation.
type cliEnv struct {
	globals
	out    io.Writer
	http   *http.Client
	passes *passphrase.Source
}

func newCLIEnv(g globals, out io.Writer) *cliEnv {
	return &cliEnv{
		globals: g,
		out:     out,
		http:    &http.Client{Timeout: 15 * time.Second},
		passes:  passphrase.NewSource(keyPassEnv, "wallet keystore"),
	}
}

func (e *cliEnv) call(method string, out interface{}, params ...interface{}) error {
	if params == nil {
		params = []interface{}{}
	}
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(e.rpc, "/")+"/", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := strings.TrimSpace(e.token); token != "" && method == "market_sendTransaction" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.http.Do(req)
	if err != nil {
		return fmt.Errorf("rpc request failed: %w", err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode rpc response (HTTP %d): %w", resp.StatusCode, err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(envelope.Result, out)
}

func (e *cliEnv) printJSON(v interface{}) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (e *cliEnv) loadKey(path string) (*crypto.PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, usagef("--key is required")
	}
	pass, err := e.passes.Get()
	if err != nil {
		return nil, err
	}
	return crypto.LoadFromKeystore(path, pass)
}

func (e *cliEnv) resolveChainID() (uint64, error) {
	if e.chainID != 0 {
		return e.chainID, nil
	}
	var status struct {
		ChainID uint64 `json:"chainId"`
	}
	if err := e.call("market_status", &status); err != nil {
		return 0, fmt.Errorf("query chain id: %w", err)
	}
	e.chainID = status.ChainID
	return e.chainID, nil
}

// submit signs payload with key at the sender's current nonce and sends it.
func (e *cliEnv) submit(key *crypto.PrivateKey, txType types.TxType, payload interface{}) error {
	chainID, err := e.resolveChainID()
	if err != nil {
		return err
	}
	var account struct {
		Nonce uint64 `json:"nonce"`
	}
	if err := e.call("market_getAccount", &account, key.PubKey().Address().String()); err != nil {
		return fmt.Errorf("fetch account: %w", err)
	}
	tx, err := types.NewTransaction(chainID, txType, account.Nonce, payload)
	if err != nil {
		return err
	}
	if err := tx.Sign(key.PrivateKey); err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}
	var receipt json.RawMessage
	if err := e.call("market_sendTransaction", &receipt, tx); err != nil {
		return err
	}
	return e.printJSON(receipt)
}
