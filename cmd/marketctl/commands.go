package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"

	gethcommon "github.com/ethereum/go-ethereum/common"

	"cardmarket/core/types"
	"cardmarket/crypto"
)

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseAsset(raw string) (gethcommon.Hash, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil || len(decoded) != 32 {
		return gethcommon.Hash{}, usagef("asset must be a 32-byte hex id")
	}
	return gethcommon.BytesToHash(decoded), nil
}

func parseRecipient(raw string) (gethcommon.Address, error) {
	addr, err := crypto.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return gethcommon.Address{}, fmt.Errorf("parse address: %w", err)
	}
	return gethcommon.Address(addr), nil
}

func parsePrice(raw string) (uint64, error) {
	price, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, usagef("price must be an unsigned integer")
	}
	return price, nil
}

func exactArgs(fs *flag.FlagSet, args []string, n int) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, usagef("%v", err)
	}
	if fs.NArg() != n {
		return nil, usagef("expected %d argument(s), got %d", n, fs.NArg())
	}
	return fs.Args(), nil
}

// --- Keys ---

func runKeygen(env *cliEnv, args []string) error {
	pos, err := exactArgs(newFlagSet("keygen"), args, 1)
	if err != nil {
		return err
	}
	pass, err := env.passes.Get()
	if err != nil {
		return err
	}
	key, err := crypto.GenerateKeystore(pos[0], pass)
	if err != nil {
		return err
	}
	fmt.Fprintln(env.out, key.PubKey().Address().String())
	return nil
}

func runAddress(env *cliEnv, args []string) error {
	pos, err := exactArgs(newFlagSet("address"), args, 1)
	if err != nil {
		return err
	}
	key, err := env.loadKey(pos[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(env.out, key.PubKey().Address().String())
	return nil
}

// --- Queries ---

func runStatus(env *cliEnv, args []string) error {
	if _, err := exactArgs(newFlagSet("status"), args, 0); err != nil {
		return err
	}
	var out map[string]interface{}
	if err := env.call("market_status", &out); err != nil {
		return err
	}
	return env.printJSON(out)
}

func runBalance(env *cliEnv, args []string) error {
	pos, err := exactArgs(newFlagSet("balance"), args, 1)
	if err != nil {
		return err
	}
	var balance string
	if err := env.call("market_getBalance", &balance, pos[0]); err != nil {
		return err
	}
	fmt.Fprintln(env.out, balance)
	return nil
}

func queryOne(env *cliEnv, name, method string, args []string, parse func(string) (string, error)) error {
	pos, err := exactArgs(newFlagSet(name), args, 1)
	if err != nil {
		return err
	}
	param, err := parse(pos[0])
	if err != nil {
		return err
	}
	var out interface{}
	if err := env.call(method, &out, param); err != nil {
		return err
	}
	if out == nil {
		return fmt.Errorf("%s not found", name)
	}
	return env.printJSON(out)
}

func assetParam(raw string) (string, error) {
	h, err := parseAsset(raw)
	if err != nil {
		return "", err
	}
	return h.Hex(), nil
}

func identity(raw string) (string, error) { return strings.TrimSpace(raw), nil }

func runAccount(env *cliEnv, args []string) error {
	return queryOne(env, "account", "market_getAccount", args, identity)
}

func runAsset(env *cliEnv, args []string) error {
	return queryOne(env, "asset", "market_getAsset", args, assetParam)
}

func runListing(env *cliEnv, args []string) error {
	return queryOne(env, "listing", "market_getListing", args, assetParam)
}

func runListingAddress(env *cliEnv, args []string) error {
	return queryOne(env, "listing-address", "market_listingAddress", args, assetParam)
}

func runHolding(env *cliEnv, args []string) error {
	pos, err := exactArgs(newFlagSet("holding"), args, 2)
	if err != nil {
		return err
	}
	asset, err := parseAsset(pos[1])
	if err != nil {
		return err
	}
	var out interface{}
	if err := env.call("market_getHolding", &out, pos[0], asset.Hex()); err != nil {
		return err
	}
	return env.printJSON(out)
}

func runQuote(env *cliEnv, args []string) error {
	pos, err := exactArgs(newFlagSet("quote"), args, 1)
	if err != nil {
		return err
	}
	price, err := parsePrice(pos[0])
	if err != nil {
		return err
	}
	var out interface{}
	if err := env.call("market_quote", &out, price); err != nil {
		return err
	}
	return env.printJSON(out)
}

func runHistory(env *cliEnv, args []string) error {
	fs := newFlagSet("history")
	limit := fs.Int("limit", 20, "Maximum number of records")
	pos, err := exactArgs(fs, args, 1)
	if err != nil {
		return err
	}
	asset, err := parseAsset(pos[0])
	if err != nil {
		return err
	}
	var out interface{}
	if err := env.call("market_history", &out, asset.Hex(), *limit); err != nil {
		return err
	}
	return env.printJSON(out)
}

// --- Transactions ---

func runCreateCollection(env *cliEnv, args []string) error {
	fs := newFlagSet("collection")
	keyPath := fs.String("key", "", "Authority keystore")
	symbol := fs.String("symbol", "", "Collection symbol")
	uri := fs.String("uri", "", "Collection metadata URI")
	pos, err := exactArgs(fs, args, 1)
	if err != nil {
		return err
	}
	key, err := env.loadKey(*keyPath)
	if err != nil {
		return err
	}
	return env.submit(key, types.TxTypeCreateCollection, types.CreateCollectionPayload{Name: pos[0], Symbol: *symbol, URI: *uri})
}

func runMint(env *cliEnv, args []string) error {
	fs := newFlagSet("mint")
	keyPath := fs.String("key", "", "Authority keystore")
	collection := fs.String("collection", "", "Collection id")
	to := fs.String("to", "", "Recipient address")
	symbol := fs.String("symbol", "", "Card symbol")
	uri := fs.String("uri", "", "Card metadata URI")
	attack := fs.Uint("attack", 0, "Attack stat (0-100)")
	defense := fs.Uint("defense", 0, "Defense stat (0-100)")
	element := fs.String("element", "wholesome", "Element")
	rarity := fs.String("rarity", "common", "Rarity")
	pos, err := exactArgs(fs, args, 1)
	if err != nil {
		return err
	}
	if *attack > 255 || *defense > 255 {
		return usagef("stats must fit in a byte")
	}
	col, err := parseAsset(*collection)
	if err != nil {
		return err
	}
	recipient, err := parseRecipient(*to)
	if err != nil {
		return err
	}
	key, err := env.loadKey(*keyPath)
	if err != nil {
		return err
	}
	return env.submit(key, types.TxTypeMintAsset, types.MintAssetPayload{
		Collection: col,
		Recipient:  recipient,
		Name:       pos[0],
		Symbol:     *symbol,
		URI:        *uri,
		Stats: types.AssetStats{
			Attack:  uint8(*attack),
			Defense: uint8(*defense),
			Element: *element,
			Rarity:  *rarity,
		},
	})
}

func priceCommand(name string, txType types.TxType) func(env *cliEnv, args []string) error {
	return func(env *cliEnv, args []string) error {
		fs := newFlagSet(name)
		keyPath := fs.String("key", "", "Seller keystore")
		pos, err := exactArgs(fs, args, 2)
		if err != nil {
			return err
		}
		asset, err := parseAsset(pos[0])
		if err != nil {
			return err
		}
		price, err := parsePrice(pos[1])
		if err != nil {
			return err
		}
		key, err := env.loadKey(*keyPath)
		if err != nil {
			return err
		}
		if txType == types.TxTypeList {
			return env.submit(key, txType, types.ListPayload{Asset: asset, Price: price})
		}
		return env.submit(key, txType, types.UpdatePricePayload{Asset: asset, Price: price})
	}
}

func runList(env *cliEnv, args []string) error {
	return priceCommand("list", types.TxTypeList)(env, args)
}

func runReprice(env *cliEnv, args []string) error {
	return priceCommand("reprice", types.TxTypeUpdatePrice)(env, args)
}

func assetCommand(env *cliEnv, name string, args []string, build func(gethcommon.Hash) (types.TxType, interface{})) error {
	fs := newFlagSet(name)
	keyPath := fs.String("key", "", "Signer keystore")
	pos, err := exactArgs(fs, args, 1)
	if err != nil {
		return err
	}
	asset, err := parseAsset(pos[0])
	if err != nil {
		return err
	}
	key, err := env.loadKey(*keyPath)
	if err != nil {
		return err
	}
	txType, payload := build(asset)
	return env.submit(key, txType, payload)
}

func runCancel(env *cliEnv, args []string) error {
	return assetCommand(env, "cancel", args, func(asset gethcommon.Hash) (types.TxType, interface{}) {
		return types.TxTypeCancel, types.CancelPayload{Asset: asset}
	})
}

func runBuy(env *cliEnv, args []string) error {
	return assetCommand(env, "buy", args, func(asset gethcommon.Hash) (types.TxType, interface{}) {
		return types.TxTypePurchase, types.PurchasePayload{Asset: asset}
	})
}

func runAssetTransfer(env *cliEnv, args []string) error {
	fs := newFlagSet("transfer")
	keyPath := fs.String("key", "", "Owner keystore")
	pos, err := exactArgs(fs, args, 2)
	if err != nil {
		return err
	}
	asset, err := parseAsset(pos[0])
	if err != nil {
		return err
	}
	to, err := parseRecipient(pos[1])
	if err != nil {
		return err
	}
	key, err := env.loadKey(*keyPath)
	if err != nil {
		return err
	}
	return env.submit(key, types.TxTypeAssetTransfer, types.AssetTransferPayload{Asset: asset, To: to})
}

func runPay(env *cliEnv, args []string) error {
	fs := newFlagSet("pay")
	keyPath := fs.String("key", "", "Payer keystore")
	pos, err := exactArgs(fs, args, 2)
	if err != nil {
		return err
	}
	to, err := parseRecipient(pos[0])
	if err != nil {
		return err
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(pos[1]), 10)
	if !ok || amount.Sign() <= 0 {
		return usagef("amount must be a positive integer")
	}
	key, err := env.loadKey(*keyPath)
	if err != nil {
		return err
	}
	return env.submit(key, types.TxTypeTransfer, types.TransferPayload{To: to, Amount: amount})
}
