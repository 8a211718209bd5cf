package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	rpcURLEnv   = "MARKET_RPC_URL"
	rpcTokenEnv = "MARKET_RPC_TOKEN"
	keyPassEnv  = "MARKET_KEY_PASS"
)

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv(rpcURLEnv)); v != "" {
		return v
	}
	return "http://localhost:8080"
}

// globals are the flags accepted before the subcommand.
type globals struct {
	rpc     string
	token   string
	chainID uint64
}

type command struct {
	usage string
	run   func(env *cliEnv, args []string) error
}

var commands = map[string]command{
	"keygen":          {"keygen <keystore>", runKeygen},
	"address":         {"address <keystore>", runAddress},
	"status":          {"status", runStatus},
	"balance":         {"balance <address>", runBalance},
	"account":         {"account <address>", runAccount},
	"holding":         {"holding <address> <asset>", runHolding},
	"asset":           {"asset <asset>", runAsset},
	"listing":         {"listing <asset>", runListing},
	"listing-address": {"listing-address <asset>", runListingAddress},
	"quote":           {"quote <price>", runQuote},
	"history":         {"history [--limit n] <asset>", runHistory},
	"collection":      {"collection --key <keystore> [--symbol s] [--uri u] <name>", runCreateCollection},
	"mint":            {"mint --key <keystore> --collection <id> --to <address> [--attack n --defense n --element e --rarity r --uri u] <name>", runMint},
	"list":            {"list --key <keystore> <asset> <price>", runList},
	"reprice":         {"reprice --key <keystore> <asset> <price>", runReprice},
	"cancel":          {"cancel --key <keystore> <asset>", runCancel},
	"buy":             {"buy --key <keystore> <asset>", runBuy},
	"transfer":        {"transfer --key <keystore> <asset> <recipient>", runAssetTransfer},
	"pay":             {"pay --key <keystore> <recipient> <amount>", runPay},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("marketctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var g globals
	fs.StringVar(&g.rpc, "rpc", defaultRPCEndpoint(), "JSON-RPC endpoint (overrides MARKET_RPC_URL)")
	fs.StringVar(&g.token, "token", os.Getenv(rpcTokenEnv), "Bearer token for market_sendTransaction")
	fs.Uint64Var(&g.chainID, "chain-id", 0, "Chain id to sign for (queried from the node when zero)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(stderr, err)
		printUsage(stderr)
		return 2
	}
	rest := fs.Args()
	if len(rest) == 0 {
		printUsage(stderr)
		return 2
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", rest[0])
		printUsage(stderr)
		return 2
	}
	env := newCLIEnv(g, stdout)
	if err := cmd.run(env, rest[1:]); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if isUsageError(err) {
			fmt.Fprintf(stderr, "Usage: marketctl %s\n", cmd.usage)
			return 2
		}
		return 1
	}
	return 0
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...interface{}) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

func isUsageError(err error) bool {
	_, ok := err.(usageError)
	return ok
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: marketctl [--rpc url] [--token jwt] [--chain-id id] <command> [args]")
	fmt.Fprintln(w, "Commands:")
	names := []string{
		"keygen", "address", "status", "balance", "account", "holding", "asset",
		"listing", "listing-address", "quote", "history",
		"collection", "mint", "list", "reprice", "cancel", "buy", "transfer", "pay",
	}
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", commands[name].usage)
	}
}
