package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cardmarket/crypto"
)

func TestLoadCreatesDefaultWithAuthorityKeystore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load default: %v", err)
	}
	if cfg.ChainID != DefaultChainID {
		t.Fatalf("unexpected chain id %d", cfg.ChainID)
	}
	if cfg.AuthorityKeystorePath != filepath.Join(dir, "authority.keystore") {
		t.Fatalf("unexpected keystore path %q", cfg.AuthorityKeystorePath)
	}
	if !strings.HasPrefix(cfg.AuthorityAddress, "card1") {
		t.Fatalf("authority address not bech32: %q", cfg.AuthorityAddress)
	}

	key, err := crypto.LoadFromKeystore(cfg.AuthorityKeystorePath, "")
	if err != nil {
		t.Fatalf("load keystore: %v", err)
	}
	if got := key.PubKey().Address().String(); got != cfg.AuthorityAddress {
		t.Fatalf("authority mismatch: keystore %s config %s", got, cfg.AuthorityAddress)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.AuthorityAddress != cfg.AuthorityAddress {
		t.Fatalf("authority changed across reloads")
	}
	if reloaded.RPC.RateLimitPerMinute != 120 || reloaded.RPC.MaxConnections != 256 {
		t.Fatalf("rpc defaults not persisted: %+v", reloaded.RPC)
	}
}

func TestLoadParsesSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	var raw [20]byte
	raw[0] = 0x42
	authority := crypto.MustNewAddress(crypto.CardPrefix, raw[:]).String()
	contents := `ListenAddress = "0.0.0.0:9000"
DataDir = "` + filepath.ToSlash(filepath.Join(dir, "data")) + `"
ChainID = 42
AuthorityAddress = "` + authority + `"
PausedModules = ["market"]

[logging]
Level = "debug"
FilePath = "/var/log/cardmarket.log"
MaxSizeMB = 50

[rpc]
JWTSecret = "shh"
RateLimitPerMinute = 30
Burst = 5
MaxConnections = 10

[indexer]
Enabled = true
DSN = "postgres://cards@localhost/cards"

[telemetry]
Enabled = true
Endpoint = "localhost:4317"
SampleRatio = 0.25
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != "0.0.0.0:9000" || cfg.ChainID != 42 {
		t.Fatalf("unexpected top-level values: %+v", cfg)
	}
	got, err := cfg.Authority()
	if err != nil || got != raw {
		t.Fatalf("authority decode: %x %v", got, err)
	}
	if len(cfg.PausedModules) != 1 || cfg.PausedModules[0] != "market" {
		t.Fatalf("paused modules: %v", cfg.PausedModules)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.MaxSizeMB != 50 || cfg.Logging.Env != "dev" {
		t.Fatalf("logging: %+v", cfg.Logging)
	}
	if cfg.RPC.JWTSecret != "shh" || cfg.RPC.Burst != 5 || cfg.RPC.JWTIssuer != "cardmarket" {
		t.Fatalf("rpc: %+v", cfg.RPC)
	}
	if cfg.RPC.IdempotencyDB != filepath.Join(cfg.DataDir, "idempotency.db") {
		t.Fatalf("idempotency db default: %q", cfg.RPC.IdempotencyDB)
	}
	if !cfg.Indexer.Enabled || cfg.Indexer.DSN == "" {
		t.Fatalf("indexer: %+v", cfg.Indexer)
	}
	if cfg.Telemetry.SampleRatio != 0.25 {
		t.Fatalf("telemetry: %+v", cfg.Telemetry)
	}
	if _, err := os.Stat(filepath.Join(dir, "authority.keystore")); !os.IsNotExist(err) {
		t.Fatalf("keystore should not be generated when authority is configured")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	var raw [20]byte
	raw[19] = 0x01
	authority := crypto.MustNewAddress(crypto.CardPrefix, raw[:]).String()

	cases := map[string]string{
		"unknown key":    "DataDir = \"d\"\nChainID = 1\nAuthorityAddress = \"" + authority + "\"\nBogus = 1\n",
		"zero chain":     "DataDir = \"d\"\nAuthorityAddress = \"" + authority + "\"\n",
		"bad authority":  "DataDir = \"d\"\nChainID = 1\nAuthorityAddress = \"nope\"\n",
		"unknown module": "DataDir = \"d\"\nChainID = 1\nAuthorityAddress = \"" + authority + "\"\nPausedModules = [\"lending\"]\n",
		"sample ratio":   "DataDir = \"d\"\nChainID = 1\nAuthorityAddress = \"" + authority + "\"\n[telemetry]\nSampleRatio = 2.0\n",
		"log level":      "DataDir = \"d\"\nChainID = 1\nAuthorityAddress = \"" + authority + "\"\n[logging]\nLevel = \"loud\"\n",
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
