package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cardmarket/crypto"

	"github.com/BurntSushi/toml"
)

// DefaultChainID is written into freshly generated configuration files.
const DefaultChainID = 1337

type Config struct {
	ListenAddress         string   `toml:"ListenAddress"`
	DataDir               string   `toml:"DataDir"`
	GenesisFile           string   `toml:"GenesisFile"`
	ChainID               uint64   `toml:"ChainID"`
	AuthorityAddress      string   `toml:"AuthorityAddress"`
	AuthorityKeystorePath string   `toml:"AuthorityKeystorePath"`
	PausedModules         []string `toml:"PausedModules"`

	Logging   Logging   `toml:"logging"`
	RPC       RPC       `toml:"rpc"`
	Indexer   Indexer   `toml:"indexer"`
	Telemetry Telemetry `toml:"telemetry"`
}

// Load loads the configuration from the given path. A missing file is
// replaced by a default configuration with a freshly generated authority
// keystore next to it.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s: unknown key %s", path, undecoded[0])
	}

	if strings.TrimSpace(cfg.AuthorityAddress) == "" {
		if err := ensureAuthority(path, cfg); err != nil {
			return nil, err
		}
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":8080"
	}
	if cfg.PausedModules == nil {
		cfg.PausedModules = []string{}
	}
	if cfg.Logging.Env == "" {
		cfg.Logging.Env = "dev"
	}
	if cfg.RPC.JWTIssuer == "" {
		cfg.RPC.JWTIssuer = "cardmarket"
	}
	if cfg.RPC.ReadTimeoutSecs == 0 {
		cfg.RPC.ReadTimeoutSecs = 15
	}
	if cfg.RPC.WriteTimeoutSecs == 0 {
		cfg.RPC.WriteTimeoutSecs = 15
	}
	if cfg.RPC.IdempotencyDB == "" && cfg.DataDir != "" {
		cfg.RPC.IdempotencyDB = filepath.Join(cfg.DataDir, "idempotency.db")
	}
}

// ensureAuthority derives AuthorityAddress from the authority keystore,
// generating the keystore when it does not exist yet.
func ensureAuthority(configPath string, cfg *Config) error {
	keystorePath := cfg.AuthorityKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	var key *crypto.PrivateKey
	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, err = crypto.GenerateKeystore(keystorePath, "")
		if err != nil {
			return err
		}
	} else if err != nil {
		return err
	} else {
		key, err = crypto.LoadFromKeystore(keystorePath, "")
		if err != nil {
			return fmt.Errorf("load authority keystore: %w", err)
		}
	}

	cfg.AuthorityKeystorePath = keystorePath
	cfg.AuthorityAddress = key.PubKey().Address().String()
	return persist(configPath, cfg)
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		ListenAddress: ":8080",
		DataDir:       "./cardmarket-data",
		ChainID:       DefaultChainID,
		PausedModules: []string{},
		Logging:       Logging{Level: "info", Env: "dev"},
		RPC: RPC{
			JWTIssuer:          "cardmarket",
			RateLimitPerMinute: 120,
			Burst:              20,
			MaxConnections:     256,
		},
		Indexer:   Indexer{Enabled: true},
		Telemetry: Telemetry{SampleRatio: 1},
	}
	if err := ensureAuthority(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "authority.keystore")
}
