package config

import (
	"fmt"
	"strings"

	"cardmarket/crypto"
)

var knownModules = map[string]struct{}{
	"bank":   {},
	"assets": {},
	"market": {},
}

// Validate checks the loaded configuration for values the node cannot run
// with.
func (c *Config) Validate() error {
	if c.ChainID == 0 {
		return fmt.Errorf("ChainID must be non-zero")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("DataDir must be set")
	}
	if _, err := crypto.ParseAddress(c.AuthorityAddress); err != nil {
		return fmt.Errorf("AuthorityAddress: %w", err)
	}
	for _, module := range c.PausedModules {
		if _, ok := knownModules[strings.ToLower(strings.TrimSpace(module))]; !ok {
			return fmt.Errorf("PausedModules: unknown module %q", module)
		}
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("Logging.Level: unknown level %q", c.Logging.Level)
	}
	if c.RPC.RateLimitPerMinute < 0 || c.RPC.Burst < 0 {
		return fmt.Errorf("rpc: rate limits must not be negative")
	}
	if c.RPC.MaxConnections < 0 {
		return fmt.Errorf("rpc: MaxConnections must not be negative")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio must be within [0,1]")
	}
	return nil
}

// Authority returns the decoded royalty authority address.
func (c *Config) Authority() ([20]byte, error) {
	return crypto.ParseAddress(c.AuthorityAddress)
}
