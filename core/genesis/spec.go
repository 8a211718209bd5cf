package genesis

import (
	"bytes"
	"fmt"
	"math/big"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"cardmarket/crypto"
)

// Spec is the initial ledger state.
type Spec struct {
	ChainID   uint64        `yaml:"chainId"`
	Authority string        `yaml:"authority,omitempty"`
	Accounts  []AccountSpec `yaml:"accounts"`
}

// AccountSpec funds one address. Balance is a base-10 integer string.
type AccountSpec struct {
	Address string `yaml:"address"`
	Balance string `yaml:"balance"`
}

// Allocation is a validated AccountSpec.
type Allocation struct {
	Address [20]byte
	Balance *big.Int
}

// LoadSpec reads and validates a YAML genesis file. Unknown keys are
// rejected.
func LoadSpec(path string) (*Spec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	return ParseSpec(raw)
}

// ParseSpec decodes and validates a YAML genesis document.
func ParseSpec(raw []byte) (*Spec, error) {
	var spec Spec
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode genesis spec: %w", err)
	}
	if _, err := spec.Allocations(); err != nil {
		return nil, fmt.Errorf("invalid genesis spec: %w", err)
	}
	if spec.Authority != "" {
		if _, err := crypto.ParseAddress(spec.Authority); err != nil {
			return nil, fmt.Errorf("invalid genesis spec: authority: %w", err)
		}
	}
	return &spec, nil
}

// Allocations validates the account list. Duplicate addresses are an error.
func (s *Spec) Allocations() ([]Allocation, error) {
	seen := make(map[[20]byte]struct{}, len(s.Accounts))
	out := make([]Allocation, 0, len(s.Accounts))
	for i, acc := range s.Accounts {
		addr, err := crypto.ParseAddress(strings.TrimSpace(acc.Address))
		if err != nil {
			return nil, fmt.Errorf("accounts[%d]: %w", i, err)
		}
		if _, dup := seen[addr]; dup {
			return nil, fmt.Errorf("accounts[%d]: duplicate address %s", i, acc.Address)
		}
		seen[addr] = struct{}{}
		balance, ok := new(big.Int).SetString(strings.TrimSpace(acc.Balance), 10)
		if !ok || balance.Sign() < 0 {
			return nil, fmt.Errorf("accounts[%d]: invalid balance %q", i, acc.Balance)
		}
		out = append(out, Allocation{Address: addr, Balance: balance})
	}
	return out, nil
}

// AuthorityAddress returns the authority named by the spec, if any.
func (s *Spec) AuthorityAddress() ([20]byte, bool) {
	if s == nil || s.Authority == "" {
		return [20]byte{}, false
	}
	addr, err := crypto.ParseAddress(s.Authority)
	if err != nil {
		return [20]byte{}, false
	}
	return addr, true
}
