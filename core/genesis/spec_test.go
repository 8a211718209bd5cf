package genesis

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"cardmarket/core/types"
	"cardmarket/crypto"
)

type recordingWriter struct {
	order    [][20]byte
	balances map[[20]byte]*big.Int
}

func (w *recordingWriter) PutAccount(addr []byte, acc *types.Account) error {
	var key [20]byte
	copy(key[:], addr)
	w.order = append(w.order, key)
	w.balances[key] = acc.Balance
	return nil
}

func TestLoadSpecAndApply(t *testing.T) {
	low := crypto.FormatAddress([20]byte{0x01})
	high := crypto.FormatAddress([20]byte{0xff})
	doc := fmt.Sprintf("chainId: 7\nauthority: %s\naccounts:\n  - address: %s\n    balance: \"500\"\n  - address: %s\n    balance: \"1000000000000000000000\"\n", low, high, low)
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	spec, err := LoadSpec(path)
	require.NoError(t, err)
	require.Equal(t, uint64(7), spec.ChainID)
	authority, ok := spec.AuthorityAddress()
	require.True(t, ok)
	require.Equal(t, [20]byte{0x01}, authority)

	w := &recordingWriter{balances: make(map[[20]byte]*big.Int)}
	require.NoError(t, Apply(spec, w))
	require.Equal(t, [][20]byte{{0x01}, {0xff}}, w.order)
	require.Equal(t, "1000000000000000000000", w.balances[[20]byte{0x01}].String())
	require.Equal(t, int64(500), w.balances[[20]byte{0xff}].Int64())
}

func TestParseSpecRejectsBadInput(t *testing.T) {
	addr := crypto.FormatAddress([20]byte{0x01})
	cases := map[string]string{
		"unknown field": "chainId: 1\nvalidators: []\n",
		"bad balance":   fmt.Sprintf("accounts:\n  - address: %s\n    balance: \"-1\"\n", addr),
		"bad address":   "accounts:\n  - address: nhb1qqqq\n    balance: \"1\"\n",
		"duplicate":     fmt.Sprintf("accounts:\n  - address: %[1]s\n    balance: \"1\"\n  - address: %[1]s\n    balance: \"2\"\n", addr),
		"bad authority": "authority: card1nope\n",
	}
	for name, doc := range cases {
		if _, err := ParseSpec([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error for %q", name, strings.TrimSpace(doc))
		}
	}
}
