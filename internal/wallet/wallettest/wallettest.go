// ABOUTME: Throwaway wallets for tests that need real personal_sign signatures
// ABOUTME: Signs with the same digest the verifier recovers from

package wallettest

import (
	"crypto/ecdsa"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/oneblock/oneblock-gateway/internal/wallet"
)

// Wallet is a generated secp256k1 key and its canonical address.
type Wallet struct {
	Key     *ecdsa.PrivateKey
	Address string
}

// New generates a fresh wallet or fails the test.
func New(t testing.TB) *Wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	return &Wallet{
		Key:     key,
		Address: strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex()),
	}
}

// Sign returns a 0x-hex personal_sign signature with v in {27, 28},
// matching what browser wallets produce.
func (w *Wallet) Sign(t testing.TB, message string) string {
	t.Helper()
	sig, err := crypto.Sign(wallet.PersonalMessageHash(message), w.Key)
	if err != nil {
		t.Fatalf("signing message: %v", err)
	}
	sig[64] += 27
	return hexutil.Encode(sig)
}
