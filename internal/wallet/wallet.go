// ABOUTME: Wallet signature verification for the sign-in challenge
// ABOUTME: Recovers the personal_sign signer and compares it to the claimed address

package wallet

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// SignatureLength is the size of a recoverable secp256k1 signature (r||s||v).
const SignatureLength = 65

// personalMessagePrefix is prepended to every message before hashing (EIP-191).
const personalMessagePrefix = "\x19Ethereum Signed Message:\n"

var (
	ErrInvalidAddress   = errors.New("invalid wallet address")
	ErrInvalidSignature = errors.New("invalid signature")
)

// NormalizeAddress returns the canonical lowercase 0x-prefixed form of a
// 20-byte hex address.
func NormalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return strings.ToLower(common.HexToAddress(address).Hex()), nil
}

// PersonalMessageHash computes the EIP-191 digest a wallet signs for message.
func PersonalMessageHash(message string) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(personalMessagePrefix))
	h.Write([]byte(strconv.Itoa(len(message))))
	h.Write([]byte(message))
	return h.Sum(nil)
}

// RecoverAddress returns the canonical address that produced signature over message.
func RecoverAddress(message, signature string) (string, error) {
	sig, err := decodeSignature(signature)
	if err != nil {
		return "", err
	}

	pub, err := crypto.SigToPub(PersonalMessageHash(message), sig)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return strings.ToLower(crypto.PubkeyToAddress(*pub).Hex()), nil
}

// Verify reports whether signature is a personal_sign signature over message
// produced by address. It fails closed on any malformed input.
func Verify(address, message, signature string) (ok bool) {
	// The curve code must not take the request down on hostile input.
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	want, err := NormalizeAddress(address)
	if err != nil {
		return false
	}
	got, err := RecoverAddress(message, signature)
	if err != nil {
		return false
	}
	return got == want
}

// decodeSignature parses a hex signature and folds v into the 0/1 recovery id.
func decodeSignature(signature string) ([]byte, error) {
	signature = strings.TrimSpace(signature)
	if !strings.HasPrefix(signature, "0x") && !strings.HasPrefix(signature, "0X") {
		signature = "0x" + signature
	}

	raw, err := hexutil.Decode(signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(raw) != SignatureLength {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(raw))
	}

	sig := make([]byte, SignatureLength)
	copy(sig, raw)
	switch v := sig[64]; v {
	case 0, 1:
	case 27, 28:
		sig[64] = v - 27
	default:
		return nil, fmt.Errorf("%w: recovery id %d", ErrInvalidSignature, v)
	}
	return sig, nil
}
