// Package wallet verifies that a wallet address signed a message.
//
// # Signatures
//
// Wallets sign with personal_sign (EIP-191). The signed digest is
//
//	keccak256("\x19Ethereum Signed Message:\n" + len(message) + message)
//
// and the signature is 65 bytes r||s||v, hex encoded with a 0x prefix.
// Both v conventions (0/1 and 27/28) are accepted.
//
// # Addresses
//
// Addresses are the durable identity key for the gateway. NormalizeAddress
// turns any accepted spelling (checksummed, upper case, missing 0x) into the
// canonical lowercase form that the store indexes on.
//
// Verify never returns an error: any malformed input is a failed
// verification, and callers treat false exactly like an unknown address.
package wallet
