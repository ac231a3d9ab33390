// Package signer holds the disbursement authority's key material. The rest of
// the faucet only sees the Signer port: an address and a signing capability.
package signer

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/crypto/ripemd160"

	"faucetd/internal/faucet"
	"faucetd/internal/faucet/ledger"
)

// Signing and hashing prefixes per the target ledger's conventions: payloads
// are domain-separated before signing/hashing so a signature over one object
// type can never be replayed as another.
var (
	signPrefix = []byte("STX\x00")
	hashPrefix = []byte("TXN\x00")
)

// Local signs with an in-process ed25519 key derived from a configured seed.
// Custody of the seed (vaulting, rotation) is outside this package's scope.
type Local struct {
	priv    ed25519.PrivateKey
	pubHex  string
	address faucet.Address
}

// FromSeed derives the authority keypair from a seed string. Derivation is
// deterministic: the same seed always yields the same address.
func FromSeed(seed string) (*Local, error) {
	if seed == "" {
		return nil, fmt.Errorf("signing seed is required")
	}
	digest := sha512.Sum512([]byte(seed))
	priv := ed25519.NewKeyFromSeed(digest[:ed25519.SeedSize])
	pub := priv.Public().(ed25519.PublicKey)

	// Ledger convention: ed25519 public keys carry a 0xED marker byte.
	marked := append([]byte{0xED}, pub...)

	return &Local{
		priv:    priv,
		pubHex:  strings.ToUpper(hex.EncodeToString(marked)),
		address: deriveAddress(marked),
	}, nil
}

// Address returns the authority's account address.
func (s *Local) Address() faucet.Address { return s.address }

// Sign fills in the signing public key, signs the serialized payment, and
// returns the submit blob plus the transaction hash used for status polling.
func (s *Local) Sign(tx *ledger.Payment) (string, string, error) {
	if tx == nil {
		return "", "", fmt.Errorf("nil payment")
	}
	tx.SigningPubKey = s.pubHex
	tx.TxnSignature = ""

	unsigned, err := json.Marshal(tx)
	if err != nil {
		return "", "", fmt.Errorf("serialize payment: %w", err)
	}
	sig := ed25519.Sign(s.priv, append(append([]byte{}, signPrefix...), unsigned...))
	tx.TxnSignature = strings.ToUpper(hex.EncodeToString(sig))

	signed, err := json.Marshal(tx)
	if err != nil {
		return "", "", fmt.Errorf("serialize signed payment: %w", err)
	}

	blob := strings.ToUpper(hex.EncodeToString(signed))
	hash := txHash(signed)
	return blob, hash, nil
}

// txHash is the first half of sha512 over the prefixed signed transaction,
// hex-encoded. This is the identifier the ledger indexes transactions by.
func txHash(signed []byte) string {
	h := sha512.Sum512(append(append([]byte{}, hashPrefix...), signed...))
	return strings.ToUpper(hex.EncodeToString(h[:32]))
}

// deriveAddress computes the classic address for a marked public key:
// base58check(0x00 || ripemd160(sha256(pubkey))) in the ledger's alphabet.
func deriveAddress(markedPub []byte) faucet.Address {
	sha := sha256.Sum256(markedPub)
	rip := ripemd160.New()
	rip.Write(sha[:])
	accountID := rip.Sum(nil)

	payload := append([]byte{0x00}, accountID...)
	check1 := sha256.Sum256(payload)
	check2 := sha256.Sum256(check1[:])
	full := append(payload, check2[:4]...)

	return faucet.Address(encodeBase58(full))
}

// rippleAlphabet is the base58 alphabet used by the target ledger. Note 'r'
// in position zero, which is why account addresses start with it.
const rippleAlphabet = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"

func encodeBase58(b []byte) string {
	zeros := 0
	for zeros < len(b) && b[zeros] == 0 {
		zeros++
	}

	digits := []byte{}
	for _, c := range b {
		carry := int(c)
		for i := 0; i < len(digits); i++ {
			carry += int(digits[i]) << 8
			digits[i] = byte(carry % 58)
			carry /= 58
		}
		for carry > 0 {
			digits = append(digits, byte(carry%58))
			carry /= 58
		}
	}

	var sb strings.Builder
	for i := 0; i < zeros; i++ {
		sb.WriteByte(rippleAlphabet[0])
	}
	for i := len(digits) - 1; i >= 0; i-- {
		sb.WriteByte(rippleAlphabet[digits[i]])
	}
	return sb.String()
}
