// Package keygen generates the ephemeral secp256k1 key pairs used to address
// and seal messages between an application and a wallet.
package keygen

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Key string prefixes.
const (
	PublicKeyPrefix  = "PUB_K1_"
	PrivateKeyPrefix = "PVT_K1_"
)

// ErrMalformedKey is used when a key string can't be parsed.
var ErrMalformedKey = errors.New("malformed key")

// KeyPair is a secp256k1 key pair. A fresh pair is generated for every login
// attempt.
type KeyPair struct {
	private *secp256k1.PrivateKey
}

// New generates a new random key pair.
func New() (*KeyPair, error) {
	pk, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("could not generate key: %w", err)
	}
	return &KeyPair{private: pk}, nil
}

// FromPrivateKey restores a key pair from its string form.
func FromPrivateKey(s string) (*KeyPair, error) {
	pk, err := ParsePrivateKey(s)
	if err != nil {
		return nil, err
	}
	return &KeyPair{private: pk}, nil
}

// PrivateKey returns the private key.
func (kp *KeyPair) PrivateKey() *secp256k1.PrivateKey {
	return kp.private
}

// PublicKey returns the public key.
func (kp *KeyPair) PublicKey() *secp256k1.PublicKey {
	return kp.private.PubKey()
}

// PrivateKeyString returns the private key in its string form.
func (kp *KeyPair) PrivateKeyString() string {
	return FormatPrivateKey(kp.private)
}

// PublicKeyString returns the public key in its string form.
func (kp *KeyPair) PublicKeyString() string {
	return FormatPublicKey(kp.PublicKey())
}

// Zero clears the private key from memory.
func (kp *KeyPair) Zero() {
	kp.private.Zero()
}

// FormatPublicKey returns the string form of a compressed public key.
func FormatPublicKey(pub *secp256k1.PublicKey) string {
	return PublicKeyPrefix + hex.EncodeToString(pub.SerializeCompressed())
}

// FormatPrivateKey returns the string form of a private key.
func FormatPrivateKey(pk *secp256k1.PrivateKey) string {
	return PrivateKeyPrefix + hex.EncodeToString(pk.Serialize())
}

// ParsePublicKey parses a public key in its string form. A bare hex string
// is accepted too.
func ParsePublicKey(s string) (*secp256k1.PublicKey, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, PublicKeyPrefix))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedKey, err)
	}
	pub, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedKey, err)
	}
	return pub, nil
}

// ParsePrivateKey parses a private key in its string form.
func ParsePrivateKey(s string) (*secp256k1.PrivateKey, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, PrivateKeyPrefix))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedKey, err)
	}
	if len(b) != secp256k1.PrivKeyBytesLen {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedKey, secp256k1.PrivKeyBytesLen, len(b))
	}
	return secp256k1.PrivKeyFromBytes(b), nil
}
