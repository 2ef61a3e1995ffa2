// Package crypt seals and opens messages exchanged over a relay channel.
//
// A sealed message is encrypted with a key derived from the ECDH shared
// secret of the sender's private key and the recipient's public key, so
// either side can open it with its own private key and the peer's public key.
package crypt

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/protonlink/webauth/keygen"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrIncorrectKeys is returned when a sealed message can't be opened with
// the given keys.
var ErrIncorrectKeys error = fmt.Errorf("incorrect keys for sealed message")

// SealedMessage is an encrypted payload addressed to a single peer.
type SealedMessage struct {
	// From is the sender's public key.
	From       string `json:"from"`
	Nonce      uint64 `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
	// Checksum lets the recipient reject a message sealed for another key
	// before attempting decryption.
	Checksum uint32 `json:"checksum"`
}

// Seal encrypts payload for peer.
func Seal(payload []byte, priv *secp256k1.PrivateKey, peer *secp256k1.PublicKey) (*SealedMessage, error) {
	var nb [8]byte
	if _, err := rand.Read(nb[:]); err != nil {
		return nil, err
	}
	nonce := binary.LittleEndian.Uint64(nb[:])
	aead, iv, checksum, err := derive(priv, peer, nonce)
	if err != nil {
		return nil, err
	}
	return &SealedMessage{
		From:       keygen.FormatPublicKey(priv.PubKey()),
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, iv, payload, nil),
		Checksum:   checksum,
	}, nil
}

// Open decrypts a message that was sealed for priv by peer. The peer is
// taken from the message itself.
func Open(msg *SealedMessage, priv *secp256k1.PrivateKey) ([]byte, error) {
	peer, err := keygen.ParsePublicKey(msg.From)
	if err != nil {
		return nil, err
	}
	return OpenFrom(msg, priv, peer)
}

// OpenFrom decrypts a message that was sealed for priv by the given peer.
func OpenFrom(msg *SealedMessage, priv *secp256k1.PrivateKey, peer *secp256k1.PublicKey) ([]byte, error) {
	aead, iv, checksum, err := derive(priv, peer, msg.Nonce)
	if err != nil {
		return nil, err
	}
	if checksum != msg.Checksum {
		return nil, ErrIncorrectKeys
	}
	b, err := aead.Open(nil, iv, msg.Ciphertext, nil)
	if err != nil {
		return nil, ErrIncorrectKeys
	}
	return b, nil
}

// Marshal returns the wire form of the message.
func (m *SealedMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// Unmarshal parses the wire form of a message.
func Unmarshal(b []byte) (*SealedMessage, error) {
	var m SealedMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func derive(priv *secp256k1.PrivateKey, peer *secp256k1.PublicKey, nonce uint64) (aead cipher.AEAD, iv []byte, checksum uint32, err error) {
	shared := secp256k1.GenerateSharedSecret(priv, peer)
	var nb [8]byte
	binary.LittleEndian.PutUint64(nb[:], nonce)
	h := sha512.New()
	h.Write(nb[:])
	h.Write(shared)
	km := h.Sum(nil)

	key := km[:chacha20poly1305.KeySize]
	iv = km[chacha20poly1305.KeySize : chacha20poly1305.KeySize+chacha20poly1305.NonceSize]
	sum := sha256.Sum256(km)
	checksum = binary.LittleEndian.Uint32(sum[:4])

	c, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, nil, 0, err
	}
	return c, iv, checksum, nil
}
