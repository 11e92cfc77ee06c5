// Package keystore holds session key material for authorities.
package keystore

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"

	"github.com/tyler-smith/go-bip39"

	"github.com/blockberries/rtcore"
	"github.com/blockberries/rtcore/hashing"
	"github.com/blockberries/rtcore/types"
)

// ErrUnknownKey is returned when signing with a key that is not held.
var ErrUnknownKey = errors.New("keystore: unknown key")

type keyID struct {
	keyType types.KeyTypeID
	public  [ed25519.PublicKeySize]byte
}

// Memory is an in-memory ed25519 key store. Seeds are either BIP-39
// mnemonic phrases or raw bytes; the key of each type is derived as
// blake2b-256(seed ‖ key type).
type Memory struct {
	mu   sync.RWMutex
	keys map[keyID]ed25519.PrivateKey
}

var _ rtcore.KeyStore = (*Memory)(nil)

// NewMemory returns an empty key store.
func NewMemory() *Memory {
	return &Memory{keys: make(map[keyID]ed25519.PrivateKey)}
}

// NewMnemonic returns a fresh 24-word BIP-39 phrase.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", fmt.Errorf("keystore: entropy: %w", err)
	}
	return bip39.NewMnemonic(entropy)
}

// seedBytes expands a mnemonic phrase into its BIP-39 seed. Other
// input is used as is.
func seedBytes(seed []byte) []byte {
	if phrase := string(seed); bip39.IsMnemonicValid(phrase) {
		return bip39.NewSeed(phrase, "")
	}
	return seed
}

// Derive returns the ed25519 key of keyType for seed without storing
// it.
func Derive(keyType types.KeyTypeID, seed []byte) ed25519.PrivateKey {
	sk := hashing.Blake2b256(seedBytes(seed), keyType[:])
	return ed25519.NewKeyFromSeed(sk[:])
}

func (m *Memory) Generate(keyType types.KeyTypeID, seed []byte) ([]byte, error) {
	if seed == nil {
		phrase, err := NewMnemonic()
		if err != nil {
			return nil, err
		}
		seed = []byte(phrase)
	}
	priv := Derive(keyType, seed)
	pub := priv.Public().(ed25519.PublicKey)

	id := keyID{keyType: keyType}
	copy(id.public[:], pub)
	m.mu.Lock()
	m.keys[id] = priv
	m.mu.Unlock()
	return append([]byte(nil), pub...), nil
}

func (m *Memory) lookup(keyType types.KeyTypeID, public []byte) (ed25519.PrivateKey, bool) {
	if len(public) != ed25519.PublicKeySize {
		return nil, false
	}
	id := keyID{keyType: keyType}
	copy(id.public[:], public)
	m.mu.RLock()
	defer m.mu.RUnlock()
	priv, ok := m.keys[id]
	return priv, ok
}

func (m *Memory) Sign(keyType types.KeyTypeID, public, msg []byte) ([]byte, error) {
	priv, ok := m.lookup(keyType, public)
	if !ok {
		return nil, fmt.Errorf("%w: %s %x", ErrUnknownKey, keyType, public)
	}
	return ed25519.Sign(priv, msg), nil
}

func (m *Memory) Has(keyType types.KeyTypeID, public []byte) bool {
	_, ok := m.lookup(keyType, public)
	return ok
}

// Len returns the number of keys held.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keys)
}
