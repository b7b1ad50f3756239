// Package credstore encrypts and stores per-user LLM API keys. Keys are
// sealed with ChaCha20-Poly1305 before they reach the persistence layer, so
// the database never holds plaintext credentials.
package credstore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrNoKeys means the user has no stored keys.
var ErrNoKeys = errors.New("no stored api keys")

// KeyStore is the slice of persistence the manager needs: opaque blob
// storage keyed by user.
type KeyStore interface {
	SetAPIKeyBlob(ctx context.Context, userID string, blob []byte) error
	GetAPIKeyBlob(ctx context.Context, userID string) ([]byte, error)
}

// Keys is the decrypted key material for one user.
type Keys struct {
	Gemini    string    `json:"gemini,omitempty"`
	OpenAI    string    `json:"openai,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Status is the redacted view of stored keys, safe to show the user.
type Status struct {
	HasGemini bool      `json:"has_gemini"`
	HasOpenAI bool      `json:"has_openai"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Manager seals and unseals key material against a KeyStore.
type Manager struct {
	store KeyStore
	aead  func() (aead, error)
}

type aead interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	NonceSize() int
}

// NewManager derives the sealing key from secret. The secret comes from
// configuration; changing it makes previously stored keys unreadable.
func NewManager(store KeyStore, secret string) (*Manager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("encryption secret required")
	}

	key := sha256.Sum256([]byte(secret))
	return &Manager{
		store: store,
		aead: func() (aead, error) {
			return chacha20poly1305.New(key[:])
		},
	}, nil
}

// Save merges the provided keys into the user's stored set: empty fields
// keep their previous values, so a user can add an OpenAI key without
// re-entering their Gemini key.
func (m *Manager) Save(ctx context.Context, userID string, update Keys) error {
	current, err := m.Get(ctx, userID)
	if err != nil && !errors.Is(err, ErrNoKeys) {
		return err
	}
	if current == nil {
		current = &Keys{}
	}

	if k := strings.TrimSpace(update.Gemini); k != "" {
		current.Gemini = k
	}
	if k := strings.TrimSpace(update.OpenAI); k != "" {
		current.OpenAI = k
	}
	current.UpdatedAt = time.Now().UTC()

	blob, err := m.seal(current)
	if err != nil {
		return err
	}
	if err := m.store.SetAPIKeyBlob(ctx, userID, blob); err != nil {
		return fmt.Errorf("persist api keys: %w", err)
	}
	return nil
}

// Get returns the user's decrypted keys, ErrNoKeys if none are stored.
func (m *Manager) Get(ctx context.Context, userID string) (*Keys, error) {
	blob, err := m.store.GetAPIKeyBlob(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load api keys: %w", err)
	}
	if len(blob) == 0 {
		return nil, ErrNoKeys
	}
	return m.open(blob)
}

// GetStatus returns the redacted view, never the keys themselves.
func (m *Manager) GetStatus(ctx context.Context, userID string) (*Status, error) {
	keys, err := m.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNoKeys) {
			return &Status{}, nil
		}
		return nil, err
	}
	return &Status{
		HasGemini: keys.Gemini != "",
		HasOpenAI: keys.OpenAI != "",
		UpdatedAt: keys.UpdatedAt,
	}, nil
}

// Delete removes all stored keys for the user by overwriting with an empty
// sealed set.
func (m *Manager) Delete(ctx context.Context, userID string) error {
	blob, err := m.seal(&Keys{UpdatedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := m.store.SetAPIKeyBlob(ctx, userID, blob); err != nil {
		return fmt.Errorf("clear api keys: %w", err)
	}
	return nil
}

// seal encrypts keys as nonce || ciphertext.
func (m *Manager) seal(keys *Keys) ([]byte, error) {
	plaintext, err := json.Marshal(keys)
	if err != nil {
		return nil, fmt.Errorf("marshal keys: %w", err)
	}

	cipher, err := m.aead()
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	nonce := make([]byte, cipher.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return cipher.Seal(nonce, nonce, plaintext, nil), nil
}

// open decrypts a blob produced by seal.
func (m *Manager) open(blob []byte) (*Keys, error) {
	cipher, err := m.aead()
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	if len(blob) < cipher.NonceSize() {
		return nil, errors.New("stored key blob too short")
	}

	nonce, ciphertext := blob[:cipher.NonceSize()], blob[cipher.NonceSize():]
	plaintext, err := cipher.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt api keys: %w", err)
	}

	var keys Keys
	if err := json.Unmarshal(plaintext, &keys); err != nil {
		return nil, fmt.Errorf("unmarshal keys: %w", err)
	}
	return &keys, nil
}
