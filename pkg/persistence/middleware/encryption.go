package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/ports"
)

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

// Envelope fields of an encrypted snapshot.
const (
	envelopeKey = "__encrypted__"
	keyIDKey    = "__kid__"
)

// sealer is one AES-GCM key with its short fingerprint.
type sealer struct {
	id   string
	aead cipher.AEAD
}

func newSealer(key []byte) (sealer, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return sealer{}, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return sealer{}, err
	}
	sum := sha256.Sum256(key)
	return sealer{id: hex.EncodeToString(sum[:4]), aead: aead}, nil
}

// seal encrypts plaintext bound to docID; the nonce is prepended.
func (s sealer) seal(plaintext []byte, docID string) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, plaintext, []byte(docID)), nil
}

func (s sealer) open(ciphertext []byte, docID string) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(ciphertext) < n {
		return nil, errors.New("ciphertext too short")
	}
	return s.aead.Open(nil, ciphertext[:n], ciphertext[n:], []byte(docID))
}

type encryptionMiddleware struct {
	next ports.SnapshotStore
	keys []sealer // active first, then fallbacks
}

// NewEncryptionMiddleware creates a middleware that encrypts whole snapshots
// with AES-GCM. The ciphertext is bound to the document ID, so an envelope
// copied under another ID does not decrypt. It panics on a key that is not
// 32 bytes.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	keys := make([]sealer, 0, 1+len(config.FallbackKeys))
	for i, k := range append([][]byte{config.ActiveKey}, config.FallbackKeys...) {
		s, err := newSealer(k)
		if err != nil {
			panic(fmt.Sprintf("encryption key %d: %v", i, err))
		}
		keys = append(keys, s)
	}
	return func(next ports.SnapshotStore) ports.SnapshotStore {
		return &encryptionMiddleware{next: next, keys: keys}
	}
}

func (m *encryptionMiddleware) Save(ctx context.Context, snap *domain.Snapshot) error {
	plainText, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	active := m.keys[0]
	ciphertext, err := active.seal(plainText, snap.DocID)
	if err != nil {
		return fmt.Errorf("failed to encrypt snapshot: %w", err)
	}

	// Only the ID, sequence and timestamp stay readable.
	return m.next.Save(ctx, &domain.Snapshot{
		DocID:   snap.DocID,
		Seq:     snap.Seq,
		SavedAt: snap.SavedAt,
		Data: map[string]any{
			envelopeKey: base64.StdEncoding.EncodeToString(ciphertext),
			keyIDKey:    active.id,
		},
	})
}

func (m *encryptionMiddleware) Load(ctx context.Context, docID string) (*domain.Snapshot, error) {
	envelope, err := m.next.Load(ctx, docID)
	if err != nil {
		return nil, err
	}

	// Plain snapshots are rejected: fail secure.
	encoded, ok := envelope.Data[envelopeKey].(string)
	if !ok {
		return nil, errors.New("snapshot is missing encrypted data envelope")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	kid, _ := envelope.Data[keyIDKey].(string)
	plainText, err := m.open(ciphertext, docID, kid)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt snapshot %s: %w", docID, err)
	}

	var real domain.Snapshot
	if err := json.Unmarshal(plainText, &real); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted snapshot: %w", err)
	}
	return &real, nil
}

// open tries the key named by kid first, then every key in order.
func (m *encryptionMiddleware) open(ciphertext []byte, docID, kid string) ([]byte, error) {
	for _, k := range m.keys {
		if k.id == kid {
			if plain, err := k.open(ciphertext, docID); err == nil {
				return plain, nil
			}
			break
		}
	}
	for _, k := range m.keys {
		if plain, err := k.open(ciphertext, docID); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func (m *encryptionMiddleware) Delete(ctx context.Context, docID string) error {
	return m.next.Delete(ctx, docID)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}
