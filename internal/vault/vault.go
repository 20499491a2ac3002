package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"msggw/internal/model"
)

const (
	keySize    = 32
	nonceSize  = 12
	iterations = 10000
	keySalt    = "msggw-connector-credentials-v1"
)

// Decrypter is the surface the dispatch core consumes; vault construction
// and encryption belong to admin tooling.
type Decrypter interface {
	Decrypt(ciphertext string) (model.Credentials, error)
}

type Vault struct {
	gcm cipher.AEAD
}

// New derives an AES-256-GCM key from the configured secret.
func New(secret string) (*Vault, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("vault secret must be at least 32 characters")
	}

	key := pbkdf2.Key([]byte(secret), []byte(keySalt), iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	return &Vault{gcm: gcm}, nil
}

// Encrypt serializes the credential map and seals it. The ciphertext is
// base64(nonce || sealed) for single-column storage.
func (v *Vault) Encrypt(creds model.Credentials) (string, error) {
	plaintext, err := json.Marshal(creds)
	if err != nil {
		return "", fmt.Errorf("marshal credentials: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := v.gcm.Seal(nil, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(append(nonce, sealed...)), nil
}

// Decrypt opens a blob produced by Encrypt. Any tampering or a wrong secret
// fails authentication; callers treat that as a fatal configuration error.
func (v *Vault) Decrypt(ciphertext string) (model.Credentials, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(data) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := v.gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt credentials: %w", err)
	}

	var creds model.Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, fmt.Errorf("unmarshal credentials: %w", err)
	}
	return creds, nil
}
