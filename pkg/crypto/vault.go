// Package crypto provides encryption utilities for sensitive data.
//
// Secrets are persisted in the ansible-vault 1.1 AES256 envelope so that
// payloads written by this process are readable by stock ansible tooling
// and vice versa.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// VaultSentinel is the literal header every encrypted value starts with.
const VaultSentinel = "$ANSIBLE_VAULT"

const (
	vaultHeader     = "$ANSIBLE_VAULT;1.1;AES256"
	saltSize        = 32
	keySize         = 32
	ivSize          = 16
	kdfIterations   = 10000
	vaultLineLength = 80
)

var (
	// ErrInvalidKey is returned when the vault secret is empty.
	ErrInvalidKey = errors.New("crypto: invalid vault secret")
	// ErrInvalidEnvelope is returned when the ciphertext envelope is malformed.
	ErrInvalidEnvelope = errors.New("crypto: invalid vault envelope")
	// ErrDecryptionFailed is returned when HMAC verification fails.
	ErrDecryptionFailed = errors.New("crypto: decryption failed")
)

// Encryptor provides encryption and decryption capabilities.
type Encryptor interface {
	// EncryptString encrypts plaintext into a vault envelope.
	EncryptString(plaintext string) (string, error)
	// DecryptString decrypts a vault envelope back to plaintext.
	DecryptString(encoded string) (string, error)
}

// NoOpEncryptor is an Encryptor that does not encrypt (for tests).
type NoOpEncryptor struct{}

// EncryptString returns the plaintext as-is.
func (n *NoOpEncryptor) EncryptString(plaintext string) (string, error) {
	return plaintext, nil
}

// DecryptString returns the encoded string as-is.
func (n *NoOpEncryptor) DecryptString(encoded string) (string, error) {
	return encoded, nil
}

// NewNoOpEncryptor creates a no-op encryptor for tests.
func NewNoOpEncryptor() Encryptor {
	return &NoOpEncryptor{}
}

// Vault encrypts and decrypts ansible-vault 1.1 AES256 envelopes keyed by
// a process-wide secret.
type Vault struct {
	secret []byte
}

// Ensure Vault implements Encryptor.
var _ Encryptor = (*Vault)(nil)

// NewVault creates a Vault keyed by the given secret.
func NewVault(secret string) (*Vault, error) {
	if secret == "" {
		return nil, ErrInvalidKey
	}
	return &Vault{secret: []byte(secret)}, nil
}

// IsEncrypted reports whether the value carries the vault sentinel.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, VaultSentinel)
}

// EncryptString encrypts a string into a vault envelope.
func (v *Vault) EncryptString(plaintext string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("crypto: failed to generate salt: %w", err)
	}

	aesKey, hmacKey, iv := v.deriveKeys(salt)

	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return "", fmt.Errorf("crypto: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCTR(block, iv).XORKeyStream(ciphertext, padded)

	mac := hmac.New(sha256.New, hmacKey)
	mac.Write(ciphertext)

	// inner layout: hex(salt) \n hex(hmac) \n hex(ciphertext), hexlified again
	inner := strings.Join([]string{
		hex.EncodeToString(salt),
		hex.EncodeToString(mac.Sum(nil)),
		hex.EncodeToString(ciphertext),
	}, "\n")
	body := hex.EncodeToString([]byte(inner))

	var sb strings.Builder
	sb.WriteString(vaultHeader)
	for i := 0; i < len(body); i += vaultLineLength {
		end := i + vaultLineLength
		if end > len(body) {
			end = len(body)
		}
		sb.WriteByte('\n')
		sb.WriteString(body[i:end])
	}
	return sb.String(), nil
}

// DecryptString decrypts a vault envelope back to plaintext.
func (v *Vault) DecryptString(encoded string) (string, error) {
	lines := strings.Split(strings.TrimSpace(encoded), "\n")
	if len(lines) < 2 || !strings.HasPrefix(lines[0], VaultSentinel) {
		return "", ErrInvalidEnvelope
	}

	inner, err := hex.DecodeString(strings.Join(lines[1:], ""))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}

	parts := bytes.SplitN(inner, []byte("\n"), 3)
	if len(parts) != 3 {
		return "", ErrInvalidEnvelope
	}

	salt, err := hex.DecodeString(string(parts[0]))
	if err != nil {
		return "", fmt.Errorf("%w: bad salt: %v", ErrInvalidEnvelope, err)
	}
	expectedMAC, err := hex.DecodeString(string(parts[1]))
	if err != nil {
		return "", fmt.Errorf("%w: bad hmac: %v", ErrInvalidEnvelope, err)
	}
	ciphertext, err := hex.DecodeString(string(parts[2]))
	if err != nil {
		return "", fmt.Errorf("%w: bad ciphertext: %v", ErrInvalidEnvelope, err)
	}

	aesKey, hmacKey, iv := v.deriveKeys(salt)

	mac := hmac.New(sha256.New, hmacKey)
	mac.Write(ciphertext)
	if subtle.ConstantTimeCompare(mac.Sum(nil), expectedMAC) != 1 {
		return "", ErrDecryptionFailed
	}

	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return "", fmt.Errorf("crypto: %w", err)
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCTR(block, iv).XORKeyStream(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return string(unpadded), nil
}

// deriveKeys derives the AES key, HMAC key and IV from the secret and salt.
func (v *Vault) deriveKeys(salt []byte) (aesKey, hmacKey, iv []byte) {
	derived := pbkdf2.Key(v.secret, salt, kdfIterations, 2*keySize+ivSize, sha256.New)
	return derived[:keySize], derived[keySize : 2*keySize], derived[2*keySize:]
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize || padding > len(data) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-padding], nil
}
