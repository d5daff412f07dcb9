package wallet

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrDecrypt is returned when a sealed mnemonic cannot be opened, which
// almost always means a wrong password.
var ErrDecrypt = errors.New("wrong password or corrupted wallet")

// Encryption constants.
const (
	SaltSize = 32
	// Sealed format: [salt(32)][memory(4)][iterations(4)][parallelism(1)][nonce(24)][ciphertext...]
	headerSize = SaltSize + 4 + 4 + 1
)

// EncryptionParams holds Argon2id parameters.
type EncryptionParams struct {
	Memory      uint32 // in KiB
	Iterations  uint32
	Parallelism uint8
}

// DefaultParams returns recommended Argon2id parameters.
func DefaultParams() EncryptionParams {
	return EncryptionParams{
		Memory:      64 * 1024, // 64 MB
		Iterations:  3,
		Parallelism: 4,
	}
}

func (p EncryptionParams) validate() error {
	if p.Memory == 0 || p.Iterations == 0 || p.Parallelism == 0 {
		return fmt.Errorf("argon2 params must be non-zero: %+v", p)
	}
	return nil
}

func deriveKey(password, salt []byte, params EncryptionParams) []byte {
	return argon2.IDKey(password, salt, params.Iterations, params.Memory, params.Parallelism, chacha20poly1305.KeySize)
}

// Encrypt seals data with password using Argon2id + XChaCha20-Poly1305.
// The KDF parameters travel in the header so Decrypt needs only the password.
func Encrypt(data, password []byte, params EncryptionParams) ([]byte, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	key := deriveKey(password, salt, params)
	defer zero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, headerSize+len(nonce)+len(data)+aead.Overhead())
	out = append(out, salt...)
	out = binary.LittleEndian.AppendUint32(out, params.Memory)
	out = binary.LittleEndian.AppendUint32(out, params.Iterations)
	out = append(out, params.Parallelism)
	out = append(out, nonce...)
	// The header is authenticated so tampered KDF params fail to open.
	return aead.Seal(out, nonce, data, out[:headerSize]), nil
}

// Decrypt opens data sealed by Encrypt with the given password.
func Decrypt(encrypted, password []byte) ([]byte, error) {
	nonceSize := chacha20poly1305.NonceSizeX
	minSize := headerSize + nonceSize + chacha20poly1305.Overhead
	if len(encrypted) < minSize {
		return nil, fmt.Errorf("encrypted data too short: %d bytes, need at least %d", len(encrypted), minSize)
	}

	params := EncryptionParams{
		Memory:      binary.LittleEndian.Uint32(encrypted[SaltSize:]),
		Iterations:  binary.LittleEndian.Uint32(encrypted[SaltSize+4:]),
		Parallelism: encrypted[SaltSize+8],
	}
	if err := params.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	salt := encrypted[:SaltSize]
	nonce := encrypted[headerSize : headerSize+nonceSize]
	ciphertext := encrypted[headerSize+nonceSize:]

	key := deriveKey(password, salt, params)
	defer zero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, encrypted[:headerSize])
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}
