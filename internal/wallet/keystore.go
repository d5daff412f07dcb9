package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const keystoreVersion = 2

// keystoreFile is the on-disk JSON format for an encrypted wallet.
type keystoreFile struct {
	Version           int       `json:"version"`
	CreatedAt         time.Time `json:"created_at"`
	EncryptedMnemonic []byte    `json:"encrypted_mnemonic"`
	Address           string    `json:"address"` // receive address, public metadata
}

// WalletInfo is the public metadata of a stored wallet. Reading it needs
// no password.
type WalletInfo struct {
	Name      string
	Address   string
	CreatedAt time.Time
}

// Keystore manages encrypted mnemonics on disk, one file per wallet.
type Keystore struct {
	path string
}

// NewKeystore creates a keystore that reads/writes to the given directory.
// The directory is created if it doesn't exist.
func NewKeystore(path string) (*Keystore, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	return &Keystore{path: path}, nil
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid wallet name %q", name)
	}
	return nil
}

func (ks *Keystore) walletPath(name string) string {
	return filepath.Join(ks.path, name+".wallet")
}

// Create encrypts mnemonic under password and writes a new wallet file.
// The mnemonic is validated first so a typo is never stored.
func (ks *Keystore) Create(name, mnemonic, address string, password []byte, params EncryptionParams) error {
	if err := validateName(name); err != nil {
		return err
	}
	mnemonic = NormalizeMnemonic(mnemonic)
	if !ValidateMnemonic(mnemonic) {
		return ErrInvalidMnemonic
	}

	path := ks.walletPath(name)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %q", ErrWalletExists, name)
	}

	plain := []byte(mnemonic)
	defer zero(plain)
	encrypted, err := Encrypt(plain, password, params)
	if err != nil {
		return fmt.Errorf("encrypt mnemonic: %w", err)
	}

	kf := keystoreFile{
		Version:           keystoreVersion,
		CreatedAt:         time.Now().UTC(),
		EncryptedMnemonic: encrypted,
		Address:           address,
	}
	return ks.writeFile(path, &kf)
}

// Load decrypts a wallet and returns its mnemonic.
func (ks *Keystore) Load(name string, password []byte) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	kf, err := ks.readFile(ks.walletPath(name))
	if err != nil {
		return "", err
	}

	plain, err := Decrypt(kf.EncryptedMnemonic, password)
	if err != nil {
		return "", fmt.Errorf("decrypt wallet %q: %w", name, err)
	}
	defer zero(plain)
	return string(plain), nil
}

// Info returns a wallet's public metadata.
func (ks *Keystore) Info(name string) (*WalletInfo, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	kf, err := ks.readFile(ks.walletPath(name))
	if err != nil {
		return nil, err
	}
	return &WalletInfo{Name: name, Address: kf.Address, CreatedAt: kf.CreatedAt}, nil
}

// List returns the names of all wallet files in the keystore.
func (ks *Keystore) List() ([]string, error) {
	entries, err := os.ReadDir(ks.path)
	if err != nil {
		return nil, fmt.Errorf("read keystore dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if ext := filepath.Ext(name); ext == ".wallet" {
			names = append(names, name[:len(name)-len(ext)])
		}
	}
	return names, nil
}

// Delete removes a wallet file.
func (ks *Keystore) Delete(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	path := ks.walletPath(name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("%w: %q", ErrWalletNotFound, name)
	}
	return os.Remove(path)
}

func (ks *Keystore) writeFile(path string, kf *keystoreFile) error {
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal wallet: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write wallet: %w", err)
	}
	return nil
}

func (ks *Keystore) readFile(path string) (*keystoreFile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrWalletNotFound, filepath.Base(path))
	}
	if err != nil {
		return nil, fmt.Errorf("read wallet: %w", err)
	}
	var kf keystoreFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parse wallet: %w", err)
	}
	if kf.Version != keystoreVersion {
		return nil, fmt.Errorf("unsupported wallet version: %d", kf.Version)
	}
	return &kf, nil
}
