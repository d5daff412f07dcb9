package wallet

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/Klingon-tech/btc-transfer/pkg/types"
)

func TestDeriveAccount_Mainnet(t *testing.T) {
	acct, err := DeriveAccount(testMnemonic, "", types.Mainnet)
	if err != nil {
		t.Fatalf("DeriveAccount() error: %v", err)
	}
	defer acct.Zero()

	if got := acct.Address.EncodeAddress(); got != "bc1qcr8te4kr609gcawutmrza0j4xv80jy8z306fyu" {
		t.Errorf("address = %s", got)
	}
	if got := hex.EncodeToString(acct.PublicKey); got != "0330d54fd0dd420a6e5f8d3624f5f3482cae350f79d5f0753bf5beef9c2d91af3c" {
		t.Errorf("public key = %s", got)
	}
	if acct.Path != "m/84'/0'/0'/0/0" {
		t.Errorf("path = %s", acct.Path)
	}

	st, err := types.ClassifyScript(acct.Script())
	if err != nil {
		t.Fatalf("ClassifyScript(account script): %v", err)
	}
	if st != acct.SpendType() {
		t.Errorf("account script type = %s, want %s", st, acct.SpendType())
	}
}

func TestDeriveAccount_NetworksDiffer(t *testing.T) {
	main, err := DeriveAccount(testMnemonic, "", types.Mainnet)
	if err != nil {
		t.Fatalf("DeriveAccount(mainnet) error: %v", err)
	}
	test, err := DeriveAccount(testMnemonic, "", types.Testnet)
	if err != nil {
		t.Fatalf("DeriveAccount(testnet) error: %v", err)
	}

	if !strings.HasPrefix(test.Address.EncodeAddress(), "tb1q") {
		t.Errorf("testnet address = %s, want tb1q prefix", test.Address)
	}
	if test.Path != "m/84'/1'/0'/0/0" {
		t.Errorf("testnet path = %s", test.Path)
	}
	if hex.EncodeToString(main.PublicKey) == hex.EncodeToString(test.PublicKey) {
		t.Error("mainnet and testnet should derive different keys")
	}
	if !test.Address.IsForNet(types.Testnet.Params()) {
		t.Error("testnet address should be for testnet")
	}
}

func TestDeriveAccount_Deterministic(t *testing.T) {
	a1, _ := DeriveAccount(testMnemonic, "pass", types.Testnet)
	a2, _ := DeriveAccount(testMnemonic, "pass", types.Testnet)
	if a1.Address.EncodeAddress() != a2.Address.EncodeAddress() {
		t.Error("derivation should be deterministic")
	}
	a3, _ := DeriveAccount(testMnemonic, "other", types.Testnet)
	if a1.Address.EncodeAddress() == a3.Address.EncodeAddress() {
		t.Error("passphrase should change the account")
	}
}

func TestDeriveAccount_Errors(t *testing.T) {
	if _, err := DeriveAccount("abandon abandon", "", types.Mainnet); !errors.Is(err, ErrInvalidMnemonic) {
		t.Errorf("bad mnemonic: got %v, want ErrInvalidMnemonic", err)
	}
	if _, err := DeriveAccount(testMnemonic, "", types.Network("regtest")); !errors.Is(err, types.ErrUnknownNetwork) {
		t.Errorf("bad network: got %v, want ErrUnknownNetwork", err)
	}
}

func TestAccount_Zero(t *testing.T) {
	acct, err := DeriveAccount(testMnemonic, "", types.Mainnet)
	if err != nil {
		t.Fatalf("DeriveAccount() error: %v", err)
	}
	acct.Zero()

	for _, b := range acct.PrivateKey.Serialize() {
		if b != 0 {
			t.Fatal("private key should be zeroed")
		}
	}
}

func TestAccount_ScriptIsCopy(t *testing.T) {
	acct, _ := DeriveAccount(testMnemonic, "", types.Mainnet)
	s := acct.Script()
	s[0] = 0xFF
	if acct.Script()[0] == 0xFF {
		t.Error("Script() should return a copy")
	}
}
