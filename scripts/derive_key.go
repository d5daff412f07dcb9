// derive_key.go prints the BIP-84 path, public key and address on both
// networks for a mnemonic stored in a file.
// Usage: go run scripts/derive_key.go <mnemonicfile>
package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/Klingon-tech/btc-transfer/internal/wallet"
	"github.com/Klingon-tech/btc-transfer/pkg/types"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: derive_key <mnemonicfile>")
		os.Exit(1)
	}
	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	mnemonic := wallet.NormalizeMnemonic(string(data))

	for _, network := range []types.Network{types.Mainnet, types.Testnet} {
		acct, err := wallet.DeriveAccount(mnemonic, os.Getenv("BIP39_PASSPHRASE"), network)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("%s path=%s\n", network, acct.Path)
		fmt.Printf("%s pubkey=%s\n", network, hex.EncodeToString(acct.PublicKey))
		fmt.Printf("%s address=%s\n", network, acct.Address.EncodeAddress())
		acct.Zero()
	}
}
