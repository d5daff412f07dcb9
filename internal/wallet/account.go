package wallet

import (
	"fmt"

	"github.com/Klingon-tech/btc-transfer/pkg/crypto"
	"github.com/Klingon-tech/btc-transfer/pkg/types"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
)

// Account is the spending key and receive address derived from a mnemonic
// for one network. It only lives for the duration of a single operation.
type Account struct {
	Path       string
	PublicKey  []byte
	PrivateKey *crypto.PrivateKey
	Network    types.Network
	Address    btcutil.Address

	script []byte
}

// DeriveAccount derives the account at m/84'/coin'/0'/0/0, where coin is
// 0 on mainnet and 1 on testnet. The result has a native segwit address.
func DeriveAccount(mnemonic, passphrase string, network types.Network) (*Account, error) {
	if !network.Valid() {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownNetwork, network)
	}

	seed, err := SeedFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	defer zero(seed)

	master, err := NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnusableKey, err)
	}
	defer master.Zero()

	coin := network.CoinType()
	child, err := master.DeriveBIP84(coin, 0, ChangeExternal, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnusableKey, err)
	}
	defer child.Zero()

	priv, err := child.Signer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnusableKey, err)
	}

	pub := child.PublicKeyBytes()
	addr, err := btcutil.NewAddressWitnessPubKeyHash(crypto.PubKeyHash(pub), network.Params())
	if err != nil {
		priv.Zero()
		return nil, fmt.Errorf("%w: %v", ErrUnusableKey, err)
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		priv.Zero()
		return nil, fmt.Errorf("%w: %v", ErrUnusableKey, err)
	}

	return &Account{
		Path:       BIP84Path(coin, 0, ChangeExternal, 0),
		PublicKey:  pub,
		PrivateKey: priv,
		Network:    network,
		Address:    addr,
		script:     script,
	}, nil
}

// Script returns the P2WPKH output script paying to the account. Change
// outputs use it.
func (a *Account) Script() []byte {
	out := make([]byte, len(a.script))
	copy(out, a.script)
	return out
}

// SpendType is the script type of outputs paying to the account.
func (a *Account) SpendType() types.SpendType {
	return types.SpendTypeWitnessV0KeyHash
}

// Zero scrubs the private key. The account is unusable for signing after.
func (a *Account) Zero() {
	if a.PrivateKey != nil {
		a.PrivateKey.Zero()
	}
}
