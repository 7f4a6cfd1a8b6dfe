package keys

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// Mnemonic encodes the private scalar as a 24-word BIP-39 phrase.
func Mnemonic(k *Key) (string, error) {
	if k == nil || k.d == nil {
		return "", ErrMissingPrivateKey
	}
	return bip39.NewMnemonic(k.d.FillBytes(make([]byte, ScalarSize)))
}

func FromMnemonic(mnemonic string) (*Key, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	entropy, err := bip39.EntropyFromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}
	if len(entropy) != ScalarSize {
		return nil, fmt.Errorf("%w: mnemonic carries %d bytes", ErrPrivateKeyRange, len(entropy))
	}
	return NewPrivate(new(big.Int).SetBytes(entropy))
}
