package account

import (
	"bytes"

	"github.com/gagarinchain/accountguard/common"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

const TokenAccountSize = 165

const (
	TokenStateUninitialized uint8 = iota
	TokenStateInitialized
	TokenStateFrozen
)

// TokenAccount is the token program's account layout. Only the fields this module reads are
// interpreted, the rest is kept for a byte exact round trip.
type TokenAccount struct {
	Mint                 solana.PublicKey
	Owner                solana.PublicKey
	Amount               uint64
	DelegateOption       uint32
	Delegate             solana.PublicKey
	State                uint8
	IsNativeOption       uint32
	IsNative             uint64
	DelegatedAmount      uint64
	CloseAuthorityOption uint32
	CloseAuthority       solana.PublicKey
}

// LoadTokenAccount decodes acc as a token account owned by the token program.
func LoadTokenAccount(acc *Account) (*TokenAccount, error) {
	if !acc.Owner.Equals(solana.TokenProgramID) {
		return nil, errors.Wrapf(common.ErrInvalidOwner, "token account %v is owned by %v", acc.Key, acc.Owner)
	}
	if len(acc.Data) < TokenAccountSize {
		return nil, errors.Wrapf(common.ErrAccountNotInitialized, "token account %v has %d bytes", acc.Key, len(acc.Data))
	}
	t := &TokenAccount{}
	if err := bin.NewBorshDecoder(acc.Data[:TokenAccountSize]).Decode(t); err != nil {
		return nil, errors.Wrapf(common.ErrTypeMismatch, "can't decode token account %v: %v", acc.Key, err)
	}
	if t.State == TokenStateUninitialized {
		return nil, errors.Wrapf(common.ErrAccountNotInitialized, "token account %v", acc.Key)
	}
	return t, nil
}

// NewTokenAccount builds an initialized token account for owner holding amount of mint.
func NewTokenAccount(key, mint, owner solana.PublicKey, amount uint64) (*Account, error) {
	t := TokenAccount{Mint: mint, Owner: owner, Amount: amount, State: TokenStateInitialized}
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(t); err != nil {
		return nil, err
	}
	lamports, err := RentExemptMinimum(TokenAccountSize)
	if err != nil {
		return nil, err
	}
	return NewAccount(key, solana.TokenProgramID, lamports, buf.Bytes()), nil
}

// StoreTokenAccount writes t back into the token account layout of acc.
func StoreTokenAccount(acc *Account, t *TokenAccount) error {
	if len(acc.Data) < TokenAccountSize {
		return errors.Wrapf(ErrAccountTooSmall, "token account %v has %d bytes", acc.Key, len(acc.Data))
	}
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(*t); err != nil {
		return err
	}
	copy(acc.Data, buf.Bytes())
	return nil
}
