package account

import (
	"fmt"

	"github.com/gagarinchain/accountguard/safemath"
	"github.com/gagliardetto/solana-go"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("account")

const (
	// StorageOverhead is the per account overhead charged by rent on top of the payload.
	StorageOverhead     uint64 = 128
	LamportsPerByteYear uint64 = 3480
	ExemptionYears      uint64 = 2
)

// Account is a reference to one account as supplied by the host for a single call.
// IsSigner and IsExecutable come from the host and are never derived from Data.
type Account struct {
	Key          solana.PublicKey
	Owner        solana.PublicKey
	Data         []byte
	IsSigner     bool
	IsExecutable bool
	Lamports     uint64
}

func NewAccount(key solana.PublicKey, owner solana.PublicKey, lamports uint64, data []byte) *Account {
	return &Account{Key: key, Owner: owner, Lamports: lamports, Data: data}
}

// NewWallet returns a system owned, data-less account holding lamports.
func NewWallet(key solana.PublicKey, lamports uint64) *Account {
	return NewAccount(key, solana.SystemProgramID, lamports, nil)
}

// NewProgram returns an executable account for the program id.
func NewProgram(id solana.PublicKey) *Account {
	acc := NewAccount(id, solana.BPFLoaderUpgradeableProgramID, 1, nil)
	acc.IsExecutable = true
	return acc
}

func (a *Account) Copy() *Account {
	var data []byte
	if a.Data != nil {
		data = make([]byte, len(a.Data))
		copy(data, a.Data)
	}
	return &Account{
		Key:          a.Key,
		Owner:        a.Owner,
		Data:         data,
		IsSigner:     a.IsSigner,
		IsExecutable: a.IsExecutable,
		Lamports:     a.Lamports,
	}
}

// IsZeroed reports whether every payload byte is zero. An empty payload is zeroed.
func (a *Account) IsZeroed() bool {
	for _, b := range a.Data {
		if b != 0 {
			return false
		}
	}
	return true
}

// IsVacant reports whether the address holds no account at all.
func (a *Account) IsVacant() bool {
	return a.Owner.Equals(solana.SystemProgramID) && a.IsZeroed() && !a.IsExecutable
}

func (a *Account) String() string {
	return fmt.Sprintf("Account{key: %v, owner: %v, lamports: %d, len: %d, signer: %t, executable: %t}",
		a.Key, a.Owner, a.Lamports, len(a.Data), a.IsSigner, a.IsExecutable)
}

// RentExemptMinimum returns the balance an account of the given payload size needs to be rent exempt.
func RentExemptMinimum(space uint64) (uint64, error) {
	n, err := safemath.CheckedAdd(StorageOverhead, space)
	if err != nil {
		return 0, err
	}
	n, err = safemath.CheckedMul(n, LamportsPerByteYear)
	if err != nil {
		return 0, err
	}
	return safemath.CheckedMul(n, ExemptionYears)
}
