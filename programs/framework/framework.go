// Package framework holds the handler plumbing shared by the scenario programs.
package framework

import (
	"encoding/binary"

	"github.com/gagarinchain/accountguard/account"
	"github.com/gagarinchain/accountguard/guard"
	"github.com/gagarinchain/accountguard/state"
	"github.com/gagliardetto/solana-go"
)

// CreatePDA creates a record at the canonical address derived from seeds, paid by payer. It fails
// with AlreadyInitialized when anything already lives at that address, so a derived record can be
// created only once.
func CreatePDA(payer, target *account.Account, programID solana.PublicKey, seeds [][]byte, build func(bump uint8) account.Record) error {
	if err := guard.RequireSigner(payer); err != nil {
		return err
	}
	bump, err := guard.RequireCanonicalPDA(target, seeds, programID)
	if err != nil {
		return err
	}
	if err := guard.RequireUninitialized(target, programID); err != nil {
		return err
	}
	rec := build(bump)
	space, err := account.Space(rec)
	if err != nil {
		return err
	}
	if err := state.CreateAccount(payer, target, space, programID); err != nil {
		return err
	}
	return account.Init(target, programID, rec)
}

// CreateAt creates a record at a caller chosen address. target must sign, as a fresh keypair does.
func CreateAt(payer, target *account.Account, programID solana.PublicKey, rec account.Record) error {
	if err := guard.RequireSigner(payer); err != nil {
		return err
	}
	if err := guard.RequireSigner(target); err != nil {
		return err
	}
	space, err := account.Space(rec)
	if err != nil {
		return err
	}
	if err := state.CreateAccount(payer, target, space, programID); err != nil {
		return err
	}
	return account.Init(target, programID, rec)
}

func ReturnU64(ctx *state.Context, v uint64) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	ctx.SetReturnData(b)
}

func DecodeU64(b []byte) uint64 {
	if len(b) < 8 {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}
