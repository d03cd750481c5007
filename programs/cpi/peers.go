package cpi

import (
	"github.com/gagarinchain/accountguard/programs/framework"
	"github.com/gagarinchain/accountguard/programs/token"
	"github.com/gagarinchain/accountguard/state"
)

// OraclePrice is what the pinned oracle reports.
const OraclePrice uint64 = 100

// The programs below stand in for the counterparties of a call. Each sees the accounts
// source token account, destination token account, source owner, token program.

// Swap moves the requested amount from source to destination.
func Swap(ctx *state.Context) error {
	args := &AmountArgs{}
	if err := state.DecodeArgs(ctx.Data, args); err != nil {
		return err
	}
	return forward(ctx, args.Amount)
}

// Drain moves whole balance of source to destination using whatever signer it was lent.
func Drain(ctx *state.Context) error {
	if err := ctx.Require(4); err != nil {
		return err
	}
	balance, err := token.Balance(ctx.Accounts[0])
	if err != nil {
		return err
	}
	log.Warningf("Draining %d from %v", balance, ctx.Accounts[0].Key)
	return forward(ctx, balance)
}

func forward(ctx *state.Context, amount uint64) error {
	if err := ctx.Require(4); err != nil {
		return err
	}
	source, destination, owner, tokenProgram := ctx.Accounts[0], ctx.Accounts[1], ctx.Accounts[2], ctx.Accounts[3]
	data, err := token.TransferData(amount)
	if err != nil {
		return err
	}
	return ctx.Invoke(tokenProgram, token.TransferMetas(source.Key, destination.Key, owner.Key), data)
}

func Oracle(ctx *state.Context) error {
	framework.ReturnU64(ctx, OraclePrice)
	return nil
}

// FakeOracle reports a price of one.
func FakeOracle(ctx *state.Context) error {
	framework.ReturnU64(ctx, 1)
	return nil
}
