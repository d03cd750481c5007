package state

import (
	"testing"

	"github.com/gagarinchain/accountguard/account"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type calleeMock struct {
	mock.Mock
}

func (m *calleeMock) handle(ctx *Context) error {
	var signers []solana.PublicKey
	for _, acc := range ctx.Accounts {
		if acc.IsSigner {
			signers = append(signers, acc.Key)
		}
	}
	args := m.Called(ctx.ProgramID, signers)
	return args.Error(0)
}

func TestInvoke_ForwardsSigner(t *testing.T) {
	e := newExecutor(t)
	caller := generate()
	callee := generate()
	require.NoError(t, e.DB().Put(account.NewProgram(callee)))
	user := fund(t, e, 1)

	m := &calleeMock{}
	m.On("handle", callee, []solana.PublicKey{user}).Return(nil)
	e.Register(callee, m.handle)
	e.Register(caller, func(ctx *Context) error {
		return ctx.Invoke(ctx.Accounts[1], []AccountMeta{Writable(ctx.Accounts[0].Key, true)}, []byte{1})
	})

	r, err := e.Execute(NewTransaction(Instruction{
		ProgramID: caller,
		Accounts:  []AccountMeta{Writable(user, true), Readonly(callee, false)},
	}))
	require.NoError(t, err)
	m.AssertExpectations(t)
	require.Len(t, r.Invocations, 1)
	assert.Equal(t, caller, r.Invocations[0].Caller)
	assert.Equal(t, 1, r.Invocations[0].Depth)
}

func TestInvoke_PrivilegeEscalation(t *testing.T) {
	e := newExecutor(t)
	caller := generate()
	callee := generate()
	require.NoError(t, e.DB().Put(account.NewProgram(callee)))
	victim := fund(t, e, 1)

	m := &calleeMock{}
	e.Register(callee, m.handle)
	e.Register(caller, func(ctx *Context) error {
		return ctx.Invoke(ctx.Accounts[1], []AccountMeta{Writable(ctx.Accounts[0].Key, true)}, nil)
	})

	_, err := e.Execute(NewTransaction(Instruction{
		ProgramID: caller,
		Accounts:  []AccountMeta{Writable(victim, false), Readonly(callee, false)},
	}))
	assert.Equal(t, ErrPrivilegeEscalation, errors.Cause(err))
	m.AssertNotCalled(t, "handle", mock.Anything, mock.Anything)
}

func TestInvoke_DerivedSigner(t *testing.T) {
	e := newExecutor(t)
	caller := generate()
	callee := generate()
	require.NoError(t, e.DB().Put(account.NewProgram(callee)))
	seeds := [][]byte{[]byte("authority")}
	pda, bump, err := solana.FindProgramAddress(seeds, caller)
	require.NoError(t, err)

	m := &calleeMock{}
	m.On("handle", callee, []solana.PublicKey{pda}).Return(nil)
	e.Register(callee, m.handle)
	e.Register(caller, func(ctx *Context) error {
		signer := [][]byte{[]byte("authority"), {bump}}
		return ctx.Invoke(ctx.Accounts[1], []AccountMeta{Writable(pda, true)}, nil, signer)
	})

	_, err = e.Execute(NewTransaction(Instruction{
		ProgramID: caller,
		Accounts:  []AccountMeta{Writable(pda, false), Readonly(callee, false)},
	}))
	require.NoError(t, err)
	m.AssertExpectations(t)
}

func TestInvoke_SeedsOfOtherProgramGrantNothing(t *testing.T) {
	e := newExecutor(t)
	caller := generate()
	other := generate()
	callee := generate()
	require.NoError(t, e.DB().Put(account.NewProgram(callee)))
	seeds := [][]byte{[]byte("authority")}
	pda, bump, err := solana.FindProgramAddress(seeds, other)
	require.NoError(t, err)

	e.Register(callee, (&calleeMock{}).handle)
	e.Register(caller, func(ctx *Context) error {
		signer := [][]byte{[]byte("authority"), {bump}}
		return ctx.Invoke(ctx.Accounts[1], []AccountMeta{Writable(pda, true)}, nil, signer)
	})

	_, err = e.Execute(NewTransaction(Instruction{
		ProgramID: caller,
		Accounts:  []AccountMeta{Writable(pda, false), Readonly(callee, false)},
	}))
	assert.Error(t, err)
}

func TestInvoke_NotExecutable(t *testing.T) {
	e := newExecutor(t)
	caller := generate()
	fake := fund(t, e, 1)
	e.Register(caller, func(ctx *Context) error {
		return ctx.Invoke(ctx.Accounts[0], nil, nil)
	})

	_, err := e.Execute(NewTransaction(Instruction{ProgramID: caller, Accounts: []AccountMeta{Readonly(fake, false)}}))
	assert.Equal(t, ErrProgramNotExecutable, errors.Cause(err))
}

func TestInvoke_MissingAccount(t *testing.T) {
	e := newExecutor(t)
	caller := generate()
	callee := generate()
	require.NoError(t, e.DB().Put(account.NewProgram(callee)))
	e.Register(callee, (&calleeMock{}).handle)
	e.Register(caller, func(ctx *Context) error {
		return ctx.Invoke(ctx.Accounts[0], []AccountMeta{Readonly(generate(), false)}, nil)
	})

	_, err := e.Execute(NewTransaction(Instruction{ProgramID: caller, Accounts: []AccountMeta{Readonly(callee, false)}}))
	assert.Equal(t, ErrMissingAccount, errors.Cause(err))
}

func TestInvoke_DepthLimit(t *testing.T) {
	e := newExecutor(t)
	self := generate()
	require.NoError(t, e.DB().Put(account.NewProgram(self)))
	e.Register(self, func(ctx *Context) error {
		return ctx.Invoke(ctx.Accounts[0], []AccountMeta{Readonly(self, false)}, nil)
	})

	_, err := e.Execute(NewTransaction(Instruction{ProgramID: self, Accounts: []AccountMeta{Readonly(self, false)}}))
	assert.Equal(t, ErrCallDepth, errors.Cause(err))
}
