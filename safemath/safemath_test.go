package safemath

import (
	"math"
	"testing"

	"github.com/gagarinchain/accountguard/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckedAdd(t *testing.T) {
	v, err := CheckedAdd(40, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), v)

	v, err = CheckedAdd(math.MaxUint64, 1)
	assert.Equal(t, common.ErrOverflow, err)
	assert.Equal(t, uint64(0), v)

	v, err = CheckedAdd(math.MaxUint64, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), v)
}

func TestCheckedSub(t *testing.T) {
	_, err := CheckedSub(100, 101)
	assert.Equal(t, common.ErrInsufficientFunds, err)

	v, err := CheckedSub(100, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v)
}

func TestCheckedMul(t *testing.T) {
	_, err := CheckedMul(math.MaxUint64/2+1, 2)
	assert.Equal(t, common.ErrOverflow, err)

	v, err := CheckedMul(1<<32, 1<<31)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<63), v)
}

func TestCheckedDiv(t *testing.T) {
	_, err := CheckedDiv(1, 0)
	assert.Equal(t, common.ErrDivisionByZero, err)

	v, err := CheckedDiv(7, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), v)
}

func TestNarrowCastU32(t *testing.T) {
	v, err := NarrowCastU32(math.MaxUint32)
	require.NoError(t, err)
	assert.Equal(t, uint32(math.MaxUint32), v)

	_, err = NarrowCastU32(math.MaxUint32 + 1)
	assert.Equal(t, common.ErrCastOverflow, err)

	_, err = NarrowCastU32(5_000_000_000)
	assert.Equal(t, common.ErrCastOverflow, err)
}

func TestCeilDiv(t *testing.T) {
	cases := []struct {
		a, b, want uint64
	}{
		{0, 3, 0},
		{1, 3, 1},
		{3, 3, 1},
		{4, 3, 2},
		{9900, 10000, 1},
		{math.MaxUint64, 1, math.MaxUint64},
	}
	for _, c := range cases {
		v, err := CeilDiv(c.a, c.b)
		require.NoError(t, err)
		assert.Equal(t, c.want, v, "ceil(%d/%d)", c.a, c.b)
	}

	_, err := CeilDiv(10, 0)
	assert.Equal(t, common.ErrDivisionByZero, err)

	v, err := CeilDiv(math.MaxUint64, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(1)<<63, v)
}

func TestCeilDiv_NeverBelowMultiplicand(t *testing.T) {
	pairs := [][2]uint64{{1, 1}, {7, 3}, {99, 100}, {12345, 10000}, {1 << 20, 977}, {6148914691236517205, 3}, {math.MaxUint64, 1}}
	for _, p := range pairs {
		m, err := CheckedMul(p[0], p[1])
		require.NoError(t, err)
		q, err := CeilDiv(m, p[1])
		require.NoError(t, err)
		assert.True(t, q >= p[0])
	}
}

func TestBpsFee(t *testing.T) {
	fee, err := BpsFee(99, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), fee)

	fee, err = BpsFee(10000, 30)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), fee)

	fee, err = BpsFee(0, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), fee)

	_, err = BpsFee(math.MaxUint64, 2)
	assert.Equal(t, common.ErrOverflow, err)
}

func TestBpsFeeWithMinimum(t *testing.T) {
	fee, err := BpsFeeWithMinimum(5, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), fee)

	fee, err = BpsFeeWithMinimum(0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), fee)

	fee, err = BpsFeeWithMinimum(1_000_000, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000), fee)
}
