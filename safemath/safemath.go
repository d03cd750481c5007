// Package safemath wraps unsigned 64-bit arithmetic so that out of range input is always
// reported and never silently wrapped or truncated.
package safemath

import (
	"math"
	"math/bits"

	"github.com/gagarinchain/accountguard/common"
)

// BpsDenominator is the number of basis points in one whole.
const BpsDenominator uint64 = 10000

func CheckedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, common.ErrOverflow
	}
	return sum, nil
}

// CheckedSub fails with InsufficientFunds when b > a.
func CheckedSub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, common.ErrInsufficientFunds
	}
	return diff, nil
}

func CheckedMul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, common.ErrOverflow
	}
	return lo, nil
}

func CheckedDiv(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, common.ErrDivisionByZero
	}
	return a / b, nil
}

// NarrowCastU32 converts a to uint32 or fails with CastOverflow.
func NarrowCastU32(a uint64) (uint32, error) {
	if a > math.MaxUint32 {
		return 0, common.ErrCastOverflow
	}
	return uint32(a), nil
}

// CeilDiv computes ceil(a/b). It is exact over the whole u64 range, where (a+b-1)/b would overflow.
func CeilDiv(a, b uint64) (uint64, error) {
	q, err := CheckedDiv(a, b)
	if err != nil {
		return 0, err
	}
	if a%b != 0 {
		q++
	}
	return q, nil
}

// BpsFee computes ceil(amount*bps/10000).
func BpsFee(amount uint64, bps uint16) (uint64, error) {
	n, err := CheckedMul(amount, uint64(bps))
	if err != nil {
		return 0, err
	}
	return CeilDiv(n, BpsDenominator)
}

// BpsFeeWithMinimum is BpsFee that never charges less than one unit on a nonzero amount.
func BpsFeeWithMinimum(amount uint64, bps uint16) (uint64, error) {
	fee, err := BpsFee(amount, bps)
	if err != nil {
		return 0, err
	}
	if amount > 0 && fee == 0 {
		fee = 1
	}
	return fee, nil
}
