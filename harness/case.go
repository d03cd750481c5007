package harness

import (
	"github.com/gagarinchain/accountguard/common"
	"github.com/pkg/errors"
)

// ErrNotExploited is returned by an attack that ran without error but found no effect to abuse.
var ErrNotExploited = errors.New("attack had no effect")

type Variant int

const (
	Vulnerable Variant = iota
	Secure
)

var Variants = []Variant{Vulnerable, Secure}

func (v Variant) String() string {
	switch v {
	case Vulnerable:
		return "vulnerable"
	case Secure:
		return "secure"
	}
	return "unknown"
}

// Method returns the instruction name of op in this variant, e.g. withdraw_secure.
func (v Variant) Method(op string) string {
	return op + "_" + v.String()
}

// Attack runs against an Env that Prepare already populated.
type Attack func(v Variant) error

// Case is one attack that must succeed against the vulnerable variant and fail with Expect
// against the secure one, leaving committed state as Prepare left it.
type Case struct {
	Scenario string
	Name     string
	Expect   common.Code
	Prepare  func(env *Env) (Attack, error)
}

type Scenario struct {
	Name        string
	Description string
	Cases       []Case
}

func (s *Scenario) Lookup(name string) (Case, bool) {
	for _, c := range s.Cases {
		if c.Name == name {
			return c, true
		}
	}
	return Case{}, false
}
