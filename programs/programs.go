// Package programs collects the scenario programs.
package programs

import (
	"github.com/gagarinchain/accountguard/harness"
	"github.com/gagarinchain/accountguard/programs/closing"
	"github.com/gagarinchain/accountguard/programs/cosplay"
	"github.com/gagarinchain/accountguard/programs/cpi"
	"github.com/gagarinchain/accountguard/programs/overflow"
	"github.com/gagarinchain/accountguard/programs/reinit"
	"github.com/gagarinchain/accountguard/programs/signer"
	"github.com/gagarinchain/accountguard/programs/validation"
	"github.com/pkg/errors"
)

var ErrUnknownScenario = errors.New("unknown scenario")

// Scenarios returns every scenario at its default program id, in catalogue order.
func Scenarios() []*harness.Scenario {
	return []*harness.Scenario{
		signer.Scenario(signer.New(signer.ProgramID)),
		validation.Scenario(validation.New(validation.ProgramID)),
		overflow.Scenario(overflow.New(overflow.ProgramID)),
		cpi.Scenario(cpi.New(cpi.ProgramID)),
		reinit.Scenario(reinit.New(reinit.ProgramID)),
		cosplay.Scenario(cosplay.New(cosplay.ProgramID)),
		closing.Scenario(closing.New(closing.ProgramID)),
	}
}

// Select returns the scenarios named in names, or all of them when names is empty.
func Select(names ...string) ([]*harness.Scenario, error) {
	all := Scenarios()
	if len(names) == 0 {
		return all, nil
	}
	byName := make(map[string]*harness.Scenario, len(all))
	for _, s := range all {
		byName[s.Name] = s
	}
	var selected []*harness.Scenario
	for _, n := range names {
		s, f := byName[n]
		if !f {
			return nil, errors.Wrapf(ErrUnknownScenario, "%v", n)
		}
		selected = append(selected, s)
	}
	return selected, nil
}
