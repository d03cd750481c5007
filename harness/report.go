package harness

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gagarinchain/accountguard/account"
	"github.com/gagarinchain/accountguard/common"
	"github.com/pkg/errors"
)

type Outcome struct {
	Scenario   string `yaml:"scenario"`
	Case       string `yaml:"case"`
	Expect     string `yaml:"expect"`
	Vulnerable string `yaml:"vulnerable"`
	Secure     string `yaml:"secure"`
	Pass       bool   `yaml:"pass"`
	Reason     string `yaml:"reason,omitempty"`

	// final committed accounts of the secure run
	Accounts []*account.Account `yaml:"-"`
}

type Report struct {
	Outcomes []*Outcome `yaml:"outcomes"`
	Passed   int        `yaml:"passed"`
	Failed   int        `yaml:"failed"`
}

func (r *Report) OK() bool {
	return r.Failed == 0
}

// Runner runs cases, each variant in a fresh Env. Envs are in memory unless Dir is set, in which
// case every one is kept under Dir/<scenario>/<case>/<variant>.
type Runner struct {
	Dir string
}

func Run(scenarios []*Scenario) *Report {
	return (&Runner{}).Run(scenarios)
}

func RunCase(c Case) *Outcome {
	return (&Runner{}).RunCase(c)
}

// Run executes every case of every scenario.
func (rn *Runner) Run(scenarios []*Scenario) *Report {
	r := &Report{}
	for _, s := range scenarios {
		for _, c := range s.Cases {
			o := rn.RunCase(c)
			if o.Pass {
				r.Passed++
			} else {
				r.Failed++
				log.Warningf("%v/%v failed: %v", o.Scenario, o.Case, o.Reason)
			}
			r.Outcomes = append(r.Outcomes, o)
		}
	}
	log.Infof("Ran %d cases, %d passed, %d failed", len(r.Outcomes), r.Passed, r.Failed)
	return r
}

func (rn *Runner) RunCase(c Case) *Outcome {
	o := &Outcome{Scenario: c.Scenario, Case: c.Name, Expect: c.Expect.String()}

	if _, err := rn.attempt(c, Vulnerable); err != nil {
		o.Vulnerable = describe(err)
		o.Reason = fmt.Sprintf("attack on vulnerable variant failed: %v", err)
		return o
	}
	o.Vulnerable = "exploited"

	env, err := rn.attempt(c, Secure)
	if env != nil {
		o.Accounts = env.Snapshot()
		env.Close()
	}
	switch {
	case err == nil:
		o.Secure = "exploited"
		o.Reason = "attack on secure variant succeeded"
	case errors.Cause(err) == errStateChanged:
		o.Secure = describe(err)
		o.Reason = "secure variant failed but changed committed state"
	default:
		o.Secure = describe(err)
		if code, ok := common.CodeOf(err); !ok || code != c.Expect {
			o.Reason = fmt.Sprintf("secure variant failed with %v, want %v", o.Secure, c.Expect)
		} else {
			o.Pass = true
		}
	}
	return o
}

var errStateChanged = errors.New("committed state changed by failed attack")

// attempt runs the attack in a fresh env. For the vulnerable variant the env is closed here.
func (rn *Runner) attempt(c Case, v Variant) (*Env, error) {
	env, err := rn.env(c, v)
	if err != nil {
		return nil, err
	}
	attack, err := c.Prepare(env)
	if err != nil {
		env.Close()
		return nil, errors.Wrap(err, "prepare")
	}
	snapshot := env.Snapshot()

	err = attack(v)
	if err != nil && !env.Unchanged(snapshot) {
		err = errors.Wrapf(errStateChanged, "%v", err)
	}
	if v == Vulnerable {
		env.Close()
		return nil, err
	}
	return env, err
}

func (rn *Runner) env(c Case, v Variant) (*Env, error) {
	if rn.Dir == "" {
		return NewEnv()
	}
	dir := filepath.Join(rn.Dir, c.Scenario, c.Name, v.String())
	if err := os.RemoveAll(dir); err != nil {
		return nil, errors.Wrapf(err, "can't clean %v", dir)
	}
	return NewEnvAt(dir)
}

func describe(err error) string {
	if code, ok := common.CodeOf(err); ok {
		return code.String()
	}
	return errors.Cause(err).Error()
}
