package programs

import (
	"testing"

	"github.com/gagarinchain/accountguard/harness"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_Unique(t *testing.T) {
	names := make(map[string]bool)
	cases := make(map[string]bool)
	for _, s := range Scenarios() {
		assert.False(t, names[s.Name], s.Name)
		names[s.Name] = true
		assert.NotEmpty(t, s.Cases, s.Name)
		for _, c := range s.Cases {
			assert.Equal(t, s.Name, c.Scenario)
			key := s.Name + "/" + c.Name
			assert.False(t, cases[key], key)
			cases[key] = true
		}
	}
	assert.Len(t, names, 7)
}

func TestSelect(t *testing.T) {
	all, err := Select()
	require.NoError(t, err)
	assert.Len(t, all, 7)

	one, err := Select("type-cosplay")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "type-cosplay", one[0].Name)

	_, err = Select("nope")
	assert.ErrorIs(t, err, ErrUnknownScenario)
}

func TestRun_All(t *testing.T) {
	r := harness.Run(Scenarios())
	for _, o := range r.Outcomes {
		assert.True(t, o.Pass, "%v/%v: %v", o.Scenario, o.Case, o.Reason)
	}
	assert.True(t, r.OK())
}

func TestRun_OnDisk(t *testing.T) {
	scenarios, err := Select("missing-signer-check")
	require.NoError(t, err)
	r := (&harness.Runner{Dir: t.TempDir()}).Run(scenarios)
	assert.True(t, r.OK())
}
