package randomSelector

import (
	"testing"

	"github.com/stretchr/testify/require"

	"scaledemo/internal/mock"
)

type randomTest struct {
	name        string
	targets     []string
	nSelections int
}

func (r *randomTest) Run(t *testing.T) {
	selector := New()

	require.Empty(t, selector.Targets())
	_, err := selector.Select()
	require.Error(t, err)
	for _, target := range r.targets {
		require.NoError(t, selector.Add(target))
	}
	require.ElementsMatch(t, r.targets, selector.Targets())

	seen := map[string]bool{}
	for nSelection := 1; nSelection <= r.nSelections; nSelection++ {
		s, err := selector.Select()
		require.NoError(t, err)
		require.Contains(t, r.targets, s)
		seen[s] = true
	}
	require.Greater(t, len(seen), 1, "Expected multiple unique items, but got only one")

	for _, target := range r.targets {
		require.NoError(t, selector.Remove(target))
	}
	require.Error(t, selector.Remove("http://127.0.0.1:1"))
}

func TestRandom(t *testing.T) {
	scenarios := []*randomTest{}
	targets := mock.GenerateTargets(20)
	scenarioRandomSanity := &randomTest{"Random Sanity", targets, 200}

	scenarios = append(scenarios, scenarioRandomSanity)
	for _, scenario := range scenarios {
		t.Run(scenario.name, func(t *testing.T) { scenario.Run(t) })
	}
}

func TestRandomAddIsIdempotent(t *testing.T) {
	selector := New("http://10.0.0.1:5000", "http://10.0.0.1:5000")
	require.Len(t, selector.Targets(), 1)
}
