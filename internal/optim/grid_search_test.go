package optim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/san-kum/steersim/internal/dynamo"
)

func shortParams() dynamo.Params {
	p := dynamo.DefaultParams()
	p.Duration = 0.3
	return p
}

func TestGridSearchFindsMinimum(t *testing.T) {
	defer goleak.VerifyNone(t)

	g := NewGridSearch([]string{"kp", "limit"}, [][]float64{{10, 40}, {0.5, 10}})
	g.Workers = 2

	res, err := g.Search(context.Background(), shortParams(), "control_effort")
	require.NoError(t, err)
	require.Len(t, res.Candidates, 4)

	best := res.Candidates[0]
	for _, c := range res.Candidates {
		require.NoError(t, c.Err)
		if c.Value < best.Value {
			best = c
		}
	}
	assert.Equal(t, best.Value, res.BestValue)
	assert.Equal(t, best.Params, res.Best)
	// Effort is bounded by the output limit, so the tighter limit wins.
	assert.Equal(t, 0.5, res.Best["limit"])
}

func TestGridSearchDeterministic(t *testing.T) {
	defer goleak.VerifyNone(t)

	g := NewGridSearch([]string{"kd"}, [][]float64{Linspace(1, 9, 5)})
	a, err := g.Search(context.Background(), shortParams(), "iae")
	require.NoError(t, err)

	g.Workers = 1
	b, err := g.Search(context.Background(), shortParams(), "iae")
	require.NoError(t, err)

	assert.Equal(t, a.Candidates, b.Candidates)
	assert.Equal(t, a.Best, b.Best)
}

func TestGridSearchRejects(t *testing.T) {
	defer goleak.VerifyNone(t)

	_, err := NewGridSearch([]string{"kp"}, [][]float64{{1}}).Search(context.Background(), shortParams(), "nonsense")
	assert.Error(t, err)

	_, err = NewGridSearch([]string{"mass"}, [][]float64{{1}}).Search(context.Background(), shortParams(), "iae")
	assert.ErrorIs(t, err, dynamo.ErrParameterBounds)

	_, err = NewGridSearch([]string{"kp", "kd"}, [][]float64{{1}}).Search(context.Background(), shortParams(), "iae")
	assert.Error(t, err)
}

func TestGridSearchAllFail(t *testing.T) {
	defer goleak.VerifyNone(t)

	res, err := NewGridSearch([]string{"dt"}, [][]float64{{0, -1}}).Search(context.Background(), shortParams(), "iae")
	assert.Error(t, err)
	require.NotNil(t, res)
	for _, c := range res.Candidates {
		assert.ErrorIs(t, c.Err, dynamo.ErrParameterBounds)
	}
}

func TestGridSearchCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewGridSearch([]string{"kp"}, [][]float64{{10, 20, 30}}).Search(ctx, shortParams(), "iae")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLinspace(t *testing.T) {
	assert.Equal(t, []float64{0, 0.5, 1}, Linspace(0, 1, 3))
	assert.Equal(t, []float64{2}, Linspace(2, 5, 1))
}
