package forecast

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// Params are the ensemble hyperparameters.
type Params struct {
	Estimators      int    `json:"n_estimators"`
	MaxDepth        int    `json:"max_depth"`
	MinSamplesSplit int    `json:"min_samples_split"`
	Seed            uint64 `json:"random_state"`
}

// DefaultParams mirrors the production configuration.
func DefaultParams() Params {
	return Params{Estimators: 100, MaxDepth: 10, MinSamplesSplit: 5, Seed: 42}
}

// AsMap renders the parameters for the model version record.
func (p Params) AsMap() map[string]any {
	return map[string]any{
		"n_estimators":      p.Estimators,
		"max_depth":         p.MaxDepth,
		"min_samples_split": p.MinSamplesSplit,
		"random_state":      p.Seed,
	}
}

// Forest is a bagged ensemble of regression trees.
type Forest struct {
	Trees []Tree `json:"trees"`
}

// FitForest grows p.Estimators trees, each on a bootstrap sample drawn with
// its own seed, so the result does not depend on scheduling. Trees are grown
// in parallel; ctx is checked before each tree.
func FitForest(ctx context.Context, x [][]float64, y []float64, p Params) (*Forest, error) {
	n := len(x)
	if n == 0 {
		return nil, errors.New("forecast: empty training set")
	}
	if p.Estimators < 1 {
		return nil, fmt.Errorf("forecast: n_estimators must be at least 1, got %d", p.Estimators)
	}
	trees := make([]Tree, p.Estimators)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range trees {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(p.Seed, uint64(i)))
			sample := make([]int, n)
			for k := range sample {
				sample[k] = rng.IntN(n)
			}
			trees[i] = growTree(x, y, sample, p.MaxDepth, p.MinSamplesSplit)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Forest{Trees: trees}, nil
}

// Predict returns the ensemble mean and the spread (population standard
// deviation) of the per-tree predictions for one scaled row.
func (f *Forest) Predict(row []float64) (mean, spread float64) {
	votes := make([]float64, len(f.Trees))
	for i, t := range f.Trees {
		votes[i] = t.Predict(row)
	}
	return stat.PopMeanStdDev(votes, nil)
}
