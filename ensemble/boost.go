package ensemble

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/pdscreen/pdscreen/utils"
)

// GradientBoosting is a binary classifier built from regression trees fitted
// to the gradient and hessian of the logistic loss (second order boosting with
// L2 regularised leaf weights).
type GradientBoosting struct {
	NEstimators    int
	MaxDepth       int
	LearningRate   float64
	Lambda         float64
	Gamma          float64
	MinChildWeight float64
	BaseScore      float64
	Workers        int

	NumFeatures int
	Trees       []DecisionTree
}

// BoostOption functional config for GradientBoosting.
type BoostOption func(*GradientBoosting)

func WithRounds(n int) BoostOption     { return func(b *GradientBoosting) { b.NEstimators = n } }
func WithBoostDepth(d int) BoostOption { return func(b *GradientBoosting) { b.MaxDepth = d } }
func WithLearningRate(eta float64) BoostOption {
	return func(b *GradientBoosting) { b.LearningRate = eta }
}
func WithBoostWorkers(n int) BoostOption { return func(b *GradientBoosting) { b.Workers = n } }

// NewGradientBoosting returns a booster with xgboost's classifier defaults.
func NewGradientBoosting(opts ...BoostOption) *GradientBoosting {
	b := &GradientBoosting{
		NEstimators:    100,
		MaxDepth:       6,
		LearningRate:   0.3,
		Lambda:         1,
		MinChildWeight: 1,
		BaseScore:      0.5,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Fit trains the booster. Labels must be 0 (negative) or 1 (positive).
func (b *GradientBoosting) Fit(X [][]float64, y []int) error {
	p, err := validate(X, y)
	if err != nil {
		return err
	}
	for _, lab := range y {
		if lab > 1 {
			return fmt.Errorf("gradientboosting: binary labels expected, got %d", lab)
		}
	}
	if b.BaseScore <= 0 || b.BaseScore >= 1 {
		return fmt.Errorf("gradientboosting: base score must be in (0,1), got %v", b.BaseScore)
	}

	n := len(X)
	order := presort(X)
	margin := make([]float64, n)
	base := logit(b.BaseScore)
	for i := range margin {
		margin[i] = base
	}

	workers := b.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g := &boostGrower{
		X:              X,
		order:          order,
		nodeOf:         make([]int32, n),
		grad:           make([]float64, n),
		hess:           make([]float64, n),
		maxDepth:       b.MaxDepth,
		lambda:         b.Lambda,
		gamma:          b.Gamma,
		minChildWeight: b.MinChildWeight,
		eta:            b.LearningRate,
		workers:        workers,
	}

	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	trees := make([]DecisionTree, 0, b.NEstimators)
	for round := 0; round < b.NEstimators; round++ {
		for i := range margin {
			pr := sigmoid(margin[i])
			g.grad[i] = pr - float64(y[i])
			g.hess[i] = math.Max(pr*(1-pr), 1e-16)
		}
		g.tree = DecisionTree{}
		g.grow(all, 0)
		for i := range margin {
			margin[i] += g.tree.leaf(X[i]).Value[0]
		}
		trees = append(trees, g.tree)
	}

	b.NumFeatures = p
	b.Trees = trees
	return nil
}

// PredictProba returns [P(class 0), P(class 1)] for one sample.
func (b *GradientBoosting) PredictProba(x []float64) ([]float64, error) {
	if len(b.Trees) == 0 {
		return nil, ErrNotFitted
	}
	if len(x) != b.NumFeatures {
		return nil, fmt.Errorf("gradientboosting: expected %d features, got %d", b.NumFeatures, len(x))
	}
	margin := logit(b.BaseScore)
	for i := range b.Trees {
		margin += b.Trees[i].leaf(x).Value[0]
	}
	pr := sigmoid(margin)
	return []float64{1 - pr, pr}, nil
}

// Predict returns 1 when the positive class probability exceeds 0.5.
func (b *GradientBoosting) Predict(x []float64) (int, error) {
	proba, err := b.PredictProba(x)
	if err != nil {
		return 0, err
	}
	if proba[1] > 0.5 {
		return 1, nil
	}
	return 0, nil
}

type boostGrower struct {
	X              [][]float64
	order          featureOrder
	nodeOf         []int32
	stamp          int32
	grad, hess     []float64
	maxDepth       int
	lambda         float64
	gamma          float64
	minChildWeight float64
	eta            float64
	workers        int
	tree           DecisionTree
}

type boostSplit struct {
	feature   int
	threshold float64
	gain      float64
}

func (g *boostGrower) grow(idx []int, depth int) int {
	var G, H float64
	for _, i := range idx {
		G += g.grad[i]
		H += g.hess[i]
	}
	weight := -G / (H + g.lambda) * g.eta

	if depth >= g.maxDepth || len(idx) < 2 || H < 2*g.minChildWeight {
		return g.tree.addLeaf([]float64{weight})
	}

	best := g.bestSplit(idx, G, H)
	if best.feature < 0 {
		return g.tree.addLeaf([]float64{weight})
	}

	left, right := partition(g.X, idx, best.feature, best.threshold)
	node := g.tree.addSplit(best.feature, best.threshold)
	l := g.grow(left, depth+1)
	r := g.grow(right, depth+1)
	g.tree.Nodes[node].Left = l
	g.tree.Nodes[node].Right = r
	return node
}

// bestSplit scans every feature, sharded across workers. Ties are resolved
// towards the lowest feature index so the result is deterministic.
func (g *boostGrower) bestSplit(idx []int, G, H float64) boostSplit {
	g.stamp++
	for _, i := range idx {
		g.nodeOf[i] = g.stamp
	}
	stamp := g.stamp
	parent := G * G / (H + g.lambda)

	p := len(g.order)
	workers := utils.Min(g.workers, p)
	chunk := (p + workers - 1) / workers
	results := make([]boostSplit, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo, hi := w*chunk, (w+1)*chunk
		if hi > p {
			hi = p
		}
		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			best := boostSplit{feature: -1, gain: 1e-6}
			for f := lo; f < hi; f++ {
				var (
					GL, HL float64
					prev   float64
					seen   bool
				)
				for _, i := range g.order[f] {
					if g.nodeOf[i] != stamp {
						continue
					}
					v := g.X[i][f]
					if seen && v > prev {
						GR, HR := G-GL, H-HL
						if HL >= g.minChildWeight && HR >= g.minChildWeight {
							gain := 0.5*(GL*GL/(HL+g.lambda)+GR*GR/(HR+g.lambda)-parent) - g.gamma
							if gain > best.gain {
								best = boostSplit{feature: f, threshold: midpoint(prev, v), gain: gain}
							}
						}
					}
					GL += g.grad[i]
					HL += g.hess[i]
					prev = v
					seen = true
				}
			}
			results[w] = best
		}(w, lo, hi)
	}
	wg.Wait()

	best := boostSplit{feature: -1}
	for _, r := range results {
		if r.feature >= 0 && (best.feature < 0 || r.gain > best.gain) {
			best = r
		}
	}
	return best
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func logit(p float64) float64 { return math.Log(p / (1 - p)) }
