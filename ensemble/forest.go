package ensemble

import (
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"

	"github.com/pdscreen/pdscreen/utils"
	"gonum.org/v1/gonum/floats"
)

// RandomForest is a bagged ensemble of CART classification trees using the
// gini criterion. Class probabilities are the mean of the leaf distributions.
type RandomForest struct {
	NEstimators     int
	MaxDepth        int // 0 => no limit
	MinSamplesSplit int
	MaxFeatures     int // 0 => sqrt(number of features)
	Bootstrap       bool
	RandomState     int64
	Workers         int

	NumClasses  int
	NumFeatures int
	Trees       []DecisionTree
}

// RandomForestOption functional config for RandomForest.
type RandomForestOption func(*RandomForest)

func WithNEstimators(n int) RandomForestOption { return func(rf *RandomForest) { rf.NEstimators = n } }
func WithMaxDepth(d int) RandomForestOption    { return func(rf *RandomForest) { rf.MaxDepth = d } }
func WithMaxFeatures(k int) RandomForestOption { return func(rf *RandomForest) { rf.MaxFeatures = k } }
func WithBootstrap(b bool) RandomForestOption  { return func(rf *RandomForest) { rf.Bootstrap = b } }
func WithRandomState(seed int64) RandomForestOption {
	return func(rf *RandomForest) { rf.RandomState = seed }
}
func WithWorkers(n int) RandomForestOption { return func(rf *RandomForest) { rf.Workers = n } }

// NewRandomForest initializes the forest with the defaults used for the drawing models.
func NewRandomForest(opts ...RandomForestOption) *RandomForest {
	rf := &RandomForest{
		NEstimators:     100,
		MinSamplesSplit: 2,
		Bootstrap:       true,
		RandomState:     1,
	}
	for _, o := range opts {
		o(rf)
	}
	return rf
}

// Fit trains the forest. Trees are grown concurrently, each from its own seed,
// so the result does not depend on scheduling.
func (rf *RandomForest) Fit(X [][]float64, y []int) error {
	p, err := validate(X, y)
	if err != nil {
		return err
	}
	if rf.NEstimators <= 0 {
		return fmt.Errorf("randomforest: invalid number of estimators %d", rf.NEstimators)
	}

	numClasses := 0
	for _, lab := range y {
		if lab+1 > numClasses {
			numClasses = lab + 1
		}
	}
	maxFeatures := rf.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Sqrt(float64(p)))
	}
	maxFeatures = utils.Clamp(maxFeatures, 1, p)

	order := presort(X)
	trees := make([]DecisionTree, rf.NEstimators)

	workers := rf.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				g := &cartGrower{
					X:               X,
					y:               y,
					order:           order,
					nodeOf:          make([]int32, len(X)),
					numClasses:      numClasses,
					maxFeatures:     maxFeatures,
					maxDepth:        rf.MaxDepth,
					minSamplesSplit: rf.MinSamplesSplit,
					rnd:             rand.New(rand.NewSource(rf.RandomState + int64(idx))),
				}
				trees[idx] = g.fit(rf.Bootstrap)
			}
		}()
	}
	for i := 0; i < rf.NEstimators; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	rf.NumClasses = numClasses
	rf.NumFeatures = p
	rf.Trees = trees
	return nil
}

// PredictProba returns the per-class probability vector for one sample.
func (rf *RandomForest) PredictProba(x []float64) ([]float64, error) {
	if len(rf.Trees) == 0 {
		return nil, ErrNotFitted
	}
	if len(x) != rf.NumFeatures {
		return nil, fmt.Errorf("randomforest: expected %d features, got %d", rf.NumFeatures, len(x))
	}
	proba := make([]float64, rf.NumClasses)
	for i := range rf.Trees {
		floats.Add(proba, rf.Trees[i].leaf(x).Value)
	}
	floats.Scale(1/float64(len(rf.Trees)), proba)
	return proba, nil
}

// Predict returns the most probable class.
func (rf *RandomForest) Predict(x []float64) (int, error) {
	proba, err := rf.PredictProba(x)
	if err != nil {
		return 0, err
	}
	return argmax(proba), nil
}

// cartGrower grows one classification tree. Node membership is tracked by
// stamping nodeOf with the id of the node being split, which lets the split
// search walk the presorted feature orders without copying samples.
type cartGrower struct {
	X               [][]float64
	y               []int
	w               []float64
	order           featureOrder
	nodeOf          []int32
	stamp           int32
	numClasses      int
	maxFeatures     int
	maxDepth        int
	minSamplesSplit int
	rnd             *rand.Rand
	tree            DecisionTree
}

func (g *cartGrower) fit(bootstrap bool) DecisionTree {
	n := len(g.X)
	g.w = make([]float64, n)
	if bootstrap {
		for j := 0; j < n; j++ {
			g.w[g.rnd.Intn(n)]++
		}
	} else {
		for j := range g.w {
			g.w[j] = 1
		}
	}

	idx := make([]int, 0, n)
	for i, w := range g.w {
		if w > 0 {
			idx = append(idx, i)
		}
	}
	g.grow(idx, 0)
	return g.tree
}

func (g *cartGrower) grow(idx []int, depth int) int {
	counts := make([]float64, g.numClasses)
	var total float64
	for _, i := range idx {
		counts[g.y[i]] += g.w[i]
		total += g.w[i]
	}

	if g.isLeaf(idx, counts, depth) {
		return g.tree.addLeaf(distribution(counts, total))
	}

	feature, threshold, ok := g.bestSplit(idx, counts, total)
	if !ok {
		return g.tree.addLeaf(distribution(counts, total))
	}

	left, right := partition(g.X, idx, feature, threshold)
	node := g.tree.addSplit(feature, threshold)
	l := g.grow(left, depth+1)
	r := g.grow(right, depth+1)
	g.tree.Nodes[node].Left = l
	g.tree.Nodes[node].Right = r
	return node
}

func (g *cartGrower) isLeaf(idx []int, counts []float64, depth int) bool {
	if len(idx) < g.minSamplesSplit || len(idx) < 2 {
		return true
	}
	if g.maxDepth > 0 && depth >= g.maxDepth {
		return true
	}
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

// bestSplit visits features in random order until maxFeatures non constant
// features have been evaluated and returns the split with the largest
// weighted gini decrease.
func (g *cartGrower) bestSplit(idx []int, counts []float64, total float64) (int, float64, bool) {
	g.stamp++
	for _, i := range idx {
		g.nodeOf[i] = g.stamp
	}

	var (
		bestFeature   = -1
		bestThreshold float64
		bestGain      = 1e-12
		parent        = gini(counts, total) * total
		left          = make([]float64, g.numClasses)
		right         = make([]float64, g.numClasses)
		visited       int
	)

	for _, f := range g.rnd.Perm(len(g.order)) {
		for c := range left {
			left[c] = 0
		}
		var (
			wl       float64
			prev     float64
			seen     bool
			constant = true
		)
		for _, i := range g.order[f] {
			if g.nodeOf[i] != g.stamp {
				continue
			}
			v := g.X[i][f]
			if seen && v > prev {
				constant = false
				for c := range right {
					right[c] = counts[c] - left[c]
				}
				wr := total - wl
				gain := parent - gini(left, wl)*wl - gini(right, wr)*wr
				if gain > bestGain {
					bestGain = gain
					bestFeature = f
					bestThreshold = midpoint(prev, v)
				}
			}
			left[g.y[i]] += g.w[i]
			wl += g.w[i]
			prev = v
			seen = true
		}
		if !constant {
			visited++
			if visited >= g.maxFeatures {
				break
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func gini(counts []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	s := 1.0
	for _, c := range counts {
		p := c / total
		s -= p * p
	}
	return s
}

func distribution(counts []float64, total float64) []float64 {
	out := make([]float64, len(counts))
	copy(out, counts)
	if total > 0 {
		floats.Scale(1/total, out)
	}
	return out
}
