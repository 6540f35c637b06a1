package ensemble

import (
	"sort"
)

// Node is a split or a leaf of a DecisionTree. Leaves have Left == -1 and carry
// Value: the class distribution for classification trees, a single weight for
// boosting trees. Samples with x[Feature] <= Threshold go left.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     []float64
}

// DecisionTree keeps its nodes in a flat slice, root first.
type DecisionTree struct {
	Nodes []Node
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return n.Left < 0 }

func (t *DecisionTree) leaf(x []float64) *Node {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return n
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func (t *DecisionTree) addLeaf(value []float64) int {
	t.Nodes = append(t.Nodes, Node{Left: -1, Right: -1, Value: value})
	return len(t.Nodes) - 1
}

func (t *DecisionTree) addSplit(feature int, threshold float64) int {
	t.Nodes = append(t.Nodes, Node{Feature: feature, Threshold: threshold, Left: -1, Right: -1})
	return len(t.Nodes) - 1
}

// Depth returns the length of the longest root to leaf path.
func (t *DecisionTree) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var walk func(i int) int
	walk = func(i int) int {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return 0
		}
		l, r := walk(n.Left), walk(n.Right)
		if l > r {
			return l + 1
		}
		return r + 1
	}
	return walk(0)
}

// featureOrder holds, per feature, the sample indices sorted by ascending value.
// It is computed once per fit and shared read-only by every tree.
type featureOrder [][]int32

func presort(X [][]float64) featureOrder {
	n, p := len(X), len(X[0])
	order := make(featureOrder, p)
	for f := 0; f < p; f++ {
		idx := make([]int32, n)
		for i := range idx {
			idx[i] = int32(i)
		}
		sort.SliceStable(idx, func(a, b int) bool {
			return X[idx[a]][f] < X[idx[b]][f]
		})
		order[f] = idx
	}
	return order
}

// midpoint returns the split threshold between two consecutive distinct values.
func midpoint(lo, hi float64) float64 {
	thr := lo + (hi-lo)/2
	if thr >= hi {
		thr = lo
	}
	return thr
}

// partition splits the node samples on a feature threshold.
func partition(X [][]float64, idx []int, feature int, threshold float64) (left, right []int) {
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}
