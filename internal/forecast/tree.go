package forecast

import (
	"cmp"
	"slices"
)

// Node is one entry of a flattened regression tree. Leaves have Feature -1.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v"`
}

// Tree is a CART regression tree stored as a node array rooted at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict walks the tree for one scaled feature row.
func (t Tree) Predict(row []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Depth returns the longest root-to-leaf edge count.
func (t Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

// grower builds one tree over a (possibly repeated) sample of row indices.
type grower struct {
	x        [][]float64
	y        []float64
	maxDepth int
	minSplit int
	nodes    []Node
}

func growTree(x [][]float64, y []float64, sample []int, maxDepth, minSplit int) Tree {
	g := &grower{x: x, y: y, maxDepth: maxDepth, minSplit: minSplit}
	g.grow(sample, 0)
	return Tree{Nodes: g.nodes}
}

func (g *grower) grow(idx []int, depth int) int {
	var sum float64
	for _, i := range idx {
		sum += g.y[i]
	}
	id := len(g.nodes)
	g.nodes = append(g.nodes, Node{Feature: -1, Value: sum / float64(len(idx))})

	if depth >= g.maxDepth || len(idx) < g.minSplit {
		return id
	}
	feature, threshold, ok := g.bestSplit(idx, sum)
	if !ok {
		return id
	}

	var left, right []int
	for _, i := range idx {
		if g.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := g.grow(left, depth+1)
	r := g.grow(right, depth+1)

	n := &g.nodes[id]
	n.Feature, n.Threshold, n.Left, n.Right = feature, threshold, l, r
	return id
}

// bestSplit finds the threshold that most reduces squared error.
// Maximizing sumL²/nL + sumR²/nR is equivalent and avoids a second pass.
func (g *grower) bestSplit(idx []int, total float64) (feature int, threshold float64, ok bool) {
	n := len(idx)
	best := total * total / float64(n)
	const eps = 1e-9

	sorted := make([]int, n)
	for f := 0; f < len(g.x[idx[0]]); f++ {
		copy(sorted, idx)
		slices.SortFunc(sorted, func(a, b int) int {
			if c := cmp.Compare(g.x[a][f], g.x[b][f]); c != 0 {
				return c
			}
			return cmp.Compare(a, b)
		})

		var left float64
		for k := 0; k < n-1; k++ {
			left += g.y[sorted[k]]
			lo, hi := g.x[sorted[k]][f], g.x[sorted[k+1]][f]
			if lo == hi {
				continue
			}
			nl, nr := float64(k+1), float64(n-k-1)
			right := total - left
			score := left*left/nl + right*right/nr
			if score > best+eps {
				best, feature, threshold, ok = score, f, lo+(hi-lo)/2, true
			}
		}
	}
	return feature, threshold, ok
}
