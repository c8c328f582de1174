// forest/tree.go
package forest

import (
	"math/rand"
	"sort"
)

// leaf marks a terminal node.
const leaf = -1

// Node is one tree node. Leaves have Feature == -1.
type Node struct {
	Feature   int     `msgpack:"f"`
	Threshold float64 `msgpack:"t"` // rows with x[Feature] <= Threshold go left
	Left      int     `msgpack:"l"`
	Right     int     `msgpack:"r"`
	Value     float64 `msgpack:"v"` // mean target of the node's samples
	Samples   int     `msgpack:"n"`
}

// Tree is a regression tree stored as a flat node slice, root at index 0.
type Tree struct {
	Nodes []Node `msgpack:"nodes"`
}

// predictRow walks the tree for one feature vector.
func (t *Tree) predictRow(x []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature == leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Depth is the longest root-to-leaf edge count.
func (t *Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.Feature == leaf {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	if len(t.Nodes) == 0 {
		return 0
	}
	return walk(0)
}

// treeBuilder grows one tree over a shared, read-only design matrix.
type treeBuilder struct {
	data   []float64 // row-major
	stride int
	nCols  int
	y      []float64

	p           Params
	maxFeatures int
	rng         *rand.Rand

	nodes      []Node
	importance []float64 // summed squared-error decrease per feature
}

func (b *treeBuilder) x(row, col int) float64 {
	return b.data[row*b.stride+col]
}

type split struct {
	feature   int
	threshold float64
	score     float64 // sumL²/nL + sumR²/nR; larger is better
}

func (b *treeBuilder) build(idx []int, depth int) int {
	n := len(idx)
	var sum, sumSq float64
	for _, r := range idx {
		v := b.y[r]
		sum += v
		sumSq += v * v
	}
	mean := sum / float64(n)
	sse := sumSq - sum*mean

	self := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: leaf, Value: mean, Samples: n})

	if n < b.p.MinSamplesSplit || n < 2*b.p.MinSamplesLeaf ||
		(b.p.MaxDepth > 0 && depth >= b.p.MaxDepth) || sse <= 1e-9*float64(n) {
		return self
	}

	best, ok := b.findSplit(idx, sum)
	if !ok {
		return self
	}

	// Partition idx in place around the threshold.
	mid := 0
	for j, r := range idx {
		if b.x(r, best.feature) <= best.threshold {
			idx[mid], idx[j] = idx[j], idx[mid]
			mid++
		}
	}

	// Squared-error decrease: parent SSE minus children SSE.
	parentTerm := sum * mean
	b.importance[best.feature] += best.score - parentTerm

	left := b.build(idx[:mid], depth+1)
	right := b.build(idx[mid:], depth+1)
	b.nodes[self].Feature = best.feature
	b.nodes[self].Threshold = best.threshold
	b.nodes[self].Left = left
	b.nodes[self].Right = right
	return self
}

// findSplit visits features in random order until maxFeatures non-constant
// ones have been evaluated.
func (b *treeBuilder) findSplit(idx []int, total float64) (split, bool) {
	best := split{feature: -1}
	evaluated := 0
	for _, f := range b.rng.Perm(b.nCols) {
		if evaluated >= b.maxFeatures {
			break
		}
		var (
			s     split
			valid bool
			found bool
		)
		if b.p.Splitter == SplitterRandom {
			s, valid, found = b.randomSplit(idx, f, total)
		} else {
			s, valid, found = b.bestSplit(idx, f, total)
		}
		if !valid {
			continue // constant feature in this node
		}
		evaluated++
		if found && (best.feature < 0 || s.score > best.score) {
			best = s
		}
	}
	return best, best.feature >= 0
}

// bestSplit sweeps the sorted values of feature f. valid is false when the
// feature is constant over idx; found is false when no threshold satisfies
// MinSamplesLeaf.
func (b *treeBuilder) bestSplit(idx []int, f int, total float64) (s split, valid, found bool) {
	n := len(idx)
	order := make([]int, n)
	copy(order, idx)
	sort.Slice(order, func(i, j int) bool { return b.x(order[i], f) < b.x(order[j], f) })
	if b.x(order[0], f) == b.x(order[n-1], f) {
		return s, false, false
	}

	minLeaf := b.p.MinSamplesLeaf
	s.feature = f
	var left float64
	for i := 0; i < n-1; i++ {
		left += b.y[order[i]]
		lo, hi := b.x(order[i], f), b.x(order[i+1], f)
		if lo == hi {
			continue
		}
		nl := i + 1
		nr := n - nl
		if nl < minLeaf || nr < minLeaf {
			continue
		}
		right := total - left
		score := left*left/float64(nl) + right*right/float64(nr)
		if !found || score > s.score {
			thr := lo + (hi-lo)/2
			if thr >= hi {
				thr = lo
			}
			s.threshold, s.score, found = thr, score, true
		}
	}
	return s, true, found
}

// randomSplit draws one threshold uniformly between the feature's min and max.
func (b *treeBuilder) randomSplit(idx []int, f int, total float64) (s split, valid, found bool) {
	lo, hi := b.x(idx[0], f), b.x(idx[0], f)
	for _, r := range idx[1:] {
		v := b.x(r, f)
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if lo == hi {
		return s, false, false
	}
	thr := lo + b.rng.Float64()*(hi-lo)

	var left float64
	nl := 0
	for _, r := range idx {
		if b.x(r, f) <= thr {
			left += b.y[r]
			nl++
		}
	}
	nr := len(idx) - nl
	if nl < b.p.MinSamplesLeaf || nr < b.p.MinSamplesLeaf {
		return s, true, false
	}
	right := total - left
	return split{
		feature:   f,
		threshold: thr,
		score:     left*left/float64(nl) + right*right/float64(nr),
	}, true, true
}
