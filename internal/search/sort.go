package search

import (
	"container/heap"
	"sort"

	"github.com/kamusis/upksearch/internal/search/index"
)

// candidate is one ranked index row.
type candidate struct {
	id    int64
	score float64
}

// ranksBefore orders by score (descending), then by catalog ID (ascending).
func ranksBefore(a, b candidate) bool {
	if a.score == b.score {
		return a.id < b.id
	}
	return a.score > b.score
}

// minHeap keeps the weakest retained candidate at the root.
type minHeap []candidate

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return ranksBefore(h[j], h[i]) }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *minHeap) Pop() any {
	old := *h
	c := old[len(old)-1]
	*h = old[:len(old)-1]
	return c
}

// topCandidates scans every row of idx and returns the k best by cosine
// similarity to q, best first. Rows with a zero norm are never selected; a
// zero-norm query scores -1 against everything.
func topCandidates(idx *index.Index, q []float32, k int) []candidate {
	if k <= 0 || idx.Len() == 0 {
		return nil
	}
	qn := index.Norm(q)
	h := make(minHeap, 0, k)
	for i := 0; i < idx.Len(); i++ {
		rn := idx.RowNorm(i)
		if rn == 0 {
			continue
		}
		c := candidate{id: idx.IDs[i], score: index.CosineNorms(q, idx.Row(i), qn, rn)}
		if len(h) < k {
			heap.Push(&h, c)
			continue
		}
		if ranksBefore(c, h[0]) {
			h[0] = c
			heap.Fix(&h, 0)
		}
	}

	out := []candidate(h)
	sort.Slice(out, func(i, j int) bool { return ranksBefore(out[i], out[j]) })
	return out
}
