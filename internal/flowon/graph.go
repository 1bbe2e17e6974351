package flowon

import (
	"sort"

	"github.com/lherron/eotdiff/internal/domain"
)

// Graph is the successor graph of one programme version, built from the
// predecessor lists. It is safe for concurrent read access.
type Graph struct {
	successors map[int][]int // sorted ascending
	known      map[int]bool
	missing    map[int]bool // tasks with at least one dangling predecessor
}

// NewGraph builds the successor graph. Predecessor references to UIDs that
// are not in tasks are recorded as missing rather than rejected.
func NewGraph(tasks []domain.Task) *Graph {
	g := &Graph{
		successors: make(map[int][]int),
		known:      make(map[int]bool, len(tasks)),
		missing:    make(map[int]bool),
	}
	for _, t := range tasks {
		g.known[t.UID] = true
	}

	type edge struct{ from, to int }
	seen := make(map[edge]bool)
	for _, t := range tasks {
		for _, pred := range t.Predecessors {
			if !g.known[pred] {
				g.missing[t.UID] = true
				continue
			}
			e := edge{from: pred, to: t.UID}
			if seen[e] {
				continue
			}
			seen[e] = true
			g.successors[pred] = append(g.successors[pred], t.UID)
		}
	}
	for uid := range g.successors {
		sort.Ints(g.successors[uid])
	}
	return g
}

// Successors returns the direct successors of uid in ascending order.
func (g *Graph) Successors(uid int) []int {
	return g.successors[uid]
}

// HasMissingPredecessor reports whether uid references an absent predecessor.
func (g *Graph) HasMissingPredecessor(uid int) bool {
	return g.missing[uid]
}

// MissingPredecessors returns the UIDs with dangling predecessor references, ascending.
func (g *Graph) MissingPredecessors() []int {
	out := make([]int, 0, len(g.missing))
	for uid := range g.missing {
		out = append(out, uid)
	}
	sort.Ints(out)
	return out
}

// Reach walks forward from every root and returns, for each task reached,
// the sorted roots that reach it. A root is only included for itself when a
// cycle leads back to it.
func (g *Graph) Reach(roots []int) map[int][]int {
	ordered := append([]int{}, roots...)
	sort.Ints(ordered)

	sources := make(map[int]map[int]bool)
	for i, root := range ordered {
		if i > 0 && ordered[i-1] == root {
			continue
		}
		visited := make(map[int]bool)
		queue := append([]int{}, g.successors[root]...)
		for len(queue) > 0 {
			uid := queue[0]
			queue = queue[1:]
			if visited[uid] {
				continue
			}
			visited[uid] = true
			if sources[uid] == nil {
				sources[uid] = make(map[int]bool)
			}
			sources[uid][root] = true
			queue = append(queue, g.successors[uid]...)
		}
	}

	out := make(map[int][]int, len(sources))
	for uid, set := range sources {
		list := make([]int, 0, len(set))
		for root := range set {
			list = append(list, root)
		}
		sort.Ints(list)
		out[uid] = list
	}
	return out
}
