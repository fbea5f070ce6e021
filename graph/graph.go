// Package graph provides in-memory dependency analysis over one task's
// subtasks. Callers load the full edge set once, build a graph, and run
// cycle checks and ordering against it without further store access.
package graph

import (
	"github.com/gammazero/toposort"
)

// Graph is an adjacency view over a task's subtask ids. Edges point from
// a subtask to the ids it depends on.
type Graph struct {
	ids   []string
	edges map[string][]string
}

// New builds a graph from subtask ids and their depends_on adjacency.
// Edges referring to ids outside the set are kept; membership checks are
// the caller's concern.
func New(ids []string, edges map[string][]string) *Graph {
	g := &Graph{
		ids:   append([]string(nil), ids...),
		edges: make(map[string][]string, len(edges)),
	}
	for from, deps := range edges {
		g.edges[from] = append([]string(nil), deps...)
	}
	return g
}

// Contains reports whether id is in the graph's subtask set
func (g *Graph) Contains(id string) bool {
	for _, existing := range g.ids {
		if existing == id {
			return true
		}
	}
	return false
}

// Dependencies returns the ids that id depends on
func (g *Graph) Dependencies(id string) []string {
	return g.edges[id]
}

// WouldCycle reports whether adding the edge "from depends_on to" would
// close a cycle: true when from is already reachable from to over the
// depends_on relation. A self-edge always cycles.
func (g *Graph) WouldCycle(from, to string) bool {
	if from == to {
		return true
	}
	visited := make(map[string]bool)
	return g.reachable(to, from, visited)
}

// reachable walks depends_on edges from start looking for target
func (g *Graph) reachable(start, target string, visited map[string]bool) bool {
	if visited[start] {
		return false
	}
	visited[start] = true
	for _, dep := range g.edges[start] {
		if dep == target {
			return true
		}
		if g.reachable(dep, target, visited) {
			return true
		}
	}
	return false
}

// Unmet returns the dependency ids of id that completed reports false
// for, in the stored edge order. Empty means the subtask is unblocked.
func (g *Graph) Unmet(id string, completed func(string) bool) []string {
	unmet := []string{}
	for _, dep := range g.edges[id] {
		if !completed(dep) {
			unmet = append(unmet, dep)
		}
	}
	return unmet
}

// Order returns the subtask ids in a dependency-respecting order:
// every id appears after all ids it depends on. Fails on a cyclic graph.
func (g *Graph) Order() ([]string, error) {
	topoEdges := make([]toposort.Edge, 0, len(g.edges))
	for from, deps := range g.edges {
		for _, dep := range deps {
			// dep must sort before from
			topoEdges = append(topoEdges, toposort.Edge{dep, from})
		}
	}

	sorted, err := toposort.Toposort(topoEdges)
	if err != nil {
		return nil, err
	}

	position := make(map[string]int, len(sorted))
	for i, v := range sorted {
		if id, ok := v.(string); ok {
			position[id] = i
		}
	}

	// ids with no edges keep their relative order after the sorted ones
	ordered := make([]string, 0, len(g.ids))
	var free []string
	for _, id := range g.ids {
		if _, ok := position[id]; ok {
			ordered = append(ordered, id)
		} else {
			free = append(free, id)
		}
	}

	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && position[ordered[j]] < position[ordered[j-1]]; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}

	return append(ordered, free...), nil
}
