package measure

import "sort"

// depGraph is an explicit adjacency structure over measure names, built
// once from the registered definitions. Edges point from a measure to the
// measures its expression references.
type depGraph struct {
	nodes    map[string]bool
	edges    map[string][]string
	inDegree map[string]int
}

func buildGraph(defs []*Definition) *depGraph {
	g := &depGraph{
		nodes:    make(map[string]bool, len(defs)),
		edges:    make(map[string][]string, len(defs)),
		inDegree: make(map[string]int, len(defs)),
	}
	for _, d := range defs {
		g.nodes[d.Name] = true
		g.edges[d.Name] = d.Dependencies()
		if _, ok := g.inDegree[d.Name]; !ok {
			g.inDegree[d.Name] = 0
		}
	}
	for _, deps := range g.edges {
		for _, dep := range deps {
			if g.nodes[dep] {
				g.inDegree[dep]++
			}
		}
	}
	return g
}

// findCycle runs Kahn's algorithm and returns one dependency cycle when
// the graph is not acyclic, nil otherwise. The returned path names every
// measure on the cycle, closing back on the first.
func (g *depGraph) findCycle() []string {
	inDegree := make(map[string]int, len(g.inDegree))
	for k, v := range g.inDegree {
		inDegree[k] = v
	}
	remaining := make(map[string]bool, len(g.nodes))
	for name := range g.nodes {
		remaining[name] = true
	}

	for {
		var removable []string
		for name := range remaining {
			if inDegree[name] == 0 {
				removable = append(removable, name)
			}
		}
		if len(removable) == 0 {
			break
		}
		for _, name := range removable {
			delete(remaining, name)
			for _, dep := range g.edges[name] {
				if remaining[dep] {
					inDegree[dep]--
				}
			}
		}
	}

	if len(remaining) == 0 {
		return nil
	}

	// Remaining nodes sit on a cycle or are referenced by one. A node with
	// no dependency inside the remaining set cannot be on a cycle; prune
	// those until only cycle members are left, so the walk below never
	// starts at or steps into a dead end.
	for {
		pruned := false
		for name := range remaining {
			onCycle := false
			for _, dep := range g.edges[name] {
				if remaining[dep] {
					onCycle = true
					break
				}
			}
			if !onCycle {
				delete(remaining, name)
				pruned = true
			}
		}
		if !pruned {
			break
		}
	}

	// Walk dependency edges inside the remaining set until a node repeats,
	// then slice the loop.
	names := make([]string, 0, len(remaining))
	for name := range remaining {
		names = append(names, name)
	}
	sort.Strings(names) // deterministic starting point

	visitedAt := make(map[string]int)
	var path []string
	current := names[0]
	for {
		if at, seen := visitedAt[current]; seen {
			cycle := append([]string(nil), path[at:]...)
			return append(cycle, current)
		}
		visitedAt[current] = len(path)
		path = append(path, current)

		next := ""
		for _, dep := range g.edges[current] {
			if remaining[dep] {
				next = dep
				break
			}
		}
		if next == "" {
			return names // should not happen once remaining is non-empty
		}
		current = next
	}
}
