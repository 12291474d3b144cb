package ecs

import (
	"fmt"
	"sort"

	"github.com/solace-games/ecsframe/ecs/ecserror"
)

// resolvePlan builds the topologically sorted execution order for the
// registered systems: writer-before-reader edges for every component
// type, plus the explicit before/after constraints, then a
// deterministic topological sort. It is called once, the first time
// the world transitions out of StateSetup.
func (w *World) resolvePlan() error {
	n := len(w.systems)
	adj := make([][]bool, n)
	for i := range adj {
		adj[i] = make([]bool, n)
	}
	indexOf := make(map[SystemType]int, n)
	for i, rs := range w.systems {
		indexOf[rs.typ] = i
	}
	addEdge := func(from, to int) {
		if from != to {
			adj[from][to] = true
		}
	}

	// Writer -> reader edges per component type.
	writersOf := make(map[ComponentId][]int)
	readersOf := make(map[ComponentId][]int)
	for i, rs := range w.systems {
		for c := range rs.writes {
			writersOf[c] = append(writersOf[c], i)
		}
		for c := range rs.reads {
			readersOf[c] = append(readersOf[c], i)
		}
	}
	for c, writers := range writersOf {
		for _, wIdx := range writers {
			for _, rIdx := range readersOf[c] {
				addEdge(wIdx, rIdx)
			}
		}
	}

	// Explicit before/after constraints.
	for i, rs := range w.systems {
		for _, t := range rs.before {
			if j, ok := indexOf[t]; ok {
				addEdge(i, j)
			}
		}
		for _, t := range rs.after {
			if j, ok := indexOf[t]; ok {
				addEdge(j, i)
			}
		}
	}

	order, err := topoSort(adj, w.systems)
	if err != nil {
		return err
	}
	w.plan = order

	if w.config.Debug {
		names := make([]SystemType, len(order))
		for i, idx := range order {
			names[i] = w.systems[idx].typ
		}
		w.log.Info("scheduler plan resolved: %v", names)
	}
	return nil
}

// topoSort performs a deterministic depth-first topological sort over
// adj (adj[i][j] == true means i must run before j): roots are visited
// in registration order and neighbors in ascending index, so the plan
// is reproducible across runs with identical input. Independent
// systems do not keep their registration order; the final reversal
// puts a later-registered root ahead of an earlier one. It fails with
// CycleDetected if the graph has a cycle no explicit constraint breaks.
func topoSort(adj [][]bool, systems []*registeredSystem) ([]int, error) {
	n := len(adj)
	const (
		white = iota
		gray
		black
	)
	color := make([]int, n)
	order := make([]int, 0, n)
	var cyclePath []SystemType

	var visit func(i int) bool
	visit = func(i int) bool {
		color[i] = gray
		neighbors := make([]int, 0, n)
		for j := 0; j < n; j++ {
			if adj[i][j] {
				neighbors = append(neighbors, j)
			}
		}
		sort.Ints(neighbors)
		for _, j := range neighbors {
			switch color[j] {
			case white:
				if !visit(j) {
					return false
				}
			case gray:
				cyclePath = append(cyclePath, systems[i].typ, systems[j].typ)
				return false
			}
		}
		color[i] = black
		order = append(order, i)
		return true
	}

	for i := 0; i < n; i++ {
		if color[i] == white {
			if !visit(i) {
				return nil, ecserror.Check(ecserror.CodeCycleDetected, fmt.Sprintf("schedule dependency cycle detected: %v", cyclePath))
			}
		}
	}

	// visit appends in post-order (a system lands after every system it
	// must precede), so reversing the accumulated order yields a valid
	// topological order.
	reversed := make([]int, n)
	for i, idx := range order {
		reversed[n-1-i] = idx
	}
	return reversed, nil
}
