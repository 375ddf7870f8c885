package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrNoStages   = errors.New("pipeline has no stages")
	ErrDAGCycle   = errors.New("stage dependencies contain a cycle")
	ErrInvalidRef = errors.New("stage dependency references unknown stage")
	ErrDuplicate  = errors.New("duplicate stage name")
)

// ValidateStages checks that the stage list forms a valid DAG over known
// names, using Kahn's algorithm for cycle detection.
func ValidateStages(stages []Stage) error {
	n := len(stages)
	if n == 0 {
		return ErrNoStages
	}

	index := make(map[string]int, n)
	for i := range stages {
		if _, dup := index[stages[i].Name]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicate, stages[i].Name)
		}
		index[stages[i].Name] = i
	}

	inDegree := make([]int, n)
	adj := make([][]int, n)
	for i := range stages {
		for _, dep := range stages[i].DependsOn {
			j, ok := index[dep]
			if !ok {
				return fmt.Errorf("stage %s depends on %q: %w", stages[i].Name, dep, ErrInvalidRef)
			}
			if j == i {
				return fmt.Errorf("stage %s depends on itself: %w", stages[i].Name, ErrDAGCycle)
			}
			adj[j] = append(adj[j], i)
			inDegree[i]++
		}
	}

	queue := make([]int, 0, n)
	for i, d := range inDegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}

	visited := 0
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		visited++
		for _, j := range adj[i] {
			inDegree[j]--
			if inDegree[j] == 0 {
				queue = append(queue, j)
			}
		}
	}

	if visited != n {
		return ErrDAGCycle
	}
	return nil
}
