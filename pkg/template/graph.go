package template

import "fmt"

// resolutionOrder runs a stable topological sort over the dependency graph
// (edges dependency → dependent). Fields with no pending dependencies are
// emitted in presentation order, which keeps the result deterministic and
// lets the resolver walk it without recomputation.
func resolutionOrder(fields []Field, rules []Rule) ([]string, error) {
	index := make(map[string]int, len(fields))
	for i, field := range fields {
		index[field.Name] = i
	}

	indegree := make([]int, len(fields))
	dependents := make([][]int, len(fields))
	seen := make(map[[2]int]bool)

	for _, rule := range rules {
		target := index[rule.FieldName]
		for _, dep := range rule.DependsOn {
			src := index[dep]
			if src == target {
				return nil, fmt.Errorf("%w: %q depends on itself", ErrDependencyCycle, rule.FieldName)
			}
			edge := [2]int{src, target}
			if seen[edge] {
				continue
			}
			seen[edge] = true
			dependents[src] = append(dependents[src], target)
			indegree[target]++
		}
	}

	var order []string
	ready := make([]int, 0, len(fields))
	for i := range fields {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, fields[next].Name)
		for _, dependent := range dependents[next] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = insertSorted(ready, dependent)
			}
		}
	}

	if len(order) != len(fields) {
		remaining := make([]string, 0)
		for i, degree := range indegree {
			if degree > 0 {
				remaining = append(remaining, fields[i].Name)
			}
		}
		return nil, fmt.Errorf("%w: involves %v", ErrDependencyCycle, remaining)
	}
	return order, nil
}

// insertSorted keeps the ready queue ordered by field index so ties resolve
// to presentation order.
func insertSorted(queue []int, value int) []int {
	pos := len(queue)
	for i, existing := range queue {
		if value < existing {
			pos = i
			break
		}
	}
	queue = append(queue, 0)
	copy(queue[pos+1:], queue[pos:])
	queue[pos] = value
	return queue
}
