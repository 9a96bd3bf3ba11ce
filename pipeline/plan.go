package pipeline

import (
	"sort"
)

const (
	unvisited = iota
	visiting
	visited
)

type planner struct {
	p     *Project
	set   map[string]bool
	state map[string]int
	stack []string
	order []string
}

// Plan returns the execution order for the given targets.
//
// The run contains the targets, everything they depend on, and every
// finalizer of those tasks. A task comes after its dependencies, after any
// MustRunAfter task that is part of the run, and after the tasks it
// finalizes. Finalizers are placed as early as their constraints allow.
// Ties follow target order, then dependency order, then name.
func (p *Project) Plan(targets ...string) ([]string, error) {
	if len(targets) == 0 {
		return nil, invalidf("no tasks requested")
	}
	pl := &planner{p: p, set: map[string]bool{}, state: map[string]int{}}
	for _, t := range targets {
		if err := pl.collect(t, ""); err != nil {
			return nil, err
		}
	}
	for _, t := range targets {
		if err := pl.visit(t); err != nil {
			return nil, err
		}
	}
	rest := make([]string, 0, len(pl.set))
	for n := range pl.set {
		rest = append(rest, n)
	}
	sort.Strings(rest)
	for _, n := range rest {
		if err := pl.visit(n); err != nil {
			return nil, err
		}
	}
	return pl.order, nil
}

func (pl *planner) collect(name, referrer string) error {
	t, ok := pl.p.tasks[name]
	if !ok {
		return notFound(name, referrer)
	}
	if pl.set[name] {
		return nil
	}
	pl.set[name] = true
	for _, d := range t.DependsOn {
		if err := pl.collect(d, name); err != nil {
			return err
		}
	}
	for _, f := range t.FinalizedBy {
		if err := pl.collect(f, name); err != nil {
			return err
		}
	}
	for _, m := range t.MustRunAfter {
		if _, ok := pl.p.tasks[m]; !ok {
			return notFound(m, name)
		}
	}
	return nil
}

// predecessors lists the tasks that must come before name in this run.
func (pl *planner) predecessors(name string) []string {
	t := pl.p.tasks[name]
	preds := append([]string(nil), t.DependsOn...)
	for _, m := range t.MustRunAfter {
		if pl.set[m] {
			preds = append(preds, m)
		}
	}
	var finalized []string
	for other := range pl.set {
		for _, f := range pl.p.tasks[other].FinalizedBy {
			if f == name {
				finalized = append(finalized, other)
			}
		}
	}
	sort.Strings(finalized)
	return append(preds, finalized...)
}

func (pl *planner) visit(name string) error {
	switch pl.state[name] {
	case visited:
		return nil
	case visiting:
		start := 0
		for i, n := range pl.stack {
			if n == name {
				start = i
				break
			}
		}
		path := append(append([]string(nil), pl.stack[start:]...), name)
		return cycleError(path)
	}
	pl.state[name] = visiting
	pl.stack = append(pl.stack, name)
	for _, pred := range pl.predecessors(name) {
		if err := pl.visit(pred); err != nil {
			return err
		}
	}
	pl.stack = pl.stack[:len(pl.stack)-1]
	pl.state[name] = visited
	pl.order = append(pl.order, name)

	// A finalizer waiting on a task still being visited is placed later,
	// once that task is done or by the sweep in Plan.
	for _, f := range pl.p.tasks[name].FinalizedBy {
		if !pl.blocked(f, map[string]bool{}) {
			if err := pl.visit(f); err != nil {
				return err
			}
		}
	}
	return nil
}

// blocked reports whether name transitively waits on a task being visited.
func (pl *planner) blocked(name string, seen map[string]bool) bool {
	if pl.state[name] == visiting {
		return true
	}
	if seen[name] || pl.state[name] == visited {
		return false
	}
	seen[name] = true
	for _, pred := range pl.predecessors(name) {
		switch pl.state[pred] {
		case visiting:
			return true
		case unvisited:
			if pl.blocked(pred, seen) {
				return true
			}
		}
	}
	return false
}
