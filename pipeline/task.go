package pipeline

import (
	"context"
	"sort"
)

// Task is a named unit of build work.
//
// DependsOn tasks are pulled into the run and must succeed first.
// MustRunAfter only orders the task after others that are already part of
// the run. FinalizedBy tasks are pulled into the run and execute after this
// task whenever it was attempted, whether it failed or not.
type Task struct {
	Name        string
	Description string
	Group       string

	DependsOn    []string
	MustRunAfter []string
	FinalizedBy  []string

	// Command is executed through the runner's CommandRunner. A task with
	// neither Command nor Action is a lifecycle task that only aggregates
	// its dependencies.
	Command []string
	// Dir is relative to the project directory.
	Dir string
	// Env is added to the command environment.
	Env map[string]string
	// PropertyEnv maps an environment variable to a project property. The
	// variable is only set when the property is.
	PropertyEnv map[string]string

	Action func(ctx context.Context) error
}

// Project is a set of tasks plus the properties their commands can read.
type Project struct {
	Dir        string
	Properties map[string]string

	tasks map[string]*Task
}

func NewProject(dir string) *Project {
	return &Project{Dir: dir, Properties: map[string]string{}, tasks: map[string]*Task{}}
}

// Register adds a task. Names must be unique and non-empty.
func (p *Project) Register(t Task) error {
	if t.Name == "" {
		return invalidf("task name is required")
	}
	if _, exists := p.tasks[t.Name]; exists {
		return invalidf("duplicate task name: %q", t.Name)
	}
	p.tasks[t.Name] = &t
	return nil
}

func (p *Project) MustRegister(tasks ...Task) {
	for _, t := range tasks {
		if err := p.Register(t); err != nil {
			panic(err)
		}
	}
}

func (p *Project) Task(name string) (*Task, bool) {
	t, ok := p.tasks[name]
	return t, ok
}

// Tasks returns every task ordered by group, then name.
func (p *Project) Tasks() []*Task {
	out := make([]*Task, 0, len(p.tasks))
	for _, t := range p.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// SetProperty sets a project property, like -Pkey=value.
func (p *Project) SetProperty(key, value string) { p.Properties[key] = value }

// Property returns a project property and whether it is set.
func (p *Project) Property(key string) (string, bool) {
	v, ok := p.Properties[key]
	return v, ok
}

// Validate checks that every reference names a registered task and that the
// full graph is acyclic.
func (p *Project) Validate() error {
	for _, t := range p.Tasks() {
		for _, refs := range [][]string{t.DependsOn, t.MustRunAfter, t.FinalizedBy} {
			for _, r := range refs {
				if r == t.Name {
					return invalidf("self-reference: %q", t.Name)
				}
				if _, ok := p.tasks[r]; !ok {
					return notFound(r, t.Name)
				}
			}
		}
	}
	names := make([]string, 0, len(p.tasks))
	for n := range p.tasks {
		names = append(names, n)
	}
	sort.Strings(names)
	_, err := p.Plan(names...)
	return err
}
