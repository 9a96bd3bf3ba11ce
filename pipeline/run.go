package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/callistaenterprise/blog-test-aync-processes/logger"
)

// Outcome is the final state of a task in a run.
type Outcome string

const (
	Succeeded Outcome = "SUCCESS"
	Failed    Outcome = "FAILED"
	Skipped   Outcome = "SKIPPED"
)

// Command is one process invocation.
type Command struct {
	Dir  string
	Env  []string
	Args []string
}

func (c Command) String() string {
	parts := append(append([]string(nil), c.Env...), c.Args...)
	return strings.Join(parts, " ")
}

// CommandRunner executes task commands.
type CommandRunner interface {
	Run(ctx context.Context, c Command) error
}

// ExecRunner runs commands as child processes inheriting the current
// environment.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

func (r ExecRunner) Run(ctx context.Context, c Command) error {
	if len(c.Args) == 0 {
		return errors.New("empty command")
	}
	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", strings.Join(c.Args, " "), err)
	}
	return nil
}

// DryRunner prints commands instead of running them.
type DryRunner struct {
	Out io.Writer
}

func (r DryRunner) Run(_ context.Context, c Command) error {
	_, err := fmt.Fprintf(r.Out, "[dry-run] (%s) %s\n", c.Dir, c)
	return err
}

// Report records what happened to each planned task.
type Report struct {
	Order    []string
	Outcomes map[string]Outcome
	Duration map[string]time.Duration
}

// Executed lists the tasks that were attempted, in order.
func (r *Report) Executed() []string {
	var out []string
	for _, n := range r.Order {
		if o := r.Outcomes[n]; o == Succeeded || o == Failed {
			out = append(out, n)
		}
	}
	return out
}

type Runner struct {
	Project  *Project
	Commands CommandRunner
}

// Run executes the plan for targets. The first failing task stops the run;
// tasks after it are skipped, except finalizers of tasks that were attempted,
// which always run. The returned error joins every task failure in run order.
func (r *Runner) Run(ctx context.Context, targets ...string) (*Report, error) {
	order, err := r.Project.Plan(targets...)
	if err != nil {
		return nil, err
	}
	rep := &Report{Order: order, Outcomes: map[string]Outcome{}, Duration: map[string]time.Duration{}}

	attempted := map[string]bool{}
	var errs []error

	for _, name := range order {
		t := r.Project.tasks[name]
		finalizer := r.finalizesAttempted(name, attempted)

		if !finalizer && (len(errs) > 0 || ctx.Err() != nil) {
			rep.Outcomes[name] = Skipped
			continue
		}
		if !depsSucceeded(t, rep) {
			logger.Info("skipping task, dependency did not succeed", logger.FieldKV("task", name))
			rep.Outcomes[name] = Skipped
			continue
		}

		tctx := ctx
		if finalizer {
			tctx = context.WithoutCancel(ctx)
		}
		attempted[name] = true
		logger.Info("> Task :"+name, logger.FieldKV("task", name), logger.FieldKV("group", t.Group))
		start := time.Now()
		err := r.execute(tctx, t)
		rep.Duration[name] = time.Since(start)
		if err == nil {
			rep.Outcomes[name] = Succeeded
			continue
		}

		rep.Outcomes[name] = Failed
		logger.Error("task failed", err, logger.FieldKV("task", name))
		errs = append(errs, &TaskError{Task: name, Err: err})
	}

	if len(errs) == 0 && ctx.Err() != nil {
		return rep, ctx.Err()
	}
	return rep, errors.Join(errs...)
}

func (r *Runner) finalizesAttempted(name string, attempted map[string]bool) bool {
	for other := range attempted {
		for _, f := range r.Project.tasks[other].FinalizedBy {
			if f == name {
				return true
			}
		}
	}
	return false
}

func depsSucceeded(t *Task, rep *Report) bool {
	for _, d := range t.DependsOn {
		if rep.Outcomes[d] != Succeeded {
			return false
		}
	}
	return true
}

func (r *Runner) execute(ctx context.Context, t *Task) error {
	if t.Action != nil {
		return t.Action(ctx)
	}
	if len(t.Command) == 0 {
		return nil
	}
	return r.Commands.Run(ctx, r.command(t))
}

func (r *Runner) command(t *Task) Command {
	dir := r.Project.Dir
	if t.Dir != "" {
		if filepath.IsAbs(t.Dir) {
			dir = t.Dir
		} else {
			dir = filepath.Join(dir, t.Dir)
		}
	}
	env := map[string]string{}
	for k, v := range t.Env {
		env[k] = v
	}
	for envKey, prop := range t.PropertyEnv {
		if v, ok := r.Project.Property(prop); ok {
			env[envKey] = v
		}
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vars := make([]string, 0, len(keys))
	for _, k := range keys {
		vars = append(vars, k+"="+env[k])
	}
	return Command{Dir: dir, Env: vars, Args: append([]string(nil), t.Command...)}
}
