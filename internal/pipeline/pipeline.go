// Package pipeline executes an ordered list of named steps, each consuming the
// relation produced by the one before it. Steps declare the earlier steps
// they depend on and the list rejects mutations that would break them.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Dminor7/ga4bigquery/internal/errs"
	"github.com/Dminor7/ga4bigquery/internal/metrics"
)

// RunFunc transforms the previous step's relation. outputs holds the
// relations of all steps executed so far, keyed by step name.
type RunFunc[S any] func(ctx context.Context, state S, in Relation, outputs Outputs) (Relation, error)

// Step is one named stage
type Step[S any] struct {
	Name      string
	DependsOn []string
	Run       RunFunc[S]
}

// Pipeline is an ordered, dependency checked list of steps. It is not safe
// for concurrent mutation.
type Pipeline[S any] struct {
	steps []Step[S]
	log   *zap.Logger
}

// New creates a pipeline, adding steps in order.
func New[S any](log *zap.Logger, steps ...Step[S]) (*Pipeline[S], error) {
	p := &Pipeline[S]{log: log}
	for _, step := range steps {
		if err := p.Add(step); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Steps returns a copy of the step list.
func (p *Pipeline[S]) Steps() []Step[S] {
	out := make([]Step[S], len(p.steps))
	copy(out, p.steps)
	return out
}

// Names returns the step names in execution order.
func (p *Pipeline[S]) Names() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name
	}
	return names
}

// Has reports whether a step named name is present.
func (p *Pipeline[S]) Has(name string) bool {
	return p.index(name) >= 0
}

// Len returns the number of steps.
func (p *Pipeline[S]) Len() int {
	return len(p.steps)
}

func (p *Pipeline[S]) index(name string) int {
	for i, step := range p.steps {
		if step.Name == name {
			return i
		}
	}
	return -1
}

// Add appends step. Every dependency must already be present.
func (p *Pipeline[S]) Add(step Step[S]) error {
	if step.Name == "" {
		return errs.Configuration("invalid_step", fmt.Errorf("step name is required"))
	}
	if step.Run == nil {
		return errs.Configuration("invalid_step", fmt.Errorf("step %q has no run function", step.Name))
	}
	if p.Has(step.Name) {
		return errs.Configuration("duplicate_step", fmt.Errorf("step %q already exists", step.Name))
	}
	for _, dep := range step.DependsOn {
		if !p.Has(dep) {
			return errs.DependencyViolation("missing_dependency",
				fmt.Errorf("step %q requires step %q to run before it", step.Name, dep))
		}
	}
	p.steps = append(p.steps, step)
	return nil
}

// Remove deletes the named step. It is rejected, leaving the list unchanged,
// while a later step that depends on it is still present. Removing an absent
// step is a no-op.
func (p *Pipeline[S]) Remove(name string) error {
	i := p.index(name)
	if i < 0 {
		return nil
	}
	for _, later := range p.steps[i+1:] {
		for _, dep := range later.DependsOn {
			if dep == name {
				return errs.DependencyViolation("step_required",
					fmt.Errorf("step %q can't be removed as it's required by step %q, remove %q first", name, later.Name, later.Name))
			}
		}
	}
	p.steps = append(p.steps[:i:i], p.steps[i+1:]...)
	return nil
}

// Execute runs every step in order, threading the relation forward. With no
// steps the input is returned unchanged.
func (p *Pipeline[S]) Execute(ctx context.Context, state S, input Relation) (Relation, Outputs, error) {
	outputs := make(Outputs, len(p.steps))
	current := input
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		start := time.Now()
		out, err := step.Run(ctx, state, current, outputs)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to run step %s: %w", step.Name, err)
		}
		elapsed := time.Since(start)

		metrics.StepDuration.WithLabelValues(step.Name).Observe(elapsed.Seconds())
		metrics.StepRows.WithLabelValues(step.Name).Set(float64(len(out)))
		p.log.Debug("Step completed",
			zap.String("step", step.Name),
			zap.Int("input_rows", len(current)),
			zap.Int("output_rows", len(out)),
			zap.Duration("duration", elapsed))

		outputs[step.Name] = out
		current = out
	}
	return current, outputs, nil
}
