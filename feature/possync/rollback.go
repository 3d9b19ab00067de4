package possync

import (
	"context"
	"fmt"
)

// rollbackStep is a compensating action paired with a name for the
// failure log.
type rollbackStep struct {
	name string
	fn   func(ctx context.Context) error
}

// rollbackStack collects compensating actions during a multi-step sync
// operation. On failure the steps run in reverse order, undoing work
// newest-first.
type rollbackStack struct {
	steps []rollbackStep
}

// push registers a compensating action for work that just succeeded.
func (s *rollbackStack) push(name string, fn func(ctx context.Context) error) {
	s.steps = append(s.steps, rollbackStep{name: name, fn: fn})
}

// rollbackFailure records a compensator that itself failed.
type rollbackFailure struct {
	Step   string
	Detail string
}

// run executes the stack in reverse. A failing compensator is recorded
// and skipped, never retried; the remaining steps still run so one bad
// step cannot strand the rest.
func (s *rollbackStack) run(ctx context.Context) []rollbackFailure {
	var failures []rollbackFailure
	for i := len(s.steps) - 1; i >= 0; i-- {
		step := s.steps[i]
		if err := step.fn(ctx); err != nil {
			failures = append(failures, rollbackFailure{
				Step:   step.name,
				Detail: fmt.Sprintf("%v", err),
			})
		}
	}
	s.steps = nil
	return failures
}
