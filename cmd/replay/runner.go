package replay

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/evalgrid/postit/internal/assignment"
	"github.com/evalgrid/postit/internal/session"
	"github.com/evalgrid/postit/internal/workflow"
)

// Finder resolves criterion and practice names.
type Finder interface {
	FindCriterion(ctx context.Context, name string) (assignment.Candidate, error)
	FindPractice(ctx context.Context, name string) (assignment.Candidate, error)
}

// Runner drives a session through a script, printing the step state after
// every action.
type Runner struct {
	sess  *session.Session
	find  Finder
	clock *workflow.ManualScheduler
	out   io.Writer
}

// NewRunner returns a runner. clock must be the scheduler the session was
// created with.
func NewRunner(sess *session.Session, find Finder, clock *workflow.ManualScheduler, out io.Writer) *Runner {
	return &Runner{sess: sess, find: find, clock: clock, out: out}
}

// result is what one action produced, for printing and expectations.
type result struct {
	detail  string
	outcome string
}

// Run executes every action in order. An action error not marked as
// expected stops the run; an unmet expectation does too.
func (r *Runner) Run(ctx context.Context, s *Script) error {
	for i, a := range s.Actions {
		verb, err := a.verb()
		if err != nil {
			return fmt.Errorf("action %d: %w", i+1, err)
		}

		res, err := r.apply(ctx, verb, a)
		if err != nil {
			fmt.Fprintf(r.out, "%2d %-9s error: %v\n", i+1, verb, err)
			if a.Expect == nil || !a.Expect.Error {
				return fmt.Errorf("action %d (%s): %w", i+1, verb, err)
			}
		} else {
			fmt.Fprintf(r.out, "%2d %-9s %s\n", i+1, verb, res.detail)
			if a.Expect != nil && a.Expect.Error {
				return fmt.Errorf("action %d (%s): expected an error", i+1, verb)
			}
		}
		fmt.Fprintf(r.out, "   %s\n", r.state())

		if a.Expect != nil {
			if err := r.check(a.Expect, res); err != nil {
				return fmt.Errorf("action %d (%s): %w", i+1, verb, err)
			}
		}
	}
	return nil
}

func (r *Runner) apply(ctx context.Context, verb string, a Action) (result, error) {
	switch verb {
	case "select":
		step, err := r.sess.Select(ctx, a.Select)
		return result{detail: fmt.Sprintf("annotation %d, entry step %s", a.Select, step)}, err

	case "criterion":
		c, err := r.find.FindCriterion(ctx, a.Criterion)
		if err != nil {
			return result{}, err
		}
		out, err := r.sess.ToggleCriterion(c)
		if err != nil {
			return result{}, err
		}
		detail := fmt.Sprintf("%q %s", c.Label, out.Kind)
		if out.PracticeCleared {
			detail += ", practice cleared"
		}
		return result{detail: detail, outcome: out.Kind.String()}, nil

	case "practice":
		p, err := r.find.FindPractice(ctx, a.Practice)
		if err != nil {
			return result{}, err
		}
		out, err := r.sess.TogglePractice(p)
		if err != nil {
			return result{}, err
		}
		detail := fmt.Sprintf("%q %s", p.Label, out.Kind)
		if out.Reason != "" {
			detail += " (" + out.Reason + ")"
		}
		return result{detail: detail, outcome: out.Kind.String()}, nil

	case "next":
		step, err := r.sess.Next()
		return result{detail: "to " + step.String()}, err

	case "back":
		step, err := r.sess.Back()
		return result{detail: "to " + step.String()}, err

	case "goto":
		target, _ := assignment.ParseStep(a.GoTo)
		step, err := r.sess.GoTo(target)
		return result{detail: "to " + step.String()}, err

	case "wait":
		fired := r.clock.Advance(a.Wait)
		return result{detail: fmt.Sprintf("%s, %d timer(s) fired", a.Wait, fired)}, nil

	case "save":
		res, err := r.sess.Save(ctx)
		if err != nil {
			return result{}, err
		}
		detail := fmt.Sprintf("annotation %d, criteria inserted %v, practices inserted %v",
			res.AnnotationID, res.CriteriaInserted, res.PracticesInserted)
		if res.ReconcileErr != nil {
			detail += fmt.Sprintf(", reconcile error: %v", res.ReconcileErr)
		}
		return result{detail: detail}, nil

	case "delete":
		res, err := r.sess.Delete(ctx)
		if err != nil {
			return result{}, err
		}
		return result{detail: fmt.Sprintf("annotation %d, criterion released %t, practice released %t",
			res.AnnotationID, res.CriterionReleased, res.PracticeReleased)}, nil
	}
	return result{}, fmt.Errorf("unknown action %q", verb)
}

// state renders the active step, the four step states and completion.
func (r *Runner) state() string {
	a, ok := r.sess.Selected()
	if !ok {
		return "no selection"
	}

	active := r.sess.ActiveStep()
	var b strings.Builder
	fmt.Fprintf(&b, "step=%s [", active)
	for i, st := range r.sess.Steps() {
		if i > 0 {
			b.WriteByte(' ')
		}
		mark := "locked"
		switch {
		case st.Completed:
			mark = "done"
		case st.Accessible:
			mark = "open"
		}
		if st.Step == active {
			mark += "*"
		}
		fmt.Fprintf(&b, "%s:%s", st.Step, mark)
	}
	fmt.Fprintf(&b, "] criterion=%q practice=%q completion=%d%%",
		a.CriterionLabel, a.PracticeLabel, assignment.CompletionPercentage(a))
	if r.sess.HasPendingAdvance() {
		b.WriteString(" advance-pending")
	}
	return b.String()
}

func (r *Runner) check(e *Expectation, res result) error {
	if e.Step != "" {
		want, _ := assignment.ParseStep(e.Step)
		if got := r.sess.ActiveStep(); got != want {
			return fmt.Errorf("expected step %s, got %s", want, got)
		}
	}
	if e.Outcome != "" && e.Outcome != res.outcome {
		return fmt.Errorf("expected outcome %s, got %q", e.Outcome, res.outcome)
	}
	if e.Completion != nil {
		a, ok := r.sess.Selected()
		if !ok {
			return fmt.Errorf("expected completion %d%% but nothing is selected", *e.Completion)
		}
		if got := assignment.CompletionPercentage(a); got != *e.Completion {
			return fmt.Errorf("expected completion %d%%, got %d%%", *e.Completion, got)
		}
	}
	return nil
}
