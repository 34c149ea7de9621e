// Package solver drives a challenge session: it fetches a problem, has it
// interpreted, resolves the referenced attributes, evaluates the formula and
// submits the answer, then repeats with the next problem until the challenge
// ends or the session's time budget runs out.
//
// A problem that cannot be solved is answered with the default answer so the
// session can move on. Only a failure to start the session or to submit an
// answer stops the loop early.
package solver

import (
	"context"
	"fmt"
	"log"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/galacticalc/internal/challenge"
	"github.com/scrypster/galacticalc/internal/formula"
	"github.com/scrypster/galacticalc/internal/interpreter"
	"github.com/scrypster/galacticalc/internal/resolver"
	"github.com/scrypster/galacticalc/pkg/types"
)

// Resolver resolves attribute requests to values.
type Resolver interface {
	Resolve(ctx context.Context, req resolver.Request) (resolver.Values, error)
}

// Recorder persists solving attempts. Recording failures are logged and never
// affect the session.
type Recorder interface {
	Record(ctx context.Context, a types.Attempt) error
}

// StopReason explains why a session ended.
type StopReason string

const (
	StopCompleted     StopReason = "completed"
	StopTimeBudget    StopReason = "time_budget"
	StopCancelled     StopReason = "cancelled"
	StopSubmitFailed  StopReason = "submit_failed"
	StopStartFailed   StopReason = "start_failed"
	StopProblemsLimit StopReason = "problem_limit"
)

// Config controls the solve loop.
type Config struct {
	TimeBudget    time.Duration // default: 3m
	DefaultAnswer float64
	MaxProblems   int // 0 means unlimited
}

// Summary describes a finished session.
type Summary struct {
	SessionID string
	Problems  int
	Solved    int
	Defaulted int
	Correct   int
	Incorrect int
	Message   string
	Elapsed   time.Duration
	Reason    StopReason
}

// Solver runs challenge sessions.
type Solver struct {
	challenge   challenge.Service
	interpreter interpreter.Interpreter
	resolver    Resolver
	recorder    Recorder
	cfg         Config
	now         func() time.Time
}

// Option configures a Solver.
type Option func(*Solver)

// WithRecorder records every attempt to r.
func WithRecorder(r Recorder) Option {
	return func(s *Solver) { s.recorder = r }
}

// WithClock replaces the clock used for the time budget.
func WithClock(now func() time.Time) Option {
	return func(s *Solver) { s.now = now }
}

// New creates a Solver.
func New(ch challenge.Service, interp interpreter.Interpreter, res Resolver, cfg Config, opts ...Option) *Solver {
	if cfg.TimeBudget <= 0 {
		cfg.TimeBudget = 3 * time.Minute
	}
	s := &Solver{
		challenge:   ch,
		interpreter: interp,
		resolver:    res,
		cfg:         cfg,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run plays one challenge session. The returned summary is always non-nil;
// the error is set when the session could not start or an answer could not
// be submitted.
func (s *Solver) Run(ctx context.Context) (*Summary, error) {
	start := s.now()
	deadline := start.Add(s.cfg.TimeBudget)
	summary := &Summary{SessionID: uuid.NewString()}
	defer func() { summary.Elapsed = s.now().Sub(start) }()

	log.Printf("solver: starting session %s (budget %s)", summary.SessionID, s.cfg.TimeBudget)

	problem, err := s.challenge.Start(ctx)
	if err != nil {
		summary.Reason = StopStartFailed
		return summary, err
	}

	for problem != nil {
		if err := ctx.Err(); err != nil {
			summary.Reason = StopCancelled
			return summary, nil
		}
		if !s.now().Before(deadline) {
			log.Printf("solver: time budget exhausted after %d problems", summary.Problems)
			summary.Reason = StopTimeBudget
			return summary, nil
		}
		if s.cfg.MaxProblems > 0 && summary.Problems >= s.cfg.MaxProblems {
			summary.Reason = StopProblemsLimit
			return summary, nil
		}

		attempt := s.Solve(ctx, problem)
		attempt.SessionID = summary.SessionID
		summary.Problems++
		if attempt.Outcome == types.OutcomeSolved {
			summary.Solved++
		} else {
			summary.Defaulted++
		}

		result, err := s.challenge.Submit(ctx, problem.ID, attempt.Answer)
		s.record(ctx, attempt)
		if err != nil {
			summary.Reason = StopSubmitFailed
			return summary, fmt.Errorf("problem %s: %w", problem.ID, err)
		}

		summary.Correct = result.Correct
		summary.Incorrect = result.Incorrect
		summary.Message = result.Message
		log.Printf("solver: submitted %v for problem %s (%s): %d correct, %d incorrect",
			attempt.Answer, problem.ID, attempt.Outcome, result.Correct, result.Incorrect)

		problem = result.NextProblem
	}

	log.Printf("solver: challenge completed: %s", summary.Message)
	summary.Reason = StopCompleted
	return summary, nil
}

// Solve works out the answer to a single problem. It never fails: when any
// step fails the attempt carries the default answer, the error text and
// OutcomeDefaulted.
func (s *Solver) Solve(ctx context.Context, problem *types.Problem) types.Attempt {
	started := s.now()
	attempt := types.Attempt{
		ProblemID:   problem.ID,
		ProblemText: problem.Problem,
		CreatedAt:   started.UTC(),
	}

	answer, err := s.solve(ctx, problem, &attempt)
	attempt.Duration = s.now().Sub(started)
	if err != nil {
		log.Printf("solver: problem %s: %v; submitting default answer %v", problem.ID, err, s.cfg.DefaultAnswer)
		attempt.Answer = s.cfg.DefaultAnswer
		attempt.Outcome = types.OutcomeDefaulted
		attempt.Error = err.Error()
		return attempt
	}

	attempt.Answer = answer
	attempt.Outcome = types.OutcomeSolved
	return attempt
}

func (s *Solver) solve(ctx context.Context, problem *types.Problem, attempt *types.Attempt) (float64, error) {
	interp, err := s.interpreter.Interpret(ctx, problem.Problem)
	if err != nil {
		return 0, err
	}
	attempt.Interpretation = interp

	values, err := s.resolver.Resolve(ctx, resolver.Request(interp.EntitiesAttributes))
	if values != nil {
		attempt.Values = maps.Clone(values)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve attributes: %w", err)
	}

	answer, err := formula.Evaluate(interp.Formula, values)
	if err != nil {
		return 0, err
	}
	return answer, nil
}

func (s *Solver) record(ctx context.Context, attempt types.Attempt) {
	if s.recorder == nil {
		return
	}
	// A cancelled session still gets its last attempt written.
	if err := s.recorder.Record(context.WithoutCancel(ctx), attempt); err != nil {
		log.Printf("solver: failed to record attempt for problem %s: %v", attempt.ProblemID, err)
	}
}
