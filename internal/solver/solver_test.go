package solver_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/galacticalc/internal/challenge"
	"github.com/scrypster/galacticalc/internal/interpreter"
	"github.com/scrypster/galacticalc/internal/resolver"
	"github.com/scrypster/galacticalc/internal/solver"
	"github.com/scrypster/galacticalc/pkg/types"
)

// MockChallenge is a testify mock of challenge.Service.
type MockChallenge struct {
	mock.Mock
}

func (m *MockChallenge) Start(ctx context.Context) (*types.Problem, error) {
	args := m.Called(ctx)
	p, _ := args.Get(0).(*types.Problem)
	return p, args.Error(1)
}

func (m *MockChallenge) Submit(ctx context.Context, problemID string, answer float64) (*types.SubmitResult, error) {
	args := m.Called(ctx, problemID, answer)
	r, _ := args.Get(0).(*types.SubmitResult)
	return r, args.Error(1)
}

// MockInterpreter is a testify mock of interpreter.Interpreter.
type MockInterpreter struct {
	mock.Mock
}

func (m *MockInterpreter) Interpret(ctx context.Context, text string) (*types.Interpretation, error) {
	args := m.Called(ctx, text)
	i, _ := args.Get(0).(*types.Interpretation)
	return i, args.Error(1)
}

// MockResolver is a testify mock of solver.Resolver.
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, req resolver.Request) (resolver.Values, error) {
	args := m.Called(ctx, req)
	v, _ := args.Get(0).(resolver.Values)
	return v, args.Error(1)
}

// memRecorder collects recorded attempts.
type memRecorder struct {
	mu       sync.Mutex
	attempts []types.Attempt
	err      error
}

func (r *memRecorder) Record(_ context.Context, a types.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, a)
	return r.err
}

// stepClock advances by step on every call.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

var (
	vaderProblem = &types.Problem{ID: "p1", Problem: "Darth Vader y Charmander"}
	hanProblem   = &types.Problem{ID: "p2", Problem: "Han y Han Solo"}

	vaderInterp = &types.Interpretation{
		EntitiesAttributes: map[string][]string{"Darth Vader": {"height"}, "Charmander": {"weight"}},
		Formula:            "Darth Vader.height * Charmander.weight",
	}
	hanInterp = &types.Interpretation{
		EntitiesAttributes: map[string][]string{"Han": {"mass"}, "Han Solo": {"mass"}},
		Formula:            "Han.mass + Han Solo.mass",
	}
)

func TestRun_SolvesUntilChallengeEnds(t *testing.T) {
	ch := new(MockChallenge)
	in := new(MockInterpreter)
	res := new(MockResolver)
	rec := &memRecorder{}

	ch.On("Start", mock.Anything).Return(vaderProblem, nil).Once()
	ch.On("Submit", mock.Anything, "p1", 17170.0).
		Return(&types.SubmitResult{Message: "ok", Correct: 1, NextProblem: hanProblem}, nil).Once()
	ch.On("Submit", mock.Anything, "p2", 85.0).
		Return(&types.SubmitResult{Message: "done", Correct: 2}, nil).Once()

	in.On("Interpret", mock.Anything, vaderProblem.Problem).Return(vaderInterp, nil)
	in.On("Interpret", mock.Anything, hanProblem.Problem).Return(hanInterp, nil)

	res.On("Resolve", mock.Anything, resolver.Request(vaderInterp.EntitiesAttributes)).
		Return(resolver.Values{"Darth Vader.height": 202, "Charmander.weight": 85}, nil)
	res.On("Resolve", mock.Anything, resolver.Request(hanInterp.EntitiesAttributes)).
		Return(resolver.Values{"Han.mass": 5, "Han Solo.mass": 80}, nil)

	s := solver.New(ch, in, res, solver.Config{}, solver.WithRecorder(rec))

	summary, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, solver.StopCompleted, summary.Reason)
	assert.Equal(t, 2, summary.Problems)
	assert.Equal(t, 2, summary.Solved)
	assert.Equal(t, 0, summary.Defaulted)
	assert.Equal(t, 2, summary.Correct)
	assert.Equal(t, "done", summary.Message)
	assert.NotEmpty(t, summary.SessionID)

	require.Len(t, rec.attempts, 2)
	for _, a := range rec.attempts {
		assert.Equal(t, summary.SessionID, a.SessionID)
		assert.Equal(t, types.OutcomeSolved, a.Outcome)
	}
	assert.Equal(t, 202.0, rec.attempts[0].Values["Darth Vader.height"])

	ch.AssertExpectations(t)
	in.AssertExpectations(t)
	res.AssertExpectations(t)
}

func TestRun_DefaultsOnInterpretationFailure(t *testing.T) {
	ch := new(MockChallenge)
	in := new(MockInterpreter)
	res := new(MockResolver)

	ch.On("Start", mock.Anything).Return(vaderProblem, nil)
	ch.On("Submit", mock.Anything, "p1", 0.0).Return(&types.SubmitResult{Incorrect: 1}, nil).Once()

	in.On("Interpret", mock.Anything, mock.Anything).
		Return(nil, &interpreter.InterpretationError{Err: errors.New("bad output")})

	s := solver.New(ch, in, res, solver.Config{})

	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Defaulted)
	assert.Equal(t, 1, summary.Incorrect)

	res.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
	ch.AssertExpectations(t)
}

func TestRun_DefaultsOnFormulaFailure(t *testing.T) {
	ch := new(MockChallenge)
	in := new(MockInterpreter)
	res := new(MockResolver)
	rec := &memRecorder{}

	broken := &types.Interpretation{
		EntitiesAttributes: map[string][]string{"Yoda": {"mass"}},
		Formula:            "Yoda.mass / Luke.mass",
	}

	ch.On("Start", mock.Anything).Return(vaderProblem, nil)
	ch.On("Submit", mock.Anything, "p1", -1.0).Return(&types.SubmitResult{}, nil).Once()
	in.On("Interpret", mock.Anything, mock.Anything).Return(broken, nil)
	res.On("Resolve", mock.Anything, mock.Anything).Return(resolver.Values{"Yoda.mass": 17}, nil)

	s := solver.New(ch, in, res, solver.Config{DefaultAnswer: -1}, solver.WithRecorder(rec))

	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Defaulted)

	require.Len(t, rec.attempts, 1)
	assert.Equal(t, types.OutcomeDefaulted, rec.attempts[0].Outcome)
	assert.Contains(t, rec.attempts[0].Error, "unknown operand")
	assert.Equal(t, broken, rec.attempts[0].Interpretation)
	ch.AssertExpectations(t)
}

func TestRun_DefaultsOnStrictResolverFailure(t *testing.T) {
	ch := new(MockChallenge)
	in := new(MockInterpreter)
	res := new(MockResolver)

	ch.On("Start", mock.Anything).Return(vaderProblem, nil)
	ch.On("Submit", mock.Anything, "p1", 0.0).Return(&types.SubmitResult{}, nil).Once()
	in.On("Interpret", mock.Anything, mock.Anything).Return(vaderInterp, nil)
	res.On("Resolve", mock.Anything, mock.Anything).Return(
		resolver.Values{"Darth Vader.height": 202, "Charmander.weight": 0},
		&resolver.UnresolvedError{Failures: map[string]error{"Charmander.weight": errors.New("not found")}},
	)

	s := solver.New(ch, in, res, solver.Config{})

	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Defaulted)
	ch.AssertExpectations(t)
}

func TestRun_StartFailureIsFatal(t *testing.T) {
	ch := new(MockChallenge)
	startErr := &challenge.Error{Op: "start", Err: errors.New("connection refused")}
	ch.On("Start", mock.Anything).Return(nil, startErr)

	s := solver.New(ch, new(MockInterpreter), new(MockResolver), solver.Config{})

	summary, err := s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, challenge.ErrChallenge))
	assert.Equal(t, solver.StopStartFailed, summary.Reason)
	assert.Equal(t, 0, summary.Problems)
}

func TestRun_SubmitFailureEndsSession(t *testing.T) {
	ch := new(MockChallenge)
	in := new(MockInterpreter)
	res := new(MockResolver)
	rec := &memRecorder{}

	ch.On("Start", mock.Anything).Return(vaderProblem, nil)
	ch.On("Submit", mock.Anything, "p1", mock.Anything).
		Return(nil, &challenge.Error{Op: "submit", Err: errors.New("503")})
	in.On("Interpret", mock.Anything, mock.Anything).Return(vaderInterp, nil)
	res.On("Resolve", mock.Anything, mock.Anything).
		Return(resolver.Values{"Darth Vader.height": 202, "Charmander.weight": 85}, nil)

	s := solver.New(ch, in, res, solver.Config{}, solver.WithRecorder(rec))

	summary, err := s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, challenge.ErrChallenge))
	assert.Equal(t, solver.StopSubmitFailed, summary.Reason)
	assert.Len(t, rec.attempts, 1, "the attempt is recorded even when submission fails")
}

func TestRun_StopsWhenTimeBudgetExhausted(t *testing.T) {
	ch := new(MockChallenge)
	in := new(MockInterpreter)
	res := new(MockResolver)

	loop := &types.SubmitResult{NextProblem: vaderProblem}
	ch.On("Start", mock.Anything).Return(vaderProblem, nil)
	ch.On("Submit", mock.Anything, "p1", 17170.0).Return(loop, nil)
	in.On("Interpret", mock.Anything, mock.Anything).Return(vaderInterp, nil)
	res.On("Resolve", mock.Anything, mock.Anything).
		Return(resolver.Values{"Darth Vader.height": 202, "Charmander.weight": 85}, nil)

	// Run reads the clock once at start, then per problem: budget check,
	// solve start, solve end. Each read advances 10s, so with a 65s budget
	// the budget check passes at 10s and 40s and fails at 70s.
	clock := &stepClock{now: time.Unix(0, 0), step: 10 * time.Second}
	s := solver.New(ch, in, res, solver.Config{TimeBudget: 65 * time.Second}, solver.WithClock(clock.Now))

	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, solver.StopTimeBudget, summary.Reason)
	assert.Equal(t, 2, summary.Problems)
	ch.AssertNumberOfCalls(t, "Submit", 2)
}

func TestRun_MaxProblems(t *testing.T) {
	ch := new(MockChallenge)
	in := new(MockInterpreter)
	res := new(MockResolver)

	ch.On("Start", mock.Anything).Return(vaderProblem, nil)
	ch.On("Submit", mock.Anything, mock.Anything, mock.Anything).
		Return(&types.SubmitResult{NextProblem: vaderProblem}, nil)
	in.On("Interpret", mock.Anything, mock.Anything).Return(vaderInterp, nil)
	res.On("Resolve", mock.Anything, mock.Anything).
		Return(resolver.Values{"Darth Vader.height": 202, "Charmander.weight": 85}, nil)

	s := solver.New(ch, in, res, solver.Config{MaxProblems: 3})

	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, solver.StopProblemsLimit, summary.Reason)
	assert.Equal(t, 3, summary.Problems)
}

func TestRun_CancelledContextStopsBeforeNextProblem(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	ch := new(MockChallenge)
	in := new(MockInterpreter)
	res := new(MockResolver)

	ch.On("Start", mock.Anything).Return(vaderProblem, nil)
	ch.On("Submit", mock.Anything, "p1", mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(&types.SubmitResult{NextProblem: hanProblem}, nil).Once()
	in.On("Interpret", mock.Anything, mock.Anything).Return(vaderInterp, nil)
	res.On("Resolve", mock.Anything, mock.Anything).
		Return(resolver.Values{"Darth Vader.height": 202, "Charmander.weight": 85}, nil)

	s := solver.New(ch, in, res, solver.Config{})

	summary, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, solver.StopCancelled, summary.Reason)
	assert.Equal(t, 1, summary.Problems)
	ch.AssertExpectations(t)
}

func TestRun_RecorderErrorsAreIgnored(t *testing.T) {
	ch := new(MockChallenge)
	in := new(MockInterpreter)
	res := new(MockResolver)
	rec := &memRecorder{err: errors.New("disk full")}

	ch.On("Start", mock.Anything).Return(vaderProblem, nil)
	ch.On("Submit", mock.Anything, mock.Anything, mock.Anything).Return(&types.SubmitResult{}, nil)
	in.On("Interpret", mock.Anything, mock.Anything).Return(vaderInterp, nil)
	res.On("Resolve", mock.Anything, mock.Anything).
		Return(resolver.Values{"Darth Vader.height": 202, "Charmander.weight": 85}, nil)

	s := solver.New(ch, in, res, solver.Config{}, solver.WithRecorder(rec))

	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, solver.StopCompleted, summary.Reason)
	assert.Equal(t, 1, summary.Solved)
}

func TestSolve_RoundsAnswer(t *testing.T) {
	in := new(MockInterpreter)
	res := new(MockResolver)

	interp := &types.Interpretation{
		EntitiesAttributes: map[string][]string{"Yoda": {"mass"}},
		Formula:            "Yoda.mass / 3",
	}
	in.On("Interpret", mock.Anything, mock.Anything).Return(interp, nil)
	res.On("Resolve", mock.Anything, mock.Anything).Return(resolver.Values{"Yoda.mass": 10}, nil)

	s := solver.New(new(MockChallenge), in, res, solver.Config{})

	attempt := s.Solve(context.Background(), &types.Problem{ID: "p", Problem: "Yoda"})
	assert.Equal(t, types.OutcomeSolved, attempt.Outcome)
	assert.Equal(t, 3.3333333333, attempt.Answer)
	assert.Empty(t, attempt.Error)
}
