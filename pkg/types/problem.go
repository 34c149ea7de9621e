package types

import "time"

// Problem is a single word problem handed out by the challenge service.
type Problem struct {
	ID      string `json:"id"`
	Problem string `json:"problem"`
}

// SubmitResult is the challenge service's reply to an answer submission.
// NextProblem is nil once the challenge has ended.
type SubmitResult struct {
	Message     string   `json:"message"`
	Correct     int      `json:"correct"`
	Incorrect   int      `json:"incorrect"`
	NextProblem *Problem `json:"next_problem,omitempty"`
}

// Interpretation is the structured reading of a problem produced by the
// interpreter: which attributes of which entities are needed, and the
// formula combining them.
type Interpretation struct {
	EntitiesAttributes map[string][]string `json:"entities_attributes"`
	Formula            string              `json:"formula"`
}

// Outcome describes how a solving attempt ended.
type Outcome string

const (
	// OutcomeSolved means the formula evaluated and the answer was submitted.
	OutcomeSolved Outcome = "solved"

	// OutcomeDefaulted means solving failed and the default answer was submitted.
	OutcomeDefaulted Outcome = "defaulted"
)

// Attempt records one pass through the solve loop for a single problem.
type Attempt struct {
	SessionID      string             `json:"session_id"`
	ProblemID      string             `json:"problem_id"`
	ProblemText    string             `json:"problem_text"`
	Interpretation *Interpretation    `json:"interpretation,omitempty"`
	Values         map[string]float64 `json:"values,omitempty"`
	Answer         float64            `json:"answer"`
	Outcome        Outcome            `json:"outcome"`
	Error          string             `json:"error,omitempty"`
	Duration       time.Duration      `json:"duration"`
	CreatedAt      time.Time          `json:"created_at"`
}
