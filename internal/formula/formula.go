// Package formula evaluates arithmetic formulas whose operands are composite
// "<entity>.<attribute>" keys. Entity names may contain spaces, dots and
// dashes, so operands are matched against the set of known keys (longest
// first) rather than split on punctuation. Results are rounded to a fixed
// number of decimal places using decimal arithmetic.
package formula

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// DecimalPlaces is the precision every result is rounded to.
const DecimalPlaces = 10

// Values maps composite keys to resolved numbers.
type Values = map[string]float64

// ErrSyntax matches every *SyntaxError.
var ErrSyntax = errors.New("formula syntax error")

// ErrEvaluation matches every *EvaluationError.
var ErrEvaluation = errors.New("formula evaluation error")

// SyntaxError reports a formula that cannot be parsed: an operand with no
// known value, a stray character, or a malformed expression.
type SyntaxError struct {
	Formula string
	Pos     int
	Msg     string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("formula syntax error at offset %d: %s (formula: %q)", e.Pos, e.Msg, e.Formula)
}

// Is makes errors.Is(err, ErrSyntax) match.
func (e *SyntaxError) Is(target error) bool {
	return target == ErrSyntax
}

// EvaluationError reports a well-formed formula that does not reduce to a
// finite number, e.g. division by zero.
type EvaluationError struct {
	Formula string
	Msg     string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("formula evaluation error: %s (formula: %q)", e.Msg, e.Formula)
}

// Is makes errors.Is(err, ErrEvaluation) match.
func (e *EvaluationError) Is(target error) bool {
	return target == ErrEvaluation
}

// Expression is a parsed formula ready to be evaluated against values.
type Expression struct {
	source   string
	root     node
	operands []string
}

// Compile parses formula, recognizing any of keys as operands.
func Compile(formula string, keys []string) (*Expression, error) {
	toks, err := tokenize(formula, keys)
	if err != nil {
		return nil, err
	}

	p := &parser{formula: formula, toks: toks}
	root, err := p.parse()
	if err != nil {
		return nil, err
	}

	var operands []string
	seen := make(map[string]bool)
	for _, t := range toks {
		if t.kind == tokOperand && !seen[t.text] {
			seen[t.text] = true
			operands = append(operands, t.text)
		}
	}

	return &Expression{source: formula, root: root, operands: operands}, nil
}

// Operands returns the distinct keys referenced by the expression in order
// of first appearance.
func (e *Expression) Operands() []string {
	out := make([]string, len(e.operands))
	copy(out, e.operands)
	return out
}

// String returns the original formula text.
func (e *Expression) String() string {
	return e.source
}

// Eval computes the expression against values and rounds the result to
// DecimalPlaces.
func (e *Expression) Eval(values Values) (float64, error) {
	for _, key := range e.operands {
		if _, ok := values[key]; !ok {
			return 0, &SyntaxError{Formula: e.source, Pos: 0, Msg: fmt.Sprintf("no value for operand %q", key)}
		}
	}

	v, err := e.root.eval(values)
	if err != nil {
		return 0, &EvaluationError{Formula: e.source, Msg: err.Error()}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &EvaluationError{Formula: e.source, Msg: fmt.Sprintf("result is not finite: %v", v)}
	}
	return Round(v), nil
}

// Evaluate parses formula using the keys of values as operands and returns
// the rounded result.
func Evaluate(formula string, values Values) (float64, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}

	expr, err := Compile(formula, keys)
	if err != nil {
		return 0, err
	}
	return expr.Eval(values)
}

// Round rounds v to DecimalPlaces, half away from zero, using the shortest
// decimal representation of v so binary artifacts like 0.1+0.2 do not leak
// into the result.
func Round(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(DecimalPlaces).Float64()
	return f
}
