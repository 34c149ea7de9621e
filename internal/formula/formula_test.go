package formula_test

import (
	"errors"
	"testing"

	"github.com/scrypster/galacticalc/internal/formula"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_SpacedNames(t *testing.T) {
	got, err := formula.Evaluate("Darth Vader.height * Charmander.weight", formula.Values{
		"Darth Vader.height": 202,
		"Charmander.weight":  85,
	})
	require.NoError(t, err)
	assert.Equal(t, 17170.0, got)
}

// TestEvaluate_PrefixSafety verifies a shorter key never matches inside a
// longer one.
func TestEvaluate_PrefixSafety(t *testing.T) {
	got, err := formula.Evaluate("Han.mass + Han Solo.mass", formula.Values{
		"Han.mass":      5,
		"Han Solo.mass": 80,
	})
	require.NoError(t, err)
	assert.Equal(t, 85.0, got)

	got, err = formula.Evaluate("Han Solo.mass - Han.mass", formula.Values{
		"Han.mass":      5,
		"Han Solo.mass": 80,
	})
	require.NoError(t, err)
	assert.Equal(t, 75.0, got)
}

func TestEvaluate_Rounding(t *testing.T) {
	got, err := formula.Evaluate("10 / 3", nil)
	require.NoError(t, err)
	assert.Equal(t, 3.3333333333, got)

	got, err = formula.Evaluate("2 / 3", nil)
	require.NoError(t, err)
	assert.Equal(t, 0.6666666667, got)

	got, err = formula.Evaluate("0.1 + 0.2", nil)
	require.NoError(t, err)
	assert.Equal(t, 0.3, got)
}

func TestEvaluate_MissingKeyIsSyntaxError(t *testing.T) {
	_, err := formula.Evaluate("Yoda.mass + Luke Skywalker.mass", formula.Values{"Yoda.mass": 17})
	require.Error(t, err)
	assert.True(t, errors.Is(err, formula.ErrSyntax))

	var se *formula.SyntaxError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 12, se.Pos)
}

func TestEvaluate_BracketSyntax(t *testing.T) {
	values := formula.Values{
		"Luke Skywalker.mass":     77,
		"Vulpix.base_experience":  60,
		"Tatooine.orbital_period": 304,
	}

	got, err := formula.Evaluate(`['Luke Skywalker.mass'] * ["Vulpix.base_experience"]`, values)
	require.NoError(t, err)
	assert.Equal(t, 4620.0, got)

	got, err = formula.Evaluate(`[ 'Tatooine.orbital_period' ] - Luke Skywalker.mass`, values)
	require.NoError(t, err)
	assert.Equal(t, 227.0, got)
}

func TestEvaluate_BracketSyntaxErrors(t *testing.T) {
	values := formula.Values{"Yoda.mass": 17}

	for _, f := range []string{
		`['Luke.mass']`,
		`['Yoda.mass'`,
		`['Yoda.mass`,
		`[Yoda.mass]`,
	} {
		_, err := formula.Evaluate(f, values)
		assert.Truef(t, errors.Is(err, formula.ErrSyntax), "formula %q: got %v", f, err)
	}
}

// TestEvaluate_PunctuatedNames verifies names containing operator characters
// are read as a single operand.
func TestEvaluate_PunctuatedNames(t *testing.T) {
	got, err := formula.Evaluate("Obi-Wan Kenobi.mass - R2-D2.height / 2", formula.Values{
		"Obi-Wan Kenobi.mass": 77,
		"R2-D2.height":        96,
	})
	require.NoError(t, err)
	assert.Equal(t, 29.0, got)

	got, err = formula.Evaluate("Mr. Mime.weight*2", formula.Values{"Mr. Mime.weight": 545})
	require.NoError(t, err)
	assert.Equal(t, 1090.0, got)
}

func TestEvaluate_Precedence(t *testing.T) {
	tests := []struct {
		formula string
		want    float64
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"10 - 4 - 3", 3},
		{"16 / 4 / 2", 2},
		{"2 ^ 3 ^ 2", 512},
		{"-2 ^ 2", -4},
		{"2 ^ -1", 0.5},
		{"-(3 - 5)", 2},
		{"+4 * -2", -8},
		{"1.5e2 + .5", 150.5},
		{"((Squirtle.base_experience * Tatooine.orbital_period)) / Yoda.mass", 1126.5882352941},
	}

	values := formula.Values{
		"Squirtle.base_experience": 63,
		"Tatooine.orbital_period":  304,
		"Yoda.mass":                17,
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			got, err := formula.Evaluate(tt.formula, values)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_MalformedFormulas(t *testing.T) {
	for _, f := range []string{
		"",
		"   ",
		"1 +",
		"* 2",
		"(1 + 2",
		"1 + 2)",
		"2 3",
		"1..2",
		"1 % 2",
		"Math.max(1, 2)",
		"Yoda.mass2",
	} {
		t.Run(f, func(t *testing.T) {
			_, err := formula.Evaluate(f, formula.Values{"Yoda.mass": 1})
			require.Error(t, err)
			assert.True(t, errors.Is(err, formula.ErrSyntax), "got %v", err)
		})
	}
}

func TestEvaluate_DivisionByZero(t *testing.T) {
	_, err := formula.Evaluate("Hoth.population / Yoda.mass", formula.Values{
		"Hoth.population": 0,
		"Yoda.mass":       0,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, formula.ErrEvaluation))
	assert.False(t, errors.Is(err, formula.ErrSyntax))
}

func TestEvaluate_NonFiniteResult(t *testing.T) {
	for _, f := range []string{"0 ^ -1", "(-8) ^ 0.5", "10 ^ 400"} {
		_, err := formula.Evaluate(f, nil)
		assert.Truef(t, errors.Is(err, formula.ErrEvaluation), "formula %q: got %v", f, err)
	}
}

func TestCompile_Operands(t *testing.T) {
	expr, err := formula.Compile("Yoda.mass * 2 + ['Yoda.mass'] - Hoth.diameter", []string{"Yoda.mass", "Hoth.diameter", "Unused.mass"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Yoda.mass", "Hoth.diameter"}, expr.Operands())
	assert.Equal(t, "Yoda.mass * 2 + ['Yoda.mass'] - Hoth.diameter", expr.String())

	got, err := expr.Eval(formula.Values{"Yoda.mass": 17, "Hoth.diameter": 7200})
	require.NoError(t, err)
	assert.Equal(t, -7166.0, got)

	_, err = expr.Eval(formula.Values{"Yoda.mass": 17})
	assert.True(t, errors.Is(err, formula.ErrSyntax), "evaluating without every operand must fail")
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.0, formula.Round(0.99999999999))
	assert.Equal(t, 0.0000000001, formula.Round(0.00000000005))
	assert.Equal(t, -0.0000000001, formula.Round(-0.00000000005))
	assert.Equal(t, 17170.0, formula.Round(17170))
}
