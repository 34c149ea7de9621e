package formula

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokOperand
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind  tokenKind
	text  string // operator symbol or operand key
	value float64
	pos   int
}

// tokenize splits formula into tokens. At every token boundary the known
// keys are tried longest first, so "Han Solo.mass" is never read as
// "Han" followed by garbage, and a key containing '-' or '.' is not split
// into operators.
func tokenize(formula string, keys []string) ([]token, error) {
	sorted := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			sorted = append(sorted, k)
		}
	}
	slices.SortFunc(sorted, func(a, b string) int {
		if n := cmp.Compare(len(b), len(a)); n != 0 {
			return n
		}
		return cmp.Compare(a, b)
	})
	known := make(map[string]bool, len(sorted))
	for _, k := range sorted {
		known[k] = true
	}

	var toks []token
	i := 0
	for i < len(formula) {
		r, size := utf8.DecodeRuneInString(formula[i:])
		if unicode.IsSpace(r) {
			i += size
			continue
		}

		if r == '[' {
			key, end, err := scanBracketOperand(formula, i)
			if err != nil {
				return nil, err
			}
			if !known[key] {
				return nil, &SyntaxError{Formula: formula, Pos: i, Msg: fmt.Sprintf("unknown operand %q", key)}
			}
			toks = append(toks, token{kind: tokOperand, text: key, pos: i})
			i = end
			continue
		}

		if key, ok := matchKey(formula, i, sorted); ok {
			toks = append(toks, token{kind: tokOperand, text: key, pos: i})
			i += len(key)
			continue
		}

		switch {
		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case strings.ContainsRune("+-*/^", r):
			toks = append(toks, token{kind: tokOp, text: string(r), pos: i})
			i++
		case isDigit(r) || r == '.':
			end := scanNumber(formula, i)
			v, err := strconv.ParseFloat(formula[i:end], 64)
			if err != nil {
				return nil, &SyntaxError{Formula: formula, Pos: i, Msg: fmt.Sprintf("invalid number %q", formula[i:end])}
			}
			toks = append(toks, token{kind: tokNumber, text: formula[i:end], value: v, pos: i})
			i = end
		default:
			end := i
			for end < len(formula) {
				c, sz := utf8.DecodeRuneInString(formula[end:])
				if unicode.IsSpace(c) || strings.ContainsRune("+-*/^()", c) {
					break
				}
				end += sz
			}
			return nil, &SyntaxError{Formula: formula, Pos: i, Msg: fmt.Sprintf("unknown operand %q", formula[i:end])}
		}
	}

	if len(toks) == 0 {
		return nil, &SyntaxError{Formula: formula, Pos: 0, Msg: "empty formula"}
	}
	return toks, nil
}

// matchKey returns the longest key that starts at formula[i:] and is not
// immediately followed by an identifier character.
func matchKey(formula string, i int, sorted []string) (string, bool) {
	rest := formula[i:]
	for _, k := range sorted {
		if !strings.HasPrefix(rest, k) {
			continue
		}
		if next, _ := utf8.DecodeRuneInString(rest[len(k):]); len(rest) > len(k) && isIdentRune(next) {
			continue
		}
		return k, true
	}
	return "", false
}

// scanBracketOperand reads ['key'] or ["key"] starting at formula[start]
// and returns the key and the offset just past the closing bracket.
func scanBracketOperand(formula string, start int) (string, int, error) {
	i := start + 1
	for i < len(formula) && formula[i] == ' ' {
		i++
	}
	if i >= len(formula) || (formula[i] != '\'' && formula[i] != '"') {
		return "", 0, &SyntaxError{Formula: formula, Pos: start, Msg: "expected quoted operand after '['"}
	}
	quote := formula[i]

	closing := strings.IndexByte(formula[i+1:], quote)
	if closing < 0 {
		return "", 0, &SyntaxError{Formula: formula, Pos: i, Msg: "unterminated quoted operand"}
	}
	key := formula[i+1 : i+1+closing]

	j := i + 1 + closing + 1
	for j < len(formula) && formula[j] == ' ' {
		j++
	}
	if j >= len(formula) || formula[j] != ']' {
		return "", 0, &SyntaxError{Formula: formula, Pos: j, Msg: "expected ']' after quoted operand"}
	}
	return key, j + 1, nil
}

// scanNumber returns the end offset of a decimal literal with optional
// exponent starting at formula[start].
func scanNumber(formula string, start int) int {
	i := start
	for i < len(formula) && (isDigit(rune(formula[i])) || formula[i] == '.') {
		i++
	}
	if i < len(formula) && (formula[i] == 'e' || formula[i] == 'E') {
		j := i + 1
		if j < len(formula) && (formula[j] == '+' || formula[j] == '-') {
			j++
		}
		if j < len(formula) && isDigit(rune(formula[j])) {
			for j < len(formula) && isDigit(rune(formula[j])) {
				j++
			}
			i = j
		}
	}
	return i
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
