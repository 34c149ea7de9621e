package formula

import (
	"errors"
	"fmt"
	"math"
)

var errDivisionByZero = errors.New("division by zero")

// node is an expression tree element.
type node interface {
	eval(values Values) (float64, error)
}

type numberNode struct {
	value float64
}

func (n numberNode) eval(Values) (float64, error) {
	return n.value, nil
}

type operandNode struct {
	key string
}

func (n operandNode) eval(values Values) (float64, error) {
	v, ok := values[n.key]
	if !ok {
		return 0, fmt.Errorf("no value for operand %q", n.key)
	}
	return v, nil
}

type unaryNode struct {
	op      byte
	operand node
}

func (n unaryNode) eval(values Values) (float64, error) {
	v, err := n.operand.eval(values)
	if err != nil {
		return 0, err
	}
	if n.op == '-' {
		return -v, nil
	}
	return v, nil
}

type binaryNode struct {
	op          byte
	left, right node
}

func (n binaryNode) eval(values Values) (float64, error) {
	l, err := n.left.eval(values)
	if err != nil {
		return 0, err
	}
	r, err := n.right.eval(values)
	if err != nil {
		return 0, err
	}

	switch n.op {
	case '+':
		return l + r, nil
	case '-':
		return l - r, nil
	case '*':
		return l * r, nil
	case '/':
		if r == 0 {
			return 0, errDivisionByZero
		}
		return l / r, nil
	case '^':
		return math.Pow(l, r), nil
	default:
		return 0, fmt.Errorf("unknown operator %q", n.op)
	}
}

// parser is a recursive-descent parser over the token stream:
//
//	expr    = term { ("+" | "-") term }
//	term    = unary { ("*" | "/") unary }
//	unary   = ("+" | "-") unary | power
//	power   = primary [ "^" unary ]
//	primary = number | operand | "(" expr ")"
type parser struct {
	formula string
	toks    []token
	pos     int
}

func (p *parser) parse() (node, error) {
	n, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.toks) {
		t := p.toks[p.pos]
		return nil, &SyntaxError{Formula: p.formula, Pos: t.pos, Msg: fmt.Sprintf("unexpected %q", t.text)}
	}
	return n, nil
}

func (p *parser) peekOp(ops string) (byte, bool) {
	if p.pos >= len(p.toks) {
		return 0, false
	}
	t := p.toks[p.pos]
	if t.kind != tokOp {
		return 0, false
	}
	for i := 0; i < len(ops); i++ {
		if t.text[0] == ops[i] {
			return ops[i], true
		}
	}
	return 0, false
}

func (p *parser) expr() (node, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.peekOp("+-")
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) term() (node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.peekOp("*/")
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) unary() (node, error) {
	if op, ok := p.peekOp("+-"); ok {
		p.pos++
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: op, operand: operand}, nil
	}
	return p.power()
}

func (p *parser) power() (node, error) {
	base, err := p.primary()
	if err != nil {
		return nil, err
	}
	if _, ok := p.peekOp("^"); !ok {
		return base, nil
	}
	p.pos++
	exp, err := p.unary()
	if err != nil {
		return nil, err
	}
	return binaryNode{op: '^', left: base, right: exp}, nil
}

func (p *parser) primary() (node, error) {
	if p.pos >= len(p.toks) {
		return nil, &SyntaxError{Formula: p.formula, Pos: len(p.formula), Msg: "unexpected end of formula"}
	}

	t := p.toks[p.pos]
	switch t.kind {
	case tokNumber:
		p.pos++
		return numberNode{value: t.value}, nil
	case tokOperand:
		p.pos++
		return operandNode{key: t.text}, nil
	case tokLParen:
		p.pos++
		inner, err := p.expr()
		if err != nil {
			return nil, err
		}
		if p.pos >= len(p.toks) || p.toks[p.pos].kind != tokRParen {
			return nil, &SyntaxError{Formula: p.formula, Pos: t.pos, Msg: "unbalanced parenthesis"}
		}
		p.pos++
		return inner, nil
	default:
		return nil, &SyntaxError{Formula: p.formula, Pos: t.pos, Msg: fmt.Sprintf("unexpected %q", t.text)}
	}
}
