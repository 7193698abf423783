package skill

// Seed is one embedded starter skill, written into a fresh skills
// directory at bootstrap so the registry never starts empty.
type Seed struct {
	Filename string
	Source   string
}

// Seeds returns the embedded starter skills in write order.
func Seeds() []Seed {
	return []Seed{
		{Filename: "calculate.go", Source: seedCalculate},
		{Filename: "reverse_text.go", Source: seedReverseText},
	}
}

// seedCalculate evaluates arithmetic with a restricted recursive-descent
// parser. No eval, no name lookup: literals and operators only.
const seedCalculate = `// filename: calculate.go

package skill

import (
	"fmt"
	"math"
	"strconv"
	"unicode"
)

// Execute evaluates a plain arithmetic expression and returns the result
// as text. Supported: numeric literals, + - * / % ^, parentheses and
// unary minus. Division or modulo by zero is an error.
func Execute(expression string) (string, error) {
	p := &exprParser{input: []rune(expression)}
	value, err := p.parseExpression()
	if err != nil {
		return "", err
	}
	p.skipSpaces()
	if p.pos < len(p.input) {
		return "", fmt.Errorf("unexpected character %q at position %d", p.input[p.pos], p.pos)
	}
	return fmt.Sprintf("The result is %s", formatNumber(value)), nil
}

type exprParser struct {
	input []rune
	pos   int
}

func (p *exprParser) skipSpaces() {
	for p.pos < len(p.input) && unicode.IsSpace(p.input[p.pos]) {
		p.pos++
	}
}

func (p *exprParser) peek() (rune, bool) {
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return 0, false
	}
	return p.input[p.pos], true
}

// parseExpression handles + and -, the lowest precedence level.
func (p *exprParser) parseExpression() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		ch, ok := p.peek()
		if !ok || (ch != '+' && ch != '-') {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if ch == '+' {
			left += right
		} else {
			left -= right
		}
	}
}

// parseTerm handles *, / and %.
func (p *exprParser) parseTerm() (float64, error) {
	left, err := p.parsePower()
	if err != nil {
		return 0, err
	}
	for {
		ch, ok := p.peek()
		if !ok || (ch != '*' && ch != '/' && ch != '%') {
			return left, nil
		}
		p.pos++
		right, err := p.parsePower()
		if err != nil {
			return 0, err
		}
		switch ch {
		case '*':
			left *= right
		case '/':
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		case '%':
			if right == 0 {
				return 0, fmt.Errorf("modulo by zero")
			}
			left = math.Mod(left, right)
		}
	}
}

// parsePower handles ^, right-associative so 2^3^2 is 2^(3^2).
func (p *exprParser) parsePower() (float64, error) {
	base, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	ch, ok := p.peek()
	if !ok || ch != '^' {
		return base, nil
	}
	p.pos++
	exponent, err := p.parsePower()
	if err != nil {
		return 0, err
	}
	return math.Pow(base, exponent), nil
}

func (p *exprParser) parseUnary() (float64, error) {
	ch, ok := p.peek()
	if ok && ch == '-' {
		p.pos++
		value, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return -value, nil
	}
	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() (float64, error) {
	ch, ok := p.peek()
	if !ok {
		return 0, fmt.Errorf("unexpected end of expression")
	}
	if ch == '(' {
		p.pos++
		value, err := p.parseExpression()
		if err != nil {
			return 0, err
		}
		next, ok := p.peek()
		if !ok || next != ')' {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return value, nil
	}
	start := p.pos
	for p.pos < len(p.input) && (unicode.IsDigit(p.input[p.pos]) || p.input[p.pos] == '.') {
		p.pos++
	}
	if p.pos == start {
		return 0, fmt.Errorf("unexpected character %q at position %d", ch, p.pos)
	}
	value, err := strconv.ParseFloat(string(p.input[start:p.pos]), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", string(p.input[start:p.pos]))
	}
	return value, nil
}

// formatNumber prints integral results without a decimal point.
func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
`

const seedReverseText = `// filename: reverse_text.go

package skill

// Execute reverses the given text and returns it. Reversal is by rune,
// so multi-byte characters survive intact.
func Execute(text string) (string, error) {
	runes := []rune(text)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes), nil
}
`
