package measure

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/finhub/kpi-kit/internal/aggregate"
)

// Expression AST. Leaves are numeric literals, base-aggregate calls and
// references to other measures; interior nodes are binary arithmetic.
// DIVIDE(n, d) desugars to '/', and '/' is safe-divide everywhere.
type node interface{}

type numNode struct{ value float64 }

type refNode struct{ name string }

type aggNode struct{ metric aggregate.Metric }

type binNode struct {
	op    byte // '+', '-', '*', '/'
	left  node
	right node
}

var aggOps = map[string]aggregate.Op{
	"SUM":   aggregate.OpSum,
	"COUNT": aggregate.OpCount,
	"AVG":   aggregate.OpAvg,
	"MIN":   aggregate.OpMin,
	"MAX":   aggregate.OpMax,
}

// parseExpression parses an expression and returns its AST together with
// the sorted set of measure names it references. Base-aggregate references
// are validated against the schema catalog; a bad table or column fails
// with a schema violation.
func parseExpression(expr string) (node, []string, error) {
	p := &parser{input: expr}
	root, err := p.parseExpr()
	if err != nil {
		return nil, nil, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return nil, nil, fmt.Errorf("unexpected %q at offset %d", p.input[p.pos:], p.pos)
	}

	seen := make(map[string]bool)
	var deps []string
	collectRefs(root, func(name string) {
		if !seen[name] {
			seen[name] = true
			deps = append(deps, name)
		}
	})
	sort.Strings(deps)
	return root, deps, nil
}

func collectRefs(n node, visit func(string)) {
	switch t := n.(type) {
	case refNode:
		visit(t.name)
	case binNode:
		collectRefs(t.left, visit)
		collectRefs(t.right, visit)
	}
}

type parser struct {
	input string
	pos   int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *parser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *parser) expect(ch byte) error {
	if p.peek() != ch {
		return fmt.Errorf("expected %q at offset %d", string(ch), p.pos)
	}
	p.pos++
	return nil
}

// expr := term (("+" | "-") term)*
func (p *parser) parseExpr() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek()
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binNode{op: op, left: left, right: right}
	}
}

// term := factor (("*" | "/") factor)*
func (p *parser) parseTerm() (node, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek()
		if op != '*' && op != '/' {
			return left, nil
		}
		p.pos++
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = binNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseFactor() (node, error) {
	switch ch := p.peek(); {
	case ch == '(':
		p.pos++
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return inner, nil

	case ch == '-':
		p.pos++
		inner, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return binNode{op: '-', left: numNode{0}, right: inner}, nil

	case ch == '[':
		return p.parseMeasureRef()

	case ch >= '0' && ch <= '9':
		return p.parseNumber()

	case isIdentStart(ch):
		return p.parseCall()
	}
	return nil, fmt.Errorf("unexpected character at offset %d", p.pos)
}

func (p *parser) parseMeasureRef() (node, error) {
	p.pos++ // consume '['
	end := strings.IndexByte(p.input[p.pos:], ']')
	if end < 0 {
		return nil, fmt.Errorf("unterminated measure reference at offset %d", p.pos)
	}
	name := strings.TrimSpace(p.input[p.pos : p.pos+end])
	p.pos += end + 1
	if name == "" {
		return nil, fmt.Errorf("empty measure reference at offset %d", p.pos)
	}
	return refNode{name: name}, nil
}

func (p *parser) parseNumber() (node, error) {
	start := p.pos
	for p.pos < len(p.input) && (p.input[p.pos] >= '0' && p.input[p.pos] <= '9' || p.input[p.pos] == '.') {
		p.pos++
	}
	v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return nil, fmt.Errorf("bad number %q at offset %d", p.input[start:p.pos], start)
	}
	return numNode{value: v}, nil
}

// parseCall handles DIVIDE(expr, expr) and AGG(table.column[, col = lit]).
func (p *parser) parseCall() (node, error) {
	name := p.parseIdent()

	if name == "DIVIDE" {
		if err := p.expect('('); err != nil {
			return nil, err
		}
		numerator, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(','); err != nil {
			return nil, err
		}
		denominator, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return binNode{op: '/', left: numerator, right: denominator}, nil
	}

	op, ok := aggOps[name]
	if !ok {
		return nil, fmt.Errorf("unknown function %q", name)
	}
	if err := p.expect('('); err != nil {
		return nil, err
	}
	table := p.parseIdent()
	if err := p.expect('.'); err != nil {
		return nil, err
	}
	column := p.parseIdent()

	metric := aggregate.Metric{Table: table, Column: column, Op: op}

	if p.peek() == ',' {
		p.pos++
		metric.FilterColumn = p.parseIdent()
		if err := p.expect('='); err != nil {
			return nil, err
		}
		value, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		metric.FilterValue = value
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	if err := metric.Validate(); err != nil {
		return nil, err
	}
	return aggNode{metric: metric}, nil
}

func (p *parser) parseIdent() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) && isIdentPart(p.input[p.pos]) {
		p.pos++
	}
	return p.input[start:p.pos]
}

// parseLiteral reads a filter value: a quoted string or a bare number.
func (p *parser) parseLiteral() (string, error) {
	if p.peek() == '"' {
		p.pos++
		end := strings.IndexByte(p.input[p.pos:], '"')
		if end < 0 {
			return "", fmt.Errorf("unterminated string at offset %d", p.pos)
		}
		s := p.input[p.pos : p.pos+end]
		p.pos += end + 1
		return s, nil
	}
	n, err := p.parseNumber()
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(n.(numNode).value, 'f', -1, 64), nil
}

func isIdentStart(ch byte) bool {
	return ch == '_' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z'
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || ch >= '0' && ch <= '9'
}
