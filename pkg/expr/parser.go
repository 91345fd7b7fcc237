package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/praetorian-inc/dynhooks/pkg/types"
)

type parser struct {
	src  string
	toks []token
	pos  int
	expr *Expr
}

// Parse parses a binding expression.
func Parse(src string) (*Expr, error) {
	if strings.TrimSpace(src) == "" {
		return nil, &ParseError{Expr: src, Pos: 0, Msg: "empty expression"}
	}

	toks, err := lex(src)
	if err != nil {
		return nil, err
	}

	p := &parser{src: src, toks: toks, expr: &Expr{src: src}}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorf(tok, "unexpected %q after expression", tok.text)
	}

	p.expr.root = root
	return p.expr, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	tok := p.toks[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	tok := p.next()
	if tok.kind != kind {
		return tok, p.errorf(tok, "expected %s", what)
	}
	return tok, nil
}

func (p *parser) errorf(tok token, msg string, args ...any) error {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	return &ParseError{Expr: p.src, Pos: tok.pos, Msg: msg}
}

func (p *parser) parseExpr() (node, error) {
	tok := p.next()
	switch tok.kind {
	case tokNumber:
		v, err := parseNumber(tok.text)
		if err != nil {
			return nil, p.errorf(tok, "invalid number %q", tok.text)
		}
		return &literalNode{value: v}, nil

	case tokString:
		return &stringNode{body: tok.text}, nil

	case tokLBracket:
		return p.parseArray()

	case tokLBrace:
		return p.parseObject()

	case tokIdent:
		switch tok.text {
		case "true":
			return &literalNode{value: true}, nil
		case "false":
			return &literalNode{value: false}, nil
		case "null":
			return &literalNode{value: nil}, nil
		case "undefined":
			return &literalNode{value: types.Undefined}, nil
		case RootContext, RootEvent:
			return p.parsePath(tok.text)
		}
		return nil, p.errorf(tok, "unknown identifier %q", tok.text)

	case tokEOF:
		return nil, p.errorf(tok, "unexpected end of expression")
	}
	return nil, p.errorf(tok, "unexpected %q", tok.text)
}

func (p *parser) parseArray() (node, error) {
	arr := &arrayNode{}
	for {
		if p.peek().kind == tokRBracket {
			p.next()
			return arr, nil
		}
		elem, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		arr.elems = append(arr.elems, elem)

		tok := p.next()
		switch tok.kind {
		case tokComma:
		case tokRBracket:
			return arr, nil
		default:
			return nil, p.errorf(tok, "expected ',' or ']' in array")
		}
	}
}

func (p *parser) parseObject() (node, error) {
	obj := &objectNode{}
	for {
		tok := p.next()
		var key string
		switch tok.kind {
		case tokRBrace:
			return obj, nil
		case tokIdent, tokNumber:
			key = tok.text
		case tokString:
			key = unescape(tok.text)
		default:
			return nil, p.errorf(tok, "expected object key")
		}
		if _, err := p.expect(tokColon, "':' after object key"); err != nil {
			return nil, err
		}
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		obj.keys = append(obj.keys, key)
		obj.values = append(obj.values, value)

		tok = p.next()
		switch tok.kind {
		case tokComma:
		case tokRBrace:
			return obj, nil
		default:
			return nil, p.errorf(tok, "expected ',' or '}' in object")
		}
	}
}

// parsePath parses the accessors after a root. Property accessors with a
// literal name extend the head until the first computed index or call.
func (p *parser) parsePath(root string) (node, error) {
	path := &pathNode{root: root}
	if root == RootContext {
		p.expr.usesContext = true
	}
	inHead := true

	for {
		tok := p.peek()
		var acc accessor
		switch tok.kind {
		case tokDot:
			p.next()
			name, err := p.expect(tokIdent, "property name after '.'")
			if err != nil {
				return nil, err
			}
			acc = accessor{kind: accField, name: name.text, pos: name.pos}

		case tokLBracket:
			p.next()
			key, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokRBracket, "']'"); err != nil {
				return nil, err
			}
			if s, ok := key.(*stringNode); ok {
				acc = accessor{kind: accField, name: unescape(s.body), pos: tok.pos}
			} else {
				acc = accessor{kind: accIndex, key: key, pos: tok.pos}
			}

		case tokLParen:
			p.next()
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			p.expr.usesCalls = true
			acc = accessor{kind: accCall, args: args, pos: tok.pos}

		default:
			return path, nil
		}

		if inHead && acc.kind == accField {
			path.head = append(path.head, acc.name)
			continue
		}
		inHead = false
		path.rest = append(path.rest, acc)
	}
}

func (p *parser) parseArgs() ([]node, error) {
	var args []node
	if p.peek().kind == tokRParen {
		p.next()
		return args, nil
	}
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		tok := p.next()
		switch tok.kind {
		case tokComma:
		case tokRParen:
			return args, nil
		default:
			return nil, p.errorf(tok, "expected ',' or ')' in call arguments")
		}
	}
}

// parseNumber returns an int for integral literals and a float64 otherwise.
func parseNumber(text string) (any, error) {
	if !strings.ContainsAny(text, ".eE") {
		if n, err := strconv.Atoi(text); err == nil {
			return n, nil
		}
	}
	return strconv.ParseFloat(text, 64)
}
