package expr

import "strings"

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokLBracket
	tokRBracket
	tokLParen
	tokRParen
	tokLBrace
	tokRBrace
	tokDot
	tokComma
	tokColon
)

var punct = map[byte]tokenKind{
	'[': tokLBracket,
	']': tokRBracket,
	'(': tokLParen,
	')': tokRParen,
	'{': tokLBrace,
	'}': tokRBrace,
	'.': tokDot,
	',': tokComma,
	':': tokColon,
}

var closerOf = map[tokenKind]tokenKind{
	tokLBracket: tokRBracket,
	tokLParen:   tokRParen,
	tokLBrace:   tokRBrace,
}

// token is one lexical unit. String literals are single opaque tokens: any
// bracket inside them never reaches the structural bracket pairing.
type token struct {
	kind tokenKind
	text string // literal text; for strings the body between the quotes, escapes kept
	pos  int
}

// lex splits src into tokens and checks that structural brackets pair up.
func lex(src string) ([]token, error) {
	var toks []token
	var stack []token

	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '"' || c == '\'':
			end, err := scanString(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokString, text: src[i+1 : end], pos: i})
			i = end + 1

		case isDigit(c) || (c == '-' && i+1 < len(src) && isDigit(src[i+1])):
			end := scanNumber(src, i)
			toks = append(toks, token{kind: tokNumber, text: src[i:end], pos: i})
			i = end

		case isIdentStart(c):
			end := i + 1
			for end < len(src) && isIdentPart(src[end]) {
				end++
			}
			toks = append(toks, token{kind: tokIdent, text: src[i:end], pos: i})
			i = end

		default:
			kind, ok := punct[c]
			if !ok {
				return nil, &ParseError{Expr: src, Pos: i, Msg: "unexpected character " + quoteByte(c)}
			}
			tok := token{kind: kind, text: string(c), pos: i}
			switch kind {
			case tokLBracket, tokLParen, tokLBrace:
				stack = append(stack, tok)
			case tokRBracket, tokRParen, tokRBrace:
				if len(stack) == 0 || closerOf[stack[len(stack)-1].kind] != kind {
					return nil, &ParseError{Expr: src, Pos: i, Msg: "unbalanced " + quoteByte(c)}
				}
				stack = stack[:len(stack)-1]
			}
			toks = append(toks, tok)
			i++
		}
	}

	if len(stack) > 0 {
		open := stack[len(stack)-1]
		return nil, &ParseError{Expr: src, Pos: open.pos, Msg: "unclosed " + quoteByte(open.text[0])}
	}

	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}

// scanString returns the index of the quote closing the string starting at start.
func scanString(src string, start int) (int, error) {
	quote := src[start]
	for i := start + 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case quote:
			return i, nil
		}
	}
	return 0, &ParseError{Expr: src, Pos: start, Msg: "unterminated string"}
}

func scanNumber(src string, start int) int {
	i := start
	if src[i] == '-' {
		i++
	}
	for i < len(src) && isDigit(src[i]) {
		i++
	}
	if i+1 < len(src) && src[i] == '.' && isDigit(src[i+1]) {
		i++
		for i < len(src) && isDigit(src[i]) {
			i++
		}
	}
	if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
		j := i + 1
		if j < len(src) && (src[j] == '+' || src[j] == '-') {
			j++
		}
		if j < len(src) && isDigit(src[j]) {
			i = j
			for i < len(src) && isDigit(src[i]) {
				i++
			}
		}
	}
	return i
}

// unescape resolves backslash escapes in a string literal body.
func unescape(body string) string {
	if !strings.Contains(body, `\`) {
		return body
	}
	var b strings.Builder
	b.Grow(len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 == len(body) {
			b.WriteByte(c)
			continue
		}
		i++
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte(body[i])
		}
	}
	return b.String()
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }

// isIdent reports whether s can be written as a dot accessor.
func isIdent(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentPart(s[i]) {
			return false
		}
	}
	return true
}

func quoteByte(c byte) string { return "'" + string(c) + "'" }
