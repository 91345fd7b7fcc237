package finder

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/praetorian-inc/dynhooks/pkg/types"
)

// ParseAttributes tokenizes the attribute section of an opening marker:
//
//	[name]="expr"   input binding
//	(name)="expr"   output binding
//	name="text"     static input
//	name            static input with an empty value
//
// Values may be double- or single-quoted. A backslash and the byte after it
// are read as a pair, so an escaped quote does not end the value; other
// escapes are kept for the expression. Unquoted values run to the next
// whitespace.
func ParseAttributes(body string) []types.RawAttribute {
	var attrs []types.RawAttribute
	i := 0
	for {
		i = skipSpace(body, i)
		if i >= len(body) {
			return attrs
		}

		kind := types.AttrStatic
		var name string
		switch body[i] {
		case '[', '(':
			closer := byte(']')
			kind = types.AttrInput
			if body[i] == '(' {
				closer = ')'
				kind = types.AttrOutput
			}
			end := strings.IndexByte(body[i+1:], closer)
			if end < 0 {
				return attrs
			}
			name = strings.TrimSpace(body[i+1 : i+1+end])
			i += end + 2
		default:
			start := i
			for i < len(body) && !isSpace(body[i]) && body[i] != '=' {
				i++
			}
			name = body[start:i]
		}

		var value string
		if j := skipSpace(body, i); j < len(body) && body[j] == '=' {
			value, i = readValue(body, skipSpace(body, j+1))
		}

		if name == "" {
			// stray '=' or empty brackets
			if i < len(body) && body[i] == '=' {
				i++
			}
			continue
		}
		attrs = append(attrs, types.RawAttribute{Name: name, Value: value, Kind: kind})
	}
}

// ElementAttributes reads hook bindings from an element's attributes.
func ElementAttributes(n *html.Node) []types.RawAttribute {
	attrs := make([]types.RawAttribute, 0, len(n.Attr))
	for _, a := range n.Attr {
		key := a.Key
		kind := types.AttrStatic
		switch {
		case len(key) > 2 && key[0] == '[' && key[len(key)-1] == ']':
			kind = types.AttrInput
			key = key[1 : len(key)-1]
		case len(key) > 2 && key[0] == '(' && key[len(key)-1] == ')':
			kind = types.AttrOutput
			key = key[1 : len(key)-1]
		}
		attrs = append(attrs, types.RawAttribute{Name: key, Value: a.Val, Kind: kind})
	}
	return attrs
}

func readValue(body string, i int) (string, int) {
	if i >= len(body) {
		return "", i
	}
	quote := body[i]
	if quote != '"' && quote != '\'' {
		start := i
		for i < len(body) && !isSpace(body[i]) {
			i++
		}
		return body[start:i], i
	}

	var b strings.Builder
	for j := i + 1; j < len(body); j++ {
		c := body[j]
		switch {
		case c == '\\' && j+1 < len(body):
			// a backslash pairs with the next byte; only an escaped quote
			// loses its backslash
			if body[j+1] != quote {
				b.WriteByte(c)
			}
			b.WriteByte(body[j+1])
			j++
		case c == quote:
			return b.String(), j + 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), len(body)
}

func skipSpace(s string, i int) int {
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return i
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
