package formula

import (
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of formula"
	}
	return fmt.Sprintf("%q at offset %d", t.text, t.pos)
}

// delimiters end an identifier. Everything else, including '$', '.', and
// ':', may appear inside one, which is how "Entry$" and "ns::Func" lex as
// single names.
const delimiters = " \t\r\n+-*/%^()[]<>=&|!,"

func isDelimiter(c byte) bool {
	return strings.IndexByte(delimiters, c) >= 0
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// two-character operators, longest match first.
var doubleOps = []string{"&&", "||", "==", "!=", "<=", ">="}

func tokenize(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			i++

		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			start := i
			for i < len(src) && (isDigit(src[i]) || src[i] == '.') {
				i++
			}
			if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
				j := i + 1
				if j < len(src) && (src[j] == '+' || src[j] == '-') {
					j++
				}
				if j < len(src) && isDigit(src[j]) {
					for j < len(src) && isDigit(src[j]) {
						j++
					}
					i = j
				}
			}
			text := src[start:i]
			v, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("bad number %q at offset %d", text, start)
			}
			toks = append(toks, token{kind: tokNumber, text: text, num: v, pos: start})

		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == '[':
			toks = append(toks, token{kind: tokLBracket, text: "[", pos: i})
			i++
		case c == ']':
			toks = append(toks, token{kind: tokRBracket, text: "]", pos: i})
			i++
		case c == ',':
			toks = append(toks, token{kind: tokComma, text: ",", pos: i})
			i++

		case isDelimiter(c):
			op := string(c)
			for _, d := range doubleOps {
				if strings.HasPrefix(src[i:], d) {
					op = d
					break
				}
			}
			toks = append(toks, token{kind: tokOp, text: op, pos: i})
			i += len(op)

		default:
			start := i
			for i < len(src) && !isDelimiter(src[i]) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start})
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}
