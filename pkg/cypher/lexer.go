package cypher

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokKeyword
	tokNumber
	tokString
	tokParam
	tokPunct
)

type token struct {
	kind tokenKind
	text string
}

var keywords = map[string]bool{
	"MATCH": true, "OPTIONAL": true, "WHERE": true, "CREATE": true, "MERGE": true,
	"SET": true, "DELETE": true, "DETACH": true, "REMOVE": true, "WITH": true,
	"UNWIND": true, "AS": true, "RETURN": true, "ORDER": true, "BY": true,
	"SKIP": true, "LIMIT": true, "DISTINCT": true, "ASC": true, "DESC": true,
	"AND": true, "OR": true, "XOR": true, "NOT": true, "IN": true, "IS": true,
	"NULL": true, "TRUE": true, "FALSE": true, "STARTS": true, "ENDS": true,
	"CONTAINS": true, "ON": true,
}

// lexer tokenizes Cypher query text.
type lexer struct {
	src  []rune
	pos  int
	toks []token
}

func newLexer(src string) *lexer {
	return &lexer{src: []rune(src)}
}

func (l *lexer) tokenize() ([]token, error) {
	for {
		l.skipSpace()
		if l.pos >= len(l.src) {
			l.toks = append(l.toks, token{kind: tokEOF})
			return l.toks, nil
		}
		c := l.src[l.pos]
		switch {
		case c == '$':
			l.pos++
			start := l.pos
			for l.pos < len(l.src) && isIdentRune(l.src[l.pos]) {
				l.pos++
			}
			l.toks = append(l.toks, token{kind: tokParam, text: string(l.src[start:l.pos])})
		case c == '\'' || c == '"':
			s, err := l.readString(c)
			if err != nil {
				return nil, err
			}
			l.toks = append(l.toks, token{kind: tokString, text: s})
		case unicode.IsDigit(c):
			l.toks = append(l.toks, token{kind: tokNumber, text: l.readNumber()})
		case isIdentStart(c):
			word := l.readIdent()
			upper := strings.ToUpper(word)
			if keywords[upper] {
				l.toks = append(l.toks, token{kind: tokKeyword, text: upper})
			} else {
				l.toks = append(l.toks, token{kind: tokIdent, text: word})
			}
		default:
			p := l.readPunct()
			if p == "" {
				return nil, fmt.Errorf("cypher: unexpected character %q", c)
			}
			l.toks = append(l.toks, token{kind: tokPunct, text: p})
		}
	}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) && unicode.IsSpace(l.src[l.pos]) {
		l.pos++
	}
}

func isIdentStart(c rune) bool { return unicode.IsLetter(c) || c == '_' }
func isIdentRune(c rune) bool  { return unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' }

func (l *lexer) readIdent() string {
	start := l.pos
	for l.pos < len(l.src) && isIdentRune(l.src[l.pos]) {
		l.pos++
	}
	return string(l.src[start:l.pos])
}

func (l *lexer) readNumber() string {
	start := l.pos
	seenDot := false
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if unicode.IsDigit(c) {
			l.pos++
			continue
		}
		// A dot only extends the number if it's a genuine decimal point:
		// not already seen, and not itself the start of a ".." range
		// separator (as in the *1..3 hop-count syntax).
		if c == '.' && !seenDot && l.pos+1 < len(l.src) && unicode.IsDigit(l.src[l.pos+1]) {
			seenDot = true
			l.pos++
			continue
		}
		break
	}
	return string(l.src[start:l.pos])
}

func (l *lexer) readString(quote rune) (string, error) {
	l.pos++ // consume opening quote
	var sb strings.Builder
	for {
		if l.pos >= len(l.src) {
			return "", fmt.Errorf("cypher: unterminated string literal")
		}
		c := l.src[l.pos]
		if c == quote {
			l.pos++
			return sb.String(), nil
		}
		if c == '\\' && l.pos+1 < len(l.src) {
			l.pos++
			sb.WriteRune(l.src[l.pos])
			l.pos++
			continue
		}
		sb.WriteRune(c)
		l.pos++
	}
}

// multi-char punctuation must be tried longest-first. Relationship arrows
// are deliberately left as individual "-", "<", ">" tokens rather than
// fused here — the parser assembles direction from the token sequence,
// which is simpler than special-casing every arrow shape in the lexer.
var multiPunct = []string{"<>", "<=", ">=", ".."}

func (l *lexer) readPunct() string {
	for _, p := range multiPunct {
		if l.matches(p) {
			l.pos += len([]rune(p))
			return p
		}
	}
	c := l.src[l.pos]
	switch c {
	case '(', ')', '[', ']', '{', '}', ',', '.', ':', '=', '<', '>', '+', '-', '*', '/', '%', '|':
		l.pos++
		return string(c)
	default:
		return ""
	}
}

func (l *lexer) matches(s string) bool {
	r := []rune(s)
	if l.pos+len(r) > len(l.src) {
		return false
	}
	for i, c := range r {
		if l.src[l.pos+i] != c {
			return false
		}
	}
	return true
}

func parseNumberLiteral(text string) (float64, bool) {
	if strings.Contains(text, ".") {
		f, err := strconv.ParseFloat(text, 64)
		return f, err == nil
	}
	n, err := strconv.ParseInt(text, 10, 64)
	return float64(n), err == nil
}
