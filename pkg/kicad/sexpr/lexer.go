// Package sexpr is a small streaming S-expression reader for KiCad files.
//
// KiCad documents are one large nested list; general-purpose sexp libraries
// either buffer the whole file or split quoted strings on whitespace. This
// reader tokenizes from an io.Reader and keeps quoted strings intact.
package sexpr

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokOpen
	tokClose
	tokAtom
	tokString
)

type token struct {
	kind tokenKind
	text string
	line int
}

type lexer struct {
	r    *bufio.Reader
	line int
}

func newLexer(r io.Reader) *lexer {
	return &lexer{r: bufio.NewReader(r), line: 1}
}

func (l *lexer) readRune() (rune, error) {
	ch, _, err := l.r.ReadRune()
	if err == nil && ch == '\n' {
		l.line++
	}
	return ch, err
}

func (l *lexer) unreadRune(ch rune) {
	_ = l.r.UnreadRune()
	if ch == '\n' {
		l.line--
	}
}

// next returns the next token, skipping whitespace and '#' line comments.
func (l *lexer) next() (token, error) {
	for {
		ch, err := l.readRune()
		if errors.Is(err, io.EOF) {
			return token{kind: tokEOF, line: l.line}, nil
		}
		if err != nil {
			return token{}, err
		}

		switch {
		case unicode.IsSpace(ch):
			continue
		case ch == '#':
			if err := l.skipLine(); err != nil {
				return token{}, err
			}
			continue
		case ch == '(':
			return token{kind: tokOpen, text: "(", line: l.line}, nil
		case ch == ')':
			return token{kind: tokClose, text: ")", line: l.line}, nil
		case ch == '"':
			return l.quoted()
		default:
			l.unreadRune(ch)
			return l.atom()
		}
	}
}

func (l *lexer) skipLine() error {
	for {
		ch, err := l.readRune()
		if errors.Is(err, io.EOF) || ch == '\n' {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// quoted reads a string body after the opening quote. Backslash escapes and
// doubled quotes are both accepted.
func (l *lexer) quoted() (token, error) {
	start := l.line
	var b strings.Builder
	for {
		ch, err := l.readRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return token{}, fmt.Errorf("line %d: unterminated string", start)
			}
			return token{}, err
		}

		switch ch {
		case '"':
			peek, err := l.readRune()
			if err == nil && peek == '"' {
				b.WriteRune('"')
				continue
			}
			if err == nil {
				l.unreadRune(peek)
			}
			return token{kind: tokString, text: b.String(), line: start}, nil
		case '\\':
			esc, err := l.readRune()
			if err != nil {
				return token{}, fmt.Errorf("line %d: unterminated escape", l.line)
			}
			switch esc {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			case 'r':
				b.WriteRune('\r')
			default:
				b.WriteRune(esc)
			}
		default:
			b.WriteRune(ch)
		}
	}
}

func (l *lexer) atom() (token, error) {
	var b strings.Builder
	for {
		ch, err := l.readRune()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return token{}, err
		}
		if unicode.IsSpace(ch) || ch == '(' || ch == ')' || ch == '"' {
			l.unreadRune(ch)
			break
		}
		b.WriteRune(ch)
	}
	return token{kind: tokAtom, text: b.String(), line: l.line}, nil
}
