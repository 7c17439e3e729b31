package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func lexAll(input string) []token {
	l := newLexer(input)
	var toks []token
	for {
		tok := l.next()
		toks = append(toks, tok)
		if tok.kind == tokEnd {
			break
		}
	}
	return toks
}

func TestLexerKeywordsAreCaseInsensitive(t *testing.T) {
	toks := lexAll("select * from students")
	require.Equal(t, tokSelect, toks[0].kind)
	require.Equal(t, tokAsterisk, toks[1].kind)
	require.Equal(t, tokFrom, toks[2].kind)
	require.Equal(t, tokIdent, toks[3].kind)
}

func TestLexerComparisonOperators(t *testing.T) {
	toks := lexAll("a<>b<=c>=d<e>f=g")
	var kinds []tokenKind
	for _, tok := range toks {
		kinds = append(kinds, tok.kind)
	}
	require.Equal(t, []tokenKind{
		tokIdent, tokNotEqual, tokIdent, tokLessEq, tokIdent, tokGreaterEq,
		tokIdent, tokLess, tokIdent, tokGreater, tokIdent, tokEqual, tokIdent, tokEnd,
	}, kinds)
}

func TestLexerQuotedString(t *testing.T) {
	toks := lexAll(`'hello world'`)
	require.Equal(t, tokString, toks[0].kind)
	require.Equal(t, "hello world", toks[0].value)
}

func TestLexerNegativeAndFloatNumbers(t *testing.T) {
	toks := lexAll("-5 3.14")
	require.Equal(t, tokInt, toks[0].kind)
	require.Equal(t, "-5", toks[0].value)
	require.Equal(t, tokFloat, toks[1].kind)
	require.Equal(t, "3.14", toks[1].value)
}
