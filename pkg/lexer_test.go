package alanpp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"go.alanpp.dev/internal/test"
)

// stripPos drops line/column so test tables only need to spell out kind and
// lexeme; position monotonicity is checked separately in TestLexerPositions.
func stripPos(toks []Token) []Token {
	out := make([]Token, len(toks))
	for i, t := range toks {
		out[i] = Token{Kind: t.Kind, Lexeme: t.Lexeme}
	}

	return out
}

func TestLexer(t *testing.T) {
	cases := []struct {
		name   string
		data   string
		expect []Token
	}{
		{
			"block and eop",
			"{}$",
			[]Token{
				{Kind: TokenLBrace, Lexeme: "{"},
				{Kind: TokenRBrace, Lexeme: "}"},
				{Kind: TokenEOP, Lexeme: "$"},
				{Kind: TokenEOF},
			},
		},
		{
			"keywords and identifier",
			"int x",
			[]Token{
				{Kind: TokenType, Lexeme: "int"},
				{Kind: TokenID, Lexeme: "x"},
				{Kind: TokenEOF},
			},
		},
		{
			"non-keyword run splits into single-char ids",
			"xyz",
			[]Token{
				{Kind: TokenID, Lexeme: "x"},
				{Kind: TokenID, Lexeme: "y"},
				{Kind: TokenID, Lexeme: "z"},
				{Kind: TokenEOF},
			},
		},
		{
			"keyword prefix of a longer run still matches longest",
			"whilex",
			[]Token{
				{Kind: TokenWhile, Lexeme: "while"},
				{Kind: TokenID, Lexeme: "x"},
				{Kind: TokenEOF},
			},
		},
		{
			"two-char operators",
			"a == b != c",
			[]Token{
				{Kind: TokenID, Lexeme: "a"},
				{Kind: TokenBoolOp, Lexeme: "=="},
				{Kind: TokenID, Lexeme: "b"},
				{Kind: TokenBoolOp, Lexeme: "!="},
				{Kind: TokenID, Lexeme: "c"},
				{Kind: TokenEOF},
			},
		},
		{
			"string literal",
			`"hello world"`,
			[]Token{
				{Kind: TokenQuote, Lexeme: "\""},
				{Kind: TokenChar, Lexeme: "h"},
				{Kind: TokenChar, Lexeme: "e"},
				{Kind: TokenChar, Lexeme: "l"},
				{Kind: TokenChar, Lexeme: "l"},
				{Kind: TokenChar, Lexeme: "o"},
				{Kind: TokenChar, Lexeme: " "},
				{Kind: TokenChar, Lexeme: "w"},
				{Kind: TokenChar, Lexeme: "o"},
				{Kind: TokenChar, Lexeme: "r"},
				{Kind: TokenChar, Lexeme: "l"},
				{Kind: TokenChar, Lexeme: "d"},
				{Kind: TokenQuote, Lexeme: "\""},
				{Kind: TokenEOF},
			},
		},
		{
			"empty string literal",
			`""`,
			[]Token{
				{Kind: TokenQuote, Lexeme: "\""},
				{Kind: TokenQuote, Lexeme: "\""},
				{Kind: TokenEOF},
			},
		},
		{
			"comment is skipped",
			"/* not a token */ 1",
			[]Token{
				{Kind: TokenDigit, Lexeme: "1"},
				{Kind: TokenEOF},
			},
		},
		{
			"unterminated string recovers",
			"\"oops",
			[]Token{
				{Kind: TokenQuote, Lexeme: "\""},
				{Kind: TokenChar, Lexeme: "o"},
				{Kind: TokenChar, Lexeme: "o"},
				{Kind: TokenChar, Lexeme: "p"},
				{Kind: TokenChar, Lexeme: "s"},
				{Kind: TokenError, Lexeme: "Unterminated string literal"},
				{Kind: TokenEOF},
			},
		},
		{
			"bang without equals recovers",
			"! a",
			[]Token{
				{Kind: TokenError, Lexeme: "Expected '=' after '!'"},
				{Kind: TokenID, Lexeme: "a"},
				{Kind: TokenEOF},
			},
		},
		{
			"invalid character recovers and continues",
			"a # b",
			[]Token{
				{Kind: TokenID, Lexeme: "a"},
				{Kind: TokenError, Lexeme: "Invalid character '#'"},
				{Kind: TokenID, Lexeme: "b"},
				{Kind: TokenEOF},
			},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			sink := NewSink()
			l := NewLexer(strings.NewReader(c.data), sink)
			assert.Equal(t, c.expect, stripPos(l.Run()))
		})
	}
}

func TestLexerPositions(t *testing.T) {
	sink := NewSink()
	l := NewLexer(strings.NewReader("a\nb  c"), sink)
	toks := l.Run()

	assert.Equal(t, 1, toks[0].Line)
	assert.Equal(t, 1, toks[0].Column)
	assert.Equal(t, 2, toks[1].Line)
	assert.Equal(t, 1, toks[1].Column)
	assert.Equal(t, 2, toks[2].Line)
	assert.Equal(t, 4, toks[2].Column)

	for i := 1; i < len(toks); i++ {
		prev, cur := toks[i-1], toks[i]
		assert.True(t, cur.Line > prev.Line || (cur.Line == prev.Line && cur.Column >= prev.Column))
	}
}

func TestLexerLongestMatchKeywords(t *testing.T) {
	sink := NewSink()
	l := NewLexer(strings.NewReader("boolean"), sink)
	toks := l.Run()

	assert.Equal(t, TokenType, toks[0].Kind)
	assert.Equal(t, "boolean", toks[0].Lexeme)
}

var benchResult []Token

func benchmarkLexer(size int, b *testing.B) {
	for n := 0; n < b.N; n++ {
		b.StopTimer()
		data := test.RandomTokens(size)
		sink := NewSink()
		l := NewLexer(strings.NewReader(data), sink)
		b.StartTimer()

		benchResult = l.Run()
	}
}

func BenchmarkLexer100(b *testing.B)    { benchmarkLexer(100, b) }
func BenchmarkLexer1000(b *testing.B)   { benchmarkLexer(1000, b) }
func BenchmarkLexer10000(b *testing.B)  { benchmarkLexer(10000, b) }
func BenchmarkLexer100000(b *testing.B) { benchmarkLexer(100000, b) }
