package alanpp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"go.alanpp.dev/internal/test"
)

// BufferedTokenizer replays a canned token slice, letting parser tests
// target a specific grammar shape without depending on lexer behavior.
type BufferedTokenizer struct {
	buf []Token
	pos int
}

func NewBufferedTokenizer(toks []Token) *BufferedTokenizer {
	return &BufferedTokenizer{buf: toks}
}

func (b *BufferedTokenizer) Do() {}

func (b *BufferedTokenizer) Get() Token {
	if b.pos >= len(b.buf) {
		return Token{Kind: TokenEOF}
	}

	t := b.buf[b.pos]
	b.pos++
	return t
}

func parseSource(t *testing.T, src string) (*CSTNode, *Sink) {
	t.Helper()
	sink := NewSink()
	l := NewLexer(strings.NewReader(src), sink)
	p := NewParser(l, sink)
	cst, _ := p.Parse()
	return cst, sink
}

func TestParserAccepts(t *testing.T) {
	cases := []string{
		`{}$`,
		`{ print(1) }$`,
		`{ int x x = 1 print(x) }$`,
		`{ string s s = "hi" }$`,
		`{ boolean b b = true while (b == false) { b = true } }$`,
		`{ if (1 == 1) { int y } }$`,
		`{ { int x } { int x } }$`,
		`{ int x x = 1 + 2 + 3 }$`,
	}

	for _, src := range cases {
		t.Run(src, func(t *testing.T) {
			cst, sink := parseSource(t, src)
			assert.NotNil(t, cst)
			assert.False(t, sink.HasErrors())
		})
	}
}

func TestParserRejects(t *testing.T) {
	cases := []string{
		`{$`,
		`{ print(1 }$`,
		`{ int x }`,
		`{ x = }$`,
		`{ if 1 == 1 { } }$`,
		`{`,
	}

	for _, src := range cases {
		t.Run(src, func(t *testing.T) {
			cst, sink := parseSource(t, src)
			assert.Nil(t, cst)
			assert.True(t, sink.HasErrors())
		})
	}
}

func TestParserDeterminism(t *testing.T) {
	src := `{ int x x = 1 + 2 print(x) if (x == 3) { print("yes") } }$`

	first, sink1 := parseSource(t, src)
	second, sink2 := parseSource(t, src)

	assert.False(t, sink1.HasErrors())
	assert.False(t, sink2.HasErrors())

	if diff := test.Diff(first, second); diff != "" {
		t.Errorf("two parses of the same source produced different CSTs:\n%s", diff)
	}
}

func TestParserBufferedTokenizer(t *testing.T) {
	toks := []Token{
		{Kind: TokenLBrace, Lexeme: "{"},
		{Kind: TokenType, Lexeme: "int"},
		{Kind: TokenID, Lexeme: "x"},
		{Kind: TokenRBrace, Lexeme: "}"},
		{Kind: TokenEOP, Lexeme: "$"},
	}

	sink := NewSink()
	p := NewParser(NewBufferedTokenizer(toks), sink)
	cst, ok := p.Parse()

	assert.True(t, ok)
	assert.False(t, sink.HasErrors())
	assert.Equal(t, "Program", cst.Name)
}

var benchCST *CSTNode

func BenchmarkParser(b *testing.B) {
	src := "{" + test.RandomTokens(500) + "}$"

	for n := 0; n < b.N; n++ {
		sink := NewSink()
		l := NewLexer(strings.NewReader(src), sink)
		p := NewParser(l, sink)
		benchCST, _ = p.Parse()
	}
}
