package alanpp

import (
	"bufio"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/juju/loggo"
)

var lexerLog = loggo.GetLogger("alanpp.lexer")

// runeEOF is the sentinel rune returned once the stream is exhausted. Alan++
// source is ASCII only so 0 can never collide with a real
// source character.
const runeEOF rune = 0

// lexerState is a function that, given the lexer, might emit a Token and
// sets the next state by returning it. A nil return ends lexing.
type lexerState func(l *Lexer) lexerState

// Tokenizer is the interface the parser consumes. It hides whether tokens
// arrive from a live channel-driven lexer or a canned test fixture.
type Tokenizer interface {
	Do()
	Get() Token
}

// Lexer turns an Alan++ source program into a Token stream. It tracks a
// 1-based line and column, advanced on every consumed character; on '\n'
// the line increments and the column resets to 1 before the next rune is
// read. A Lexer is single-use and not safe for concurrent use.
type Lexer struct {
	reader  *bufio.Reader
	pending []rune
	eof     bool

	line, column           int
	startLine, startColumn int

	sink   *Sink
	output chan Token
}

// NewLexer creates a lexer reading from r, recording diagnostics into sink.
func NewLexer(r io.Reader, sink *Sink) *Lexer {
	return &Lexer{
		reader: bufio.NewReader(r),
		line:   1,
		column: 1,
		sink:   sink,
		output: make(chan Token, 2),
	}
}

// Chan exposes the result channel.
func (l *Lexer) Chan() chan Token {
	return l.output
}

// Get fetches the next available token, blocking until one is ready.
func (l *Lexer) Get() Token {
	return <-l.output
}

// Do runs the state machine to completion, sending tokens to the output
// channel, and closes the channel once the EOF token has been emitted.
func (l *Lexer) Do() {
	for state := startState; state != nil; {
		state = state(l)
	}

	close(l.output)
}

// Run lexes the whole stream synchronously and returns every token,
// including any TokenError tokens recorded along the way; the lexer never
// stops early.
func (l *Lexer) Run() []Token {
	go l.Do()

	var toks []Token
	for t := range l.output {
		toks = append(toks, t)
	}

	lexerLog.Debugf("lexed %d tokens", len(toks))
	return toks
}

// fillTo ensures at least n runes are buffered for lookahead, reading from
// the underlying stream as needed.
func (l *Lexer) fillTo(n int) {
	for len(l.pending) < n && !l.eof {
		r, _, err := l.reader.ReadRune()
		if err != nil {
			l.eof = true
			break
		}

		if r == utf8.RuneError {
			r = '?'
		}

		l.pending = append(l.pending, r)
	}
}

// peekAt returns the rune n positions ahead of the cursor (0 = next rune to
// be consumed) without advancing the cursor.
func (l *Lexer) peekAt(n int) rune {
	l.fillTo(n + 1)
	if n >= len(l.pending) {
		return runeEOF
	}

	return l.pending[n]
}

// peek returns the next rune without consuming it.
func (l *Lexer) peek() rune {
	return l.peekAt(0)
}

// next consumes and returns the next rune, advancing line/column.
func (l *Lexer) next() rune {
	r := l.peekAt(0)
	if r == runeEOF {
		return runeEOF
	}

	l.pending = l.pending[1:]
	if r == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}

	return r
}

// markStart records the position of the upcoming token; called once a state
// has decided which kind of token it is about to build.
func (l *Lexer) markStart() {
	l.startLine, l.startColumn = l.line, l.column
}

// emit sends a token using the recorded start position and returns to
// startState.
func (l *Lexer) emit(kind TokenKind, lexeme string) lexerState {
	return l.emitTo(kind, lexeme, startState)
}

// emitTo sends a token using the recorded start position and returns the
// given next state; used where the following state isn't startState, such
// as inside a string literal's body.
func (l *Lexer) emitTo(kind TokenKind, lexeme string, next lexerState) lexerState {
	l.output <- Token{Kind: kind, Lexeme: lexeme, Line: l.startLine, Column: l.startColumn}
	return next
}

// errorf records a lexical diagnostic and emits a TokenError carrying the
// message, then resumes at startState: the lexer always makes forward
// progress and keeps producing tokens.
func (l *Lexer) errorf(format string, args ...interface{}) lexerState {
	msg := fmt.Sprintf(format, args...)
	l.sink.Error(StageLexer, l.startLine, l.startColumn, "%s", msg)
	l.output <- Token{Kind: TokenError, Lexeme: msg, Line: l.startLine, Column: l.startColumn}

	return startState
}

// startState inspects the next rune and dispatches to the state that knows
// how to build the token it begins.
func startState(l *Lexer) lexerState {
	for {
		switch r := l.peek(); {
		case r == runeEOF:
			return endState
		case r == ' ' || r == '\t' || r == '\r' || r == '\n':
			l.next()
			continue
		case r == '/' && l.peekAt(1) == '*':
			l.next()
			l.next()
			return commentState
		case '0' <= r && r <= '9':
			l.markStart()
			return digitState
		case r == '"':
			l.markStart()
			return quoteOpenState
		case 'a' <= r && r <= 'z':
			l.markStart()
			return identifierState
		default:
			l.markStart()
			return punctuatorState
		}
	}
}

// commentState discards characters (including newlines) until the closing
// "*/" is found. An unterminated comment at EOF is a lexer error.
func commentState(l *Lexer) lexerState {
	for {
		if l.peek() == runeEOF {
			l.markStart()
			return l.errorf("Unterminated comment")
		}

		if l.peek() == '*' && l.peekAt(1) == '/' {
			l.next()
			l.next()
			return startState
		}

		l.next()
	}
}

// digitState emits a single DIGIT token. Alan++ does not recognize
// multi-digit literals at the lexical level; composing
// integers from digits is the parser's job.
func digitState(l *Lexer) lexerState {
	d := l.next()
	return l.emit(TokenDigit, string(d))
}

// quoteOpenState emits the leading QUOTE and hands off to the string-body
// scanner.
func quoteOpenState(l *Lexer) lexerState {
	l.next() // consume '"'
	return l.emitTo(TokenQuote, "\"", stringBodyState)
}

// stringBodyState is active between the opening and closing quote. Every
// character must be a lowercase letter or a space; anything else (including
// digits, uppercase letters, punctuation, or a newline) is a lexer error at
// that position.
func stringBodyState(l *Lexer) lexerState {
	l.markStart()

	switch r := l.peek(); {
	case r == '"':
		l.next()
		return l.emit(TokenQuote, "\"")
	case r == runeEOF:
		return l.errorf("Unterminated string literal")
	case r == '\n':
		l.next()
		return l.errorf("Newline in string literal")
	case r == ' ' || ('a' <= r && r <= 'z'):
		l.next()
		return l.emitTo(TokenChar, string(r), stringBodyState)
	default:
		l.next()
		return l.errorf("Invalid character '%c' in string literal", r)
	}
}

// identifierState implements the longest-match keyword lookahead: it scans
// the maximal run of consecutive lowercase letters ahead of the cursor and
// consumes the longest prefix of that run that spells a reserved word. If no
// prefix matches, exactly one letter is consumed as a single-character ID.
func identifierState(l *Lexer) lexerState {
	var run []rune
	for i := 0; ; i++ {
		r := l.peekAt(i)
		if r < 'a' || r > 'z' {
			break
		}

		run = append(run, r)
	}

	for length := len(run); length >= 1; length-- {
		word := string(run[:length])
		if kind, ok := keywordTable[word]; ok {
			for i := 0; i < length; i++ {
				l.next()
			}

			return l.emit(kind, word)
		}
	}

	c := l.next()
	return l.emit(TokenID, string(c))
}

// punctuatorState consumes the single rune already peeked by startState and
// classifies it, resolving the two two-character operators ("==", "!=")
// with one rune of lookahead.
func punctuatorState(l *Lexer) lexerState {
	r := l.next()

	switch r {
	case '{':
		return l.emit(TokenLBrace, "{")
	case '}':
		return l.emit(TokenRBrace, "}")
	case '(':
		return l.emit(TokenLParen, "(")
	case ')':
		return l.emit(TokenRParen, ")")
	case '+':
		return l.emit(TokenIntOp, "+")
	case '=':
		if l.peek() == '=' {
			l.next()
			return l.emit(TokenBoolOp, "==")
		}

		return l.emit(TokenAssign, "=")
	case '!':
		if l.peek() == '=' {
			l.next()
			return l.emit(TokenBoolOp, "!=")
		}

		return l.errorf("Expected '=' after '!'")
	case '$':
		return l.emit(TokenEOP, "$")
	default:
		return l.errorf("Invalid character '%c'", r)
	}
}

// endState emits the terminating EOF token and ends the state machine.
func endState(l *Lexer) lexerState {
	l.markStart()
	l.output <- Token{Kind: TokenEOF, Line: l.startLine, Column: l.startColumn}
	return nil
}
