package alanpp

import (
	"github.com/juju/loggo"
)

var parserLog = loggo.GetLogger("alanpp.parser")

// Parser implements an LL(1) recursive-descent grammar over a Tokenizer's
// output, producing a CSTNode tree. A Parser should never be reused across
// programs.
type Parser struct {
	tok  Tokenizer
	sink *Sink

	buf  *Token
	prev Token
}

// NewParser creates a parser over tok, recording diagnostics into sink.
func NewParser(tok Tokenizer, sink *Sink) *Parser {
	return &Parser{tok: tok, sink: sink}
}

// Parse drives the tokenizer and attempts to parse one Program. It returns
// the CST only if the program parsed with zero errors; on
// any mismatch it records a diagnostic and returns (nil, false).
func (p *Parser) Parse() (*CSTNode, bool) {
	go p.tok.Do()

	node, ok := p.program()
	if !ok || p.sink.HasErrors() {
		parserLog.Debugf("parse failed")
		return nil, false
	}

	parserLog.Debugf("parse ok")
	return node, true
}

// peek returns the next token without consuming it.
func (p *Parser) peek() Token {
	if p.buf == nil {
		t := p.tok.Get()
		p.buf = &t
	}

	return *p.buf
}

// next consumes and returns the next token, remembering it as the fallback
// position for an error raised once the stream reaches EOF.
func (p *Parser) next() Token {
	t := p.peek()
	p.buf = nil

	if t.isValid() {
		p.prev = t
	}

	return t
}

// errPos resolves the position to blame for a diagnostic: the offending
// token, or the previous token if the stream is already at EOF.
func (p *Parser) errPos() (int, int) {
	t := p.peek()
	if t.Kind == TokenEOF {
		return p.prev.Line, p.prev.Column
	}

	return t.Line, t.Column
}

// fail records a parse-stage diagnostic at the current error position.
func (p *Parser) fail(format string, args ...interface{}) {
	line, col := p.errPos()
	p.sink.Error(StageParser, line, col, format, args...)
}

// expect consumes the next token if it matches kind, returning a terminal
// CSTNode leaf; otherwise it leaves the token unconsumed and reports no
// diagnostic itself (the caller supplies a context-specific message).
func (p *Parser) expect(kind TokenKind) (*CSTNode, bool) {
	t := p.peek()
	if t.Kind != kind {
		return nil, false
	}

	p.next()
	return newLeaf(kind.String(), t.Lexeme), true
}

// program ::= Block EOP
func (p *Parser) program() (*CSTNode, bool) {
	block, ok := p.block()
	if !ok {
		return nil, false
	}

	eop, ok := p.expect(TokenEOP)
	if !ok {
		p.fail("Expected end of program symbol '$'")
		return nil, false
	}

	return newNode("Program", block, eop), true
}

// block ::= '{' StatementList '}'
func (p *Parser) block() (*CSTNode, bool) {
	lb, ok := p.expect(TokenLBrace)
	if !ok {
		p.fail("Expected '{' to open block")
		return nil, false
	}

	stmts, ok := p.statementList()
	if !ok {
		return nil, false
	}

	rb, ok := p.expect(TokenRBrace)
	if !ok {
		p.fail("Expected '}' to close block")
		return nil, false
	}

	return newNode("Block", lb, stmts, rb), true
}

// statementList ::= Statement StatementList | ε
func (p *Parser) statementList() (*CSTNode, bool) {
	node := newNode("StatementList")

	for {
		switch p.peek().Kind {
		case TokenPrint, TokenType, TokenID, TokenWhile, TokenIf, TokenLBrace:
			stmt, ok := p.statement()
			if !ok {
				return nil, false
			}

			node.push(stmt)
		default:
			return node, true
		}
	}
}

// statement selects a production by one token of lookahead, per the
// grammar's predictive-decision rule for Statement.
func (p *Parser) statement() (*CSTNode, bool) {
	var inner *CSTNode
	var ok bool

	switch p.peek().Kind {
	case TokenPrint:
		inner, ok = p.printStmt()
	case TokenID:
		inner, ok = p.assignStmt()
	case TokenType:
		inner, ok = p.varDecl()
	case TokenWhile:
		inner, ok = p.whileStmt()
	case TokenIf:
		inner, ok = p.ifStmt()
	case TokenLBrace:
		inner, ok = p.block()
	default:
		p.fail("Unexpected token %s in statement", p.peek().Kind)
		return nil, false
	}

	if !ok {
		return nil, false
	}

	return newNode("Statement", inner), true
}

// printStmt ::= 'print' '(' Expr ')'
func (p *Parser) printStmt() (*CSTNode, bool) {
	kw, ok := p.expect(TokenPrint)
	if !ok {
		p.fail("Expected 'print'")
		return nil, false
	}

	lp, ok := p.expect(TokenLParen)
	if !ok {
		p.fail("Expected '(' after 'print'")
		return nil, false
	}

	expr, ok := p.expr()
	if !ok {
		return nil, false
	}

	rp, ok := p.expect(TokenRParen)
	if !ok {
		p.fail("Expected ')' to close print statement")
		return nil, false
	}

	return newNode("PrintStmt", kw, lp, expr, rp), true
}

// assignStmt ::= ID '=' Expr
func (p *Parser) assignStmt() (*CSTNode, bool) {
	id, ok := p.expect(TokenID)
	if !ok {
		p.fail("Expected identifier")
		return nil, false
	}

	eq, ok := p.expect(TokenAssign)
	if !ok {
		p.fail("Expected '=' in assignment")
		return nil, false
	}

	expr, ok := p.expr()
	if !ok {
		return nil, false
	}

	return newNode("AssignStmt", id, eq, expr), true
}

// varDecl ::= TYPE ID
func (p *Parser) varDecl() (*CSTNode, bool) {
	typ, ok := p.expect(TokenType)
	if !ok {
		p.fail("Expected a type keyword")
		return nil, false
	}

	id, ok := p.expect(TokenID)
	if !ok {
		p.fail("Expected identifier after type")
		return nil, false
	}

	return newNode("VarDecl", typ, id), true
}

// whileStmt ::= 'while' BoolExpr Block
func (p *Parser) whileStmt() (*CSTNode, bool) {
	kw, ok := p.expect(TokenWhile)
	if !ok {
		p.fail("Expected 'while'")
		return nil, false
	}

	cond, ok := p.boolExpr()
	if !ok {
		return nil, false
	}

	body, ok := p.block()
	if !ok {
		return nil, false
	}

	return newNode("WhileStmt", kw, cond, body), true
}

// ifStmt ::= 'if' BoolExpr Block
func (p *Parser) ifStmt() (*CSTNode, bool) {
	kw, ok := p.expect(TokenIf)
	if !ok {
		p.fail("Expected 'if'")
		return nil, false
	}

	cond, ok := p.boolExpr()
	if !ok {
		return nil, false
	}

	body, ok := p.block()
	if !ok {
		return nil, false
	}

	return newNode("IfStmt", kw, cond, body), true
}

// expr ::= IntExpr | StringExpr | BoolExpr | ID
func (p *Parser) expr() (*CSTNode, bool) {
	var inner *CSTNode
	var ok bool

	switch p.peek().Kind {
	case TokenDigit:
		inner, ok = p.intExpr()
	case TokenQuote:
		inner, ok = p.stringExpr()
	case TokenLParen, TokenBoolVal:
		inner, ok = p.boolExpr()
	case TokenID:
		inner, ok = p.expect(TokenID)
		if !ok {
			p.fail("Expected identifier")
			return nil, false
		}
	default:
		p.fail("Unexpected token %s in expression", p.peek().Kind)
		return nil, false
	}

	if !ok {
		return nil, false
	}

	return newNode("Expr", inner), true
}

// intExpr ::= DIGIT ('+' Expr)? — right-associative by construction: the
// trailing Expr (not a second IntExpr) lets the right operand recurse
// through the full expression grammar.
func (p *Parser) intExpr() (*CSTNode, bool) {
	d, ok := p.expect(TokenDigit)
	if !ok {
		p.fail("Expected a digit")
		return nil, false
	}

	node := newNode("IntExpr", d)
	if p.peek().Kind == TokenIntOp {
		plus, _ := p.expect(TokenIntOp)
		rhs, ok := p.expr()
		if !ok {
			return nil, false
		}

		node.push(plus)
		node.push(rhs)
	}

	return node, true
}

// stringExpr ::= '"' CHAR* '"'
func (p *Parser) stringExpr() (*CSTNode, bool) {
	open, ok := p.expect(TokenQuote)
	if !ok {
		p.fail("Expected opening '\"'")
		return nil, false
	}

	node := newNode("StringExpr", open)
	for p.peek().Kind == TokenChar {
		c, _ := p.expect(TokenChar)
		node.push(c)
	}

	closeQuote, ok := p.expect(TokenQuote)
	if !ok {
		p.fail("Unterminated string literal")
		return nil, false
	}

	node.push(closeQuote)
	return node, true
}

// boolExpr ::= '(' Expr BOOLOP Expr ')' | BOOLVAL
func (p *Parser) boolExpr() (*CSTNode, bool) {
	if p.peek().Kind == TokenBoolVal {
		v, _ := p.expect(TokenBoolVal)
		return newNode("BoolExpr", v), true
	}

	lp, ok := p.expect(TokenLParen)
	if !ok {
		p.fail("Expected '(' or a boolean literal")
		return nil, false
	}

	lhs, ok := p.expr()
	if !ok {
		return nil, false
	}

	op, ok := p.expect(TokenBoolOp)
	if !ok {
		p.fail("Expected '==' or '!=' in boolean expression")
		return nil, false
	}

	rhs, ok := p.expr()
	if !ok {
		return nil, false
	}

	rp, ok := p.expect(TokenRParen)
	if !ok {
		p.fail("Expected ')' to close boolean expression")
		return nil, false
	}

	return newNode("BoolExpr", lp, lhs, op, rhs, rp), true
}
