package alanpp

import (
	"sort"
	"strings"

	"github.com/juju/loggo"
)

var semanticsLog = loggo.GetLogger("alanpp.semantics")

// SemanticResult bundles the AST produced by one analysis pass with the
// scope tree it populated along the way.
type SemanticResult struct {
	Program *ASTNode
	Scopes  *ScopeArena
}

// Analyzer walks a token stream a second time to build the AST while
// pushing/popping scopes and running the declaration, resolution, type,
// initialization and usage checks.
type Analyzer struct {
	tok  Tokenizer
	sink *Sink

	arena *ScopeArena
	cur   ScopeID

	buf  *Token
	prev Token
}

// NewAnalyzer creates an analyzer over tok, recording diagnostics into sink.
func NewAnalyzer(tok Tokenizer, sink *Sink) *Analyzer {
	return &Analyzer{tok: tok, sink: sink}
}

// Analyze drives the tokenizer, parses one Program into an AST while
// building the scope tree, then runs the end-of-analysis unused-variable
// sweep. It returns ok=false only when the token stream could not be parsed
// at all; a syntactically valid program with semantic errors still returns
// its AST, since the caller must consult the diagnostic sink itself to know
// whether code generation should proceed.
func (a *Analyzer) Analyze() (*SemanticResult, bool) {
	go a.tok.Do()

	arena, root := NewScopeArena()
	a.arena = arena
	a.cur = root

	prog, ok := a.program()
	if !ok {
		return nil, false
	}

	a.sweepUnused()
	semanticsLog.Debugf("analyzed program: %d scopes, %d diagnostics", len(arena.All()), len(a.sink.All()))

	return &SemanticResult{Program: prog, Scopes: arena}, true
}

func (a *Analyzer) peek() Token {
	if a.buf == nil {
		t := a.tok.Get()
		a.buf = &t
	}

	return *a.buf
}

func (a *Analyzer) next() Token {
	t := a.peek()
	a.buf = nil

	if t.isValid() {
		a.prev = t
	}

	return t
}

func (a *Analyzer) errPos() (int, int) {
	t := a.peek()
	if t.Kind == TokenEOF {
		return a.prev.Line, a.prev.Column
	}

	return t.Line, t.Column
}

func (a *Analyzer) fail(format string, args ...interface{}) {
	line, col := a.errPos()
	a.sink.Error(StageParser, line, col, format, args...)
}

func (a *Analyzer) expect(kind TokenKind) (Token, bool) {
	t := a.peek()
	if t.Kind != kind {
		return Token{}, false
	}

	a.next()
	return t, true
}

// program ::= Block EOP
func (a *Analyzer) program() (*ASTNode, bool) {
	block, ok := a.blockUsing(a.cur)
	if !ok {
		return nil, false
	}

	if _, ok := a.expect(TokenEOP); !ok {
		a.fail("Expected end of program symbol '$'")
		return nil, false
	}

	return newAST(KindProgram, block.Line, block.Column, block), true
}

// block ::= '{' StatementList '}', pushing a fresh child scope. Every block
// creates a new scope even when nested without intervening statements.
func (a *Analyzer) block() (*ASTNode, bool) {
	child := a.arena.Child(a.cur)
	return a.blockUsing(child)
}

// blockUsing parses '{' StatementList '}' with scopeID as the block's own
// scope. The program's outermost block uses the arena's root scope directly
// (level 0); every other block is entered via block(), which pushes a fresh
// child first.
func (a *Analyzer) blockUsing(scopeID ScopeID) (*ASTNode, bool) {
	lb, ok := a.expect(TokenLBrace)
	if !ok {
		a.fail("Expected '{' to open block")
		return nil, false
	}

	outer := a.cur
	a.cur = scopeID
	stmts, ok := a.statementList()
	a.cur = outer

	if !ok {
		return nil, false
	}

	if _, ok := a.expect(TokenRBrace); !ok {
		a.fail("Expected '}' to close block")
		return nil, false
	}

	node := newAST(KindBlock, lb.Line, lb.Column, stmts...)
	node.Scope = a.arena.ScopeAt(scopeID)
	return node, true
}

func (a *Analyzer) statementList() ([]*ASTNode, bool) {
	var stmts []*ASTNode

	for {
		switch a.peek().Kind {
		case TokenPrint, TokenType, TokenID, TokenWhile, TokenIf, TokenLBrace:
			stmt, ok := a.statement()
			if !ok {
				return nil, false
			}

			stmts = append(stmts, stmt)
		default:
			return stmts, true
		}
	}
}

func (a *Analyzer) statement() (*ASTNode, bool) {
	switch a.peek().Kind {
	case TokenPrint:
		return a.printStmt()
	case TokenID:
		return a.assignStmt()
	case TokenType:
		return a.varDecl()
	case TokenWhile:
		return a.whileStmt()
	case TokenIf:
		return a.ifStmt()
	case TokenLBrace:
		return a.block()
	default:
		a.fail("Unexpected token %s in statement", a.peek().Kind)
		return nil, false
	}
}

// varDecl ::= TYPE ID. Duplicate names in the same scope are an error;
// shadowing an ancestor scope's name is allowed.
func (a *Analyzer) varDecl() (*ASTNode, bool) {
	typ, ok := a.expect(TokenType)
	if !ok {
		a.fail("Expected a type keyword")
		return nil, false
	}

	id, ok := a.expect(TokenID)
	if !ok {
		a.fail("Expected identifier after type")
		return nil, false
	}

	if _, added := a.arena.Declare(a.cur, id.Lexeme, typ.Lexeme, id.Line, id.Column); !added {
		a.sink.Error(StageSemantic, id.Line, id.Column, "Variable '%s' already declared in this scope", id.Lexeme)
	}

	node := newASTLeaf(KindVarDecl, id.Lexeme, typ.Line, typ.Column)
	node.Type = typ.Lexeme
	return node, true
}

// assignStmt ::= ID '=' Expr
func (a *Analyzer) assignStmt() (*ASTNode, bool) {
	id, ok := a.expect(TokenID)
	if !ok {
		a.fail("Expected identifier")
		return nil, false
	}

	if _, ok := a.expect(TokenAssign); !ok {
		a.fail("Expected '=' in assignment")
		return nil, false
	}

	rhs, ok := a.expr()
	if !ok {
		return nil, false
	}

	node := newAST(KindAssignment, id.Line, id.Column, rhs)
	node.Value = id.Lexeme

	entry, _, resolved := a.arena.Resolve(a.cur, id.Lexeme)
	if !resolved {
		a.sink.Error(StageSemantic, id.Line, id.Column, "Variable '%s' not declared", id.Lexeme)
		return node, true
	}

	rhsType := a.resolveExprType(rhs)
	if rhsType == "" {
		return node, true
	}

	if rhsType != entry.Type {
		a.sink.Error(StageSemantic, id.Line, id.Column, "Type mismatch: cannot assign %s to %s", rhsType, entry.Type)
		return node, true
	}

	entry.Initialized = true
	return node, true
}

// printStmt ::= 'print' '(' Expr ')'
func (a *Analyzer) printStmt() (*ASTNode, bool) {
	kw, ok := a.expect(TokenPrint)
	if !ok {
		a.fail("Expected 'print'")
		return nil, false
	}

	if _, ok := a.expect(TokenLParen); !ok {
		a.fail("Expected '(' after 'print'")
		return nil, false
	}

	expr, ok := a.expr()
	if !ok {
		return nil, false
	}

	if _, ok := a.expect(TokenRParen); !ok {
		a.fail("Expected ')' to close print statement")
		return nil, false
	}

	a.resolveExprType(expr)
	return newAST(KindPrint, kw.Line, kw.Column, expr), true
}

// whileStmt ::= 'while' BoolExpr Block
func (a *Analyzer) whileStmt() (*ASTNode, bool) {
	kw, ok := a.expect(TokenWhile)
	if !ok {
		a.fail("Expected 'while'")
		return nil, false
	}

	cond, ok := a.boolExpr()
	if !ok {
		return nil, false
	}

	a.checkCondition(cond)
	if cond.Kind == KindBoolVal && cond.Value == "true" {
		a.sink.Hint(StageSemantic, cond.Line, cond.Column, "while (true) loop never exits on its own")
	}

	body, ok := a.block()
	if !ok {
		return nil, false
	}

	return newAST(KindWhile, kw.Line, kw.Column, cond, body), true
}

// ifStmt ::= 'if' BoolExpr Block
func (a *Analyzer) ifStmt() (*ASTNode, bool) {
	kw, ok := a.expect(TokenIf)
	if !ok {
		a.fail("Expected 'if'")
		return nil, false
	}

	cond, ok := a.boolExpr()
	if !ok {
		return nil, false
	}

	a.checkCondition(cond)

	body, ok := a.block()
	if !ok {
		return nil, false
	}

	return newAST(KindIf, kw.Line, kw.Column, cond, body), true
}

func (a *Analyzer) checkCondition(cond *ASTNode) {
	t := a.resolveExprType(cond)
	if t != "" && t != "boolean" {
		a.sink.Error(StageSemantic, cond.Line, cond.Column, "Type mismatch: condition must be boolean, found %s", t)
	}
}

// expr ::= IntExpr | StringExpr | BoolExpr | ID
func (a *Analyzer) expr() (*ASTNode, bool) {
	switch a.peek().Kind {
	case TokenDigit:
		return a.intExpr()
	case TokenQuote:
		return a.stringExpr()
	case TokenLParen, TokenBoolVal:
		return a.boolExpr()
	case TokenID:
		t, ok := a.expect(TokenID)
		if !ok {
			a.fail("Expected identifier")
			return nil, false
		}

		return newASTLeaf(KindID, t.Lexeme, t.Line, t.Column), true
	default:
		a.fail("Unexpected token %s in expression", a.peek().Kind)
		return nil, false
	}
}

// intExpr ::= DIGIT ('+' Expr)?. A lone digit is a Digit leaf; '+' only then
// produces a binary IntExpr node, right-associative by construction since
// the trailing operand recurses through the full expr() grammar.
func (a *Analyzer) intExpr() (*ASTNode, bool) {
	d, ok := a.expect(TokenDigit)
	if !ok {
		a.fail("Expected a digit")
		return nil, false
	}

	digit := newASTLeaf(KindDigit, d.Lexeme, d.Line, d.Column)
	digit.Type = "int"

	if a.peek().Kind != TokenIntOp {
		return digit, true
	}

	plus, _ := a.expect(TokenIntOp)
	rhs, ok := a.expr()
	if !ok {
		return nil, false
	}

	node := newAST(KindIntExpr, digit.Line, digit.Column, digit, rhs)
	node.Value = plus.Lexeme
	return node, true
}

// stringExpr ::= '"' CHAR* '"'. The concatenated text is cached on the
// node's Value for the code generator; each character is also kept as a
// Char child.
func (a *Analyzer) stringExpr() (*ASTNode, bool) {
	open, ok := a.expect(TokenQuote)
	if !ok {
		a.fail("Expected opening '\"'")
		return nil, false
	}

	var chars []*ASTNode
	var text strings.Builder

	for a.peek().Kind == TokenChar {
		c, _ := a.expect(TokenChar)
		chars = append(chars, newASTLeaf(KindChar, c.Lexeme, c.Line, c.Column))
		text.WriteString(c.Lexeme)
	}

	if _, ok := a.expect(TokenQuote); !ok {
		a.fail("Unterminated string literal")
		return nil, false
	}

	node := newAST(KindStringExpr, open.Line, open.Column, chars...)
	node.Value = text.String()
	node.Type = "string"
	return node, true
}

// boolExpr ::= '(' Expr BOOLOP Expr ')' | BOOLVAL
func (a *Analyzer) boolExpr() (*ASTNode, bool) {
	if a.peek().Kind == TokenBoolVal {
		v, _ := a.expect(TokenBoolVal)
		node := newASTLeaf(KindBoolVal, v.Lexeme, v.Line, v.Column)
		node.Type = "boolean"
		return node, true
	}

	lp, ok := a.expect(TokenLParen)
	if !ok {
		a.fail("Expected '(' or a boolean literal")
		return nil, false
	}

	lhs, ok := a.expr()
	if !ok {
		return nil, false
	}

	op, ok := a.expect(TokenBoolOp)
	if !ok {
		a.fail("Expected '==' or '!=' in boolean expression")
		return nil, false
	}

	rhs, ok := a.expr()
	if !ok {
		return nil, false
	}

	if _, ok := a.expect(TokenRParen); !ok {
		a.fail("Expected ')' to close boolean expression")
		return nil, false
	}

	node := newAST(KindBoolExpr, lp.Line, lp.Column, lhs, rhs)
	node.Value = op.Lexeme
	return node, true
}

// resolveExprType computes (and caches onto Type) the type of an expression
// subtree, performing the resolution, type-compatibility, initialization and
// usage checks along the way. It returns "" once an error has
// already been recorded for this subtree, so callers can short-circuit
// further checks without re-reporting the same failure.
func (a *Analyzer) resolveExprType(n *ASTNode) string {
	if n == nil {
		return ""
	}

	switch n.Kind {
	case KindDigit:
		n.Type = "int"
	case KindStringExpr:
		n.Type = "string"
	case KindBoolVal:
		n.Type = "boolean"
	case KindID:
		entry, _, ok := a.arena.Resolve(a.cur, n.Value)
		if !ok {
			a.sink.Error(StageSemantic, n.Line, n.Column, "Variable '%s' not declared", n.Value)
			return ""
		}

		entry.Used = true
		if !entry.Initialized {
			a.sink.Warning(StageSemantic, n.Line, n.Column, "Variable '%s' might not be initialized", n.Value)
		}

		n.Type = entry.Type
	case KindIntExpr:
		a.resolveExprType(n.Children[0])
		rt := a.resolveExprType(n.Children[1])
		if rt == "" {
			return ""
		}

		if rt != "int" {
			a.sink.Error(StageSemantic, n.Line, n.Column, "Type mismatch: right operand of '+' must be int, found %s", rt)
			return ""
		}

		n.Type = "int"
	case KindBoolExpr:
		lt := a.resolveExprType(n.Children[0])
		rt := a.resolveExprType(n.Children[1])
		if lt == "" || rt == "" {
			return ""
		}

		if lt != rt {
			a.sink.Error(StageSemantic, n.Line, n.Column, "Type mismatch: cannot compare %s and %s", lt, rt)
			return ""
		}

		n.Type = "boolean"
	}

	return n.Type
}

// sweepUnused traverses every scope (root through all children, retained
// even past their closing '}') and warns on each entry never read.
func (a *Analyzer) sweepUnused() {
	var unused []*SymbolTableEntry
	for _, s := range a.arena.All() {
		for _, e := range s.Entries() {
			if !e.Used {
				unused = append(unused, e)
			}
		}
	}

	sort.Slice(unused, func(i, j int) bool {
		if unused[i].Line != unused[j].Line {
			return unused[i].Line < unused[j].Line
		}

		return unused[i].Column < unused[j].Column
	})

	for _, e := range unused {
		a.sink.Warning(StageSemantic, e.Line, e.Column, "Variable '%s' declared but never used", e.Name)
	}
}
