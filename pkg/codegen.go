package alanpp

import (
	"github.com/juju/loggo"
)

var codegenLog = loggo.GetLogger("alanpp.codegen")

// VarAddress is one entry of the symbol address map: the
// variable's name at its declaration site, paired with the heap address the
// code generator finalized for it.
type VarAddress struct {
	Name    string
	Line    int
	Column  int
	Address uint16
}

// Image is the result of a successful code generation pass: the flat byte
// buffer laid out as code, heap, then string region, plus the memory-map
// metadata a caller needs to make sense of it (a debug dump, or a VM
// harness).
type Image struct {
	Bytes      []byte
	HeapBase   uint16
	StringBase uint16
	Addresses  []VarAddress
}

// addrSource names where a deferred patch's final 16-bit value comes from:
// either a variable's heap cell (entry, plus a 0/1 offset to reach its high
// byte) or an interned string's address in the string region.
type addrSource struct {
	entry  *SymbolTableEntry
	offset uint16
	strIdx int
	isStr  bool
}

// patchPart selects how much of the resolved address a patch writes: the
// full little-endian addr16 operand, or a single immediate byte (low or
// high) of an address baked into an LDA_CONST/LDX_CONST/LDY_CONST.
type patchPart int

const (
	partAddr16 patchPart = iota
	partLo8
	partHi8
)

type patch struct {
	pos  int
	part patchPart
	src  addrSource
}

// Codegen implements a two-pass emitter: a first pass walks the AST
// emitting bytes and placeholders for addresses that cannot be known until
// the whole program has been seen, then a second pass resolves those
// placeholders once the heap and string regions are laid out.
type Codegen struct {
	sink  *Sink
	arena *ScopeArena

	buf  []byte
	cur  ScopeID
	slot uint16

	addrIndex map[*SymbolTableEntry]uint16
	patches   []patch

	strOrder  []string
	strIndex  map[string]int
	aborted   bool
}

// NewCodegen creates a code generator over an already scope-resolved AST.
func NewCodegen(arena *ScopeArena, sink *Sink) *Codegen {
	return &Codegen{
		sink:      sink,
		arena:     arena,
		addrIndex: make(map[*SymbolTableEntry]uint16),
		strIndex:  make(map[string]int),
	}
}

// Generate compiles prog (the Program AST node) to a byte image. It returns
// ok=false if an undefined-variable or branch-range error occurred during
// emission — such an error discards the buffer for this program entirely.
// Generate performs no type checks of its own.
func (cg *Codegen) Generate(prog *ASTNode) (*Image, bool) {
	block := prog.Children[0]
	cg.cur = block.Scope.ID()
	cg.compileStatements(block.Children)

	if cg.aborted {
		return nil, false
	}

	cg.emitOp(OpBRK)
	for len(cg.buf)%8 != 0 {
		cg.buf = append(cg.buf, 0)
	}

	heapBase := uint16(len(cg.buf))
	cg.buf = append(cg.buf, make([]byte, int(cg.slot)*2)...)

	stringBase := uint16(len(cg.buf))
	strAddrs := make([]uint16, len(cg.strOrder))
	for i, s := range cg.strOrder {
		strAddrs[i] = uint16(len(cg.buf))
		cg.buf = append(cg.buf, []byte(s)...)
		cg.buf = append(cg.buf, 0)
	}

	for _, p := range cg.patches {
		var addr uint16
		if p.src.isStr {
			addr = strAddrs[p.src.strIdx]
		} else {
			addr = heapBase + 2*cg.addrIndex[p.src.entry] + p.src.offset
		}

		switch p.part {
		case partAddr16:
			cg.buf[p.pos] = byte(addr)
			cg.buf[p.pos+1] = byte(addr >> 8)
		case partLo8:
			cg.buf[p.pos] = byte(addr)
		case partHi8:
			cg.buf[p.pos] = byte(addr >> 8)
		}
	}

	if len(cg.buf) > maxImageSize {
		cg.sink.Warning(StageCodegen, 0, 0, "code image is %d bytes, exceeding the %d-byte limit", len(cg.buf), maxImageSize)
	}

	addrs := make([]VarAddress, 0, len(cg.addrIndex))
	for entry, slot := range cg.addrIndex {
		addrs = append(addrs, VarAddress{Name: entry.Name, Line: entry.Line, Column: entry.Column, Address: heapBase + 2*slot})
	}

	codegenLog.Debugf("generated %d-byte image, heap@%#x string@%#x", len(cg.buf), heapBase, stringBase)
	return &Image{Bytes: cg.buf, HeapBase: heapBase, StringBase: stringBase, Addresses: addrs}, true
}

func (cg *Codegen) fail(format string, args ...interface{}) {
	cg.sink.Error(StageCodegen, 0, 0, format, args...)
	cg.aborted = true
}

func (cg *Codegen) mustResolve(name string) *SymbolTableEntry {
	entry, _, ok := cg.arena.Resolve(cg.cur, name)
	if !ok {
		cg.fail("undefined variable '%s'", name)
		return nil
	}

	return entry
}

func (cg *Codegen) internString(s string) int {
	if idx, ok := cg.strIndex[s]; ok {
		return idx
	}

	idx := len(cg.strOrder)
	cg.strOrder = append(cg.strOrder, s)
	cg.strIndex[s] = idx
	return idx
}

func (cg *Codegen) compileStatements(stmts []*ASTNode) {
	for _, s := range stmts {
		if cg.aborted {
			return
		}

		cg.compileStmt(s)
	}
}

func (cg *Codegen) compileStmt(n *ASTNode) {
	switch n.Kind {
	case KindVarDecl:
		cg.compileVarDecl(n)
	case KindAssignment:
		cg.compileAssignment(n)
	case KindPrint:
		cg.compilePrint(n)
	case KindIf:
		cg.compileIf(n)
	case KindWhile:
		cg.compileWhile(n)
	case KindBlock:
		outer := cg.cur
		cg.cur = n.Scope.ID()
		cg.compileStatements(n.Children)
		cg.cur = outer
	}
}

// --- raw byte emission -------------------------------------------------

func (cg *Codegen) emitOp(op Opcode) {
	cg.buf = append(cg.buf, byte(op))
}

func (cg *Codegen) emitConst(op Opcode, imm byte) {
	cg.buf = append(cg.buf, byte(op), imm)
}

func (cg *Codegen) emitAddrKnown(op Opcode, addr uint16) {
	cg.buf = append(cg.buf, byte(op), byte(addr), byte(addr>>8))
}

func (cg *Codegen) emitVarAddr(op Opcode, entry *SymbolTableEntry, offset uint16) {
	cg.buf = append(cg.buf, byte(op), 0, 0)
	pos := len(cg.buf) - 2
	cg.patches = append(cg.patches, patch{pos: pos, part: partAddr16, src: addrSource{entry: entry, offset: offset}})
}

func (cg *Codegen) emitStrImm(op Opcode, strIdx int, part patchPart) {
	cg.buf = append(cg.buf, byte(op), 0)
	pos := len(cg.buf) - 1
	cg.patches = append(cg.patches, patch{pos: pos, part: part, src: addrSource{isStr: true, strIdx: strIdx}})
}

// emitRel8 reserves a BNE's one-byte signed displacement and returns its
// buffer position so the caller can fix it up once the branch target is
// known (both targets are always within the same AST walk, so this never
// needs the deferred patch list).
func (cg *Codegen) emitRel8() int {
	cg.buf = append(cg.buf, byte(OpBNE), 0)
	return len(cg.buf) - 1
}

func (cg *Codegen) patchRel8(pos int, target int) {
	disp := target - (pos + 1)
	if disp < -128 || disp > 127 {
		cg.fail("branch out of range")
		return
	}

	cg.buf[pos] = byte(int8(disp))
}

// --- declarations & assignment ------------------------------------------

func (cg *Codegen) compileVarDecl(n *ASTNode) {
	entry := cg.mustResolve(n.Value)
	if entry == nil {
		return
	}

	cg.addrIndex[entry] = cg.slot
	cg.slot++

	cg.emitConst(OpLDAConst, 0x00)
	cg.emitVarAddr(OpSTA, entry, 0)
}

func (cg *Codegen) compileAssignment(n *ASTNode) {
	entry := cg.mustResolve(n.Value)
	if entry == nil {
		return
	}

	rhs := n.Children[0]

	switch rhs.Kind {
	case KindID:
		src := cg.mustResolve(rhs.Value)
		if src == nil {
			return
		}

		cg.emitVarAddr(OpLDAMem, src, 0)
		cg.emitVarAddr(OpSTA, entry, 0)
	case KindDigit:
		cg.emitConst(OpLDAConst, digitValue(rhs.Value))
		cg.emitVarAddr(OpSTA, entry, 0)
	case KindIntExpr:
		cg.compileIntAdd(rhs)
		cg.emitVarAddr(OpSTA, entry, 0)
	case KindStringExpr:
		idx := cg.internString(rhs.Value)
		cg.emitStrImm(OpLDAConst, idx, partLo8)
		cg.emitVarAddr(OpSTA, entry, 0)
		cg.emitStrImm(OpLDAConst, idx, partHi8)
		cg.emitVarAddr(OpSTA, entry, 1)
	case KindBoolVal:
		cg.emitConst(OpLDAConst, boolValue(rhs.Value))
		cg.emitVarAddr(OpSTA, entry, 0)
	case KindBoolExpr:
		cg.compileBoolExpr(rhs)
		cg.emitAddrKnown(OpLDAMem, scratchAddr)
		cg.emitVarAddr(OpSTA, entry, 0)
	}
}

// --- integer addition -----------------------------------------------------

// compileIntAdd leaves the '+' expression's value in A:
// A <- left, STA scratch, A <- right, ADC scratch. When the right operand is
// itself a '+' chain it uses scratch too, so it is computed first and the
// left digit is added to it afterwards.
func (cg *Codegen) compileIntAdd(n *ASTNode) {
	if n.Children[1].Kind == KindIntExpr {
		cg.compileIntAdd(n.Children[1])
		cg.emitAddrKnown(OpSTA, scratchAddr)
		cg.loadA(n.Children[0])
		cg.emitAddrKnown(OpADC, scratchAddr)
		return
	}

	cg.loadA(n.Children[0])
	cg.emitAddrKnown(OpSTA, scratchAddr)
	cg.loadA(n.Children[1])
	cg.emitAddrKnown(OpADC, scratchAddr)
}

// loadA leaves n's integer value in A, recursing through nested '+' chains.
func (cg *Codegen) loadA(n *ASTNode) {
	switch n.Kind {
	case KindDigit:
		cg.emitConst(OpLDAConst, digitValue(n.Value))
	case KindID:
		entry := cg.mustResolve(n.Value)
		if entry == nil {
			return
		}

		cg.emitVarAddr(OpLDAMem, entry, 0)
	case KindIntExpr:
		cg.compileIntAdd(n)
	}
}

// loadX leaves n's value in X. The ISA has no "compute then move to X", so a
// composite operand is first computed into A and stashed through scratch
// memory.
func (cg *Codegen) loadX(n *ASTNode) {
	switch n.Kind {
	case KindDigit:
		cg.emitConst(OpLDXConst, digitValue(n.Value))
	case KindBoolVal:
		cg.emitConst(OpLDXConst, boolValue(n.Value))
	case KindID:
		entry := cg.mustResolve(n.Value)
		if entry == nil {
			return
		}

		cg.emitVarAddr(OpLDXMem, entry, 0)
	case KindIntExpr:
		cg.compileIntAdd(n)
		cg.emitAddrKnown(OpSTA, scratchAddr)
		cg.emitAddrKnown(OpLDXMem, scratchAddr)
	case KindBoolExpr:
		cg.compileBoolExpr(n)
		cg.emitAddrKnown(OpLDXMem, scratchAddr)
	case KindStringExpr:
		idx := cg.internString(n.Value)
		cg.emitStrImm(OpLDXConst, idx, partLo8)
	}
}

// loadAGeneric is like loadA but also accepts boolean and string operands,
// used by boolExpr's right-hand side.
func (cg *Codegen) loadAGeneric(n *ASTNode) {
	switch n.Kind {
	case KindBoolVal:
		cg.emitConst(OpLDAConst, boolValue(n.Value))
	case KindBoolExpr:
		cg.compileBoolExpr(n)
		cg.emitAddrKnown(OpLDAMem, scratchAddr)
	case KindStringExpr:
		idx := cg.internString(n.Value)
		cg.emitStrImm(OpLDAConst, idx, partLo8)
	default:
		cg.loadA(n)
	}
}

// --- comparisons ------------------------------------------------------

// compileBoolExpr leaves a 0/1 result at scratch: load
// X <- left, A <- right, STA scratch, CPX scratch, then synthesize the
// boolean: store the "not equal" constant, and on equality take no branch
// and overwrite it with the "equal" constant (a 5-byte skip). '!=' uses the
// same skeleton with the two literal constants swapped.
func (cg *Codegen) compileBoolExpr(n *ASTNode) {
	cg.loadX(n.Children[0])
	cg.loadAGeneric(n.Children[1])
	cg.emitAddrKnown(OpSTA, scratchAddr)
	cg.emitAddrKnown(OpCPX, scratchAddr)

	first, second := byte(0x00), byte(0x01)
	if n.Value == "!=" {
		first, second = 0x01, 0x00
	}

	cg.emitConst(OpLDAConst, first)
	cg.emitAddrKnown(OpSTA, scratchAddr)
	skip := cg.emitRel8()
	cg.patchRel8(skip, len(cg.buf)+5)
	cg.emitConst(OpLDAConst, second)
	cg.emitAddrKnown(OpSTA, scratchAddr)
}

// --- control flow -------------------------------------------------------

// compileCondition leaves a 0/1 result at scratch for an if/while condition,
// which per the grammar is either a full comparison BoolExpr or a bare
// BOOLVAL literal.
func (cg *Codegen) compileCondition(n *ASTNode) {
	if n.Kind == KindBoolVal {
		cg.emitConst(OpLDAConst, boolValue(n.Value))
		cg.emitAddrKnown(OpSTA, scratchAddr)
		return
	}

	cg.compileBoolExpr(n)
}

func (cg *Codegen) compileIf(n *ASTNode) {
	cond, body := n.Children[0], n.Children[1]

	cg.compileCondition(cond)
	cg.emitConst(OpLDXConst, 0x01)
	cg.emitAddrKnown(OpCPX, scratchAddr)
	skip := cg.emitRel8()

	cg.compileStmt(body)

	cg.patchRel8(skip, len(cg.buf))
}

func (cg *Codegen) compileWhile(n *ASTNode) {
	cond, body := n.Children[0], n.Children[1]
	loopStart := len(cg.buf)

	cg.compileCondition(cond)
	cg.emitConst(OpLDXConst, 0x01)
	cg.emitAddrKnown(OpCPX, scratchAddr)
	skip := cg.emitRel8()

	cg.compileStmt(body)

	cg.emitConst(OpLDAConst, 0x01)
	cg.emitAddrKnown(OpSTA, scratchAddr)
	cg.emitConst(OpLDXConst, 0x00)
	cg.emitAddrKnown(OpCPX, scratchAddr)
	back := cg.emitRel8()
	cg.patchRel8(back, loopStart)

	cg.patchRel8(skip, len(cg.buf))
}

// --- print --------------------------------------------------------------

func (cg *Codegen) compilePrint(n *ASTNode) {
	expr := n.Children[0]

	switch expr.Kind {
	case KindID:
		entry := cg.mustResolve(expr.Value)
		if entry == nil {
			return
		}

		sys := byte(SysPrintInt)
		if entry.Type == "string" {
			sys = SysPrintString
		}

		cg.emitVarAddr(OpLDYMem, entry, 0)
		cg.emitConst(OpLDXConst, sys)
		cg.emitOp(OpSYS)
	case KindStringExpr:
		idx := cg.internString(expr.Value)
		cg.emitStrImm(OpLDYConst, idx, partLo8)
		cg.emitConst(OpLDXConst, SysPrintString)
		cg.emitOp(OpSYS)
	case KindBoolVal:
		word := "false"
		if expr.Value == "true" {
			word = "true"
		}

		idx := cg.internString(word)
		cg.emitStrImm(OpLDYConst, idx, partLo8)
		cg.emitConst(OpLDXConst, SysPrintString)
		cg.emitOp(OpSYS)
	case KindDigit:
		cg.emitConst(OpLDAConst, digitValue(expr.Value))
		cg.emitAddrKnown(OpSTA, scratchAddr)
		cg.emitAddrKnown(OpLDYMem, scratchAddr)
		cg.emitConst(OpLDXConst, SysPrintInt)
		cg.emitOp(OpSYS)
	case KindIntExpr:
		cg.compileIntAdd(expr)
		cg.emitAddrKnown(OpSTA, scratchAddr)
		cg.emitAddrKnown(OpLDYMem, scratchAddr)
		cg.emitConst(OpLDXConst, SysPrintInt)
		cg.emitOp(OpSYS)
	case KindBoolExpr:
		cg.compileBoolExpr(expr)
		cg.emitAddrKnown(OpLDYMem, scratchAddr)
		cg.emitConst(OpLDXConst, SysPrintInt)
		cg.emitOp(OpSYS)
	}
}

func digitValue(lexeme string) byte {
	return lexeme[0] - '0'
}

func boolValue(lexeme string) byte {
	if lexeme == "true" {
		return 1
	}

	return 0
}
