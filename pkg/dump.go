package alanpp

import (
	"fmt"
	"strings"

	"github.com/kylelemons/godebug/pretty"
)

// DumpCST renders a CST as an indented tree, for the CLI's --dump-cst flag
// and for golden-file tests that want a human-readable baseline.
func DumpCST(n *CSTNode) string {
	return pretty.Sprint(n)
}

// DumpAST renders an AST the same way, for --dump-ast.
func DumpAST(n *ASTNode) string {
	return pretty.Sprint(n)
}

// DumpScopes renders every scope in an arena, one line per declared name,
// indented by nesting level, for --dump-scopes.
func DumpScopes(arena *ScopeArena) string {
	var b strings.Builder

	for _, s := range arena.All() {
		indent := strings.Repeat("  ", s.Level())
		fmt.Fprintf(&b, "%sscope#%d (level %d, parent=%v)\n", indent, s.ID(), s.Level(), s.parent)

		for name, e := range s.Entries() {
			fmt.Fprintf(&b, "%s  %s: %s initialized=%v used=%v @%d:%d\n",
				indent, name, e.Type, e.Initialized, e.Used, e.Line, e.Column)
		}
	}

	return b.String()
}

// DumpImage renders a byte image as a hex listing with the heap and string
// region boundaries annotated, for --dump-image.
func DumpImage(img *Image) string {
	var b strings.Builder

	fmt.Fprintf(&b, "heap@%#04x string@%#04x size=%d\n", img.HeapBase, img.StringBase, len(img.Bytes))

	for i, byt := range img.Bytes {
		switch uint16(i) {
		case img.HeapBase:
			b.WriteString("-- heap --\n")
		case img.StringBase:
			b.WriteString("-- strings --\n")
		}

		fmt.Fprintf(&b, "%02x ", byt)
		if (i+1)%8 == 0 {
			b.WriteByte('\n')
		}
	}

	if len(img.Bytes)%8 != 0 {
		b.WriteByte('\n')
	}

	for _, a := range img.Addresses {
		fmt.Fprintf(&b, "%s@%d:%d -> %#04x\n", a.Name, a.Line, a.Column, a.Address)
	}

	return b.String()
}
