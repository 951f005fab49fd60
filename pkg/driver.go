package alanpp

import (
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"golang.org/x/sync/errgroup"
)

var driverLog = loggo.GetLogger("alanpp.driver")

// Result is one program's outcome: its diagnostics plus whichever stage
// outputs were reached before the pipeline stopped.
// Image is nil whenever any stage recorded an error.
type Result struct {
	Index  int
	Source string
	CST    *CSTNode
	AST    *ASTNode
	Scopes *ScopeArena
	Image  *Image
	Sink   *Sink
}

// Driver splits a multi-program source stream on the end-of-program
// delimiter '$' and compiles each program independently. Each program gets
// its own Lexer, Parser, Analyzer, Codegen and Sink; nothing is shared
// between them except the errgroup driving their concurrent execution.
type Driver struct{}

// NewDriver creates a Driver. A Driver holds no state and can compile any
// number of multi-program streams.
func NewDriver() *Driver {
	return &Driver{}
}

// Split breaks raw source on '$', re-appending the delimiter to each program
// except a trailing fragment that never closed with one (which is reported
// as a missing-EOP parse error by the pipeline itself rather than here).
func (d *Driver) Split(raw string) []string {
	parts := strings.Split(raw, "$")

	var programs []string
	for i, p := range parts {
		if i == len(parts)-1 && strings.TrimSpace(p) == "" {
			continue
		}

		if i < len(parts)-1 {
			p += "$"
		}

		programs = append(programs, p)
	}

	return programs
}

// Compile runs every program in raw through the full pipeline concurrently,
// returning one Result per program in source order. A pipeline-level failure
// in one program (an error recorded in its own sink) does not stop the
// others; a panic in a program's goroutine is not recovered. Only host
// failures would make Compile fail, and none
// currently can occur here, so Compile itself never returns a non-nil error.
// The error return exists for the errgroup-driven shape and for future host
// collaborators (e.g. a file-backed source loader) that do fail.
func (d *Driver) Compile(raw string) ([]*Result, error) {
	programs := d.Split(raw)
	results := make([]*Result, len(programs))

	var g errgroup.Group
	for i, src := range programs {
		i, src := i, src
		g.Go(func() error {
			results[i] = d.compileOne(i, src)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, errors.Trace(err)
	}

	driverLog.Debugf("compiled %d program(s)", len(results))
	return results, nil
}

func (d *Driver) compileOne(index int, src string) *Result {
	sink := NewSink()
	res := &Result{Index: index, Source: src, Sink: sink}

	cstLexer := NewLexer(strings.NewReader(src), sink)
	parser := NewParser(cstLexer, sink)
	cst, ok := parser.Parse()
	if !ok {
		return res
	}

	res.CST = cst

	astLexer := NewLexer(strings.NewReader(src), sink)
	analyzer := NewAnalyzer(astLexer, sink)
	semantic, ok := analyzer.Analyze()
	if !ok {
		return res
	}

	res.AST = semantic.Program
	res.Scopes = semantic.Scopes

	if sink.HasErrors() {
		return res
	}

	gen := NewCodegen(semantic.Scopes, sink)
	image, ok := gen.Generate(semantic.Program)
	if !ok {
		return res
	}

	res.Image = image
	return res
}
