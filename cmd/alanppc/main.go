// Command alanppc compiles Alan++ source into the fixed-VM byte image the
// runtime expects: a code region ending in BRK, a zero-filled heap region,
// and a NUL-terminated string region.
package main

import (
	"fmt"
	"os"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/pborman/getopt"

	alanpp "go.alanpp.dev/pkg"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, errors.ErrorStack(err))
		os.Exit(1)
	}
}

func run() error {
	var (
		outPath   = getopt.StringLong("out", 'o', "", "write the compiled image to PATH instead of stdout")
		logLevel  = getopt.StringLong("log-level", 0, "WARNING", "juju/loggo level: TRACE|DEBUG|INFO|WARNING|ERROR")
		dumpCST   = getopt.BoolLong("dump-cst", 0, "print the concrete syntax tree of each program")
		dumpAST   = getopt.BoolLong("dump-ast", 0, "print the abstract syntax tree of each program")
		dumpScope = getopt.BoolLong("dump-scopes", 0, "print the resolved scope tree of each program")
		dumpImg   = getopt.BoolLong("dump-image", 0, "print a hex listing of the compiled image")
		help      = getopt.BoolLong("help", '?', "display this help")
	)

	getopt.SetParameters("SOURCE")
	getopt.Parse()

	if *help {
		getopt.PrintUsage(os.Stdout)
		return nil
	}

	if level, ok := loggo.ParseLevel(*logLevel); ok {
		loggo.GetLogger("alanpp").SetLogLevel(level)
	}

	args := getopt.Args()
	if len(args) != 1 {
		getopt.PrintUsage(os.Stderr)
		return errors.New("expected exactly one SOURCE argument")
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return errors.Annotatef(err, "reading %s", args[0])
	}

	results, err := alanpp.NewDriver().Compile(string(raw))
	if err != nil {
		return errors.Annotate(err, "compiling")
	}

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			return errors.Annotatef(err, "creating %s", *outPath)
		}

		defer f.Close()
		out = f
	}

	failed := false
	for _, r := range results {
		for _, d := range r.Sink.All() {
			fmt.Fprintf(os.Stderr, "program %d: %s\n", r.Index, d)
		}

		if *dumpCST && r.CST != nil {
			fmt.Fprintf(os.Stderr, "program %d CST:\n%s\n", r.Index, alanpp.DumpCST(r.CST))
		}

		if *dumpAST && r.AST != nil {
			fmt.Fprintf(os.Stderr, "program %d AST:\n%s\n", r.Index, alanpp.DumpAST(r.AST))
		}

		if *dumpScope && r.Scopes != nil {
			fmt.Fprintf(os.Stderr, "program %d scopes:\n%s\n", r.Index, alanpp.DumpScopes(r.Scopes))
		}

		if r.Image == nil {
			failed = true
			continue
		}

		if *dumpImg {
			fmt.Fprintf(os.Stderr, "program %d image:\n%s\n", r.Index, alanpp.DumpImage(r.Image))
		}

		if _, err := out.Write(r.Image.Bytes); err != nil {
			return errors.Annotate(err, "writing image")
		}
	}

	if failed {
		return errors.New("one or more programs failed to compile")
	}

	return nil
}
