// Package test provides small helpers shared by the package test suites:
// a random-but-valid Alan++ source generator for lexer/parser benchmarks,
// and a go-cmp-based diff for golden tree comparisons.
package test

import (
	"math/rand"
	"strings"
)

// validFragments are individual lexemes that, concatenated with separators,
// always scan as a well-formed sequence of Alan++ tokens:
// keywords, punctuators, a handful of identifiers, digits, and short string
// literals, matching Alan++'s own alphabet (lowercase-letter identifiers, no
// semicolons or colons).
const validFragments = "print;while;if;int;string;boolean;true;false;{;};(;);+;=;==;!=;\"a string\";\"\";a;b;c;x;y;z;0;1;2;3;4;5;6;7;8;9"

// RandomTokens returns size space-separated lexeme fragments drawn from
// validFragments, for feeding the lexer a long but always-valid stream.
func RandomTokens(size int) string {
	return RandomTokensWithSep(size, " ")
}

// RandomTokensWithSep is RandomTokens with a caller-chosen separator, so
// callers can exercise the lexer's whitespace handling (e.g. newlines).
func RandomTokensWithSep(size int, sep string) string {
	valid := strings.Split(validFragments, ";")

	var toks []string
	for len(toks) < size {
		toks = append(toks, valid[rand.Intn(len(valid))])
	}

	return strings.Join(toks, sep)
}

// RandomProgram wraps count random statements worth of noise tokens inside
// a single well-formed Block and EOP marker, giving the parser and semantic
// analyzer a syntactically terminated (if likely nonsensical) program for
// fuzz-style benchmarks that only care about throughput, not acceptance.
func RandomProgram(statementTokenCount int) string {
	var b strings.Builder
	b.WriteString("{")
	b.WriteString(RandomTokens(statementTokenCount))
	b.WriteString("}$")
	return b.String()
}
