package test

import (
	"github.com/google/go-cmp/cmp"
)

// Diff returns a human-readable structural diff between want and got, empty
// when they are equal. Table-driven tests compare CST/AST/scope trees with
// this instead of reflect.DeepEqual so a mismatch points at the exact
// subtree that differs rather than just failing "not equal".
func Diff(want, got interface{}, opts ...cmp.Option) string {
	return cmp.Diff(want, got, opts...)
}
