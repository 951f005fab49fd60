package alanpp

import "fmt"

// Stage names the pipeline phase that raised a Diagnostic.
type Stage string

const (
	StageLexer     Stage = "LEXER"
	StageParser    Stage = "PARSER"
	StageSemantic  Stage = "SEMANTIC"
	StageCodegen   Stage = "CODEGEN"
)

// Severity classifies a Diagnostic by how it affects the pipeline: an Error
// halts the current program's compilation at its stage boundary, Warning and
// Hint never do.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityHint    Severity = "hint"
)

// Diagnostic is a single, immutable finding tagged with where it came from
// and where in the source it points. Diagnostics are plain data: they are
// never raised as Go errors across stage boundaries, only appended to a Sink
// and returned up the call stack.
type Diagnostic struct {
	Stage    Stage
	Severity Severity
	Message  string
	Line     int
	Column   int
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s: %s", d.Stage, d.Line, d.Column, d.Severity, d.Message)
}

// Sink is an append-only collector of diagnostics for one compilation. It is
// owned by a single program's pipeline run and is never shared across
// programs.
type Sink struct {
	entries []Diagnostic
}

// NewSink creates an empty diagnostic sink.
func NewSink() *Sink {
	return &Sink{}
}

func (s *Sink) add(stage Stage, sev Severity, line, column int, format string, args ...interface{}) {
	s.entries = append(s.entries, Diagnostic{
		Stage:    stage,
		Severity: sev,
		Message:  fmt.Sprintf(format, args...),
		Line:     line,
		Column:   column,
	})
}

// Error records an error-severity diagnostic.
func (s *Sink) Error(stage Stage, line, column int, format string, args ...interface{}) {
	s.add(stage, SeverityError, line, column, format, args...)
}

// Warning records a warning-severity diagnostic.
func (s *Sink) Warning(stage Stage, line, column int, format string, args ...interface{}) {
	s.add(stage, SeverityWarning, line, column, format, args...)
}

// Hint records a hint-severity diagnostic.
func (s *Sink) Hint(stage Stage, line, column int, format string, args ...interface{}) {
	s.add(stage, SeverityHint, line, column, format, args...)
}

// All returns every diagnostic recorded so far, in the order they were
// raised.
func (s *Sink) All() []Diagnostic {
	return s.entries
}

// HasErrors reports whether any error-severity diagnostic was recorded. A
// stage with HasErrors true aborts the pipeline at its boundary.
func (s *Sink) HasErrors() bool {
	for _, d := range s.entries {
		if d.Severity == SeverityError {
			return true
		}
	}

	return false
}
