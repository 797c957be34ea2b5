package types

import "fmt"

// DiagnosticLevel classifies pipeline diagnostics.
type DiagnosticLevel string

const (
	DiagInfo    DiagnosticLevel = "INFO"
	DiagWarning DiagnosticLevel = "WARNING"
)

// Diagnostic is a non-fatal observation produced by a pipeline stage.
// Stages are pure: they return diagnostics alongside results and never
// log or emit events themselves.
type Diagnostic struct {
	// Level is the diagnostic severity.
	Level DiagnosticLevel `json:"level"`

	// Stage names the pipeline stage that produced the diagnostic
	// (parse, diff, graph, optimize, compile).
	Stage string `json:"stage"`

	// Message describes the observation.
	Message string `json:"message"`

	// Fragment carries the offending SQL fragment for parse diagnostics.
	Fragment string `json:"fragment,omitempty"`
}

// String implements fmt.Stringer.
func (d Diagnostic) String() string {
	if d.Fragment != "" {
		return fmt.Sprintf("[%s] %s: %s (near %q)", d.Level, d.Stage, d.Message, d.Fragment)
	}
	return fmt.Sprintf("[%s] %s: %s", d.Level, d.Stage, d.Message)
}
