package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Diagnostic is one structured message from a build tool: the bundler's
// per-message output or a stack frame reported by the render runtime.
type Diagnostic struct {
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// String formats the diagnostic as file:line:column: message.
func (d Diagnostic) String() string {
	var b strings.Builder

	if d.File != "" {
		b.WriteString(d.File)
		if d.Line > 0 {
			fmt.Fprintf(&b, ":%d", d.Line)
			if d.Column > 0 {
				fmt.Fprintf(&b, ":%d", d.Column)
			}
		}
		b.WriteString(": ")
	}

	b.WriteString(d.Message)

	if d.Detail != "" {
		b.WriteString("\n\t")
		b.WriteString(d.Detail)
	}

	return b.String()
}

// FormatDiagnostics renders diagnostics one per line, ordered by file
// then line so output is stable across runs.
func FormatDiagnostics(diags []Diagnostic) string {
	sorted := make([]Diagnostic, len(diags))
	copy(sorted, diags)

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].File != sorted[j].File {
			return sorted[i].File < sorted[j].File
		}

		return sorted[i].Line < sorted[j].Line
	})

	lines := make([]string, 0, len(sorted))
	for _, d := range sorted {
		lines = append(lines, d.String())
	}

	return strings.Join(lines, "\n")
}

// DiagnosticsOf returns structured diagnostics attached to an error,
// or a single synthesized diagnostic for plain errors.
func DiagnosticsOf(err error) []Diagnostic {
	if err == nil {
		return nil
	}

	var te *TabiError
	if errors.As(err, &te) && len(te.Diagnostics) > 0 {
		return te.Diagnostics
	}

	return []Diagnostic{{Message: err.Error()}}
}
