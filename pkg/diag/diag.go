// Package diag implements the error/diagnostic model of the assembler:
// a kind-tagged, source-located message that accumulates in a Bag rather
// than aborting the run immediately, so a single pass over a source file
// can report every problem it finds.
package diag

import (
	"fmt"
	"sort"
	"strings"
)

// Kind tags a Diagnostic with the category of problem that produced it.
type Kind string

const (
	KindLexError           Kind = "LexError"
	KindNumericLiteral     Kind = "NumericLiteralError"
	KindUnknownMnemonic    Kind = "UnknownMnemonic"
	KindInvalidOperand     Kind = "InvalidOperand"
	KindOperandOutOfRange  Kind = "OperandOutOfRange"
	KindDuplicateSymbol    Kind = "DuplicateSymbol"
	KindUnresolvedSymbol   Kind = "UnresolvedSymbol"
	KindAddressOverlap     Kind = "AddressOverlap"
	KindDirectiveError     Kind = "DirectiveError"
	KindTableLoadError     Kind = "TableLoadError"
	KindConfigError        Kind = "ConfigError"
	KindPreprocessError    Kind = "PreprocessError"
)

// Level is the severity of a Diagnostic.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelFatal:
		return "fatal"
	default:
		return "error"
	}
}

// Location identifies where in source a Diagnostic applies. Line and Col
// are 1-based; a Col of 0 means "whole line, column not meaningful".
type Location struct {
	File string
	Line int
	Col  int
}

func (loc Location) String() string {
	if loc.Col > 0 {
		return fmt.Sprintf("%s:%d:%d", loc.File, loc.Line, loc.Col)
	}
	return fmt.Sprintf("%s:%d", loc.File, loc.Line)
}

// Diagnostic is one reported problem or note.
type Diagnostic struct {
	Kind     Kind
	Level    Level
	Location Location
	Message  string
}

// String renders the diagnostic as "<file>:<line>:<col>: <level>: <message> [<KIND>]".
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s [%s]", d.Location, d.Level, d.Message, d.Kind)
}

// Bag accumulates diagnostics across a run without ever discarding one.
// The parser and encoder append to a shared Bag rather than returning on
// the first error, so diagnostics from an entire file surface together.
type Bag struct {
	items []Diagnostic
}

// Add appends one diagnostic.
func (b *Bag) Add(d Diagnostic) {
	b.items = append(b.items, d)
}

// Errorf appends an Error-level diagnostic built from a format string.
func (b *Bag) Errorf(kind Kind, loc Location, format string, args ...any) {
	b.Add(Diagnostic{Kind: kind, Level: LevelError, Location: loc, Message: fmt.Sprintf(format, args...)})
}

// Warnf appends a Warning-level diagnostic built from a format string.
func (b *Bag) Warnf(kind Kind, loc Location, format string, args ...any) {
	b.Add(Diagnostic{Kind: kind, Level: LevelWarning, Location: loc, Message: fmt.Sprintf(format, args...)})
}

// Items returns the accumulated diagnostics in report order.
func (b *Bag) Items() []Diagnostic {
	return b.items
}

// HasFatal reports whether any accumulated diagnostic is Error or Fatal
// level. The driver uses this to decide whether emission should proceed.
func (b *Bag) HasFatal() bool {
	for _, d := range b.items {
		if d.Level == LevelError || d.Level == LevelFatal {
			return true
		}
	}
	return false
}

// Summary counts diagnostics per level: errors, warnings, info, debug —
// the four buckets spec.md §7 requires on stdout at end of run.
type Summary struct {
	Errors, Warnings, Info, Debug int
}

func (s Summary) String() string {
	return fmt.Sprintf("errors=%d warnings=%d info=%d debug=%d", s.Errors, s.Warnings, s.Info, s.Debug)
}

// Summarize tallies the four level buckets.
func (b *Bag) Summarize() Summary {
	var s Summary
	for _, d := range b.items {
		switch d.Level {
		case LevelError, LevelFatal:
			s.Errors++
		case LevelWarning:
			s.Warnings++
		case LevelInfo:
			s.Info++
		case LevelDebug:
			s.Debug++
		}
	}
	return s
}

// Format renders every diagnostic on its own line, stably ordered by
// location (file, then line, then column) so that two runs over the same
// input produce byte-identical diagnostic output per spec.md §5.
func (b *Bag) Format() string {
	sorted := make([]Diagnostic, len(b.items))
	copy(sorted, b.items)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, c := sorted[i].Location, sorted[j].Location
		if a.File != c.File {
			return a.File < c.File
		}
		if a.Line != c.Line {
			return a.Line < c.Line
		}
		return a.Col < c.Col
	})
	var sb strings.Builder
	for _, d := range sorted {
		sb.WriteString(d.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
