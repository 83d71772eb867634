// Package buildinfo writes the optional structured JSON build summary
// spec.md §7 allows alongside the usual stderr diagnostics and stdout
// summary counts. Grounded on
// original_source/src/logger.py's CompilerLogger.export_json_summary,
// trimmed to the fields cmd/tasm actually has on hand once linking and
// emission finish (no per-entry timestamped log, since pkg/diag never
// stamps one).
package buildinfo

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/aurixinino/TASM/pkg/diag"
	"github.com/aurixinino/TASM/pkg/symtab"
)

// Statistics mirrors logger.py's four-bucket stats block.
type Statistics struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Info     int `json:"info"`
	Debug    int `json:"debug"`
	Total    int `json:"total"`
}

// DiagnosticEntry is one reported problem, in the shape the JSON
// summary carries it — a flattened diag.Diagnostic.
type DiagnosticEntry struct {
	Kind    string `json:"kind"`
	Level   string `json:"level"`
	File    string `json:"file"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
}

// Output describes the artefacts this run produced.
type Output struct {
	SourceFile       string `json:"source_file"`
	Format           string `json:"format"`
	OutputFile       string `json:"output_file"`
	BytesWritten     int    `json:"bytes_written"`
	InstructionCount int    `json:"instruction_count"`
	MinAddress       string `json:"min_address,omitempty"`
	MaxAddress       string `json:"max_address,omitempty"`
}

// Summary is the top-level document written to <output-dir>/build_summary.json.
type Summary struct {
	Output      Output            `json:"output"`
	Statistics  Statistics        `json:"statistics"`
	Diagnostics []DiagnosticEntry `json:"diagnostics"`
}

// New builds a Summary from a finished run's diagnostics and the
// addresses/sizes the linker assigned. bytesWritten is the size of the
// primary emitted artefact, already known to the caller from whichever
// WriteBin/WriteHex/WriteTxt it ran.
func New(sourceFile, format, outputFile string, bytesWritten int, assignments []symtab.AddressAssignment, bag *diag.Bag) Summary {
	s := Summary{
		Output: Output{
			SourceFile:       sourceFile,
			Format:           format,
			OutputFile:       outputFile,
			BytesWritten:     bytesWritten,
			InstructionCount: len(assignments),
		},
	}

	var min, max *big.Int
	for _, a := range assignments {
		if a.EncodedSize == 0 {
			continue
		}
		addr := a.StartAddress
		if min == nil || addr.Cmp(min) < 0 {
			min = addr
		}
		end := new(big.Int).Add(addr, big.NewInt(int64(a.EncodedSize)))
		if max == nil || end.Cmp(max) > 0 {
			max = end
		}
	}
	if min != nil {
		s.Output.MinAddress = fmt.Sprintf("0x%08X", min)
		s.Output.MaxAddress = fmt.Sprintf("0x%08X", max)
	}

	sum := bag.Summarize()
	s.Statistics = Statistics{
		Errors:   sum.Errors,
		Warnings: sum.Warnings,
		Info:     sum.Info,
		Debug:    sum.Debug,
		Total:    sum.Errors + sum.Warnings + sum.Info + sum.Debug,
	}

	for _, d := range bag.Items() {
		s.Diagnostics = append(s.Diagnostics, DiagnosticEntry{
			Kind:    string(d.Kind),
			Level:   d.Level.String(),
			File:    d.Location.File,
			Line:    d.Location.Line,
			Column:  d.Location.Col,
			Message: d.Message,
		})
	}

	return s
}

// Write marshals summary as indented JSON and publishes it to
// <dir>/build_summary.json, using the same create-temp-then-rename
// publish step pkg/emit.WriteAll uses for every other artefact, so a
// reader never observes a half-written summary.
func Write(dir string, summary Summary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding build summary: %w", err)
	}
	path := filepath.Join(dir, "build_summary.json")

	tmp, err := os.CreateTemp(dir, "build_summary-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file for build summary: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing build summary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing build summary: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod build summary: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("publishing build summary: %w", err)
	}
	return nil
}
