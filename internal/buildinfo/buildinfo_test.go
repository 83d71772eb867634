package buildinfo

import (
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/aurixinino/TASM/pkg/diag"
	"github.com/aurixinino/TASM/pkg/symtab"
)

func TestNewComputesAddressRangeFromAssignments(t *testing.T) {
	bag := &diag.Bag{}
	bag.Errorf(diag.KindInvalidOperand, diag.Location{File: "t.s", Line: 3}, "bad operand")
	bag.Warnf(diag.KindDirectiveError, diag.Location{File: "t.s", Line: 5}, "deprecated directive")

	assignments := []symtab.AddressAssignment{
		{StartAddress: big.NewInt(0x100), EncodedSize: 4},
		{StartAddress: big.NewInt(0x104), EncodedSize: 2},
		{StartAddress: big.NewInt(0x106), EncodedSize: 0}, // zero-size statement, excluded from the range
	}

	s := New("t.s", "bin", "t.bin", 6, assignments, bag)

	if s.Output.MinAddress != "0x00000100" {
		t.Fatalf("expected min address 0x00000100, got %s", s.Output.MinAddress)
	}
	if s.Output.MaxAddress != "0x00000106" {
		t.Fatalf("expected max address 0x00000106, got %s", s.Output.MaxAddress)
	}
	if s.Output.InstructionCount != 3 {
		t.Fatalf("expected instruction count 3, got %d", s.Output.InstructionCount)
	}
	if s.Statistics.Errors != 1 || s.Statistics.Warnings != 1 {
		t.Fatalf("expected 1 error and 1 warning, got %+v", s.Statistics)
	}
	if len(s.Diagnostics) != 2 {
		t.Fatalf("expected 2 flattened diagnostic entries, got %d", len(s.Diagnostics))
	}
}

func TestNewWithNoAssignmentsOmitsAddressRange(t *testing.T) {
	bag := &diag.Bag{}
	s := New("t.s", "bin", "t.bin", 0, nil, bag)
	if s.Output.MinAddress != "" || s.Output.MaxAddress != "" {
		t.Fatalf("expected no address range for an empty program, got %+v", s.Output)
	}
}

func TestWritePublishesAtomically(t *testing.T) {
	dir := t.TempDir()
	bag := &diag.Bag{}
	s := New("t.s", "hex", "t.hex", 12, nil, bag)

	if err := Write(dir, s); err != nil {
		t.Fatalf("Write: %v", err)
	}

	path := filepath.Join(dir, "build_summary.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading build summary: %v", err)
	}
	var decoded Summary
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("build summary is not valid JSON: %v", err)
	}
	if decoded.Output.OutputFile != "t.hex" {
		t.Fatalf("expected output_file t.hex, got %s", decoded.Output.OutputFile)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("leftover temp file: %s", e.Name())
		}
	}
}
