// Package emit renders a linked program into the output artefacts
// spec.md §4.6 describes: a contiguous binary blob, Intel HEX, a plain
// hex dump, a source listing, and a symbol map. Every emitter consumes
// only the final ir.Statement slice and symtab.AddressAssignment /
// byte slices the linker already produced — nothing here resolves a
// symbol or picks an instruction variant a second time.
//
// Grounded on original_source/src/linker.py's _generate_output family
// (_generate_intel_hex_custom, _write_hex_record,
// _write_extended_address_record, _generate_plain_text,
// _generate_listing_file, _write_map_file): the record shapes, field
// widths, and file layout below follow those functions line for line,
// translated from Python's f-string formatting to Go's fmt verbs.
package emit

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/aurixinino/TASM/pkg/encode"
	"github.com/aurixinino/TASM/pkg/instrtable"
	"github.com/aurixinino/TASM/pkg/ir"
	"github.com/aurixinino/TASM/pkg/symtab"
)

// Entry is one emitted chunk of bytes at an absolute address, in
// memory order. An Entry with zero-length Data (a .global or .section
// marker) is dropped before it reaches any emitter.
type Entry struct {
	Address   uint64
	Data      []byte
	Statement ir.Statement
	Variant   *instrtable.InstructionVariant
}

// Program is everything an emitter needs: the statements in source
// order paired with their final addresses and bytes, the converged
// symbol table, and the endianness that produced Data.
type Program struct {
	Statements  []ir.Statement
	Assignments []symtab.AddressAssignment
	Bytes       [][]byte
	Symbols     *symtab.SymbolTable
	Endian      encode.Endianness
}

// Entries returns every non-empty statement as an Entry, sorted by
// address — the order every emitter except the listing (which follows
// source order instead) consumes. A .ORG can make source order and
// address order diverge, exactly as spec.md §5 allows.
func (p *Program) Entries() []Entry {
	out := make([]Entry, 0, len(p.Statements))
	for i, stmt := range p.Statements {
		a := p.Assignments[i]
		if a.EncodedSize == 0 || len(p.Bytes[i]) == 0 {
			continue
		}
		var v *instrtable.InstructionVariant
		if iv, ok := a.ChosenVariant.(*instrtable.InstructionVariant); ok {
			v = iv
		}
		out = append(out, Entry{Address: addrUint64(a.StartAddress), Data: p.Bytes[i], Statement: stmt, Variant: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

func addrUint64(a *big.Int) uint64 {
	if a == nil {
		return 0
	}
	return a.Uint64()
}

// wordOf reconstructs the instruction word (or packed data value) that
// produced data under endian, inverting encode.WriteWord/packValue's
// byte order. The text dump needs the word as a single big-endian
// integer regardless of the target's actual byte order (spec.md §4.6),
// so every caller formats this value directly as hex.
func wordOf(data []byte, endian encode.Endianness) uint64 {
	var word uint64
	n := len(data)
	if endian == encode.BigEndian {
		for i := 0; i < n; i++ {
			word = word<<8 | uint64(data[i])
		}
		return word
	}
	for i := n - 1; i >= 0; i-- {
		word = word<<8 | uint64(data[i])
	}
	return word
}

func scopeOf(sym symtab.Symbol) string {
	if sym.IsGlobal {
		return "global"
	}
	return "local"
}

func fmtAddr32(a uint64) string {
	return fmt.Sprintf("%08X", a)
}
