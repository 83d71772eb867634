package emit

import (
	"fmt"
	"strings"
)

// WriteListing renders spec.md §4.6's listing: address, emitted bytes
// in memory order, and the original source text, in source order
// (not address order — a .ORG can make the two diverge, and the
// listing follows the program the way it reads on the page). A
// trailing block lists every symbol with its resolved address,
// grounded on original_source/src/linker.py's _generate_listing_file
// two-page layout (code, then a symbol table keyed by address).
func WriteListing(p *Program) string {
	var sb strings.Builder
	sb.WriteString("ADDR     CODE          SOURCE\n")
	for i, stmt := range p.Statements {
		a := p.Assignments[i]
		data := p.Bytes[i]
		if len(data) == 0 && stmt.Source == "" {
			continue
		}
		codeStr := hexBytesSpaced(data)
		fmt.Fprintf(&sb, "%s %-12s %s\n", fmtAddr32(addrUint64(a.StartAddress)), codeStr, stmt.Source)
	}

	sb.WriteString("\nSymbols:\n")
	for _, sym := range p.Symbols.SortedSymbols() {
		if !sym.IsDefined {
			continue
		}
		fmt.Fprintf(&sb, "%s %s\n", fmtAddr32(addrUint64(sym.Address)), sym.Name)
	}
	return sb.String()
}

// hexBytesSpaced renders data as space-separated uppercase hex byte
// pairs, in memory order — unlike the text dump's word reconstruction,
// the listing shows exactly what lands in memory, byte by byte.
func hexBytesSpaced(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}
