// Package symtab holds the symbol table, section list, and per-statement
// address assignment built during pass 1 and mutated across the
// fixpoint iterations of the linker. Grounded on pkg/asm/asm.go's
// pass1 label bookkeeping (a.labels map plus its duplicate-label
// error) and pkg/compiler/symtable.go's sorted, deterministic dump.
package symtab

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/aurixinino/TASM/pkg/diag"
)

// Symbol is one named address or constant.
type Symbol struct {
	Name       string
	Address    *big.Int
	IsDefined  bool
	IsGlobal   bool
	IsConstant bool // EQU value; Address holds the literal, consumes no space
	Section    string
	Location   diag.Location
}

// Section is a contiguous origin-based block of emitted bytes.
type Section struct {
	Name       string
	StartAddr  *big.Int
	Statements []int // statement indices belonging to this section, in order
}

// AddressAssignment records what pass 1/fixpoint decided about one
// statement: where it starts, which instruction variant (if any) was
// chosen for it, and how many bytes it currently occupies.
type AddressAssignment struct {
	StartAddress  *big.Int
	ChosenVariant any // *instrtable.InstructionVariant, kept untyped here to avoid an import cycle
	EncodedSize   int
}

// SymbolTable is the pipeline-owned table of symbols, sections, and
// address assignments. Mutated only during pass 1 and fixpoint
// iteration; every other stage consumes it read-only.
type SymbolTable struct {
	symbols  map[string]*Symbol
	order    []string // definition order, for deterministic iteration
	sections []*Section
	assigns  []AddressAssignment
}

// New returns an empty SymbolTable.
func New() *SymbolTable {
	return &SymbolTable{symbols: make(map[string]*Symbol)}
}

// Define inserts a new symbol. A second Define for the same name is a
// DuplicateSymbol diagnostic, matching pkg/asm/asm.go's pass1 check,
// and the original definition is left untouched.
func (t *SymbolTable) Define(sym Symbol, bag *diag.Bag) {
	if existing, ok := t.symbols[sym.Name]; ok && existing.IsDefined {
		bag.Errorf(diag.KindDuplicateSymbol, sym.Location, "duplicate label %q (first defined at %s)", sym.Name, existing.Location)
		return
	}
	sym.IsDefined = true
	cp := sym
	t.symbols[sym.Name] = &cp
	t.order = append(t.order, sym.Name)
}

// DeclareGlobal marks a name as globally visible, creating a
// not-yet-defined placeholder symbol if none exists yet (a `.global`
// forward declaration is legal ahead of the label it names).
func (t *SymbolTable) DeclareGlobal(name string, loc diag.Location) {
	if sym, ok := t.symbols[name]; ok {
		sym.IsGlobal = true
		return
	}
	t.symbols[name] = &Symbol{Name: name, IsGlobal: true, Location: loc}
	t.order = append(t.order, name)
}

// Lookup returns the symbol named name, if any.
func (t *SymbolTable) Lookup(name string) (Symbol, bool) {
	sym, ok := t.symbols[name]
	if !ok {
		return Symbol{}, false
	}
	return *sym, true
}

// Resolve returns the address of a defined symbol (an EQU constant's
// value for a constant), or an UnresolvedSymbol diagnostic when the name was never defined by the
// time the caller needed its value.
func (t *SymbolTable) Resolve(name string, loc diag.Location, bag *diag.Bag) *big.Int {
	sym, ok := t.symbols[name]
	if !ok || !sym.IsDefined {
		bag.Errorf(diag.KindUnresolvedSymbol, loc, "undefined label %q", name)
		return nil
	}
	return sym.Address
}

// UpdateAddress rewrites a defined symbol's address, used by each
// fixpoint iteration's full rewalk of the statement list.
func (t *SymbolTable) UpdateAddress(name string, addr *big.Int) {
	if sym, ok := t.symbols[name]; ok {
		sym.Address = addr
	}
}

// OpenSection starts a new Section at startAddr, becoming the active
// section for subsequent statements until the next .ORG/.section.
func (t *SymbolTable) OpenSection(name string, startAddr *big.Int) *Section {
	s := &Section{Name: name, StartAddr: new(big.Int).Set(startAddr)}
	t.sections = append(t.sections, s)
	return s
}

// Sections returns every section in creation order.
func (t *SymbolTable) Sections() []*Section {
	return t.sections
}

// CheckOverlaps reports an AddressOverlap diagnostic for every pair of
// sections whose [start, start+size) ranges intersect. sizeOf must
// return the total byte length of a section, computed by the caller
// from its statements' final AddressAssignment entries.
func (t *SymbolTable) CheckOverlaps(sizeOf func(*Section) *big.Int, bag *diag.Bag) {
	type span struct {
		sec        *Section
		lo, hi     *big.Int
	}
	spans := make([]span, 0, len(t.sections))
	for _, s := range t.sections {
		size := sizeOf(s)
		hi := new(big.Int).Add(s.StartAddr, size)
		spans = append(spans, span{sec: s, lo: s.StartAddr, hi: hi})
	}
	for i := 0; i < len(spans); i++ {
		for j := i + 1; j < len(spans); j++ {
			a, b := spans[i], spans[j]
			if a.lo.Cmp(b.hi) < 0 && b.lo.Cmp(a.hi) < 0 {
				bag.Errorf(diag.KindAddressOverlap, diag.Location{},
					"section %q [%s,%s) overlaps section %q [%s,%s)",
					a.sec.Name, a.lo, a.hi, b.sec.Name, b.lo, b.hi)
			}
		}
	}
}

// EnsureAssignments grows the AddressAssignment slice to at least n
// entries, so pass 1 can index into it by statement position before
// the fixpoint loop knows the final statement count.
func (t *SymbolTable) EnsureAssignments(n int) {
	for len(t.assigns) < n {
		t.assigns = append(t.assigns, AddressAssignment{})
	}
}

// Assignment returns the current AddressAssignment for statement index i.
func (t *SymbolTable) Assignment(i int) AddressAssignment {
	return t.assigns[i]
}

// SetAssignment overwrites the AddressAssignment for statement index i.
func (t *SymbolTable) SetAssignment(i int, a AddressAssignment) {
	t.assigns[i] = a
}

// Len returns the number of tracked address assignments.
func (t *SymbolTable) Len() int {
	return len(t.assigns)
}

// String renders every symbol sorted by name, one per line, in the
// "name = address (global|local, constant|address)" shape — the same
// deterministic-dump idiom as pkg/compiler/symtable.go's String, so
// debug logging gets a stable, diffable rendering.
func (t *SymbolTable) String() string {
	names := make([]string, 0, len(t.symbols))
	for n := range t.symbols {
		names = append(names, n)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, n := range names {
		s := t.symbols[n]
		scope := "local"
		if s.IsGlobal {
			scope = "global"
		}
		kind := "address"
		if s.IsConstant {
			kind = "constant"
		}
		addr := "?"
		if s.Address != nil {
			addr = fmt.Sprintf("0x%X", s.Address)
		}
		fmt.Fprintf(&sb, "%s = %s (%s, %s)\n", n, addr, scope, kind)
	}
	return sb.String()
}

// SortedSymbols returns every symbol sorted by name — the sequence the
// map emitter walks to produce spec.md §4.6's map file.
func (t *SymbolTable) SortedSymbols() []Symbol {
	names := make([]string, 0, len(t.symbols))
	for n := range t.symbols {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]Symbol, len(names))
	for i, n := range names {
		out[i] = *t.symbols[n]
	}
	return out
}
