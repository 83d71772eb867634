// Package linker turns a canonical statement stream into final addresses,
// a symbol table, and the encoded bytes of every statement, running
// spec.md §4.5's two-pass size fixpoint: a seeding pass that sizes every
// statement optimistically (falling back to encode.WidestShapeMatch's
// safety margin for a label not yet defined), followed by however many
// full re-encoding passes it takes for every chosen size to stop
// growing. Grounded on original_source/src/linker.py's
// _optimize_instruction_sizes: that function's own comments record it
// abandoning a from-the-changed-statement-onward partial rewalk as "too
// complicated" in favour of a full recompute every iteration, which is
// the shape this package follows too — simpler, and still bounded by
// the same monotonic-growth argument that caps linker.py's iteration
// count. pkg/asm/asm.go's pass1 label bookkeeping grounds the
// label/section/origin handling; pkg/symtab and pkg/encode carry the
// address and selection state this package drives.
package linker

import (
	"math/big"

	"github.com/aurixinino/TASM/pkg/diag"
	"github.com/aurixinino/TASM/pkg/encode"
	"github.com/aurixinino/TASM/pkg/instrtable"
	"github.com/aurixinino/TASM/pkg/ir"
	"github.com/aurixinino/TASM/pkg/symtab"
)

// Linker drives variant selection and address assignment over a single
// compilation unit's statement stream.
type Linker struct {
	Table   *instrtable.InstructionTable
	Options encode.Options
}

// New returns a Linker bound to table and opts.
func New(table *instrtable.InstructionTable, opts encode.Options) *Linker {
	return &Linker{Table: table, Options: opts}
}

// Result is the output of a successful Link: the symbol table, the
// final per-statement address assignment, and each statement's encoded
// bytes (nil for statements, like .global, that emit nothing).
type Result struct {
	Symbols     *symtab.SymbolTable
	Assignments []symtab.AddressAssignment
	Bytes       [][]byte
}

type passMode int

const (
	passSeed passMode = iota
	passFixpoint
)

// localSection mirrors symtab.Section during a walk, without touching
// the SymbolTable's committed section list until that walk converges —
// every fixpoint iteration reopens its own set of sections as a cursor
// that may land at a different address than the previous iteration, and
// only the last, stable set belongs in the symbol table.
type localSection struct {
	name       string
	startAddr  *big.Int
	statements []int
}

// Link runs pass 1 followed by however many fixpoint iterations
// spec.md §4.5 requires, then checks the result for overlapping
// sections. Returns nil if bag accumulated a fatal diagnostic at any
// point; the caller's bag is always the full explanation.
func (lk *Linker) Link(stmts []ir.Statement, bag *diag.Bag) *Result {
	st := symtab.New()
	n := len(stmts)
	st.EnsureAssignments(n)
	bytesOut := make([][]byte, n)
	var finalSections []localSection

	ok, _ := lk.walk(stmts, st, bytesOut, passSeed, false, &finalSections, bag)
	if !ok {
		return nil
	}

	// Pass 1's forward-reference sizes are a deliberate overestimate
	// (encode.WidestShapeMatch's safety margin), so the first fixpoint
	// iteration is allowed to shrink them back down to whatever the now
	// partially-known addresses actually require. Monotonicity is only
	// enforced from the second fixpoint iteration onward, mirroring
	// original_source/src/linker.py's own iteration>=2 guard against
	// trusting its first pass's addresses.
	maxPasses := n + 8
	for iter := 0; iter < maxPasses; iter++ {
		var changed bool
		ok, changed = lk.walk(stmts, st, bytesOut, passFixpoint, iter > 0, &finalSections, bag)
		if !ok {
			return nil
		}
		if !changed {
			break
		}
		if iter == maxPasses-1 {
			bag.Errorf(diag.KindOperandOutOfRange, diag.Location{},
				"instruction sizes did not converge after %d fixpoint passes", maxPasses)
			return nil
		}
	}

	for _, s := range finalSections {
		sec := st.OpenSection(s.name, s.startAddr)
		sec.Statements = append(sec.Statements, s.statements...)
	}

	sizeOf := func(sec *symtab.Section) *big.Int {
		total := 0
		for _, idx := range sec.Statements {
			total += st.Assignment(idx).EncodedSize
		}
		return big.NewInt(int64(total))
	}
	st.CheckOverlaps(sizeOf, bag)
	if bag.HasFatal() {
		return nil
	}

	assigns := make([]symtab.AddressAssignment, n)
	for i := 0; i < n; i++ {
		assigns[i] = st.Assignment(i)
	}
	return &Result{Symbols: st, Assignments: assigns, Bytes: bytesOut}
}

// walk performs one full pass over stmts, returning whether it
// completed without a fatal diagnostic and whether any statement's
// chosen size differed from its previous assignment (meaningless, and
// ignored, during the seeding pass).
func (lk *Linker) walk(stmts []ir.Statement, st *symtab.SymbolTable, bytesOut [][]byte, mode passMode, enforceMonotonic bool, finalSections *[]localSection, bag *diag.Bag) (ok bool, changed bool) {
	addr := big.NewInt(0)
	sectionName := "CODE"
	secs := []localSection{{name: sectionName, startAddr: big.NewInt(0)}}
	cur := &secs[len(secs)-1]

	setSymbol := func(name string, a *big.Int, loc diag.Location, constant bool) {
		if mode == passSeed {
			st.Define(symtab.Symbol{
				Name:       name,
				Address:    new(big.Int).Set(a),
				Section:    sectionName,
				IsConstant: constant,
				Location:   loc,
			}, bag)
		} else {
			st.UpdateAddress(name, new(big.Int).Set(a))
		}
	}

	recordEmpty := func(i int) {
		st.SetAssignment(i, symtab.AddressAssignment{StartAddress: new(big.Int).Set(addr), EncodedSize: 0})
		bytesOut[i] = nil
		cur.statements = append(cur.statements, i)
	}

	resolve := resolverFor(st)

	for i, stmt := range stmts {
		switch body := stmt.Body.(type) {
		case ir.OriginBody:
			target := evalOperand(body.Address, resolve, stmt.Location, bag)
			if target == nil {
				return false, false
			}
			addr = new(big.Int).Set(target)
			secs = append(secs, localSection{name: sectionName, startAddr: new(big.Int).Set(addr)})
			cur = &secs[len(secs)-1]
			if stmt.Label != "" {
				setSymbol(stmt.Label, addr, stmt.Location, false)
			}
			recordEmpty(i)
			continue

		case ir.SectionBody:
			sectionName = body.Name
			secs = append(secs, localSection{name: sectionName, startAddr: new(big.Int).Set(addr)})
			cur = &secs[len(secs)-1]
			if stmt.Label != "" {
				setSymbol(stmt.Label, addr, stmt.Location, false)
			}
			recordEmpty(i)
			continue

		case ir.GlobalBody:
			st.DeclareGlobal(body.Name, stmt.Location)
			recordEmpty(i)
			continue

		case ir.IncludeBody:
			bag.Errorf(diag.KindDirectiveError, stmt.Location,
				"unresolved include directive %q reached the linker; includes must be expanded before linking", body.Path)
			return false, false

		case ir.EquateBody:
			// EQU may only name an already-defined value: every surveyed
			// assembler shares this restriction, and it keeps a constant's
			// value from depending on which fixpoint iteration evaluates it.
			v := evalOperand(body.Value, resolve, stmt.Location, bag)
			if v != nil {
				setSymbol(body.Name, v, stmt.Location, true)
			}
			if stmt.Label != "" {
				setSymbol(stmt.Label, addr, stmt.Location, false)
			}
			recordEmpty(i)
			continue
		}

		size, data, variant, stmtOK := lk.sizeStatement(i, stmt, addr, mode, st, bag)
		if !stmtOK {
			return false, false
		}

		start := new(big.Int).Set(addr)
		if stmt.Label != "" {
			setSymbol(stmt.Label, start, stmt.Location, false)
		}

		if mode == passFixpoint {
			prev := st.Assignment(i)
			if enforceMonotonic && size < prev.EncodedSize {
				bag.Errorf(diag.KindOperandOutOfRange, stmt.Location,
					"encoded size shrank from %d to %d bytes across fixpoint iterations", prev.EncodedSize, size)
				return false, false
			}
			if size != prev.EncodedSize {
				changed = true
			}
		}

		st.SetAssignment(i, symtab.AddressAssignment{StartAddress: start, ChosenVariant: variant, EncodedSize: size})
		bytesOut[i] = data
		cur.statements = append(cur.statements, i)

		addr = new(big.Int).Add(addr, big.NewInt(int64(size)))
	}

	*finalSections = secs
	return !bag.HasFatal(), changed
}

func resolverFor(st *symtab.SymbolTable) encode.ResolveFunc {
	return func(name string) (*big.Int, bool) {
		sym, found := st.Lookup(name)
		if !found || !sym.IsDefined {
			return nil, false
		}
		return sym.Address, true
	}
}
