// Package instrtable loads the external instruction-set table and
// indexes it for the variant selector. The table itself is immutable
// once loaded and is shared by reference across the rest of the
// pipeline, per spec.md §9's note to keep it "an immutable structure
// shared by reference across stages".
package instrtable

import "fmt"

// SlotKind classifies one operand slot of an InstructionVariant.
type SlotKind int

const (
	SlotRegisterD SlotKind = iota
	SlotRegisterA
	SlotRegisterE
	SlotRegisterP
	SlotBitPosition
	SlotImmediateSigned
	SlotImmediateUnsigned
	SlotPCRelative
	SlotMemoryOffset
	SlotLiteralRegister // implicit specific register (e.g. must be A[15]); never encoded
	SlotFixed           // literal packed suffix, e.g. LL/UU/UL/LU
)

func (k SlotKind) String() string {
	switch k {
	case SlotRegisterD:
		return "RegisterD"
	case SlotRegisterA:
		return "RegisterA"
	case SlotRegisterE:
		return "RegisterE"
	case SlotRegisterP:
		return "RegisterP"
	case SlotBitPosition:
		return "BitPosition"
	case SlotImmediateSigned:
		return "ImmediateSigned"
	case SlotImmediateUnsigned:
		return "ImmediateUnsigned"
	case SlotPCRelative:
		return "PCRelative"
	case SlotMemoryOffset:
		return "MemoryOffset"
	case SlotLiteralRegister:
		return "LiteralRegister"
	case SlotFixed:
		return "Fixed"
	default:
		return fmt.Sprintf("SlotKind(%d)", int(k))
	}
}

// SlotSpec is one operand slot of a variant's syntax pattern: where its
// bits land in the emitted word and how to interpret them.
type SlotSpec struct {
	Kind SlotKind

	BitPos int
	BitLen int
	Signed bool
	Scale  int // 1 normally; 2 for PC-relative displacements

	// PostIncrement is set for a SlotMemoryOffset slot spelled
	// "[A[b]+]...", matching spec.md §4.2's post-increment Indexed
	// operand; the selector uses it as a slot-matching criterion
	// distinct from the plain "[A[b]]..." memory form.
	PostIncrement bool

	// Only meaningful for SlotLiteralRegister.
	FixedBank  string // "D", "A", "E", or "P"
	FixedIndex int

	// Only meaningful for SlotFixed.
	FixedToken string
}

// InstructionVariant is one row of the loaded table: one encoding of a
// mnemonic, disjoint from its sibling variants by size, operand shape,
// or implicit operands, per the GLOSSARY's definition of "Variant".
type InstructionVariant struct {
	Mnemonic       string
	OpcodeSizeBits int
	BaseOpcode     uint32
	Slots          []SlotSpec
	Syntax         string // original syntax_pattern text, kept for diagnostics

	// Specificity is the tie-break bonus spec.md §4.4 step 5 applies:
	// a variant naming a specific register (A[15], D[15], ...) outranks
	// an equally-sized variant using a generic register slot.
	Specificity int

	SourceRow int // 1-based row number in the loaded table, for diagnostics
}

// HasImplicitRegister reports whether any slot is an implicit A[10] or
// A[15] register, the GLOSSARY's "Implicit operand" — disabled by
// -Ono-implicit. A fixed literal register in another bank (D[15],
// E[0], ...) still earns its Specificity bonus but isn't one of these
// stack/return-address implicits and so isn't dropped by the flag.
func (v InstructionVariant) HasImplicitRegister() bool {
	for _, s := range v.Slots {
		if s.Kind == SlotLiteralRegister && s.FixedBank == "A" && (s.FixedIndex == 10 || s.FixedIndex == 15) {
			return true
		}
	}
	return false
}

// EncodedSlots returns the slots that are matched one-for-one against
// parsed operands and packed into the emitted word, in order. Implicit
// registers are excluded: spec.md's GLOSSARY is explicit that they "do
// not encode their index". Fixed packed-suffix slots (LL/UL/LU/UU) are
// kept so the source line must supply the matching literal token, but
// each contributes a zero value: every spelling is its own table row
// distinguished by base_opcode.
func (v InstructionVariant) EncodedSlots() []SlotSpec {
	out := make([]SlotSpec, 0, len(v.Slots))
	for _, s := range v.Slots {
		if s.Kind == SlotLiteralRegister {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Arity is the number of operands a caller must supply to match this
// variant: every slot except implicit registers.
func (v InstructionVariant) Arity() int {
	return len(v.EncodedSlots())
}

// InstructionTable is the indexed, immutable collection of variants
// produced by a loader. Zero value is an empty table.
type InstructionTable struct {
	byMnemonic map[string][]InstructionVariant
	byArity    map[string]map[int][]InstructionVariant
	mnemonics  map[string]bool
}

func newTable() *InstructionTable {
	return &InstructionTable{
		byMnemonic: make(map[string][]InstructionVariant),
		byArity:    make(map[string]map[int][]InstructionVariant),
		mnemonics:  make(map[string]bool),
	}
}

// add inserts one validated variant, preserving the table's original
// row order within each mnemonic bucket — that order is the tie-break
// priority spec.md §3 assigns to by_mnemonic.
func (t *InstructionTable) add(v InstructionVariant) {
	mnem := v.Mnemonic
	t.byMnemonic[mnem] = append(t.byMnemonic[mnem], v)
	t.mnemonics[mnem] = true
	if t.byArity[mnem] == nil {
		t.byArity[mnem] = make(map[int][]InstructionVariant)
	}
	arity := v.Arity()
	t.byArity[mnem][arity] = append(t.byArity[mnem][arity], v)
}

// Variants returns every variant for mnemonic, in table order.
func (t *InstructionTable) Variants(mnemonic string) []InstructionVariant {
	return t.byMnemonic[mnemonic]
}

// VariantsByArity returns the variants for mnemonic taking exactly
// operandCount operands — the arity pre-filter of spec.md §4.1(b).
func (t *InstructionTable) VariantsByArity(mnemonic string, operandCount int) []InstructionVariant {
	sub := t.byArity[mnemonic]
	if sub == nil {
		return nil
	}
	return sub[operandCount]
}

// Has reports whether mnemonic appears anywhere in the table — the
// mnemonic_set membership query spec.md §4.1(c) asks for.
func (t *InstructionTable) Has(mnemonic string) bool {
	return t.mnemonics[mnemonic]
}

// Len returns the total number of loaded variants across all mnemonics.
func (t *InstructionTable) Len() int {
	n := 0
	for _, vs := range t.byMnemonic {
		n += len(vs)
	}
	return n
}
