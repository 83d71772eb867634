package encode

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/aurixinino/TASM/pkg/instrtable"
	"github.com/aurixinino/TASM/pkg/ir"
)

// Result is the outcome of a successful variant selection: the chosen
// row plus its fully packed word, already serialised to bytes.
type Result struct {
	Variant instrtable.InstructionVariant
	Word    uint32
	Bytes   []byte
}

// Rejection records why one candidate variant was eliminated, in the
// stage that eliminated it — spec.md §7's diagnostic model expects
// enough detail to explain a "no matching variant" error without the
// caller re-deriving the whole pipeline.
type Rejection struct {
	Variant instrtable.InstructionVariant
	Reason  string
}

// SelectionTrace accumulates every elimination spec.md §4.4's pipeline
// performs, win or lose, so a failed selection can report exactly why
// each candidate fell out.
type SelectionTrace struct {
	Mnemonic     string
	OperandCount int
	Rejections   []Rejection
}

func (t *SelectionTrace) reject(v instrtable.InstructionVariant, format string, args ...any) {
	t.Rejections = append(t.Rejections, Rejection{Variant: v, Reason: fmt.Sprintf(format, args...)})
}

// String renders the trace as one reason per eliminated variant, in
// elimination order.
func (t *SelectionTrace) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "no variant of %q accepts %d operand(s):\n", t.Mnemonic, t.OperandCount)
	for _, r := range t.Rejections {
		fmt.Fprintf(&sb, "  row %d (%s): %s\n", r.Variant.SourceRow, r.Variant.Syntax, r.Reason)
	}
	return sb.String()
}

type shapedCandidate struct {
	variant instrtable.InstructionVariant
	values  []*big.Int
}

// Select runs spec.md §4.4's six-step pipeline: arity, slot shape,
// optimisation flags, fit, size preference, and a Specificity-based
// tie-break (grounded on original_source/instruction_loader.py's
// specificity score) ahead of the final table-order fallback. pc is
// the statement's candidate address, spec.md §4.4's "candidate pc" —
// the delta arithmetic a SlotPCRelative slot needs lives here, not in
// ResolveFunc, which always resolves a label to its plain address.
func Select(table *instrtable.InstructionTable, mnemonic string, operands []ir.Operand, pc *big.Int, opts Options, resolve ResolveFunc) (*Result, *SelectionTrace) {
	trace := &SelectionTrace{Mnemonic: mnemonic, OperandCount: len(operands)}

	candidates := table.VariantsByArity(mnemonic, len(operands))
	if len(candidates) == 0 {
		return nil, trace
	}

	shaped := make([]shapedCandidate, 0, len(candidates))
	for _, v := range candidates {
		slots := v.EncodedSlots()
		if len(slots) != len(operands) {
			trace.reject(v, "encoded slot count %d does not match %d operand(s)", len(slots), len(operands))
			continue
		}
		values := make([]*big.Int, len(slots))
		ok := true
		for i, slot := range slots {
			val, matched := matchSlot(operands[i], slot, pc, resolve)
			if !matched {
				trace.reject(v, "operand %d (%s) does not match slot %s", i+1, operands[i], slot.Kind)
				ok = false
				break
			}
			values[i] = val
		}
		if ok {
			shaped = append(shaped, shapedCandidate{variant: v, values: values})
		}
	}
	if len(shaped) == 0 {
		return nil, trace
	}

	afterOpt := make([]shapedCandidate, 0, len(shaped))
	for _, c := range shaped {
		if opts.Force32 && c.variant.OpcodeSizeBits == 16 {
			trace.reject(c.variant, "excluded by force32")
			continue
		}
		if opts.NoImplicit && c.variant.HasImplicitRegister() {
			trace.reject(c.variant, "excluded by no-implicit")
			continue
		}
		afterOpt = append(afterOpt, c)
	}
	if len(afterOpt) == 0 {
		return nil, trace
	}

	type fitted struct {
		variant instrtable.InstructionVariant
		scaled  []*big.Int
	}
	fitOK := make([]fitted, 0, len(afterOpt))
	for _, c := range afterOpt {
		slots := c.variant.EncodedSlots()
		scaled := make([]*big.Int, len(slots))
		ok := true
		for i, slot := range slots {
			sv, fitsOK := fitSlot(c.values[i], slot)
			if !fitsOK {
				trace.reject(c.variant, "operand %d value %s does not fit slot %s (width %d, signed=%v, scale=%d)",
					i+1, c.values[i], slot.Kind, slot.BitLen, slot.Signed, slotScale(slot))
				ok = false
				break
			}
			scaled[i] = sv
		}
		if ok {
			fitOK = append(fitOK, fitted{variant: c.variant, scaled: scaled})
		}
	}
	if len(fitOK) == 0 {
		return nil, trace
	}

	best := fitOK[0]
	for _, c := range fitOK[1:] {
		if betterVariant(c.variant, best.variant) {
			best = c
		}
	}
	for _, c := range fitOK {
		if c.variant.SourceRow != best.variant.SourceRow {
			trace.reject(c.variant, "smaller or more specific variant preferred (row %d)", best.variant.SourceRow)
		}
	}

	word, err := buildWord(best.variant, best.scaled)
	if err != nil {
		trace.reject(best.variant, "%v", err)
		return nil, trace
	}
	return &Result{
		Variant: best.variant,
		Word:    word,
		Bytes:   WriteWord(word, best.variant.OpcodeSizeBits, opts.Endian),
	}, trace
}

// betterVariant reports whether candidate should replace current as the
// running best: smaller opcode size wins outright, then higher
// Specificity, and otherwise current (the earlier table row) stands.
func betterVariant(candidate, current instrtable.InstructionVariant) bool {
	if candidate.OpcodeSizeBits != current.OpcodeSizeBits {
		return candidate.OpcodeSizeBits < current.OpcodeSizeBits
	}
	if candidate.Specificity != current.Specificity {
		return candidate.Specificity > current.Specificity
	}
	return false
}

// WidestShapeMatch finds, among the variants matching mnemonic's arity
// and optimisation flags, the one with the largest OpcodeSizeBits whose
// slots are structurally compatible with operands — ignoring whether
// any displacement or immediate actually fits. pkg/linker's pass 1
// uses this for spec.md §4.5's "safety margin": an instruction
// referencing a label with no address yet gets sized as if it will
// need the biggest variant, rather than risk under-sizing it and
// forcing many extra fixpoint iterations. Returns ok=false if no
// variant is even shape-compatible (a real error, surfaced once the
// label resolves and the ordinary Select runs).
func WidestShapeMatch(table *instrtable.InstructionTable, mnemonic string, operands []ir.Operand, opts Options) (instrtable.InstructionVariant, bool) {
	candidates := table.VariantsByArity(mnemonic, len(operands))
	var widest instrtable.InstructionVariant
	found := false
	for _, v := range candidates {
		if opts.Force32 && v.OpcodeSizeBits == 16 {
			continue
		}
		if opts.NoImplicit && v.HasImplicitRegister() {
			continue
		}
		slots := v.EncodedSlots()
		if len(slots) != len(operands) {
			continue
		}
		shapeOK := true
		for i, slot := range slots {
			if !shapeOnlyMatch(operands[i], slot) {
				shapeOK = false
				break
			}
		}
		if !shapeOK {
			continue
		}
		if !found || v.OpcodeSizeBits > widest.OpcodeSizeBits {
			widest = v
			found = true
		}
	}
	return widest, found
}

// shapeOnlyMatch is matchSlot without resolving any value: a
// LabelRefOperand or ImmediateOperand is accepted for any
// value-carrying slot kind regardless of whether its symbol is defined
// yet, since WidestShapeMatch only cares about structural fit.
func shapeOnlyMatch(op ir.Operand, slot instrtable.SlotSpec) bool {
	switch slot.Kind {
	case instrtable.SlotRegisterD, instrtable.SlotRegisterA, instrtable.SlotRegisterE, instrtable.SlotRegisterP:
		reg, isReg := op.(ir.RegisterOperand)
		if !isReg || reg.Deref || reg.PostIncrement || reg.Bank != bankOf(slot.Kind) {
			return false
		}
		return !((slot.Kind == instrtable.SlotRegisterE || slot.Kind == instrtable.SlotRegisterP) && reg.Index%2 != 0)

	case instrtable.SlotMemoryOffset:
		switch v := op.(type) {
		case ir.IndexedOperand:
			return v.Base.Bank == ir.BankAddress && v.Base.PostIncrement == slot.PostIncrement
		case ir.RegisterOperand:
			return v.Deref && v.Bank == ir.BankAddress && v.PostIncrement == slot.PostIncrement
		default:
			return false
		}

	case instrtable.SlotFixed:
		fx, isFixed := op.(ir.FixedOperand)
		return isFixed && strings.EqualFold(fx.Token, slot.FixedToken)

	case instrtable.SlotPCRelative, instrtable.SlotBitPosition, instrtable.SlotImmediateSigned, instrtable.SlotImmediateUnsigned:
		switch op.(type) {
		case ir.ImmediateOperand, ir.LabelRefOperand:
			return true
		default:
			return false
		}

	default:
		return false
	}
}

func bankOf(kind instrtable.SlotKind) ir.Bank {
	switch kind {
	case instrtable.SlotRegisterA:
		return ir.BankAddress
	case instrtable.SlotRegisterE:
		return ir.BankExtended
	case instrtable.SlotRegisterP:
		return ir.BankPacked
	default:
		return ir.BankData
	}
}

// matchSlot reports whether op has the shape slot requires, and if so
// resolves the integer value it contributes (unscaled, unchecked for
// width — fitSlot does that next).
func matchSlot(op ir.Operand, slot instrtable.SlotSpec, pc *big.Int, resolve ResolveFunc) (*big.Int, bool) {
	switch slot.Kind {
	case instrtable.SlotRegisterD, instrtable.SlotRegisterA, instrtable.SlotRegisterE, instrtable.SlotRegisterP:
		reg, isReg := op.(ir.RegisterOperand)
		if !isReg || reg.Deref || reg.PostIncrement {
			return nil, false
		}
		if reg.Bank != bankOf(slot.Kind) {
			return nil, false
		}
		if (slot.Kind == instrtable.SlotRegisterE || slot.Kind == instrtable.SlotRegisterP) && reg.Index%2 != 0 {
			return nil, false
		}
		return big.NewInt(int64(reg.Index)), true

	case instrtable.SlotMemoryOffset:
		// A memory-bracket token classifies as SlotMemoryOffset only
		// when it wraps a variable base register ("[A[b]]", never
		// "off4"); its bits carry the base register's index. Plain
		// "[a15]14" addressing flattens the displacement into its own
		// comma-separated operand and table slot (pkg/lineparse's
		// splitCompoundOperands), matched independently as a generic
		// immediate slot elsewhere in the same variant. Post-increment
		// addressing has no separate displacement field at all — the
		// parser folds it into one IndexedOperand, and this slot is
		// still just the base register's index.
		switch v := op.(type) {
		case ir.IndexedOperand:
			if v.Base.Bank != ir.BankAddress || v.Base.PostIncrement != slot.PostIncrement {
				return nil, false
			}
			return big.NewInt(int64(v.Base.Index)), true
		case ir.RegisterOperand:
			if !v.Deref || v.Bank != ir.BankAddress || v.PostIncrement != slot.PostIncrement {
				return nil, false
			}
			return big.NewInt(int64(v.Index)), true
		default:
			return nil, false
		}

	case instrtable.SlotFixed:
		fx, isFixed := op.(ir.FixedOperand)
		if !isFixed || !strings.EqualFold(fx.Token, slot.FixedToken) {
			return nil, false
		}
		return big.NewInt(0), true

	case instrtable.SlotPCRelative:
		// A literal displacement ("J disp8") is already the value to
		// encode. A label reference needs target-pc: per spec.md §4.4's
		// fit rule, "d = (target - pc) / k", computed here rather than
		// inside ResolveFunc so the same resolve closure can also serve
		// an absolute-address use of the same label (e.g. #HI:label).
		switch v := op.(type) {
		case ir.ImmediateOperand:
			return v.Resolve(), true
		case ir.LabelRefOperand:
			addr, ok := resolve(v.Name)
			if !ok {
				return nil, false
			}
			target := v.Resolve(addr)
			if pc == nil {
				return target, true
			}
			return new(big.Int).Sub(target, pc), true
		default:
			return nil, false
		}

	case instrtable.SlotBitPosition, instrtable.SlotImmediateSigned, instrtable.SlotImmediateUnsigned:
		return resolveOperandValue(op, resolve)

	default:
		return nil, false
	}
}

func resolveOperandValue(op ir.Operand, resolve ResolveFunc) (*big.Int, bool) {
	switch v := op.(type) {
	case ir.ImmediateOperand:
		return v.Resolve(), true
	case ir.LabelRefOperand:
		addr, ok := resolve(v.Name)
		if !ok {
			return nil, false
		}
		return v.Resolve(addr), true
	default:
		return nil, false
	}
}

func slotScale(slot instrtable.SlotSpec) int {
	if slot.Scale == 0 {
		return 1
	}
	return slot.Scale
}

// fitSlot divides value by the slot's scale (PC-relative and scaled
// immediates must divide exactly) and range-checks what remains
// against the slot's bit width and signedness — spec.md §4.4's fit
// rule, step 4 of the selection pipeline.
func fitSlot(value *big.Int, slot instrtable.SlotSpec) (*big.Int, bool) {
	scale := slotScale(slot)
	scaled := value
	if scale != 1 {
		q, r := new(big.Int).QuoRem(value, big.NewInt(int64(scale)), new(big.Int))
		if r.Sign() != 0 {
			return nil, false
		}
		scaled = q
	}
	if slot.BitLen == 0 {
		return scaled, scaled.Sign() == 0
	}
	if !FitsWidth(scaled, slot.BitLen, slot.Signed) {
		return nil, false
	}
	return scaled, true
}

// buildWord packs every encoded slot's scaled value into variant's
// base opcode, mirroring pkg/cpu.EncodeInstruction's shift-and-OR
// pattern generalised to a table-driven slot layout.
func buildWord(variant instrtable.InstructionVariant, scaled []*big.Int) (uint32, error) {
	word := variant.BaseOpcode
	for i, slot := range variant.EncodedSlots() {
		bits := EncodeBits(scaled[i], slot.BitLen)
		if slot.BitPos+slot.BitLen > variant.OpcodeSizeBits {
			return 0, fmt.Errorf("slot %d of %q overruns %d-bit word", i, variant.Mnemonic, variant.OpcodeSizeBits)
		}
		word |= uint32(bits) << uint(slot.BitPos)
	}
	return word, nil
}
