package linker

import (
	"math/big"

	"github.com/aurixinino/TASM/pkg/diag"
	"github.com/aurixinino/TASM/pkg/encode"
	"github.com/aurixinino/TASM/pkg/instrtable"
	"github.com/aurixinino/TASM/pkg/ir"
	"github.com/aurixinino/TASM/pkg/symtab"
)

// sizeStatement computes one statement's encoded size and bytes at the
// given address, dispatching by StatementKind. Origin/Section/Global/
// Include/Equate are handled directly by walk and never reach here.
func (lk *Linker) sizeStatement(i int, stmt ir.Statement, addr *big.Int, mode passMode, st *symtab.SymbolTable, bag *diag.Bag) (int, []byte, *instrtable.InstructionVariant, bool) {
	switch body := stmt.Body.(type) {
	case ir.InstructionBody:
		return lk.sizeInstruction(body, addr, mode, st, stmt.Location, bag)

	case ir.DataBody:
		elem := body.Directive.ElementSize()
		data := make([]byte, 0, len(body.Values)*elem)
		for _, val := range body.Values {
			var v *big.Int
			if mode == passSeed {
				v, _ = evalOperandValue(val, resolverFor(st))
			} else {
				v = evalOperand(val, resolverFor(st), stmt.Location, bag)
			}
			if v == nil {
				data = append(data, make([]byte, elem)...)
				continue
			}
			data = append(data, packValue(v, elem, lk.Options.Endian)...)
		}
		return len(body.Values) * elem, data, nil, true

	case ir.ReserveBody:
		return body.Bytes, make([]byte, body.Bytes), nil, true

	case ir.AlignBody:
		pad := alignPad(addr, body.Boundary)
		return pad, make([]byte, pad), nil, true

	case ir.TimesBody:
		return lk.sizeTimes(i, body, addr, mode, st, bag)

	default:
		bag.Errorf(diag.KindDirectiveError, stmt.Location, "statement cannot be sized by the linker")
		return 0, nil, nil, false
	}
}

// sizeInstruction applies spec.md §4.4's selector at addr, except when
// mode is passSeed and an operand names a label not yet defined: that
// case defers to encode.WidestShapeMatch's safety margin rather than
// risk under-sizing an instruction whose eventual target is unknown.
func (lk *Linker) sizeInstruction(body ir.InstructionBody, addr *big.Int, mode passMode, st *symtab.SymbolTable, loc diag.Location, bag *diag.Bag) (int, []byte, *instrtable.InstructionVariant, bool) {
	resolve := resolverFor(st)

	if mode == passSeed {
		forward := false
		for name := range operandRefs(body.Operands) {
			sym, found := st.Lookup(name)
			if !found || !sym.IsDefined {
				forward = true
				break
			}
		}
		if forward {
			v, found := encode.WidestShapeMatch(lk.Table, body.Mnemonic, body.Operands, lk.Options)
			if !found {
				bag.Errorf(diag.KindOperandOutOfRange, loc, "no instruction variant of %q accepts these operands", body.Mnemonic)
				return 0, nil, nil, false
			}
			return v.OpcodeSizeBits / 8, nil, &v, true
		}
	}

	res, trace := encode.Select(lk.Table, body.Mnemonic, body.Operands, addr, lk.Options, resolve)
	if res == nil {
		bag.Errorf(diag.KindOperandOutOfRange, loc, "%s", trace.String())
		return 0, nil, nil, false
	}
	v := res.Variant
	return v.OpcodeSizeBits / 8, res.Bytes, &v, true
}

// sizeTimes expands a repeated statement Count times, re-sizing and
// re-encoding the inner statement at each successive address — required
// for an inner instruction whose PC-relative encoding could otherwise
// differ from one repetition to the next, and harmless overhead for the
// far more common case of a repeated data or reserve directive.
func (lk *Linker) sizeTimes(i int, body ir.TimesBody, addr *big.Int, mode passMode, st *symtab.SymbolTable, bag *diag.Bag) (int, []byte, *instrtable.InstructionVariant, bool) {
	if body.Inner == nil || body.Count <= 0 {
		return 0, nil, nil, true
	}
	cursor := new(big.Int).Set(addr)
	var out []byte
	innerSize := 0
	for n := 0; n < body.Count; n++ {
		sz, data, _, ok := lk.sizeStatement(i, *body.Inner, cursor, mode, st, bag)
		if !ok {
			return 0, nil, nil, false
		}
		innerSize = sz
		out = append(out, data...)
		cursor = new(big.Int).Add(cursor, big.NewInt(int64(sz)))
	}
	return innerSize * body.Count, out, nil, true
}

// evalOperandValue resolves a constant-or-label operand with no
// diagnostic side effects, for callers (Data directive sizing during
// the seeding pass) that must tolerate a still-unresolved forward
// reference without reporting an error prematurely.
func evalOperandValue(op ir.Operand, resolve encode.ResolveFunc) (*big.Int, bool) {
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

// evalOperand is evalOperandValue with a reported diagnostic on
// failure, for contexts — .ORG, EQU, and the fixpoint-pass re-encoding
// of Data values — where an unresolved name is a genuine error rather
// than a pending forward reference.
func evalOperand(op ir.Operand, resolve encode.ResolveFunc, loc diag.Location, bag *diag.Bag) *big.Int {
	v, ok := evalOperandValue(op, resolve)
	if ok {
		return v
	}
	switch op.(type) {
	case ir.LabelRefOperand:
		bag.Errorf(diag.KindUnresolvedSymbol, loc, "undefined label %q", op)
	default:
		bag.Errorf(diag.KindInvalidOperand, loc, "expected a constant or label expression, got %s", op)
	}
	return nil
}

// packValue serialises v's low nBytes*8 bits in endian order. Unlike
// encode.WriteWord, which packs a uint32 instruction word, this also
// has to carry a DQ directive's full 64 bits.
func packValue(v *big.Int, nBytes int, endian encode.Endianness) []byte {
	bits := encode.EncodeBits(v, nBytes*8)
	out := make([]byte, nBytes)
	if endian == encode.BigEndian {
		for i := 0; i < nBytes; i++ {
			out[i] = byte(bits >> uint((nBytes-1-i)*8))
		}
		return out
	}
	for i := 0; i < nBytes; i++ {
		out[i] = byte(bits >> uint(i*8))
	}
	return out
}

// alignPad returns how many bytes addr must advance by to reach the
// next multiple of boundary (zero if already aligned or boundary <= 1).
func alignPad(addr *big.Int, boundary int) int {
	if boundary <= 1 {
		return 0
	}
	b := big.NewInt(int64(boundary))
	r := new(big.Int).Mod(addr, b)
	if r.Sign() == 0 {
		return 0
	}
	return int(new(big.Int).Sub(b, r).Int64())
}

func collectLabelRefs(op ir.Operand, out map[string]bool) {
	switch v := op.(type) {
	case ir.LabelRefOperand:
		out[v.Name] = true
	case ir.IndexedOperand:
		if v.Displacement != nil {
			collectLabelRefs(v.Displacement, out)
		}
	}
}

func operandRefs(ops []ir.Operand) map[string]bool {
	out := make(map[string]bool)
	for _, op := range ops {
		collectLabelRefs(op, out)
	}
	return out
}
