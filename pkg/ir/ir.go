// Package ir defines the canonical in-memory program representation that
// the line parser produces and every later pipeline stage consumes:
// Statement and Operand, the "CanonicalStatement stream" of spec.md's
// data-flow diagram. Operand kinds are modelled as a small interface
// with a discriminant method rather than one fat struct, so the encoder
// and emitters can exhaustively type-switch over them the way spec.md §9
// asks a systems-language rewrite to ("sum types with exhaustive
// matching in the encoder and emitters").
package ir

import (
	"fmt"
	"math/big"

	"github.com/aurixinino/TASM/pkg/diag"
)

// Bank identifies a register file. E and P share the even-indexed
// extended-register space (spec.md §3's "E/P are even-indexed only").
type Bank int

const (
	BankData Bank = iota
	BankAddress
	BankExtended
	BankPacked
)

func (b Bank) String() string {
	switch b {
	case BankData:
		return "D"
	case BankAddress:
		return "A"
	case BankExtended:
		return "E"
	case BankPacked:
		return "P"
	default:
		return fmt.Sprintf("Bank(%d)", int(b))
	}
}

// HighLow tags whether an immediate or label expression was prefixed
// with #HI: or #LO:, or carries its full value.
type HighLow int

const (
	HighLowNone HighLow = iota
	HighLowHi
	HighLowLo
)

// OperandKind discriminates the concrete type implementing Operand.
type OperandKind int

const (
	KindRegister OperandKind = iota
	KindImmediate
	KindLabelRef
	KindIndexed
	KindFixed
)

// Operand is any value that can fill an instruction's operand slot.
type Operand interface {
	Kind() OperandKind
	String() string
}

// RegisterOperand is a register reference, e.g. d4, [a15], or a
// post-incrementing [A[a]+] base.
type RegisterOperand struct {
	Bank          Bank
	Index         int
	Deref         bool // parsed as [d4] rather than d4
	PostIncrement bool // parsed as [A[a]+]
}

func (RegisterOperand) Kind() OperandKind { return KindRegister }
func (r RegisterOperand) String() string {
	s := fmt.Sprintf("%s%d", r.Bank, r.Index)
	if r.PostIncrement {
		s = "[" + s + "+]"
	} else if r.Deref {
		s = "[" + s + "]"
	}
	return s
}

// ImmediateOperand is a literal value, optionally split to its high or
// low half-word by a #HI:/#LO: prefix.
type ImmediateOperand struct {
	Value   *big.Int
	HighLow HighLow
}

func (ImmediateOperand) Kind() OperandKind { return KindImmediate }
func (i ImmediateOperand) String() string {
	switch i.HighLow {
	case HighLowHi:
		return "#HI:" + i.Value.String()
	case HighLowLo:
		return "#LO:" + i.Value.String()
	default:
		return "#" + i.Value.String()
	}
}

// Resolve folds a HighLow split into the final bits this operand
// contributes, given the already-evaluated full value.
func (i ImmediateOperand) Resolve() *big.Int {
	switch i.HighLow {
	case HighLowHi:
		hi := new(big.Int).Rsh(i.Value, 16)
		return hi.And(hi, big.NewInt(0xFFFF))
	case HighLowLo:
		return new(big.Int).And(i.Value, big.NewInt(0xFFFF))
	default:
		return i.Value
	}
}

// LabelRefOperand is a reference to a symbol, optionally offset by a
// constant (spec.md's Non-goals limit expressions to exactly this:
// one label plus a basic +off/-off addition).
type LabelRefOperand struct {
	Name    string
	Offset  *big.Int // nil means zero
	HighLow HighLow
}

func (LabelRefOperand) Kind() OperandKind { return KindLabelRef }
func (l LabelRefOperand) String() string {
	if l.Offset == nil || l.Offset.Sign() == 0 {
		return l.Name
	}
	if l.Offset.Sign() > 0 {
		return fmt.Sprintf("%s+%s", l.Name, l.Offset)
	}
	return fmt.Sprintf("%s%s", l.Name, l.Offset)
}

// Resolve combines the symbol's resolved address with the offset and
// HighLow split into the final integer this operand contributes.
func (l LabelRefOperand) Resolve(address *big.Int) *big.Int {
	v := new(big.Int).Set(address)
	if l.Offset != nil {
		v.Add(v, l.Offset)
	}
	switch l.HighLow {
	case HighLowHi:
		hi := new(big.Int).Rsh(v, 16)
		return hi.And(hi, big.NewInt(0xFFFF))
	case HighLowLo:
		return new(big.Int).And(v, big.NewInt(0xFFFF))
	default:
		return v
	}
}

// IndexedOperand is a memory reference built from a post-increment base
// register and a displacement, e.g. [a10+]14. A plain [a15]14 is not
// one: compound-operand splitting flattens it into a deref register and
// a separate displacement operand.
type IndexedOperand struct {
	Base          RegisterOperand
	Displacement  Operand // ImmediateOperand or LabelRefOperand
}

func (IndexedOperand) Kind() OperandKind { return KindIndexed }
func (i IndexedOperand) String() string {
	return fmt.Sprintf("[%s]%s", i.Base, i.Displacement)
}

// FixedOperand is a literal packed-suffix token such as LL, UU, LU, UL.
type FixedOperand struct {
	Token string
}

func (FixedOperand) Kind() OperandKind { return KindFixed }
func (f FixedOperand) String() string  { return f.Token }

// StatementKind discriminates the concrete type implementing StatementBody.
type StatementKind int

const (
	KindInstruction StatementKind = iota
	KindData
	KindReserve
	KindEquate
	KindTimes
	KindOrigin
	KindSection
	KindAlign
	KindGlobal
	KindInclude
)

// StatementBody is the exhaustively-matched payload of a Statement.
type StatementBody interface {
	StatementKind() StatementKind
}

type InstructionBody struct {
	Mnemonic string
	Operands []Operand
}

func (InstructionBody) StatementKind() StatementKind { return KindInstruction }

// DataDirective names which of DB/DW/DD/DQ produced a DataBody.
type DataDirective int

const (
	DataByte DataDirective = iota
	DataWord
	DataDword
	DataQword
)

// ElementSize returns the width in bytes of one value under this directive.
func (d DataDirective) ElementSize() int {
	switch d {
	case DataByte:
		return 1
	case DataWord:
		return 2
	case DataDword:
		return 4
	case DataQword:
		return 8
	default:
		return 1
	}
}

type DataBody struct {
	Directive DataDirective
	Values    []Operand // ImmediateOperand or LabelRefOperand per value
}

func (DataBody) StatementKind() StatementKind { return KindData }

type ReserveBody struct {
	Bytes int
}

func (ReserveBody) StatementKind() StatementKind { return KindReserve }

type EquateBody struct {
	Name  string
	Value Operand // ImmediateOperand or LabelRefOperand
}

func (EquateBody) StatementKind() StatementKind { return KindEquate }

type TimesBody struct {
	Count int
	Inner *Statement
}

func (TimesBody) StatementKind() StatementKind { return KindTimes }

type OriginBody struct {
	Address Operand
}

func (OriginBody) StatementKind() StatementKind { return KindOrigin }

type SectionBody struct {
	Name string
}

func (SectionBody) StatementKind() StatementKind { return KindSection }

type AlignBody struct {
	Boundary int
}

func (AlignBody) StatementKind() StatementKind { return KindAlign }

type GlobalBody struct {
	Name string
}

func (GlobalBody) StatementKind() StatementKind { return KindGlobal }

type IncludeBody struct {
	Path string
}

func (IncludeBody) StatementKind() StatementKind { return KindInclude }

// Statement is the canonical form of one source line after parsing.
type Statement struct {
	Label    string // empty if this line defines no symbol
	Body     StatementBody
	Location diag.Location
	Source   string // original source text, comment included, for the listing emitter
}
