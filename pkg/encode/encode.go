// Package encode turns one canonical Statement operand list into the
// concrete instruction word spec.md §4.4 describes: picking the right
// InstructionVariant and packing its slots into a single integer the
// way pkg/cpu.EncodeInstruction shifts and ORs a register triple into
// one word, generalised from a fixed three-register layout to the
// table-driven SlotSpec layout pkg/instrtable loads.
package encode

import "math/big"

// Endianness selects the byte order of an emitted instruction word.
// 32-bit instructions are written as two 16-bit half-words; the
// half-word order follows the same choice, so a little-endian target
// still writes its low half-word first (ordinary little-endian 32-bit
// storage), matching spec.md §4.6's note on half-word ordering.
type Endianness int

const (
	LittleEndian Endianness = iota
	BigEndian
)

func (e Endianness) String() string {
	if e == BigEndian {
		return "big"
	}
	return "little"
}

// Options carries the optimisation flags spec.md §4.4 applies during
// variant selection, plus the byte order for the final word.
type Options struct {
	Force32    bool // -O32: never choose a 16-bit variant
	NoImplicit bool // -Ono-implicit: never choose an implicit-register variant
	Endian     Endianness
}

// ResolveFunc resolves a label reference to its plain address. Select
// applies whatever further arithmetic a slot needs (PC-relative delta,
// HI:/LO: split, a constant offset) on top of that address, so the
// same resolve closure serves both an absolute-addressing use of a
// label and a PC-relative jump target. Keeping this to a name lookup
// is what keeps the package free of any dependency on pkg/symtab.
type ResolveFunc func(name string) (*big.Int, bool)

func maskOf(width int) uint64 {
	if width <= 0 {
		return 0
	}
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(width)) - 1
}

// FitsWidth reports whether d can be represented in width bits of the
// requested signedness, per spec.md §4.4's fit rule.
func FitsWidth(d *big.Int, width int, signed bool) bool {
	if width <= 0 {
		return d.Sign() == 0
	}
	var lo, hi big.Int
	if signed {
		lo.Lsh(big.NewInt(1), uint(width-1))
		lo.Neg(&lo)
		hi.Lsh(big.NewInt(1), uint(width-1))
		hi.Sub(&hi, big.NewInt(1))
	} else {
		hi.Lsh(big.NewInt(1), uint(width))
		hi.Sub(&hi, big.NewInt(1))
	}
	return d.Cmp(&lo) >= 0 && d.Cmp(&hi) <= 0
}

// EncodeBits returns the low width bits of d's two's-complement
// representation, ready to be shifted into an instruction word.
// math/big's bitwise And treats a negative operand as an
// infinite-precision two's-complement value, so this works for signed
// and unsigned inputs alike without a separate negative-number branch.
func EncodeBits(d *big.Int, width int) uint64 {
	m := new(big.Int).And(d, new(big.Int).SetUint64(maskOf(width)))
	return m.Uint64()
}

// DecodeSigned sign-extends the low width bits of bits.
func DecodeSigned(bits uint64, width int) *big.Int {
	v := new(big.Int).SetUint64(bits & maskOf(width))
	if width > 0 && bits&(uint64(1)<<uint(width-1)) != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), uint(width)))
	}
	return v
}

// DecodeUnsigned returns the low width bits of bits as a non-negative value.
func DecodeUnsigned(bits uint64, width int) *big.Int {
	return new(big.Int).SetUint64(bits & maskOf(width))
}

// WriteWord serialises word's low sizeBits bits in the requested byte
// order: 2 bytes for a 16-bit instruction, 4 for a 32-bit one.
func WriteWord(word uint32, sizeBits int, endian Endianness) []byte {
	n := sizeBits / 8
	out := make([]byte, n)
	switch endian {
	case BigEndian:
		for i := 0; i < n; i++ {
			shift := uint((n - 1 - i) * 8)
			out[i] = byte(word >> shift)
		}
	default:
		for i := 0; i < n; i++ {
			out[i] = byte(word >> uint(i*8))
		}
	}
	return out
}
