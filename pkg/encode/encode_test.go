package encode

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/aurixinino/TASM/pkg/instrtable"
	"github.com/aurixinino/TASM/pkg/ir"
)

func TestEncodeDecodeSignedRoundTrip(t *testing.T) {
	d := big.NewInt(-5)
	bits := EncodeBits(d, 4)
	got := DecodeSigned(bits, 4)
	if got.Cmp(d) != 0 {
		t.Fatalf("round trip: got %s, want %s", got, d)
	}
}

func TestEncodeDecodeUnsignedRoundTrip(t *testing.T) {
	d := big.NewInt(9)
	bits := EncodeBits(d, 4)
	got := DecodeUnsigned(bits, 4)
	if got.Cmp(d) != 0 {
		t.Fatalf("round trip: got %s, want %s", got, d)
	}
}

func TestFitsWidthSignedBoundaries(t *testing.T) {
	if !FitsWidth(big.NewInt(-8), 4, true) {
		t.Error("expected -8 to fit signed width 4")
	}
	if FitsWidth(big.NewInt(-9), 4, true) {
		t.Error("expected -9 not to fit signed width 4")
	}
	if !FitsWidth(big.NewInt(7), 4, true) {
		t.Error("expected 7 to fit signed width 4")
	}
	if FitsWidth(big.NewInt(8), 4, true) {
		t.Error("expected 8 not to fit signed width 4")
	}
}

func TestFitsWidthUnsignedBoundaries(t *testing.T) {
	if !FitsWidth(big.NewInt(15), 4, false) {
		t.Error("expected 15 to fit unsigned width 4")
	}
	if FitsWidth(big.NewInt(16), 4, false) {
		t.Error("expected 16 not to fit unsigned width 4")
	}
	if FitsWidth(big.NewInt(-1), 4, false) {
		t.Error("expected -1 not to fit unsigned width 4")
	}
}

func TestWriteWordLittleEndian16(t *testing.T) {
	got := WriteWord(0xABCD, 16, LittleEndian)
	want := []byte{0xCD, 0xAB}
	if string(got) != string(want) {
		t.Fatalf("got %x, want %x", got, want)
	}
}

func TestWriteWordBigEndian32(t *testing.T) {
	got := WriteWord(0x01020304, 32, BigEndian)
	want := []byte{0x01, 0x02, 0x03, 0x04}
	if string(got) != string(want) {
		t.Fatalf("got %x, want %x", got, want)
	}
}

func TestWriteWordLittleEndian32(t *testing.T) {
	got := WriteWord(0x01020304, 32, LittleEndian)
	want := []byte{0x04, 0x03, 0x02, 0x01}
	if string(got) != string(want) {
		t.Fatalf("got %x, want %x", got, want)
	}
}

func noResolve(string) (*big.Int, bool) { return nil, false }

// loadLinesFixture writes the given pipe-delimited rows to a temp file
// and loads them through the real instrtable.LoadLines parser, so
// these tests exercise the same loader the rest of the pipeline uses
// rather than hand-building InstructionVariant values.
func loadLinesFixture(t *testing.T, lines ...string) *instrtable.InstructionTable {
	t.Helper()
	path := filepath.Join(t.TempDir(), "table.lines")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	table, errs := instrtable.LoadLines(path)
	if len(errs) != 0 {
		t.Fatalf("loading fixture: %v", errs)
	}
	return table
}

func twoRegisterTable(t *testing.T) *instrtable.InstructionTable {
	return loadLinesFixture(t, "ABS|32|0x1B1A0001|ABS D[c],D[b]|2|8,4,false,0;12,4,false,0")
}

func TestSelectMatchesRegisterRegister(t *testing.T) {
	table := twoRegisterTable(t)
	ops := []ir.Operand{
		ir.RegisterOperand{Bank: ir.BankData, Index: 3},
		ir.RegisterOperand{Bank: ir.BankData, Index: 5},
	}
	res, trace := Select(table, "ABS", ops, big.NewInt(0), Options{}, noResolve)
	if res == nil {
		t.Fatalf("expected a match, got trace: %s", trace)
	}
	want := uint32(0x1B1A0001) | (3 << 8) | (5 << 12)
	if res.Word != want {
		t.Fatalf("got word %#x, want %#x", res.Word, want)
	}
}

func TestSelectRejectsArityMismatch(t *testing.T) {
	table := twoRegisterTable(t)
	ops := []ir.Operand{ir.RegisterOperand{Bank: ir.BankData, Index: 3}}
	res, trace := Select(table, "ABS", ops, big.NewInt(0), Options{}, noResolve)
	if res != nil {
		t.Fatal("expected no match for wrong arity")
	}
	if len(trace.Rejections) != 0 {
		t.Fatalf("arity elimination happens before per-variant rejections are recorded, got %v", trace.Rejections)
	}
}

func TestSelectRejectsBankMismatch(t *testing.T) {
	table := twoRegisterTable(t)
	ops := []ir.Operand{
		ir.RegisterOperand{Bank: ir.BankAddress, Index: 3},
		ir.RegisterOperand{Bank: ir.BankData, Index: 5},
	}
	res, trace := Select(table, "ABS", ops, big.NewInt(0), Options{}, noResolve)
	if res != nil {
		t.Fatal("expected no match for bank mismatch")
	}
	if len(trace.Rejections) != 1 {
		t.Fatalf("expected one rejection, got %v", trace.Rejections)
	}
}

func sizePreferenceTable(t *testing.T) *instrtable.InstructionTable {
	return loadLinesFixture(t,
		"J|16|0x003C|J disp8|1|8,8,true,2",
		"J|32|0x0000001D|J disp24|1|8,24,true,2",
	)
}

func TestSelectPrefersSmallerVariantWhenItFits(t *testing.T) {
	table := sizePreferenceTable(t)
	ops := []ir.Operand{ir.ImmediateOperand{Value: big.NewInt(20)}}
	res, trace := Select(table, "J", ops, big.NewInt(0), Options{}, noResolve)
	if res == nil {
		t.Fatalf("expected a match, got trace: %s", trace)
	}
	if res.Variant.OpcodeSizeBits != 16 {
		t.Fatalf("expected the 16-bit variant to win, got %d bits", res.Variant.OpcodeSizeBits)
	}
}

func TestSelectFallsBackToLargerVariantWhenSmallDoesNotFit(t *testing.T) {
	table := sizePreferenceTable(t)
	// out of signed-8-bit*2 range (-256..254 step 2) but within 24-bit range.
	ops := []ir.Operand{ir.ImmediateOperand{Value: big.NewInt(1000)}}
	res, trace := Select(table, "J", ops, big.NewInt(0), Options{}, noResolve)
	if res == nil {
		t.Fatalf("expected a match, got trace: %s", trace)
	}
	if res.Variant.OpcodeSizeBits != 32 {
		t.Fatalf("expected the 32-bit variant to win, got %d bits", res.Variant.OpcodeSizeBits)
	}
}

func TestSelectForce32ExcludesSixteenBitVariant(t *testing.T) {
	table := sizePreferenceTable(t)
	ops := []ir.Operand{ir.ImmediateOperand{Value: big.NewInt(20)}}
	res, trace := Select(table, "J", ops, big.NewInt(0), Options{Force32: true}, noResolve)
	if res == nil {
		t.Fatalf("expected a match, got trace: %s", trace)
	}
	if res.Variant.OpcodeSizeBits != 32 {
		t.Fatalf("expected force32 to pick the 32-bit variant, got %d bits", res.Variant.OpcodeSizeBits)
	}
}

func TestSelectRejectsUnscaledPCRelativeDisplacement(t *testing.T) {
	table := sizePreferenceTable(t)
	ops := []ir.Operand{ir.ImmediateOperand{Value: big.NewInt(21)}} // odd: fails /2 scale on both variants
	res, trace := Select(table, "J", ops, big.NewInt(0), Options{}, noResolve)
	if res != nil {
		t.Fatal("expected no match for an odd PC-relative displacement")
	}
	if len(trace.Rejections) != 2 {
		t.Fatalf("expected both variants rejected for scale, got %v", trace.Rejections)
	}
}

func memoryOffsetTable(t *testing.T) *instrtable.InstructionTable {
	return loadLinesFixture(t,
		"LD.W|32|0x1D000001|LD.W D[c],[A[b]]|2|8,4,false,0;12,4,false,1",
		"LD.W|32|0x1D000002|LD.W D[c],[A[b]+]|2|8,4,false,0;12,4,false,1",
	)
}

func TestSelectDistinguishesPostIncrementMemoryOperand(t *testing.T) {
	table := memoryOffsetTable(t)
	ops := []ir.Operand{
		ir.RegisterOperand{Bank: ir.BankData, Index: 2},
		ir.IndexedOperand{
			Base:         ir.RegisterOperand{Bank: ir.BankAddress, Index: 4, PostIncrement: true},
			Displacement: ir.ImmediateOperand{Value: big.NewInt(8)},
		},
	}
	res, trace := Select(table, "LD.W", ops, big.NewInt(0), Options{}, noResolve)
	if res == nil {
		t.Fatalf("expected a match, got trace: %s", trace)
	}
	if res.Variant.BaseOpcode != 0x1D000002 {
		t.Fatalf("expected the post-increment variant to be chosen, got base opcode %#x", res.Variant.BaseOpcode)
	}
}

func TestSelectResolvesLabelReference(t *testing.T) {
	table := sizePreferenceTable(t)
	resolve := func(name string) (*big.Int, bool) {
		if name == "loop" {
			return big.NewInt(16), true
		}
		return nil, false
	}
	ops := []ir.Operand{ir.LabelRefOperand{Name: "loop"}}
	res, trace := Select(table, "J", ops, big.NewInt(0), Options{}, resolve)
	if res == nil {
		t.Fatalf("expected a match, got trace: %s", trace)
	}
	if res.Variant.OpcodeSizeBits != 16 {
		t.Fatalf("expected 16 bits for a small resolved displacement, got %d", res.Variant.OpcodeSizeBits)
	}
}

func TestSelectSubtractsPCFromLabelTarget(t *testing.T) {
	table := sizePreferenceTable(t)
	resolve := func(name string) (*big.Int, bool) {
		if name == "loop" {
			return big.NewInt(1000), true
		}
		return nil, false
	}
	ops := []ir.Operand{ir.LabelRefOperand{Name: "loop"}}
	// pc=984: delta is 16, well within the 16-bit variant's range, even
	// though the label's absolute address (1000) would overflow it.
	res, trace := Select(table, "J", ops, big.NewInt(984), Options{}, resolve)
	if res == nil {
		t.Fatalf("expected a match, got trace: %s", trace)
	}
	if res.Variant.OpcodeSizeBits != 16 {
		t.Fatalf("expected pc-relative delta to pick the 16-bit variant, got %d bits", res.Variant.OpcodeSizeBits)
	}
}

func TestWidestShapeMatchPrefersLargerVariantForUnresolvedLabel(t *testing.T) {
	table := sizePreferenceTable(t)
	ops := []ir.Operand{ir.LabelRefOperand{Name: "forward"}}
	variant, ok := WidestShapeMatch(table, "J", ops, Options{})
	if !ok {
		t.Fatal("expected a shape-compatible variant")
	}
	if variant.OpcodeSizeBits != 32 {
		t.Fatalf("expected the 32-bit variant as the safety margin, got %d", variant.OpcodeSizeBits)
	}
}

func TestWidestShapeMatchHonoursForce32(t *testing.T) {
	table := sizePreferenceTable(t)
	ops := []ir.Operand{ir.LabelRefOperand{Name: "forward"}}
	variant, ok := WidestShapeMatch(table, "J", ops, Options{Force32: true})
	if !ok || variant.OpcodeSizeBits != 32 {
		t.Fatalf("expected the 32-bit variant, got %+v ok=%v", variant, ok)
	}
}

func TestSelectUnresolvedLabelIsRejected(t *testing.T) {
	table := sizePreferenceTable(t)
	ops := []ir.Operand{ir.LabelRefOperand{Name: "missing"}}
	res, trace := Select(table, "J", ops, big.NewInt(0), Options{}, noResolve)
	if res != nil {
		t.Fatal("expected no match for an unresolved label")
	}
	if len(trace.Rejections) != 2 {
		t.Fatalf("expected both variants rejected for shape mismatch, got %v", trace.Rejections)
	}
}
