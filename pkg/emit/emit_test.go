package emit

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/aurixinino/TASM/pkg/diag"
	"github.com/aurixinino/TASM/pkg/encode"
	"github.com/aurixinino/TASM/pkg/ir"
	"github.com/aurixinino/TASM/pkg/symtab"
)

func newProgram(addrs []int64, sizes []int, data [][]byte, endian encode.Endianness) *Program {
	stmts := make([]ir.Statement, len(addrs))
	assigns := make([]symtab.AddressAssignment, len(addrs))
	for i := range addrs {
		stmts[i] = ir.Statement{Location: diag.Location{File: "t.s", Line: i + 1}, Source: "; line"}
		assigns[i] = symtab.AddressAssignment{StartAddress: big.NewInt(addrs[i]), EncodedSize: sizes[i]}
	}
	return &Program{
		Statements:  stmts,
		Assignments: assigns,
		Bytes:       data,
		Symbols:     symtab.New(),
		Endian:      endian,
	}
}

// TestWriteHexMatchesSpecExample reproduces spec.md §4.6's bit-exact
// Intel HEX example: eight data bytes at 0x08000000 must render as
// exactly these three lines.
func TestWriteHexMatchesSpecExample(t *testing.T) {
	data := []byte{0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC, 0xDE, 0xF0}
	p := newProgram([]int64{0x08000000}, []int{8}, [][]byte{data}, encode.LittleEndian)
	got := WriteHex(p.Entries())
	want := ":020000040800F2\n:08000000123456789ABCDEF0C0\n:00000001FF\n"
	if got != want {
		t.Fatalf("hex mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestWriteHexEmptyProgram(t *testing.T) {
	got := WriteHex(nil)
	if got != ":00000001FF\n" {
		t.Fatalf("expected a bare EOF record for an empty program, got %q", got)
	}
}

func TestWriteBinPadsGapsWithZero(t *testing.T) {
	p := newProgram(
		[]int64{0, 8},
		[]int{4, 2},
		[][]byte{{0x01, 0x02, 0x03, 0x04}, {0xAA, 0xBB}},
		encode.LittleEndian,
	)
	got := WriteBin(p.Entries())
	want := []byte{0x01, 0x02, 0x03, 0x04, 0x00, 0x00, 0x00, 0x00, 0xAA, 0xBB}
	if string(got) != string(want) {
		t.Fatalf("got %x, want %x", got, want)
	}
}

// TestWriteTxtFormatsBigEndianWord mirrors spec.md §4.6's own example:
// a 16-bit word and a 32-bit word, each rendered as a single
// big-endian integer regardless of the target's actual byte order.
func TestWriteTxtFormatsBigEndianWord(t *testing.T) {
	p := newProgram(
		[]int64{0xA000, 0xA002},
		[]int{2, 4},
		[][]byte{{0x00, 0x80}, {0x34, 0x12, 0x00, 0xD4}},
		encode.LittleEndian,
	)
	got := WriteTxt(p.Entries(), p.Endian)
	want := "0000A000 8000\n0000A002 D4001234\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestWriteMapListsSymbolsSortedByName(t *testing.T) {
	st := symtab.New()
	bag := &diag.Bag{}
	st.Define(symtab.Symbol{Name: "zeta", Address: big.NewInt(0x100), Section: "CODE"}, bag)
	st.Define(symtab.Symbol{Name: "alpha", Address: big.NewInt(0x10), Section: "CODE", IsGlobal: true}, bag)
	p := &Program{Symbols: st}
	got := WriteMap(p)
	alphaIdx := indexOf(got, "alpha")
	zetaIdx := indexOf(got, "zeta")
	if alphaIdx < 0 || zetaIdx < 0 || alphaIdx > zetaIdx {
		t.Fatalf("expected alpha before zeta in map output, got:\n%s", got)
	}
	if !contains(got, "global") {
		t.Fatalf("expected global scope to appear for alpha, got:\n%s", got)
	}
}

func TestWriteListingPreservesSourceOrderAcrossOrigin(t *testing.T) {
	st := symtab.New()
	p := &Program{
		Statements: []ir.Statement{
			{Location: diag.Location{File: "t.s", Line: 1}, Source: "J top"},
			{Location: diag.Location{File: "t.s", Line: 2}, Source: ".ORG 0x9000"},
		},
		Assignments: []symtab.AddressAssignment{
			{StartAddress: big.NewInt(0x9000), EncodedSize: 2},
			{StartAddress: big.NewInt(0x9000), EncodedSize: 0},
		},
		Bytes:   [][]byte{{0x00, 0x3C}, nil},
		Symbols: st,
	}
	got := WriteListing(p)
	if indexOf(got, "J top") < 0 {
		t.Fatalf("expected source text to appear in listing:\n%s", got)
	}
	if indexOf(got, "J top") > indexOf(got, ".ORG 0x9000") {
		t.Fatalf("expected listing lines in source order:\n%s", got)
	}
}

func TestWriteAllAtomicPublish(t *testing.T) {
	dir := t.TempDir()
	p := newProgram([]int64{0}, []int{2}, [][]byte{{0x00, 0x3C}}, encode.LittleEndian)
	p.Symbols = symtab.New()
	out := filepath.Join(dir, "sub", "prog.bin")
	mapFile := filepath.Join(dir, "sub", "prog.map")
	if err := WriteAll(p, Options{Format: "bin", OutputFile: out, MapFile: mapFile}); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("expected output file: %v", err)
	}
	if _, err := os.Stat(mapFile); err != nil {
		t.Fatalf("expected map file: %v", err)
	}
	entries, _ := os.ReadDir(filepath.Join(dir, "sub"))
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("leftover temp file: %s", e.Name())
		}
	}
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func contains(s, sub string) bool {
	return indexOf(s, sub) >= 0
}
