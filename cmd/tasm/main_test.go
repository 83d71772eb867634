package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing fixture %s: %v", name, err)
	}
	return path
}

func runTasm(t *testing.T, args ...string) int {
	t.Helper()
	return run(args)
}

// TestNumericLiteralFormsAreEquivalent exercises spec.md §8's scenario
// 2: five spellings of the same byte value across hex, octal, binary,
// plain decimal and explicit-decimal prefixes must assemble to five
// identical bytes.
func TestNumericLiteralFormsAreEquivalent(t *testing.T) {
	dir := t.TempDir()
	table := writeFile(t, dir, "table.lines", "NOP|16|0x0000|NOP|0|\n")
	src := writeFile(t, dir, "lits.asm", "DB 0xAB, 0o253, 0b10101011, 171, 0d171\n")
	out := filepath.Join(dir, "lits.bin")

	code := runTasm(t, "-f", "bin", "-s", table, "-D", dir, "-o", out, src)
	if code != 0 {
		t.Fatalf("expected success, exit code %d", code)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	want := []byte{0xAB, 0xAB, 0xAB, 0xAB, 0xAB}
	if string(got) != string(want) {
		t.Fatalf("got %x, want %x", got, want)
	}
}

// TestIntelHexRoundTrip reproduces spec.md §4.6's literal HEX example
// end to end: an .ORG directive followed by eight data bytes.
func TestIntelHexRoundTrip(t *testing.T) {
	dir := t.TempDir()
	table := writeFile(t, dir, "table.lines", "NOP|16|0x0000|NOP|0|\n")
	src := writeFile(t, dir, "org.asm", ".ORG 0x08000000\nDB 0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC, 0xDE, 0xF0\n")
	out := filepath.Join(dir, "org.hex")

	code := runTasm(t, "-f", "hex", "-s", table, "-D", dir, "-o", out, src)
	if code != 0 {
		t.Fatalf("expected success, exit code %d", code)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	want := ":020000040800F2\n:08000000123456789ABCDEF0C0\n:00000001FF\n"
	if string(got) != want {
		t.Fatalf("hex mismatch:\ngot:  %q\nwant: %q", string(got), want)
	}
}

func jumpTablePath(t *testing.T, dir string) string {
	return writeFile(t, dir, "jumps.lines",
		"J|16|0x003C|J disp8|1|8,8,true,2\n"+
			"J|32|0x0000001D|J disp24|1|8,24,true,2\n"+
			"NOP|16|0x0000|NOP|0|\n")
}

// TestNearJumpSelects16Bit covers spec.md §8's scenario 4: a jump to a
// label one instruction away must fit the 8-bit displacement variant.
func TestNearJumpSelects16Bit(t *testing.T) {
	dir := t.TempDir()
	table := jumpTablePath(t, dir)
	src := writeFile(t, dir, "near.asm", "J done\ndone:\nNOP\n")
	out := filepath.Join(dir, "near.bin")

	code := runTasm(t, "-f", "bin", "-s", table, "-D", dir, "-o", out, src)
	if code != 0 {
		t.Fatalf("expected success, exit code %d", code)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected a 2-byte J plus a 2-byte NOP (4 bytes total), got %d bytes: %x", len(got), got)
	}
}

// TestFarJumpSelects32Bit covers spec.md §8's scenario 4's other half:
// a jump far enough away that the 8-bit displacement (scaled by two,
// range -256..254) cannot hold it must fall back to the 24-bit variant.
func TestFarJumpSelects32Bit(t *testing.T) {
	dir := t.TempDir()
	table := jumpTablePath(t, dir)
	var sb strings.Builder
	sb.WriteString("J done\n")
	for i := 0; i < 200; i++ {
		sb.WriteString("NOP\n")
	}
	sb.WriteString("done:\nNOP\n")
	src := writeFile(t, dir, "far.asm", sb.String())
	out := filepath.Join(dir, "far.bin")

	code := runTasm(t, "-f", "bin", "-s", table, "-D", dir, "-o", out, src)
	if code != 0 {
		t.Fatalf("expected success, exit code %d", code)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	want := 4 + 200*2 + 2 // 32-bit J, 200 NOPs, trailing NOP
	if len(got) != want {
		t.Fatalf("expected the far jump to encode 32-bit (total %d bytes), got %d", want, len(got))
	}
}

// TestMovSelectsSmallestImmediateVariant covers spec.md §8's scenario
// 5: an immediate that fits the 4-bit signed slot must prefer the
// 16-bit variant over the 32-bit one the table also offers, and an
// immediate too wide for that slot must fall through to 32-bit.
func TestMovSelectsSmallestImmediateVariant(t *testing.T) {
	dir := t.TempDir()
	table := writeFile(t, dir, "mov.lines",
		"MOV|16|0x003A|MOV D[c],const4|2|8,4,false,0;12,4,true,0\n"+
			"MOV|32|0x0000003B|MOV D[c],const16|2|8,4,false,0;16,16,true,0\n")

	small := writeFile(t, dir, "small.asm", "MOV D[0], 5\n")
	smallOut := filepath.Join(dir, "small.bin")
	if code := runTasm(t, "-f", "bin", "-s", table, "-D", dir, "-o", smallOut, small); code != 0 {
		t.Fatalf("expected success for the small immediate, exit code %d", code)
	}
	smallBytes, err := os.ReadFile(smallOut)
	if err != nil {
		t.Fatalf("reading small output: %v", err)
	}
	if len(smallBytes) != 2 {
		t.Fatalf("expected MOV D[0],5 to pick the 16-bit variant (2 bytes), got %d", len(smallBytes))
	}

	large := writeFile(t, dir, "large.asm", "MOV D[0], 1000\n")
	largeOut := filepath.Join(dir, "large.bin")
	if code := runTasm(t, "-f", "bin", "-s", table, "-D", dir, "-o", largeOut, large); code != 0 {
		t.Fatalf("expected success for the large immediate, exit code %d", code)
	}
	largeBytes, err := os.ReadFile(largeOut)
	if err != nil {
		t.Fatalf("reading large output: %v", err)
	}
	if len(largeBytes) != 4 {
		t.Fatalf("expected MOV D[0],1000 to require the 32-bit variant (4 bytes), got %d", len(largeBytes))
	}
}

// TestCompoundMemoryOperandTolerated covers spec.md §8's scenario 1: the
// vendor spelling "[A[b]]off4" with no separating comma between the
// bracketed base and its displacement must parse as two operands, not
// be rejected as malformed syntax.
func TestCompoundMemoryOperandTolerated(t *testing.T) {
	dir := t.TempDir()
	table := writeFile(t, dir, "ld.lines",
		"LD.W|32|0x29000000|LD.W D[c],[A[b]],off4|3|8,4,false,0;12,4,false,0;16,4,false,0\n")
	src := writeFile(t, dir, "compound.asm", "LD.W D[0],[A[4]]8\n")
	out := filepath.Join(dir, "compound.bin")

	code := runTasm(t, "-f", "bin", "-s", table, "-D", dir, "-o", out, src)
	if code != 0 {
		t.Fatalf("expected the compound operand to be tolerated, exit code %d", code)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected one 32-bit instruction word (4 bytes), got %d", len(got))
	}
}

// TestForwardLabelFixpointEndToEnd covers spec.md §8's scenario 6
// through the full driver, not just pkg/linker directly: two mutually
// forward-referencing jumps around a run of NOPs must still converge
// to a consistent layout and produce output.
func TestForwardLabelFixpointEndToEnd(t *testing.T) {
	dir := t.TempDir()
	table := jumpTablePath(t, dir)
	var sb strings.Builder
	sb.WriteString("top:\nJ bottom\n")
	for i := 0; i < 16; i++ {
		sb.WriteString("NOP\n")
	}
	sb.WriteString("bottom:\nJ top\n")
	src := writeFile(t, dir, "loop.asm", sb.String())
	out := filepath.Join(dir, "loop.bin")

	code := runTasm(t, "-f", "bin", "-s", table, "-D", dir, "-o", out, src)
	if code != 0 {
		t.Fatalf("expected the fixpoint to converge, exit code %d", code)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	min := 2 + 16*2 + 2
	max := 4 + 16*2 + 4
	if len(got) < min || len(got) > max {
		t.Fatalf("expected total size in [%d,%d] depending on which jump sizes converged, got %d", min, max, len(got))
	}
}
