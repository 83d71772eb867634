package symtab

import (
	"math/big"
	"strings"
	"testing"

	"github.com/aurixinino/TASM/pkg/diag"
)

func TestDefineAndLookup(t *testing.T) {
	tab := New()
	var bag diag.Bag
	tab.Define(Symbol{Name: "start", Address: big.NewInt(0x1000)}, &bag)
	if bag.HasFatal() {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	sym, ok := tab.Lookup("start")
	if !ok || sym.Address.Cmp(big.NewInt(0x1000)) != 0 {
		t.Fatalf("Lookup(start) = %+v, %v", sym, ok)
	}
}

func TestDefineDuplicateIsError(t *testing.T) {
	tab := New()
	var bag diag.Bag
	tab.Define(Symbol{Name: "loop", Address: big.NewInt(0x10)}, &bag)
	tab.Define(Symbol{Name: "loop", Address: big.NewInt(0x20)}, &bag)
	if !bag.HasFatal() {
		t.Fatal("expected a DuplicateSymbol diagnostic")
	}
	sym, _ := tab.Lookup("loop")
	if sym.Address.Cmp(big.NewInt(0x10)) != 0 {
		t.Fatalf("expected first definition to win, got %s", sym.Address)
	}
}

func TestResolveUndefinedIsError(t *testing.T) {
	tab := New()
	var bag diag.Bag
	v := tab.Resolve("missing", diag.Location{File: "a.s", Line: 3}, &bag)
	if v != nil || !bag.HasFatal() {
		t.Fatal("expected an UnresolvedSymbol diagnostic")
	}
}

func TestDeclareGlobalThenDefine(t *testing.T) {
	tab := New()
	var bag diag.Bag
	tab.DeclareGlobal("entry", diag.Location{})
	tab.Define(Symbol{Name: "entry", Address: big.NewInt(0x100), IsGlobal: true}, &bag)
	if bag.HasFatal() {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	sym, ok := tab.Lookup("entry")
	if !ok || !sym.IsGlobal || sym.Address.Cmp(big.NewInt(0x100)) != 0 {
		t.Fatalf("unexpected symbol: %+v", sym)
	}
}

func TestUpdateAddress(t *testing.T) {
	tab := New()
	var bag diag.Bag
	tab.Define(Symbol{Name: "x", Address: big.NewInt(1)}, &bag)
	tab.UpdateAddress("x", big.NewInt(99))
	sym, _ := tab.Lookup("x")
	if sym.Address.Cmp(big.NewInt(99)) != 0 {
		t.Fatalf("expected updated address 99, got %s", sym.Address)
	}
}

func TestAddressAssignments(t *testing.T) {
	tab := New()
	tab.EnsureAssignments(3)
	if tab.Len() != 3 {
		t.Fatalf("expected 3 assignments, got %d", tab.Len())
	}
	tab.SetAssignment(1, AddressAssignment{StartAddress: big.NewInt(0x10), EncodedSize: 4})
	got := tab.Assignment(1)
	if got.StartAddress.Cmp(big.NewInt(0x10)) != 0 || got.EncodedSize != 4 {
		t.Fatalf("unexpected assignment: %+v", got)
	}
}

func TestCheckOverlapsDetectsIntersection(t *testing.T) {
	tab := New()
	a := tab.OpenSection("a", big.NewInt(0x1000))
	b := tab.OpenSection("b", big.NewInt(0x1004))
	_ = b
	var bag diag.Bag
	tab.CheckOverlaps(func(s *Section) *big.Int {
		if s == a {
			return big.NewInt(8)
		}
		return big.NewInt(4)
	}, &bag)
	if !bag.HasFatal() {
		t.Fatal("expected an AddressOverlap diagnostic")
	}
}

func TestCheckOverlapsAllowsAdjacentSections(t *testing.T) {
	tab := New()
	a := tab.OpenSection("a", big.NewInt(0x1000))
	b := tab.OpenSection("b", big.NewInt(0x1008))
	_ = b
	var bag diag.Bag
	tab.CheckOverlaps(func(s *Section) *big.Int {
		if s == a {
			return big.NewInt(8)
		}
		return big.NewInt(4)
	}, &bag)
	if bag.HasFatal() {
		t.Fatalf("unexpected overlap diagnostics: %v", bag.Items())
	}
}

func TestSortedSymbolsOrderedByName(t *testing.T) {
	tab := New()
	var bag diag.Bag
	tab.Define(Symbol{Name: "zebra", Address: big.NewInt(1)}, &bag)
	tab.Define(Symbol{Name: "apple", Address: big.NewInt(2)}, &bag)
	sorted := tab.SortedSymbols()
	if len(sorted) != 2 || sorted[0].Name != "apple" || sorted[1].Name != "zebra" {
		t.Fatalf("unexpected order: %+v", sorted)
	}
}

func TestStringIncludesConstantAndScope(t *testing.T) {
	tab := New()
	var bag diag.Bag
	tab.Define(Symbol{Name: "N", Address: big.NewInt(42), IsConstant: true}, &bag)
	out := tab.String()
	if out == "" {
		t.Fatal("expected non-empty dump")
	}
	if !strings.Contains(out, "constant") || !strings.Contains(out, "local") {
		t.Fatalf("expected constant kind and local scope in dump, got %q", out)
	}
}
