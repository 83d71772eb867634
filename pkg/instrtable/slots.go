package instrtable

import (
	"fmt"
	"strconv"
	"strings"
)

// buildSlot turns one syntax token ("D[c]", "[A[15]]", "disp4", "LL", ...)
// plus its (pos, len, signed, scale) column into a SlotSpec, applying
// spec.md §3's richer slot taxonomy on top of the register/immediate
// split original_source/instruction_loader.py's syntax_operand_types
// recognises.
func buildSlot(token string, col rawOpColumn) (SlotSpec, error) {
	kind, bank, fixedIndex, fixedToken, postIncrement := classifySlot(token)

	switch kind {
	case SlotLiteralRegister:
		if col.Len != 0 {
			return SlotSpec{}, fmt.Errorf("implicit register operand %q must have bit length 0, got %d", token, col.Len)
		}
		return SlotSpec{Kind: SlotLiteralRegister, BitPos: col.Pos, FixedBank: bank, FixedIndex: fixedIndex}, nil

	case SlotFixed:
		return SlotSpec{Kind: SlotFixed, BitPos: col.Pos, BitLen: col.Len, FixedToken: fixedToken}, nil

	case SlotRegisterD, SlotRegisterA, SlotRegisterE, SlotRegisterP:
		return SlotSpec{Kind: kind, BitPos: col.Pos, BitLen: col.Len}, nil

	case SlotPCRelative:
		return SlotSpec{Kind: SlotPCRelative, BitPos: col.Pos, BitLen: col.Len, Signed: true, Scale: 2}, nil

	case SlotBitPosition:
		return SlotSpec{Kind: SlotBitPosition, BitPos: col.Pos, BitLen: col.Len}, nil

	case SlotMemoryOffset:
		return SlotSpec{Kind: SlotMemoryOffset, BitPos: col.Pos, BitLen: col.Len, Signed: col.Signed, PostIncrement: postIncrement}, nil

	default: // generic immediate: signedness comes from the row's own column
		scale := col.Scale
		if scale == 0 {
			scale = 1
		}
		if col.Signed {
			return SlotSpec{Kind: SlotImmediateSigned, BitPos: col.Pos, BitLen: col.Len, Signed: true, Scale: scale}, nil
		}
		return SlotSpec{Kind: SlotImmediateUnsigned, BitPos: col.Pos, BitLen: col.Len, Scale: scale}, nil
	}
}

// classifySlot derives a SlotKind (plus, for register forms, the bank
// letter and — if the register is a specific implicit index rather
// than a variable placeholder letter — that index) from one syntax
// token. Returns SlotImmediateUnsigned as a sentinel "generic
// immediate" bucket for anything that isn't a recognised register,
// memory, displacement, bit-position, or fixed-suffix spelling; the
// caller resolves that sentinel's actual signedness from the row's own
// signed column.
func classifySlot(token string) (kind SlotKind, bank string, fixedIndex int, fixedToken string, postIncrement bool) {
	token = strings.TrimSpace(token)
	upper := strings.ToUpper(token)

	// Memory operand: one extra layer of brackets around a register,
	// e.g. "[A[15]]" (implicit base), "[A[b]]" (variable base), or
	// "[A[b]+]" (post-increment addressing).
	if strings.HasPrefix(token, "[") && strings.HasSuffix(token, "]") {
		inner := token[1 : len(token)-1]
		post := strings.HasSuffix(inner, "+")
		if post {
			inner = inner[:len(inner)-1]
		}
		if b, idx, specific := parseBankBracket(inner); b != "" {
			if specific {
				return SlotLiteralRegister, b, idx, "", post
			}
			return SlotMemoryOffset, b, 0, "", post
		}
	}

	// Plain register operand: "D[c]" (variable) or "D[15]" (specific).
	if b, idx, specific := parseBankBracket(token); b != "" {
		if specific {
			return SlotLiteralRegister, b, idx, "", false
		}
		return bankToRegisterKind(b), b, 0, "", false
	}

	switch upper {
	case "LL", "UU", "UL", "LU", "L", "U":
		return SlotFixed, "", 0, upper, false
	}

	if strings.HasPrefix(upper, "DISP") {
		return SlotPCRelative, "", 0, "", false
	}
	if strings.Contains(upper, "POS") {
		return SlotBitPosition, "", 0, "", false
	}

	return SlotImmediateUnsigned, "", 0, "", false
}

// parseBankBracket recognises a "<bank>[<index>]" register spelling,
// where <bank> is one of D/A/E/P and <index> is either a decimal digit
// sequence (a specific, implicit register — specific is true) or a
// variable placeholder letter like "a"/"b"/"c" (specific is false).
func parseBankBracket(token string) (bank string, index int, specific bool) {
	upper := strings.ToUpper(strings.TrimSpace(token))
	if len(upper) < 4 {
		return "", 0, false
	}
	switch upper[0] {
	case 'D', 'A', 'E', 'P':
	default:
		return "", 0, false
	}
	if upper[1] != '[' || !strings.HasSuffix(upper, "]") {
		return "", 0, false
	}
	bank = string(upper[0])
	inner := upper[2 : len(upper)-1]
	if n, err := strconv.Atoi(inner); err == nil {
		return bank, n, true
	}
	return bank, 0, false
}

func bankToRegisterKind(bank string) SlotKind {
	switch bank {
	case "D":
		return SlotRegisterD
	case "A":
		return SlotRegisterA
	case "E":
		return SlotRegisterE
	case "P":
		return SlotRegisterP
	default:
		return SlotImmediateUnsigned
	}
}
