package lineparse

import (
	"strconv"
	"strings"

	"github.com/aurixinino/TASM/pkg/ir"
)

// parseRegisterToken normalises one of the many vendor spellings of a
// register reference into an ir.RegisterOperand. All of d4, D4, d[4],
// D[4], %d4, %D4 and their bracketed counterparts [d4], [D4], [d[4]],
// [D[4]] resolve to the same canonical (bank, index), differing only in
// the Deref flag set when the outer brackets were present. A trailing
// "+" immediately before a closing outer bracket marks PostIncrement,
// e.g. [a10+].
func parseRegisterToken(token string) (ir.RegisterOperand, bool) {
	s := strings.TrimSpace(token)
	if s == "" {
		return ir.RegisterOperand{}, false
	}

	var reg ir.RegisterOperand
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		reg.Deref = true
		s = s[1 : len(s)-1]
		s = strings.TrimSpace(s)
		if strings.HasSuffix(s, "+") {
			reg.PostIncrement = true
			s = s[:len(s)-1]
		}
	}

	s = strings.ReplaceAll(s, "%", "")
	s = strings.TrimSpace(s)

	// Inner bracket form: D[4] / A[10].
	if idx := strings.IndexByte(s, '['); idx >= 0 && strings.HasSuffix(s, "]") {
		bankLetter := s[:idx]
		digits := s[idx+1 : len(s)-1]
		return finishRegister(reg, bankLetter, digits)
	}

	// Plain form: D4 / a10.
	if len(s) < 2 {
		return ir.RegisterOperand{}, false
	}
	return finishRegister(reg, s[:1], s[1:])
}

func finishRegister(reg ir.RegisterOperand, bankLetter, digits string) (ir.RegisterOperand, bool) {
	bank, ok := parseBank(bankLetter)
	if !ok {
		return ir.RegisterOperand{}, false
	}
	index, err := strconv.Atoi(digits)
	if err != nil || index < 0 || index > 15 {
		return ir.RegisterOperand{}, false
	}
	if (bank == ir.BankExtended || bank == ir.BankPacked) && index%2 != 0 {
		return ir.RegisterOperand{}, false
	}
	reg.Bank = bank
	reg.Index = index
	return reg, true
}

func parseBank(letter string) (ir.Bank, bool) {
	switch strings.ToUpper(letter) {
	case "D":
		return ir.BankData, true
	case "A":
		return ir.BankAddress, true
	case "E":
		return ir.BankExtended, true
	case "P":
		return ir.BankPacked, true
	default:
		return ir.Bank(0), false
	}
}
