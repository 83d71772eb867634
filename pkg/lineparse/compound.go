package lineparse

import "strings"

// splitCompoundOperands is the second-stage micro-pass over the token
// vector produced by splitting an operand list on top-level commas. A
// field of the form "[<reg>]<disp>" is split into two tokens "<reg>"
// and "<disp>"; a bare "[<reg>]" with nothing trailing is left alone,
// since that is just a dereferenced register operand. This single rule
// covers every documented compound form — [a15]14,d1 / d15,[a5]18 /
// [a15]2,d15 / d15,[a2]6 — because each is first split on commas into
// independent fields and this pass inspects one field at a time.
//
// Nested brackets are tracked so a base such as "[A[4]]8" is cut after
// the outer "]" rather than at the inner one. A post-increment spelling
// such as "[A[10]+]14" is not split at all; the parser turns the whole
// field into one Indexed operand. The pass is idempotent: a bracketed
// half has nothing trailing it and a displacement half does not begin
// with "[", so neither is split again.
func splitCompoundOperands(fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		trimmed := strings.TrimSpace(f)
		bracketed, rest, ok := splitLeadingBracket(trimmed)
		if !ok || rest == "" {
			out = append(out, f)
			continue
		}
		// A post-increment base ("[A[10]+]14") stays whole: the base
		// and its displacement are one Indexed operand, not two flat
		// ones, because the post-increment side effect binds them.
		inner := strings.TrimSpace(bracketed[1 : len(bracketed)-1])
		if strings.HasSuffix(inner, "+") {
			out = append(out, f)
			continue
		}
		out = append(out, bracketed, rest)
	}
	return out
}

// splitLeadingBracket reports whether s begins with a bracketed group
// and, if so, returns the bracketed substring (including both outer
// brackets) and whatever trails it.
func splitLeadingBracket(s string) (bracketed, rest string, ok bool) {
	if !strings.HasPrefix(s, "[") {
		return "", "", false
	}
	depth := 0
	for i, r := range s {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[:i+1], s[i+1:], true
			}
		}
	}
	return "", "", false
}
