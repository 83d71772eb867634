package preprocess

import (
	"strings"

	"github.com/aurixinino/TASM/pkg/diag"
)

// expandLine repeatedly re-expands line until a pass produces no
// further change or the depth bound is hit, mirroring macro.py's
// _expand_line_recursive. Returns the final text and counter.
func expandLine(line string, env Env, counter, depth int, loc diag.Location, bag *diag.Bag) (string, int) {
	if depth > maxExpansionDepth {
		bag.Errorf(diag.KindPreprocessError, loc, "maximum macro expansion depth (%d) exceeded", maxExpansionDepth)
		return line, counter
	}
	expanded, newCounter, changed := expandOnePass(line, env, counter, loc, bag)
	if changed {
		return expandLine(expanded, env, newCounter, depth+1, loc, bag)
	}
	return expanded, newCounter
}

// expandOnePass scans line once, replacing every recognised macro
// call with its expansion. String/char literals are passed through
// untouched, matching pkg/compiler/preprocessor.go's applyDefines.
func expandOnePass(line string, env Env, counter int, loc diag.Location, bag *diag.Bag) (string, int, bool) {
	var out strings.Builder
	n := len(line)
	i := 0
	changed := false

	for i < n {
		c := line[i]
		switch {
		case c == '"' || c == '\'':
			j := skipLiteral(line, i)
			out.WriteString(line[i:j])
			i = j

		case isIdentStart(rune(c)):
			start := i
			for i < n && isIdentPart(rune(line[i])) {
				i++
			}
			word := line[start:i]
			macro, ok := env.lookup(word)
			if !ok {
				out.WriteString(word)
				continue
			}
			if macro.Params != nil {
				// Function-like: only expands when immediately followed
				// (modulo whitespace) by '('.
				j := i
				for j < n && (line[j] == ' ' || line[j] == '\t') {
					j++
				}
				if j >= n || line[j] != '(' {
					out.WriteString(word)
					continue
				}
				args, end, ok := parseCallArgs(line, j)
				if !ok {
					bag.Errorf(diag.KindPreprocessError, loc, "missing closing parenthesis for macro call %q", word)
					out.WriteString(word)
					continue
				}
				if len(args) != len(macro.Params) {
					bag.Errorf(diag.KindPreprocessError, loc, "macro %q expects %d arguments, got %d", word, len(macro.Params), len(args))
					out.WriteString(word)
					i = end
					continue
				}
				body := substituteParams(macro.Body, macro.Params, args)
				counter++
				body = replaceSpecialTokens(body, counter)
				body = pasteTokens(body)
				out.WriteString(body)
				i = end
				changed = true
			} else {
				body := macro.Body
				if strings.Contains(body, "__COUNTER__") || strings.Contains(body, "__UNIQUE__") {
					counter++
					body = replaceSpecialTokens(body, counter)
				}
				body = pasteTokens(body)
				out.WriteString(body)
				changed = true
			}

		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String(), counter, changed
}

// skipLiteral returns the index just past the quoted literal starting
// at i (line[i] is the opening quote), honouring backslash escapes.
func skipLiteral(line string, i int) int {
	quote := line[i]
	j := i + 1
	for j < len(line) {
		if line[j] == '\\' && j+1 < len(line) {
			j += 2
			continue
		}
		if line[j] == quote {
			j++
			break
		}
		j++
	}
	return j
}

// parseCallArgs parses a parenthesised, comma-separated argument list
// starting at the '(' found at index open, respecting nested
// parentheses and quoted literals. Returns the parsed arguments and
// the index just past the matching ')'.
func parseCallArgs(line string, open int) ([]string, int, bool) {
	i := open + 1
	depth := 1
	var args []string
	var cur strings.Builder
	for i < len(line) && depth > 0 {
		c := line[i]
		switch {
		case c == '"' || c == '\'':
			j := skipLiteral(line, i)
			cur.WriteString(line[i:j])
			i = j
			continue
		case c == '(':
			depth++
			cur.WriteByte(c)
		case c == ')':
			depth--
			if depth > 0 {
				cur.WriteByte(c)
			}
		case c == ',' && depth == 1:
			args = append(args, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
		i++
	}
	if depth != 0 {
		return nil, i, false
	}
	if trailing := strings.TrimSpace(cur.String()); trailing != "" || len(args) > 0 {
		args = append(args, trailing)
	}
	return args, i, true
}

// substituteParams replaces each parameter name in body with its
// corresponding argument text, whole-word only, in one expandOnePass
// over body with every parameter bound at once, so substituted text
// is never re-substituted by a later parameter's own name.
func substituteParams(body string, params, args []string) string {
	env := NewEnv()
	for i, p := range params {
		env.define(p, Macro{Body: args[i]})
	}
	expanded, _, _ := expandOnePass(body, env, 0, diag.Location{}, &diag.Bag{})
	return expanded
}

func replaceSpecialTokens(text string, counter int) string {
	n := formatInt(counter)
	text = strings.ReplaceAll(text, "__COUNTER__", n)
	text = strings.ReplaceAll(text, "__UNIQUE__", n)
	return text
}

func formatInt(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// pasteTokens implements the ## operator: the non-whitespace,
// non-delimiter run immediately adjacent on each side of "##" is
// merged into one token, then sanitised to a legal identifier
// character set (non-identifier characters become '_') — the
// rewrite-time policy spec.md §9's Open Questions section calls for
// when concatenated arguments contain characters like '#' or '-'.
func pasteTokens(s string) string {
	for {
		idx := strings.Index(s, "##")
		if idx < 0 {
			break
		}
		li := idx
		for li > 0 && (s[li-1] == ' ' || s[li-1] == '\t') {
			li--
		}
		ri := idx + 2
		for ri < len(s) && (s[ri] == ' ' || s[ri] == '\t') {
			ri++
		}
		tokenStart := spanLeft(s, li)
		tokenEnd := spanRight(s, ri)

		left := s[tokenStart:li]
		right := s[ri:tokenEnd]
		merged := sanitizeIdent(left + right)
		s = s[:tokenStart] + merged + s[tokenEnd:]
	}
	return s
}

func spanLeft(s string, end int) int {
	i := end
	for i > 0 && !isPasteBoundary(s[i-1]) {
		i--
	}
	return i
}

func spanRight(s string, start int) int {
	i := start
	for i < len(s) && !isPasteBoundary(s[i]) {
		i++
	}
	return i
}

func isPasteBoundary(c byte) bool {
	return c == ' ' || c == '\t' || c == ',' || c == '(' || c == ')' || c == '|'
}

func sanitizeIdent(tok string) string {
	var sb strings.Builder
	for _, r := range tok {
		if isIdentPart(r) || r == '.' {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

func isIdentStart(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_' || r == '.'
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}
