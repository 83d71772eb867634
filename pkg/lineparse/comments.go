package lineparse

import "strings"

// StripBlockComments removes every "/* ... */" and ";/* ... */" span from
// whole-file source text, before the file is split into lines. It tracks
// quote state across the scan so that a "/*" inside a string literal is
// never mistaken for a comment opener. Unterminated block comments run
// to end of file, matching the teacher's line-comment tolerance of
// "whatever is left over is discarded" rather than erroring.
func StripBlockComments(source string) string {
	runes := []rune(source)
	var out []rune
	inQuote := false
	var quoteRune rune
	i := 0
	for i < len(runes) {
		r := runes[i]
		if inQuote {
			out = append(out, r)
			if r == quoteRune {
				inQuote = false
			}
			i++
			continue
		}
		if r == '\'' || r == '"' {
			inQuote = true
			quoteRune = r
			out = append(out, r)
			i++
			continue
		}
		if r == '/' && i+1 < len(runes) && runes[i+1] == '*' {
			i = skipBlockComment(runes, i+2)
			continue
		}
		if r == ';' && i+2 < len(runes) && runes[i+1] == '/' && runes[i+2] == '*' {
			i = skipBlockComment(runes, i+3)
			continue
		}
		out = append(out, r)
		i++
	}
	return string(out)
}

// skipBlockComment returns the index just past the closing "*/" starting
// the scan at pos (already past the opener). It returns len(runes) if the
// comment is never closed.
func skipBlockComment(runes []rune, pos int) int {
	for pos+1 < len(runes) {
		if runes[pos] == '*' && runes[pos+1] == '/' {
			return pos + 2
		}
		pos++
	}
	return len(runes)
}

// stripLineComment removes a trailing ";" comment from a single line,
// respecting bracket depth and quote state so a ';' inside a string
// literal is preserved. It is the generalisation of the teacher's plain
// strings.Index(line, ";") cut, grounded on pkg/asm.go's stripComments
// but quote/bracket-aware per spec.md §9.
func stripLineComment(line string) string {
	l := newLexer(line)
	for !l.eof() {
		if l.peek() == ';' && l.atTopLevel() {
			return string(l.src[:l.pos])
		}
		l.advance()
	}
	return line
}

// isWholeLineAnnotation reports whether the trimmed line is a leading
// "#<token>" annotation comment: GCC-style #APP/#NO_APP blocks and
// "# 670 \"file\" 1" linemarkers. The whole line is discarded.
func isWholeLineAnnotation(trimmed string) bool {
	return strings.HasPrefix(trimmed, "#")
}

// stripTrailingHashComment removes a "# comment" suffix from one
// comma-separated operand field. A '#' that opens the field (the
// immediate-operand marker, e.g. "#1" or "#HI:label") is left alone;
// only a '#' preceded by whitespace — meaning it trails an already
// complete token — is treated as a comment opener.
func stripTrailingHashComment(field string) string {
	trimmedLeft := strings.TrimLeft(field, " \t")
	if strings.HasPrefix(trimmedLeft, "#") {
		return field
	}
	for i := 0; i < len(field); i++ {
		if field[i] == '#' && i > 0 && (field[i-1] == ' ' || field[i-1] == '\t') {
			return field[:i]
		}
	}
	return field
}
