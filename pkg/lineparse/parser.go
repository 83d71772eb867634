// Package lineparse is the assembler's tolerance layer: it turns one
// line of vendor assembly syntax into a canonical ir.Statement,
// normalising register spellings, splitting compound memory operands,
// and recognising the directive vocabulary of spec.md §4.2. It is
// grounded on the teacher's pkg/compiler.Lexer (the peek/peek2/advance
// shape) and pkg/asm.go's parseLine/stripComments, generalised from a
// fixed toy instruction set to a data-driven one with an explicit
// bracket/quote-aware scanner in place of the teacher's regex-style
// strings.NewReplacer normalisation.
package lineparse

import (
	"math/big"
	"strings"

	"github.com/aurixinino/TASM/pkg/diag"
	"github.com/aurixinino/TASM/pkg/ir"
	"github.com/aurixinino/TASM/pkg/numlit"
)

// Parser holds the state that must persist across lines of one file:
// the local-label rewrite tracker. Everything else is stateless.
type Parser struct {
	file   string
	locals *LocalLabelTracker
}

// NewParser returns a Parser for one source file, identified by name
// for diagnostic locations.
func NewParser(file string) *Parser {
	return &Parser{file: file, locals: NewLocalLabelTracker()}
}

// ParseLine parses one already-macro-expanded source line. It returns
// nil if the line produces no statement (blank, pure comment, or a
// fully-consumed metadata directive with no label attached).
func (p *Parser) ParseLine(lineNo int, raw string, bag *diag.Bag) *ir.Statement {
	loc := diag.Location{File: p.file, Line: lineNo}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	if isWholeLineAnnotation(trimmed) {
		return nil
	}

	line := stripLineComment(trimmed)
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	label := ""
	for {
		colon := findTopLevelColon(line)
		if colon <= 0 {
			break
		}
		before := strings.TrimSpace(line[:colon])
		if before == "" {
			bag.Errorf(diag.KindInvalidOperand, loc, "empty label before ':'")
			return nil
		}
		if strings.ContainsAny(before, " \t") {
			break
		}
		name, ok := p.resolveLabelCandidate(before)
		if !ok {
			break
		}
		label = name
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return &ir.Statement{Label: label, Body: ir.ReserveBody{Bytes: 0}, Location: loc, Source: trimmed}
		}
	}

	body, ok := p.parseBody(line, loc, bag)
	if !ok || body == nil {
		if label == "" {
			return nil
		}
		return &ir.Statement{Label: label, Body: ir.ReserveBody{Bytes: 0}, Location: loc, Source: trimmed}
	}
	return &ir.Statement{Label: label, Body: body, Location: loc, Source: trimmed}
}

// parseBody dispatches the text remaining after any label and comment
// have been stripped: either an EQU definition ("NAME EQU expr"), a
// recognised directive, or an instruction mnemonic with its operands.
// It is also the recursion point for TIMES's repeated inner statement.
func (p *Parser) parseBody(line string, loc diag.Location, bag *diag.Bag) (ir.StatementBody, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, false
	}

	word1, rest1 := splitFirstTopLevelWord(line)
	word2, rest2 := splitFirstTopLevelWord(rest1)
	if strings.EqualFold(word2, "EQU") {
		value := p.parseExpression(strings.TrimSpace(rest2), ir.HighLowNone, loc, bag)
		if value == nil {
			return nil, false
		}
		return ir.EquateBody{Name: word1, Value: value}, true
	}

	key := strings.ToUpper(word1)
	if handler, ok := directiveTable[key]; ok {
		return handler(p, rest1, loc, bag)
	}

	operands := p.parseOperandList(rest1, loc, bag)
	return ir.InstructionBody{Mnemonic: key, Operands: operands}, true
}

func (p *Parser) resolveLabelCandidate(s string) (string, bool) {
	if isAllDigits(s) {
		return p.locals.Define(s), true
	}
	if isIdentifierName(s) {
		return s, true
	}
	return "", false
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isIdentifierName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == '.':
			continue
		case r >= '0' && r <= '9' && i > 0:
			continue
		default:
			return false
		}
	}
	return true
}

// parseOperandList splits an operand-list string on top-level commas,
// strips trailing "# comment" suffixes per field, applies the
// compound-operand micro-pass, and parses each resulting token into an
// Operand.
func (p *Parser) parseOperandList(rest string, loc diag.Location, bag *diag.Bag) []ir.Operand {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return nil
	}
	fields := splitTopLevel(rest, ',')
	for i, f := range fields {
		fields[i] = strings.TrimSpace(stripTrailingHashComment(f))
	}
	fields = splitCompoundOperands(fields)

	var out []ir.Operand
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if op := p.parseOperandToken(f, loc, bag); op != nil {
			out = append(out, op)
		}
	}
	return out
}

var fixedSuffixes = map[string]bool{
	"LL": true, "UU": true, "L": true, "U": true, "UL": true, "LU": true,
}

func (p *Parser) parseOperandToken(tok string, loc diag.Location, bag *diag.Bag) ir.Operand {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return nil
	}

	if bracketed, rest, ok := splitLeadingBracket(tok); ok {
		inner := strings.TrimSpace(bracketed[1 : len(bracketed)-1])
		if strings.HasSuffix(inner, "+") {
			base, baseOK := parseRegisterToken(bracketed)
			if !baseOK {
				bag.Errorf(diag.KindInvalidOperand, loc, "malformed post-increment base register %q", bracketed)
				return nil
			}
			var disp ir.Operand = ir.ImmediateOperand{Value: big.NewInt(0)}
			if rest != "" {
				disp = p.parseExpression(rest, ir.HighLowNone, loc, bag)
			}
			return ir.IndexedOperand{Base: base, Displacement: disp}
		}
	}

	if strings.HasPrefix(tok, "#") {
		body := tok[1:]
		hl := ir.HighLowNone
		upper := strings.ToUpper(body)
		switch {
		case strings.HasPrefix(upper, "HI:"):
			hl = ir.HighLowHi
			body = body[3:]
		case strings.HasPrefix(upper, "LO:"):
			hl = ir.HighLowLo
			body = body[3:]
		}
		return p.parseExpression(strings.TrimSpace(body), hl, loc, bag)
	}

	if fixedSuffixes[strings.ToUpper(tok)] {
		return ir.FixedOperand{Token: strings.ToUpper(tok)}
	}

	if reg, ok := parseRegisterToken(tok); ok {
		return reg
	}

	if strings.HasPrefix(tok, "'") {
		b, err := numlit.ParseChar(tok)
		if err != nil {
			bag.Errorf(diag.KindNumericLiteral, loc, "invalid character literal %q: %v", tok, err)
			return nil
		}
		return ir.ImmediateOperand{Value: big.NewInt(int64(b))}
	}

	// Bare "mov d4, #1" vs "mov d4, 1": an operand with no leading '#'
	// that parses as a plain number is accepted as the same immediate
	// per spec.md §9's tolerance note.
	return p.parseExpression(tok, ir.HighLowNone, loc, bag)
}

type exprTerm struct {
	sign int
	text string
}

// parseExpression evaluates spec.md §4.2's expression grammar: labels,
// EQU constants, and integer literals combined left-to-right with '+'
// and '-'. At most one label may appear; spec.md's Non-goals cap
// expressions at one label plus a basic +off/-off addition.
func (p *Parser) parseExpression(body string, hl ir.HighLow, loc diag.Location, bag *diag.Bag) ir.Operand {
	body = strings.TrimSpace(body)
	if body == "" {
		bag.Errorf(diag.KindInvalidOperand, loc, "empty expression")
		return nil
	}

	terms := splitExprTerms(body)

	sum := big.NewInt(0)
	labelName := ""
	labelSign := 1
	haveLabel := false

	for _, t := range terms {
		text := strings.TrimSpace(t.text)
		if text == "" {
			continue
		}
		if v, err := numlit.ParseInt(text); err == nil {
			delta := new(big.Int).Mul(v, big.NewInt(int64(t.sign)))
			sum.Add(sum, delta)
			continue
		}
		if strings.HasPrefix(text, "'") {
			if b, err := numlit.ParseChar(text); err == nil {
				sum.Add(sum, big.NewInt(int64(t.sign)*int64(b)))
				continue
			}
		}
		if isIdentifierName(text) {
			if haveLabel {
				bag.Errorf(diag.KindInvalidOperand, loc, "expression %q references more than one label", body)
				return nil
			}
			if t.sign < 0 {
				bag.Errorf(diag.KindInvalidOperand, loc, "negated label reference %q is not supported", text)
				return nil
			}
			labelName = text
			labelSign = t.sign
			haveLabel = true
			continue
		}
		bag.Errorf(diag.KindInvalidOperand, loc, "invalid term %q in expression %q", text, body)
		return nil
	}

	if haveLabel {
		_ = labelSign
		return ir.LabelRefOperand{Name: labelName, Offset: sum, HighLow: hl}
	}
	return ir.ImmediateOperand{Value: sum, HighLow: hl}
}

// splitExprTerms splits body into signed terms at each top-level '+'
// or '-' that is not the leading character (a leading sign belongs to
// the first term, e.g. the literal "-42").
func splitExprTerms(body string) []exprTerm {
	var terms []exprTerm
	sign := 1
	start := 0
	if len(body) > 0 && (body[0] == '+' || body[0] == '-') {
		if body[0] == '-' {
			sign = -1
		}
		start = 1
	}
	cur := start
	l := newLexer(body)
	l.pos = start
	for !l.eof() {
		r := l.peek()
		if (r == '+' || r == '-') && l.atTopLevel() {
			terms = append(terms, exprTerm{sign: sign, text: body[cur:l.pos]})
			if r == '-' {
				sign = -1
			} else {
				sign = 1
			}
			l.advance()
			cur = l.pos
			continue
		}
		l.advance()
	}
	terms = append(terms, exprTerm{sign: sign, text: body[cur:]})
	return terms
}
