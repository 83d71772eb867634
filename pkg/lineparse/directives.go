package lineparse

import (
	"math/big"
	"strings"

	"github.com/aurixinino/TASM/pkg/diag"
	"github.com/aurixinino/TASM/pkg/ir"
	"github.com/aurixinino/TASM/pkg/numlit"
)

// directiveHandler builds a StatementBody from a directive's trailing
// text. ok is false for directives that carry no useful payload at this
// layer (the .sdecl/.type metadata family, .end) — the caller folds
// these into a zero-size label-carrying statement.
type directiveHandler func(p *Parser, rest string, loc diag.Location, bag *diag.Bag) (ir.StatementBody, bool)

// directiveTable is keyed by the directive spelling, uppercased, with
// the leading '.' kept where the canonical spelling has one. Lookups
// are case-insensitive because callers uppercase before indexing.
var directiveTable map[string]directiveHandler

func init() {
	directiveTable = map[string]directiveHandler{
		".ORG":     handleOrigin,
		".SECTION": handleSection,
		".SECT":    handleSection,
		".ALIGN":   handleAlign,
		".GLOBAL":  handleGlobal,
		".GLOBL":   handleGlobal,
		".END":     handleIgnored,
		".SDECL":   handleIgnored,
		".TYPE":    handleIgnored,
		".SIZE":    handleIgnored,
		".FILE":    handleIgnored,
		".IDENT":   handleIgnored,
		"DB":       handleData(ir.DataByte),
		"DW":       handleData(ir.DataWord),
		"DD":       handleData(ir.DataDword),
		"DQ":       handleData(ir.DataQword),
		"RESB":     handleReserve(1),
		"RESW":     handleReserve(2),
		"RESD":     handleReserve(4),
		"RESQ":     handleReserve(8),
		"TIMES":    handleTimes,
		"INCBIN":   handleIncbin,
	}
}

func handleIgnored(p *Parser, rest string, loc diag.Location, bag *diag.Bag) (ir.StatementBody, bool) {
	return nil, false
}

func handleOrigin(p *Parser, rest string, loc diag.Location, bag *diag.Bag) (ir.StatementBody, bool) {
	addr := p.parseExpression(strings.TrimSpace(rest), ir.HighLowNone, loc, bag)
	if addr == nil {
		return nil, false
	}
	return ir.OriginBody{Address: addr}, true
}

func handleSection(p *Parser, rest string, loc diag.Location, bag *diag.Bag) (ir.StatementBody, bool) {
	name := strings.Trim(strings.TrimSpace(rest), `"`)
	if name == "" {
		bag.Errorf(diag.KindDirectiveError, loc, "section directive requires a name")
		return nil, false
	}
	return ir.SectionBody{Name: name}, true
}

func handleAlign(p *Parser, rest string, loc diag.Location, bag *diag.Bag) (ir.StatementBody, bool) {
	v, err := numlit.ParseInt(strings.TrimSpace(rest))
	if err != nil {
		bag.Errorf(diag.KindDirectiveError, loc, "invalid alignment boundary %q: %v", rest, err)
		return nil, false
	}
	return ir.AlignBody{Boundary: int(v.Int64())}, true
}

func handleGlobal(p *Parser, rest string, loc diag.Location, bag *diag.Bag) (ir.StatementBody, bool) {
	name := strings.TrimSpace(rest)
	if name == "" {
		bag.Errorf(diag.KindDirectiveError, loc, "global directive requires a symbol name")
		return nil, false
	}
	return ir.GlobalBody{Name: name}, true
}

func handleIncbin(p *Parser, rest string, loc diag.Location, bag *diag.Bag) (ir.StatementBody, bool) {
	path := strings.Trim(strings.TrimSpace(rest), `"`)
	return ir.IncludeBody{Path: path}, true
}

func handleData(directive ir.DataDirective) directiveHandler {
	return func(p *Parser, rest string, loc diag.Location, bag *diag.Bag) (ir.StatementBody, bool) {
		fields := splitTopLevel(rest, ',')
		var values []ir.Operand
		for _, f := range fields {
			f = strings.TrimSpace(stripTrailingHashComment(f))
			if f == "" {
				continue
			}
			if strings.HasPrefix(f, `"`) && strings.HasSuffix(f, `"`) && len(f) >= 2 {
				bytes, err := numlit.ParseString(f[1 : len(f)-1])
				if err != nil {
					bag.Errorf(diag.KindNumericLiteral, loc, "invalid string literal %q: %v", f, err)
					continue
				}
				for _, b := range bytes {
					values = append(values, ir.ImmediateOperand{Value: big.NewInt(int64(b))})
				}
				continue
			}
			if strings.HasPrefix(f, "'") {
				b, err := numlit.ParseChar(f)
				if err != nil {
					bag.Errorf(diag.KindNumericLiteral, loc, "invalid character literal %q: %v", f, err)
					continue
				}
				values = append(values, ir.ImmediateOperand{Value: big.NewInt(int64(b))})
				continue
			}
			if op := p.parseExpression(f, ir.HighLowNone, loc, bag); op != nil {
				values = append(values, op)
			}
		}
		return ir.DataBody{Directive: directive, Values: values}, true
	}
}

func handleReserve(elementSize int) directiveHandler {
	return func(p *Parser, rest string, loc diag.Location, bag *diag.Bag) (ir.StatementBody, bool) {
		count, err := numlit.ParseInt(strings.TrimSpace(rest))
		if err != nil {
			bag.Errorf(diag.KindDirectiveError, loc, "invalid reserve count %q: %v", rest, err)
			return nil, false
		}
		return ir.ReserveBody{Bytes: int(count.Int64()) * elementSize}, true
	}
}

func handleTimes(p *Parser, rest string, loc diag.Location, bag *diag.Bag) (ir.StatementBody, bool) {
	countTok, innerRest := splitFirstTopLevelWord(rest)
	count, err := numlit.ParseInt(countTok)
	if err != nil {
		bag.Errorf(diag.KindDirectiveError, loc, "invalid TIMES count %q: %v", countTok, err)
		return nil, false
	}
	innerBody, ok := p.parseBody(innerRest, loc, bag)
	if !ok || innerBody == nil {
		bag.Errorf(diag.KindDirectiveError, loc, "TIMES requires a statement to repeat")
		return nil, false
	}
	inner := &ir.Statement{Body: innerBody, Location: loc}
	return ir.TimesBody{Count: int(count.Int64()), Inner: inner}, true
}
