package instrtable

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

// maxOperands caps the number of declared operand-position columns a
// row may carry, mirroring original_source/instruction_loader.py's
// five-operand InstructionDefinition dataclass.
const maxOperands = 5

// rawOpColumn is one (pos, len, signed, scale) column group for a
// single declared operand slot.
type rawOpColumn struct {
	Pos    int  `json:"pos"`
	Len    int  `json:"len"`
	Signed bool `json:"signed"`
	Scale  int  `json:"scale"`
}

// rawRow is the format-independent shape every loader produces before
// schema validation: spec.md §4.1's required columns, plus the
// signed/scale refinement spec.md §3's Data Model asks for per slot.
type rawRow struct {
	RowNum       int
	Mnemonic     string        `json:"mnemonic"`
	OpcodeSize   int           `json:"opcode_size"`
	BaseOpcode   string        `json:"base_opcode"`
	Syntax       string        `json:"syntax"`
	OperandCount int           `json:"operand_count"`
	Ops          []rawOpColumn `json:"operands"`
}

// RowError describes why one row failed schema validation.
type RowError struct {
	Row     int
	Message string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// Load dispatches to the loader matching format: "csv" (tabular
// spreadsheet proxy), "json" (structured document), or "lines"
// (line-oriented text) — the three format tags spec.md §4.1 names.
func Load(path, format string) (*InstructionTable, []error) {
	switch strings.ToLower(format) {
	case "csv":
		return LoadCSV(path)
	case "json":
		return LoadJSON(path)
	case "lines":
		return LoadLines(path)
	default:
		return nil, []error{fmt.Errorf("unknown instruction table format %q", format)}
	}
}

// LoadCSV loads the table from a CSV file whose header row names each
// column: mnemonic,opcode_size,base_opcode,syntax,operand_count, then
// opN_pos,opN_len,opN_signed,opN_scale for N in 1..5.
func LoadCSV(path string) (*InstructionTable, []error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, []error{fmt.Errorf("opening instruction table %s: %w", path, err)}
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, []error{fmt.Errorf("reading instruction table %s: %w", path, err)}
	}
	if len(records) == 0 {
		return nil, []error{fmt.Errorf("instruction table %s has no rows", path)}
	}

	header := records[0]
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}

	get := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	getInt := func(rec []string, name string) int {
		v, _ := strconv.Atoi(get(rec, name))
		return v
	}
	getBool := func(rec []string, name string) bool {
		v := strings.ToLower(get(rec, name))
		return v == "1" || v == "true" || v == "yes"
	}

	var rows []rawRow
	for i, rec := range records[1:] {
		row := rawRow{
			RowNum:       i + 2, // 1-based, plus the header line
			Mnemonic:     get(rec, "mnemonic"),
			OpcodeSize:   getInt(rec, "opcode_size"),
			BaseOpcode:   get(rec, "base_opcode"),
			Syntax:       get(rec, "syntax"),
			OperandCount: getInt(rec, "operand_count"),
		}
		for n := 1; n <= maxOperands; n++ {
			prefix := fmt.Sprintf("op%d_", n)
			if _, ok := col[prefix+"pos"]; !ok {
				break
			}
			row.Ops = append(row.Ops, rawOpColumn{
				Pos:    getInt(rec, prefix+"pos"),
				Len:    getInt(rec, prefix+"len"),
				Signed: getBool(rec, prefix+"signed"),
				Scale:  getInt(rec, prefix+"scale"),
			})
		}
		rows = append(rows, row)
	}
	return buildTable(rows)
}

// LoadJSON loads the table from a JSON array of row objects with the
// same field names as rawRow.
func LoadJSON(path string) (*InstructionTable, []error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{fmt.Errorf("opening instruction table %s: %w", path, err)}
	}
	var decoded []rawRow
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, []error{fmt.Errorf("parsing instruction table %s: %w", path, err)}
	}
	for i := range decoded {
		decoded[i].RowNum = i + 1
	}
	return buildTable(decoded)
}

// LoadLines loads the table from a line-oriented text format: one row
// per line, fields separated by '|', operand columns packed into a
// ';'-separated group of "pos,len,signed,scale" quads. Blank lines and
// lines starting with '#' are skipped.
func LoadLines(path string) (*InstructionTable, []error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{fmt.Errorf("opening instruction table %s: %w", path, err)}
	}
	var rows []rawRow
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) < 6 {
			rows = append(rows, rawRow{RowNum: i + 1, Mnemonic: "<malformed>"})
			continue
		}
		opcodeSize, _ := strconv.Atoi(strings.TrimSpace(fields[1]))
		operandCount, _ := strconv.Atoi(strings.TrimSpace(fields[4]))
		row := rawRow{
			RowNum:       i + 1,
			Mnemonic:     strings.TrimSpace(fields[0]),
			OpcodeSize:   opcodeSize,
			BaseOpcode:   strings.TrimSpace(fields[2]),
			Syntax:       strings.TrimSpace(fields[3]),
			OperandCount: operandCount,
		}
		for _, group := range strings.Split(fields[5], ";") {
			group = strings.TrimSpace(group)
			if group == "" {
				continue
			}
			quad := strings.Split(group, ",")
			if len(quad) != 4 {
				continue
			}
			pos, _ := strconv.Atoi(strings.TrimSpace(quad[0]))
			length, _ := strconv.Atoi(strings.TrimSpace(quad[1]))
			signedField := strings.TrimSpace(quad[2])
			signed := signedField == "1" || strings.EqualFold(signedField, "true")
			scale, _ := strconv.Atoi(strings.TrimSpace(quad[3]))
			row.Ops = append(row.Ops, rawOpColumn{Pos: pos, Len: length, Signed: signed, Scale: scale})
		}
		rows = append(rows, row)
	}
	return buildTable(rows)
}

// buildTable validates every row concurrently via errgroup — spec.md
// §2's domain-stack wiring for pkg/instrtable — then inserts the
// successfully validated variants into a fresh table in original row
// order, so by_mnemonic's tie-break priority matches the source file.
func buildTable(rows []rawRow) (*InstructionTable, []error) {
	variants := make([]InstructionVariant, len(rows))
	rowErrs := make([]error, len(rows))

	g, _ := errgroup.WithContext(context.Background())
	for i := range rows {
		i := i
		g.Go(func() error {
			v, err := validateRow(rows[i])
			if err != nil {
				rowErrs[i] = err
				return nil // accumulate, don't abort sibling validations
			}
			variants[i] = v
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	table := newTable()
	for i, err := range rowErrs {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		table.add(variants[i])
	}
	return table, errs
}

// validateRow applies spec.md §4.1's schema validation rules and
// builds the variant's slot geometry from its syntax column.
func validateRow(row rawRow) (InstructionVariant, error) {
	if row.Mnemonic == "" || row.Mnemonic == "<malformed>" {
		return InstructionVariant{}, &RowError{Row: row.RowNum, Message: "missing mnemonic"}
	}
	if row.OpcodeSize != 16 && row.OpcodeSize != 32 {
		return InstructionVariant{}, &RowError{Row: row.RowNum, Message: fmt.Sprintf("opcode_size must be 16 or 32, got %d", row.OpcodeSize)}
	}
	baseOpcode, err := parseBaseOpcode(row.BaseOpcode)
	if err != nil {
		return InstructionVariant{}, &RowError{Row: row.RowNum, Message: err.Error()}
	}
	if uint64(baseOpcode) >= uint64(1)<<uint(row.OpcodeSize) {
		return InstructionVariant{}, &RowError{Row: row.RowNum, Message: "base_opcode does not fit in opcode_size bits"}
	}

	tokens := syntaxOperandTokens(row.Syntax)
	if row.OperandCount != len(tokens) {
		return InstructionVariant{}, &RowError{Row: row.RowNum, Message: fmt.Sprintf("operand_count %d does not match %d syntax operands", row.OperandCount, len(tokens))}
	}
	if len(row.Ops) != len(tokens) {
		return InstructionVariant{}, &RowError{Row: row.RowNum, Message: fmt.Sprintf("%d operand columns supplied for %d syntax operands", len(row.Ops), len(tokens))}
	}

	slots := make([]SlotSpec, len(tokens))
	for i, tok := range tokens {
		slot, err := buildSlot(tok, row.Ops[i])
		if err != nil {
			return InstructionVariant{}, &RowError{Row: row.RowNum, Message: err.Error()}
		}
		slots[i] = slot
	}

	if err := checkDisjoint(slots, baseOpcode, row.OpcodeSize); err != nil {
		return InstructionVariant{}, &RowError{Row: row.RowNum, Message: err.Error()}
	}

	return InstructionVariant{
		Mnemonic:       strings.ToUpper(row.Mnemonic),
		OpcodeSizeBits: row.OpcodeSize,
		BaseOpcode:     baseOpcode,
		Slots:          slots,
		Syntax:         row.Syntax,
		Specificity:    specificityScore(slots),
		SourceRow:      row.RowNum,
	}, nil
}

func parseBaseOpcode(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(trimmed, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid base_opcode %q: %w", s, err)
	}
	return uint32(v), nil
}

// syntaxOperandTokens extracts the comma-separated operand list from a
// syntax string like "ST.W [A[15]],off4,D[a]", dropping the leading
// mnemonic word and any "{...}" split-field annotation, mirroring
// original_source/instruction_loader.py's _parse_syntax_operand_types.
func syntaxOperandTokens(syntax string) []string {
	syntax = strings.TrimSpace(syntax)
	idx := strings.IndexAny(syntax, " \t")
	if idx < 0 {
		return nil
	}
	operandsStr := strings.TrimSpace(syntax[idx+1:])
	if operandsStr == "" {
		return nil
	}
	operandsStr = stripBraceAnnotations(operandsStr)
	parts := strings.Split(operandsStr, ",")
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

func stripBraceAnnotations(s string) string {
	var out strings.Builder
	depth := 0
	for _, r := range s {
		switch r {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				out.WriteRune(r)
			}
		}
	}
	return out.String()
}

// checkDisjoint enforces the disjointness half of spec.md §3's Data
// Model invariant on base_opcode's fixed bits and every slot's bit
// range: slots must not overlap each other, must stay within range, and
// must not overlap any bit base_opcode itself sets. It does not check
// that the slots and fixed bits together cover all opcode_size bits.
func checkDisjoint(slots []SlotSpec, baseOpcode uint32, opcodeSize int) error {
	type span struct{ lo, hi int }
	var spans []span
	for _, s := range slots {
		if s.BitLen <= 0 {
			continue
		}
		if s.BitPos < 0 || s.BitPos+s.BitLen > opcodeSize {
			return fmt.Errorf("slot at bit %d length %d extends past opcode_size %d", s.BitPos, s.BitLen, opcodeSize)
		}
		spans = append(spans, span{s.BitPos, s.BitPos + s.BitLen})
	}
	for i := 0; i < len(spans); i++ {
		for j := i + 1; j < len(spans); j++ {
			if spans[i].lo < spans[j].hi && spans[j].lo < spans[i].hi {
				return fmt.Errorf("overlapping operand slots at bits [%d,%d) and [%d,%d)", spans[i].lo, spans[i].hi, spans[j].lo, spans[j].hi)
			}
		}
	}
	for bit := 0; bit < opcodeSize; bit++ {
		if baseOpcode&(1<<uint(bit)) == 0 {
			continue
		}
		for _, sp := range spans {
			if bit >= sp.lo && bit < sp.hi {
				return fmt.Errorf("base_opcode sets bit %d, which falls inside operand slot [%d,%d)", bit, sp.lo, sp.hi)
			}
		}
	}
	return nil
}

// specificityScore mirrors original_source/instruction_loader.py's
// _calculate_specificity_score: any implicit specific-register slot
// (A[15], D[15], ...) earns the variant a +50 tie-break bonus.
func specificityScore(slots []SlotSpec) int {
	for _, s := range slots {
		if s.Kind == SlotLiteralRegister {
			return 50
		}
	}
	return 0
}
