package emit

import (
	"fmt"
	"strings"

	"github.com/aurixinino/TASM/pkg/encode"
)

// WriteTxt renders one "ADDRESS WORD" line per entry, where WORD is
// the entry's bytes reinterpreted as a single big-endian integer —
// spec.md §4.6's text dump deliberately shows the instruction word the
// way the manual prints it, not the little-endian bytes memory
// actually holds. Width is two hex digits per byte, so a 2-byte J and
// a 4-byte MOV line up the way spec.md §8 scenario 4's example does.
func WriteTxt(entries []Entry, endian encode.Endianness) string {
	var sb strings.Builder
	for _, e := range entries {
		word := wordOf(e.Data, endian)
		digits := len(e.Data) * 2
		fmt.Fprintf(&sb, "%s %0*X\n", fmtAddr32(e.Address), digits, word)
	}
	return sb.String()
}
