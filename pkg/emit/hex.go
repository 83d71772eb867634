package emit

import (
	"fmt"
	"strings"
)

// WriteHex renders entries as Intel HEX text: 16-byte (or shorter, at
// a block's end) type-00 data records, a type-04 Extended Linear
// Address record whenever the address's upper 16 bits change, and a
// single type-01 EOF record. Grounded on
// original_source/src/linker.py's _generate_intel_hex_custom, which
// walks memory addresses in order rather than per-entry, so a run of
// bytes spanning two adjacent entries (or two statements emitted back
// to back) still coalesces into one data record exactly as it would
// for hand-written contiguous data.
func WriteHex(entries []Entry) string {
	var sb strings.Builder
	if len(entries) == 0 {
		sb.WriteString(":00000001FF\n")
		return sb.String()
	}

	var extAddr int64 = -1
	var recAddr uint64
	var rec []byte

	flush := func() {
		if len(rec) > 0 {
			writeHexRecord(&sb, recAddr, rec)
			rec = nil
		}
	}

	for _, e := range entries {
		for i, b := range e.Data {
			addr := e.Address + uint64(i)
			upper := int64((addr >> 16) & 0xFFFF)
			if upper != extAddr {
				flush()
				writeExtendedAddressRecord(&sb, uint16(upper))
				extAddr = upper
				rec = nil
			}
			if len(rec) == 0 {
				recAddr = addr
				rec = append(rec, b)
			} else if addr == recAddr+uint64(len(rec)) {
				rec = append(rec, b)
				if len(rec) >= 16 {
					flush()
				}
			} else {
				flush()
				recAddr = addr
				rec = append(rec, b)
			}
		}
	}
	flush()
	sb.WriteString(":00000001FF\n")
	return sb.String()
}

func writeExtendedAddressRecord(sb *strings.Builder, extendedAddr uint16) {
	byteCount := 0x02
	recordType := 0x04
	dataHigh := byte(extendedAddr >> 8)
	dataLow := byte(extendedAddr)
	checksum := byte(-(byteCount + recordType + int(dataHigh) + int(dataLow)))
	fmt.Fprintf(sb, ":%02X0000%02X%02X%02X%02X\n", byteCount, recordType, dataHigh, dataLow, checksum)
}

func writeHexRecord(sb *strings.Builder, address uint64, data []byte) {
	addr16 := uint16(address)
	byteCount := len(data)
	high := byte(addr16 >> 8)
	low := byte(addr16)
	sum := byteCount + int(high) + int(low)
	for _, b := range data {
		sum += int(b)
	}
	checksum := byte(-sum)

	fmt.Fprintf(sb, ":%02X%04X00", byteCount, addr16)
	for _, b := range data {
		fmt.Fprintf(sb, "%02X", b)
	}
	fmt.Fprintf(sb, "%02X\n", checksum)
}
