package emit

// WriteBin renders the program as one contiguous blob spanning its
// lowest to highest occupied address, with any gap between
// non-adjacent entries padded with 0x00 — spec.md §4.6's required
// behaviour for the 'bin' output format (a sparse file is explicitly
// not required).
func WriteBin(entries []Entry) []byte {
	if len(entries) == 0 {
		return nil
	}
	lo := entries[0].Address
	hi := lo
	for _, e := range entries {
		end := e.Address + uint64(len(e.Data))
		if end > hi {
			hi = end
		}
		if e.Address < lo {
			lo = e.Address
		}
	}
	out := make([]byte, hi-lo)
	for _, e := range entries {
		copy(out[e.Address-lo:], e.Data)
	}
	return out
}
