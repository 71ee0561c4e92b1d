package rewrite

import (
	"encoding/binary"
	"fmt"
)

// COFF and XCOFF share the same symbol-table shape: 18-byte entries at a
// header-declared offset with the string table directly behind them. The
// string table cannot be relocated (its position is implied, not pointed
// to), so it must be the file tail for a rewrite to be possible. Compiler
// output always satisfies this.

const coffSymSize = 18

func rewriteCOFF(data []byte, renames map[string]string) ([]byte, error) {
	if len(data) < 20 {
		return nil, fmt.Errorf("coff: file too short")
	}
	symPtr := uint64(binary.LittleEndian.Uint32(data[8:]))
	nsyms := uint64(binary.LittleEndian.Uint32(data[12:]))
	return rewriteCOFFLike(data, binary.LittleEndian, symPtr, nsyms, false, renames)
}

func rewriteCOFFLike(data []byte, order binary.ByteOrder, symPtr, nsyms uint64, names64 bool, renames map[string]string) ([]byte, error) {
	if nsyms == 0 {
		return data, nil
	}
	strPtr := symPtr + nsyms*coffSymSize
	if strPtr > uint64(len(data)) {
		return nil, fmt.Errorf("coff: symbol table out of bounds")
	}

	var strtab []byte
	if strPtr == uint64(len(data)) {
		// No string table yet; start one.
		strtab = []byte{0, 0, 0, 0}
	} else {
		if strPtr+4 > uint64(len(data)) {
			return nil, fmt.Errorf("coff: malformed string table")
		}
		strSize := uint64(order.Uint32(data[strPtr:]))
		if strSize < 4 || strPtr+strSize > uint64(len(data)) {
			return nil, fmt.Errorf("coff: malformed string table")
		}
		if strPtr+strSize != uint64(len(data)) {
			return nil, fmt.Errorf("coff: string table is not at the end of the file")
		}
		strtab = data[strPtr : strPtr+strSize]
	}
	newtab := append([]byte(nil), strtab...)
	grew := false

	rename := func(name string) (string, bool) {
		to, ok := renames[name]
		return to, ok && to != name
	}

	for i := uint64(0); i < nsyms; i++ {
		ent := data[symPtr+i*coffSymSize : symPtr+(i+1)*coffSymSize]
		naux := uint64(ent[17])

		switch {
		case names64:
			// XCOFF64: the name is always an offset at +8.
			off := uint64(order.Uint32(ent[8:]))
			if name, ok := cstring(strtab, off); ok {
				if to, changed := rename(name); changed {
					order.PutUint32(ent[8:], uint32(len(newtab)))
					newtab = append(append(newtab, to...), 0)
					grew = true
				}
			}
		case order.Uint32(ent[:4]) == 0:
			// Long name: offset at +4, counted from the start of the table.
			off := uint64(order.Uint32(ent[4:]))
			if name, ok := cstring(strtab, off); ok {
				if to, changed := rename(name); changed {
					order.PutUint32(ent[4:], uint32(len(newtab)))
					newtab = append(append(newtab, to...), 0)
					grew = true
				}
			}
		default:
			name := shortName(ent[:8])
			if to, changed := rename(name); changed {
				if len(to) <= 8 {
					copy(ent[:8], make([]byte, 8))
					copy(ent[:8], to)
				} else {
					order.PutUint32(ent[:4], 0)
					order.PutUint32(ent[4:], uint32(len(newtab)))
					newtab = append(append(newtab, to...), 0)
					grew = true
				}
			}
		}
		i += naux
	}
	if !grew {
		return data, nil
	}

	order.PutUint32(newtab, uint32(len(newtab)))
	return append(data[:strPtr], newtab...), nil
}

func shortName(b []byte) string {
	end := 0
	for end < len(b) && b[end] != 0 {
		end++
	}
	return string(b[:end])
}
