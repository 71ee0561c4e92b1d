package ar

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

// Kind selects the archive flavor.
type Kind int

const (
	// KindGNU writes a System V / GNU archive: "/" symbol index and "//"
	// long-name table. Used for ELF, COFF, Wasm and XCOFF members.
	KindGNU Kind = iota
	// KindDarwin writes a BSD archive the way ld64 expects it: "__.SYMDEF"
	// ranlib index, "#1/N" member names, 8-byte aligned member data.
	KindDarwin
)

// WriteBytes builds an archive in memory. Member order is preserved; the
// symbol index lists each member's Symbols against its header offset.
func WriteBytes(members []Member, kind Kind) ([]byte, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("cannot write an empty archive")
	}
	var buf bytes.Buffer
	var err error
	switch kind {
	case KindGNU:
		err = writeGNU(&buf, members)
	case KindDarwin:
		err = writeDarwin(&buf, members)
	default:
		err = fmt.Errorf("unknown archive kind %d", kind)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile builds an archive and writes it to path.
func WriteFile(path string, members []Member, kind Kind) error {
	data, err := WriteBytes(members, kind)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func pad2(n int) int { return n + n%2 }

func align8(n int) int { return (n + 7) &^ 7 }

// writeHeader emits one 60-byte member header. All variable fields are
// pinned so output is reproducible.
func writeHeader(buf *bytes.Buffer, name string, size int) {
	fmt.Fprintf(buf, "%-16s%-12d%-6d%-6d%-8o%-10d`\n", name, 0, 0, 0, 0644, size)
}

func writeGNU(buf *bytes.Buffer, members []Member) error {
	// Long-name table and per-member name fields.
	var longTab bytes.Buffer
	nameFields := make([]string, len(members))
	for i, m := range members {
		if len(m.Name) <= 15 {
			nameFields[i] = m.Name + "/"
		} else {
			nameFields[i] = fmt.Sprintf("/%d", longTab.Len())
			longTab.WriteString(m.Name)
			longTab.WriteString("/\n")
		}
	}

	// Symbol index size is independent of member offsets, so offsets can be
	// computed in one pass.
	nsyms := 0
	symtabSize := 4
	for _, m := range members {
		for _, s := range m.Symbols {
			nsyms++
			symtabSize += 4 + len(s) + 1
		}
	}

	base := len(Magic) + headerSize + pad2(symtabSize)
	if longTab.Len() > 0 {
		base += headerSize + pad2(longTab.Len())
	}
	offsets := make([]int, len(members))
	pos := base
	for i, m := range members {
		offsets[i] = pos
		pos += headerSize + pad2(len(m.Data))
	}

	var symtab bytes.Buffer
	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], uint32(nsyms))
	symtab.Write(u32[:])
	for i, m := range members {
		for range m.Symbols {
			binary.BigEndian.PutUint32(u32[:], uint32(offsets[i]))
			symtab.Write(u32[:])
		}
	}
	for _, m := range members {
		for _, s := range m.Symbols {
			symtab.WriteString(s)
			symtab.WriteByte(0)
		}
	}

	buf.WriteString(Magic)
	writeHeader(buf, "/", symtab.Len())
	writePadded(buf, symtab.Bytes(), pad2(symtab.Len()))
	if longTab.Len() > 0 {
		writeHeader(buf, "//", longTab.Len())
		writePadded(buf, longTab.Bytes(), pad2(longTab.Len()))
	}
	for i, m := range members {
		if buf.Len() != offsets[i] {
			return fmt.Errorf("archive layout drifted: member %d at %d, want %d", i, buf.Len(), offsets[i])
		}
		writeHeader(buf, nameFields[i], len(m.Data))
		writePadded(buf, m.Data, pad2(len(m.Data)))
	}
	return nil
}

func writeDarwin(buf *bytes.Buffer, members []Member) error {
	const symdefName = "__.SYMDEF"

	// Per-member stored-name padding keeps member data 8-byte aligned.
	// Sizes are needed up front for the ranlib offsets.
	symdefNamePad := align8(len(Magic)+headerSize+len(symdefName)) - (len(Magic) + headerSize)

	var strtab bytes.Buffer
	type pair struct{ strx, off uint32 }
	var pairs []pair

	// First pass: member layout.
	namePads := make([]int, len(members))
	sizes := make([]int, len(members))
	offsets := make([]int, len(members))

	// Ranlib block: nranlibs, pairs, strsize, strings (padded to 8).
	for _, m := range members {
		for _, s := range m.Symbols {
			pairs = append(pairs, pair{strx: uint32(strtab.Len())})
			strtab.WriteString(s)
			strtab.WriteByte(0)
		}
	}
	strtabLen := align8(strtab.Len())
	ranlibSize := 4 + 8*len(pairs) + 4 + strtabLen
	symdefSize := symdefNamePad + ranlibSize

	pos := len(Magic) + headerSize + symdefSize
	for i, m := range members {
		offsets[i] = pos
		namePads[i] = align8(pos+headerSize+len(m.Name)) - (pos + headerSize)
		sizes[i] = namePads[i] + align8(len(m.Data))
		pos += headerSize + sizes[i]
	}

	k := 0
	for i, m := range members {
		for range m.Symbols {
			pairs[k].off = uint32(offsets[i])
			k++
		}
	}

	buf.WriteString(Magic)
	writeHeader(buf, fmt.Sprintf("#1/%d", symdefNamePad), symdefSize)
	writeZeroPadded(buf, []byte(symdefName), symdefNamePad)

	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(8*len(pairs)))
	buf.Write(u32[:])
	for _, p := range pairs {
		binary.LittleEndian.PutUint32(u32[:], p.strx)
		buf.Write(u32[:])
		binary.LittleEndian.PutUint32(u32[:], p.off)
		buf.Write(u32[:])
	}
	binary.LittleEndian.PutUint32(u32[:], uint32(strtabLen))
	buf.Write(u32[:])
	writeZeroPadded(buf, strtab.Bytes(), strtabLen)

	for i, m := range members {
		if buf.Len() != offsets[i] {
			return fmt.Errorf("archive layout drifted: member %d at %d, want %d", i, buf.Len(), offsets[i])
		}
		writeHeader(buf, fmt.Sprintf("#1/%d", namePads[i]), sizes[i])
		writeZeroPadded(buf, []byte(m.Name), namePads[i])
		writePadded(buf, m.Data, align8(len(m.Data)))
	}
	return nil
}

// writePadded writes data then pads with newlines up to total bytes.
func writePadded(buf *bytes.Buffer, data []byte, total int) {
	buf.Write(data)
	for i := len(data); i < total; i++ {
		buf.WriteByte('\n')
	}
}

// writeZeroPadded is writePadded with NUL padding, used for stored BSD
// names and string tables.
func writeZeroPadded(buf *bytes.Buffer, data []byte, total int) {
	buf.Write(data)
	for i := len(data); i < total; i++ {
		buf.WriteByte(0)
	}
}
