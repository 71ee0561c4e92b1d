package rewrite

import (
	"encoding/binary"
	"fmt"
)

// ELF layout constants for the two classes. Renamed symbols get their new
// name appended to the symtab's string table, which is then relocated to
// the end of the file; untouched st_name offsets stay valid because the
// original table bytes are kept as the prefix.
const (
	elfClass32 = 1
	elfClass64 = 2

	elfData2LSB = 1
	elfData2MSB = 2

	shtSymtab = 2
	shtDynsym = 11
)

type elfFile struct {
	data  []byte
	is64  bool
	order binary.ByteOrder

	shoff     uint64
	shentsize uint64
	shnum     uint64
}

func rewriteELF(data []byte, renames map[string]string) ([]byte, error) {
	if len(data) < 52 { // smallest (32-bit) ELF header
		return nil, fmt.Errorf("elf: file too short")
	}

	f := &elfFile{data: data}
	switch data[4] {
	case elfClass32:
	case elfClass64:
		f.is64 = true
	default:
		return nil, fmt.Errorf("elf: unknown class %d", data[4])
	}
	switch data[5] {
	case elfData2LSB:
		f.order = binary.LittleEndian
	case elfData2MSB:
		f.order = binary.BigEndian
	default:
		return nil, fmt.Errorf("elf: unknown data encoding %d", data[5])
	}

	if f.is64 {
		f.shoff = f.order.Uint64(data[0x28:])
		f.shentsize = uint64(f.order.Uint16(data[0x3a:]))
		f.shnum = uint64(f.order.Uint16(data[0x3c:]))
	} else {
		f.shoff = uint64(f.order.Uint32(data[0x20:]))
		f.shentsize = uint64(f.order.Uint16(data[0x2e:]))
		f.shnum = uint64(f.order.Uint16(data[0x30:]))
	}
	if f.shoff == 0 || f.shnum == 0 {
		return nil, fmt.Errorf("elf: no section headers")
	}

	for i := uint64(0); i < f.shnum; i++ {
		typ := f.order.Uint32(f.shdr(i)[4:])
		if typ != shtSymtab && typ != shtDynsym {
			continue
		}
		if err := f.rewriteSymtab(i, renames); err != nil {
			return nil, err
		}
	}
	return f.data, nil
}

func (f *elfFile) shdr(i uint64) []byte {
	off := f.shoff + i*f.shentsize
	return f.data[off : off+f.shentsize]
}

func (f *elfFile) shdrOffsetSize(i uint64) (uint64, uint64) {
	h := f.shdr(i)
	if f.is64 {
		return f.order.Uint64(h[24:]), f.order.Uint64(h[32:])
	}
	return uint64(f.order.Uint32(h[16:])), uint64(f.order.Uint32(h[20:]))
}

func (f *elfFile) setShdrOffsetSize(i uint64, off, size uint64) {
	h := f.shdr(i)
	if f.is64 {
		f.order.PutUint64(h[24:], off)
		f.order.PutUint64(h[32:], size)
		return
	}
	f.order.PutUint32(h[16:], uint32(off))
	f.order.PutUint32(h[20:], uint32(size))
}

func (f *elfFile) rewriteSymtab(symIdx uint64, renames map[string]string) error {
	h := f.shdr(symIdx)
	var symOff, symSize, entSize uint64
	var strIdx uint64
	if f.is64 {
		symOff = f.order.Uint64(h[24:])
		symSize = f.order.Uint64(h[32:])
		strIdx = uint64(f.order.Uint32(h[40:]))
		entSize = f.order.Uint64(h[56:])
	} else {
		symOff = uint64(f.order.Uint32(h[16:]))
		symSize = uint64(f.order.Uint32(h[20:]))
		strIdx = uint64(f.order.Uint32(h[24:]))
		entSize = uint64(f.order.Uint32(h[36:]))
	}
	if entSize == 0 || strIdx >= f.shnum {
		return fmt.Errorf("elf: malformed symbol table section")
	}

	strOff, strSize := f.shdrOffsetSize(strIdx)
	if strOff+strSize > uint64(len(f.data)) {
		return fmt.Errorf("elf: string table out of bounds")
	}
	strtab := f.data[strOff : strOff+strSize]
	newtab := append([]byte(nil), strtab...)
	grew := false

	for off := symOff; off+entSize <= symOff+symSize; off += entSize {
		nameOff := uint64(f.order.Uint32(f.data[off:]))
		name, ok := cstring(strtab, nameOff)
		if !ok || name == "" {
			continue
		}
		to, ok := renames[name]
		if !ok || to == name {
			continue
		}
		f.order.PutUint32(f.data[off:], uint32(len(newtab)))
		newtab = append(newtab, to...)
		newtab = append(newtab, 0)
		grew = true
	}
	if !grew {
		return nil
	}

	f.setShdrOffsetSize(strIdx, uint64(len(f.data)), uint64(len(newtab)))
	f.data = append(f.data, newtab...)
	return nil
}
