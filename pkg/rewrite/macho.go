package rewrite

import (
	"encoding/binary"
	"fmt"
)

const (
	machoMagic32 = 0xfeedface
	machoMagic64 = 0xfeedfacf

	lcSymtab = 0x2
)

// rewriteMachO rebuilds the LC_SYMTAB string table. When the table is the
// file tail (the usual layout for objects) it is rewritten in place;
// otherwise the new table lands at the end of the file and stroff is moved.
func rewriteMachO(data []byte, renames map[string]string) ([]byte, error) {
	if len(data) < 32 {
		return nil, fmt.Errorf("macho: file too short")
	}

	var order binary.ByteOrder
	var is64 bool
	switch m := binary.LittleEndian.Uint32(data); m {
	case machoMagic32:
		order = binary.LittleEndian
	case machoMagic64:
		order = binary.LittleEndian
		is64 = true
	default:
		switch binary.BigEndian.Uint32(data) {
		case machoMagic32:
			order = binary.BigEndian
		case machoMagic64:
			order = binary.BigEndian
			is64 = true
		default:
			return nil, fmt.Errorf("macho: bad magic")
		}
	}

	ncmds := order.Uint32(data[16:])
	cmdOff := uint64(28)
	if is64 {
		cmdOff = 32
	}

	for i := uint32(0); i < ncmds; i++ {
		if cmdOff+8 > uint64(len(data)) {
			return nil, fmt.Errorf("macho: truncated load commands")
		}
		cmd := order.Uint32(data[cmdOff:])
		cmdSize := order.Uint32(data[cmdOff+4:])
		if cmdSize < 8 || cmdOff+uint64(cmdSize) > uint64(len(data)) {
			return nil, fmt.Errorf("macho: malformed load command %d", i)
		}
		if cmd == lcSymtab {
			return rewriteMachOSymtab(data, order, is64, cmdOff, renames)
		}
		cmdOff += uint64(cmdSize)
	}
	// No symbol table, nothing to rename.
	return data, nil
}

func rewriteMachOSymtab(data []byte, order binary.ByteOrder, is64 bool, cmdOff uint64, renames map[string]string) ([]byte, error) {
	symOff := uint64(order.Uint32(data[cmdOff+8:]))
	nsyms := uint64(order.Uint32(data[cmdOff+12:]))
	strOff := uint64(order.Uint32(data[cmdOff+16:]))
	strSize := uint64(order.Uint32(data[cmdOff+20:]))

	entSize := uint64(12)
	if is64 {
		entSize = 16
	}
	if symOff+nsyms*entSize > uint64(len(data)) || strOff+strSize > uint64(len(data)) {
		return nil, fmt.Errorf("macho: symbol or string table out of bounds")
	}

	strtab := data[strOff : strOff+strSize]
	newtab := append([]byte(nil), strtab...)
	grew := false

	for i := uint64(0); i < nsyms; i++ {
		ent := symOff + i*entSize
		nameOff := uint64(order.Uint32(data[ent:]))
		name, ok := cstring(strtab, nameOff)
		if !ok || name == "" {
			continue
		}
		to, ok := renames[name]
		if !ok || to == name {
			continue
		}
		order.PutUint32(data[ent:], uint32(len(newtab)))
		newtab = append(newtab, to...)
		newtab = append(newtab, 0)
		grew = true
	}
	if !grew {
		return data, nil
	}

	if strOff+strSize == uint64(len(data)) && symOff+nsyms*entSize <= strOff {
		data = data[:strOff]
	} else {
		strOff = uint64(len(data))
		order.PutUint32(data[cmdOff+16:], uint32(strOff))
	}
	order.PutUint32(data[cmdOff+20:], uint32(len(newtab)))
	return append(data, newtab...), nil
}
