package obj

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// XCOFF is always big-endian. Magic values are the AIX TOC magics.
const (
	xcoffMagic32 = 0x01DF // U802TOCMAGIC
	xcoffMagic64 = 0x01F7 // U64_TOCMAGIC

	xcoffSymSize = 18

	xcoffScnumUndef = 0
	xcoffScnumDebug = -2

	xcoffClassExt     = 2
	xcoffClassStat    = 3
	xcoffClassFile    = 103
	xcoffClassHidExt  = 107
	xcoffClassWeakExt = 111
	xcoffClassDwarf   = 112
)

type xcoffObject struct {
	data   []byte
	triple Triple
	syms   []Symbol
}

func parseXCOFF(data []byte) (Object, error) {
	if len(data) < 20 {
		return nil, ErrUnknownFormat
	}
	magic := binary.BigEndian.Uint16(data)

	var symptr uint64
	var nsyms uint32
	arch := ArchPpc
	switch magic {
	case xcoffMagic32:
		symptr = uint64(binary.BigEndian.Uint32(data[8:]))
		nsyms = binary.BigEndian.Uint32(data[12:])
	case xcoffMagic64:
		if len(data) < 24 {
			return nil, ErrUnknownFormat
		}
		symptr = binary.BigEndian.Uint64(data[8:])
		nsyms = binary.BigEndian.Uint32(data[20:])
		arch = ArchPpc64
	default:
		return nil, ErrUnknownFormat
	}

	o := &xcoffObject{
		data:   data,
		triple: Triple{Arch: arch, Format: FormatXCOFF},
	}
	if nsyms == 0 {
		return o, nil
	}

	end := symptr + uint64(nsyms)*xcoffSymSize
	if end > uint64(len(data)) {
		return nil, fmt.Errorf("xcoff: symbol table out of bounds")
	}
	strtab := data[end:]

	for i := uint32(0); i < nsyms; i++ {
		ent := data[symptr+uint64(i)*xcoffSymSize : symptr+uint64(i+1)*xcoffSymSize]

		var sym Symbol
		scnum := int16(binary.BigEndian.Uint16(ent[12:]))
		sclass := ent[16]
		numaux := ent[17]

		name, ok := xcoffSymName(ent, strtab, magic == xcoffMagic64)
		if !ok {
			sym.Err = true
		}
		sym.Name = name

		switch sclass {
		case xcoffClassExt:
			sym.Flags |= FlagGlobal
		case xcoffClassWeakExt:
			sym.Flags |= FlagGlobal | FlagWeak
		}
		if scnum == xcoffScnumUndef && (sclass == xcoffClassExt || sclass == xcoffClassWeakExt) {
			sym.Flags |= FlagUndefined
		}

		switch {
		case sclass == xcoffClassFile:
			sym.Type = TypeFile
		case sclass == xcoffClassDwarf || scnum == xcoffScnumDebug:
			sym.Type = TypeDebug
		case sclass == xcoffClassExt || sclass == xcoffClassWeakExt || sclass == xcoffClassHidExt:
			sym.Type = TypeData
		default:
			sym.Type = TypeOther
		}

		o.syms = append(o.syms, sym)
		i += uint32(numaux)
	}
	return o, nil
}

func (o *xcoffObject) Triple() Triple    { return o.triple }
func (o *xcoffObject) Symbols() []Symbol { return o.syms }
func (o *xcoffObject) Bytes() []byte     { return o.data }

func xcoffSymName(ent, strtab []byte, is64 bool) (string, bool) {
	if is64 {
		return xcoffStrtabName(strtab, binary.BigEndian.Uint32(ent[8:]))
	}
	if binary.BigEndian.Uint32(ent) == 0 {
		return xcoffStrtabName(strtab, binary.BigEndian.Uint32(ent[4:]))
	}
	name := ent[:8]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return string(name), true
}

func xcoffStrtabName(strtab []byte, off uint32) (string, bool) {
	if uint64(off) >= uint64(len(strtab)) {
		return "", false
	}
	rest := strtab[off:]
	i := bytes.IndexByte(rest, 0)
	if i < 0 {
		return "", false
	}
	return string(rest[:i]), true
}
