// Package testobj synthesizes minimal relocatable objects for tests. The
// files carry a symbol table and nothing else; they are valid enough for
// debug/elf, debug/pe, go-macho and the in-tree parsers.
package testobj

import (
	"bytes"
	"encoding/binary"
)

// Sym describes one symbol to place in a synthesized object.
type Sym struct {
	Name      string
	Global    bool
	Weak      bool
	Undefined bool
}

// ELF64 returns an x86-64 relocatable ELF holding the given symbols.
func ELF64(syms []Sym) []byte {
	le := binary.LittleEndian

	// Section string table: \0 .text\0 .symtab\0 .strtab\0 .shstrtab\0
	shstr := []byte("\x00.text\x00.symtab\x00.strtab\x00.shstrtab\x00")
	shName := map[string]uint32{".text": 1, ".symtab": 7, ".strtab": 15, ".shstrtab": 23}

	strtab := []byte{0}
	nameOff := make([]uint32, len(syms))
	for i, s := range syms {
		nameOff[i] = uint32(len(strtab))
		strtab = append(strtab, s.Name...)
		strtab = append(strtab, 0)
	}

	var symtab bytes.Buffer
	symtab.Write(make([]byte, 24)) // null entry
	var ent [24]byte
	for i, s := range syms {
		for j := range ent {
			ent[j] = 0
		}
		le.PutUint32(ent[0:], nameOff[i])
		bind := byte(0) // STB_LOCAL
		if s.Weak {
			bind = 2 // STB_WEAK
		} else if s.Global {
			bind = 1 // STB_GLOBAL
		}
		ent[4] = bind<<4 | 2 // STT_FUNC
		if s.Undefined {
			le.PutUint16(ent[6:], 0) // SHN_UNDEF
		} else {
			le.PutUint16(ent[6:], 1) // .text
		}
		symtab.Write(ent[:])
	}

	const ehsize = 64
	symOff := uint64(ehsize)
	strOff := symOff + uint64(symtab.Len())
	shstrOff := strOff + uint64(len(strtab))
	shOff := (shstrOff + uint64(len(shstr)) + 7) &^ 7

	var buf bytes.Buffer
	ehdr := make([]byte, ehsize)
	copy(ehdr, "\x7fELF")
	ehdr[4] = 2 // ELFCLASS64
	ehdr[5] = 1 // ELFDATA2LSB
	ehdr[6] = 1 // EV_CURRENT
	le.PutUint16(ehdr[16:], 1)    // ET_REL
	le.PutUint16(ehdr[18:], 0x3e) // EM_X86_64
	le.PutUint32(ehdr[20:], 1)
	le.PutUint64(ehdr[40:], shOff)
	le.PutUint16(ehdr[52:], ehsize)
	le.PutUint16(ehdr[58:], 64) // e_shentsize
	le.PutUint16(ehdr[60:], 5)  // e_shnum
	le.PutUint16(ehdr[62:], 4)  // e_shstrndx
	buf.Write(ehdr)

	buf.Write(symtab.Bytes())
	buf.Write(strtab)
	buf.Write(shstr)
	for buf.Len() < int(shOff) {
		buf.WriteByte(0)
	}

	shdr := func(name uint32, typ uint32, off, size uint64, link, info uint32, entsize uint64) {
		h := make([]byte, 64)
		le.PutUint32(h[0:], name)
		le.PutUint32(h[4:], typ)
		le.PutUint64(h[24:], off)
		le.PutUint64(h[32:], size)
		le.PutUint32(h[40:], link)
		le.PutUint32(h[44:], info)
		le.PutUint64(h[48:], 1)
		le.PutUint64(h[56:], entsize)
		buf.Write(h)
	}
	shdr(0, 0, 0, 0, 0, 0, 0)                                                      // SHN_UNDEF
	shdr(shName[".text"], 1, ehsize, 0, 0, 0, 0)                                   // .text (empty PROGBITS)
	shdr(shName[".symtab"], 2, symOff, uint64(symtab.Len()), 3, uint32(1), 24)     // .symtab
	shdr(shName[".strtab"], 3, strOff, uint64(len(strtab)), 0, 0, 0)               // .strtab
	shdr(shName[".shstrtab"], 3, shstrOff, uint64(len(shstr)), 0, 0, 0)            // .shstrtab
	return buf.Bytes()
}

// Mach-O cpu constants used by the synthesizers.
const (
	CPUX8664 = 0x01000007
	CPUArm64 = 0x0100000c
)

// MachO64 returns a 64-bit Mach-O object for the given cpu type holding the
// given symbols. Names should carry the Mach-O leading underscore.
func MachO64(cputype uint32, syms []Sym) []byte {
	le := binary.LittleEndian

	strtab := []byte{0}
	nameOff := make([]uint32, len(syms))
	for i, s := range syms {
		nameOff[i] = uint32(len(strtab))
		strtab = append(strtab, s.Name...)
		strtab = append(strtab, 0)
	}

	const (
		hdrSize = 32
		cmdSize = 24
		entSize = 16
	)
	symOff := uint32(hdrSize + cmdSize)
	strOff := symOff + uint32(len(syms))*entSize

	var buf bytes.Buffer
	hdr := make([]byte, hdrSize)
	le.PutUint32(hdr[0:], 0xfeedfacf)
	le.PutUint32(hdr[4:], cputype)
	le.PutUint32(hdr[8:], 0)
	le.PutUint32(hdr[12:], 1) // MH_OBJECT
	le.PutUint32(hdr[16:], 1)
	le.PutUint32(hdr[20:], cmdSize)
	buf.Write(hdr)

	cmd := make([]byte, cmdSize)
	le.PutUint32(cmd[0:], 0x2) // LC_SYMTAB
	le.PutUint32(cmd[4:], cmdSize)
	le.PutUint32(cmd[8:], symOff)
	le.PutUint32(cmd[12:], uint32(len(syms)))
	le.PutUint32(cmd[16:], strOff)
	le.PutUint32(cmd[20:], uint32(len(strtab)))
	buf.Write(cmd)

	var ent [entSize]byte
	for i, s := range syms {
		for j := range ent {
			ent[j] = 0
		}
		le.PutUint32(ent[0:], nameOff[i])
		var ntype, nsect byte
		var ndesc uint16
		if s.Undefined {
			ntype = 0x0 // N_UNDF
			if s.Weak {
				ndesc = 0x0040 // N_WEAK_REF
			}
		} else {
			ntype = 0xe // N_SECT
			nsect = 1
			if s.Weak {
				ndesc = 0x0080 // N_WEAK_DEF
			}
		}
		if s.Global {
			ntype |= 0x01 // N_EXT
		}
		ent[4] = ntype
		ent[5] = nsect
		le.PutUint16(ent[6:], ndesc)
		buf.Write(ent[:])
	}
	buf.Write(strtab)
	return buf.Bytes()
}

// COFF returns an amd64 COFF object holding the given symbols. Long names
// land in the trailing string table.
func COFF(syms []Sym) []byte {
	le := binary.LittleEndian

	strtab := []byte{0, 0, 0, 0}
	var buf bytes.Buffer
	hdr := make([]byte, 20)
	le.PutUint16(hdr[0:], 0x8664)
	le.PutUint32(hdr[8:], 20) // PointerToSymbolTable
	le.PutUint32(hdr[12:], uint32(len(syms)))
	buf.Write(hdr)

	var ent [18]byte
	for _, s := range syms {
		for j := range ent {
			ent[j] = 0
		}
		if len(s.Name) <= 8 {
			copy(ent[:8], s.Name)
		} else {
			le.PutUint32(ent[4:], uint32(len(strtab)))
			strtab = append(strtab, s.Name...)
			strtab = append(strtab, 0)
		}
		if !s.Undefined {
			le.PutUint16(ent[12:], 1) // section 1
		}
		le.PutUint16(ent[14:], 0x20) // DTYPE_FUNCTION
		if s.Weak {
			ent[16] = 105 // IMAGE_SYM_CLASS_WEAK_EXTERNAL
		} else if s.Global {
			ent[16] = 2 // IMAGE_SYM_CLASS_EXTERNAL
		} else {
			ent[16] = 3 // IMAGE_SYM_CLASS_STATIC
		}
		buf.Write(ent[:])
	}
	le.PutUint32(strtab, uint32(len(strtab)))
	buf.Write(strtab)
	return buf.Bytes()
}

// XCOFF32 returns a 32-bit XCOFF object holding the given symbols.
func XCOFF32(syms []Sym) []byte {
	be := binary.BigEndian

	strtab := []byte{0, 0, 0, 0}
	var buf bytes.Buffer
	hdr := make([]byte, 20)
	be.PutUint16(hdr[0:], 0x01DF)
	be.PutUint32(hdr[8:], 20) // symptr
	be.PutUint32(hdr[12:], uint32(len(syms)))
	buf.Write(hdr)

	var ent [18]byte
	for _, s := range syms {
		for j := range ent {
			ent[j] = 0
		}
		if len(s.Name) <= 8 {
			copy(ent[:8], s.Name)
		} else {
			be.PutUint32(ent[4:], uint32(len(strtab)))
			strtab = append(strtab, s.Name...)
			strtab = append(strtab, 0)
		}
		if !s.Undefined {
			be.PutUint16(ent[12:], 1)
		}
		if s.Weak {
			ent[16] = 111 // C_WEAKEXT
		} else if s.Global {
			ent[16] = 2 // C_EXT
		} else {
			ent[16] = 107 // C_HIDEXT
		}
		buf.Write(ent[:])
	}
	be.PutUint32(strtab, uint32(len(strtab)))
	buf.Write(strtab)
	return buf.Bytes()
}

// Wasm returns a wasm object whose linking section holds the given symbols
// as data symbols.
func Wasm(syms []Sym) []byte {
	var sec bytes.Buffer
	putName(&sec, "linking")
	putUleb(&sec, 2) // metadata version

	var symtab bytes.Buffer
	putUleb(&symtab, uint64(len(syms)))
	for _, s := range syms {
		symtab.WriteByte(1) // SYMTAB_DATA
		var flags uint64
		if s.Weak {
			flags |= 0x01
		}
		if !s.Global {
			flags |= 0x02
		}
		if s.Undefined {
			flags |= 0x10
		}
		putUleb(&symtab, flags)
		putName(&symtab, s.Name)
		if !s.Undefined {
			putUleb(&symtab, 0) // segment
			putUleb(&symtab, 0) // offset
			putUleb(&symtab, 0) // size
		}
	}
	sec.WriteByte(8) // WASM_SYMBOL_TABLE
	putUleb(&sec, uint64(symtab.Len()))
	sec.Write(symtab.Bytes())

	var buf bytes.Buffer
	buf.WriteString("\x00asm\x01\x00\x00\x00")
	buf.WriteByte(0) // custom section
	putUleb(&buf, uint64(sec.Len()))
	buf.Write(sec.Bytes())
	return buf.Bytes()
}

func putUleb(buf *bytes.Buffer, v uint64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf.WriteByte(b)
		if v == 0 {
			return
		}
	}
}

func putName(buf *bytes.Buffer, s string) {
	putUleb(buf, uint64(len(s)))
	buf.WriteString(s)
}
