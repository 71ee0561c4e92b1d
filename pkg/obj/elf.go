package obj

import (
	"bytes"
	"debug/elf"
	"errors"

	pkgerr "github.com/pkg/errors"
)

type elfObject struct {
	data   []byte
	triple Triple
	syms   []Symbol
}

func parseELF(data []byte) (Object, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, pkgerr.Wrap(err, "failed to parse ELF")
	}
	defer f.Close()

	o := &elfObject{
		data:   data,
		triple: Triple{Arch: elfArch(f), Format: FormatELF},
	}

	syms, err := f.Symbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return nil, pkgerr.Wrap(err, "failed to read ELF symbol table")
	}
	for _, s := range syms {
		o.syms = append(o.syms, elfSymbol(s))
	}
	return o, nil
}

func elfArch(f *elf.File) Arch {
	switch f.Machine {
	case elf.EM_X86_64:
		return ArchX86_64
	case elf.EM_386:
		return ArchX86
	case elf.EM_AARCH64:
		return ArchAArch64
	case elf.EM_ARM:
		return ArchArm
	case elf.EM_PPC:
		return ArchPpc
	case elf.EM_PPC64:
		return ArchPpc64
	case elf.EM_RISCV:
		if f.Class == elf.ELFCLASS64 {
			return ArchRiscv64
		}
		return ArchRiscv32
	}
	return ArchUnknown
}

func elfSymbol(s elf.Symbol) Symbol {
	sym := Symbol{Name: s.Name}

	switch elf.ST_BIND(s.Info) {
	case elf.STB_GLOBAL:
		sym.Flags |= FlagGlobal
	case elf.STB_WEAK:
		// Weak names are visible outside the unit but must not win over a
		// strong definition.
		sym.Flags |= FlagGlobal | FlagWeak
	}
	if s.Section == elf.SHN_UNDEF {
		sym.Flags |= FlagUndefined
	}

	switch elf.ST_TYPE(s.Info) {
	case elf.STT_FUNC, elf.STT_GNU_IFUNC:
		sym.Type = TypeFunc
	case elf.STT_OBJECT, elf.STT_COMMON, elf.STT_TLS:
		sym.Type = TypeData
	case elf.STT_FILE:
		sym.Type = TypeFile
	case elf.STT_SECTION:
		sym.Type = TypeDebug
	case elf.STT_NOTYPE:
		sym.Type = TypeUnknown
	default:
		sym.Type = TypeOther
	}
	return sym
}

func (o *elfObject) Triple() Triple    { return o.triple }
func (o *elfObject) Symbols() []Symbol { return o.syms }
func (o *elfObject) Bytes() []byte     { return o.data }
