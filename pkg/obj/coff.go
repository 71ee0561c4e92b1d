package obj

import (
	"bytes"
	"debug/pe"

	pkgerr "github.com/pkg/errors"
)

const (
	coffMachineI386  = 0x014c
	coffMachineArmNT = 0x01c4
	coffMachineAmd64 = 0x8664
	coffMachineArm64 = 0xaa64
)

// Storage classes and special section numbers from the PE/COFF spec;
// debug/pe does not export them.
const (
	coffSymClassExternal     = 2
	coffSymClassStatic       = 3
	coffSymClassFile         = 103
	coffSymClassWeakExternal = 105

	coffSymUndefined = 0
	coffSymDebug     = -2

	coffSymDTypeFunction = 2
)

type coffObject struct {
	data   []byte
	triple Triple
	syms   []Symbol
}

func parseCOFF(data []byte) (Object, error) {
	f, err := pe.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, pkgerr.Wrap(err, "failed to parse COFF")
	}
	defer f.Close()

	o := &coffObject{
		data:   data,
		triple: Triple{Arch: coffArch(f.Machine), Format: FormatCOFF},
	}

	for i := 0; i < len(f.COFFSymbols); i++ {
		s := f.COFFSymbols[i]
		sym := coffSymbol(&s)
		name, err := s.FullName(f.StringTable)
		if err != nil {
			sym.Err = true
		} else {
			sym.Name = name
		}
		o.syms = append(o.syms, sym)
		i += int(s.NumberOfAuxSymbols)
	}
	return o, nil
}

func coffArch(machine uint16) Arch {
	switch machine {
	case coffMachineAmd64:
		return ArchX86_64
	case coffMachineI386:
		return ArchX86
	case coffMachineArm64:
		return ArchAArch64
	case coffMachineArmNT:
		return ArchArm
	}
	return ArchUnknown
}

func coffSymbol(s *pe.COFFSymbol) Symbol {
	var sym Symbol

	switch s.StorageClass {
	case coffSymClassExternal:
		sym.Flags |= FlagGlobal
		if s.SectionNumber == coffSymUndefined {
			sym.Flags |= FlagUndefined
		}
	case coffSymClassWeakExternal:
		sym.Flags |= FlagGlobal | FlagWeak | FlagUndefined
	}

	switch {
	case s.StorageClass == coffSymClassFile:
		sym.Type = TypeFile
	case s.SectionNumber == coffSymDebug:
		sym.Type = TypeDebug
	case s.StorageClass == coffSymClassStatic && s.Value == 0 && s.NumberOfAuxSymbols > 0:
		// Section definition entry (".text" with an aux record).
		sym.Type = TypeDebug
	case s.Type>>4 == coffSymDTypeFunction:
		sym.Type = TypeFunc
	case s.StorageClass == coffSymClassExternal && s.SectionNumber == coffSymUndefined:
		sym.Type = TypeUnknown
	case s.StorageClass == coffSymClassExternal || s.StorageClass == coffSymClassStatic:
		sym.Type = TypeData
	default:
		sym.Type = TypeOther
	}
	return sym
}

func (o *coffObject) Triple() Triple    { return o.triple }
func (o *coffObject) Symbols() []Symbol { return o.syms }
func (o *coffObject) Bytes() []byte     { return o.data }
