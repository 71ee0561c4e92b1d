package obj

import (
	"bytes"

	"github.com/blacktop/go-macho"
	"github.com/blacktop/go-macho/types"
	pkgerr "github.com/pkg/errors"
)

// nlist bits not re-exported by go-macho's typed helpers.
const (
	nWeakRef types.NDescType = 0x0040
	nWeakDef types.NDescType = 0x0080
)

type machoObject struct {
	data   []byte
	triple Triple
	syms   []Symbol
}

func parseMachO(data []byte) (Object, error) {
	m, err := macho.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, pkgerr.Wrap(err, "failed to parse Mach-O")
	}
	defer m.Close()

	o := &machoObject{
		data:   data,
		triple: machoTriple(m.CPU, m.SubCPU),
	}

	if m.Symtab != nil {
		for _, s := range m.Symtab.Syms {
			o.syms = append(o.syms, machoSymbol(m, s))
		}
	}
	return o, nil
}

func machoTriple(cpu types.CPU, sub types.CPUSubtype) Triple {
	t := Triple{Format: FormatMachO}
	switch cpu {
	case types.CPUAmd64:
		t.Arch = ArchX86_64
	case types.CPUI386:
		t.Arch = ArchX86
	case types.CPUArm64:
		t.Arch = ArchAArch64
		if sub&^types.CPUSubtype(0xff000000) == types.CPUSubtypeArm64E {
			t.SubArch = SubArchArm64E
		}
	case types.CPUArm:
		t.Arch = ArchArm
		switch sub &^ types.CPUSubtype(0xff000000) {
		case types.CPUSubtypeArmV7:
			t.SubArch = SubArchArmV7
		case types.CPUSubtypeArmV7S:
			t.SubArch = SubArchArmV7S
		case types.CPUSubtypeArmV7K:
			t.SubArch = SubArchArmV7K
		}
	case types.CPUPpc:
		t.Arch = ArchPpc
	case types.CPUPpc64:
		t.Arch = ArchPpc64
	}
	return t
}

func machoSymbol(m *macho.File, s macho.Symbol) Symbol {
	sym := Symbol{Name: s.Name}

	if s.Type.IsDebugSym() {
		sym.Type = TypeDebug
		return sym
	}
	if s.Type.IsExternalSym() {
		sym.Flags |= FlagGlobal
	}
	if s.Type.IsUndefinedSym() {
		sym.Flags |= FlagUndefined
	}
	if s.Desc&(nWeakRef|nWeakDef) != 0 {
		sym.Flags |= FlagWeak
	}

	switch {
	case s.Type.IsUndefinedSym():
		sym.Type = TypeUnknown
	case s.Type.IsDefinedInSection():
		sym.Type = TypeData
		if int(s.Sect) >= 1 && int(s.Sect) <= len(m.Sections) &&
			m.Sections[s.Sect-1].Seg == "__TEXT" {
			sym.Type = TypeFunc
		}
	default:
		sym.Type = TypeData
	}
	return sym
}

func (o *machoObject) Triple() Triple    { return o.triple }
func (o *machoObject) Symbols() []Symbol { return o.syms }
func (o *machoObject) Bytes() []byte     { return o.data }
