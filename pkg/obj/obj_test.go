package obj

import (
	"testing"

	"github.com/blacktop/bartleby/internal/testobj"
)

func findSym(t *testing.T, syms []Symbol, name string) Symbol {
	t.Helper()
	for _, s := range syms {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("symbol %q not found in %v", name, syms)
	return Symbol{}
}

func TestParseObjectFormats(t *testing.T) {
	syms := []testobj.Sym{
		{Name: "defined_global", Global: true},
		{Name: "defined_local"},
		{Name: "undefined_global", Global: true, Undefined: true},
		{Name: "weak_sym", Global: true, Weak: true},
	}
	machoSyms := []testobj.Sym{
		{Name: "_defined_global", Global: true},
		{Name: "_defined_local"},
		{Name: "_undefined_global", Global: true, Undefined: true},
		{Name: "_weak_sym", Global: true, Weak: true},
	}

	tests := []struct {
		name   string
		data   []byte
		format Format
		arch   Arch
		prefix string
	}{
		{"elf", testobj.ELF64(syms), FormatELF, ArchX86_64, ""},
		{"macho", testobj.MachO64(testobj.CPUArm64, machoSyms), FormatMachO, ArchAArch64, "_"},
		{"coff", testobj.COFF(syms), FormatCOFF, ArchX86_64, ""},
		{"xcoff", testobj.XCOFF32(syms), FormatXCOFF, ArchPpc, ""},
		{"wasm", testobj.Wasm(syms), FormatWasm, ArchWasm32, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := ParseObject(tt.data)
			if err != nil {
				t.Fatalf("ParseObject() error = %v", err)
			}
			if got := o.Triple().Format; got != tt.format {
				t.Errorf("format = %s, want %s", got, tt.format)
			}
			if got := o.Triple().Arch; got != tt.arch {
				t.Errorf("arch = %s, want %s", got, tt.arch)
			}

			dg := findSym(t, o.Symbols(), tt.prefix+"defined_global")
			if dg.Flags&FlagGlobal == 0 || dg.Flags&FlagUndefined != 0 {
				t.Errorf("defined_global flags = %#x", dg.Flags)
			}
			dl := findSym(t, o.Symbols(), tt.prefix+"defined_local")
			if dl.Flags&FlagGlobal != 0 {
				t.Errorf("defined_local flags = %#x", dl.Flags)
			}
			ug := findSym(t, o.Symbols(), tt.prefix+"undefined_global")
			if ug.Flags&FlagGlobal == 0 || ug.Flags&FlagUndefined == 0 {
				t.Errorf("undefined_global flags = %#x", ug.Flags)
			}
			ws := findSym(t, o.Symbols(), tt.prefix+"weak_sym")
			if ws.Flags&FlagWeak == 0 {
				t.Errorf("weak_sym flags = %#x", ws.Flags)
			}
		})
	}
}

func TestParseDispatch(t *testing.T) {
	elf := testobj.ELF64([]testobj.Sym{{Name: "x", Global: true}})

	bin, err := Parse(elf)
	if err != nil {
		t.Fatalf("Parse(elf) error = %v", err)
	}
	if _, ok := bin.(*ObjectFile); !ok {
		t.Errorf("Parse(elf) = %T, want *ObjectFile", bin)
	}

	if _, err := Parse([]byte("definitely not an object file")); err == nil {
		t.Error("Parse(garbage) expected an error")
	}
}

func TestCPUForTriple(t *testing.T) {
	tests := []struct {
		triple  Triple
		wantCPU uint32
		wantErr bool
	}{
		{Triple{Arch: ArchAArch64, Format: FormatMachO}, testobj.CPUArm64, false},
		{Triple{Arch: ArchX86_64, Format: FormatMachO}, testobj.CPUX8664, false},
		{Triple{Arch: ArchWasm32, Format: FormatWasm}, 0, true},
	}
	for _, tt := range tests {
		cpu, _, err := CPUForTriple(tt.triple)
		if tt.wantErr {
			if err == nil {
				t.Errorf("CPUForTriple(%s) expected an error", tt.triple)
			}
			continue
		}
		if err != nil {
			t.Errorf("CPUForTriple(%s) error = %v", tt.triple, err)
			continue
		}
		if uint32(cpu) != tt.wantCPU {
			t.Errorf("CPUForTriple(%s) = %#x, want %#x", tt.triple, uint32(cpu), tt.wantCPU)
		}
	}
}
