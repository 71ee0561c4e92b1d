package obj

import "fmt"

// Arch is the architecture half of a triple.
type Arch uint16

const (
	ArchUnknown Arch = iota
	ArchX86
	ArchX86_64
	ArchArm
	ArchAArch64
	ArchPpc
	ArchPpc64
	ArchRiscv32
	ArchRiscv64
	ArchWasm32
	ArchWasm64
)

var archNames = map[Arch]string{
	ArchUnknown: "unknown",
	ArchX86:     "i386",
	ArchX86_64:  "x86_64",
	ArchArm:     "arm",
	ArchAArch64: "arm64",
	ArchPpc:     "powerpc",
	ArchPpc64:   "powerpc64",
	ArchRiscv32: "riscv32",
	ArchRiscv64: "riscv64",
	ArchWasm32:  "wasm32",
	ArchWasm64:  "wasm64",
}

func (a Arch) String() string {
	if s, ok := archNames[a]; ok {
		return s
	}
	return fmt.Sprintf("arch(%d)", uint16(a))
}

// SubArch refines an Arch (arm64 vs arm64e, armv7 vs armv7s).
type SubArch uint16

const (
	SubArchNone SubArch = iota
	SubArchArm64E
	SubArchArmV7
	SubArchArmV7S
	SubArchArmV7K
)

var subArchNames = map[SubArch]string{
	SubArchNone:   "",
	SubArchArm64E: "e",
	SubArchArmV7:  "v7",
	SubArchArmV7S: "v7s",
	SubArchArmV7K: "v7k",
}

func (s SubArch) String() string {
	if n, ok := subArchNames[s]; ok {
		return n
	}
	return fmt.Sprintf("sub(%d)", uint16(s))
}

// Format is the container family of an object file.
type Format uint16

const (
	FormatUnknown Format = iota
	FormatELF
	FormatMachO
	FormatCOFF
	FormatWasm
	FormatXCOFF
)

var formatNames = map[Format]string{
	FormatUnknown: "unknown",
	FormatELF:     "elf",
	FormatMachO:   "macho",
	FormatCOFF:    "coff",
	FormatWasm:    "wasm",
	FormatXCOFF:   "xcoff",
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return fmt.Sprintf("format(%d)", uint16(f))
}

// Triple identifies an object file: architecture, sub-architecture and
// container format.
type Triple struct {
	Arch    Arch
	SubArch SubArch
	Format  Format
}

func (t Triple) String() string {
	return t.Arch.String() + t.SubArch.String() + "-" + t.Format.String()
}
