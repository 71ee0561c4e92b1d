// Package obj parses relocatable object files, static archives and Mach-O
// universal binaries just far enough to enumerate their symbols. It does not
// resolve relocations or layout; it is the ingestion side of bartleby.
package obj

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrUnknownFormat is returned when input bytes match none of the supported
// container magics.
var ErrUnknownFormat = errors.New("unknown binary format")

// Flag bits reported for a symbol occurrence.
type Flag uint32

const (
	FlagGlobal Flag = 1 << iota
	FlagWeak
	FlagUndefined
)

// SymType classifies a symbol occurrence. File, Debug and Other entries are
// bookkeeping, not linkable names, and are skipped by consumers.
type SymType int

const (
	TypeUnknown SymType = iota
	TypeFunc
	TypeData
	TypeFile
	TypeDebug
	TypeOther
)

// Symbol is one occurrence of a name inside an object. Err is set when any
// of the fields could not be retrieved; such occurrences carry no usable
// information.
type Symbol struct {
	Name  string
	Flags Flag
	Type  SymType
	Err   bool
}

// Object is a parsed relocatable object of any supported family.
type Object interface {
	Triple() Triple
	Symbols() []Symbol
	// Bytes returns the raw bytes the object was parsed from.
	Bytes() []byte
}

// Binary is the tagged result of Parse: *ObjectFile, *Archive or *Universal.
type Binary interface {
	binary()
}

// ObjectFile wraps a single parsed object.
type ObjectFile struct {
	Object
}

func (*ObjectFile) binary() {}

// Member is one child of an archive, in archive order.
type Member struct {
	// Name is the member name as stored in the archive, empty when the
	// archive carries no usable name for it.
	Name string
	Data []byte
}

// Archive is a parsed ar-style static archive.
type Archive struct {
	Members []Member
}

func (*Archive) binary() {}

// SliceKind says what a universal slice contains.
type SliceKind int

const (
	SliceObject SliceKind = iota
	SliceArchive
)

// Slice is one architecture of a universal binary.
type Slice struct {
	Triple Triple
	Kind   SliceKind
	Align  uint32 // power of two exponent from the fat header
	Data   []byte
}

// Universal is a parsed fat Mach-O container.
type Universal struct {
	Slices []Slice
}

func (*Universal) binary() {}

const arMagic = "!<arch>\n"

// Parse detects the container family of data and parses it. The returned
// Binary is an *ObjectFile, an *Archive or a *Universal.
func Parse(data []byte) (Binary, error) {
	if len(data) >= len(arMagic) && string(data[:len(arMagic)]) == arMagic {
		ar, err := parseArchive(data)
		if err != nil {
			return nil, err
		}
		return ar, nil
	}
	if isUniversal(data) {
		fat, err := parseUniversal(data)
		if err != nil {
			return nil, err
		}
		return fat, nil
	}
	o, err := ParseObject(data)
	if err != nil {
		return nil, err
	}
	return &ObjectFile{Object: o}, nil
}

// ParseObject parses data as a single relocatable object.
func ParseObject(data []byte) (Object, error) {
	if len(data) < 8 {
		return nil, ErrUnknownFormat
	}
	switch {
	case data[0] == 0x7f && data[1] == 'E' && data[2] == 'L' && data[3] == 'F':
		return parseELF(data)
	case isMachOMagic(binary.LittleEndian.Uint32(data)):
		return parseMachO(data)
	case string(data[:4]) == "\x00asm":
		return parseWasm(data)
	case binary.BigEndian.Uint16(data) == xcoffMagic32 || binary.BigEndian.Uint16(data) == xcoffMagic64:
		return parseXCOFF(data)
	case isCOFFMachine(binary.LittleEndian.Uint16(data)):
		return parseCOFF(data)
	}
	return nil, ErrUnknownFormat
}

const (
	machoMagic32   = 0xfeedface
	machoMagic64   = 0xfeedfacf
	machoCigam32   = 0xcefaedfe
	machoCigam64   = 0xcffaedfe
	universalMagic = 0xcafebabe
)

func isMachOMagic(m uint32) bool {
	switch m {
	case machoMagic32, machoMagic64, machoCigam32, machoCigam64:
		return true
	}
	return false
}

func isUniversal(data []byte) bool {
	return len(data) >= 8 && binary.BigEndian.Uint32(data) == universalMagic
}

func isCOFFMachine(m uint16) bool {
	switch m {
	case coffMachineAmd64, coffMachineI386, coffMachineArmNT, coffMachineArm64:
		return true
	}
	return false
}

// KindString names a Binary for diagnostics.
func KindString(b Binary) string {
	switch b.(type) {
	case *ObjectFile:
		return "object"
	case *Archive:
		return "archive"
	case *Universal:
		return "universal mach-o"
	default:
		return fmt.Sprintf("%T", b)
	}
}
