package obj

import (
	"encoding/binary"
	"fmt"

	"github.com/blacktop/go-macho/types"
)

const fatArchSize = 20

// parseUniversal reads a fat Mach-O container. Slices are kept as raw byte
// ranges; each one is either a thin Mach-O object or an archive of Mach-O
// objects, and is parsed lazily by the consumer.
func parseUniversal(data []byte) (*Universal, error) {
	if len(data) < 8 {
		return nil, ErrUnknownFormat
	}
	count := binary.BigEndian.Uint32(data[4:])
	if count == 0 {
		return nil, fmt.Errorf("fat Mach-O with no architectures")
	}
	if uint64(8+count*fatArchSize) > uint64(len(data)) {
		return nil, fmt.Errorf("truncated fat Mach-O header")
	}

	fat := &Universal{Slices: make([]Slice, 0, count)}
	for i := uint32(0); i < count; i++ {
		ent := data[8+i*fatArchSize : 8+(i+1)*fatArchSize]
		cpu := types.CPU(binary.BigEndian.Uint32(ent))
		sub := types.CPUSubtype(binary.BigEndian.Uint32(ent[4:]))
		off := binary.BigEndian.Uint32(ent[8:])
		size := binary.BigEndian.Uint32(ent[12:])
		align := binary.BigEndian.Uint32(ent[16:])

		if uint64(off)+uint64(size) > uint64(len(data)) {
			return nil, fmt.Errorf("fat Mach-O slice %d overruns file", i)
		}
		blob := data[off : off+size]

		sl := Slice{
			Triple: machoTriple(cpu, sub),
			Align:  align,
			Data:   blob,
		}
		switch {
		case len(blob) >= len(arMagic) && string(blob[:len(arMagic)]) == arMagic:
			sl.Kind = SliceArchive
		case len(blob) >= 4 && isMachOMagic(binary.LittleEndian.Uint32(blob)):
			sl.Kind = SliceObject
		default:
			return nil, fmt.Errorf("fat Mach-O slice %d is neither an object nor an archive", i)
		}
		fat.Slices = append(fat.Slices, sl)
	}
	return fat, nil
}

// CPUForTriple maps a triple back to Mach-O cputype/cpusubtype, for fat
// header emission.
func CPUForTriple(t Triple) (types.CPU, types.CPUSubtype, error) {
	switch t.Arch {
	case ArchX86_64:
		return types.CPUAmd64, types.CPUSubtypeX8664All, nil
	case ArchX86:
		return types.CPUI386, types.CPUSubtype(3), nil
	case ArchAArch64:
		if t.SubArch == SubArchArm64E {
			return types.CPUArm64, types.CPUSubtypeArm64E, nil
		}
		return types.CPUArm64, types.CPUSubtypeArm64All, nil
	case ArchArm:
		switch t.SubArch {
		case SubArchArmV7:
			return types.CPUArm, types.CPUSubtypeArmV7, nil
		case SubArchArmV7S:
			return types.CPUArm, types.CPUSubtypeArmV7S, nil
		case SubArchArmV7K:
			return types.CPUArm, types.CPUSubtypeArmV7K, nil
		}
		return types.CPUArm, types.CPUSubtype(0), nil
	case ArchPpc:
		return types.CPUPpc, types.CPUSubtype(0), nil
	case ArchPpc64:
		return types.CPUPpc64, types.CPUSubtype(0), nil
	}
	return 0, 0, fmt.Errorf("no Mach-O cpu type for %s", t)
}
