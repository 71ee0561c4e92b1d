// Package lipo assembles Mach-O universal (fat) binaries from prebuilt
// slices. It only writes; reading lives in pkg/obj.
package lipo

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	"github.com/blacktop/go-macho/types"
)

const (
	fatMagic    = 0xcafebabe
	fatArchSize = 20
	// defaultAlign is what cctools lipo uses for object slices when the
	// input carries no alignment of its own.
	defaultAlign = 3
)

// Slice is one architecture worth of payload, typically a thin Mach-O or a
// static archive of Mach-O objects.
type Slice struct {
	CPU    types.CPU
	SubCPU types.CPUSubtype
	// Align is the power-of-two exponent the slice offset must honor.
	// Zero means defaultAlign.
	Align uint32
	Data  []byte
}

// CreateBytes writes a fat container holding the given slices. Slices are
// ordered by (cputype, cpusubtype) so output does not depend on caller
// ordering.
func CreateBytes(slices []Slice) ([]byte, error) {
	if len(slices) == 0 {
		return nil, fmt.Errorf("cannot create a fat file with no slices")
	}

	sorted := make([]Slice, len(slices))
	copy(sorted, slices)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CPU != sorted[j].CPU {
			return sorted[i].CPU < sorted[j].CPU
		}
		return sorted[i].SubCPU < sorted[j].SubCPU
	})

	type layout struct {
		off   uint32
		align uint32
	}
	layouts := make([]layout, len(sorted))

	pos := uint64(8 + fatArchSize*len(sorted))
	for i, sl := range sorted {
		align := sl.Align
		if align == 0 {
			align = defaultAlign
		}
		mask := uint64(1)<<align - 1
		pos = (pos + mask) &^ mask
		if pos > 0xffffffff || pos+uint64(len(sl.Data)) > 0xffffffff {
			return nil, fmt.Errorf("fat file exceeds 4GiB")
		}
		layouts[i] = layout{off: uint32(pos), align: align}
		pos += uint64(len(sl.Data))
	}

	var buf bytes.Buffer
	var u32 [4]byte
	put := func(v uint32) {
		binary.BigEndian.PutUint32(u32[:], v)
		buf.Write(u32[:])
	}

	put(fatMagic)
	put(uint32(len(sorted)))
	for i, sl := range sorted {
		put(uint32(sl.CPU))
		put(uint32(sl.SubCPU))
		put(layouts[i].off)
		put(uint32(len(sl.Data)))
		put(layouts[i].align)
	}
	for i, sl := range sorted {
		for buf.Len() < int(layouts[i].off) {
			buf.WriteByte(0)
		}
		buf.Write(sl.Data)
	}
	return buf.Bytes(), nil
}

// CreateFile writes a fat container to path.
func CreateFile(path string, slices []Slice) error {
	data, err := CreateBytes(slices)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
