package bartleby

import (
	"fmt"

	"github.com/blacktop/bartleby/pkg/obj"
)

// ObjectFormat identifies the (architecture, sub-architecture, container)
// triple of an object. Two formats are equal iff all three fields match;
// Pack gives a canonical 64-bit encoding used as the hash.
type ObjectFormat struct {
	Arch    obj.Arch
	SubArch obj.SubArch
	Format  obj.Format
}

// FormatOf derives the ObjectFormat of a parsed triple.
func FormatOf(t obj.Triple) ObjectFormat {
	return ObjectFormat{Arch: t.Arch, SubArch: t.SubArch, Format: t.Format}
}

// Pack encodes the format as arch | subarch<<16 | container<<32.
func (f ObjectFormat) Pack() uint64 {
	return uint64(f.Arch) | uint64(f.SubArch)<<16 | uint64(f.Format)<<32
}

// Matches reports whether a triple packs to this format.
func (f ObjectFormat) Matches(t obj.Triple) bool {
	return FormatOf(t).Pack() == f.Pack()
}

// Triple converts back to the parser's triple form.
func (f ObjectFormat) Triple() obj.Triple {
	return obj.Triple{Arch: f.Arch, SubArch: f.SubArch, Format: f.Format}
}

func (f ObjectFormat) String() string {
	return fmt.Sprintf("ObjectFormat(arch=%s, subarch=%d, file format=%s)", f.Arch, f.SubArch, f.Format)
}
