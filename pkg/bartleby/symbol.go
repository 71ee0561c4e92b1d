package bartleby

import "github.com/blacktop/bartleby/pkg/obj"

// Symbol is the per-name aggregate over every ingested occurrence. The
// global and defined flags only ever go false to true; a weak occurrence
// contributes neither. The container format tracks the most recent
// occurrence and exists to answer IsMachO.
type Symbol struct {
	global    bool
	defined   bool
	format    obj.Format
	overwrite string
	renamed   bool
}

func (s *Symbol) update(info obj.Symbol, format obj.Format) {
	if info.Flags&obj.FlagWeak == 0 {
		if info.Flags&obj.FlagUndefined == 0 {
			s.defined = true
		}
		if info.Flags&obj.FlagGlobal != 0 {
			s.global = true
		}
	}
	s.format = format
}

// Global reports whether any occurrence exposed the name with non-weak
// global linkage.
func (s *Symbol) Global() bool { return s.global }

// Defined reports whether any occurrence carried a non-weak definition.
func (s *Symbol) Defined() bool { return s.defined }

// IsMachO reports whether the last observed occurrence came from a Mach-O
// object.
func (s *Symbol) IsMachO() bool { return s.format == obj.FormatMachO }

// SetName records the rename target applied at emission.
func (s *Symbol) SetName(name string) {
	s.overwrite = name
	s.renamed = true
}

// OverwriteName returns the pending rename target, if one was set.
func (s *Symbol) OverwriteName() (string, bool) {
	return s.overwrite, s.renamed
}
