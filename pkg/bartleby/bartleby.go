// Package bartleby merges relocatable objects and static archives into a
// single static library, optionally prefixing every symbol that is both
// global and defined so the result cannot clash with its consumers.
package bartleby

import (
	"fmt"

	"github.com/blacktop/bartleby/pkg/obj"
)

type formatState int

const (
	stateUnset formatState = iota
	stateSingle
	stateFat
)

type objectEntry struct {
	obj   obj.Object
	name  string
	align uint32
}

// Handle accumulates inputs and their merged symbol table. It is created
// empty, grown by Add, annotated by PrefixGlobalAndDefinedSymbols, and
// consumed by Build/BuildBytes. A Handle that returned an error from Add
// holds partial state and must only be discarded.
type Handle struct {
	symbols map[string]*Symbol
	objects []objectEntry

	state  formatState
	single ObjectFormat
	fatSet map[uint64]ObjectFormat

	consumed bool
	log      Logger
}

// New returns an empty Handle.
func New() *Handle {
	return &Handle{
		symbols: make(map[string]*Symbol),
		log:     nopLogger{},
	}
}

// SetLogger attaches a diagnostic sink. A nil l restores the no-op sink.
func (h *Handle) SetLogger(l Logger) {
	if l == nil {
		h.log = nopLogger{}
		return
	}
	h.log = l
}

// Symbols exposes the merged symbol table keyed by name. The returned map
// is the Handle's own state and must not be modified.
func (h *Handle) Symbols() map[string]*Symbol {
	return h.symbols
}

// Add ingests one owning binary: a relocatable object, a static archive of
// objects, or a Mach-O universal container.
func (h *Handle) Add(data []byte) error {
	if h.consumed {
		return fmt.Errorf("handle was already consumed by a build")
	}

	bin, err := obj.Parse(data)
	if err != nil {
		return &UnsupportedBinaryError{Msg: err.Error()}
	}

	switch b := bin.(type) {
	case *obj.ObjectFile:
		return h.addObject(b.Object, "", 0)
	case *obj.Archive:
		return h.addArchive(b)
	case *obj.Universal:
		return h.addMachOUniversal(b)
	}
	return &UnsupportedBinaryError{Msg: fmt.Sprintf("unhandled binary kind %q", obj.KindString(bin))}
}

// addObject reconciles one object against the format state and folds its
// symbols. An empty name means "use the positional <N>.o default".
func (h *Handle) addObject(o obj.Object, name string, align uint32) error {
	f := FormatOf(o.Triple())

	switch h.state {
	case stateUnset:
		h.state = stateSingle
		h.single = f
	case stateSingle:
		if h.single.Pack() != f.Pack() {
			return &FormatMismatchError{Expected: h.single, Found: f}
		}
	case stateFat:
		return &FatMachOError{Msg: fmt.Sprintf("expected a fat Mach-O, got an object of type %s", f)}
	}

	h.foldSymbols(o)
	h.appendEntry(o, name, align)
	return nil
}

func (h *Handle) addArchive(a *obj.Archive) error {
	for _, m := range a.Members {
		o, err := obj.ParseObject(m.Data)
		if err != nil {
			return &UnsupportedBinaryError{Msg: fmt.Sprintf("archive member %q is not an object file: %v", m.Name, err)}
		}
		if err := h.addObject(o, m.Name, 0); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handle) addMachOUniversal(u *obj.Universal) error {
	switch h.state {
	case stateSingle:
		return &FatMachOError{Msg: fmt.Sprintf("expected an object of type %s, got a fat Mach-O", h.single)}
	case stateFat:
		if len(h.fatSet) != len(u.Slices) {
			return &FatMachOError{
				Msg: fmt.Sprintf("expected a fat Mach-O with %d arch(s), got %d arch(s)", len(h.fatSet), len(u.Slices)),
			}
		}
	case stateUnset:
		set := make(map[uint64]ObjectFormat, len(u.Slices))
		for _, sl := range u.Slices {
			f := FormatOf(sl.Triple)
			set[f.Pack()] = f
		}
		if len(set) < 2 {
			return &FatMachOError{Msg: "fat Mach-O with a single architecture"}
		}
		h.state = stateFat
		h.fatSet = set
	}

	for _, sl := range u.Slices {
		f := FormatOf(sl.Triple)
		if _, ok := h.fatSet[f.Pack()]; !ok {
			return &FatMachOError{Msg: fmt.Sprintf("unexpected triple %s in fat Mach-O", sl.Triple)}
		}

		switch sl.Kind {
		case obj.SliceObject:
			o, err := obj.ParseObject(sl.Data)
			if err != nil {
				return &FatMachOError{Msg: fmt.Sprintf("failed to parse %s slice: %v", sl.Triple, err)}
			}
			h.foldSymbols(o)
			h.appendEntry(o, "", sl.Align)
		case obj.SliceArchive:
			bin, err := obj.Parse(sl.Data)
			if err != nil {
				return &FatMachOError{Msg: fmt.Sprintf("failed to parse %s slice archive: %v", sl.Triple, err)}
			}
			a, ok := bin.(*obj.Archive)
			if !ok {
				return &FatMachOError{Msg: fmt.Sprintf("expected an archive in %s slice, found %s", sl.Triple, obj.KindString(bin))}
			}
			for _, m := range a.Members {
				o, err := obj.ParseObject(m.Data)
				if err != nil || o.Triple().Format != obj.FormatMachO {
					return &FatMachOError{Msg: fmt.Sprintf("expected an object in the archive, found member %q", m.Name)}
				}
				h.foldSymbols(o)
				h.appendEntry(o, m.Name, 0)
			}
		}
	}
	return nil
}

// foldSymbols merges every usable symbol occurrence of o into the map.
func (h *Handle) foldSymbols(o obj.Object) {
	format := o.Triple().Format
	for _, s := range o.Symbols() {
		if s.Err {
			h.log.Debugf("failed to get all info for a symbol, skipping it")
			continue
		}
		switch s.Type {
		case obj.TypeFile, obj.TypeDebug, obj.TypeOther:
			continue
		}
		sym, ok := h.symbols[s.Name]
		if !ok {
			sym = &Symbol{}
			h.symbols[s.Name] = sym
		}
		h.log.Debugf("found symbol %q, flags: %#x", s.Name, s.Flags)
		sym.update(s, format)
	}
}

func (h *Handle) appendEntry(o obj.Object, name string, align uint32) {
	if name == "" {
		name = fmt.Sprintf("%d.o", len(h.objects)+1)
	}
	h.objects = append(h.objects, objectEntry{obj: o, name: name, align: align})
}

// PrefixGlobalAndDefinedSymbols stamps a rename target on every symbol that
// is both global and defined, and returns how many were affected. Mach-O
// names have their leading byte stripped before the mangled prefix is
// applied, so `_foo` becomes `_<prefix>foo`.
func (h *Handle) PrefixGlobalAndDefinedSymbols(prefix string) int {
	n := 0
	for name, sym := range h.symbols {
		if !sym.Global() || !sym.Defined() {
			continue
		}
		var newName string
		if sym.IsMachO() {
			rest := name
			if len(rest) > 0 {
				rest = rest[1:]
			}
			newName = "_" + prefix + rest
		} else {
			newName = prefix + name
		}
		sym.SetName(newName)
		n++
	}
	return n
}
