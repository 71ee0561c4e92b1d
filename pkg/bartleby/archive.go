package bartleby

import (
	"fmt"
	"os"

	"github.com/blacktop/bartleby/pkg/ar"
	"github.com/blacktop/bartleby/pkg/lipo"
	"github.com/blacktop/bartleby/pkg/obj"
	"github.com/blacktop/bartleby/pkg/rewrite"
)

// Build consumes the Handle and writes the final archive (or fat Mach-O of
// archives) to path.
func Build(h *Handle, path string) error {
	data, err := BuildBytes(h)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// BuildBytes consumes the Handle and returns the final archive bytes. The
// output is fully determined by the ingested objects, their order and the
// pending renames; nothing host- or time-dependent enters the stream.
func BuildBytes(h *Handle) ([]byte, error) {
	if h.consumed {
		return nil, fmt.Errorf("handle was already consumed by a build")
	}
	h.consumed = true

	if len(h.objects) == 0 {
		return nil, &UnsupportedBinaryError{Msg: "no objects to archive"}
	}

	renames := make(map[string]string, len(h.symbols))
	for name, sym := range h.symbols {
		if to, ok := sym.OverwriteName(); ok {
			h.log.Debugf("going to rename %q into %q", name, to)
			renames[name] = to
		}
	}

	if h.state == stateFat {
		return h.buildUniversal(renames)
	}
	return h.buildArchive(h.objects, renames, h.single.Format)
}

// buildArchive rewrites each entry and hands the members to the archive
// writer. The archive kind follows the container family of the members.
func (h *Handle) buildArchive(entries []objectEntry, renames map[string]string, format obj.Format) ([]byte, error) {
	members := make([]ar.Member, 0, len(entries))
	for _, e := range entries {
		data, err := rewrite.Object(e.obj, renames)
		if err != nil {
			return nil, fmt.Errorf("failed to rewrite %s: %w", e.name, err)
		}
		syms, err := indexSymbols(data)
		if err != nil {
			return nil, fmt.Errorf("failed to index %s: %w", e.name, err)
		}
		members = append(members, ar.Member{Name: e.name, Data: data, Symbols: syms})
	}

	kind := ar.KindGNU
	if format == obj.FormatMachO {
		kind = ar.KindDarwin
	}
	return ar.WriteBytes(members, kind)
}

// buildUniversal partitions the entries by format, builds one archive per
// slice and wraps them in a fat container.
func (h *Handle) buildUniversal(renames map[string]string) ([]byte, error) {
	type partition struct {
		format  ObjectFormat
		align   uint32
		entries []objectEntry
	}
	var order []uint64
	parts := make(map[uint64]*partition, len(h.fatSet))

	for _, e := range h.objects {
		f := FormatOf(e.obj.Triple())
		p, ok := parts[f.Pack()]
		if !ok {
			p = &partition{format: f}
			parts[f.Pack()] = p
			order = append(order, f.Pack())
		}
		if e.align != 0 {
			p.align = e.align
		}
		// Fat slice members all carry the slice triple as their name.
		e.name = f.Triple().String()
		p.entries = append(p.entries, e)
	}

	slices := make([]lipo.Slice, 0, len(order))
	for _, key := range order {
		p := parts[key]
		data, err := h.buildArchive(p.entries, renames, p.format.Format)
		if err != nil {
			return nil, err
		}
		cpu, sub, err := obj.CPUForTriple(p.format.Triple())
		if err != nil {
			return nil, &FatMachOError{Msg: err.Error()}
		}
		slices = append(slices, lipo.Slice{CPU: cpu, SubCPU: sub, Align: p.align, Data: data})
	}
	return lipo.CreateBytes(slices)
}

// indexSymbols lists the names a rewritten member contributes to the
// archive symbol index: its non-weak, defined, external symbols.
func indexSymbols(data []byte) ([]string, error) {
	o, err := obj.ParseObject(data)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, s := range o.Symbols() {
		if s.Err {
			continue
		}
		switch s.Type {
		case obj.TypeFile, obj.TypeDebug, obj.TypeOther:
			continue
		}
		if s.Flags&obj.FlagGlobal != 0 && s.Flags&(obj.FlagUndefined|obj.FlagWeak) == 0 {
			names = append(names, s.Name)
		}
	}
	return names, nil
}
