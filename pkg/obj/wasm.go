package obj

import (
	"encoding/binary"
	"fmt"

	pkgerr "github.com/pkg/errors"
)

// Wasm object files keep their symbol table in the "linking" custom section.
// Section ids and symbol kinds from the wasm object file / linking spec.
const (
	wasmSectionCustom = 0
	wasmSectionImport = 2

	wasmSubsecSymtab = 8

	wasmSymKindFunction = 0
	wasmSymKindData     = 1
	wasmSymKindGlobal   = 2
	wasmSymKindSection  = 3
	wasmSymKindEvent    = 4
	wasmSymKindTable    = 5

	wasmSymFlagWeak         = 0x01
	wasmSymFlagLocal        = 0x02
	wasmSymFlagUndefined    = 0x10
	wasmSymFlagExplicitName = 0x40
)

type wasmObject struct {
	data   []byte
	triple Triple
	syms   []Symbol
}

type wasmReader struct {
	buf []byte
	off int
}

func (r *wasmReader) len() int { return len(r.buf) - r.off }

func (r *wasmReader) byte() (byte, error) {
	if r.off >= len(r.buf) {
		return 0, fmt.Errorf("wasm: truncated at offset %d", r.off)
	}
	b := r.buf[r.off]
	r.off++
	return b, nil
}

func (r *wasmReader) uleb() (uint64, error) {
	var v uint64
	var shift uint
	for {
		b, err := r.byte()
		if err != nil {
			return 0, err
		}
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, nil
		}
		shift += 7
		if shift >= 64 {
			return 0, fmt.Errorf("wasm: varint too long at offset %d", r.off)
		}
	}
}

func (r *wasmReader) bytes(n uint64) ([]byte, error) {
	if uint64(r.len()) < n {
		return nil, fmt.Errorf("wasm: truncated at offset %d", r.off)
	}
	b := r.buf[r.off : r.off+int(n)]
	r.off += int(n)
	return b, nil
}

func (r *wasmReader) name() (string, error) {
	n, err := r.uleb()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// wasmImports holds import field names per index space, used to name
// undefined symbols that carry no explicit name.
type wasmImports struct {
	funcs, globals, tables, events []string
}

func parseWasm(data []byte) (Object, error) {
	if len(data) < 8 || string(data[:4]) != "\x00asm" {
		return nil, ErrUnknownFormat
	}
	if v := binary.LittleEndian.Uint32(data[4:]); v != 1 {
		return nil, fmt.Errorf("wasm: unsupported version %d", v)
	}

	o := &wasmObject{
		data:   data,
		triple: Triple{Arch: ArchWasm32, Format: FormatWasm},
	}

	var imports wasmImports
	var linking []byte

	r := &wasmReader{buf: data, off: 8}
	for r.len() > 0 {
		id, err := r.byte()
		if err != nil {
			return nil, pkgerr.Wrap(err, "failed to read wasm section id")
		}
		size, err := r.uleb()
		if err != nil {
			return nil, pkgerr.Wrap(err, "failed to read wasm section size")
		}
		payload, err := r.bytes(size)
		if err != nil {
			return nil, pkgerr.Wrap(err, "failed to read wasm section payload")
		}

		switch id {
		case wasmSectionImport:
			if err := parseWasmImports(payload, &imports); err != nil {
				return nil, err
			}
		case wasmSectionCustom:
			sr := &wasmReader{buf: payload}
			name, err := sr.name()
			if err != nil {
				return nil, pkgerr.Wrap(err, "failed to read wasm custom section name")
			}
			if name == "linking" {
				linking = payload[sr.off:]
			}
		}
	}

	if linking != nil {
		if err := parseWasmLinking(linking, &imports, o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func parseWasmImports(payload []byte, imports *wasmImports) error {
	r := &wasmReader{buf: payload}
	count, err := r.uleb()
	if err != nil {
		return pkgerr.Wrap(err, "failed to read wasm import count")
	}
	for i := uint64(0); i < count; i++ {
		if _, err := r.name(); err != nil { // module
			return pkgerr.Wrap(err, "failed to read wasm import module")
		}
		field, err := r.name()
		if err != nil {
			return pkgerr.Wrap(err, "failed to read wasm import field")
		}
		kind, err := r.byte()
		if err != nil {
			return pkgerr.Wrap(err, "failed to read wasm import kind")
		}
		switch kind {
		case 0x00: // function
			if _, err := r.uleb(); err != nil {
				return err
			}
			imports.funcs = append(imports.funcs, field)
		case 0x01: // table
			if _, err := r.byte(); err != nil {
				return err
			}
			if err := skipWasmLimits(r); err != nil {
				return err
			}
			imports.tables = append(imports.tables, field)
		case 0x02: // memory
			if err := skipWasmLimits(r); err != nil {
				return err
			}
		case 0x03: // global
			if _, err := r.bytes(2); err != nil { // valtype, mutability
				return err
			}
			imports.globals = append(imports.globals, field)
		case 0x04: // tag
			if _, err := r.bytes(1); err != nil {
				return err
			}
			if _, err := r.uleb(); err != nil {
				return err
			}
			imports.events = append(imports.events, field)
		default:
			return fmt.Errorf("wasm: unknown import kind %#x", kind)
		}
	}
	return nil
}

func skipWasmLimits(r *wasmReader) error {
	flags, err := r.byte()
	if err != nil {
		return err
	}
	if _, err := r.uleb(); err != nil {
		return err
	}
	if flags&0x1 != 0 {
		if _, err := r.uleb(); err != nil {
			return err
		}
	}
	return nil
}

func parseWasmLinking(payload []byte, imports *wasmImports, o *wasmObject) error {
	r := &wasmReader{buf: payload}
	if _, err := r.uleb(); err != nil { // linking metadata version
		return pkgerr.Wrap(err, "failed to read wasm linking version")
	}
	for r.len() > 0 {
		typ, err := r.byte()
		if err != nil {
			return err
		}
		size, err := r.uleb()
		if err != nil {
			return err
		}
		sub, err := r.bytes(size)
		if err != nil {
			return err
		}
		if typ != wasmSubsecSymtab {
			continue
		}
		if err := parseWasmSymtab(sub, imports, o); err != nil {
			return err
		}
	}
	return nil
}

func parseWasmSymtab(payload []byte, imports *wasmImports, o *wasmObject) error {
	r := &wasmReader{buf: payload}
	count, err := r.uleb()
	if err != nil {
		return pkgerr.Wrap(err, "failed to read wasm symbol count")
	}
	for i := uint64(0); i < count; i++ {
		kind, err := r.byte()
		if err != nil {
			return err
		}
		flags, err := r.uleb()
		if err != nil {
			return err
		}

		sym := Symbol{Type: wasmSymType(kind)}
		if flags&wasmSymFlagLocal == 0 {
			sym.Flags |= FlagGlobal
		}
		if flags&wasmSymFlagWeak != 0 {
			sym.Flags |= FlagWeak
		}
		if flags&wasmSymFlagUndefined != 0 {
			sym.Flags |= FlagUndefined
		}

		switch kind {
		case wasmSymKindFunction, wasmSymKindGlobal, wasmSymKindEvent, wasmSymKindTable:
			idx, err := r.uleb()
			if err != nil {
				return err
			}
			if flags&wasmSymFlagUndefined == 0 || flags&wasmSymFlagExplicitName != 0 {
				if sym.Name, err = r.name(); err != nil {
					return err
				}
			} else if name, ok := wasmImportName(imports, kind, idx); ok {
				sym.Name = name
			} else {
				sym.Err = true
			}
		case wasmSymKindData:
			if sym.Name, err = r.name(); err != nil {
				return err
			}
			if flags&wasmSymFlagUndefined == 0 {
				for j := 0; j < 3; j++ { // segment index, offset, size
					if _, err := r.uleb(); err != nil {
						return err
					}
				}
			}
		case wasmSymKindSection:
			if _, err := r.uleb(); err != nil {
				return err
			}
			sym.Type = TypeDebug
		default:
			return fmt.Errorf("wasm: unknown symbol kind %#x", kind)
		}

		o.syms = append(o.syms, sym)
	}
	return nil
}

func wasmImportName(imports *wasmImports, kind byte, idx uint64) (string, bool) {
	var pool []string
	switch kind {
	case wasmSymKindFunction:
		pool = imports.funcs
	case wasmSymKindGlobal:
		pool = imports.globals
	case wasmSymKindTable:
		pool = imports.tables
	case wasmSymKindEvent:
		pool = imports.events
	}
	if idx < uint64(len(pool)) {
		return pool[idx], true
	}
	return "", false
}

func wasmSymType(kind byte) SymType {
	switch kind {
	case wasmSymKindFunction:
		return TypeFunc
	case wasmSymKindData, wasmSymKindGlobal, wasmSymKindTable:
		return TypeData
	case wasmSymKindSection:
		return TypeDebug
	}
	return TypeOther
}

func (o *wasmObject) Triple() Triple    { return o.triple }
func (o *wasmObject) Symbols() []Symbol { return o.syms }
func (o *wasmObject) Bytes() []byte     { return o.data }
