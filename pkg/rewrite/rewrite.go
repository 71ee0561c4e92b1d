// Package rewrite renames symbols inside relocatable objects by rebuilding
// the relevant string table. Renames are literal name substitutions; all
// other bytes are preserved.
package rewrite

import (
	"fmt"

	"github.com/blacktop/bartleby/pkg/obj"
)

// Object applies renames to o and returns the resulting object bytes. A map
// entry whose target equals its source is a no-op; when no name actually
// changes the input bytes are returned untouched.
func Object(o obj.Object, renames map[string]string) ([]byte, error) {
	changed := false
	for _, s := range o.Symbols() {
		if s.Err {
			continue
		}
		if to, ok := renames[s.Name]; ok && to != s.Name {
			changed = true
			break
		}
	}
	if !changed {
		return o.Bytes(), nil
	}

	data := make([]byte, len(o.Bytes()))
	copy(data, o.Bytes())

	switch o.Triple().Format {
	case obj.FormatELF:
		return rewriteELF(data, renames)
	case obj.FormatMachO:
		return rewriteMachO(data, renames)
	case obj.FormatCOFF:
		return rewriteCOFF(data, renames)
	case obj.FormatXCOFF:
		return rewriteXCOFF(data, renames)
	case obj.FormatWasm:
		return rewriteWasm(data, renames)
	}
	return nil, fmt.Errorf("cannot rewrite symbols in a %s object", o.Triple().Format)
}

func cstring(b []byte, off uint64) (string, bool) {
	if off >= uint64(len(b)) {
		return "", false
	}
	end := off
	for end < uint64(len(b)) && b[end] != 0 {
		end++
	}
	if end == uint64(len(b)) {
		return "", false
	}
	return string(b[off:end]), true
}
