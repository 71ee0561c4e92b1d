package rewrite

import (
	"encoding/binary"
	"fmt"
)

const (
	xcoffMagic32 = 0x01DF
	xcoffMagic64 = 0x01F7
)

func rewriteXCOFF(data []byte, renames map[string]string) ([]byte, error) {
	if len(data) < 24 {
		return nil, fmt.Errorf("xcoff: file too short")
	}
	switch binary.BigEndian.Uint16(data) {
	case xcoffMagic32:
		symPtr := uint64(binary.BigEndian.Uint32(data[8:]))
		nsyms := uint64(binary.BigEndian.Uint32(data[12:]))
		return rewriteCOFFLike(data, binary.BigEndian, symPtr, nsyms, false, renames)
	case xcoffMagic64:
		symPtr := binary.BigEndian.Uint64(data[8:])
		nsyms := uint64(binary.BigEndian.Uint32(data[20:]))
		return rewriteCOFFLike(data, binary.BigEndian, symPtr, nsyms, true, renames)
	}
	return nil, fmt.Errorf("xcoff: bad magic")
}
