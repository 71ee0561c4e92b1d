// Package ar reads and writes ar-style static archives. The writer is
// deterministic: no timestamps, uids, gids or host state enter the output.
package ar

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Magic is the global archive header.
const Magic = "!<arch>\n"

const headerSize = 60

// Member is one file inside an archive.
type Member struct {
	Name string
	Data []byte
	// Symbols are the names this member contributes to the archive symbol
	// index. Only used by the writer; the reader leaves it nil.
	Symbols []string
}

// Parse reads every regular member of an archive, in order. Symbol index
// members ("/", "/SYM64/", "__.SYMDEF" variants) and the GNU long-name table
// ("//") are consumed but not returned.
func Parse(data []byte) ([]Member, error) {
	if len(data) < len(Magic) || string(data[:len(Magic)]) != Magic {
		return nil, fmt.Errorf("not an archive file")
	}

	var members []Member
	var longNames []byte
	off := len(Magic)

	for off < len(data) {
		if off+headerSize > len(data) {
			if isPadding(data[off:]) {
				break
			}
			return nil, fmt.Errorf("truncated archive header at offset %d", off)
		}
		hdr := data[off : off+headerSize]
		name := strings.TrimRight(string(hdr[:16]), " ")
		size, err := strconv.ParseUint(strings.TrimRight(string(hdr[48:58]), "\x00 "), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse member size at offset %d: %v", off, err)
		}
		start := off + headerSize
		if uint64(start)+size > uint64(len(data)) {
			return nil, fmt.Errorf("member %q overruns archive", name)
		}
		contents := data[start : start+int(size)]

		off = start + int(size)
		if off%2 == 1 {
			off++
		}

		switch {
		case name == "//":
			longNames = contents
			continue
		case name == "/" || name == "/SYM64/":
			continue
		case strings.HasPrefix(name, "/"):
			resolved, err := gnuLongName(longNames, name[1:])
			if err != nil {
				return nil, err
			}
			name = resolved
		case strings.HasPrefix(name, "#1/"):
			// BSD: the name is stored in front of the data.
			n, err := strconv.ParseUint(name[3:], 10, 32)
			if err != nil || uint64(len(contents)) < n {
				return nil, fmt.Errorf("invalid BSD member name %q", name)
			}
			name = strings.TrimRight(string(contents[:n]), "\x00")
			contents = contents[n:]
		default:
			name = strings.TrimRight(name, "/")
		}

		if name == "__.SYMDEF" || name == "__.SYMDEF SORTED" ||
			name == "__.SYMDEF_64" || name == "__.SYMDEF_64 SORTED" {
			continue
		}

		members = append(members, Member{Name: name, Data: contents})
	}
	return members, nil
}

func gnuLongName(table []byte, ref string) (string, error) {
	off, err := strconv.ParseUint(ref, 10, 32)
	if err != nil || uint64(len(table)) < off {
		return "", fmt.Errorf("invalid long name reference /%s", ref)
	}
	rest := table[off:]
	end := bytes.IndexByte(rest, '\n')
	if end < 0 {
		end = len(rest)
	}
	return strings.TrimRight(string(rest[:end]), "/\r"), nil
}

func isPadding(b []byte) bool {
	for _, c := range b {
		if c != '\n' && c != 0 {
			return false
		}
	}
	return true
}
