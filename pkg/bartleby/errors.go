package bartleby

import "fmt"

// UnsupportedBinaryError is returned when an input, or an archive child, is
// not something the consolidator can ingest.
type UnsupportedBinaryError struct {
	Msg string
}

func (e *UnsupportedBinaryError) Error() string {
	return fmt.Sprintf("unsupported binary: %s", e.Msg)
}

// FormatMismatchError is returned when an object's format disagrees with the
// format the handle committed to on its first input.
type FormatMismatchError struct {
	Expected ObjectFormat
	Found    ObjectFormat
}

func (e *FormatMismatchError) Error() string {
	return fmt.Sprintf("object format mismatch: expected %s, found %s", e.Expected, e.Found)
}

// FatMachOError is returned on fat Mach-O shape violations: mixing fat and
// non-fat inputs, slice count or triple disagreements, single-arch fat
// files, and non-object members inside a slice archive.
type FatMachOError struct {
	Msg string
}

func (e *FatMachOError) Error() string {
	return fmt.Sprintf("fat Mach-O: %s", e.Msg)
}
