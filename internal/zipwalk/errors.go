package zipwalk

import "fmt"

// NotAZipError means the EOCDR could not be located within the backward
// search bound — the file is probably not a ZIP, or is a badly truncated
// one.
type NotAZipError struct {
	Path string
}

func (e *NotAZipError) Error() string {
	return fmt.Sprintf("%s: not a ZIP file, or a broken one", e.Path)
}

// StructuralError means a record the walker expected to find at a
// specific, computed location (a CFH, LFH, ZIP64 EOCDL/EOCDR, or ZIP64
// EIEF) wasn't there, or was there but too small to hold what it claims.
type StructuralError struct {
	Reason string
}

func (e *StructuralError) Error() string {
	return "zip structure: " + e.Reason
}

// OverflowError means a 32-bit offset, after displacement, would cross the
// 4 GiB boundary in an archive that isn't ZIP64 and so has no 8-byte
// companion field to escape into.
type OverflowError struct {
	Field string
	Value int64
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("cannot accommodate new offset in field %q (would be %d): archive would need ZIP64", e.Field, e.Value)
}

func structuralf(format string, args ...any) error {
	return &StructuralError{Reason: fmt.Sprintf(format, args...)}
}
