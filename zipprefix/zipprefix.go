// Package zipprefix is the public surface for prepending arbitrary byte
// content to an existing ZIP-format archive without rebuilding it, and for
// validating or repairing the handful of offset fields that prepending
// bytes would otherwise leave stale.
//
// The heavy lifting — locating the ZIP's structural records and rewriting
// only their offset fields — lives in internal/zipwalk; this package adds
// the file-level orchestration described in the Java original this was
// ported from (net.e175.klaus.zip.ZipPrefixer): validate-before-mutate,
// build the new file in a sibling temporary, and only then replace the
// original.
package zipprefix

import (
	"fmt"
	"io"
	"os"

	"github.com/klausbrunner/zip-prefixer/internal/zipwalk"
	"github.com/klausbrunner/zip-prefixer/lib/atomicfile"
	"github.com/klausbrunner/zip-prefixer/lib/readercounter"
	"github.com/rs/zerolog/log"
)

// ValidateOffsets walks the ZIP at path in validate mode: every structural
// check zipwalk performs still runs, but nothing is written. It returns
// nil if and only if the archive's offsets are internally consistent.
func ValidateOffsets(path string) error {
	return zipwalk.Walk(path, 0)
}

// AdjustOffsets walks the ZIP at path and shifts every offset field by
// displacement. displacement == 0 behaves exactly like ValidateOffsets.
func AdjustOffsets(path string, displacement int64) error {
	return zipwalk.Walk(path, displacement)
}

// Prefix is a chunk of bytes to prepend, sourced either directly or from a
// file. Use BytesPrefix for in-memory content and FilePrefix for a file
// whose content should be streamed in, mirroring the two overloads
// (applyPrefixesToZip(Path, byte[]...) and applyPrefixesToZip(Path,
// Collection<Path>)) the Java original exposed separately; Go has no
// overloading, so this type collapses them into one list that may mix
// both kinds.
type Prefix struct {
	bytes    []byte
	filePath string
}

// BytesPrefix wraps raw bytes as a Prefix.
func BytesPrefix(b []byte) Prefix { return Prefix{bytes: b} }

// FilePrefix wraps a file path as a Prefix, whose content is streamed in
// at apply time rather than loaded up front.
func FilePrefix(path string) Prefix { return Prefix{filePath: path} }

func (p Prefix) copyTo(w io.Writer) (int64, error) {
	if p.filePath != "" {
		f, err := os.Open(p.filePath)
		if err != nil {
			return 0, err
		}
		defer f.Close()
		return io.Copy(w, f)
	}
	n, err := w.Write(p.bytes)
	return int64(n), err
}

// ApplyPrefixesToZip validates the ZIP at path, then streams every prefix
// (in order) followed by the original file's contents into a sibling
// temporary file, adjusts that temporary file's internal offsets by the
// total prefix length, and atomically replaces path with it. On any
// failure the temporary file is removed and path is left untouched.
//
// It returns the total number of bytes written as prefixes.
func ApplyPrefixesToZip(path string, prefixes ...Prefix) (int64, error) {
	return applyPrefixesToZip(path, "", prefixes...)
}

// ApplyRecipeToZip behaves like ApplyPrefixesToZip, but folds suffix (a
// recipe's ID, typically) into the temporary file's name so several
// recipes running concurrently against files in the same directory are
// easy to tell apart in a directory listing while in flight.
func ApplyRecipeToZip(path, suffix string, prefixes ...Prefix) (int64, error) {
	return applyPrefixesToZip(path, suffix, prefixes...)
}

// ApplyPrefixesToWriter behaves like ApplyPrefixesToZip, but streams the
// finished, offset-adjusted archive to out instead of replacing path.
// path itself is never modified. out is typically built with
// lib/atomicfile.WriteAny, so callers can point it at stdout ("-"), a
// device or pipe, or a plain destination file using the same commit
// semantics as the in-place case.
func ApplyPrefixesToWriter(path string, out atomicfile.AtomicFile, prefixes ...Prefix) (int64, error) {
	af, prefixLength, err := buildAdjustedCopy(path, "", prefixes...)
	if err != nil {
		return 0, err
	}
	defer af.Close()

	tempPath := af.Name()
	src, err := os.Open(tempPath)
	if err != nil {
		return 0, err
	}
	_, copyErr := io.Copy(out, src)
	src.Close()
	if copyErr != nil {
		return 0, copyErr
	}
	if err := out.Commit(); err != nil {
		return 0, err
	}
	log.Debug().Str("path", path).Int64("prefixLength", prefixLength).Msg("streamed prefixed archive")
	return prefixLength, nil
}

func applyPrefixesToZip(path, tempSuffix string, prefixes ...Prefix) (int64, error) {
	af, prefixLength, err := buildAdjustedCopy(path, tempSuffix, prefixes...)
	if err != nil {
		return 0, err
	}
	// af.Close() without a prior Commit() discards the temp file; this
	// defer is therefore a no-op on the success path, where Commit runs
	// first and clears af's internal state.
	defer af.Close()

	if err := af.Commit(); err != nil {
		return 0, err
	}
	log.Debug().Str("path", path).Int64("prefixLength", prefixLength).Msg("applied prefixes")
	return prefixLength, nil
}

// buildAdjustedCopy validates path, then streams prefixes followed by
// path's own contents into a sibling temporary file and adjusts that
// temporary file's offsets by the total prefix length. The caller decides
// what becomes of the result: Commit it over path, or copy it elsewhere
// and discard it via Close.
func buildAdjustedCopy(path, tempSuffix string, prefixes ...Prefix) (atomicfile.AtomicFile, int64, error) {
	if err := ValidateOffsets(path); err != nil {
		return nil, 0, fmt.Errorf("refusing to prefix %s: %w", path, err)
	}

	af, err := atomicfile.New(path, tempSuffix)
	if err != nil {
		return nil, 0, err
	}

	var prefixLength int64
	for _, p := range prefixes {
		n, err := p.copyTo(af)
		if err != nil {
			af.Close()
			return nil, 0, err
		}
		prefixLength += n
	}

	src, err := os.Open(path)
	if err != nil {
		af.Close()
		return nil, 0, err
	}
	counted := readercounter.New(src)
	_, copyErr := io.Copy(af, counted)
	src.Close()
	if copyErr != nil {
		af.Close()
		return nil, 0, copyErr
	}
	log.Debug().Str("path", path).Int64("originalBytes", counted.N).Msg("copied original archive into temp file")

	if prefixLength != 0 {
		// The temp file's own *os.File handle (held by af) is still open
		// here; AdjustOffsets opens the same path through its own
		// handles. Both refer to the same inode, so the writes above are
		// already visible to it — no flush or close is required first.
		if err := AdjustOffsets(af.Name(), prefixLength); err != nil {
			af.Close()
			return nil, 0, err
		}
	}
	return af, prefixLength, nil
}
