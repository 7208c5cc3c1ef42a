/*
 * Copyright (c) SAS Institute Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package magic does cheap, best-effort sniffing of a file's first bytes.
// It exists purely to produce a friendlier error message before the ZIP
// walker's own (authoritative, and far more thorough) backward EOCDR scan
// runs; nothing here is a correctness dependency of the walker.
package magic

import (
	"bytes"
	"encoding/binary"
	"io"
)

// FileType is the coarse classification Detect returns.
type FileType int

const (
	FileTypeUnknown FileType = iota
	FileTypeZip
	FileTypeJAR
)

// localFileHeaderMagic is the signature of a ZIP Local File Header —
// normally the first bytes of any ZIP archive, JAR included.
var localFileHeaderMagic = []byte{0x50, 0x4b, 0x03, 0x04}

// emptyZipMagic is the signature of an End of Central Directory Record
// with no preceding entries — the first (and only) bytes of a zero-entry
// ZIP archive.
var emptyZipMagic = []byte{0x50, 0x4b, 0x05, 0x06}

// Detect reads up to 1 KiB from r and classifies it as a ZIP archive or,
// more specifically, a JAR (a ZIP whose first entry is a class file or
// that carries a META-INF/ directory). A read error, or a start that is
// neither a Local File Header nor an End of Central Directory signature,
// yields FileTypeUnknown, never an error:
// callers only use this for a UX short-circuit, and the walker itself
// will report the authoritative failure.
func Detect(r io.Reader) FileType {
	var buf [1024]byte
	blob := buf[:]
	n, err := r.Read(blob)
	if err != nil && n == 0 {
		return FileTypeUnknown
	}
	blob = blob[:n]

	if bytes.HasPrefix(blob, emptyZipMagic) {
		return FileTypeZip
	}
	if !bytes.HasPrefix(blob, localFileHeaderMagic) {
		return FileTypeUnknown
	}
	if len(blob) >= 30 {
		fnLen := int(binary.LittleEndian.Uint16(blob[26:28]))
		extraLen := int(binary.LittleEndian.Uint16(blob[28:30]))
		dataStart := 30 + fnLen + extraLen
		if len(blob) >= dataStart+2 && blob[dataStart] == 0xca && blob[dataStart+1] == 0xfe {
			return FileTypeJAR
		}
	}
	if bytes.Contains(blob, []byte("META-INF/")) {
		return FileTypeJAR
	}
	return FileTypeZip
}
