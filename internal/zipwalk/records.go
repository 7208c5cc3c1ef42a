package zipwalk

import (
	"encoding/binary"

	"github.com/klausbrunner/zip-prefixer/internal/binpattern"
)

/* Record layouts follow APPNOTE.TXT - .ZIP File Format Specification,
version 6.3.10 (2022-11-01), https://pkware.cachefly.net/webdocs/casestudies/APPNOTE.TXT */

// eocdr is the End of Central Directory Record.
var eocdr = binpattern.NewRecord(binary.LittleEndian,
	binpattern.Field{Name: "signature", Width: 4, Magic: []byte{0x50, 0x4b, 0x05, 0x06}},
	binpattern.Field{Name: "numberOfThisDisk", Width: 2},
	binpattern.Field{Name: "numberOfStartDiskOfCD", Width: 2},
	binpattern.Field{Name: "numberOfEntriesInCDonThisDisk", Width: 2},
	binpattern.Field{Name: "totalNumberOfEntriesInCD", Width: 2},
	binpattern.Field{Name: "sizeOfCD", Width: 4},
	binpattern.Field{Name: "offsetOfStartOfCD", Width: 4},
	binpattern.Field{Name: "commentLength", Width: 2},
)

// cfh is a Central File Header, one per archived entry.
var cfh = binpattern.NewRecord(binary.LittleEndian,
	binpattern.Field{Name: "signature", Width: 4, Magic: []byte{0x50, 0x4b, 0x01, 0x02}},
	binpattern.Field{Name: "versionMadeBy", Width: 2},
	binpattern.Field{Name: "versionNeededToExtract", Width: 2},
	binpattern.Field{Name: "generalPurposeBitFlag", Width: 2},
	binpattern.Field{Name: "compressionMethod", Width: 2},
	binpattern.Field{Name: "lastModFileTime", Width: 2},
	binpattern.Field{Name: "lastModFileDate", Width: 2},
	binpattern.Field{Name: "crc32", Width: 4},
	binpattern.Field{Name: "compressedSize", Width: 4},
	binpattern.Field{Name: "uncompressedSize", Width: 4},
	binpattern.Field{Name: "fileNameLength", Width: 2},
	binpattern.Field{Name: "extraFieldLength", Width: 2},
	binpattern.Field{Name: "fileCommentLength", Width: 2},
	binpattern.Field{Name: "diskNumberStart", Width: 2},
	binpattern.Field{Name: "internalFileAttributes", Width: 2},
	binpattern.Field{Name: "externalFileAttributes", Width: 4},
	binpattern.Field{Name: "relativeOffsetOfLocalHeader", Width: 4},
)

// lfh is a Local File Header. Its contents beyond the magic are never
// validated further; the walker only confirms one sits where the central
// directory claims.
var lfh = binpattern.NewRecord(binary.LittleEndian,
	binpattern.Field{Name: "signature", Width: 4, Magic: []byte{0x50, 0x4b, 0x03, 0x04}},
	binpattern.Field{Name: "versionNeededToExtract", Width: 2},
	binpattern.Field{Name: "generalPurposeBitFlag", Width: 2},
	binpattern.Field{Name: "compressionMethod", Width: 2},
	binpattern.Field{Name: "lastModFileTime", Width: 2},
	binpattern.Field{Name: "lastModFileDate", Width: 2},
	binpattern.Field{Name: "crc32", Width: 4},
	binpattern.Field{Name: "compressedSize", Width: 4},
	binpattern.Field{Name: "uncompressedSize", Width: 4},
	binpattern.Field{Name: "fileNameLength", Width: 2},
	binpattern.Field{Name: "extraFieldLength", Width: 2},
)

// zip64EOCDL is the ZIP64 End of Central Directory Locator, a fixed 20-byte
// record that immediately precedes the EOCDR when ZIP64 is in play.
var zip64EOCDL = binpattern.NewRecord(binary.LittleEndian,
	binpattern.Field{Name: "signature", Width: 4, Magic: []byte{0x50, 0x4b, 0x06, 0x07}},
	binpattern.Field{Name: "numberOfDiskWithStartOfZip64EOCDL", Width: 4},
	binpattern.Field{Name: "relativeOffsetOfZip64EOCDR", Width: 8},
	binpattern.Field{Name: "totalNumberOfDisks", Width: 4},
)

// zip64EOCDR is the ZIP64 End of Central Directory Record.
var zip64EOCDR = binpattern.NewRecord(binary.LittleEndian,
	binpattern.Field{Name: "signature", Width: 4, Magic: []byte{0x50, 0x4b, 0x06, 0x06}},
	binpattern.Field{Name: "sizeOfZip64EOCDR", Width: 8},
	binpattern.Field{Name: "versionMadeBy", Width: 2},
	binpattern.Field{Name: "versionNeededToExtract", Width: 2},
	binpattern.Field{Name: "numberOfThisDisk", Width: 4},
	binpattern.Field{Name: "numberOfStartDiskOfCD", Width: 4},
	binpattern.Field{Name: "numberOfEntriesInCDonThisDisk", Width: 8},
	binpattern.Field{Name: "totalNumberOfEntriesInCD", Width: 8},
	binpattern.Field{Name: "sizeOfCD", Width: 8},
	binpattern.Field{Name: "offsetOfStartOfCD", Width: 8},
)

// zip64EIEFSignature is the 2-byte header id of a ZIP64 Extended
// Information Extra Field sub-record within a CFH's extra-field area.
var zip64EIEFSignature = binpattern.Field{Name: "zip64EIEFSignature", Width: 2, Magic: []byte{0x01, 0x00}}

const (
	uint16Max uint64 = 0xFFFF
	uint32Max uint64 = 0xFFFFFFFF
)

// eocdrSearchBound is the maximum backward distance from EOF the walker
// will scan looking for an EOCDR, per spec: the comment field is at most
// 65535 bytes, and 512 KiB is generous headroom against runaway scans on
// files that aren't ZIPs at all.
const eocdrSearchBound = 512 * 1024
