package zipwalk

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildPlainZip(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("hello.txt")
	require.NoError(t, err)
	_, err = f.Write([]byte("hello, world"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func writeTempFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.zip")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestValidateOffsetsOnFreshZip(t *testing.T) {
	path := writeTempFile(t, buildPlainZip(t))
	require.NoError(t, Walk(path, 0))

	before, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, buildPlainZip(t), before, "validate-only must not modify the file")
}

func TestAdjustOffsetsShiftsPlainZip(t *testing.T) {
	original := buildPlainZip(t)
	prefix := []byte("0123456789")
	prefixed := append(append([]byte(nil), prefix...), original...)
	path := writeTempFile(t, prefixed)

	require.NoError(t, Walk(path, int64(len(prefix))))

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()
	require.Len(t, zr.File, 1)
	assert.Equal(t, "hello.txt", zr.File[0].Name)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	content := make([]byte, len("hello, world"))
	_, err = io.ReadFull(rc, content)
	require.NoError(t, err)
	assert.Equal(t, "hello, world", string(content))
}

func TestDetectStalenessAfterUnadjustedPrepend(t *testing.T) {
	original := buildPlainZip(t)
	broken := append([]byte("broken"), original...)
	path := writeTempFile(t, broken)

	err := Walk(path, 0)
	require.Error(t, err)
	assert.True(t, IsStructural(err))
}

func TestNotAZip(t *testing.T) {
	path := writeTempFile(t, []byte("this is just some text, not a zip file at all"))
	err := Walk(path, 0)
	require.Error(t, err)
	assert.True(t, IsNotAZip(err))
}

func TestOverflowRefusedAndFileUntouched(t *testing.T) {
	original := buildPlainZip(t)
	path := writeTempFile(t, original)

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	// A displacement just under the 4 GiB boundary pushes the CD offset
	// (more than 10 bytes into the archive) past what 32 bits can hold.
	err = Walk(path, int64(uint32Max)-10)
	require.Error(t, err)
	assert.True(t, IsOverflow(err))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after, "a failed adjust must not modify the file")
}

// buildZip64Archive hand-assembles a minimal ZIP64 archive with one stored
// entry, whose CFH carries a sentinel LFH offset resolved through a ZIP64
// Extended Information Extra Field, and whose EOCDR offsetOfStartOfCD is
// also the sentinel, requiring the ZIP64 EOCDL/EOCDR path.
func buildZip64Archive(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer

	name := "big.bin"
	content := []byte("zip64 payload")

	lfhOffset := int64(buf.Len())
	// Local File Header (30 bytes), no extra field
	binary.Write(&buf, binary.LittleEndian, uint32(0x04034b50))
	binary.Write(&buf, binary.LittleEndian, uint16(45)) // version needed
	binary.Write(&buf, binary.LittleEndian, uint16(0))  // flags
	binary.Write(&buf, binary.LittleEndian, uint16(0))  // method: stored
	binary.Write(&buf, binary.LittleEndian, uint16(0))  // mod time
	binary.Write(&buf, binary.LittleEndian, uint16(0))  // mod date
	binary.Write(&buf, binary.LittleEndian, uint32(0))  // crc32
	binary.Write(&buf, binary.LittleEndian, uint32(len(content)))
	binary.Write(&buf, binary.LittleEndian, uint32(len(content)))
	binary.Write(&buf, binary.LittleEndian, uint16(len(name)))
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // no extra in LFH
	buf.WriteString(name)
	buf.Write(content)

	cdOffset := int64(buf.Len())

	// Central File Header with sentinel LFH offset, plus ZIP64 EIEF extra
	// field carrying the real (8-byte) offset.
	extra := &bytes.Buffer{}
	binary.Write(extra, binary.LittleEndian, uint16(0x0001)) // zip64 EIEF id
	binary.Write(extra, binary.LittleEndian, uint16(8))      // size: just the offset field
	binary.Write(extra, binary.LittleEndian, uint64(lfhOffset))

	binary.Write(&buf, binary.LittleEndian, uint32(0x02014b50))
	binary.Write(&buf, binary.LittleEndian, uint16(45)) // version made by
	binary.Write(&buf, binary.LittleEndian, uint16(45)) // version needed
	binary.Write(&buf, binary.LittleEndian, uint16(0))  // flags
	binary.Write(&buf, binary.LittleEndian, uint16(0))  // method
	binary.Write(&buf, binary.LittleEndian, uint16(0))  // mod time
	binary.Write(&buf, binary.LittleEndian, uint16(0))  // mod date
	binary.Write(&buf, binary.LittleEndian, uint32(0))  // crc32
	binary.Write(&buf, binary.LittleEndian, uint32(len(content)))
	binary.Write(&buf, binary.LittleEndian, uint32(len(content)))
	binary.Write(&buf, binary.LittleEndian, uint16(len(name)))
	binary.Write(&buf, binary.LittleEndian, uint16(extra.Len()))
	binary.Write(&buf, binary.LittleEndian, uint16(0))          // comment length
	binary.Write(&buf, binary.LittleEndian, uint16(0))          // disk start
	binary.Write(&buf, binary.LittleEndian, uint16(0))          // internal attrs
	binary.Write(&buf, binary.LittleEndian, uint32(0))          // external attrs
	binary.Write(&buf, binary.LittleEndian, uint32(0xFFFFFFFF)) // sentinel LFH offset
	buf.WriteString(name)
	buf.Write(extra.Bytes())

	cdSize := int64(buf.Len()) - cdOffset
	zip64EOCDROffset := int64(buf.Len())

	binary.Write(&buf, binary.LittleEndian, uint32(0x06064b50))
	binary.Write(&buf, binary.LittleEndian, uint64(44)) // record size (after this field)
	binary.Write(&buf, binary.LittleEndian, uint16(45)) // version made by
	binary.Write(&buf, binary.LittleEndian, uint16(45)) // version needed
	binary.Write(&buf, binary.LittleEndian, uint32(0))  // disk
	binary.Write(&buf, binary.LittleEndian, uint32(0))  // disk with CD start
	binary.Write(&buf, binary.LittleEndian, uint64(1))  // entries on this disk
	binary.Write(&buf, binary.LittleEndian, uint64(1))  // total entries
	binary.Write(&buf, binary.LittleEndian, uint64(cdSize))
	binary.Write(&buf, binary.LittleEndian, uint64(cdOffset))

	binary.Write(&buf, binary.LittleEndian, uint32(0x07064b50))
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // disk with zip64 eocdr
	binary.Write(&buf, binary.LittleEndian, uint64(zip64EOCDROffset))
	binary.Write(&buf, binary.LittleEndian, uint32(1)) // total disks

	binary.Write(&buf, binary.LittleEndian, uint32(0x06054b50))
	binary.Write(&buf, binary.LittleEndian, uint16(0xFFFF)) // disk
	binary.Write(&buf, binary.LittleEndian, uint16(0xFFFF)) // disk with CD start
	binary.Write(&buf, binary.LittleEndian, uint16(0xFFFF)) // entries on this disk (sentinel)
	binary.Write(&buf, binary.LittleEndian, uint16(0xFFFF)) // total entries
	binary.Write(&buf, binary.LittleEndian, uint32(0xFFFFFFFF))
	binary.Write(&buf, binary.LittleEndian, uint32(0xFFFFFFFF)) // sentinel CD offset
	binary.Write(&buf, binary.LittleEndian, uint16(0))          // comment length

	return buf.Bytes()
}

func TestZip64OffsetsAdjusted(t *testing.T) {
	archive := buildZip64Archive(t)
	prefix := []byte("0123456789")
	prefixed := append(append([]byte(nil), prefix...), archive...)
	path := writeTempFile(t, prefixed)

	d := int64(len(prefix))
	require.NoError(t, Walk(path, d))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// locate the (now-shifted) ZIP64 EOCDR and confirm every offset grew
	// by exactly d, and the legacy 32-bit sentinels are untouched.
	eocdrPos := len(data) - eocdr.Size
	assert.Equal(t, uint32(0xFFFFFFFF), binary.LittleEndian.Uint32(data[eocdrPos+16:eocdrPos+20]))

	loc64Pos := eocdrPos - zip64EOCDL.Size
	loc64Offset := binary.LittleEndian.Uint64(data[loc64Pos+8 : loc64Pos+16])

	end64Pos := int64(loc64Offset)
	cdOffset := binary.LittleEndian.Uint64(data[end64Pos+48 : end64Pos+56])
	assert.EqualValues(t, int64(len(prefix))+ /* original cdOffset */ int64(len("zip64 payload")+30+len("big.bin")), cdOffset)
}

func TestValidateOffsetsOnZip64Archive(t *testing.T) {
	path := writeTempFile(t, buildZip64Archive(t))
	require.NoError(t, Walk(path, 0))
}

// TestAdjustThenUndoRestoresOriginalBytes exercises the round-trip property:
// shifting an archive's offsets forward by d to match a physical prepend,
// then physically undoing that prepend and shifting back by -d, must land
// back on the original bytes exactly. The two Walk calls bracket a real
// change in physical layout, not a no-op — Walk always expects the file's
// current physical layout to already match the displacement it's given.
func TestAdjustThenUndoRestoresOriginalBytes(t *testing.T) {
	original := buildPlainZip(t)
	prefix := []byte("0123456789")
	d := int64(len(prefix))

	prefixed := append(append([]byte(nil), prefix...), original...)
	path := writeTempFile(t, prefixed)
	require.NoError(t, Walk(path, d))

	shifted, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, shifted[d:], 0644))
	require.NoError(t, Walk(path, -d))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, after)
}
