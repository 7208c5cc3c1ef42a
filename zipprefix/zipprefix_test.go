package zipprefix

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klausbrunner/zip-prefixer/lib/atomicfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildZipFile(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range entries {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func readZipEntries(t *testing.T, path string) map[string]string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	out := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		var buf bytes.Buffer
		_, err = buf.ReadFrom(rc)
		rc.Close()
		require.NoError(t, err)
		out[f.Name] = buf.String()
	}
	return out
}

func TestApplyPrefixesToZipWithBytesPrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.zip")
	buildZipFile(t, path, map[string]string{"hello.txt": "hello, world"})

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	n, err := ApplyPrefixesToZip(path, BytesPrefix([]byte("#!/bin/sh\n")))
	require.NoError(t, err)
	assert.EqualValues(t, len("#!/bin/sh\n"), n)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(after)), int64(len(before))+n)
	assert.Equal(t, "#!/bin/sh\n", string(after[:n]))

	assert.Equal(t, map[string]string{"hello.txt": "hello, world"}, readZipEntries(t, path))
	assert.NoError(t, ValidateOffsets(path))
}

func TestApplyPrefixesToZipWithMultiplePrefixes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.zip")
	buildZipFile(t, path, map[string]string{"a.txt": "aaa", "b.txt": "bbb"})

	prefixFile := filepath.Join(t.TempDir(), "prefix-from-file.bin")
	require.NoError(t, os.WriteFile(prefixFile, []byte("FROM-FILE"), 0644))

	n, err := ApplyPrefixesToZip(path, BytesPrefix([]byte("HEAD")), FilePrefix(prefixFile), BytesPrefix([]byte("TAIL")))
	require.NoError(t, err)
	assert.EqualValues(t, len("HEADFROM-FILETAIL"), n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "HEADFROM-FILETAIL", string(data[:n]))

	assert.Equal(t, map[string]string{"a.txt": "aaa", "b.txt": "bbb"}, readZipEntries(t, path))
}

func TestApplyPrefixesToZipWithNoPrefixesIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.zip")
	buildZipFile(t, path, map[string]string{"hello.txt": "hello, world"})

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	n, err := ApplyPrefixesToZip(path)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestApplyPrefixesToZipRefusesAlreadyStaleArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.zip")
	buildZipFile(t, path, map[string]string{"hello.txt": "hello, world"})

	original, err := os.ReadFile(path)
	require.NoError(t, err)
	stale := append([]byte("garbage"), original...)
	require.NoError(t, os.WriteFile(path, stale, 0644))

	_, err = ApplyPrefixesToZip(path, BytesPrefix([]byte("x")))
	require.Error(t, err)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, stale, after, "a refused prefix must leave the target file untouched")
}

func TestApplyPrefixesToZipRejectsNotAZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notazip.bin")
	require.NoError(t, os.WriteFile(path, []byte("plain text, not a zip"), 0644))

	_, err := ApplyPrefixesToZip(path, BytesPrefix([]byte("x")))
	require.Error(t, err)
}

func TestValidateOffsetsOnPlainZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.zip")
	buildZipFile(t, path, map[string]string{"hello.txt": "hello, world"})
	assert.NoError(t, ValidateOffsets(path))
}

func TestAdjustOffsetsZeroDisplacementAcceptsCleanArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.zip")
	buildZipFile(t, path, map[string]string{"hello.txt": "hello, world"})
	assert.NoError(t, AdjustOffsets(path, 0))
}

func TestApplyPrefixesToWriterLeavesSourceUntouchedAndStreamsResult(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.zip")
	buildZipFile(t, path, map[string]string{"hello.txt": "hello, world"})

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	destPath := filepath.Join(t.TempDir(), "out.zip")
	out, err := atomicfile.New(destPath, "")
	require.NoError(t, err)

	n, err := ApplyPrefixesToWriter(path, out, BytesPrefix([]byte("#!/bin/sh\n")))
	require.NoError(t, err)
	assert.EqualValues(t, len("#!/bin/sh\n"), n)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after, "ApplyPrefixesToWriter must not modify its source path")

	assert.Equal(t, map[string]string{"hello.txt": "hello, world"}, readZipEntries(t, destPath))
	assert.NoError(t, ValidateOffsets(destPath))
}
