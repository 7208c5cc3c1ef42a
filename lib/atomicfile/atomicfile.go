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

package atomicfile

import (
	"errors"
	"io"
	"io/ioutil"
	"os"
	"path"
)

// AtomicFile accumulates writes in a sibling temporary file and either
// commits them over the target path (Commit) or discards them (Close
// without Commit).
type AtomicFile interface {
	io.WriteCloser
	Commit() error
	// Name returns the path of the temporary file backing this AtomicFile,
	// so that a committer which needs the temp file by path — rather than
	// by the io.Writer returned here — can operate on it before Commit is
	// called (zipprefix.ApplyPrefixesToZip does this to run the offset
	// walker against the not-yet-committed file).
	Name() string
}

type atomicFile struct {
	name     string
	tempfile *os.File
}

// New creates an AtomicFile that will, on Commit, atomically replace name
// with whatever was written to it. suffix, if non-empty, is folded into
// the temp file's name (in addition to the random suffix Go's TempFile
// always adds) to make concurrent runs against files in the same
// directory easier to tell apart in a directory listing.
func New(name string, suffix string) (AtomicFile, error) {
	pattern := path.Base(name) + ".tmp"
	if suffix != "" {
		pattern = path.Base(name) + "." + suffix + ".tmp"
	}
	tempfile, err := ioutil.TempFile(path.Dir(name), pattern)
	if err != nil {
		return nil, err
	}
	return &atomicFile{name, tempfile}, nil
}

func (f *atomicFile) Write(d []byte) (int, error) {
	return f.tempfile.Write(d)
}

func (f *atomicFile) Name() string {
	return f.tempfile.Name()
}

func (f *atomicFile) Close() error {
	if f.tempfile == nil {
		return nil
	}
	f.tempfile.Close()
	os.Remove(f.tempfile.Name())
	f.tempfile = nil
	return nil
}

func (f *atomicFile) Commit() error {
	if f.tempfile == nil {
		return errors.New("file is closed")
	}
	f.tempfile.Chmod(0644)
	f.tempfile.Close()
	// rename can't overwrite on windows
	if err := os.Remove(f.name); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Rename(f.tempfile.Name(), f.name); err != nil {
		return err
	}
	f.tempfile = nil
	return nil
}
