// Package binpattern is a small toolkit for reading and writing fixed-layout
// binary records ("patterns") at arbitrary file positions, in the vein of C
// structs. Reads are positional and validated against an optional magic
// byte sequence; writes are staged as pending byte ranges and applied later
// as a batch, so callers can finish a full read pass before committing
// anything.
//
// The package knows nothing about ZIP or any other format; it only knows
// about fields, records, and positions.
package binpattern

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Field describes one fixed-width member of a Record. Width is 1, 2, 4 or 8
// bytes. If Magic is non-nil, a Record read with ValidateMagic fails unless
// the bytes at this field's offset equal Magic exactly.
type Field struct {
	Name  string
	Width int
	Magic []byte
}

// Record is an ordered list of Fields plus a byte order. Size is the sum of
// the field widths; each field's offset is implied by its position in the
// list.
type Record struct {
	Order  binary.ByteOrder
	Fields []Field
	Size   int
}

// NewRecord builds a Record from an ordered list of fields, computing
// offsets and the total size. It panics if a Field's Magic doesn't match
// its declared Width — that's a programming error in the caller, not
// something that can happen from file contents.
func NewRecord(order binary.ByteOrder, fields ...Field) *Record {
	size := 0
	for _, f := range fields {
		if f.Magic != nil && len(f.Magic) != f.Width {
			panic(fmt.Sprintf("binpattern: field %q magic length %d != width %d", f.Name, len(f.Magic), f.Width))
		}
		size += f.Width
	}
	return &Record{Order: order, Fields: fields, Size: size}
}

func (r *Record) offsetOf(name string) (int, Field) {
	off := 0
	for _, f := range r.Fields {
		if f.Name == name {
			return off, f
		}
		off += f.Width
	}
	panic(fmt.Sprintf("binpattern: no such field %q", name))
}

// Instance is a Record together with the absolute file position it was read
// from and a private copy of its raw bytes. Instances are cheap, transient
// values; nothing about them outlives the read phase of a caller's
// analysis.
type Instance struct {
	Rec      *Record
	Position int64
	buf      []byte
}

// ReadUnvalidated reads exactly Rec.Size bytes at position from r and
// returns an Instance, without checking any field's magic.
func ReadUnvalidated(rec *Record, r io.ReaderAt, position int64) (*Instance, error) {
	buf := make([]byte, rec.Size)
	if _, err := r.ReadAt(buf, position); err != nil {
		return nil, err
	}
	return &Instance{Rec: rec, Position: position, buf: buf}, nil
}

// Read reads a Record at position and returns the Instance only if every
// field with a declared Magic matches. It returns (nil, nil) — not an
// error — when the bytes are present but don't match, since a magic
// mismatch is routine while probing candidate positions.
func Read(rec *Record, r io.ReaderAt, position int64) (*Instance, error) {
	inst, err := ReadUnvalidated(rec, r, position)
	if err != nil {
		return nil, err
	}
	if !inst.ValidateMagic() {
		return nil, nil
	}
	return inst, nil
}

// ValidateMagic reports whether every field with a declared Magic matches
// the instance's bytes at that field's offset.
func (in *Instance) ValidateMagic() bool {
	off := 0
	for _, f := range in.Rec.Fields {
		if f.Magic != nil {
			for i, b := range f.Magic {
				if in.buf[off+i] != b {
					return false
				}
			}
		}
		off += f.Width
	}
	return true
}

// StepFunc supplies the number of bytes to advance past a non-matching read
// during Seek; a return of 0 ends the search.
type StepFunc func(*Instance) int64

// SeekBackward searches for rec's magic starting at startPosition and
// moving one byte at a time toward the start of the file, stopping once
// the position would leave [0, size(r)-rec.Size] or, if maxDistance > 0,
// after that many steps. This is the only direction the ZIP walker needs:
// backward from EOF to find the End-of-Central-Directory record.
func SeekBackward(rec *Record, r io.ReaderAt, size int64, startPosition int64, maxDistance int64) (*Instance, error) {
	maxPosition := size - int64(rec.Size)
	start := startPosition
	if start > maxPosition {
		start = maxPosition
	}
	steps := int64(0)
	step := func(*Instance) int64 {
		if maxDistance > 0 {
			steps++
			if steps > maxDistance {
				return 0
			}
		}
		return -1
	}
	return Seek(rec, r, start, step, 0, maxPosition)
}

// Seek searches for rec's magic starting at startPosition. After each
// non-matching read, step is called with the failed Instance to get the
// (possibly negative) number of bytes to advance for the next attempt; a
// step of 0 ends the search without a match. Every attempt starts at a
// position within [minPosition, maxPosition]; Seek does not know size(r)
// and does not clamp maxPosition, so a read running past the end of r
// returns r's error.
func Seek(rec *Record, r io.ReaderAt, startPosition int64, step StepFunc, minPosition, maxPosition int64) (*Instance, error) {
	for pos := startPosition; pos >= minPosition && pos <= maxPosition; {
		inst, err := ReadUnvalidated(rec, r, pos)
		if err != nil {
			return nil, err
		}
		if inst.ValidateMagic() {
			return inst, nil
		}
		delta := step(inst)
		if delta == 0 {
			return nil, nil
		}
		pos += delta
	}
	return nil, nil
}

func (in *Instance) field(name string, minWidth int) (int, Field) {
	off, f := in.Rec.offsetOf(name)
	if f.Width < minWidth {
		panic(fmt.Sprintf("binpattern: field %q is %d bytes, need at least %d", name, f.Width, minWidth))
	}
	return off, f
}

// Int8 returns field name's value as a signed 8-bit integer.
func (in *Instance) Int8(name string) int8 {
	off, _ := in.field(name, 1)
	return int8(in.buf[off])
}

// Int16 returns field name's value as a signed 16-bit integer.
func (in *Instance) Int16(name string) int16 {
	off, _ := in.field(name, 2)
	return int16(in.Rec.Order.Uint16(in.buf[off:]))
}

// Int32 returns field name's value as a signed 32-bit integer.
func (in *Instance) Int32(name string) int32 {
	off, _ := in.field(name, 4)
	return int32(in.Rec.Order.Uint32(in.buf[off:]))
}

// Uint16 returns field name's value as an unsigned 16-bit integer widened
// to int, never sign-extended.
func (in *Instance) Uint16(name string) int {
	off, _ := in.field(name, 2)
	return int(in.Rec.Order.Uint16(in.buf[off:]))
}

// Uint32 returns field name's value as an unsigned 32-bit integer widened
// to int64, never sign-extended.
func (in *Instance) Uint32(name string) int64 {
	off, _ := in.field(name, 4)
	return int64(in.Rec.Order.Uint32(in.buf[off:]))
}

// Int64 returns field name's value as a signed/unsigned 64-bit integer
// (ZIP64 fields are unsigned but Go's int64 holds every value APPNOTE
// ever produces).
func (in *Instance) Int64(name string) int64 {
	off, _ := in.field(name, 8)
	return int64(in.Rec.Order.Uint64(in.buf[off:]))
}

// Bytes returns a copy of field name's raw bytes.
func (in *Instance) Bytes(name string) []byte {
	off, f := in.Rec.offsetOf(name)
	out := make([]byte, f.Width)
	copy(out, in.buf[off:off+f.Width])
	return out
}

// PendingWrite is an absolute file position and the bytes to place there.
type PendingWrite struct {
	Position int64
	Data     []byte
}

func (in *Instance) prepWrite(name string, width int, encode func([]byte)) PendingWrite {
	off, f := in.field(name, width)
	if f.Width != width {
		panic(fmt.Sprintf("binpattern: field %q is %d bytes, write wants exactly %d", name, f.Width, width))
	}
	data := make([]byte, width)
	encode(data)
	return PendingWrite{Position: in.Position + int64(off), Data: data}
}

// WriteInt32 stages a write of a 4-byte field.
func (in *Instance) WriteInt32(name string, v uint32) PendingWrite {
	return in.prepWrite(name, 4, func(b []byte) { in.Rec.Order.PutUint32(b, v) })
}

// WriteInt16 stages a write of a 2-byte field.
func (in *Instance) WriteInt16(name string, v uint16) PendingWrite {
	return in.prepWrite(name, 2, func(b []byte) { in.Rec.Order.PutUint16(b, v) })
}

// WriteInt64 stages a write of an 8-byte field.
func (in *Instance) WriteInt64(name string, v uint64) PendingWrite {
	return in.prepWrite(name, 8, func(b []byte) { in.Rec.Order.PutUint64(b, v) })
}

// WriteUint8 stages a write of a 1-byte field.
func (in *Instance) WriteUint8(name string, v byte) PendingWrite {
	return in.prepWrite(name, 1, func(b []byte) { b[0] = v })
}

// WriteBytes stages a write of raw bytes into a field, which must be at
// least len(data) wide.
func (in *Instance) WriteBytes(name string, data []byte) PendingWrite {
	off, f := in.Rec.offsetOf(name)
	if len(data) > f.Width {
		panic(fmt.Sprintf("binpattern: field %q is %d bytes, can't hold %d bytes", name, f.Width, len(data)))
	}
	return PendingWrite{Position: in.Position + int64(off), Data: append([]byte(nil), data...)}
}

// ApplyWrites commits writes in ascending position order to w. Callers are
// expected to have already sorted writes (see Queue); overlapping writes
// are not supported and never arise from a single ZIP walk.
func ApplyWrites(writes []PendingWrite, w io.WriterAt) error {
	for _, write := range writes {
		if _, err := w.WriteAt(write.Data, write.Position); err != nil {
			return err
		}
	}
	return nil
}
