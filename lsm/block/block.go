// Package block implements the fixed-size-target record block that backs
// every SSTable, grounded on the
// teacher's serialize/deserialize style (model/record) and on
// original_source's storage/lsm/block.cpp for the exact fullness and
// iteration semantics.
package block

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"vecql/dberrors"
	"vecql/ikey"
)

const (
	recordFixedOverhead = 4 + 8 + 1 + 4 // ksize, seq, type, vsize
	offsetEntrySize     = 4
	checksumSize        = 8 // xxhash64 of the record region, appended by Finish
)

// Builder accumulates records into a single block until the configured
// target size would be exceeded.
type Builder struct {
	targetSize int
	buf        []byte
	offsets    []uint32
}

// NewBuilder creates a Builder targeting targetSize bytes per block.
func NewBuilder(targetSize int) *Builder {
	return &Builder{targetSize: targetSize}
}

// Empty reports whether no record has been appended yet.
func (b *Builder) Empty() bool { return len(b.offsets) == 0 }

// Count returns the number of records appended so far.
func (b *Builder) Count() int { return len(b.offsets) }

// Size returns the current encoded size, including the offset array that
// Finish would write, but excluding the trailing checksum.
func (b *Builder) Size() int {
	return len(b.buf) + len(b.offsets)*offsetEntrySize
}

// Append tries to add one record. It returns false (without modifying the
// builder) when doing so would make the projected size — record bytes plus
// the one extra uint32 offset entry the new record requires — exceed the
// target size, unless the block is still empty: the first record of a
// fresh block is always accepted regardless of size. Callers
// must start a new Builder and retry on false.
func (b *Builder) Append(key ikey.Key, value []byte) bool {
	recSize := recordFixedOverhead + len(key.UserKey) + len(value)
	projected := len(b.buf) + recSize + (len(b.offsets)+1)*offsetEntrySize
	if !b.Empty() && projected > b.targetSize {
		return false
	}

	offset := uint32(len(b.buf))

	var ksize [4]byte
	binary.LittleEndian.PutUint32(ksize[:], uint32(len(key.UserKey)))
	b.buf = append(b.buf, ksize[:]...)
	b.buf = append(b.buf, key.UserKey...)

	var seqType [9]byte
	binary.LittleEndian.PutUint64(seqType[0:8], key.Seq)
	seqType[8] = byte(key.Type)
	b.buf = append(b.buf, seqType[:]...)

	var vsize [4]byte
	binary.LittleEndian.PutUint32(vsize[:], uint32(len(value)))
	b.buf = append(b.buf, vsize[:]...)
	b.buf = append(b.buf, value...)

	b.offsets = append(b.offsets, offset)
	return true
}

// Finish writes the trailing offset array and a checksum of the record
// region, and returns the complete block bytes.
func (b *Builder) Finish() []byte {
	out := make([]byte, 0, b.Size()+checksumSize)
	out = append(out, b.buf...)
	for _, off := range b.offsets {
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], off)
		out = append(out, tmp[:]...)
	}
	var sumBytes [8]byte
	binary.LittleEndian.PutUint64(sumBytes[:], xxhash.Sum64(b.buf))
	out = append(out, sumBytes[:]...)
	return out
}

// Reset clears the builder so it can be reused for the next block.
func (b *Builder) Reset() {
	b.buf = b.buf[:0]
	b.offsets = b.offsets[:0]
}

// Block is a decoded, read-only view over one block's bytes: the record
// region (data) and the parsed offset table.
type Block struct {
	data    []byte // record region only, checksum and offset table stripped
	offsets []uint32
}

// Parse decodes raw (the full bytes produced by Finish, including the
// offset table and checksum) into a Block, verifying the checksum first.
func Parse(raw []byte, count int) (*Block, error) {
	if len(raw) < checksumSize+count*offsetEntrySize {
		return nil, dberrors.New(dberrors.KindCorruption, "block: truncated (%d bytes, count=%d)", len(raw), count)
	}
	sumOff := len(raw) - checksumSize
	offTableOff := sumOff - count*offsetEntrySize

	data := raw[:offTableOff]
	wantSum := binary.LittleEndian.Uint64(raw[sumOff:])
	if gotSum := xxhash.Sum64(data); gotSum != wantSum {
		return nil, dberrors.New(dberrors.KindCorruption, "block: checksum mismatch")
	}

	offsets := make([]uint32, count)
	for i := 0; i < count; i++ {
		offsets[i] = binary.LittleEndian.Uint32(raw[offTableOff+i*offsetEntrySize:])
	}
	return &Block{data: data, offsets: offsets}, nil
}

// Iterator walks a Block's records in encoded (ascending internal-key)
// order. The zero value is not usable; obtain one via Block.Iterator.
type Iterator struct {
	blk  *Block
	curr int // byte offset into blk.data; == len(blk.data) at end
}

// Iterator returns a fresh iterator over blk, positioned before the first
// record; call SeekToFirst or Seek before reading.
func (blk *Block) Iterator() *Iterator { return &Iterator{blk: blk, curr: 0} }

// SeekToFirst repositions the iterator at the first record.
func (it *Iterator) SeekToFirst() { it.curr = 0 }

// Valid reports whether curr designates a record, i.e. it is strictly
// before the offset-array region stripped out at Parse time.
func (it *Iterator) Valid() bool {
	return it.curr >= 0 && it.curr < len(it.blk.data)
}

// Key returns the internal key at the current position. Valid must be true.
func (it *Iterator) Key() ikey.Key {
	d := it.blk.data
	p := it.curr
	klen := int(binary.LittleEndian.Uint32(d[p:]))
	p += 4
	userKey := d[p : p+klen]
	p += klen
	seq := binary.LittleEndian.Uint64(d[p:])
	p += 8
	typ := ikey.RecordType(d[p])
	return ikey.Key{UserKey: userKey, Seq: seq, Type: typ}
}

// Value returns the value at the current position. Valid must be true.
func (it *Iterator) Value() []byte {
	d := it.blk.data
	p := it.curr
	klen := int(binary.LittleEndian.Uint32(d[p:]))
	p += 4 + klen + 8 + 1
	vlen := int(binary.LittleEndian.Uint32(d[p:]))
	p += 4
	return d[p : p+vlen]
}

// Next advances to the following record.
func (it *Iterator) Next() {
	d := it.blk.data
	p := it.curr
	klen := int(binary.LittleEndian.Uint32(d[p:]))
	p += 4 + klen + 8 + 1
	vlen := int(binary.LittleEndian.Uint32(d[p:]))
	p += 4 + vlen
	it.curr = p
}

// Seek repositions the iterator at the first record whose key is >=
// (userKey, seq, Value), or leaves it invalid if there is none. The scan
// always restarts from SeekToFirst, whatever the current position.
func (it *Iterator) Seek(userKey []byte, seq ikey.Seq) {
	it.SeekToFirst()
	target := ikey.QueryKey(userKey, seq)
	for it.Valid() && ikey.Less(it.Key(), target) {
		it.Next()
	}
}
