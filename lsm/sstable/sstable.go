// Package sstable implements the on-disk, immutable sorted-string table
// format described in and §6: a Builder that buffers blocks
// and emits a complete SST plus its Info sidecar, and a Reader that
// resolves point lookups via a sparse block index and a bloom filter.
//
// Grounded on original_source/src/storage/lsm/sst.cpp for the exact
// Get/Seek boundary-block semantics, and on lsm/sstable
// package for the builder/reader split and sidecar-info idiom (the
// teacher's multi-file/summary-component layout is replaced by the
// single-file layout mandates).
package sstable

import (
	"encoding/binary"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"vecql/config"
	"vecql/dberrors"
	"vecql/hashutil"
	"vecql/ikey"
	"vecql/lsm/block"
)

// GetResult classifies the outcome of a point lookup.
type GetResult int

const (
	NotFound GetResult = iota
	Found
	Deleted
)

// BlockHandle locates one block within an SST file.
type BlockHandle struct {
	Offset uint64
	Size   uint64
	Count  uint64
}

type indexEntry struct {
	Key    ikey.Key
	Handle BlockHandle
}

// Info is the sidecar metadata the builder produces for each SST: everything needed to open and query the file without re-scanning it.
type Info struct {
	ID                uint64
	IndexOffset       uint64
	BloomFilterOffset uint64
	Count             uint64
	Size              uint64
	Smallest, Largest ikey.Key
}

// Builder buffers records into blocks and assembles one SST file.
type Builder struct {
	blockSize       int
	bloomBitsPerKey int
	compression     config.Compression

	out          []byte
	blockBuilder *block.Builder
	index        []indexEntry
	digests      []uint64
	zstdEnc      *zstd.Encoder

	count             int
	smallest, largest ikey.Key
	haveSmallest      bool
}

// NewBuilder creates a Builder targeting blockSize bytes per block and
// bloomBitsPerKey bits per key in the filter, compressing each
// finished block per compression.
func NewBuilder(blockSize, bloomBitsPerKey int, compression config.Compression) *Builder {
	return &Builder{
		blockSize:       blockSize,
		bloomBitsPerKey: bloomBitsPerKey,
		compression:     compression,
		blockBuilder:    block.NewBuilder(blockSize),
	}
}

// compressBlock encodes raw per b.compression. snappy and zstd's one-shot
// encoders never fail on well-formed input, so this has no error return.
func (b *Builder) compressBlock(raw []byte) []byte {
	switch b.compression {
	case config.CompressionSnappy:
		return snappy.Encode(nil, raw)
	case config.CompressionZstd:
		if b.zstdEnc == nil {
			b.zstdEnc, _ = zstd.NewWriter(nil)
		}
		return b.zstdEnc.EncodeAll(raw, nil)
	default:
		return raw
	}
}

// Append adds one record. Input must arrive in ascending internal-key order
// (the output of a memtable scan or a compaction merge); Builder does not
// re-sort.
func (b *Builder) Append(key ikey.Key, value []byte) {
	if !b.blockBuilder.Append(key, value) {
		b.flushBlock()
		if !b.blockBuilder.Append(key, value) {
			panic("sstable: fresh block rejected its first record")
		}
	}

	if !b.haveSmallest {
		b.smallest = key
		b.largest = key
		b.haveSmallest = true
	} else if ikey.Compare(key, b.largest) > 0 {
		b.largest = key
	}
	b.count++
	b.digests = append(b.digests, hashutil.Hash64A(key.UserKey, hashutil.BloomSeed))
}

// flushBlock closes the in-progress block, records its index entry (keyed
// by the largest key accumulated in it — because input arrives sorted,
// that is exactly the running largest key at flush time), and resets the
// block builder for the next block.
func (b *Builder) flushBlock() {
	if b.blockBuilder.Empty() {
		return
	}
	offset := uint64(len(b.out))
	count := uint64(b.blockBuilder.Count())
	raw := b.blockBuilder.Finish()
	compressed := b.compressBlock(raw)
	b.out = append(b.out, compressed...)
	b.index = append(b.index, indexEntry{
		Key:    b.largest,
		Handle: BlockHandle{Offset: offset, Size: uint64(len(compressed)), Count: count},
	})
	b.blockBuilder.Reset()
}

// Finish flushes any pending block and writes the index, bloom filter, and
// bounds regions, returning the complete file bytes and its sidecar Info.
// id is the caller-assigned SST id.
func (b *Builder) Finish(id uint64) ([]byte, Info) {
	b.flushBlock()

	indexOffset := uint64(len(b.out))
	for _, e := range b.index {
		b.out = appendIndexEntry(b.out, e)
	}

	bloomOffset := uint64(len(b.out))
	bf := NewBloom(b.count, b.bloomBitsPerKey)
	for _, d := range b.digests {
		bf.AddDigest(d)
	}
	encoded := bf.Encode()
	b.out = appendU32(b.out, uint32(len(encoded)))
	b.out = append(b.out, encoded...)

	b.out = appendBoundKey(b.out, b.smallest)
	b.out = appendBoundKey(b.out, b.largest)

	info := Info{
		ID:                id,
		IndexOffset:       indexOffset,
		BloomFilterOffset: bloomOffset,
		Count:             uint64(b.count),
		Size:              uint64(len(b.out)),
		Smallest:          b.smallest,
		Largest:           b.largest,
	}
	return b.out, info
}

func appendU32(dst []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(dst, tmp[:]...)
}

func appendU64(dst []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(dst, tmp[:]...)
}

func appendIndexEntry(dst []byte, e indexEntry) []byte {
	dst = appendU32(dst, uint32(len(e.Key.UserKey)))
	dst = append(dst, e.Key.UserKey...)
	dst = appendU64(dst, e.Key.Seq)
	dst = append(dst, byte(e.Key.Type))
	dst = appendU64(dst, e.Handle.Offset)
	dst = appendU64(dst, e.Handle.Size)
	dst = appendU64(dst, e.Handle.Count)
	return dst
}

func appendBoundKey(dst []byte, k ikey.Key) []byte {
	dst = appendU32(dst, uint32(len(k.UserKey)))
	dst = append(dst, k.UserKey...)
	dst = appendU64(dst, k.Seq)
	dst = append(dst, byte(k.Type))
	return dst
}

// Reader opens a previously-built SST for point and range lookups. It reads
// the index, bloom filter, and bounds eagerly; block data is
// read on demand through ra.
type Reader struct {
	ra          io.ReaderAt
	info        Info
	compression config.Compression

	index   []indexEntry
	bloom   *Bloom
	zstdDec *zstd.Decoder
}

// Open parses an SST's tail (IndexOffset..EOF) via ra and returns a Reader
// that decompresses blocks per compression — the same setting the table's
// Builder was constructed with.
func Open(ra io.ReaderAt, info Info, compression config.Compression) (*Reader, error) {
	tailLen := info.Size - info.IndexOffset
	tail := make([]byte, tailLen)
	if _, err := ra.ReadAt(tail, int64(info.IndexOffset)); err != nil {
		return nil, dberrors.Wrap(dberrors.KindStorage, err, "sstable: read tail")
	}

	r := &Reader{ra: ra, info: info, compression: compression}

	pos := 0
	indexLen := int(info.BloomFilterOffset - info.IndexOffset)
	for pos < indexLen {
		e, n, err := decodeIndexEntry(tail[pos:])
		if err != nil {
			return nil, err
		}
		r.index = append(r.index, e)
		pos += n
	}

	if pos+4 > len(tail) {
		return nil, dberrors.New(dberrors.KindCorruption, "sstable: truncated bloom filter length")
	}
	bfSize := binary.LittleEndian.Uint32(tail[pos:])
	pos += 4
	if pos+int(bfSize) > len(tail) {
		return nil, dberrors.New(dberrors.KindCorruption, "sstable: bloom filter size mismatch")
	}
	bf, err := DecodeBloom(tail[pos : pos+int(bfSize)])
	if err != nil {
		return nil, dberrors.Wrap(dberrors.KindCorruption, err, "sstable: decode bloom filter")
	}
	r.bloom = bf
	pos += int(bfSize)

	smallest, n, err := decodeBoundKey(tail[pos:])
	if err != nil {
		return nil, err
	}
	pos += n
	largest, _, err := decodeBoundKey(tail[pos:])
	if err != nil {
		return nil, err
	}
	r.info.Smallest, r.info.Largest = smallest, largest

	return r, nil
}

func decodeIndexEntry(b []byte) (indexEntry, int, error) {
	if len(b) < 4 {
		return indexEntry{}, 0, dberrors.New(dberrors.KindCorruption, "sstable: truncated index entry")
	}
	ksize := int(binary.LittleEndian.Uint32(b))
	need := 4 + ksize + 8 + 1 + 8 + 8 + 8
	if len(b) < need {
		return indexEntry{}, 0, dberrors.New(dberrors.KindCorruption, "sstable: truncated index entry body")
	}
	p := 4
	userKey := append([]byte(nil), b[p:p+ksize]...)
	p += ksize
	seq := binary.LittleEndian.Uint64(b[p:])
	p += 8
	typ := ikey.RecordType(b[p])
	p++
	offset := binary.LittleEndian.Uint64(b[p:])
	p += 8
	size := binary.LittleEndian.Uint64(b[p:])
	p += 8
	count := binary.LittleEndian.Uint64(b[p:])
	p += 8
	return indexEntry{
		Key:    ikey.Key{UserKey: userKey, Seq: seq, Type: typ},
		Handle: BlockHandle{Offset: offset, Size: size, Count: count},
	}, p, nil
}

func decodeBoundKey(b []byte) (ikey.Key, int, error) {
	if len(b) < 4 {
		return ikey.Key{}, 0, dberrors.New(dberrors.KindCorruption, "sstable: truncated bound key")
	}
	ksize := int(binary.LittleEndian.Uint32(b))
	need := 4 + ksize + 8 + 1
	if len(b) < need {
		return ikey.Key{}, 0, dberrors.New(dberrors.KindCorruption, "sstable: truncated bound key body")
	}
	p := 4
	userKey := append([]byte(nil), b[p:p+ksize]...)
	p += ksize
	seq := binary.LittleEndian.Uint64(b[p:])
	p += 8
	typ := ikey.RecordType(b[p])
	p++
	return ikey.Key{UserKey: userKey, Seq: seq, Type: typ}, p, nil
}

// Smallest returns the SST's smallest stored internal key.
func (r *Reader) Smallest() ikey.Key { return r.info.Smallest }

// Largest returns the SST's largest stored internal key.
func (r *Reader) Largest() ikey.Key { return r.info.Largest }

// Info returns the sidecar info, with Smallest/Largest filled from the
// parsed bounds region.
func (r *Reader) Info() Info { return r.info }

func (r *Reader) loadBlock(i int) (*block.Block, error) {
	h := r.index[i].Handle
	raw := make([]byte, h.Size)
	if _, err := r.ra.ReadAt(raw, int64(h.Offset)); err != nil {
		return nil, dberrors.Wrap(dberrors.KindStorage, err, "sstable: read block")
	}
	decoded, err := r.decompressBlock(raw)
	if err != nil {
		return nil, err
	}
	return block.Parse(decoded, int(h.Count))
}

// decompressBlock reverses Builder.compressBlock.
func (r *Reader) decompressBlock(data []byte) ([]byte, error) {
	switch r.compression {
	case config.CompressionSnappy:
		out, err := snappy.Decode(nil, data)
		if err != nil {
			return nil, dberrors.Wrap(dberrors.KindCorruption, err, "sstable: snappy decode")
		}
		return out, nil
	case config.CompressionZstd:
		if r.zstdDec == nil {
			dec, err := zstd.NewReader(nil)
			if err != nil {
				return nil, dberrors.Wrap(dberrors.KindCorruption, err, "sstable: init zstd decoder")
			}
			r.zstdDec = dec
		}
		out, err := r.zstdDec.DecodeAll(data, nil)
		if err != nil {
			return nil, dberrors.Wrap(dberrors.KindCorruption, err, "sstable: zstd decode")
		}
		return out, nil
	default:
		return data, nil
	}
}

// lowerBound returns the first index i such that r.index[i].Key >= target,
// or len(r.index) if none does.
func (r *Reader) lowerBound(target ikey.Key) int {
	lo, hi := 0, len(r.index)
	for lo < hi {
		mid := lo + (hi-lo)/2
		if ikey.Less(r.index[mid].Key, target) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Get resolves the newest record for userKey visible at seq.
// It probes the bloom filter first, then the index-selected block, and
// falls back to the preceding block when that block's range boundary
// straddles the user key's record group.
func (r *Reader) Get(userKey []byte, seq ikey.Seq) (value []byte, result GetResult, err error) {
	if !r.bloom.TestKey(userKey) {
		return nil, NotFound, nil
	}

	target := ikey.QueryKey(userKey, seq)
	i := r.lowerBound(target)
	if i >= len(r.index) {
		return nil, NotFound, nil
	}

	v, res, err := r.scanBlockFor(i, userKey, seq)
	if err != nil {
		return nil, NotFound, err
	}
	if res != NotFound {
		return v, res, nil
	}

	if i > 0 && sameUserKey(r.index[i-1].Key, userKey) {
		v2, res2, err := r.scanBlockFor(i-1, userKey, seq)
		if err != nil {
			return nil, NotFound, err
		}
		if res2 != NotFound {
			return v2, res2, nil
		}
	}
	return nil, NotFound, nil
}

func sameUserKey(k ikey.Key, userKey []byte) bool {
	return string(k.UserKey) == string(userKey)
}

// scanBlockFor loads block i and returns the first record matching userKey
// with seq <= the query seq. Records within a user-key group appear
// newest-seq-first, so the first match found is the one visible to the
// query.
func (r *Reader) scanBlockFor(i int, userKey []byte, seq ikey.Seq) ([]byte, GetResult, error) {
	blk, err := r.loadBlock(i)
	if err != nil {
		return nil, NotFound, err
	}
	it := blk.Iterator()
	for it.SeekToFirst(); it.Valid(); it.Next() {
		k := it.Key()
		if !sameUserKey(k, userKey) {
			continue
		}
		if k.Seq > seq {
			continue
		}
		if k.Type == ikey.Deletion {
			return nil, Deleted, nil
		}
		return append([]byte(nil), it.Value()...), Found, nil
	}
	return nil, NotFound, nil
}

// Iterator walks the SST's records in ascending internal-key order across
// block boundaries.
type Iterator struct {
	r       *Reader
	blockID int
	it      *block.Iterator
	err     error
}

// Iterator returns a fresh iterator positioned before the first record.
func (r *Reader) Iterator() *Iterator { return &Iterator{r: r, blockID: -1} }

func (it *Iterator) loadBlockAt(i int) bool {
	if i < 0 || i >= len(it.r.index) {
		it.it = nil
		return false
	}
	blk, err := it.r.loadBlock(i)
	if err != nil {
		it.err = err
		it.it = nil
		return false
	}
	it.blockID = i
	it.it = blk.Iterator()
	it.it.SeekToFirst()
	return true
}

// SeekToFirst repositions the iterator at the SST's first record.
func (it *Iterator) SeekToFirst() {
	it.err = nil
	it.loadBlockAt(0)
}

// Seek repositions the iterator at the first record >= (userKey, seq,
// Value): binary-search the index, seek within that block, and fall
// through to the next block if the target sorts after everything the
// chosen block holds (mirrors original_source's SSTableIterator::Seek).
func (it *Iterator) Seek(userKey []byte, seq ikey.Seq) {
	it.err = nil
	target := ikey.QueryKey(userKey, seq)
	i := it.r.lowerBound(target)
	if !it.loadBlockAt(i) {
		return
	}
	it.it.Seek(userKey, seq)
	if !it.it.Valid() {
		it.loadBlockAt(it.blockID + 1)
	}
}

// Valid reports whether the iterator is positioned at a record.
func (it *Iterator) Valid() bool { return it.err == nil && it.it != nil && it.it.Valid() }

// Err returns the first error encountered while loading blocks, if any.
func (it *Iterator) Err() error { return it.err }

// Key returns the current record's internal key. Valid must be true.
func (it *Iterator) Key() ikey.Key { return it.it.Key() }

// Value returns the current record's value. Valid must be true.
func (it *Iterator) Value() []byte { return it.it.Value() }

// Next advances to the following record, crossing block boundaries.
func (it *Iterator) Next() {
	it.it.Next()
	if it.it.Valid() {
		return
	}
	it.loadBlockAt(it.blockID + 1)
}
