// Package iter defines the common iterator capability set every LSM layer
// (block, SST, sorted run, level, memtable, merge heap) satisfies. Keeping it a small interface
// rather than a class hierarchy lets the merge heap in lsm/merge operate
// uniformly over all of them without virtual dispatch on the hot path.
package iter

import "vecql/ikey"

// Iterator walks internal keys in ascending order.
type Iterator interface {
	SeekToFirst()
	Seek(userKey []byte, seq ikey.Seq)
	Valid() bool
	Key() ikey.Key
	Value() []byte
	Next()
	Err() error
}
