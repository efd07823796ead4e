// Package ikey implements the internal-key data model shared by every
// storage component: the (user_key, seq, type) triple and its ordering.
package ikey

import "bytes"

// RecordType distinguishes a live value from a tombstone.
type RecordType uint8

const (
	// Value marks a live record.
	Value RecordType = 1
	// Deletion marks a tombstone.
	Deletion RecordType = 2
)

func (t RecordType) String() string {
	if t == Deletion {
		return "Deletion"
	}
	return "Value"
}

// Seq is a per-write monotonically increasing sequence number.
type Seq = uint64

// Key is the internal key used throughout the LSM tree: a user key paired
// with the sequence number and record type that produced it.
type Key struct {
	UserKey []byte
	Seq     Seq
	Type    RecordType
}

// New builds a Key.
func New(userKey []byte, seq Seq, typ RecordType) Key {
	return Key{UserKey: userKey, Seq: seq, Type: typ}
}

// Compare orders keys lexicographically by user key ascending; within an
// equal user key, higher sequence numbers sort first (newer records sort
// earlier), matching Type is not part of the ordering: a Value and
// a Deletion at the same (user_key, seq) are never emitted concurrently.
func Compare(a, b Key) int {
	if c := bytes.Compare(a.UserKey, b.UserKey); c != 0 {
		return c
	}
	switch {
	case a.Seq > b.Seq:
		return -1
	case a.Seq < b.Seq:
		return 1
	default:
		return 0
	}
}

// Less reports whether a sorts strictly before b.
func Less(a, b Key) bool { return Compare(a, b) < 0 }

// Size returns the encoded size of the key's fixed-width fields plus the
// user key payload: 4-byte length prefix, user key, 8-byte seq, 1-byte type.
func (k Key) Size() int { return 4 + len(k.UserKey) + 8 + 1 }

// QueryKey builds the synthetic target key used to search for the newest
// record of userKey visible at seq: (user_key, seq, Value).
func QueryKey(userKey []byte, seq Seq) Key {
	return Key{UserKey: userKey, Seq: seq, Type: Value}
}

// FirstOf returns the key that compares least (sorts first) among all
// internal keys sharing userKey: the highest possible seq. Used to seek to
// the newest record of a user key regardless of query snapshot.
func FirstOf(userKey []byte) Key {
	return Key{UserKey: userKey, Seq: ^Seq(0), Type: Value}
}
