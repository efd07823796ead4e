// Package cache implements the engine's block cache: a sharded LRU keyed
// by (SST id, block offset) holding decoded block bytes. lsm.Engine
// allocates one, but the SST read path (sstable.Reader) does not consult
// it: every block read still goes to the file and is re-checksummed.
//
// Grounded on ReadPathCache (lsm/cache/read_path_cache.go),
// generalized from a single global lru_cache.LRUCache into the sharded
// design calls for ("a sharded LRU with per-shard locks"): each
// shard owns an independent lru_cache.LRUCache instance, so locking one
// shard never blocks lookups against another.
package cache

import (
	"vecql/hashutil"
	"vecql/lsm/lru_cache"
)

const shardCount = 16

// BlockKey identifies one cached block.
type BlockKey struct {
	SSTID  uint64
	Offset uint64
}

// BlockCache is a sharded LRU cache over decoded block bytes.
type BlockCache struct {
	shards [shardCount]*lru_cache.LRUCache[BlockKey, []byte]
}

// NewBlockCache creates a BlockCache with perShardCapacity entries per
// shard (total capacity is roughly shardCount * perShardCapacity).
func NewBlockCache(perShardCapacity uint32) *BlockCache {
	bc := &BlockCache{}
	for i := range bc.shards {
		bc.shards[i] = lru_cache.NewLRUCache[BlockKey, []byte](perShardCapacity)
	}
	return bc
}

func (bc *BlockCache) shardFor(k BlockKey) *lru_cache.LRUCache[BlockKey, []byte] {
	var buf [16]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(k.SSTID >> (8 * i))
		buf[8+i] = byte(k.Offset >> (8 * i))
	}
	h := hashutil.Hash64A(buf[:], 0)
	return bc.shards[h%shardCount]
}

// Get returns the cached block bytes for k, if present.
func (bc *BlockCache) Get(k BlockKey) ([]byte, bool) {
	v, err := bc.shardFor(k).Get(k)
	return v, err == nil
}

// Put inserts the decoded block bytes for k.
func (bc *BlockCache) Put(k BlockKey, data []byte) {
	bc.shardFor(k).Put(k, data)
}

// Invalidate drops a key, e.g. when the owning SST is deleted after
// compaction.
func (bc *BlockCache) Invalidate(k BlockKey) {
	_ = bc.shardFor(k).Remove(k)
}
