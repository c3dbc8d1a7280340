package linker

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tessaro/memopipe/internal/models"
)

// RecentIndex is the per-partition recent-memory handle the pipeline uses
// for dedupe and link candidate lookup. Callers create one and pass it in
// per invocation; there is no module-level singleton. Partitions are bounded
// by an LRU so a long-running host cannot grow the index without limit.
type RecentIndex struct {
	cache        *lru.Cache[string, []models.Memory]
	perPartition int
}

// NewRecentIndex creates an index holding up to maxPartitions partitions of
// up to perPartition recent memories each.
func NewRecentIndex(maxPartitions, perPartition int) (*RecentIndex, error) {
	if perPartition <= 0 {
		return nil, fmt.Errorf("recent index: perPartition must be > 0, got %d", perPartition)
	}
	cache, err := lru.New[string, []models.Memory](maxPartitions)
	if err != nil {
		return nil, fmt.Errorf("recent index: %w", err)
	}
	return &RecentIndex{cache: cache, perPartition: perPartition}, nil
}

// Recent returns the remembered memories for one partition, newest last.
func (ix *RecentIndex) Recent(category models.Category, contactID string) []models.Memory {
	memories, ok := ix.cache.Get(partitionKey(category, contactID))
	if !ok {
		return nil
	}
	return append([]models.Memory(nil), memories...)
}

// Remember records a memory in its partition, replacing any previous version
// with the same id and evicting the oldest entry beyond the partition bound.
func (ix *RecentIndex) Remember(mem models.Memory) {
	key := partitionKey(mem.Category, mem.Provenance.ContactID)
	memories, _ := ix.cache.Get(key)

	kept := memories[:0]
	for i := range memories {
		if memories[i].ID != mem.ID {
			kept = append(kept, memories[i])
		}
	}
	kept = append(kept, mem)
	if len(kept) > ix.perPartition {
		kept = kept[len(kept)-ix.perPartition:]
	}
	ix.cache.Add(key, append([]models.Memory(nil), kept...))
}

// Warm seeds a partition from a store read.
func (ix *RecentIndex) Warm(category models.Category, contactID string, memories []models.Memory) {
	if len(memories) > ix.perPartition {
		memories = memories[len(memories)-ix.perPartition:]
	}
	ix.cache.Add(partitionKey(category, contactID), append([]models.Memory(nil), memories...))
}

// CandidateIDs returns the ids of remembered memories in the partition,
// excluding excludeID.
func (ix *RecentIndex) CandidateIDs(category models.Category, contactID, excludeID string) []string {
	memories := ix.Recent(category, contactID)
	out := make([]string, 0, len(memories))
	for i := range memories {
		if memories[i].ID != excludeID {
			out = append(out, memories[i].ID)
		}
	}
	return out
}

func partitionKey(category models.Category, contactID string) string {
	return string(category) + "/" + contactID
}
