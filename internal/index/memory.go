package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Memory is a brute-force cosine-similarity index. It backs tests and
// small corpora, and is the reference for the ordering guarantees the
// persistent backends must match.
type Memory struct {
	mu           sync.RWMutex
	modelVersion string
	entries      []memEntry
	byID         map[string]int
}

type memEntry struct {
	Entry
	norm float64
}

// NewMemory creates an empty in-memory index bound to one embedding
// model version.
func NewMemory(modelVersion string) *Memory {
	return &Memory{
		modelVersion: modelVersion,
		byID:         make(map[string]int),
	}
}

// ModelVersion reports the vector space this index holds.
func (m *Memory) ModelVersion() string { return m.modelVersion }

// Upsert inserts entries, replacing any entry with the same chunk ID in
// place so the original insertion order is preserved.
func (m *Memory) Upsert(ctx context.Context, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		if len(e.Vector) == 0 {
			return fmt.Errorf("index: empty vector for chunk %s", e.Chunk.ChunkID)
		}
		me := memEntry{Entry: e, norm: vectorNorm(e.Vector)}
		if pos, ok := m.byID[e.Chunk.ChunkID]; ok {
			m.entries[pos] = me
			continue
		}
		m.byID[e.Chunk.ChunkID] = len(m.entries)
		m.entries = append(m.entries, me)
	}
	return nil
}

// Search scans all entries and returns the top k by cosine similarity.
// The sort is stable over insertion order, so repeated queries against
// an unchanged index return identical sequences.
func (m *Memory) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.entries) == 0 || k <= 0 {
		return nil, nil
	}

	qnorm := vectorNorm(vector)
	hits := make([]Hit, 0, len(m.entries))
	for _, e := range m.entries {
		hits = append(hits, Hit{
			Chunk:      e.Chunk,
			Similarity: cosine(vector, e.Vector, qnorm, e.norm),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *Memory) Delete(ctx context.Context, chunkIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	remove := make(map[string]bool, len(chunkIDs))
	for _, id := range chunkIDs {
		remove[id] = true
	}
	kept := m.entries[:0]
	for _, e := range m.entries {
		if !remove[e.Chunk.ChunkID] {
			kept = append(kept, e)
		}
	}
	m.entries = kept
	m.byID = make(map[string]int, len(m.entries))
	for i, e := range m.entries {
		m.byID[e.Chunk.ChunkID] = i
	}
	return nil
}

func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	m.byID = make(map[string]int)
	return nil
}

func (m *Memory) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32, anorm, bnorm float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	if anorm == 0 || bnorm == 0 {
		return 0
	}
	return dot / (anorm * bnorm)
}
