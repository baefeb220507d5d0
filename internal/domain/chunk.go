package domain

import (
	"fmt"
	"time"
)

// ChunkMetadata is the metadata attached to every indexed chunk
type ChunkMetadata struct {
	Category    string `json:"category"`
	Source      string `json:"source"`
	Contributor string `json:"contributor,omitempty"`
}

// WorldBookChunk is one embeddable slice of an entry's document text. The
// vector collection is a derived projection: the full chunk set for an entry
// is replaced wholesale whenever the entry changes.
type WorldBookChunk struct {
	EntryID    string
	ChunkIndex int
	Content    string
	Embedding  []float32
	Metadata   ChunkMetadata
	CreatedAt  time.Time
}

// ChunkID returns the index-side id, "{entry_id}:{chunk_index}"
func (c *WorldBookChunk) ChunkID() string {
	return fmt.Sprintf("%s:%d", c.EntryID, c.ChunkIndex)
}
