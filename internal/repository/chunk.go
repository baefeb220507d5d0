package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/odysseia-chat/worldbook/internal/domain"
	"github.com/pgvector/pgvector-go"
)

// ChunkRepository owns the derived vector collection. It is never part of a
// transaction with the authoritative tables; the chunk set for an entry is
// replaced wholesale in its own transaction.
type ChunkRepository struct {
	pool *pgxpool.Pool
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{pool: pool}
}

// ReplaceChunks deletes every chunk for the entry and inserts the fresh set
// atomically, so a re-index never leaves orphans from the prior version.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, entryID string, chunks []domain.WorldBookChunk) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM world_book_chunks WHERE entry_id = $1`, entryID,
	); err != nil {
		return err
	}

	for _, c := range chunks {
		metadata, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode chunk metadata: %w", err)
		}

		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO world_book_chunks (entry_id, chunk_index, content, embedding, metadata, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			c.EntryID, c.ChunkIndex, c.Content, pgvector.NewVector(c.Embedding), metadata, createdAt,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// DeleteChunks removes every chunk belonging to the entry
func (r *ChunkRepository) DeleteChunks(ctx context.Context, entryID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM world_book_chunks WHERE entry_id = $1`, entryID)
	return err
}

// DeleteAll wipes the collection. Safe because the collection is rebuildable
// from the relational tables.
func (r *ChunkRepository) DeleteAll(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM world_book_chunks`)
	return err
}

// ListChunkIDs returns the index-side ids currently stored for an entry
func (r *ChunkRepository) ListChunkIDs(ctx context.Context, entryID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT entry_id, chunk_index FROM world_book_chunks WHERE entry_id = $1 ORDER BY chunk_index`,
		entryID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var c domain.WorldBookChunk
		if err := rows.Scan(&c.EntryID, &c.ChunkIndex); err != nil {
			return nil, err
		}
		ids = append(ids, c.ChunkID())
	}
	return ids, rows.Err()
}

// Ping reports whether the chunk backend is reachable
func (r *ChunkRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
